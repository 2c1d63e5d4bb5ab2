package icalendar

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscapeText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{`a\b`, `a\\b`},
		{"a;b,c", `a\;b\,c`},
		{"line1\nline2", `line1\nline2`},
		{"crlf\r\nend", `crlf\nend`},
		{`\n literal`, `\\n literal`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EscapeText(tt.in), "EscapeText(%q)", tt.in)
	}
}

func TestEncode_Structure(t *testing.T) {
	stamp := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	e := &Event{
		UID:         "uid-1@example.com",
		Summary:     "Review; Q2, plans",
		Description: "Bring notes",
		Location:    "Room 4",
		Start:       time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC),
		End:         time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC),
		Status:      "confirmed",
		Attendees: []Attendee{
			{Email: "jane@example.com", Name: "Jane Doe"},
			{Email: "bob@example.com"},
			{Email: "ops@example.com", Name: "Ops, Team"},
		},
	}

	out := encodeAt(e, stamp)
	lines := strings.Split(strings.TrimSuffix(out, "\r\n"), "\r\n")

	assert.Equal(t, "BEGIN:VCALENDAR", lines[0])
	assert.Equal(t, "END:VCALENDAR", lines[len(lines)-1])
	assert.Contains(t, lines, "BEGIN:VEVENT")
	assert.Contains(t, lines, "UID:uid-1@example.com")
	assert.Contains(t, lines, "DTSTAMP:20240501T080000Z")
	assert.Contains(t, lines, "DTSTART:20240502T090000Z")
	assert.Contains(t, lines, "DTEND:20240502T100000Z")
	assert.Contains(t, lines, `SUMMARY:Review\; Q2\, plans`)
	assert.Contains(t, lines, "STATUS:CONFIRMED")
	assert.Contains(t, lines, "ATTENDEE;CN=Jane Doe:mailto:jane@example.com")
	assert.Contains(t, lines, "ATTENDEE:mailto:bob@example.com")
	assert.Contains(t, lines, `ATTENDEE;CN="Ops, Team":mailto:ops@example.com`)
	assert.NotContains(t, out, "RRULE")
	assert.Equal(t, 1, strings.Count(out, "BEGIN:VEVENT"))
}

func TestEncode_OmitsEmptyOptionalFields(t *testing.T) {
	out := Encode(&Event{UID: "x", Summary: "s", Start: time.Now()})
	for _, name := range []string{"DESCRIPTION", "LOCATION", "ATTENDEE", "STATUS"} {
		assert.NotContains(t, out, name)
	}
	// zero End falls back to Start
	assert.Contains(t, out, "DTEND:")
}

func TestEncode_AllDay(t *testing.T) {
	e := &Event{
		UID:     "day",
		Summary: "Holiday",
		Start:   time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC),
		End:     time.Date(2024, 12, 26, 0, 0, 0, 0, time.UTC),
		AllDay:  true,
	}
	out := Encode(e)
	assert.Contains(t, out, "DTSTART;VALUE=DATE:20241225\r\n")
	assert.Contains(t, out, "DTEND;VALUE=DATE:20241226\r\n")
}

func TestEncode_ExceptionDates(t *testing.T) {
	start := time.Date(2024, 3, 4, 10, 0, 0, 0, time.FixedZone("CET", 3600))
	e := &Event{
		UID:            "series",
		Summary:        "Standup",
		Start:          start,
		End:            start.Add(15 * time.Minute),
		RecurrenceRule: "FREQ=WEEKLY",
		ExceptionDates: []time.Time{start.AddDate(0, 0, 7), start.AddDate(0, 0, 14)},
	}
	out := Encode(e)
	assert.Contains(t, out, "EXDATE:20240311T090000Z,20240318T090000Z\r\n")

	got, err := Decode(out)
	require.NoError(t, err)
	require.Len(t, got.ExceptionDates, 2)
	assert.True(t, got.ExceptionDates[1].Equal(e.ExceptionDates[1]))

	day := &Event{UID: "d", Summary: "Gym", Start: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), AllDay: true,
		RecurrenceRule: "FREQ=DAILY", ExceptionDates: []time.Time{time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)}}
	assert.Contains(t, Encode(day), "EXDATE;VALUE=DATE:20240306\r\n")
}

func TestFold(t *testing.T) {
	long := "DESCRIPTION:" + strings.Repeat("ä", 100)
	folded := fold(long)

	require.True(t, strings.HasSuffix(folded, "\r\n"))
	physical := strings.Split(strings.TrimSuffix(folded, "\r\n"), "\r\n")
	require.Greater(t, len(physical), 1)

	var rebuilt strings.Builder
	for i, l := range physical {
		assert.LessOrEqual(t, len(l), maxLineOctets, "line %d too long", i)
		assert.True(t, utf8.ValidString(l), "line %d splits a rune", i)
		if i > 0 {
			require.True(t, strings.HasPrefix(l, " "))
			l = l[1:]
		}
		rebuilt.WriteString(l)
	}
	assert.Equal(t, long, rebuilt.String())

	assert.Equal(t, "SHORT:x\r\n", fold("SHORT:x"))
}
