package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/teemow/inboxcal/internal/icalendar"
)

func TestEventPatchApply(t *testing.T) {
	start := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	orig := icalendar.Event{
		UID:         "uid-1",
		URL:         "https://host/cal/uid-1.ics",
		Summary:     "Old",
		Description: "keep me",
		Location:    "Room 1",
		Start:       start,
		End:         start.Add(time.Hour),
		Attendees:   []icalendar.Attendee{{Email: "a@example.com"}},
		ETag:        `"1"`,
		Raw:         "BEGIN:VCALENDAR...",
	}

	assert.True(t, EventPatch{}.IsEmpty())

	title := "New"
	later := start.Add(2 * time.Hour)
	attendees := []icalendar.Attendee{{Email: "b@example.com", Name: "B"}}
	p := EventPatch{Summary: &title, End: &later, Attendees: &attendees}
	assert.False(t, p.IsEmpty())

	got := p.Apply(orig)
	assert.Equal(t, "New", got.Summary)
	assert.Equal(t, "keep me", got.Description)
	assert.Equal(t, "Room 1", got.Location)
	assert.Equal(t, start, got.Start)
	assert.Equal(t, later, got.End)
	assert.Equal(t, attendees, got.Attendees)
	assert.Equal(t, "uid-1", got.UID)
	assert.Equal(t, `"1"`, got.ETag)
	assert.Empty(t, got.Raw)

	attendees[0].Name = "changed"
	assert.Equal(t, "B", got.Attendees[0].Name, "patch attendees are copied")
	assert.Equal(t, "Old", orig.Summary, "original is untouched")

	got = EventPatch{}.Apply(orig)
	got.Attendees[0].Email = "x@example.com"
	assert.Equal(t, "a@example.com", orig.Attendees[0].Email)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "uninitialized", StateUninitialized.String())
	assert.Equal(t, "logging_in", StateLoggingIn.String())
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "unknown", State(42).String())
}
