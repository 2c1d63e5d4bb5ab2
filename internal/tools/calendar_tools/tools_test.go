package calendar_tools

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/inboxcal/internal/availability"
	"github.com/teemow/inboxcal/internal/calendar"
	"github.com/teemow/inboxcal/internal/calendar/caldavtest"
	"github.com/teemow/inboxcal/internal/config"
	"github.com/teemow/inboxcal/internal/icalendar"
	"github.com/teemow/inboxcal/internal/logging"
	"github.com/teemow/inboxcal/internal/server"
)

var monday = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

func at(hour int) time.Time {
	return monday.Add(time.Duration(hour) * time.Hour)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.CalDAV.Timezone = "UTC"
	dir := t.TempDir()
	cfg.Gmail.TokenFile = filepath.Join(dir, "token.json")
	cfg.Gmail.CredentialsFile = filepath.Join(dir, "credentials.json")
	return cfg
}

// newTestServer registers the calendar tools against a fake CalDAV server.
func newTestServer(t *testing.T, yolo bool) (*mcpserver.MCPServer, *caldavtest.Server) {
	t.Helper()
	fake := caldavtest.New(t)
	fake.AddCalendar("work", "Work")
	fake.AddCalendar("home", "Home")

	session, err := calendar.NewSession(calendar.Config{
		BaseURL:    fake.URL(),
		Username:   caldavtest.User,
		Password:   caldavtest.Password,
		HTTPClient: fake.Client(),
		Location:   time.UTC,
		Logger:     logging.Discard(),
	})
	require.NoError(t, err)

	sc, err := server.NewServerContext(context.Background(), server.Options{
		Config:  testConfig(t),
		Session: session,
		Yolo:    yolo,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })

	s := mcpserver.NewMCPServer("test", "0.0.0", mcpserver.WithToolCapabilities(true))
	require.NoError(t, RegisterCalendarTools(s, sc))
	return s, fake
}

func call(t *testing.T, s *mcpserver.MCPServer, name string, args map[string]interface{}) (string, bool) {
	t.Helper()
	tool, ok := s.ListTools()[name]
	require.True(t, ok, "tool %s not registered", name)

	res, err := tool.Handler(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text, res.IsError
}

func TestRegisterCalendarTools_ReadOnly(t *testing.T) {
	s, _ := newTestServer(t, false)
	tools := s.ListTools()

	for _, name := range []string{
		"calendar_list_calendars", "calendar_list_events", "calendar_get_event",
		"calendar_today", "calendar_upcoming", "calendar_check_availability", "calendar_create_event",
	} {
		assert.Contains(t, tools, name)
	}
	assert.NotContains(t, tools, "calendar_update_event")
	assert.NotContains(t, tools, "calendar_delete_event")
}

func TestRegisterCalendarTools_Yolo(t *testing.T) {
	s, _ := newTestServer(t, true)
	tools := s.ListTools()
	assert.Contains(t, tools, "calendar_update_event")
	assert.Contains(t, tools, "calendar_delete_event")
}

func TestListCalendars(t *testing.T) {
	s, fake := newTestServer(t, false)

	out, isErr := call(t, s, "calendar_list_calendars", nil)
	require.False(t, isErr, out)

	var cals []calendar.Calendar
	require.NoError(t, json.Unmarshal([]byte(out), &cals))
	require.Len(t, cals, 2)
	assert.Equal(t, fake.CalendarID("work"), cals[0].ID)
	assert.Equal(t, "Work", cals[0].Name)

	fake.AddCalendar("travel", "Travel")
	out, isErr = call(t, s, "calendar_list_calendars", map[string]interface{}{"refresh": true})
	require.False(t, isErr, out)
	require.NoError(t, json.Unmarshal([]byte(out), &cals))
	assert.Len(t, cals, 3)
}

func TestListEvents(t *testing.T) {
	s, fake := newTestServer(t, false)
	fake.Put("work", "standup.ics", caldavtest.Event("standup", "Standup", at(9), at(10)))
	fake.Put("home", "dentist.ics", caldavtest.Event("dentist", "Dentist", at(8), at(9)))

	out, isErr := call(t, s, "calendar_list_events", map[string]interface{}{
		"start": "2025-06-02",
		"end":   "2025-06-03",
	})
	require.False(t, isErr, out)
	assert.Contains(t, out, "Found 2 events")
	assert.Less(t, strings.Index(out, "Dentist"), strings.Index(out, "Standup"))

	out, isErr = call(t, s, "calendar_list_events", map[string]interface{}{
		"calendarId": "work",
		"start":      "2025-06-02T00:00:00Z",
		"end":        "2025-06-03T00:00:00Z",
	})
	require.False(t, isErr, out)
	assert.Contains(t, out, "Found 1 events")

	out, isErr = call(t, s, "calendar_list_events", map[string]interface{}{"start": "tomorrow", "end": "2025-06-03"})
	assert.True(t, isErr)
	assert.Contains(t, out, "Invalid start")

	out, isErr = call(t, s, "calendar_list_events", map[string]interface{}{
		"calendarId": "nope",
		"start":      "2025-06-02",
		"end":        "2025-06-03",
	})
	assert.True(t, isErr)
	assert.Contains(t, out, "[CalendarNotFound]")
}

func TestEventLifecycle(t *testing.T) {
	s, fake := newTestServer(t, true)

	out, isErr := call(t, s, "calendar_create_event", map[string]interface{}{
		"calendarId": "work",
		"summary":    "Planning",
		"start":      "2025-06-02T14:00:00Z",
		"end":        "2025-06-02T15:00:00Z",
		"location":   "Room 1",
		"attendees":  "a@example.com, b@example.com",
		"uid":        "planning-1",
	})
	require.False(t, isErr, out)
	var created calendar.CreateResult
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.Equal(t, "planning-1", created.UID)
	assert.Equal(t, fake.CalendarID("work"), created.CalendarID)

	out, isErr = call(t, s, "calendar_get_event", map[string]interface{}{"calendarId": "work", "event": "planning-1"})
	require.False(t, isErr, out)
	var ev icalendar.Event
	require.NoError(t, json.Unmarshal([]byte(out), &ev))
	assert.Equal(t, "Planning", ev.Summary)
	assert.Len(t, ev.Attendees, 2)

	// stale etag
	out, isErr = call(t, s, "calendar_update_event", map[string]interface{}{
		"calendarId": "work",
		"event":      "planning-1",
		"etag":       `"etag-0"`,
		"summary":    "Renamed",
	})
	assert.True(t, isErr)
	assert.Contains(t, out, "[ConflictingWrite]")

	out, isErr = call(t, s, "calendar_update_event", map[string]interface{}{
		"calendarId": "work",
		"event":      "planning-1",
		"etag":       ev.ETag,
		"summary":    "Renamed",
		"status":     "tentative",
	})
	require.False(t, isErr, out)
	require.NoError(t, json.Unmarshal([]byte(out), &ev))
	assert.Equal(t, "Renamed", ev.Summary)
	assert.Equal(t, icalendar.StatusTentative, ev.Status)
	assert.Equal(t, "Room 1", ev.Location)

	out, isErr = call(t, s, "calendar_update_event", map[string]interface{}{"calendarId": "work", "event": "planning-1"})
	assert.True(t, isErr)
	assert.Contains(t, out, "nothing to update")

	out, isErr = call(t, s, "calendar_delete_event", map[string]interface{}{"calendarId": "work", "event": "planning-1"})
	require.False(t, isErr, out)
	assert.Nil(t, fake.Object("work", "planning-1.ics"))

	out, isErr = call(t, s, "calendar_get_event", map[string]interface{}{"calendarId": "work", "event": "planning-1"})
	assert.True(t, isErr)
	assert.Contains(t, out, "[EventNotFound]")
}

func TestCreateEvent_Invalid(t *testing.T) {
	s, _ := newTestServer(t, false)

	out, isErr := call(t, s, "calendar_create_event", map[string]interface{}{
		"calendarId": "work",
		"summary":    "Backwards",
		"start":      "2025-06-02T15:00:00Z",
		"end":        "2025-06-02T14:00:00Z",
	})
	assert.True(t, isErr)
	assert.Contains(t, out, "[InvalidEvent]")
}

func TestCheckAvailability(t *testing.T) {
	s, fake := newTestServer(t, false)
	fake.Put("work", "review.ics", caldavtest.Event("review", "Review", at(10), at(11)))

	slots := `[{"start":"2025-06-02T10:30:00Z","end":"2025-06-02T11:30:00Z"},{"start":"2025-06-02T11:00:00Z","end":"2025-06-02T12:00:00Z"}]`
	out, isErr := call(t, s, "calendar_check_availability", map[string]interface{}{"slots": slots})
	require.False(t, isErr, out)

	var report availability.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.Slots, 2)
	assert.False(t, report.Slots[0].Available)
	assert.Equal(t, "Review", report.Slots[0].Conflicts[0].Summary)
	assert.True(t, report.Slots[1].Available)
	assert.Equal(t, 1, report.AvailableCount)

	tests := []struct {
		name  string
		slots string
		want  string
	}{
		{name: "not json", slots: "soon", want: "Invalid slots"},
		{name: "empty", slots: "[]", want: "at least one slot"},
		{name: "bad time", slots: `[{"start":"x","end":"2025-06-02"}]`, want: "Invalid slot 0 start"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, isErr := call(t, s, "calendar_check_availability", map[string]interface{}{"slots": tt.slots})
			assert.True(t, isErr)
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestCalendarDisabled(t *testing.T) {
	sc, err := server.NewServerContext(context.Background(), server.Options{Config: testConfig(t)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })

	s := mcpserver.NewMCPServer("test", "0.0.0", mcpserver.WithToolCapabilities(true))
	require.NoError(t, RegisterCalendarTools(s, sc))

	out, isErr := call(t, s, "calendar_today", nil)
	assert.True(t, isErr)
	assert.Contains(t, out, "[FeatureDisabled]")

	out, isErr = call(t, s, "calendar_check_availability", map[string]interface{}{
		"slots": `[{"start":"2025-06-02T10:00:00Z","end":"2025-06-02T11:00:00Z"}]`,
	})
	assert.True(t, isErr)
	assert.Contains(t, out, "[FeatureDisabled]")
}

func TestParseAttendees(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "empty string", input: "", expected: nil},
		{name: "single email", input: "user@example.com", expected: []string{"user@example.com"}},
		{name: "spaces and blanks", input: " a@example.com , ,b@example.com ", expected: []string{"a@example.com", "b@example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, a := range parseAttendees(tt.input) {
				got = append(got, a.Email)
			}
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestFormatEvents(t *testing.T) {
	assert.Equal(t, "No events found.", formatEvents(nil, time.UTC))

	out := formatEvents([]icalendar.Event{
		{UID: "a", Summary: "Offsite", Start: monday, End: monday.AddDate(0, 0, 1), AllDay: true},
		{UID: "b", Summary: "Sync", Start: at(9), End: at(10), Location: "https://meet.example.com/x", RecurrenceRule: "FREQ=WEEKLY"},
	}, time.UTC)
	assert.Contains(t, out, "Date: 2025-06-02 (all day)")
	assert.Contains(t, out, "Start: 2025-06-02T09:00:00Z")
	assert.Contains(t, out, "Repeats: FREQ=WEEKLY")
}
