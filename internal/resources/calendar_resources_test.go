package resources

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/inboxcal/internal/calendar"
	"github.com/teemow/inboxcal/internal/calendar/caldavtest"
	"github.com/teemow/inboxcal/internal/config"
	"github.com/teemow/inboxcal/internal/logging"
	"github.com/teemow/inboxcal/internal/server"
)

var noon = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

func newServerContext(t *testing.T, withCalendar bool) *server.ServerContext {
	t.Helper()
	cfg := config.Default()
	cfg.CalDAV.Username = caldavtest.User
	cfg.Gmail.TokenFile = filepath.Join(t.TempDir(), "token.json")

	opts := server.Options{Config: cfg}
	if withCalendar {
		fake := caldavtest.New(t)
		fake.AddCalendar("work", "Work")
		fake.Put("work", "now.ics", caldavtest.Event("now", "Happening now", noon.Add(-time.Hour), noon.Add(time.Hour)))

		session, err := calendar.NewSession(calendar.Config{
			BaseURL:    fake.URL(),
			Username:   caldavtest.User,
			Password:   caldavtest.Password,
			HTTPClient: fake.Client(),
			Location:   time.UTC,
			Logger:     logging.Discard(),
			Now:        func() time.Time { return noon },
		})
		require.NoError(t, err)
		opts.Session = session
	}

	sc, err := server.NewServerContext(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func readRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{Params: mcp.ReadResourceParams{URI: uri}}
}

func TestHandleCalendars(t *testing.T) {
	sc := newServerContext(t, true)

	contents, err := handleCalendars(context.Background(), readRequest(CalendarsURI), sc)
	require.NoError(t, err)
	require.Len(t, contents, 1)

	text, ok := contents[0].(*mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, CalendarsURI, text.URI)
	assert.Contains(t, text.Text, `"name": "Work"`)
	assert.Contains(t, text.Text, caldavtest.User)
}

func TestHandleToday(t *testing.T) {
	sc := newServerContext(t, true)

	contents, err := handleToday(context.Background(), readRequest(TodayURI), sc)
	require.NoError(t, err)
	text := contents[0].(*mcp.TextResourceContents)
	assert.Contains(t, text.Text, "Happening now")
}

func TestResources_CalendarDisabled(t *testing.T) {
	sc := newServerContext(t, false)

	_, err := handleCalendars(context.Background(), readRequest(CalendarsURI), sc)
	assert.ErrorIs(t, err, calendar.ErrFeatureDisabled)

	_, err = handleToday(context.Background(), readRequest(TodayURI), sc)
	assert.ErrorIs(t, err, calendar.ErrFeatureDisabled)
}
