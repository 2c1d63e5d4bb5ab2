package calendar

import (
	"testing"
	"time"

	"github.com/teemow/inboxcal/internal/calendar/caldavtest"
	"github.com/teemow/inboxcal/internal/logging"
)

// newTestSession returns a session against f that is not logged in yet.
func newTestSession(t *testing.T, f *caldavtest.Server) *Session {
	t.Helper()
	s, err := NewSession(Config{
		BaseURL:    f.URL(),
		Username:   caldavtest.User,
		Password:   caldavtest.Password,
		HTTPClient: f.Client(),
		Location:   time.UTC,
		Logger:     logging.Discard(),
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s
}
