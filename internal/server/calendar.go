package server

import (
	"context"
	"sync"
	"time"

	"github.com/teemow/inboxcal/internal/calendar"
	"github.com/teemow/inboxcal/internal/icalendar"
)

// lazyCalendar logs the session in before the first call that needs it.
// A failed login is retried on the next call.
type lazyCalendar struct {
	session *calendar.Session
	mu      sync.Mutex
}

func (l *lazyCalendar) ensure(ctx context.Context) error {
	if l.session.State() == calendar.StateReady {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.session.State() == calendar.StateReady {
		return nil
	}
	return l.session.Login(ctx)
}

// ListEvents satisfies availability.EventLister.
func (l *lazyCalendar) ListEvents(ctx context.Context, calendarID string, start, end time.Time) ([]icalendar.Event, error) {
	if err := l.ensure(ctx); err != nil {
		return nil, err
	}
	return l.session.ListEvents(ctx, calendarID, start, end)
}

// CreateEvent satisfies scheduling.EventCreator.
func (l *lazyCalendar) CreateEvent(ctx context.Context, calendarID string, e *icalendar.Event) (*calendar.CreateResult, error) {
	if err := l.ensure(ctx); err != nil {
		return nil, err
	}
	return l.session.CreateEvent(ctx, calendarID, e)
}
