package calendar

import (
	"errors"
	"fmt"
	"strings"

	"github.com/teemow/inboxcal/internal/icalendar"
)

var (
	// ErrNotInitialized is returned by every operation except Login while
	// the session has not completed a Login.
	ErrNotInitialized = errors.New("calendar session not initialized: call Login first")

	// ErrAuthenticationFailed is returned when the server rejects the credentials.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrCalendarNotFound is returned when a calendar id resolves to no known calendar.
	ErrCalendarNotFound = errors.New("calendar not found")

	// ErrEventNotFound is returned when the target event does not exist.
	ErrEventNotFound = errors.New("event not found")

	// ErrConflictingWrite is returned when a conditional write is rejected
	// because the server holds a newer version of the resource.
	ErrConflictingWrite = errors.New("conflicting write: event was modified on the server")

	// ErrTransport matches every *TransportError.
	ErrTransport = errors.New("transport failure")

	// ErrFeatureDisabled is returned when calendar operations are invoked
	// without CalDAV credentials configured.
	ErrFeatureDisabled = errors.New("calendar feature disabled: CalDAV credentials not configured")

	// ErrMalformedEvent is returned when a fetched object cannot be decoded.
	ErrMalformedEvent = icalendar.ErrMalformedEvent

	// ErrInvalidEvent is returned for events that must not be written.
	ErrInvalidEvent = icalendar.ErrInvalidEvent
)

// TransportError describes a failed HTTP exchange. Err, when set, is the
// more specific sentinel the status maps to (for example
// ErrConflictingWrite for 412).
type TransportError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	var b strings.Builder
	if e.Err != nil {
		b.WriteString(e.Err.Error())
		b.WriteString(": ")
	}
	fmt.Fprintf(&b, "%s %s", e.Method, e.URL)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " returned HTTP %d", e.StatusCode)
	}
	if body := strings.TrimSpace(e.Body); body != "" {
		if len(body) > 200 {
			body = body[:200] + "..."
		}
		b.WriteString(": ")
		b.WriteString(body)
	}
	return b.String()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is reports true for ErrTransport so callers can test for any HTTP failure.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// Error kinds reported by ErrorKind.
const (
	KindNotInitialized       = "NotInitialized"
	KindAuthenticationFailed = "AuthenticationFailed"
	KindCalendarNotFound     = "CalendarNotFound"
	KindEventNotFound        = "EventNotFound"
	KindMalformedEvent       = "MalformedEvent"
	KindTransportFailure     = "TransportFailure"
	KindConflictingWrite     = "ConflictingWrite"
	KindFeatureDisabled      = "FeatureDisabled"
	KindInvalidEvent         = "InvalidEvent"
	KindInternal             = "Internal"
)

// ErrorKind names the failure category of err, most specific first.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotInitialized):
		return KindNotInitialized
	case errors.Is(err, ErrFeatureDisabled):
		return KindFeatureDisabled
	case errors.Is(err, ErrAuthenticationFailed):
		return KindAuthenticationFailed
	case errors.Is(err, ErrCalendarNotFound):
		return KindCalendarNotFound
	case errors.Is(err, ErrEventNotFound):
		return KindEventNotFound
	case errors.Is(err, ErrConflictingWrite):
		return KindConflictingWrite
	case errors.Is(err, ErrMalformedEvent):
		return KindMalformedEvent
	case errors.Is(err, ErrInvalidEvent):
		return KindInvalidEvent
	case errors.Is(err, ErrTransport):
		return KindTransportFailure
	}
	return KindInternal
}
