package icalendar

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Event statuses as written in the STATUS property.
const (
	StatusConfirmed = "CONFIRMED"
	StatusTentative = "TENTATIVE"
	StatusCancelled = "CANCELLED"
)

var (
	// ErrMalformedEvent is returned when a calendar object has no usable DTSTART.
	ErrMalformedEvent = errors.New("malformed calendar object")

	// ErrInvalidEvent is returned by Validate for events that must not be written.
	ErrInvalidEvent = errors.New("invalid event")
)

// Attendee is a single ATTENDEE line.
type Attendee struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Event is one VEVENT together with the CalDAV metadata of the resource
// that holds it.
type Event struct {
	// UID is the protocol-level identity, stable across edits.
	UID string `json:"uid"`
	// URL is the resource location on the server. Empty until written.
	URL string `json:"url,omitempty"`

	Summary     string     `json:"summary"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	Start       time.Time  `json:"start"`
	End         time.Time  `json:"end"`
	AllDay      bool       `json:"all_day"`
	Status      string     `json:"status,omitempty"`
	Attendees   []Attendee `json:"attendees,omitempty"`

	// RecurrenceRule is the raw RRULE value of a recurring master, if any.
	RecurrenceRule string `json:"recurrence_rule,omitempty"`
	// ExceptionDates are the EXDATE instances removed from the series.
	ExceptionDates []time.Time `json:"exception_dates,omitempty"`

	// ETag is the version token of the resource the event was read from.
	ETag string `json:"etag,omitempty"`

	// Raw is the wire text the event was decoded from.
	Raw string `json:"-"`
}

// Validate reports whether e can be written to a server.
func (e *Event) Validate() error {
	if strings.TrimSpace(e.Summary) == "" {
		return fmt.Errorf("%w: summary is required", ErrInvalidEvent)
	}
	if e.Start.IsZero() {
		return fmt.Errorf("%w: start is required", ErrInvalidEvent)
	}
	if !e.End.IsZero() && e.End.Before(e.Start) {
		return fmt.Errorf("%w: end %s is before start %s", ErrInvalidEvent,
			e.End.Format(time.RFC3339), e.Start.Format(time.RFC3339))
	}
	return nil
}

// Cancelled reports whether the event carries STATUS:CANCELLED.
func (e *Event) Cancelled() bool {
	return strings.EqualFold(e.Status, StatusCancelled)
}

// Recurring reports whether the event is a recurring master.
func (e *Event) Recurring() bool {
	return e.RecurrenceRule != ""
}

// Duration returns End-Start, or zero when End precedes Start.
func (e *Event) Duration() time.Duration {
	if e.End.Before(e.Start) {
		return 0
	}
	return e.End.Sub(e.Start)
}

var urlRegex = regexp.MustCompile(`https?://[^\s<>"{}|\\^\[\]` + "`" + `]+`)

var meetingHosts = []string{"zoom", "meet.google", "teams.microsoft", "webex", "gotomeeting"}

// MeetingLink returns the first video-conference URL found in the location
// or description, or the first URL of any kind if none matches a known
// conferencing host.
func (e *Event) MeetingLink() string {
	matches := urlRegex.FindAllString(e.Location+" "+e.Description, -1)
	for _, match := range matches {
		lower := strings.ToLower(match)
		for _, host := range meetingHosts {
			if strings.Contains(lower, host) {
				return match
			}
		}
	}
	if len(matches) > 0 {
		return matches[0]
	}
	return ""
}
