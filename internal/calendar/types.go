package calendar

import (
	"time"

	"github.com/teemow/inboxcal/internal/icalendar"
)

// State is the lifecycle state of a Session.
type State int

const (
	StateUninitialized State = iota
	StateLoggingIn
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoggingIn:
		return "logging_in"
	case StateReady:
		return "ready"
	}
	return "unknown"
}

// Calendar is a calendar collection discovered on the server. It is an
// immutable snapshot replaced on every Login.
type Calendar struct {
	// ID is the absolute URL of the collection, with a trailing slash.
	ID          string `json:"id"`
	Name        string `json:"name"`
	CTag        string `json:"ctag,omitempty"`
	Description string `json:"description,omitempty"`
}

// CreateResult identifies a newly written event.
type CreateResult struct {
	CalendarID string `json:"calendar_id"`
	URL        string `json:"url"`
	UID        string `json:"uid"`
	ETag       string `json:"etag,omitempty"`
}

// EventPatch holds the fields of a partial update. Nil fields keep the
// value of the stored event.
type EventPatch struct {
	Summary     *string
	Description *string
	Location    *string
	Start       *time.Time
	End         *time.Time
	AllDay      *bool
	Status      *string
	Attendees   *[]icalendar.Attendee
}

// IsEmpty reports whether the patch changes nothing.
func (p EventPatch) IsEmpty() bool {
	return p.Summary == nil && p.Description == nil && p.Location == nil &&
		p.Start == nil && p.End == nil && p.AllDay == nil && p.Status == nil &&
		p.Attendees == nil
}

// Apply returns a copy of e with the set fields of p laid over it. UID,
// URL, recurrence and ETag are carried over; Raw is cleared because the
// result must be re-encoded.
func (p EventPatch) Apply(e icalendar.Event) icalendar.Event {
	if p.Summary != nil {
		e.Summary = *p.Summary
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Location != nil {
		e.Location = *p.Location
	}
	if p.Start != nil {
		e.Start = *p.Start
	}
	if p.End != nil {
		e.End = *p.End
	}
	if p.AllDay != nil {
		e.AllDay = *p.AllDay
	}
	if p.Status != nil {
		e.Status = *p.Status
	}
	if p.Attendees != nil {
		e.Attendees = append([]icalendar.Attendee(nil), (*p.Attendees)...)
	} else if e.Attendees != nil {
		e.Attendees = append([]icalendar.Attendee(nil), e.Attendees...)
	}
	e.Raw = ""
	return e
}
