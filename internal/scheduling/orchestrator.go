package scheduling

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/teemow/inboxcal/internal/availability"
	"github.com/teemow/inboxcal/internal/calendar"
	"github.com/teemow/inboxcal/internal/icalendar"
	"github.com/teemow/inboxcal/internal/instrumentation"
	"github.com/teemow/inboxcal/internal/logging"
)

// Status values returned by Preview and Schedule.
const (
	StatusNoIntent             = "no_scheduling_intent"
	StatusPreview              = "preview"
	StatusNeedsExternalParsing = "needs_external_parsing"
	StatusConflict             = "conflict"
	StatusCreated              = "created"
)

const (
	maxExcerptRunes = 500
	defaultTitle    = "Meeting"
)

// RequiredInputs names what a caller must extract from the email before
// Schedule can run. Optional inputs are suffixed with "?".
var RequiredInputs = []string{"calendar_id", "start", "end", "title?", "location?"}

// ErrEmailUnavailable is returned when no mail collaborator is configured.
var ErrEmailUnavailable = errors.New("email access not configured")

// Email is the part of a message the orchestrator needs.
type Email struct {
	ID      string
	Subject string
	Body    string
	From    string
}

// EmailFetcher loads one email by id.
type EmailFetcher interface {
	GetEmail(ctx context.Context, id string) (*Email, error)
}

// EventCreator is the write path of a calendar session.
type EventCreator interface {
	CreateEvent(ctx context.Context, calendarID string, e *icalendar.Event) (*calendar.CreateResult, error)
}

// SlotChecker reports availability for slots.
type SlotChecker interface {
	Check(ctx context.Context, slots []availability.Slot) (*availability.Report, error)
}

// Preview describes a flagged email without touching any calendar.
type Preview struct {
	Status            string              `json:"status"`
	EmailID           string              `json:"email_id"`
	Subject           string              `json:"subject,omitempty"`
	From              string              `json:"from,omitempty"`
	BodyExcerpt       string              `json:"body_excerpt,omitempty"`
	SuggestedTitle    string              `json:"suggested_title,omitempty"`
	SuggestedAttendee *icalendar.Attendee `json:"suggested_attendee,omitempty"`
	Detection         Result              `json:"detection"`
	RequiredInputs    []string            `json:"required_inputs,omitempty"`
	Message           string              `json:"message"`
}

// ScheduleRequest carries the times an external caller extracted from
// the email.
type ScheduleRequest struct {
	CalendarID string
	Start      time.Time
	End        time.Time
	AllDay     bool
	// Title defaults to the email subject without reply prefixes.
	Title    string
	Location string
	// CheckAvailability refuses to create over an existing event unless
	// Force is set.
	CheckAvailability bool
	Force             bool
}

// ScheduleResult is the outcome of Schedule.
type ScheduleResult struct {
	Status    string                  `json:"status"`
	EmailID   string                  `json:"email_id"`
	Event     *icalendar.Event        `json:"event,omitempty"`
	Created   *calendar.CreateResult  `json:"created,omitempty"`
	Conflicts []availability.Conflict `json:"conflicts,omitempty"`
	Detection Result                  `json:"detection"`
	Message   string                  `json:"message"`
}

// Config wires an Orchestrator. Calendar and Checker may be nil when the
// calendar feature is disabled; Schedule then fails with
// calendar.ErrFeatureDisabled.
type Config struct {
	Mail     EmailFetcher
	Calendar EventCreator
	Checker  SlotChecker
	Detector *Detector
	Logger   logging.Logger
	Metrics  *instrumentation.Metrics
}

// Orchestrator turns emails into calendar events under confirmation gating.
type Orchestrator struct {
	mail     EmailFetcher
	calendar EventCreator
	checker  SlotChecker
	detector *Detector
	logger   logging.Logger
	metrics  *instrumentation.Metrics
}

// NewOrchestrator builds an Orchestrator from cfg.
func NewOrchestrator(cfg Config) *Orchestrator {
	o := &Orchestrator{
		mail:     cfg.Mail,
		calendar: cfg.Calendar,
		checker:  cfg.Checker,
		detector: cfg.Detector,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}
	if o.detector == nil {
		o.detector = NewDetector()
	}
	if o.logger == nil {
		o.logger = logging.DefaultLogger()
	}
	return o
}

// DetectText classifies raw text and records the verdict.
func (o *Orchestrator) DetectText(ctx context.Context, subject, body string) Result {
	res := o.detector.Detect(subject, body)
	o.metrics.RecordSchedulingDetection(ctx, res.HasIntent, string(res.Confidence))
	return res
}

// DetectEmail fetches an email and classifies it.
func (o *Orchestrator) DetectEmail(ctx context.Context, emailID string) (*Email, Result, error) {
	email, err := o.fetch(ctx, emailID)
	if err != nil {
		return nil, Result{}, err
	}
	return email, o.DetectText(ctx, email.Subject, email.Body), nil
}

func (o *Orchestrator) fetch(ctx context.Context, emailID string) (*Email, error) {
	if o.mail == nil {
		return nil, ErrEmailUnavailable
	}
	emailID = strings.TrimSpace(emailID)
	if emailID == "" {
		return nil, errors.New("email id is required")
	}
	email, err := o.mail.GetEmail(ctx, emailID)
	if err != nil {
		o.metrics.RecordMailFetch(ctx, instrumentation.StatusError)
		return nil, fmt.Errorf("fetch email %s: %w", emailID, err)
	}
	o.metrics.RecordMailFetch(ctx, instrumentation.StatusSuccess)
	if email.ID == "" {
		email.ID = emailID
	}
	return email, nil
}

// Preview classifies an email and, when it proposes a meeting, describes
// the event that could be created. With confirm set it reports which
// inputs the caller must extract; it never picks a time itself.
func (o *Orchestrator) Preview(ctx context.Context, emailID string, confirm bool) (*Preview, error) {
	email, res, err := o.DetectEmail(ctx, emailID)
	if err != nil {
		return nil, err
	}

	p := &Preview{
		EmailID:   email.ID,
		Subject:   email.Subject,
		From:      email.From,
		Detection: res,
	}
	if !res.HasIntent {
		p.Status = StatusNoIntent
		p.Message = "No scheduling intent detected; not creating a calendar event."
		o.logger.Debug("no scheduling intent", logging.EmailID(email.ID))
		return p, nil
	}

	p.BodyExcerpt = Excerpt(email.Body, maxExcerptRunes)
	p.SuggestedTitle = SuggestTitle(email.Subject)
	p.SuggestedAttendee = ParseSender(email.From)

	if !confirm {
		p.Status = StatusPreview
		p.Message = fmt.Sprintf("Scheduling intent detected (%s confidence). Confirm to continue.", res.Confidence)
		return p, nil
	}

	p.Status = StatusNeedsExternalParsing
	p.RequiredInputs = append([]string(nil), RequiredInputs...)
	p.Message = "Extract the meeting date and time from the email, then create the event with explicit start and end times."
	o.logger.Info("scheduling confirmed, awaiting explicit times",
		logging.EmailID(email.ID), "confidence", string(res.Confidence))
	return p, nil
}

// Schedule creates an event for an email using caller-supplied times.
func (o *Orchestrator) Schedule(ctx context.Context, emailID string, req ScheduleRequest) (*ScheduleResult, error) {
	if o.calendar == nil {
		return nil, calendar.ErrFeatureDisabled
	}
	if req.Start.IsZero() || req.End.IsZero() {
		return nil, fmt.Errorf("%w: start and end are required", icalendar.ErrInvalidEvent)
	}
	if req.End.Before(req.Start) {
		return nil, fmt.Errorf("%w: end is before start", icalendar.ErrInvalidEvent)
	}

	email, res, err := o.DetectEmail(ctx, emailID)
	if err != nil {
		return nil, err
	}
	out := &ScheduleResult{EmailID: email.ID, Detection: res}

	if req.CheckAvailability && o.checker != nil {
		report, err := o.checker.Check(ctx, []availability.Slot{{Start: req.Start, End: req.End}})
		if err != nil {
			return nil, fmt.Errorf("check availability: %w", err)
		}
		if len(report.Slots) > 0 && !report.Slots[0].Available {
			out.Conflicts = report.Slots[0].Conflicts
			if !req.Force {
				out.Status = StatusConflict
				out.Message = fmt.Sprintf("The requested time conflicts with %d existing event(s); nothing was created.", len(out.Conflicts))
				return out, nil
			}
			o.logger.Warn("creating event despite conflicts",
				logging.EmailID(email.ID), "conflicts", len(out.Conflicts))
		}
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = SuggestTitle(email.Subject)
	}
	ev := &icalendar.Event{
		Summary:     title,
		Description: describe(email),
		Location:    strings.TrimSpace(req.Location),
		Start:       req.Start,
		End:         req.End,
		AllDay:      req.AllDay,
		Status:      icalendar.StatusConfirmed,
	}
	if a := ParseSender(email.From); a != nil {
		ev.Attendees = []icalendar.Attendee{*a}
	}

	created, err := o.calendar.CreateEvent(ctx, req.CalendarID, ev)
	if err != nil {
		return nil, err
	}
	ev.UID = created.UID
	ev.URL = created.URL
	ev.ETag = created.ETag

	out.Status = StatusCreated
	out.Event = ev
	out.Created = created
	out.Message = fmt.Sprintf("Created %q in %s.", ev.Summary, created.CalendarID)
	o.logger.Info("event created from email",
		logging.EmailID(email.ID), logging.EventUID(created.UID))
	return out, nil
}

func describe(email *Email) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scheduled from email %s", email.ID)
	if email.From != "" {
		fmt.Fprintf(&b, " from %s", email.From)
	}
	if excerpt := Excerpt(email.Body, maxExcerptRunes); excerpt != "" {
		b.WriteString("\n\n")
		b.WriteString(excerpt)
	}
	return b.String()
}

var replyPrefix = regexp.MustCompile(`(?i)^\s*(?:(?:re|fwd?|aw|wg|sv)\s*(?:\[\d+\])?\s*:\s*)+`)

// SuggestTitle strips reply and forward prefixes from subject.
func SuggestTitle(subject string) string {
	title := strings.TrimSpace(replyPrefix.ReplaceAllString(subject, ""))
	if title == "" {
		return defaultTitle
	}
	return title
}

// ParseSender returns the sender as an attendee, or nil when from has no
// usable address.
func ParseSender(from string) *icalendar.Attendee {
	from = strings.TrimSpace(from)
	if from == "" {
		return nil
	}
	if addr, err := mail.ParseAddress(from); err == nil {
		return &icalendar.Attendee{Email: addr.Address, Name: addr.Name}
	}
	if strings.Contains(from, "@") && !strings.ContainsAny(from, " <>") {
		return &icalendar.Attendee{Email: from}
	}
	return nil
}

// Excerpt trims s and cuts it to at most n runes, marking the cut with an
// ellipsis.
func Excerpt(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n])) + "..."
}
