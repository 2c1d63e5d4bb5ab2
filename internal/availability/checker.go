package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/teemow/inboxcal/internal/icalendar"
	"github.com/teemow/inboxcal/internal/instrumentation"
	"github.com/teemow/inboxcal/internal/logging"
)

// maxParallelSlots bounds the concurrent range queries of one Check.
const maxParallelSlots = 4

// EventLister is the read path of a calendar session. An empty calendarID
// means every calendar.
type EventLister interface {
	ListEvents(ctx context.Context, calendarID string, start, end time.Time) ([]icalendar.Event, error)
}

// Slot is a proposed [Start, End) interval.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Conflict is an event occurrence that overlaps a slot.
type Conflict struct {
	Summary string    `json:"summary"`
	UID     string    `json:"uid,omitempty"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

// SlotResult is the outcome for one slot.
type SlotResult struct {
	Slot
	Available bool       `json:"available"`
	Conflicts []Conflict `json:"conflicts"`
}

// Report is the outcome of a Check, in slot order.
type Report struct {
	Slots          []SlotResult `json:"slots"`
	AvailableCount int          `json:"available_count"`
}

// Checker checks slots against a session.
type Checker struct {
	lister  EventLister
	logger  logging.Logger
	metrics *instrumentation.Metrics
}

// NewChecker returns a Checker reading from lister. logger and metrics may be nil.
func NewChecker(lister EventLister, logger logging.Logger, metrics *instrumentation.Metrics) *Checker {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &Checker{lister: lister, logger: logger, metrics: metrics}
}

// Check reports availability for each slot. A slot whose end precedes its
// start is rejected before any query is made. Slots are queried in
// parallel; the first listing error aborts the check.
func (c *Checker) Check(ctx context.Context, slots []Slot) (report *Report, err error) {
	for i, s := range slots {
		if s.Start.IsZero() || s.End.IsZero() {
			return nil, fmt.Errorf("slot %d: start and end are required", i)
		}
		if s.End.Before(s.Start) {
			return nil, fmt.Errorf("slot %d: end %s is before start %s", i,
				s.End.Format(time.RFC3339), s.Start.Format(time.RFC3339))
		}
	}

	ctx, span := instrumentation.StartSpan(ctx, "availability.check",
		attribute.Int(instrumentation.SpanAttrCount, len(slots)))
	defer func() { instrumentation.EndSpan(span, err) }()

	results := make([]SlotResult, len(slots))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelSlots)
	for i, slot := range slots {
		g.Go(func() error {
			events, err := c.lister.ListEvents(gctx, "", slot.Start, slot.End)
			if err != nil {
				return fmt.Errorf("slot %d: %w", i, err)
			}
			results[i] = c.evaluate(slot, events)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report = &Report{Slots: results}
	for _, r := range results {
		c.metrics.RecordAvailabilityCheck(ctx, r.Available)
		if r.Available {
			report.AvailableCount++
		}
	}
	c.logger.Debug("availability checked",
		"slots", len(slots), "available", report.AvailableCount)
	return report, nil
}

func (c *Checker) evaluate(slot Slot, events []icalendar.Event) SlotResult {
	res := SlotResult{Slot: slot, Conflicts: []Conflict{}}
	for i := range events {
		for _, occ := range c.occurrences(&events[i], slot) {
			if Overlaps(occ.Start, occ.End, slot.Start, slot.End) {
				res.Conflicts = append(res.Conflicts, Conflict{
					Summary: events[i].Summary,
					UID:     events[i].UID,
					Start:   occ.Start,
					End:     occ.End,
				})
			}
		}
	}
	res.Available = len(res.Conflicts) == 0
	return res
}

// occurrences returns the intervals of e that may touch slot. EXDATE
// instances are skipped; RECURRENCE-ID overrides are not expanded.
func (c *Checker) occurrences(e *icalendar.Event, slot Slot) []Slot {
	if e.Cancelled() {
		return nil
	}
	end := e.End
	if e.AllDay && !end.After(e.Start) {
		end = e.Start.AddDate(0, 0, 1)
	}
	if end.Before(e.Start) {
		end = e.Start
	}
	span := end.Sub(e.Start)

	if !e.Recurring() {
		return []Slot{{Start: e.Start, End: end}}
	}

	opt, err := rrule.StrToROption(e.RecurrenceRule)
	if err == nil {
		opt.Dtstart = e.Start
		var rule *rrule.RRule
		if rule, err = rrule.NewRRule(*opt); err == nil {
			set := rrule.Set{}
			set.RRule(rule)
			for _, ex := range e.ExceptionDates {
				set.ExDate(ex)
			}
			starts := set.Between(slot.Start.Add(-span), slot.End, true)
			out := make([]Slot, 0, len(starts))
			for _, s := range starts {
				out = append(out, Slot{Start: s, End: s.Add(span)})
			}
			return out
		}
	}
	c.logger.Warn("unsupported recurrence rule, checking first occurrence only",
		logging.EventUID(e.UID), "rrule", e.RecurrenceRule, logging.Err(err))
	return []Slot{{Start: e.Start, End: end}}
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) overlap.
// Touching endpoints do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
