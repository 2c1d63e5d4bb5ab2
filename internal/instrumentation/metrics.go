package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	attrStatus     = "status"
	attrOperation  = "operation"
	attrService    = "service"
	attrTool       = "tool"
	attrCalendar   = "calendar"
	attrConfidence = "confidence"
	attrIntent     = "intent"
	attrResult     = "result"
)

// Metrics provides methods for recording observability metrics.
// A zero Metrics is a valid no-op recorder.
type Metrics struct {
	// CalDAV metrics
	caldavOperationsTotal   metric.Int64Counter
	caldavOperationDuration metric.Float64Histogram
	calendarFetchFailures   metric.Int64Counter

	// Mail collaborator metrics
	mailFetchesTotal metric.Int64Counter

	// Scheduling metrics
	schedulingDetectionsTotal metric.Int64Counter
	availabilityChecksTotal   metric.Int64Counter

	// MCP Tool metrics
	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	// detailedLabels adds the calendar label to CalDAV metrics
	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all instruments registered on meter.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{detailedLabels: detailedLabels}

	var err error
	durationBuckets := metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0)

	m.caldavOperationsTotal, err = meter.Int64Counter(
		"caldav_operations_total",
		metric.WithDescription("Total number of CalDAV operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav_operations_total counter: %w", err)
	}

	m.caldavOperationDuration, err = meter.Float64Histogram(
		"caldav_operation_duration_seconds",
		metric.WithDescription("CalDAV operation duration in seconds"),
		metric.WithUnit("s"),
		durationBuckets,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav_operation_duration_seconds histogram: %w", err)
	}

	m.calendarFetchFailures, err = meter.Int64Counter(
		"calendar_fetch_failures_total",
		metric.WithDescription("Per-calendar fetches excluded from a merged listing"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_fetch_failures_total counter: %w", err)
	}

	m.mailFetchesTotal, err = meter.Int64Counter(
		"mail_fetches_total",
		metric.WithDescription("Total number of email fetches"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail_fetches_total counter: %w", err)
	}

	m.schedulingDetectionsTotal, err = meter.Int64Counter(
		"scheduling_detections_total",
		metric.WithDescription("Scheduling intent classifications by verdict and confidence"),
		metric.WithUnit("{detection}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduling_detections_total counter: %w", err)
	}

	m.availabilityChecksTotal, err = meter.Int64Counter(
		"availability_checks_total",
		metric.WithDescription("Proposed slots checked for availability by result"),
		metric.WithUnit("{slot}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create availability_checks_total counter: %w", err)
	}

	m.toolInvocationsTotal, err = meter.Int64Counter(
		"mcp_tool_invocations_total",
		metric.WithDescription("Total number of MCP tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_invocations_total counter: %w", err)
	}

	m.toolDuration, err = meter.Float64Histogram(
		"mcp_tool_duration_seconds",
		metric.WithDescription("MCP tool execution duration in seconds"),
		metric.WithUnit("s"),
		durationBuckets,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordCalDAVOperation records one CalDAV operation.
//
// Parameters:
//   - operation: one of the Operation* constants
//   - calendarID: collection URL, only used as a label when detailedLabels is on
//   - status: "success" or "error"
//   - duration: time taken for the operation
func (m *Metrics) RecordCalDAVOperation(ctx context.Context, operation, calendarID, status string, duration time.Duration) {
	if m == nil || m.caldavOperationsTotal == nil || m.caldavOperationDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}
	if m.detailedLabels {
		attrs = append(attrs, attribute.String(attrCalendar, CalendarLabel(calendarID)))
	}

	m.caldavOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.caldavOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordCalendarFetchFailure counts a calendar dropped from a merged listing.
func (m *Metrics) RecordCalendarFetchFailure(ctx context.Context, calendarID string) {
	if m == nil || m.calendarFetchFailures == nil {
		return
	}
	m.calendarFetchFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrCalendar, CalendarLabel(calendarID)),
	))
}

// RecordMailFetch records an email fetch by the mail collaborator.
func (m *Metrics) RecordMailFetch(ctx context.Context, status string) {
	if m == nil || m.mailFetchesTotal == nil {
		return
	}
	m.mailFetchesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrService, ServiceGmail),
		attribute.String(attrStatus, status),
	))
}

// RecordSchedulingDetection records one detector verdict.
func (m *Metrics) RecordSchedulingDetection(ctx context.Context, hasIntent bool, confidence string) {
	if m == nil || m.schedulingDetectionsTotal == nil {
		return
	}
	m.schedulingDetectionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool(attrIntent, hasIntent),
		attribute.String(attrConfidence, confidence),
	))
}

// RecordAvailabilityCheck records the outcome for one proposed slot.
func (m *Metrics) RecordAvailabilityCheck(ctx context.Context, available bool) {
	if m == nil || m.availabilityChecksTotal == nil {
		return
	}
	result := "conflict"
	if available {
		result = "available"
	}
	m.availabilityChecksTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordToolInvocation records an MCP tool invocation with tool name, status, and duration.
//
// Parameters:
//   - toolName: Name of the MCP tool (e.g., "calendar_list_events")
//   - status: Result status ("success" or "error")
//   - duration: Time taken for the tool execution
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	if m == nil || m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}

	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
