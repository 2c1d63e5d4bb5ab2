package instrumentation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T, detailed bool) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp.Meter("test"), detailed)
	require.NoError(t, err)
	return m, reader
}

// counterTotal sums all data points of the named Int64 counter.
func counterTotal(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestMetrics_RecordCalDAVOperation(t *testing.T) {
	ctx := context.Background()
	m, reader := newTestMetrics(t, true)

	m.RecordCalDAVOperation(ctx, OperationList, "https://dav.example.com/cal/work/", StatusSuccess, 120*time.Millisecond)
	m.RecordCalDAVOperation(ctx, OperationCreate, "", StatusError, 30*time.Millisecond)

	assert.Equal(t, int64(2), counterTotal(t, reader, "caldav_operations_total"))
}

func TestMetrics_RecordCalendarFetchFailure(t *testing.T) {
	ctx := context.Background()
	m, reader := newTestMetrics(t, false)

	m.RecordCalendarFetchFailure(ctx, "https://dav.example.com/cal/work/")
	m.RecordCalendarFetchFailure(ctx, "https://dav.example.com/cal/home/")

	assert.Equal(t, int64(2), counterTotal(t, reader, "calendar_fetch_failures_total"))
}

func TestMetrics_SchedulingAndAvailability(t *testing.T) {
	ctx := context.Background()
	m, reader := newTestMetrics(t, false)

	m.RecordSchedulingDetection(ctx, true, "HIGH")
	m.RecordSchedulingDetection(ctx, false, "LOW")
	m.RecordAvailabilityCheck(ctx, true)
	m.RecordAvailabilityCheck(ctx, false)
	m.RecordAvailabilityCheck(ctx, false)
	m.RecordMailFetch(ctx, StatusSuccess)

	assert.Equal(t, int64(2), counterTotal(t, reader, "scheduling_detections_total"))
	assert.Equal(t, int64(3), counterTotal(t, reader, "availability_checks_total"))
	assert.Equal(t, int64(1), counterTotal(t, reader, "mail_fetches_total"))
}

func TestMetrics_RecordToolInvocation(t *testing.T) {
	ctx := context.Background()
	m, reader := newTestMetrics(t, false)

	m.RecordToolInvocation(ctx, "calendar_list_events", StatusSuccess, 250*time.Millisecond)
	m.RecordToolInvocation(ctx, "calendar_create_event", StatusError, 10*time.Millisecond)

	assert.Equal(t, int64(2), counterTotal(t, reader, "mcp_tool_invocations_total"))
}

func TestMetrics_NilAndZeroAreNoOps(t *testing.T) {
	ctx := context.Background()

	var nilMetrics *Metrics
	zero := &Metrics{}

	for _, m := range []*Metrics{nilMetrics, zero} {
		// Should not panic
		m.RecordCalDAVOperation(ctx, OperationGet, "", StatusSuccess, time.Millisecond)
		m.RecordCalendarFetchFailure(ctx, "x")
		m.RecordMailFetch(ctx, StatusError)
		m.RecordSchedulingDetection(ctx, true, "MEDIUM")
		m.RecordAvailabilityCheck(ctx, true)
		m.RecordToolInvocation(ctx, "t", StatusSuccess, time.Millisecond)
	}
}
