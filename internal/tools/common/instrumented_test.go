package common

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/teemow/inboxcal/internal/config"
	"github.com/teemow/inboxcal/internal/instrumentation"
	"github.com/teemow/inboxcal/internal/server"
)

func newServerContext(t *testing.T, opts server.Options) *server.ServerContext {
	t.Helper()
	cfg := config.Default()
	cfg.CalDAV.Username = "jane@example.com"
	dir := t.TempDir()
	cfg.Gmail.TokenFile = filepath.Join(dir, "token.json")
	cfg.Gmail.CredentialsFile = filepath.Join(dir, "credentials.json")
	opts.Config = cfg
	sc, err := server.NewServerContext(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func TestInstrumentedToolHandler_Success(t *testing.T) {
	sc := newServerContext(t, server.Options{})

	called := false
	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		called = true
		return mcp.NewToolResultText("success"), nil
	}

	wrapped := InstrumentedToolHandler("test_tool", instrumentation.ServiceCalDAV, instrumentation.OperationList, sc, handler)
	result, err := wrapped(context.Background(), mcp.CallToolRequest{})

	require.NoError(t, err)
	assert.True(t, called)
	require.NotNil(t, result)
	assert.False(t, result.IsError)
}

func TestInstrumentedToolHandler_Error(t *testing.T) {
	sc := newServerContext(t, server.Options{})

	expectedErr := errors.New("test error")
	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return nil, expectedErr
	}

	wrapped := InstrumentedToolHandler("test_tool", instrumentation.ServiceCalDAV, instrumentation.OperationGet, sc, handler)
	_, err := wrapped(context.Background(), mcp.CallToolRequest{})
	assert.Equal(t, expectedErr, err)
}

func TestInstrumentedToolHandler_MetricsAndAudit(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := instrumentation.NewMetrics(provider.Meter("test"), false)
	require.NoError(t, err)

	var buf bytes.Buffer
	audit := instrumentation.NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)),
		instrumentation.AuditLoggingConfig{Enabled: true})

	sc := newServerContext(t, server.Options{Metrics: metrics, Audit: audit})

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultError("[EventNotFound] nope"), nil
	}
	wrapped := InstrumentedToolHandler("calendar_get_event", instrumentation.ServiceCalDAV, instrumentation.OperationGet, sc, handler)

	result, err := wrapped(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	assert.True(t, result.IsError)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	found := false
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == "mcp_tool_invocations_total" {
				found = true
			}
		}
	}
	assert.True(t, found, "mcp_tool_invocations_total not recorded")

	out := buf.String()
	assert.Contains(t, out, "tool_failed")
	assert.Contains(t, out, "calendar_get_event")
	assert.NotContains(t, out, "jane@example.com")
}
