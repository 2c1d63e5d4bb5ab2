// Package instrumentation provides OpenTelemetry metrics, tracing and audit
// logging for the inboxcal MCP server.
//
// # Metrics
//
// CalDAV:
//   - caldav_operations_total: operations by operation and status
//   - caldav_operation_duration_seconds: operation latency
//   - calendar_fetch_failures_total: calendars dropped from a merged listing
//
// Mail and scheduling:
//   - mail_fetches_total: email fetches by status
//   - scheduling_detections_total: detector verdicts by intent and confidence
//   - availability_checks_total: proposed slots by result
//
// MCP tools:
//   - mcp_tool_invocations_total: invocations by tool and status
//   - mcp_tool_duration_seconds: tool latency
//
// Calendar labels are reduced with CalendarLabel and only attached to CalDAV
// operation metrics when METRICS_DETAILED_LABELS is set.
//
// # Tracing
//
// Spans are created for MCP tool invocations (tool.<name>) and CalDAV
// operations (caldav.<operation>). The CalDAV HTTP transport is additionally
// wrapped with otelhttp so each request is a child span.
//
// # Configuration
//
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: prometheus, otlp or stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout or none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: inboxcal)
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	provider.Metrics().RecordCalDAVOperation(ctx, instrumentation.OperationList, calendarURL, "success", time.Since(start))
package instrumentation
