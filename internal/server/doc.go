// Package server holds the state shared by the MCP tool handlers and the
// HTTP endpoints that run next to the stdio transport.
//
// ServerContext owns one CalDAV session for the configured account, the
// availability checker and scheduling orchestrator built on it, and an
// optional Gmail client. The session logs in lazily on the first tool call
// that needs it, so the server starts even when the CalDAV server is
// unreachable.
//
// MetricsServer exposes Prometheus metrics and the health probes from
// HealthChecker on a dedicated port.
package server
