// Package resources provides MCP resources for the configured calendar
// account. Resources are read-only data sources that MCP clients can
// fetch without calling a tool: the calendar list and today's agenda.
package resources
