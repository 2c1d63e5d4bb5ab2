// Package scheduling_tools provides MCP tools that turn emails into
// calendar events.
//
// Detection is keyword and pattern based. The tools never guess event
// times: scheduling_email_to_event reports what it found and which inputs
// are missing, and scheduling_create_from_email needs the caller to
// supply start and end explicitly.
package scheduling_tools
