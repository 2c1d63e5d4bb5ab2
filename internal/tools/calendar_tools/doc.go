// Package calendar_tools provides MCP tools for CalDAV calendars.
//
// Read tools and calendar_create_event are always registered.
// calendar_update_event and calendar_delete_event need the server to run
// with --yolo.
package calendar_tools
