package calendar_tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/inboxcal/internal/calendar"
	"github.com/teemow/inboxcal/internal/icalendar"
	"github.com/teemow/inboxcal/internal/instrumentation"
	"github.com/teemow/inboxcal/internal/server"
	"github.com/teemow/inboxcal/internal/tools/common"
)

const calendarIDDescription = "Calendar id from calendar_list_calendars, a unique fragment of it, or a display name"

// RegisterEventTools registers event-related tools with the MCP server
func RegisterEventTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	register := func(tool mcp.Tool, operation string, handler func(context.Context, mcp.CallToolRequest, *server.ServerContext) (*mcp.CallToolResult, error)) {
		s.AddTool(tool, common.InstrumentedToolHandler(tool.Name, instrumentation.ServiceCalDAV, operation, sc,
			func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return handler(ctx, request, sc)
			}))
	}

	// List events tool (read-only, always available)
	listEventsTool := mcp.NewTool("calendar_list_events",
		mcp.WithDescription("List calendar events overlapping a time range, sorted by start. Without calendarId all calendars are searched; calendars that fail are skipped."),
		mcp.WithString("calendarId",
			mcp.Description(calendarIDDescription+". Omit to search all calendars."),
		),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("Start of the range (RFC3339, e.g. '2025-06-02T00:00:00Z', or YYYY-MM-DD)"),
		),
		mcp.WithString("end",
			mcp.Required(),
			mcp.Description("End of the range (RFC3339 or YYYY-MM-DD)"),
		),
	)
	register(listEventsTool, instrumentation.OperationList, handleListEvents)

	getEventTool := mcp.NewTool("calendar_get_event",
		mcp.WithDescription("Get a single calendar event by UID, resource name or URL"),
		mcp.WithString("calendarId",
			mcp.Required(),
			mcp.Description(calendarIDDescription),
		),
		mcp.WithString("event",
			mcp.Required(),
			mcp.Description("Event UID, resource name ('abc.ics') or absolute URL"),
		),
	)
	register(getEventTool, instrumentation.OperationGet, handleGetEvent)

	todayTool := mcp.NewTool("calendar_today",
		mcp.WithDescription("List today's events across all calendars"),
	)
	register(todayTool, instrumentation.OperationList, handleToday)

	upcomingTool := mcp.NewTool("calendar_upcoming",
		mcp.WithDescription("List events from now until a number of days ahead across all calendars"),
		mcp.WithNumber("days",
			mcp.Description("Number of days to look ahead (default: 7)"),
		),
	)
	register(upcomingTool, instrumentation.OperationList, handleUpcoming)

	createEventTool := mcp.NewTool("calendar_create_event",
		mcp.WithDescription("Create a new calendar event. Fails with ConflictingWrite if an event with the same UID exists."),
		mcp.WithString("calendarId",
			mcp.Required(),
			mcp.Description(calendarIDDescription),
		),
		mcp.WithString("summary",
			mcp.Required(),
			mcp.Description("Event title"),
		),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("Start time (RFC3339, e.g. '2025-06-02T15:00:00+02:00'; times without offset use the configured timezone)"),
		),
		mcp.WithString("end",
			mcp.Required(),
			mcp.Description("End time (RFC3339). For all-day events the exclusive end date."),
		),
		mcp.WithString("description",
			mcp.Description("Event description"),
		),
		mcp.WithString("location",
			mcp.Description("Event location"),
		),
		mcp.WithString("attendees",
			mcp.Description("Comma-separated list of attendee email addresses"),
		),
		mcp.WithString("uid",
			mcp.Description("Event UID. Generated when omitted."),
		),
		mcp.WithBoolean("allDay",
			mcp.Description("Create as all-day event (ignores time portion of start/end)"),
		),
	)
	register(createEventTool, instrumentation.OperationCreate, handleCreateEvent)

	// Register update/delete tools only if not in read-only mode
	if !readOnly {
		updateEventTool := mcp.NewTool("calendar_update_event",
			mcp.WithDescription("Update fields of an existing event. Only the given fields change. Pass the etag from calendar_get_event to avoid overwriting concurrent edits. Properties other than the ones listed here (alarms, custom fields) are not preserved."),
			mcp.WithString("calendarId",
				mcp.Required(),
				mcp.Description(calendarIDDescription),
			),
			mcp.WithString("event",
				mcp.Required(),
				mcp.Description("Event UID, resource name or URL"),
			),
			mcp.WithString("etag",
				mcp.Description("ETag the update is conditional on"),
			),
			mcp.WithString("summary",
				mcp.Description("New event title"),
			),
			mcp.WithString("description",
				mcp.Description("New event description"),
			),
			mcp.WithString("location",
				mcp.Description("New event location"),
			),
			mcp.WithString("start",
				mcp.Description("New start time (RFC3339)"),
			),
			mcp.WithString("end",
				mcp.Description("New end time (RFC3339)"),
			),
			mcp.WithString("status",
				mcp.Description("New status: CONFIRMED, TENTATIVE or CANCELLED"),
			),
			mcp.WithString("attendees",
				mcp.Description("Comma-separated attendee email addresses, replacing the current list"),
			),
		)
		register(updateEventTool, instrumentation.OperationUpdate, handleUpdateEvent)

		deleteEventTool := mcp.NewTool("calendar_delete_event",
			mcp.WithDescription("Delete a calendar event"),
			mcp.WithString("calendarId",
				mcp.Required(),
				mcp.Description(calendarIDDescription),
			),
			mcp.WithString("event",
				mcp.Required(),
				mcp.Description("Event UID, resource name or URL"),
			),
			mcp.WithString("etag",
				mcp.Description("ETag the delete is conditional on. Without it the delete is unconditional."),
			),
		)
		register(deleteEventTool, instrumentation.OperationDelete, handleDeleteEvent)
	}

	return nil
}

func handleListEvents(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	start, err := common.ParseTime(common.StringArg(args, "start"), sc.Location())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid start: %v", err)), nil
	}
	end, err := common.ParseTime(common.StringArg(args, "end"), sc.Location())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid end: %v", err)), nil
	}

	s, err := session(ctx, sc)
	if err != nil {
		return common.ErrorResult("calendar unavailable", err), nil
	}
	events, err := s.ListEvents(ctx, common.StringArg(args, "calendarId"), start, end)
	if err != nil {
		return common.ErrorResult("failed to list events", err), nil
	}
	return mcp.NewToolResultText(formatEvents(events, sc.Location())), nil
}

func handleGetEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	calendarID := common.StringArg(args, "calendarId")
	locator := common.StringArg(args, "event")
	if calendarID == "" || locator == "" {
		return mcp.NewToolResultError("calendarId and event are required"), nil
	}

	s, err := session(ctx, sc)
	if err != nil {
		return common.ErrorResult("calendar unavailable", err), nil
	}
	event, err := s.GetEvent(ctx, calendarID, locator)
	if err != nil {
		return common.ErrorResult("failed to get event", err), nil
	}
	return jsonResult(event)
}

func handleToday(ctx context.Context, _ mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	s, err := session(ctx, sc)
	if err != nil {
		return common.ErrorResult("calendar unavailable", err), nil
	}
	events, err := s.TodaysEvents(ctx)
	if err != nil {
		return common.ErrorResult("failed to list today's events", err), nil
	}
	return mcp.NewToolResultText(formatEvents(events, sc.Location())), nil
}

func handleUpcoming(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	days := common.IntArg(request.GetArguments(), "days", 0)

	s, err := session(ctx, sc)
	if err != nil {
		return common.ErrorResult("calendar unavailable", err), nil
	}
	events, err := s.UpcomingEvents(ctx, days)
	if err != nil {
		return common.ErrorResult("failed to list upcoming events", err), nil
	}
	return mcp.NewToolResultText(formatEvents(events, sc.Location())), nil
}

func handleCreateEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	calendarID := common.StringArg(args, "calendarId")
	if calendarID == "" {
		return mcp.NewToolResultError("calendarId is required"), nil
	}

	start, err := common.ParseTime(common.StringArg(args, "start"), sc.Location())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid start: %v", err)), nil
	}
	end, err := common.ParseTime(common.StringArg(args, "end"), sc.Location())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid end: %v", err)), nil
	}

	event := &icalendar.Event{
		UID:         common.StringArg(args, "uid"),
		Summary:     common.StringArg(args, "summary"),
		Description: common.StringArg(args, "description"),
		Location:    common.StringArg(args, "location"),
		Start:       start,
		End:         end,
		AllDay:      common.BoolArg(args, "allDay"),
		Attendees:   parseAttendees(common.StringArg(args, "attendees")),
	}

	s, err := session(ctx, sc)
	if err != nil {
		return common.ErrorResult("calendar unavailable", err), nil
	}
	created, err := s.CreateEvent(ctx, calendarID, event)
	if err != nil {
		return common.ErrorResult("failed to create event", err), nil
	}
	return jsonResult(created)
}

func handleUpdateEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	calendarID := common.StringArg(args, "calendarId")
	locator := common.StringArg(args, "event")
	if calendarID == "" || locator == "" {
		return mcp.NewToolResultError("calendarId and event are required"), nil
	}

	patch := calendar.EventPatch{
		Summary:     common.OptionalString(args, "summary"),
		Description: common.OptionalString(args, "description"),
		Location:    common.OptionalString(args, "location"),
	}
	for _, field := range []struct {
		name string
		dst  **time.Time
	}{{"start", &patch.Start}, {"end", &patch.End}} {
		raw := common.StringArg(args, field.name)
		if raw == "" {
			continue
		}
		t, err := common.ParseTime(raw, sc.Location())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid %s: %v", field.name, err)), nil
		}
		*field.dst = &t
	}
	if status := common.StringArg(args, "status"); status != "" {
		status = strings.ToUpper(status)
		switch status {
		case icalendar.StatusConfirmed, icalendar.StatusTentative, icalendar.StatusCancelled:
		default:
			return mcp.NewToolResultError(fmt.Sprintf("Invalid status %q", status)), nil
		}
		patch.Status = &status
	}
	if raw := common.OptionalString(args, "attendees"); raw != nil {
		attendees := parseAttendees(*raw)
		patch.Attendees = &attendees
	}
	if patch.IsEmpty() {
		return mcp.NewToolResultError("nothing to update: pass at least one field"), nil
	}

	s, err := session(ctx, sc)
	if err != nil {
		return common.ErrorResult("calendar unavailable", err), nil
	}
	updated, err := s.UpdateEvent(ctx, calendarID, locator, common.StringArg(args, "etag"), patch)
	if err != nil {
		return common.ErrorResult("failed to update event", err), nil
	}
	return jsonResult(updated)
}

func handleDeleteEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	calendarID := common.StringArg(args, "calendarId")
	locator := common.StringArg(args, "event")
	if calendarID == "" || locator == "" {
		return mcp.NewToolResultError("calendarId and event are required"), nil
	}

	s, err := session(ctx, sc)
	if err != nil {
		return common.ErrorResult("calendar unavailable", err), nil
	}
	if err := s.DeleteEvent(ctx, calendarID, locator, common.StringArg(args, "etag")); err != nil {
		return common.ErrorResult("failed to delete event", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Event %s deleted successfully", locator)), nil
}

// parseAttendees splits a comma-separated address list.
func parseAttendees(raw string) []icalendar.Attendee {
	var attendees []icalendar.Attendee
	for _, part := range strings.Split(raw, ",") {
		if email := strings.TrimSpace(part); email != "" {
			attendees = append(attendees, icalendar.Attendee{Email: email})
		}
	}
	return attendees
}
