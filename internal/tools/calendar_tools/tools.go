package calendar_tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/inboxcal/internal/calendar"
	"github.com/teemow/inboxcal/internal/icalendar"
	"github.com/teemow/inboxcal/internal/server"
)

// RegisterCalendarTools registers all calendar tools with the MCP server
func RegisterCalendarTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	if err := RegisterCalendarListTools(s, sc); err != nil {
		return fmt.Errorf("failed to register calendar list tools: %w", err)
	}
	if err := RegisterEventTools(s, sc, !sc.Yolo()); err != nil {
		return fmt.Errorf("failed to register event tools: %w", err)
	}
	if err := RegisterAvailabilityTools(s, sc); err != nil {
		return fmt.Errorf("failed to register availability tools: %w", err)
	}
	return nil
}

// jsonResult renders v as indented JSON.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}

// formatEvents renders events as a numbered list.
func formatEvents(events []icalendar.Event, loc *time.Location) string {
	if len(events) == 0 {
		return "No events found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d events:\n\n", len(events))
	for i, event := range events {
		fmt.Fprintf(&b, "%d. %s\n", i+1, event.Summary)
		fmt.Fprintf(&b, "   UID: %s\n", event.UID)
		if event.URL != "" {
			fmt.Fprintf(&b, "   URL: %s\n", event.URL)
		}
		if event.AllDay {
			fmt.Fprintf(&b, "   Date: %s (all day)\n", event.Start.In(loc).Format("2006-01-02"))
		} else {
			fmt.Fprintf(&b, "   Start: %s\n", event.Start.In(loc).Format(time.RFC3339))
			fmt.Fprintf(&b, "   End: %s\n", event.End.In(loc).Format(time.RFC3339))
		}
		if event.Location != "" {
			fmt.Fprintf(&b, "   Location: %s\n", event.Location)
		}
		if link := event.MeetingLink(); link != "" {
			fmt.Fprintf(&b, "   Meeting: %s\n", link)
		}
		if event.Status != "" {
			fmt.Fprintf(&b, "   Status: %s\n", event.Status)
		}
		if len(event.Attendees) > 0 {
			fmt.Fprintf(&b, "   Attendees: %d\n", len(event.Attendees))
		}
		if event.Recurring() {
			fmt.Fprintf(&b, "   Repeats: %s\n", event.RecurrenceRule)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// session returns the logged-in calendar session.
func session(ctx context.Context, sc *server.ServerContext) (*calendar.Session, error) {
	return sc.Calendar(ctx)
}
