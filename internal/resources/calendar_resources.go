package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/inboxcal/internal/server"
)

// Resource URIs.
const (
	CalendarsURI = "calendar://calendars"
	TodayURI     = "calendar://today"
)

// RegisterCalendarResources registers the calendar resources
func RegisterCalendarResources(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	calendarsResource := mcp.NewResource(
		CalendarsURI,
		"Calendars",
		mcp.WithResourceDescription("Calendars of the configured CalDAV account"),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(calendarsResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleCalendars(ctx, request, sc)
	})

	todayResource := mcp.NewResource(
		TodayURI,
		"Today's Agenda",
		mcp.WithResourceDescription("Events of the current day across all calendars"),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(todayResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleToday(ctx, request, sc)
	})

	return nil
}

// handleCalendars returns the discovered calendar collections
func handleCalendars(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	session, err := sc.Calendar(ctx)
	if err != nil {
		return nil, fmt.Errorf("calendar unavailable: %w", err)
	}
	cals, err := session.Calendars()
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}
	return jsonContents(request.Params.URI, map[string]interface{}{
		"account":   sc.User(),
		"calendars": cals,
	})
}

// handleToday returns today's events
func handleToday(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	session, err := sc.Calendar(ctx)
	if err != nil {
		return nil, fmt.Errorf("calendar unavailable: %w", err)
	}
	events, err := session.TodaysEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list today's events: %w", err)
	}
	return jsonContents(request.Params.URI, map[string]interface{}{
		"timezone": sc.Location().String(),
		"events":   events,
	})
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource data: %w", err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}
