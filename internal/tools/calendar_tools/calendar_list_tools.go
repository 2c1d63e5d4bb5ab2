package calendar_tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/inboxcal/internal/instrumentation"
	"github.com/teemow/inboxcal/internal/server"
	"github.com/teemow/inboxcal/internal/tools/common"
)

// RegisterCalendarListTools registers calendar discovery tools with the MCP server
func RegisterCalendarListTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	listCalendarsTool := mcp.NewTool("calendar_list_calendars",
		mcp.WithDescription("List the calendars of the configured CalDAV account. Calendar ids can be passed to other calendar tools; a unique fragment of the id or the display name also works."),
		mcp.WithBoolean("refresh",
			mcp.Description("Re-run calendar discovery instead of using the cached list"),
		),
	)

	s.AddTool(listCalendarsTool, common.InstrumentedToolHandler("calendar_list_calendars",
		instrumentation.ServiceCalDAV, instrumentation.OperationList, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListCalendars(ctx, request, sc)
		}))

	return nil
}

func handleListCalendars(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	s, err := session(ctx, sc)
	if err != nil {
		return common.ErrorResult("calendar unavailable", err), nil
	}

	cals, err := s.Calendars()
	if common.BoolArg(request.GetArguments(), "refresh") {
		cals, err = s.DiscoverCalendars(ctx)
	}
	if err != nil {
		return common.ErrorResult("failed to list calendars", err), nil
	}
	return jsonResult(cals)
}
