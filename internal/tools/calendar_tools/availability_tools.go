package calendar_tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/inboxcal/internal/availability"
	"github.com/teemow/inboxcal/internal/calendar"
	"github.com/teemow/inboxcal/internal/instrumentation"
	"github.com/teemow/inboxcal/internal/server"
	"github.com/teemow/inboxcal/internal/tools/common"
)

type slotArg struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// RegisterAvailabilityTools registers the free/busy tool with the MCP server
func RegisterAvailabilityTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	checkTool := mcp.NewTool("calendar_check_availability",
		mcp.WithDescription("Check whether time slots are free across all calendars. Cancelled events are ignored and recurring events are expanded."),
		mcp.WithString("slots",
			mcp.Required(),
			mcp.Description(`JSON array of slots, e.g. [{"start":"2025-06-02T15:00:00Z","end":"2025-06-02T16:00:00Z"}]`),
		),
	)

	s.AddTool(checkTool, common.InstrumentedToolHandler("calendar_check_availability",
		instrumentation.ServiceCalDAV, instrumentation.OperationCheck, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCheckAvailability(ctx, request, sc)
		}))

	return nil
}

func handleCheckAvailability(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	raw := common.StringArg(request.GetArguments(), "slots")
	if raw == "" {
		return mcp.NewToolResultError("slots is required"), nil
	}
	var args []slotArg
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid slots: %v", err)), nil
	}
	if len(args) == 0 {
		return mcp.NewToolResultError("slots must contain at least one slot"), nil
	}

	slots := make([]availability.Slot, 0, len(args))
	for i, a := range args {
		start, err := common.ParseTime(a.Start, sc.Location())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid slot %d start: %v", i, err)), nil
		}
		end, err := common.ParseTime(a.End, sc.Location())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid slot %d end: %v", i, err)), nil
		}
		slots = append(slots, availability.Slot{Start: start, End: end})
	}

	checker := sc.Checker()
	if checker == nil {
		return common.ErrorResult("calendar unavailable", calendar.ErrFeatureDisabled), nil
	}
	report, err := checker.Check(ctx, slots)
	if err != nil {
		return common.ErrorResult("failed to check availability", err), nil
	}
	return jsonResult(report)
}
