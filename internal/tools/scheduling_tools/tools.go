package scheduling_tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/inboxcal/internal/instrumentation"
	"github.com/teemow/inboxcal/internal/scheduling"
	"github.com/teemow/inboxcal/internal/server"
	"github.com/teemow/inboxcal/internal/tools/batch"
	"github.com/teemow/inboxcal/internal/tools/common"
)

// RegisterSchedulingTools registers email scheduling tools with the MCP server
func RegisterSchedulingTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	detectTool := mcp.NewTool("scheduling_detect_intent",
		mcp.WithDescription("Detect whether an email is about scheduling a meeting. Pass either emailId or subject/body."),
		mcp.WithString("emailId",
			mcp.Description("Gmail message id to analyze"),
		),
		mcp.WithString("subject",
			mcp.Description("Email subject, when analyzing raw text"),
		),
		mcp.WithString("body",
			mcp.Description("Email body, when analyzing raw text"),
		),
	)
	s.AddTool(detectTool, common.InstrumentedToolHandler("scheduling_detect_intent",
		instrumentation.ServiceScheduling, instrumentation.OperationDetect, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleDetectIntent(ctx, request, sc)
		}))

	batchTool := mcp.NewTool("scheduling_detect_intent_batch",
		mcp.WithDescription("Detect scheduling intent for several Gmail messages at once. "+
			"Messages that cannot be fetched are reported individually."),
		mcp.WithArray("emailIds",
			mcp.Required(),
			mcp.Description("Gmail message ids"),
			mcp.WithStringItems(),
		),
		mcp.WithBoolean("intentOnly",
			mcp.Description("Only return messages with scheduling intent"),
		),
	)
	s.AddTool(batchTool, common.InstrumentedToolHandler("scheduling_detect_intent_batch",
		instrumentation.ServiceScheduling, instrumentation.OperationDetect, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleDetectIntentBatch(ctx, request, sc)
		}))

	previewTool := mcp.NewTool("scheduling_email_to_event",
		mcp.WithDescription("Preview turning an email into a calendar event. Nothing is created. "+
			"With confirm=true the result lists the inputs to extract from the email before calling scheduling_create_from_email."),
		mcp.WithString("emailId",
			mcp.Required(),
			mcp.Description("Gmail message id"),
		),
		mcp.WithBoolean("confirm",
			mcp.Description("Request the creation step instead of a plain preview"),
		),
	)
	s.AddTool(previewTool, common.InstrumentedToolHandler("scheduling_email_to_event",
		instrumentation.ServiceScheduling, instrumentation.OperationDetect, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleEmailToEvent(ctx, request, sc)
		}))

	createTool := mcp.NewTool("scheduling_create_from_email",
		mcp.WithDescription("Create a calendar event from an email using times extracted by the caller. "+
			"The sender becomes an attendee and the email id is kept in the description."),
		mcp.WithString("emailId",
			mcp.Required(),
			mcp.Description("Gmail message id"),
		),
		mcp.WithString("calendarId",
			mcp.Required(),
			mcp.Description("Calendar id from calendar_list_calendars"),
		),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("Start time (RFC3339; times without offset use the configured timezone)"),
		),
		mcp.WithString("end",
			mcp.Required(),
			mcp.Description("End time (RFC3339)"),
		),
		mcp.WithString("title",
			mcp.Description("Event title. Defaults to the email subject without reply prefixes."),
		),
		mcp.WithString("location",
			mcp.Description("Event location"),
		),
		mcp.WithBoolean("allDay",
			mcp.Description("Create as all-day event"),
		),
		mcp.WithBoolean("checkAvailability",
			mcp.Description("Refuse to create the event over existing events"),
		),
		mcp.WithBoolean("force",
			mcp.Description("Create even when checkAvailability found conflicts"),
		),
	)
	s.AddTool(createTool, common.InstrumentedToolHandler("scheduling_create_from_email",
		instrumentation.ServiceScheduling, instrumentation.OperationCreate, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCreateFromEmail(ctx, request, sc)
		}))

	return nil
}

type detectResponse struct {
	EmailID   string            `json:"email_id,omitempty"`
	Subject   string            `json:"subject,omitempty"`
	Detection scheduling.Result `json:"detection"`
}

func handleDetectIntent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	emailID := common.StringArg(args, "emailId")
	subject := common.StringArg(args, "subject")
	body := common.StringArg(args, "body")

	if emailID == "" {
		if subject == "" && body == "" {
			return mcp.NewToolResultError("either emailId or subject/body is required"), nil
		}
		return jsonResult(detectResponse{
			Subject:   subject,
			Detection: sc.Orchestrator().DetectText(ctx, subject, body),
		})
	}

	email, res, err := sc.Orchestrator().DetectEmail(ctx, emailID)
	if err != nil {
		return common.ErrorResult("failed to fetch email", err), nil
	}
	return jsonResult(detectResponse{EmailID: emailID, Subject: email.Subject, Detection: res})
}

func handleDetectIntentBatch(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	emailIDs, err := batch.ParseStringOrArray(args["emailIds"], "emailIds")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	results := batch.Process(ctx, emailIDs, batch.DefaultConcurrency, func(ctx context.Context, id string) (any, error) {
		email, res, err := sc.Orchestrator().DetectEmail(ctx, id)
		if err != nil {
			return nil, err
		}
		return detectResponse{Subject: email.Subject, Detection: res}, nil
	})

	if common.BoolArg(args, "intentOnly") {
		kept := results[:0]
		for _, r := range results {
			if d, ok := r.Result.(detectResponse); ok && !d.Detection.HasIntent {
				continue
			}
			kept = append(kept, r)
		}
		results = kept
	}

	return jsonResult(batch.Summarize(results))
}

func handleEmailToEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	emailID := common.StringArg(args, "emailId")
	if emailID == "" {
		return mcp.NewToolResultError("emailId is required"), nil
	}

	preview, err := sc.Orchestrator().Preview(ctx, emailID, common.BoolArg(args, "confirm"))
	if err != nil {
		return common.ErrorResult("failed to preview email", err), nil
	}
	return jsonResult(preview)
}

func handleCreateFromEmail(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	emailID := common.StringArg(args, "emailId")
	if emailID == "" {
		return mcp.NewToolResultError("emailId is required"), nil
	}

	req := scheduling.ScheduleRequest{
		CalendarID:        common.StringArg(args, "calendarId"),
		Title:             common.StringArg(args, "title"),
		Location:          common.StringArg(args, "location"),
		AllDay:            common.BoolArg(args, "allDay"),
		CheckAvailability: common.BoolArg(args, "checkAvailability"),
		Force:             common.BoolArg(args, "force"),
	}
	if req.CalendarID == "" {
		return mcp.NewToolResultError("calendarId is required"), nil
	}
	var err error
	if req.Start, err = common.ParseTime(common.StringArg(args, "start"), sc.Location()); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid start: %v", err)), nil
	}
	if req.End, err = common.ParseTime(common.StringArg(args, "end"), sc.Location()); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid end: %v", err)), nil
	}

	res, err := sc.Orchestrator().Schedule(ctx, emailID, req)
	if err != nil {
		return common.ErrorResult("failed to create event from email", err), nil
	}
	return jsonResult(res)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}
