package common

import (
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/inboxcal/internal/calendar"
	"github.com/teemow/inboxcal/internal/scheduling"
)

// ErrorResult turns err into a tool error result prefixed with its kind,
// e.g. "[EventNotFound] failed to get event: ...".
func ErrorResult(action string, err error) *mcp.CallToolResult {
	kind := calendar.ErrorKind(err)
	if errors.Is(err, scheduling.ErrEmailUnavailable) {
		kind = calendar.KindFeatureDisabled
	}
	return mcp.NewToolResultError(fmt.Sprintf("[%s] %s: %v", kind, action, err))
}
