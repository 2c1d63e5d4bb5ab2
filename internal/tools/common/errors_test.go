package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"

	"github.com/teemow/inboxcal/internal/calendar"
	"github.com/teemow/inboxcal/internal/scheduling"
)

func TestErrorResult(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "event not found",
			err:  fmt.Errorf("%w: abc", calendar.ErrEventNotFound),
			want: "[EventNotFound] failed to get event: ",
		},
		{
			name: "email unavailable",
			err:  scheduling.ErrEmailUnavailable,
			want: "[FeatureDisabled] failed to get event: ",
		},
		{
			name: "unknown",
			err:  errors.New("boom"),
			want: "[Internal] failed to get event: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ErrorResult("failed to get event", tt.err)
			assert.True(t, res.IsError)
			text := res.Content[0].(mcp.TextContent).Text
			assert.Contains(t, text, tt.want)
		})
	}
}
