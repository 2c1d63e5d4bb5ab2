package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/inboxcal/internal/icalendar"
)

func TestGetCategoryFromToolName(t *testing.T) {
	tests := map[string]string{
		"calendar_list_events":     "Calendar Tools",
		"scheduling_detect_intent": "Scheduling Tools",
		"gmail_list_threads":       "Other",
	}
	for name, want := range tests {
		assert.Equal(t, want, getCategoryFromToolName(name), name)
	}
}

func TestGenerateToolMarkdown(t *testing.T) {
	tool := mcp.NewTool("calendar_get_event",
		mcp.WithDescription("Get one event"),
		mcp.WithString("event", mcp.Required(), mcp.Description("UID or href")),
		mcp.WithString("calendarId", mcp.Description("Calendar URL or name")),
	)

	md := generateToolMarkdown(tool)
	assert.Contains(t, md, "### calendar_get_event")
	assert.Contains(t, md, "- `event` (required): UID or href")
	assert.Contains(t, md, "- `calendarId` (optional): Calendar URL or name")
	// Properties are sorted
	assert.Less(t, strings.Index(md, "calendarId"), strings.Index(md, "`event`"))
}

func TestBuildToolsMarkdown(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	md, err := buildToolsMarkdown()
	require.NoError(t, err)

	for _, name := range []string{
		"calendar_list_calendars",
		"calendar_update_event",
		"calendar_delete_event",
		"calendar_check_availability",
		"scheduling_create_from_email",
	} {
		assert.Contains(t, md, "### "+name)
	}
	assert.Contains(t, md, "## Calendar Tools")
	assert.Contains(t, md, "## Scheduling Tools")
}

func TestPrintAgenda(t *testing.T) {
	loc := time.UTC
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, loc)

	events := []icalendar.Event{
		{Summary: "Standup", Start: now.Add(time.Hour), End: now.Add(90 * time.Minute), Location: "Room 1"},
		{Summary: "Offsite", Start: time.Date(2025, 6, 3, 0, 0, 0, 0, loc), End: time.Date(2025, 6, 4, 0, 0, 0, 0, loc), AllDay: true},
		{Summary: "Dropped", Start: time.Date(2025, 6, 5, 14, 0, 0, 0, loc), End: time.Date(2025, 6, 5, 15, 0, 0, 0, loc), Status: icalendar.StatusCancelled},
	}

	var buf bytes.Buffer
	require.NoError(t, printAgenda(&buf, events, now))
	out := buf.String()

	assert.Contains(t, out, "Today, Mon Jun 2\n")
	assert.Contains(t, out, "10:00-10:30  Standup @ Room 1 (1 hour from now)")
	assert.Contains(t, out, "Tomorrow, Tue Jun 3\n")
	assert.Contains(t, out, "all day      Offsite")
	assert.Contains(t, out, "Thu Jun 5\n")
	assert.Contains(t, out, "Dropped [cancelled]")
}

func TestPrintAgenda_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printAgenda(&buf, nil, time.Now()))
	assert.Equal(t, "No upcoming events.\n", buf.String())
}

func TestDetectCmd_Text(t *testing.T) {
	cmd := newDetectCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--subject", "Meeting tomorrow", "--body", "Can we meet at 3pm?"})
	require.NoError(t, cmd.Execute())

	var got struct {
		HasIntent  bool   `json:"has_intent"`
		Confidence string `json:"confidence"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.True(t, got.HasIntent)
	assert.NotEmpty(t, got.Confidence)
}

func TestDetectCmd_FlagValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "no input", args: []string{}},
		{name: "both sources", args: []string{"--email-id", "abc", "--subject", "hi"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newDetectCmd()
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetArgs(tt.args)
			assert.Error(t, cmd.Execute())
		})
	}
}

func TestVersionCmd(t *testing.T) {
	cmd := newVersionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "inboxcal "+version+"\n", out.String())
}
