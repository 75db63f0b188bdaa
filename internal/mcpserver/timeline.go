package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ferdian/memoir/pkg/search"
)

// TimelineTool handles the memoir_timeline MCP tool.
type TimelineTool struct {
	orchestrator *search.Orchestrator
}

// NewTimelineTool creates a TimelineTool.
func NewTimelineTool(orchestrator *search.Orchestrator) *TimelineTool {
	return &TimelineTool{orchestrator: orchestrator}
}

// Definition returns the MCP tool definition for memoir_timeline.
func (t *TimelineTool) Definition() mcp.Tool {
	return mcp.NewTool("memoir_timeline",
		mcp.WithDescription(
			"Show a chronological view of past session activity, grouped by day and session.",
		),
		mcp.WithString("project",
			mcp.Description("Filter by project name"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max entries (default: 100)"),
		),
	)
}

// Handle processes the memoir_timeline tool call.
func (t *TimelineTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	timeline, err := t.orchestrator.BuildTimeline(ctx,
		req.GetString("project", ""), nil, nil, intArg(req, "limit", 100))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("timeline failed: %v", err)), nil
	}

	if len(timeline.Days) == 0 {
		return mcp.NewToolResultText("No recorded activity yet."), nil
	}

	var b strings.Builder
	for _, day := range timeline.Days {
		fmt.Fprintf(&b, "## %s\n\n", day.Date)
		for _, sess := range day.Sessions {
			fmt.Fprintf(&b, "Session %s (%s):\n", sess.SessionID, sess.Project)
			for _, e := range sess.Entries {
				fmt.Fprintf(&b, "  %s [%s] %s\n", e.CreatedAt.Format("15:04"), e.Kind, e.Title)
			}
			b.WriteString("\n")
		}
	}

	return mcp.NewToolResultText(b.String()), nil
}
