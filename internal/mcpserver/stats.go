package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/ferdian/memoir/pkg/memory"
	"github.com/mark3labs/mcp-go/mcp"
)

// StatsTool handles the memoir_stats MCP tool.
type StatsTool struct {
	store *memory.Store
}

// NewStatsTool creates a StatsTool.
func NewStatsTool(store *memory.Store) *StatsTool {
	return &StatsTool{store: store}
}

// Definition returns the MCP tool definition for memoir_stats.
func (t *StatsTool) Definition() mcp.Tool {
	return mcp.NewTool("memoir_stats",
		mcp.WithDescription(
			"Show memory statistics — sessions, observations, prompts, and queue depth.",
		),
	)
}

// Handle processes the memoir_stats tool call.
func (t *StatsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := t.store.Stats(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get stats: %v", err)), nil
	}

	var sb strings.Builder
	sb.WriteString("## Memory Statistics\n\n")
	sb.WriteString(fmt.Sprintf("- **Sessions**: %d (%d active)\n", stats.Sessions, stats.ActiveSessions))
	sb.WriteString(fmt.Sprintf("- **Observations**: %d\n", stats.Observations))
	sb.WriteString(fmt.Sprintf("- **Summaries**: %d\n", stats.Summaries))
	sb.WriteString(fmt.Sprintf("- **User Prompts**: %d\n", stats.Prompts))
	sb.WriteString(fmt.Sprintf("- **Pending Events**: %d\n", stats.PendingDepth))

	return mcp.NewToolResultText(sb.String()), nil
}
