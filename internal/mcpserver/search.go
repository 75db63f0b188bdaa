package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/ferdian/memoir/pkg/search"
	"github.com/mark3labs/mcp-go/mcp"
)

// SearchTool handles the memoir_search MCP tool.
type SearchTool struct {
	orchestrator *search.Orchestrator
}

// NewSearchTool creates a SearchTool.
func NewSearchTool(orchestrator *search.Orchestrator) *SearchTool {
	return &SearchTool{orchestrator: orchestrator}
}

// Definition returns the MCP tool definition for memoir_search.
func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool("memoir_search",
		mcp.WithDescription(
			"Search past coding sessions. Use this to recall earlier decisions, "+
				"bugs fixed, files changed, or any context from previous work.",
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query — natural language or keywords"),
		),
		mcp.WithString("project",
			mcp.Description("Filter by project name"),
		),
		mcp.WithString("type",
			mcp.Description("Filter by observation type: change, discovery, prompt, session"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 10, max: 100)"),
		),
	)
}

// Handle processes the memoir_search tool call.
func (t *SearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}

	result, err := t.orchestrator.Search(ctx, search.Query{
		Text:    query,
		Project: req.GetString("project", ""),
		Type:    req.GetString("type", ""),
		Limit:   intArg(req, "limit", 10),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	if len(result.Items) == 0 {
		return mcp.NewToolResultText("No past work found matching your query."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d results", len(result.Items))
	if result.Degraded {
		b.WriteString(" (degraded: a search strategy was unavailable)")
	}
	b.WriteString(":\n\n")

	for i, item := range result.Items {
		fmt.Fprintf(&b, "[%d] #%d (%s) %s — %s\n", i+1, item.ObservationID, item.Type, item.Title, item.Age)
		if item.Snippet != "" {
			fmt.Fprintf(&b, "    %s\n", item.Snippet)
		}
		if len(item.Files) > 0 {
			fmt.Fprintf(&b, "    files: %s\n", strings.Join(item.Files, ", "))
		}
		fmt.Fprintf(&b, "    project: %s | score: %.2f\n\n", item.Project, item.Score)
	}

	return mcp.NewToolResultText(b.String()), nil
}
