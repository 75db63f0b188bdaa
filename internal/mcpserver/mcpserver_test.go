package mcpserver

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ferdian/memoir/internal/config"
	"github.com/ferdian/memoir/pkg/memory"
	"github.com/ferdian/memoir/pkg/search"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFixture(t *testing.T) (*search.Orchestrator, *memory.Store) {
	t.Helper()

	db, err := memory.Open(filepath.Join(t.TempDir(), "memoir.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, memory.Migrate(db, zerolog.Nop()))

	store := memory.NewStore(db, zerolog.Nop())
	merger := search.NewMerger([]search.Strategy{search.NewLexicalStrategy(store)},
		nil, time.Second, zerolog.Nop())
	return search.NewOrchestrator(merger, store, 200, zerolog.Nop()), store
}

func makeReq(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, r *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, r)
	require.NotEmpty(t, r.Content)
	tc, ok := r.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return tc.Text
}

func TestSearchTool_Definition(t *testing.T) {
	orch, _ := newFixture(t)
	def := NewSearchTool(orch).Definition()

	assert.Equal(t, "memoir_search", def.Name)
	assert.Contains(t, def.InputSchema.Properties, "query")
	assert.Contains(t, def.InputSchema.Properties, "project")
	assert.Contains(t, def.InputSchema.Required, "query")
}

func TestSearchTool_RequiresQuery(t *testing.T) {
	orch, _ := newFixture(t)
	tool := NewSearchTool(orch)

	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestSearchTool_FindsObservations(t *testing.T) {
	orch, store := newFixture(t)
	ctx := context.Background()

	_, err := store.AddObservation(ctx, &memory.Observation{
		SessionID: "s1", Project: "webapp", Type: "change",
		Title: "Fixed reconnect race", Narrative: "websocket reconnect raced shutdown",
	})
	require.NoError(t, err)

	tool := NewSearchTool(orch)
	res, err := tool.Handle(ctx, makeReq(map[string]interface{}{"query": "reconnect"}))
	require.NoError(t, err)

	text := resultText(t, res)
	assert.Contains(t, text, "Fixed reconnect race")
	assert.Contains(t, text, "webapp")
}

func TestSearchTool_NoResults(t *testing.T) {
	orch, _ := newFixture(t)
	tool := NewSearchTool(orch)

	res, err := tool.Handle(context.Background(),
		makeReq(map[string]interface{}{"query": "nonexistent"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "No past work found")
}

func TestTimelineTool_GroupsByDay(t *testing.T) {
	orch, store := newFixture(t)
	ctx := context.Background()

	_, err := store.CreateSession(ctx, "s1", "webapp")
	require.NoError(t, err)
	_, err = store.AddObservation(ctx, &memory.Observation{
		SessionID: "s1", Project: "webapp", Type: "change", Title: "one",
	})
	require.NoError(t, err)

	tool := NewTimelineTool(orch)
	res, err := tool.Handle(ctx, makeReq(map[string]interface{}{"project": "webapp"}))
	require.NoError(t, err)

	text := resultText(t, res)
	assert.Contains(t, text, time.Now().UTC().Format("2006-01-02"))
	assert.Contains(t, text, "one")
}

func TestStatsTool_ReportsCounts(t *testing.T) {
	_, store := newFixture(t)
	ctx := context.Background()

	_, err := store.CreateSession(ctx, "s1", "webapp")
	require.NoError(t, err)
	_, err = store.AddObservation(ctx, &memory.Observation{
		SessionID: "s1", Project: "webapp", Type: "change", Title: "one",
	})
	require.NoError(t, err)

	tool := NewStatsTool(store)
	res, err := tool.Handle(ctx, makeReq(nil))
	require.NoError(t, err)

	text := resultText(t, res)
	assert.Contains(t, text, "**Sessions**: 1 (1 active)")
	assert.Contains(t, text, "**Observations**: 1")
}

func TestNew_BuildsServerAndCleanup(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()

	s, cleanup, err := New(cfg, "0.1.0", zerolog.Nop())
	require.NoError(t, err)
	defer cleanup()
	assert.NotNil(t, s)
}
