// Package mcpserver exposes recall over MCP stdio, so the host assistant
// can query memoir without going through the HTTP gateway. The server is
// read-only: capture and processing stay with the daemon.
package mcpserver

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ferdian/memoir/internal/config"
	"github.com/ferdian/memoir/pkg/memory"
	"github.com/ferdian/memoir/pkg/search"
	"github.com/ferdian/memoir/pkg/vector"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

// New assembles the MCP server over the daemon's database. The returned
// cleanup function closes the database connection and must be called on
// shutdown; it is always non-nil.
func New(cfg *config.Config, version string, logger zerolog.Logger) (*server.MCPServer, func(), error) {
	noop := func() {}

	db, err := memory.Open(filepath.Join(cfg.DataDir, "memoir.db"))
	if err != nil {
		return nil, noop, fmt.Errorf("failed to open database: %w", err)
	}
	if err := memory.Migrate(db, logger); err != nil {
		db.Close()
		return nil, noop, fmt.Errorf("failed to migrate database: %w", err)
	}

	store := memory.NewStore(db, logger)
	orchestrator, embedder, err := buildSearch(cfg, db, store, logger)
	if err != nil {
		db.Close()
		return nil, noop, err
	}

	cleanup := func() {
		if embedder != nil {
			embedder.Close()
		}
		db.Close()
	}

	s := server.NewMCPServer(
		"memoir",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions),
	)

	searchTool := NewSearchTool(orchestrator)
	s.AddTool(searchTool.Definition(), searchTool.Handle)

	timelineTool := NewTimelineTool(orchestrator)
	s.AddTool(timelineTool.Definition(), timelineTool.Handle)

	statsTool := NewStatsTool(store)
	s.AddTool(statsTool.Definition(), statsTool.Handle)

	return s, cleanup, nil
}

// buildSearch mirrors the daemon's search wiring: lexical always, vector
// only when the index is enabled in config.
func buildSearch(cfg *config.Config, db *sql.DB, store *memory.Store,
	logger zerolog.Logger) (*search.Orchestrator, *vector.CachingEmbedder, error) {

	strategies := []search.Strategy{search.NewLexicalStrategy(store)}

	var embedder *vector.CachingEmbedder
	if cfg.Vector.Index != "disabled" {
		cached, err := vector.NewCachingEmbedder(
			vector.NewOpenAIEmbedder(cfg.Vector.Embedding.APIKey, cfg.Vector.Embedding.Model),
			cfg.Vector.Embedding.CacheSize)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create embedding cache: %w", err)
		}
		embedder = cached

		var index vector.Index
		switch cfg.Vector.Index {
		case "sqlitevec":
			index, err = vector.NewSQLiteVecIndex(db, cached, logger)
		case "chromem":
			index, err = vector.NewChromemIndex(cached, logger)
		default:
			err = fmt.Errorf("unknown vector index %q", cfg.Vector.Index)
		}
		if err != nil {
			cached.Close()
			return nil, nil, fmt.Errorf("failed to initialize vector index: %w", err)
		}
		strategies = append(strategies, search.NewVectorStrategy(index))
	}

	timeout := time.Duration(cfg.Search.StrategyTimeoutMS) * time.Millisecond
	merger := search.NewMerger(strategies, cfg.Search.Weights, timeout, logger)
	return search.NewOrchestrator(merger, store, cfg.Search.SnippetLength, logger), embedder, nil
}

const serverInstructions = `memoir is the persistent memory of your past coding sessions.

Use memoir_search when the user refers to earlier work ("that bug we fixed",
"how did we set up X") or when context from previous sessions would help.
Use memoir_timeline to reconstruct what happened on a given day or project.
Use memoir_stats to check what the memory currently holds.`
