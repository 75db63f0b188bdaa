package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ferdian/memoir/pkg/memory"
	"github.com/rs/zerolog"
)

// Result is one fully hydrated, serializable search response. Each call
// returns a fresh value; results are never mutated after return.
type Result struct {
	Query    string  `json:"query"`
	Degraded bool    `json:"degraded"`
	Items    []Item  `json:"items"`
	TookMS   float64 `json:"took_ms"`
}

// Item is one ranked observation in a search result.
type Item struct {
	ObservationID int64    `json:"observation_id"`
	SessionID     string   `json:"memory_session_id"`
	Project       string   `json:"project"`
	Type          string   `json:"type"`
	Title         string   `json:"title"`
	Snippet       string   `json:"snippet,omitempty"`
	Score         float64  `json:"score"`
	Files         []string `json:"files,omitempty"`
	CreatedAt     string   `json:"created_at"`
	Age           string   `json:"age"`
}

// Orchestrator validates raw queries, runs the merge, and hydrates
// candidates into presentable items from the store.
type Orchestrator struct {
	merger        *Merger
	store         *memory.Store
	snippetLength int
	logger        zerolog.Logger
}

// NewOrchestrator wires the query surface. The strategy set is fixed at
// construction: when the similarity index is disabled the vector strategy
// simply is not in the merger, so eligibility needs no runtime checks.
func NewOrchestrator(merger *Merger, store *memory.Store, snippetLength int, logger zerolog.Logger) *Orchestrator {
	if snippetLength <= 0 {
		snippetLength = 200
	}
	return &Orchestrator{
		merger:        merger,
		store:         store,
		snippetLength: snippetLength,
		logger:        logger,
	}
}

// Search validates and executes one recall query.
func (o *Orchestrator) Search(ctx context.Context, q Query) (*Result, error) {
	if q.Text == "" {
		return nil, errors.New("query text is required")
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if q.DateFrom != nil && q.DateTo != nil && q.DateFrom.After(*q.DateTo) {
		return nil, errors.New("date_from is after date_to")
	}

	start := time.Now()
	merged, err := o.merger.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	ids := make([]int64, 0, len(merged.Candidates))
	for _, c := range merged.Candidates {
		ids = append(ids, c.ObservationID)
	}
	observations, err := o.store.GetObservationsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to hydrate results: %w", err)
	}
	byID := make(map[int64]*memory.Observation, len(observations))
	for _, obs := range observations {
		byID[obs.ID] = obs
	}

	now := time.Now()
	result := &Result{
		Query:    q.Text,
		Degraded: merged.Degraded,
		Items:    make([]Item, 0, len(merged.Candidates)),
	}
	for _, c := range merged.Candidates {
		obs, ok := byID[c.ObservationID]
		if !ok {
			continue
		}

		snippet := c.Snippet
		if snippet == "" {
			snippet = obs.Narrative
		}

		result.Items = append(result.Items, Item{
			ObservationID: obs.ID,
			SessionID:     obs.SessionID,
			Project:       obs.Project,
			Type:          obs.Type,
			Title:         obs.Title,
			Snippet:       TruncateSnippet(snippet, o.snippetLength),
			Score:         c.Score,
			Files:         obs.FilesModified,
			CreatedAt:     obs.CreatedAt.Format(time.RFC3339),
			Age:           RelativeTime(obs.CreatedAt, now),
		})
	}
	result.TookMS = float64(time.Since(start).Microseconds()) / 1000

	o.logger.Debug().
		Str("query", q.Text).
		Int("results", len(result.Items)).
		Bool("degraded", result.Degraded).
		Msg("Search completed")

	return result, nil
}
