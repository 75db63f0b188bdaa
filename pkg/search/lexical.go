package search

import (
	"context"
	"fmt"

	"github.com/ferdian/memoir/pkg/memory"
)

// LexicalStrategy wraps the store's FTS5 search. Positive bm25 relevance
// is squashed into (0,1) with rel/(1+rel) so lexical and vector scores
// share a scale.
type LexicalStrategy struct {
	store *memory.Store
}

// NewLexicalStrategy creates the FTS-backed strategy.
func NewLexicalStrategy(store *memory.Store) *LexicalStrategy {
	return &LexicalStrategy{store: store}
}

func (s *LexicalStrategy) Name() string {
	return "lexical"
}

func (s *LexicalStrategy) Search(ctx context.Context, q Query) ([]Candidate, error) {
	results, err := s.store.LexicalSearch(ctx, memory.LexicalQuery{
		Text:     q.Text,
		Project:  q.Project,
		Type:     q.Type,
		DateFrom: q.DateFrom,
		DateTo:   q.DateTo,
		Limit:    candidateLimit(q.Limit),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: lexical: %v", ErrStrategyUnavailable, err)
	}

	candidates := make([]Candidate, 0, len(results))
	for _, r := range results {
		rel := r.Relevance
		if rel < 0 {
			rel = 0
		}
		candidates = append(candidates, Candidate{
			ObservationID: r.ObservationID,
			Score:         rel / (1 + rel),
			Snippet:       r.Snippet,
			CreatedAt:     r.CreatedAt,
		})
	}
	return candidates, nil
}

// candidateLimit over-fetches per strategy so the merged union still fills
// the requested limit after overlap.
func candidateLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	}
	return limit * 5
}
