package search

import (
	"context"
	"fmt"

	"github.com/ferdian/memoir/pkg/vector"
)

// VectorStrategy delegates to the similarity index. Similarity is already
// normalized to [0,1] by the index implementations.
type VectorStrategy struct {
	index vector.Index
}

// NewVectorStrategy creates the similarity-backed strategy.
func NewVectorStrategy(index vector.Index) *VectorStrategy {
	return &VectorStrategy{index: index}
}

func (s *VectorStrategy) Name() string {
	return "vector"
}

func (s *VectorStrategy) Search(ctx context.Context, q Query) ([]Candidate, error) {
	matches, err := s.index.Query(ctx, q.Text, candidateLimit(q.Limit), vector.Filter{
		Project:  q.Project,
		Type:     q.Type,
		DateFrom: q.DateFrom,
		DateTo:   q.DateTo,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: vector: %v", ErrStrategyUnavailable, err)
	}

	candidates := make([]Candidate, 0, len(matches))
	for _, m := range matches {
		// Snippet is hydrated later from the store; CreatedAt comes from
		// the index so the merger can tie-break on recency.
		candidates = append(candidates, Candidate{
			ObservationID: m.ObservationID,
			Score:         m.Similarity,
			CreatedAt:     m.CreatedAt,
		})
	}
	return candidates, nil
}
