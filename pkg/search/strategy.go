// Package search answers recall queries: independent lexical and vector
// strategies fanned out concurrently, merged by weighted score into one
// ranked result, degraded but useful when a strategy fails.
package search

import (
	"context"
	"errors"
	"time"
)

// ErrStrategyUnavailable marks a strategy that cannot currently serve.
// The merger drops its contribution and flags the result degraded.
var ErrStrategyUnavailable = errors.New("search strategy unavailable")

// Query is one recall request after validation.
type Query struct {
	Text     string     `json:"text"`
	Project  string     `json:"project,omitempty"`
	Type     string     `json:"type,omitempty"`
	DateFrom *time.Time `json:"date_from,omitempty"`
	DateTo   *time.Time `json:"date_to,omitempty"`
	Limit    int        `json:"limit,omitempty"`
}

// Candidate is one strategy's scored hit. Score is normalized to [0,1] on
// the strategy's own scale so the merger can combine across strategies.
type Candidate struct {
	ObservationID int64
	Score         float64
	Snippet       string
	CreatedAt     time.Time
}

// Strategy is one independent way of finding observations.
type Strategy interface {
	Name() string
	Search(ctx context.Context, q Query) ([]Candidate, error)
}
