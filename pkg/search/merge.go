package search

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ferdian/memoir/internal/observability"
	"github.com/rs/zerolog"
)

// Merged is the combined, ranked output of a strategy fan-out.
type Merged struct {
	Candidates []Candidate
	Degraded   bool
}

// Merger fans a query out to every strategy concurrently, bounds each with
// its own timeout, and combines the unions by weighted score. A failing or
// timed-out strategy loses its contribution and flips Degraded; it never
// fails the whole query.
type Merger struct {
	strategies []Strategy
	timeout    time.Duration
	logger     zerolog.Logger

	mu      sync.RWMutex
	weights map[string]float64
}

// NewMerger creates a merger over the given strategies. Unlisted strategy
// names default to weight 1.
func NewMerger(strategies []Strategy, weights map[string]float64, timeout time.Duration, logger zerolog.Logger) *Merger {
	observability.EnsureRegistered()
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	m := &Merger{
		strategies: strategies,
		timeout:    timeout,
		logger:     logger,
		weights:    make(map[string]float64),
	}
	m.SetWeights(weights)
	return m
}

// SetWeights replaces the strategy weights. Called from the config watcher;
// safe during concurrent searches.
func (m *Merger) SetWeights(weights map[string]float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.weights = make(map[string]float64, len(weights))
	for name, w := range weights {
		if w > 0 {
			m.weights[name] = w
		}
	}
}

func (m *Merger) weightFor(name string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if w, ok := m.weights[name]; ok {
		return w
	}
	return 1
}

type strategyOutcome struct {
	name       string
	candidates []Candidate
	err        error
}

// Search runs the fan-out and merge for one query.
func (m *Merger) Search(ctx context.Context, q Query) (*Merged, error) {
	outcomes := make([]strategyOutcome, len(m.strategies))

	var wg sync.WaitGroup
	for i, strat := range m.strategies {
		wg.Add(1)
		go func(i int, strat Strategy) {
			defer wg.Done()

			sctx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()

			start := time.Now()
			candidates, err := strat.Search(sctx, q)
			observability.RecordSearch(strat.Name(), time.Since(start))

			outcomes[i] = strategyOutcome{name: strat.Name(), candidates: candidates, err: err}
		}(i, strat)
	}
	wg.Wait()

	merged := make(map[int64]*Candidate)
	degraded := false
	// Weights are normalized over the strategies in this fan-out so a
	// single-strategy setup still produces scores on the same [0,1] scale.
	var totalWeight float64
	for _, o := range outcomes {
		totalWeight += m.weightFor(o.name)
	}
	if totalWeight == 0 {
		totalWeight = 1
	}

	for _, o := range outcomes {
		if o.err != nil {
			degraded = true
			observability.RecordStrategyFailure(o.name)
			m.logger.Warn().
				Err(o.err).
				Str("strategy", o.name).
				Str("query", q.Text).
				Str("project", q.Project).
				Msg("Search strategy failed, continuing degraded")
			continue
		}

		weight := m.weightFor(o.name) / totalWeight
		for _, c := range o.candidates {
			if existing, ok := merged[c.ObservationID]; ok {
				existing.Score += c.Score * weight
				if existing.Snippet == "" {
					existing.Snippet = c.Snippet
				}
				if existing.CreatedAt.IsZero() {
					existing.CreatedAt = c.CreatedAt
				}
			} else {
				cc := c
				cc.Score = c.Score * weight
				merged[c.ObservationID] = &cc
			}
		}
	}

	results := make([]Candidate, 0, len(merged))
	for _, c := range merged {
		results = append(results, *c)
	}
	sort.SliceStable(results, func(a, b int) bool {
		if results[a].Score != results[b].Score {
			return results[a].Score > results[b].Score
		}
		if !results[a].CreatedAt.Equal(results[b].CreatedAt) {
			return results[a].CreatedAt.After(results[b].CreatedAt)
		}
		return results[a].ObservationID > results[b].ObservationID
	})

	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}
	if len(results) > limit {
		results = results[:limit]
	}

	if degraded {
		observability.RecordSearchDegraded()
	}
	return &Merged{Candidates: results, Degraded: degraded}, nil
}
