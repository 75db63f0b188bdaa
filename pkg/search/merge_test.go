package search

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStrategy returns fixed candidates, an error, or blocks until its
// context dies.
type stubStrategy struct {
	name       string
	candidates []Candidate
	err        error
	block      bool
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Search(ctx context.Context, _ Query) ([]Candidate, error) {
	if s.block {
		<-ctx.Done()
		return nil, fmt.Errorf("%w: %v", ErrStrategyUnavailable, ctx.Err())
	}
	return s.candidates, s.err
}

func TestMerger_CombinesScoresAcrossStrategies(t *testing.T) {
	now := time.Now()
	lexical := &stubStrategy{name: "lexical", candidates: []Candidate{
		{ObservationID: 1, Score: 0.9, Snippet: "lex snippet", CreatedAt: now},
		{ObservationID: 2, Score: 0.5, CreatedAt: now},
	}}
	vec := &stubStrategy{name: "vector", candidates: []Candidate{
		{ObservationID: 1, Score: 0.4},
		{ObservationID: 3, Score: 0.8},
	}}

	m := NewMerger([]Strategy{lexical, vec}, map[string]float64{"lexical": 1, "vector": 1}, time.Second, zerolog.Nop())

	merged, err := m.Search(context.Background(), Query{Text: "q", Limit: 10})
	require.NoError(t, err)
	assert.False(t, merged.Degraded)
	require.Len(t, merged.Candidates, 3)

	// Equal weights normalize to 0.5 each: id 1 = 0.45+0.2, id 3 = 0.4, id 2 = 0.25
	assert.Equal(t, int64(1), merged.Candidates[0].ObservationID)
	assert.InDelta(t, 0.65, merged.Candidates[0].Score, 1e-9)
	assert.Equal(t, int64(3), merged.Candidates[1].ObservationID)
	assert.Equal(t, int64(2), merged.Candidates[2].ObservationID)

	// Snippet from the strategy that had one survives the merge
	assert.Equal(t, "lex snippet", merged.Candidates[0].Snippet)
}

func TestMerger_Deterministic(t *testing.T) {
	now := time.Now()
	a := &stubStrategy{name: "lexical", candidates: []Candidate{
		{ObservationID: 1, Score: 0.9, CreatedAt: now},
		{ObservationID: 2, Score: 0.9, CreatedAt: now.Add(time.Minute)},
	}}
	b := &stubStrategy{name: "vector", candidates: []Candidate{
		{ObservationID: 3, Score: 0.9},
	}}
	m := NewMerger([]Strategy{a, b}, nil, time.Second, zerolog.Nop())

	var first []int64
	for run := 0; run < 10; run++ {
		merged, err := m.Search(context.Background(), Query{Text: "q", Limit: 10})
		require.NoError(t, err)

		ids := make([]int64, len(merged.Candidates))
		for i, c := range merged.Candidates {
			ids[i] = c.ObservationID
		}
		if first == nil {
			first = ids
		} else {
			assert.Equal(t, first, ids, "merge order must not vary between runs")
		}
	}
}

func TestMerger_PartialFailureDegrades(t *testing.T) {
	working := &stubStrategy{name: "lexical", candidates: []Candidate{
		{ObservationID: 1, Score: 0.9},
	}}
	broken := &stubStrategy{name: "vector", err: fmt.Errorf("%w: index gone", ErrStrategyUnavailable)}

	m := NewMerger([]Strategy{working, broken}, nil, time.Second, zerolog.Nop())

	merged, err := m.Search(context.Background(), Query{Text: "q", Limit: 10})
	require.NoError(t, err)
	assert.True(t, merged.Degraded)
	require.Len(t, merged.Candidates, 1)
	assert.Equal(t, int64(1), merged.Candidates[0].ObservationID)
}

func TestMerger_TimeoutTreatedAsFailure(t *testing.T) {
	working := &stubStrategy{name: "lexical", candidates: []Candidate{
		{ObservationID: 1, Score: 0.9},
	}}
	hung := &stubStrategy{name: "vector", block: true}

	m := NewMerger([]Strategy{working, hung}, nil, 100*time.Millisecond, zerolog.Nop())

	start := time.Now()
	merged, err := m.Search(context.Background(), Query{Text: "q", Limit: 10})
	require.NoError(t, err)
	assert.True(t, merged.Degraded)
	assert.Len(t, merged.Candidates, 1)
	assert.Less(t, time.Since(start), time.Second, "hung strategy must not block past its timeout")
}

func TestMerger_LimitTruncates(t *testing.T) {
	var candidates []Candidate
	for i := 1; i <= 20; i++ {
		candidates = append(candidates, Candidate{ObservationID: int64(i), Score: float64(i) / 20})
	}
	m := NewMerger([]Strategy{&stubStrategy{name: "lexical", candidates: candidates}}, nil, time.Second, zerolog.Nop())

	merged, err := m.Search(context.Background(), Query{Text: "q", Limit: 5})
	require.NoError(t, err)
	require.Len(t, merged.Candidates, 5)
	assert.Equal(t, int64(20), merged.Candidates[0].ObservationID, "highest score first")
}

func TestMerger_SetWeightsHotReload(t *testing.T) {
	lexical := &stubStrategy{name: "lexical", candidates: []Candidate{{ObservationID: 1, Score: 1.0}}}
	vec := &stubStrategy{name: "vector", candidates: []Candidate{{ObservationID: 2, Score: 0.6}}}
	m := NewMerger([]Strategy{lexical, vec}, map[string]float64{"lexical": 1, "vector": 1}, time.Second, zerolog.Nop())

	merged, err := m.Search(context.Background(), Query{Text: "q", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), merged.Candidates[0].ObservationID)

	// Boosting vector flips the order
	m.SetWeights(map[string]float64{"lexical": 1, "vector": 10})
	merged, err = m.Search(context.Background(), Query{Text: "q", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), merged.Candidates[0].ObservationID)
}
