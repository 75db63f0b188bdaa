package search

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ferdian/memoir/pkg/memory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrchestrator(t *testing.T, strategies ...Strategy) (*Orchestrator, *memory.Store) {
	t.Helper()

	db, err := memory.Open(filepath.Join(t.TempDir(), "memoir.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, memory.Migrate(db, zerolog.Nop()))
	store := memory.NewStore(db, zerolog.Nop())

	if len(strategies) == 0 {
		strategies = []Strategy{NewLexicalStrategy(store)}
	}
	merger := NewMerger(strategies, nil, time.Second, zerolog.Nop())
	return NewOrchestrator(merger, store, 200, zerolog.Nop()), store
}

func TestOrchestrator_EndToEndLexical(t *testing.T) {
	orch, store := newTestOrchestrator(t)
	ctx := context.Background()

	_, err := store.AddObservation(ctx, &memory.Observation{
		SessionID: "s1", Project: "webapp", Type: "change",
		Title:     "Fixed reconnect race",
		Narrative: "The websocket reconnect loop raced shutdown and leaked a goroutine.",
	})
	require.NoError(t, err)

	result, err := orch.Search(ctx, Query{Text: "reconnect race"})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "Fixed reconnect race", result.Items[0].Title)
	assert.Equal(t, "webapp", result.Items[0].Project)
	assert.NotEmpty(t, result.Items[0].Age)
	assert.False(t, result.Degraded)
}

func TestOrchestrator_RejectsEmptyQuery(t *testing.T) {
	orch, _ := newTestOrchestrator(t)

	_, err := orch.Search(context.Background(), Query{Text: ""})
	assert.Error(t, err)
}

func TestOrchestrator_RejectsInvertedDateRange(t *testing.T) {
	orch, _ := newTestOrchestrator(t)

	from := time.Now()
	to := from.Add(-time.Hour)
	_, err := orch.Search(context.Background(), Query{Text: "q", DateFrom: &from, DateTo: &to})
	assert.Error(t, err)
}

func TestOrchestrator_HydratesVectorCandidates(t *testing.T) {
	// A vector-style strategy returns bare ids; the orchestrator must fill
	// title, narrative snippet and timestamps from the store.
	db, err := memory.Open(filepath.Join(t.TempDir(), "memoir.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, memory.Migrate(db, zerolog.Nop()))
	store := memory.NewStore(db, zerolog.Nop())

	id, err := store.AddObservation(context.Background(), &memory.Observation{
		SessionID: "s1", Project: "p", Type: "discovery",
		Title: "Cache admission is async", Narrative: "Sets may not land immediately.",
	})
	require.NoError(t, err)

	bare := &stubStrategy{name: "vector", candidates: []Candidate{{ObservationID: id, Score: 0.8}}}
	merger := NewMerger([]Strategy{bare}, nil, time.Second, zerolog.Nop())
	orch := NewOrchestrator(merger, store, 200, zerolog.Nop())

	result, err := orch.Search(context.Background(), Query{Text: "cache"})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "Cache admission is async", result.Items[0].Title)
	assert.Equal(t, "Sets may not land immediately.", result.Items[0].Snippet)
	assert.NotEmpty(t, result.Items[0].CreatedAt)
}

func TestOrchestrator_FreshResultPerCall(t *testing.T) {
	orch, store := newTestOrchestrator(t)
	ctx := context.Background()

	_, err := store.AddObservation(ctx, &memory.Observation{
		SessionID: "s1", Project: "p", Type: "change", Title: "reconnect fix",
	})
	require.NoError(t, err)

	first, err := orch.Search(ctx, Query{Text: "reconnect"})
	require.NoError(t, err)
	first.Items[0].Title = "mutated"

	second, err := orch.Search(ctx, Query{Text: "reconnect"})
	require.NoError(t, err)
	assert.Equal(t, "reconnect fix", second.Items[0].Title, "mutating one result must not leak into the next")
}

func TestOrchestrator_TimelineGroupsByDayAndSession(t *testing.T) {
	orch, store := newTestOrchestrator(t)
	ctx := context.Background()

	_, err := store.CreateSession(ctx, "s1", "proj")
	require.NoError(t, err)
	_, err = store.AddObservation(ctx, &memory.Observation{SessionID: "s1", Project: "proj", Type: "change", Title: "one"})
	require.NoError(t, err)
	_, err = store.AddObservation(ctx, &memory.Observation{SessionID: "s1", Project: "proj", Type: "change", Title: "two"})
	require.NoError(t, err)

	timeline, err := orch.BuildTimeline(ctx, "proj", nil, nil, 50)
	require.NoError(t, err)
	require.Len(t, timeline.Days, 1)
	require.Len(t, timeline.Days[0].Sessions, 1)
	assert.Equal(t, "s1", timeline.Days[0].Sessions[0].SessionID)
	assert.Len(t, timeline.Days[0].Sessions[0].Entries, 2)
}
