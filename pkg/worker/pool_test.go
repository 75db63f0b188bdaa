package worker

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/ferdian/memoir/pkg/capture"
	"github.com/ferdian/memoir/pkg/events"
	"github.com/ferdian/memoir/pkg/memory"
	"github.com/ferdian/memoir/pkg/queue"
	"github.com/ferdian/memoir/pkg/session"
	"github.com/ferdian/memoir/pkg/vector"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type poolFixture struct {
	pool       *Pool
	store      *memory.Store
	queueStore *queue.Store
	notifier   *queue.Notifier
}

func newPoolFixture(t *testing.T) *poolFixture {
	t.Helper()

	db, err := memory.Open(filepath.Join(t.TempDir(), "memoir.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, memory.Migrate(db, zerolog.Nop()))

	store := memory.NewStore(db, zerolog.Nop())
	queueStore := queue.NewStore(db, zerolog.Nop())
	notifier := queue.NewNotifier()
	broadcaster := events.NewBroadcaster(zerolog.Nop())
	tracker := session.NewTracker(store, queueStore, broadcaster, zerolog.Nop())

	pool := NewPool(store, queueStore, notifier, NewHeuristicSummarizer(),
		vector.NewNoopIndex(), tracker, zerolog.Nop())
	t.Cleanup(pool.StopAll)

	return &poolFixture{pool: pool, store: store, queueStore: queueStore, notifier: notifier}
}

func enqueueEvent(t *testing.T, f *poolFixture, ev capture.Event) {
	t.Helper()
	payload, err := json.Marshal(ev)
	require.NoError(t, err)
	_, err = f.queueStore.Enqueue(context.Background(), ev.SessionID, payload)
	require.NoError(t, err)
	f.notifier.Notify(ev.SessionID)
}

func waitForObservations(t *testing.T, store *memory.Store, want int) []*memory.Observation {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		obs, err := store.ListObservations(context.Background(), "", 100)
		require.NoError(t, err)
		if len(obs) >= want {
			return obs
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("expected %d observations before deadline", want)
	return nil
}

func TestPool_ProcessesQueuedEvents(t *testing.T) {
	f := newPoolFixture(t)
	ctx := context.Background()

	f.pool.StartSession(ctx, "sess-1")

	enqueueEvent(t, f, capture.Event{
		SessionID: "sess-1", Kind: capture.KindToolUse, CWD: "/home/dev/webapp",
		ToolName: "Edit", FilePath: "main.go",
		Edits: []capture.Edit{{OldString: "a", NewString: "b"}},
	})

	obs := waitForObservations(t, f.store, 1)
	assert.Equal(t, "change", obs[0].Type)
	assert.Equal(t, "webapp", obs[0].Project)

	depth, err := f.queueStore.Depth(ctx)
	require.NoError(t, err)
	assert.Zero(t, depth, "processed message must be gone from the queue")
}

func TestPool_BadMessageSkippedLoopSurvives(t *testing.T) {
	f := newPoolFixture(t)
	ctx := context.Background()

	f.pool.StartSession(ctx, "sess-1")

	// Not a capture event at all
	_, err := f.queueStore.Enqueue(ctx, "sess-1", json.RawMessage(`"garbage"`))
	require.NoError(t, err)
	f.notifier.Notify("sess-1")

	enqueueEvent(t, f, capture.Event{
		SessionID: "sess-1", Kind: capture.KindPrompt, CWD: "/p",
		Prompt: "still alive after the bad one",
	})

	obs := waitForObservations(t, f.store, 1)
	assert.Equal(t, "prompt", obs[0].Type)
}

func TestPool_StopSessionIsIsolated(t *testing.T) {
	f := newPoolFixture(t)
	ctx := context.Background()

	f.pool.StartSession(ctx, "sess-a")
	f.pool.StartSession(ctx, "sess-b")

	f.pool.StopSession("sess-a")

	// Give the cancelled worker a moment to unwind
	deadline := time.Now().Add(time.Second)
	for f.pool.Running("sess-a") && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.False(t, f.pool.Running("sess-a"))
	assert.True(t, f.pool.Running("sess-b"))

	// sess-b still processes
	enqueueEvent(t, f, capture.Event{
		SessionID: "sess-b", Kind: capture.KindPrompt, CWD: "/p", Prompt: "b works",
	})
	waitForObservations(t, f.store, 1)
}

func TestPool_StartSessionIdempotent(t *testing.T) {
	f := newPoolFixture(t)
	ctx := context.Background()

	f.pool.StartSession(ctx, "sess-1")
	f.pool.StartSession(ctx, "sess-1")
	assert.True(t, f.pool.Running("sess-1"))

	enqueueEvent(t, f, capture.Event{
		SessionID: "sess-1", Kind: capture.KindPrompt, CWD: "/p", Prompt: "only one worker claims",
	})
	obs := waitForObservations(t, f.store, 1)
	assert.Len(t, obs, 1)
}

func TestPool_StopAllWaits(t *testing.T) {
	f := newPoolFixture(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		f.pool.StartSession(ctx, id)
	}

	done := make(chan struct{})
	go func() {
		f.pool.StopAll()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("StopAll did not return")
	}
	for _, id := range []string{"a", "b", "c"} {
		assert.False(t, f.pool.Running(id))
	}
}
