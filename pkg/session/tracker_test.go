package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ferdian/memoir/pkg/capture"
	"github.com/ferdian/memoir/pkg/events"
	"github.com/ferdian/memoir/pkg/memory"
	"github.com/ferdian/memoir/pkg/queue"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(t *testing.T) (*Tracker, *events.Broadcaster, *memory.Store) {
	t.Helper()

	db, err := memory.Open(filepath.Join(t.TempDir(), "memoir.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, memory.Migrate(db, zerolog.Nop()))

	store := memory.NewStore(db, zerolog.Nop())
	queueStore := queue.NewStore(db, zerolog.Nop())
	broadcaster := events.NewBroadcaster(zerolog.Nop())

	return NewTracker(store, queueStore, broadcaster, zerolog.Nop()), broadcaster, store
}

func collect(t *testing.T, ch <-chan events.Event, n int) []events.Event {
	t.Helper()
	out := make([]events.Event, 0, n)
	for len(out) < n {
		select {
		case ev := <-ch:
			out = append(out, ev)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d of %d", len(out)+1, n)
		}
	}
	return out
}

func TestTracker_FirstSightCreatesAndAnnounces(t *testing.T) {
	tracker, broadcaster, store := newTestTracker(t)
	ch, cancel := broadcaster.Subscribe()
	defer cancel()
	ctx := context.Background()

	ev := &capture.Event{SessionID: "sess-1", Kind: capture.KindToolUse, CWD: "/home/dev/webapp"}
	sess, err := tracker.Observe(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, "webapp", sess.Project)
	assert.Equal(t, "active", sess.Status)

	got := collect(t, ch, 2)
	assert.Equal(t, events.KindSessionStarted, got[0].Kind)
	assert.Equal(t, events.KindProcessingStatus, got[1].Kind)

	// Second observe is silent
	_, err = tracker.Observe(ctx, ev)
	require.NoError(t, err)
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %s on repeat observe", ev.Kind)
	case <-time.After(100 * time.Millisecond):
	}

	_, err = store.GetSession(ctx, "sess-1")
	require.NoError(t, err)
}

// Every transition must be followed by a processing_status from the same
// producer with nothing in between, even under concurrent transitions.
func TestTracker_TransitionStatusPairing(t *testing.T) {
	tracker, broadcaster, _ := newTestTracker(t)
	ch, cancel := broadcaster.Subscribe()
	defer cancel()
	ctx := context.Background()

	const sessions = 5
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < sessions; i++ {
			ev := &capture.Event{
				SessionID: string(rune('a' + i)),
				Kind:      capture.KindSessionStart,
				CWD:       "/p",
			}
			if _, err := tracker.Observe(ctx, ev); err != nil {
				t.Error(err)
				return
			}
		}
	}()
	<-done

	got := collect(t, ch, sessions*2)
	for i := 0; i < len(got); i += 2 {
		assert.Equal(t, events.KindSessionStarted, got[i].Kind, "event %d", i)
		assert.Equal(t, events.KindProcessingStatus, got[i+1].Kind, "event %d", i+1)
		assert.Equal(t, got[i].Seq+1, got[i+1].Seq, "status must directly follow its transition")
	}
}

func TestTracker_CompleteIdempotent(t *testing.T) {
	tracker, broadcaster, _ := newTestTracker(t)
	ctx := context.Background()

	_, err := tracker.Observe(ctx, &capture.Event{SessionID: "sess-1", Kind: capture.KindSessionStart, CWD: "/p"})
	require.NoError(t, err)

	ch, cancel := broadcaster.Subscribe()
	defer cancel()

	require.NoError(t, tracker.Complete(ctx, "sess-1"))
	got := collect(t, ch, 2)
	assert.Equal(t, events.KindSessionCompleted, got[0].Kind)
	assert.Equal(t, events.KindProcessingStatus, got[1].Kind)

	// Completing again transitions nothing and broadcasts nothing
	require.NoError(t, tracker.Complete(ctx, "sess-1"))
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %s on repeat completion", ev.Kind)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTracker_RecordPromptAnnounces(t *testing.T) {
	tracker, broadcaster, store := newTestTracker(t)
	ctx := context.Background()

	_, err := tracker.Observe(ctx, &capture.Event{SessionID: "sess-1", Kind: capture.KindSessionStart, CWD: "/p"})
	require.NoError(t, err)

	ch, cancel := broadcaster.Subscribe()
	defer cancel()

	require.NoError(t, tracker.RecordPrompt(ctx, "sess-1", "why does the retry loop spin?"))
	got := collect(t, ch, 2)
	assert.Equal(t, events.KindNewPrompt, got[0].Kind)
	assert.Equal(t, events.KindProcessingStatus, got[1].Kind)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Prompts)
}

func TestTracker_StatusCarriesDepthAndActive(t *testing.T) {
	tracker, broadcaster, _ := newTestTracker(t)
	ch, cancel := broadcaster.Subscribe()
	defer cancel()
	ctx := context.Background()

	_, err := tracker.Observe(ctx, &capture.Event{SessionID: "sess-1", Kind: capture.KindSessionStart, CWD: "/p"})
	require.NoError(t, err)

	got := collect(t, ch, 2)
	status, ok := got[1].Data.(events.ProcessingStatus)
	require.True(t, ok)
	assert.Equal(t, 1, status.ActiveSessions)
	assert.Equal(t, 0, status.PendingDepth)
}
