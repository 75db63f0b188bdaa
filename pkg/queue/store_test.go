package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "queue.db")
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE pending_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE INDEX idx_pending_session ON pending_messages(session_id, id)`)
	require.NoError(t, err)

	return db
}

func TestStore_EnqueueClaimRoundTrip(t *testing.T) {
	store := NewStore(openTestDB(t), zerolog.Nop())
	ctx := context.Background()

	msg, err := store.Enqueue(ctx, "sess-1", json.RawMessage(`{"kind":"prompt"}`))
	require.NoError(t, err)
	assert.NotZero(t, msg.ID)

	claimed, err := store.ClaimAndDelete(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, msg.ID, claimed.ID)
	assert.JSONEq(t, `{"kind":"prompt"}`, string(claimed.Payload))

	// Queue is empty now
	claimed, err = store.ClaimAndDelete(ctx, "sess-1")
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func TestStore_ClaimIsPerSession(t *testing.T) {
	store := NewStore(openTestDB(t), zerolog.Nop())
	ctx := context.Background()

	_, err := store.Enqueue(ctx, "sess-a", json.RawMessage(`{"n":1}`))
	require.NoError(t, err)

	claimed, err := store.ClaimAndDelete(ctx, "sess-b")
	require.NoError(t, err)
	assert.Nil(t, claimed, "claim must not cross session boundaries")

	claimed, err = store.ClaimAndDelete(ctx, "sess-a")
	require.NoError(t, err)
	require.NotNil(t, claimed)
}

// Concurrent claimers must drain every message exactly once, in FIFO order.
func TestStore_ConcurrentClaimsNoDuplication(t *testing.T) {
	store := NewStore(openTestDB(t), zerolog.Nop())
	ctx := context.Background()

	const total = 50
	for i := 0; i < total; i++ {
		_, err := store.Enqueue(ctx, "sess-1", json.RawMessage(fmt.Sprintf(`{"n":%d}`, i)))
		require.NoError(t, err)
	}

	const claimers = 8
	var (
		mu      sync.Mutex
		claimed []int64
		wg      sync.WaitGroup
	)
	for c := 0; c < claimers; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				msg, err := store.ClaimAndDelete(ctx, "sess-1")
				if err != nil {
					continue // busy, retry
				}
				if msg == nil {
					return
				}
				mu.Lock()
				claimed = append(claimed, msg.ID)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, claimed, total, "every message claimed exactly once")
	seen := make(map[int64]bool, total)
	for _, id := range claimed {
		assert.False(t, seen[id], "message %d claimed twice", id)
		seen[id] = true
	}

	depth, err := store.Depth(ctx)
	require.NoError(t, err)
	assert.Zero(t, depth)
}

func TestStore_FIFOWithinSession(t *testing.T) {
	store := NewStore(openTestDB(t), zerolog.Nop())
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 10; i++ {
		msg, err := store.Enqueue(ctx, "sess-1", json.RawMessage(`{}`))
		require.NoError(t, err)
		ids = append(ids, msg.ID)
	}

	for _, want := range ids {
		msg, err := store.ClaimAndDelete(ctx, "sess-1")
		require.NoError(t, err)
		require.NotNil(t, msg)
		assert.Equal(t, want, msg.ID)
	}
}

func TestStore_SessionsWithPending(t *testing.T) {
	store := NewStore(openTestDB(t), zerolog.Nop())
	ctx := context.Background()

	_, err := store.Enqueue(ctx, "sess-b", json.RawMessage(`{}`))
	require.NoError(t, err)
	_, err = store.Enqueue(ctx, "sess-a", json.RawMessage(`{}`))
	require.NoError(t, err)
	_, err = store.Enqueue(ctx, "sess-a", json.RawMessage(`{}`))
	require.NoError(t, err)

	sessions, err := store.SessionsWithPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sess-a", "sess-b"}, sessions)

	depth, err := store.DepthForSession(ctx, "sess-a")
	require.NoError(t, err)
	assert.Equal(t, 2, depth)
}
