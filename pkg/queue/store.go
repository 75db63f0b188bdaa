// Package queue implements the durable per-session delivery queue: an
// append/claim store over SQLite, an in-process enqueue notifier, and a
// per-session processor that turns both into a live message sequence.
//
// Delivery is at-most-once: ClaimAndDelete removes the row in the same
// statement that returns it, so a consumer crash after a claim loses that
// message rather than redelivering it.
package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ferdian/memoir/internal/observability"
	"github.com/rs/zerolog"
)

// ErrTransientStorage marks storage failures the caller may retry.
var ErrTransientStorage = errors.New("queue storage unavailable")

// Message is one pending queue row.
type Message struct {
	ID        int64           `json:"id"`
	SessionID string          `json:"session_id"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Store provides durable append and atomic claim over pending_messages.
// It owns those rows exclusively; nothing else reads them.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewStore creates a queue store over an already-migrated database handle.
func NewStore(db *sql.DB, logger zerolog.Logger) *Store {
	observability.EnsureRegistered()
	return &Store{
		db:     db,
		logger: logger,
	}
}

// Enqueue durably appends a message. The row is committed before Enqueue
// returns, so it is visible to any concurrent claim attempt.
func (s *Store) Enqueue(ctx context.Context, sessionID string, payload json.RawMessage) (Message, error) {
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO pending_messages (session_id, payload, created_at) VALUES (?, ?, ?)`,
		sessionID, string(payload), now.UnixMilli(),
	)
	if err != nil {
		return Message{}, fmt.Errorf("%w: enqueue: %v", ErrTransientStorage, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return Message{}, fmt.Errorf("%w: enqueue id: %v", ErrTransientStorage, err)
	}

	depth, _ := s.DepthForSession(ctx, sessionID)
	observability.RecordEnqueue(sessionID, depth)

	s.logger.Debug().
		Str("session_id", sessionID).
		Int64("message_id", id).
		Int("depth", depth).
		Msg("Message enqueued")

	return Message{ID: id, SessionID: sessionID, Payload: payload, CreatedAt: now}, nil
}

// ClaimAndDelete returns the oldest pending message for the session and
// removes it in the same statement, or nil when the session queue is empty.
// The single DELETE ... RETURNING makes the claim atomic: two concurrent
// callers can never both receive the same row.
func (s *Store) ClaimAndDelete(ctx context.Context, sessionID string) (*Message, error) {
	row := s.db.QueryRowContext(ctx,
		`DELETE FROM pending_messages
		 WHERE id = (
		 	SELECT id FROM pending_messages
		 	WHERE session_id = ?
		 	ORDER BY id ASC
		 	LIMIT 1
		 )
		 RETURNING id, session_id, payload, created_at`,
		sessionID,
	)

	var (
		msg       Message
		payload   string
		createdAt int64
	)
	err := row.Scan(&msg.ID, &msg.SessionID, &payload, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		observability.RecordClaim(sessionID, false)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: claim: %v", ErrTransientStorage, err)
	}

	msg.Payload = json.RawMessage(payload)
	msg.CreatedAt = time.UnixMilli(createdAt).UTC()

	observability.RecordClaim(sessionID, true)
	return &msg, nil
}

// DepthForSession returns the pending message count for one session.
func (s *Store) DepthForSession(ctx context.Context, sessionID string) (int, error) {
	var depth int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pending_messages WHERE session_id = ?`, sessionID,
	).Scan(&depth)
	if err != nil {
		return 0, fmt.Errorf("%w: depth: %v", ErrTransientStorage, err)
	}
	return depth, nil
}

// Depth returns the total pending message count across all sessions.
func (s *Store) Depth(ctx context.Context) (int, error) {
	var depth int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_messages`).Scan(&depth)
	if err != nil {
		return 0, fmt.Errorf("%w: depth: %v", ErrTransientStorage, err)
	}
	return depth, nil
}

// SessionsWithPending lists sessions that still have unclaimed rows, so a
// restarted daemon can resume their processors.
func (s *Store) SessionsWithPending(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT session_id FROM pending_messages ORDER BY session_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: sessions: %v", ErrTransientStorage, err)
	}
	defer rows.Close()

	var sessions []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: sessions: %v", ErrTransientStorage, err)
		}
		sessions = append(sessions, id)
	}
	return sessions, rows.Err()
}
