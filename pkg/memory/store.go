package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ferdian/memoir/internal/observability"
	"github.com/rs/zerolog"
)

// ErrSessionNotFound is returned when a session id is unknown.
var ErrSessionNotFound = errors.New("session not found")

// Session is one recorded assistant session.
type Session struct {
	ID          int64      `json:"id"`
	SessionID   string     `json:"memory_session_id"`
	Project     string     `json:"project"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Observation is one persisted unit of recalled session activity.
// Rows are append-only; an observation is never updated after insert.
type Observation struct {
	ID               int64     `json:"id"`
	SessionID        string    `json:"memory_session_id"`
	Project          string    `json:"project"`
	Type             string    `json:"type"`
	Title            string    `json:"title"`
	Subtitle         string    `json:"subtitle,omitempty"`
	Facts            []string  `json:"facts,omitempty"`
	Narrative        string    `json:"narrative,omitempty"`
	Concepts         []string  `json:"concepts,omitempty"`
	FilesRead        []string  `json:"files_read,omitempty"`
	FilesModified    []string  `json:"files_modified,omitempty"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	CreatedAt        time.Time `json:"created_at"`
}

// Summary is a session-level rollup written when a session completes.
type Summary struct {
	ID           int64     `json:"id"`
	SessionID    string    `json:"memory_session_id"`
	Request      string    `json:"request,omitempty"`
	Investigated string    `json:"investigated,omitempty"`
	Learned      string    `json:"learned,omitempty"`
	Completed    string    `json:"completed,omitempty"`
	NextSteps    string    `json:"next_steps,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Prompt is one captured user prompt.
type Prompt struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"memory_session_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Stats summarizes the store for status surfaces.
type Stats struct {
	Sessions       int `json:"sessions"`
	ActiveSessions int `json:"active_sessions"`
	Observations   int `json:"observations"`
	Summaries      int `json:"summaries"`
	Prompts        int `json:"prompts"`
	PendingDepth   int `json:"pending_depth"`
}

// Store provides all reads and writes over the observation tables.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewStore wraps an already-migrated database handle.
func NewStore(db *sql.DB, logger zerolog.Logger) *Store {
	observability.EnsureRegistered()
	return &Store{db: db, logger: logger}
}

// DB exposes the underlying handle for components sharing the database
// (queue store, sqlite-vec index).
func (s *Store) DB() *sql.DB {
	return s.db
}

// CreateSession inserts a session row if the id is new. Re-creating an
// existing session is a no-op so first-sight handling is idempotent.
func (s *Store) CreateSession(ctx context.Context, sessionID, project string) (*Session, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (memory_session_id, project, status, created_at)
		 VALUES (?, ?, 'active', ?)
		 ON CONFLICT(memory_session_id) DO NOTHING`,
		sessionID, project, now.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return s.GetSession(ctx, sessionID)
}

// GetSession fetches one session by its external id.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, memory_session_id, project, status, created_at, completed_at
		 FROM sessions WHERE memory_session_id = ?`, sessionID)

	var (
		sess        Session
		createdAt   int64
		completedAt sql.NullInt64
	)
	err := row.Scan(&sess.ID, &sess.SessionID, &sess.Project, &sess.Status, &createdAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	sess.CreatedAt = time.UnixMilli(createdAt).UTC()
	if completedAt.Valid {
		t := time.UnixMilli(completedAt.Int64).UTC()
		sess.CompletedAt = &t
	}
	return &sess, nil
}

// CompleteSession marks a session completed. Transitions are monotonic:
// the guarded UPDATE only fires on active rows, so completing twice (or
// racing completions) leaves exactly one transition. Returns whether this
// call performed the transition.
func (s *Store) CompleteSession(ctx context.Context, sessionID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = 'completed', completed_at = ?
		 WHERE memory_session_id = ? AND status = 'active'`,
		time.Now().UnixMilli(), sessionID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to complete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to complete session: %w", err)
	}
	return n > 0, nil
}

// ActiveSessionCount returns the number of sessions still marked active.
func (s *Store) ActiveSessionCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE status = 'active'`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active sessions: %w", err)
	}
	return count, nil
}

// StaleActiveSessions lists active sessions with no activity since the
// cutoff, using the latest observation or prompt (falling back to session
// creation) as the activity marker.
func (s *Store) StaleActiveSessions(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.memory_session_id FROM sessions s
		WHERE s.status = 'active'
		  AND COALESCE(
		  	(SELECT MAX(created_at) FROM observations o WHERE o.memory_session_id = s.memory_session_id),
		  	(SELECT MAX(created_at) FROM prompts p WHERE p.memory_session_id = s.memory_session_id),
		  	s.created_at
		  ) < ?`, cutoff.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to list stale sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to list stale sessions: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AddObservation appends an observation. The FTS index follows via trigger.
func (s *Store) AddObservation(ctx context.Context, obs *Observation) (int64, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO observations
		 (memory_session_id, project, type, title, subtitle, facts, narrative,
		  concepts, files_read, files_modified, prompt_tokens, completion_tokens, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		obs.SessionID, obs.Project, obs.Type, obs.Title, obs.Subtitle,
		marshalList(obs.Facts), obs.Narrative, marshalList(obs.Concepts),
		marshalList(obs.FilesRead), marshalList(obs.FilesModified),
		obs.PromptTokens, obs.CompletionTokens, now.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to add observation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to add observation: %w", err)
	}
	obs.ID = id
	obs.CreatedAt = now

	observability.RecordObservationStored(obs.Type)
	return id, nil
}

// GetObservation fetches one observation by id.
func (s *Store) GetObservation(ctx context.Context, id int64) (*Observation, error) {
	results, err := s.GetObservationsByIDs(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("observation %d not found", id)
	}
	return results[0], nil
}

// GetObservationsByIDs fetches observations in the given id order; unknown
// ids are silently omitted.
func (s *Store) GetObservationsByIDs(ctx context.Context, ids []int64) ([]*Observation, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+observationColumns+` FROM observations WHERE id IN (`+strings.Join(placeholders, ",")+`)`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get observations: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]*Observation, len(ids))
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		byID[obs.ID] = obs
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get observations: %w", err)
	}

	results := make([]*Observation, 0, len(ids))
	for _, id := range ids {
		if obs, ok := byID[id]; ok {
			results = append(results, obs)
		}
	}
	return results, nil
}

// ListObservations returns the newest observations, optionally filtered by
// project, newest first.
func (s *Store) ListObservations(ctx context.Context, project string, limit int) ([]*Observation, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + observationColumns + ` FROM observations`
	args := []interface{}{}
	if project != "" {
		query += ` WHERE project = ?`
		args = append(args, project)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list observations: %w", err)
	}
	defer rows.Close()

	var results []*Observation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, obs)
	}
	return results, rows.Err()
}

// AddSummary appends a session summary.
func (s *Store) AddSummary(ctx context.Context, sum *Summary) (int64, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO summaries
		 (memory_session_id, request, investigated, learned, completed, next_steps, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sum.SessionID, sum.Request, sum.Investigated, sum.Learned,
		sum.Completed, sum.NextSteps, now.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to add summary: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to add summary: %w", err)
	}
	sum.ID = id
	sum.CreatedAt = now

	observability.RecordSummaryStored()
	return id, nil
}

// AddPrompt appends a captured user prompt.
func (s *Store) AddPrompt(ctx context.Context, sessionID, content string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO prompts (memory_session_id, content, created_at) VALUES (?, ?, ?)`,
		sessionID, content, time.Now().UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to add prompt: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to add prompt: %w", err)
	}

	observability.RecordPromptStored()
	return id, nil
}

// Stats reports table counts for the status command and MCP stats tool.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	queries := []struct {
		sql  string
		dest *int
	}{
		{`SELECT COUNT(*) FROM sessions`, &stats.Sessions},
		{`SELECT COUNT(*) FROM sessions WHERE status = 'active'`, &stats.ActiveSessions},
		{`SELECT COUNT(*) FROM observations`, &stats.Observations},
		{`SELECT COUNT(*) FROM summaries`, &stats.Summaries},
		{`SELECT COUNT(*) FROM prompts`, &stats.Prompts},
		{`SELECT COUNT(*) FROM pending_messages`, &stats.PendingDepth},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.sql).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("failed to collect stats: %w", err)
		}
	}
	return stats, nil
}

const observationColumns = `id, memory_session_id, project, type, title, subtitle,
	facts, narrative, concepts, files_read, files_modified,
	prompt_tokens, completion_tokens, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanObservation(row rowScanner) (*Observation, error) {
	var (
		obs                            Observation
		subtitle, narrative            sql.NullString
		facts, concepts, read, written sql.NullString
		createdAt                      int64
	)
	err := row.Scan(&obs.ID, &obs.SessionID, &obs.Project, &obs.Type, &obs.Title,
		&subtitle, &facts, &narrative, &concepts, &read, &written,
		&obs.PromptTokens, &obs.CompletionTokens, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan observation: %w", err)
	}

	obs.Subtitle = subtitle.String
	obs.Narrative = narrative.String
	obs.Facts = unmarshalList(facts.String)
	obs.Concepts = unmarshalList(concepts.String)
	obs.FilesRead = unmarshalList(read.String)
	obs.FilesModified = unmarshalList(written.String)
	obs.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &obs, nil
}

func marshalList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func unmarshalList(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil
	}
	return items
}
