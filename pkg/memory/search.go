package memory

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// LexicalQuery filters a full-text search over observations.
type LexicalQuery struct {
	Text     string
	Project  string
	Type     string
	DateFrom *time.Time
	DateTo   *time.Time
	Limit    int
}

// LexicalResult is one FTS match. Relevance is positive (negated bm25);
// higher is better.
type LexicalResult struct {
	ObservationID int64
	Relevance     float64
	Snippet       string
	CreatedAt     time.Time
}

// LexicalSearch runs an FTS5 match over the observation index with exact
// filters applied in SQL. Results are ordered by relevance descending, then
// recency. A query that sanitizes to nothing returns no results rather than
// an FTS syntax error.
func (s *Store) LexicalSearch(ctx context.Context, q LexicalQuery) ([]LexicalResult, error) {
	match := sanitizeFTSQuery(q.Text)
	if match == "" {
		return nil, nil
	}
	if q.Limit <= 0 {
		q.Limit = 20
	}

	// bm25 returns lower-is-better negatives; negate for a positive score.
	query := `
		SELECT o.id, -bm25(observations_fts) AS relevance,
		       snippet(observations_fts, 2, '', '', ' … ', 16) AS snip,
		       o.created_at
		FROM observations_fts
		JOIN observations o ON o.id = observations_fts.rowid
		WHERE observations_fts MATCH ?`
	args := []interface{}{match}

	if q.Project != "" {
		query += ` AND o.project = ?`
		args = append(args, q.Project)
	}
	if q.Type != "" {
		query += ` AND o.type = ?`
		args = append(args, q.Type)
	}
	if q.DateFrom != nil {
		query += ` AND o.created_at >= ?`
		args = append(args, q.DateFrom.UnixMilli())
	}
	if q.DateTo != nil {
		query += ` AND o.created_at <= ?`
		args = append(args, q.DateTo.UnixMilli())
	}

	query += ` ORDER BY relevance DESC, o.created_at DESC LIMIT ?`
	args = append(args, q.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run lexical search: %w", err)
	}
	defer rows.Close()

	var results []LexicalResult
	for rows.Next() {
		var (
			r         LexicalResult
			createdAt int64
		)
		if err := rows.Scan(&r.ObservationID, &r.Relevance, &r.Snippet, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan lexical result: %w", err)
		}
		r.CreatedAt = time.UnixMilli(createdAt).UTC()
		results = append(results, r)
	}
	return results, rows.Err()
}

// sanitizeFTSQuery reduces free text to a safe FTS5 match expression:
// alphanumeric terms AND-joined, everything else (operators, quotes,
// punctuation) stripped.
func sanitizeFTSQuery(text string) string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_')
	})

	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		terms = append(terms, `"`+f+`"`)
	}
	return strings.Join(terms, " AND ")
}

// OptimizeFTS merges the FTS index's internal b-trees. The janitor runs
// this periodically; it is safe alongside concurrent readers.
func (s *Store) OptimizeFTS(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO observations_fts(observations_fts) VALUES ('optimize')`); err != nil {
		return fmt.Errorf("failed to optimize fts index: %w", err)
	}
	return nil
}

// TimelineEntry is one chronological item for the timeline view.
type TimelineEntry struct {
	Kind      string    `json:"kind"` // observation | prompt | summary
	ID        int64     `json:"id"`
	SessionID string    `json:"memory_session_id"`
	Project   string    `json:"project"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// TimelineEntries returns observations, prompts and summaries interleaved
// chronologically (oldest first), optionally filtered by project.
func (s *Store) TimelineEntries(ctx context.Context, project string, from, to *time.Time, limit int) ([]TimelineEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT kind, id, memory_session_id, project, title, created_at FROM (
			SELECT 'observation' AS kind, o.id, o.memory_session_id, o.project, o.title, o.created_at
			FROM observations o
			UNION ALL
			SELECT 'prompt' AS kind, p.id, p.memory_session_id, s.project,
			       substr(p.content, 1, 120), p.created_at
			FROM prompts p
			JOIN sessions s ON s.memory_session_id = p.memory_session_id
			UNION ALL
			SELECT 'summary' AS kind, m.id, m.memory_session_id, s.project,
			       COALESCE(m.request, ''), m.created_at
			FROM summaries m
			JOIN sessions s ON s.memory_session_id = m.memory_session_id
		)`

	var (
		clauses []string
		args    []interface{}
	)
	if project != "" {
		clauses = append(clauses, `project = ?`)
		args = append(args, project)
	}
	if from != nil {
		clauses = append(clauses, `created_at >= ?`)
		args = append(args, from.UnixMilli())
	}
	if to != nil {
		clauses = append(clauses, `created_at <= ?`)
		args = append(args, to.UnixMilli())
	}
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY created_at ASC, id ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query timeline: %w", err)
	}
	defer rows.Close()

	var entries []TimelineEntry
	for rows.Next() {
		var (
			e         TimelineEntry
			createdAt int64
		)
		if err := rows.Scan(&e.Kind, &e.ID, &e.SessionID, &e.Project, &e.Title, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan timeline entry: %w", err)
		}
		e.CreatedAt = time.UnixMilli(createdAt).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
