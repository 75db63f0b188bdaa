package vector

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	// The cgo bindings link against the sqlite3 amalgamation compiled into
	// the mattn driver; without this import the package cannot link on its own.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

func init() {
	// Auto-register the sqlite-vec extension on every new connection
	sqlite_vec.Auto()
}

// SQLiteVecIndex stores embeddings in a vec0 virtual table inside the
// shared memoir database and queries with vec_distance_cosine, joining
// back to observations for filter columns.
type SQLiteVecIndex struct {
	db       *sql.DB
	embedder Embedder
	logger   zerolog.Logger
}

// NewSQLiteVecIndex creates the vec0 table if missing. The table dimension
// follows the embedder, so switching embedding models requires a reindex
// into a fresh data directory.
func NewSQLiteVecIndex(db *sql.DB, embedder Embedder, logger zerolog.Logger) (*SQLiteVecIndex, error) {
	schema := fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS observation_embeddings USING vec0(
			observation_id INTEGER PRIMARY KEY,
			embedding float[%d] distance_metric=cosine
		)`, embedder.Dimension())

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create vector table: %w", err)
	}

	return &SQLiteVecIndex{db: db, embedder: embedder, logger: logger}, nil
}

// Add embeds the document text and upserts its vector.
func (i *SQLiteVecIndex) Add(ctx context.Context, doc Document) error {
	vectors, err := i.embedder.Embed(ctx, []string{doc.Text})
	if err != nil {
		return fmt.Errorf("failed to embed document: %w", err)
	}

	embeddingJSON, err := json.Marshal(vectors[0])
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	// vec0 has no upsert; delete first so re-adding an id never errors
	if _, err := i.db.ExecContext(ctx,
		`DELETE FROM observation_embeddings WHERE observation_id = ?`, doc.ObservationID); err != nil {
		return fmt.Errorf("failed to replace embedding: %w", err)
	}
	if _, err := i.db.ExecContext(ctx,
		`INSERT INTO observation_embeddings (observation_id, embedding) VALUES (?, ?)`,
		doc.ObservationID, string(embeddingJSON)); err != nil {
		return fmt.Errorf("failed to insert embedding: %w", err)
	}

	i.logger.Debug().Int64("observation_id", doc.ObservationID).Msg("Indexed embedding")
	return nil
}

// Query embeds the query text and returns the k nearest observations that
// pass the filter, similarity normalized as 1 - cosine distance.
func (i *SQLiteVecIndex) Query(ctx context.Context, text string, k int, f Filter) ([]Match, error) {
	if k <= 0 {
		k = 20
	}

	vectors, err := i.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	embeddingJSON, err := json.Marshal(vectors[0])
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query embedding: %w", err)
	}

	query := `
		SELECT e.observation_id,
		       o.created_at,
		       vec_distance_cosine(e.embedding, ?) AS distance
		FROM observation_embeddings e
		JOIN observations o ON o.id = e.observation_id
		WHERE 1=1`
	args := []interface{}{string(embeddingJSON)}

	if f.Project != "" {
		query += ` AND o.project = ?`
		args = append(args, f.Project)
	}
	if f.Type != "" {
		query += ` AND o.type = ?`
		args = append(args, f.Type)
	}
	if f.DateFrom != nil {
		query += ` AND o.created_at >= ?`
		args = append(args, f.DateFrom.UnixMilli())
	}
	if f.DateTo != nil {
		query += ` AND o.created_at <= ?`
		args = append(args, f.DateTo.UnixMilli())
	}

	query += ` ORDER BY distance ASC LIMIT ?`
	args = append(args, k)

	rows, err := i.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run vector query: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var (
			id        int64
			createdMS int64
			distance  float64
		)
		if err := rows.Scan(&id, &createdMS, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan vector match: %w", err)
		}
		matches = append(matches, Match{
			ObservationID: id,
			Similarity:    clamp01(1 - distance),
			CreatedAt:     time.UnixMilli(createdMS).UTC(),
		})
	}
	return matches, rows.Err()
}

// Count returns the number of indexed embeddings.
func (i *SQLiteVecIndex) Count(ctx context.Context) (int, error) {
	var count int
	err := i.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM observation_embeddings`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count embeddings: %w", err)
	}
	return count, nil
}

// Close is a no-op; the shared database handle is owned by the daemon.
func (i *SQLiteVecIndex) Close() error {
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

var _ Index = (*SQLiteVecIndex)(nil)
