package memory

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// MigrationError reports a failed schema migration. The daemon treats it as
// fatal: serving against a half-migrated schema is worse than not starting.
type MigrationError struct {
	Version int
	Err     error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration %d failed: %v", e.Version, e.Err)
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}

// describeSchemaErr attaches an actionable hint to the one failure mode
// operators actually hit: a go-sqlite3 binary compiled without FTS5.
func describeSchemaErr(err error) error {
	if err != nil && strings.Contains(err.Error(), "no such module: fts5") {
		return fmt.Errorf(`%w (go-sqlite3 was compiled without FTS5; rebuild with -tags "sqlite_fts5", see the Makefile)`, err)
	}
	return err
}

type migration struct {
	version int
	name    string
	apply   func(tx *sql.Tx) error
}

// migrations is the ordered schema history. Versions are strictly
// increasing and never edited once shipped; schema changes append.
var migrations = []migration{
	{version: 1, name: "core tables", apply: migrateV1},
	{version: 2, name: "fts5 lexical index", apply: migrateV2},
}

// Migrate brings the database to the current schema version. Each pending
// migration runs inside its own transaction and is recorded in
// schema_migrations; applying the list twice is a no-op.
func Migrate(db *sql.DB, logger zerolog.Logger) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at INTEGER NOT NULL
	)`); err != nil {
		return &MigrationError{Version: 0, Err: err}
	}

	for _, m := range migrations {
		var exists int
		err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, m.version).Scan(&exists)
		if err != nil {
			return &MigrationError{Version: m.version, Err: err}
		}
		if exists > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return &MigrationError{Version: m.version, Err: err}
		}

		if err := m.apply(tx); err != nil {
			tx.Rollback()
			return &MigrationError{Version: m.version, Err: describeSchemaErr(err)}
		}

		if _, err := tx.Exec(`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
			m.version, time.Now().UnixMilli()); err != nil {
			tx.Rollback()
			return &MigrationError{Version: m.version, Err: err}
		}

		if err := tx.Commit(); err != nil {
			return &MigrationError{Version: m.version, Err: err}
		}

		logger.Info().Int("version", m.version).Str("name", m.name).Msg("Applied migration")
	}

	return nil
}

func migrateV1(tx *sql.Tx) error {
	schema := `
		CREATE TABLE sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			memory_session_id TEXT NOT NULL UNIQUE,
			project TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			created_at INTEGER NOT NULL,
			completed_at INTEGER
		);
		CREATE INDEX idx_sessions_status ON sessions(status);
		CREATE INDEX idx_sessions_project ON sessions(project);

		CREATE TABLE observations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			memory_session_id TEXT NOT NULL,
			project TEXT NOT NULL,
			type TEXT NOT NULL,
			title TEXT NOT NULL,
			subtitle TEXT,
			facts TEXT,
			narrative TEXT,
			concepts TEXT,
			files_read TEXT,
			files_modified TEXT,
			prompt_tokens INTEGER NOT NULL DEFAULT 0,
			completion_tokens INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX idx_observations_session ON observations(memory_session_id);
		CREATE INDEX idx_observations_project ON observations(project, created_at);
		CREATE INDEX idx_observations_created ON observations(created_at);

		CREATE TABLE summaries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			memory_session_id TEXT NOT NULL,
			request TEXT,
			investigated TEXT,
			learned TEXT,
			completed TEXT,
			next_steps TEXT,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX idx_summaries_session ON summaries(memory_session_id);

		CREATE TABLE prompts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			memory_session_id TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX idx_prompts_session ON prompts(memory_session_id);

		CREATE TABLE pending_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX idx_pending_session ON pending_messages(session_id, id);
	`
	_, err := tx.Exec(schema)
	return err
}

func migrateV2(tx *sql.Tx) error {
	// External-content FTS over observations; triggers keep it in sync so
	// writers never touch the index directly.
	schema := `
		CREATE VIRTUAL TABLE observations_fts USING fts5(
			title, subtitle, narrative, facts, concepts,
			content='observations',
			content_rowid='id',
			tokenize='porter unicode61'
		);

		CREATE TRIGGER observations_ai AFTER INSERT ON observations BEGIN
			INSERT INTO observations_fts(rowid, title, subtitle, narrative, facts, concepts)
			VALUES (new.id, new.title, new.subtitle, new.narrative, new.facts, new.concepts);
		END;

		CREATE TRIGGER observations_ad AFTER DELETE ON observations BEGIN
			INSERT INTO observations_fts(observations_fts, rowid, title, subtitle, narrative, facts, concepts)
			VALUES ('delete', old.id, old.title, old.subtitle, old.narrative, old.facts, old.concepts);
		END;
	`
	_, err := tx.Exec(schema)
	return err
}
