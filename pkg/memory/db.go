package memory

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Open opens (creating if needed) the memoir database with the pragmas the
// rest of the module assumes: WAL for concurrent readers alongside the
// writer goroutines and a busy timeout so claim statements wait out short
// lock contention.
//
// The lexical index needs FTS5, which go-sqlite3 only compiles in under the
// sqlite_fts5 build tag. All builds and tests must pass -tags "sqlite_fts5"
// (the Makefile does); without it migrations fail at startup with
// "no such module: fts5".
func Open(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}
