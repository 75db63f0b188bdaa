package memory

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_AppliesAllVersions(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "memoir.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Migrate(db, zerolog.Nop()))

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&count))
	assert.Equal(t, len(migrations), count)

	// All tables exist and accept rows
	for _, table := range []string{"sessions", "observations", "summaries", "prompts", "pending_messages"} {
		var n int
		require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n), table)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "memoir.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Migrate(db, zerolog.Nop()))
	require.NoError(t, Migrate(db, zerolog.Nop()))

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&count))
	assert.Equal(t, len(migrations), count, "second run must not reapply versions")
}

func TestDescribeSchemaErr_MissingFTS5(t *testing.T) {
	err := describeSchemaErr(errors.New("no such module: fts5"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite_fts5", "error must name the required build tag")

	other := errors.New("table observations already exists")
	assert.Same(t, other, describeSchemaErr(other))
	assert.NoError(t, describeSchemaErr(nil))
}

func TestMigrate_FTSTriggerSync(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "memoir.db"))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, Migrate(db, zerolog.Nop()))

	_, err = db.Exec(`INSERT INTO observations
		(memory_session_id, project, type, title, narrative, created_at)
		VALUES ('s1', 'proj', 'discovery', 'websocket reconnect bug', 'found a race in reconnect logic', 1)`)
	require.NoError(t, err)

	var matches int
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM observations_fts WHERE observations_fts MATCH 'reconnect'`).Scan(&matches))
	assert.Equal(t, 1, matches, "insert trigger must index the observation")

	_, err = db.Exec(`DELETE FROM observations WHERE memory_session_id = 's1'`)
	require.NoError(t, err)
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM observations_fts WHERE observations_fts MATCH 'reconnect'`).Scan(&matches))
	assert.Zero(t, matches, "delete trigger must remove the index entry")
}
