package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file was not created")
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "Open() iteration %d", i)
		s.Close()
	}

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	tables := []string{"blocks", "pages", "databases", "comments", "sync_runs"}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		assert.NoError(t, err, "table %q not found after idempotent opens", table)
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("synchronous", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
}

func TestOpen_MigrationsSetUserVersion(t *testing.T) {
	s := createTestStore(t)

	assert.NoError(t, s.verifyPragma("user_version", "1"))

	for _, index := range []string{"idx_blocks_parent", "idx_comments_discussion", "idx_sync_runs_started"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='index' AND name=?",
			index,
		).Scan(&name)
		assert.NoError(t, err, "index %q missing", index)
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "test.db"))
	assert.Error(t, err)
}

func TestOpen_PathWithURISyntax(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wiki?mode=ro#1 %41.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()
	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))

	_, err = os.Stat(path)
	assert.NoError(t, err, "database not created under its literal name")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.Contains(t, e.Name(), "wiki?mode=ro#1 %41.db")
	}
}

func TestDSN(t *testing.T) {
	assert.Equal(t,
		"file:/tmp/a%3Fb%23c.db?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL",
		dsn("/tmp/a?b#c.db"))
	assert.Equal(t,
		"file:notion.db?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL",
		dsn("notion.db"))
}
