package database

import (
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "test.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"002_add_index.sql":      {Data: []byte("CREATE INDEX idx ON t(a);")},
		"001_initial_schema.sql": {Data: []byte("CREATE TABLE t (a INTEGER);")},
		"README.md":              {Data: []byte("ignored")},
	}

	migs, err := LoadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, migs, 2)
	assert.Equal(t, 1, migs[0].Version)
	assert.Equal(t, "initial_schema", migs[0].Name)
	assert.Equal(t, 2, migs[1].Version)

	_, err = LoadMigrations(fstest.MapFS{"abc.sql": {Data: []byte("")}})
	assert.Error(t, err)

	_, err = LoadMigrations(fstest.MapFS{
		"001_a.sql": {Data: []byte("")},
		"1_b.sql":   {Data: []byte("")},
	})
	assert.Error(t, err)
}

func TestMigrator_RunIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	fsys := fstest.MapFS{
		"001_initial.sql": {Data: []byte("CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT);")},
	}
	m := NewMigrator(db, fsys, zap.NewNop())

	pending, err := m.Pending()
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	require.NoError(t, m.Run())
	require.NoError(t, m.Run())

	pending, err = m.Pending()
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = db.Exec("INSERT INTO widgets (name) VALUES ('a')")
	assert.NoError(t, err)
}

func TestMigrator_FailedMigrationIsNotRecorded(t *testing.T) {
	db := openTestDB(t)
	m := NewMigrator(db, fstest.MapFS{
		"001_broken.sql": {Data: []byte("CREATE TABLE oops (")},
	}, zap.NewNop())

	assert.Error(t, m.Run())
	pending, err := m.Pending()
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestDSN(t *testing.T) {
	dsn := DSN(Config{Path: "/tmp/x.db"})
	assert.Contains(t, dsn, "_busy_timeout=5000")
	assert.Contains(t, dsn, "_txlock=immediate")
	assert.Contains(t, dsn, "_foreign_keys=on")
}
