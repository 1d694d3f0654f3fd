package database

import (
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/garyjia/expense-approvals/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "test.db"), MaxOpenConns: 1}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestLoadMigrations_SortsByVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"002_add_index.sql":    {Data: []byte("CREATE INDEX i ON t(a);")},
		"001_create_table.sql": {Data: []byte("CREATE TABLE t (a TEXT);")},
		"README.md":            {Data: []byte("ignored")},
		"nested/003_seed.sql":  {Data: []byte("INSERT INTO t VALUES ('x');")},
	}

	got, err := LoadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 1, got[0].Version)
	assert.Equal(t, "create_table", got[0].Name)
	assert.Equal(t, 2, got[1].Version)
	assert.Equal(t, 3, got[2].Version)
	assert.Equal(t, "seed", got[2].Name)
}

func TestLoadMigrations_RejectsBadNames(t *testing.T) {
	_, err := LoadMigrations(fstest.MapFS{"initial.sql": {Data: []byte("SELECT 1;")}})
	assert.Error(t, err)

	_, err = LoadMigrations(fstest.MapFS{
		"001_a.sql": {Data: []byte("SELECT 1;")},
		"001_b.sql": {Data: []byte("SELECT 1;")},
	})
	assert.ErrorContains(t, err, "duplicate migration version 1")
}

func TestRunMigrations_AppliesOnce(t *testing.T) {
	db := openTestDB(t)
	migrator := NewMigrator(db, zap.NewNop())

	applied, err := migrator.RunMigrations(migrations.Files)
	require.NoError(t, err)
	assert.Greater(t, applied, 0)

	applied, err = migrator.RunMigrations(migrations.Files)
	require.NoError(t, err)
	assert.Equal(t, 0, applied)

	var tables int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table'
		AND name IN ('companies', 'users', 'expenses', 'approval_history', 'workflow_rules')`).Scan(&tables)
	require.NoError(t, err)
	assert.Equal(t, 5, tables)
}

func TestRunMigrations_FailedMigrationIsNotRecorded(t *testing.T) {
	db := openTestDB(t)
	migrator := NewMigrator(db, zap.NewNop())

	_, err := migrator.RunMigrations(fstest.MapFS{
		"001_ok.sql":     {Data: []byte("CREATE TABLE ok (a TEXT);")},
		"002_broken.sql": {Data: []byte("CREATE TABLE ;")},
	})
	require.Error(t, err)

	var versions int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&versions))
	assert.Equal(t, 1, versions)
}
