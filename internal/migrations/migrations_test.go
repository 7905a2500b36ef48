package migrations

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunAppliesAll(t *testing.T) {
	db := openMemory(t)
	require.NoError(t, Run(db))

	version, err := GetCurrentVersion(db)
	require.NoError(t, err)
	assert.Equal(t, AllMigrations[len(AllMigrations)-1].Version, version)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = 'idx_run_buckets_fingerprint'`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestRunIsIdempotent(t *testing.T) {
	db := openMemory(t)
	require.NoError(t, Run(db))
	require.NoError(t, Run(db))

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n))
	assert.Equal(t, len(AllMigrations), n)
}

func TestMigrationVersionsAscend(t *testing.T) {
	for i := 1; i < len(AllMigrations); i++ {
		assert.Greater(t, AllMigrations[i].Version, AllMigrations[i-1].Version)
	}
}
