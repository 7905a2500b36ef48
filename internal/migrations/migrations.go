package migrations

import (
	"database/sql"
	"fmt"
)

// Migration represents a single database migration
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{
		Version: 1,
		Name:    "Add run listing indices",
		Up: `
			CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);
			CREATE INDEX IF NOT EXISTS idx_runs_state ON runs(state);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_runs_started_at;
			DROP INDEX IF EXISTS idx_runs_state;
		`,
	},
	{
		Version: 2,
		Name:    "Add bucket lookup indices",
		Up: `
			-- Per-run lookups ordered by volume (GetBuckets ORDER BY)
			CREATE INDEX IF NOT EXISTS idx_run_buckets_run_count ON run_buckets(run_id, count DESC);

			-- Cross-run comparison of one fingerprint
			CREATE INDEX IF NOT EXISTS idx_run_buckets_fingerprint ON run_buckets(fingerprint);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_run_buckets_run_count;
			DROP INDEX IF EXISTS idx_run_buckets_fingerprint;
		`,
	},
}

// InitSchema creates all tables required across all modules
// This must be called before running migrations to ensure all tables exist
func InitSchema(db *sql.DB) error {
	schema := `
	-- One row per replay run
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		trace TEXT NOT NULL,
		state TEXT NOT NULL,
		reason TEXT,
		started_at DATETIME NOT NULL,
		ended_at DATETIME,
		elapsed_ms INTEGER NOT NULL DEFAULT 0,
		concurrency INTEGER NOT NULL DEFAULT 0,
		dispatched INTEGER NOT NULL DEFAULT 0,
		completed INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		discarded INTEGER NOT NULL DEFAULT 0,
		throughput REAL NOT NULL DEFAULT 0,
		p50_ms REAL NOT NULL DEFAULT 0,
		p90_ms REAL NOT NULL DEFAULT 0,
		p99_ms REAL NOT NULL DEFAULT 0
	);

	-- Per-fingerprint statistics captured when the run ended
	CREATE TABLE IF NOT EXISTS run_buckets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		shape_class TEXT NOT NULL,
		namespace TEXT,
		kind TEXT,
		count INTEGER NOT NULL,
		errors INTEGER NOT NULL,
		p50_ms REAL NOT NULL DEFAULT 0,
		p90_ms REAL NOT NULL DEFAULT 0,
		p99_ms REAL NOT NULL DEFAULT 0,
		first_seen DATETIME,
		last_seen DATETIME,
		shape TEXT,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_run_buckets_run_id ON run_buckets(run_id);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// Run executes all pending migrations on the database
func Run(db *sql.DB) error {
	// Initialize schema first to ensure all tables exist
	if err := InitSchema(db); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	currentVersion, err := GetCurrentVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}

	for _, migration := range AllMigrations {
		if migration.Version <= currentVersion {
			continue
		}
		if err := apply(db, migration); err != nil {
			return err
		}
	}

	return nil
}

// apply runs one migration and records it in the same transaction
func apply(db *sql.DB, migration Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin migration %d: %w", migration.Version, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(migration.Up); err != nil {
		return fmt.Errorf("failed to apply migration %d (%s): %w", migration.Version, migration.Name, err)
	}
	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
		migration.Version,
		migration.Name,
	); err != nil {
		return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
	}
	return tx.Commit()
}

// GetCurrentVersion returns the current database schema version
func GetCurrentVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow(`
		SELECT COALESCE(MAX(version), 0)
		FROM schema_migrations
	`).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return 0, err
	}
	return version, nil
}
