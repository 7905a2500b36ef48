// Package history keeps a sqlite record of finished replay runs and their
// per-fingerprint statistics so runs can be listed and compared later.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/studiowebux/mongobar/internal/migrations"
	"github.com/studiowebux/mongobar/internal/replay"
	"github.com/studiowebux/mongobar/internal/stats"
)

// ErrRunNotFound is returned when no run matches an id or id prefix
var ErrRunNotFound = errors.New("run not found")

// ErrAmbiguousRun is returned when an id prefix matches more than one run
var ErrAmbiguousRun = errors.New("run id prefix is ambiguous")

// Run is one stored replay run
type Run struct {
	ID          string
	Trace       string
	State       string
	Reason      string
	StartedAt   time.Time
	EndedAt     *time.Time
	Elapsed     time.Duration
	Concurrency int
	Dispatched  int64
	Completed   int64
	Failed      int64
	Discarded   int64
	Throughput  float64
	P50Ms       float64
	P90Ms       float64
	P99Ms       float64
}

// Bucket is the stored statistics of one fingerprint within a run
type Bucket struct {
	RunID       string
	Fingerprint string
	ShapeClass  string
	Namespace   string
	Kind        string
	Count       int64
	Errors      int64
	P50Ms       float64
	P90Ms       float64
	P99Ms       float64
	FirstSeen   *time.Time
	LastSeen    *time.Time
	Shape       string
}

// Store handles run history persistence
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the history database at dbPath.
// ":memory:" opens a private in-memory database.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// Each :memory: connection would otherwise get its own database
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun stores a finished run and its buckets in a single transaction.
// Saving the same run id again replaces the earlier record.
func (s *Store) SaveRun(trace string, run replay.RunSnapshot, view stats.View) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM run_buckets WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("failed to clear previous buckets: %w", err)
	}

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO runs
		(id, trace, state, reason, started_at, ended_at, elapsed_ms, concurrency,
		 dispatched, completed, failed, discarded, throughput, p50_ms, p90_ms, p99_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, trace, run.State.String(), run.Reason, run.StartedAt.UTC(), nullTime(run.EndedAt),
		run.Elapsed.Milliseconds(), run.Limit, run.Dispatched, run.Completed, run.Failed, run.Discarded,
		view.Global.Throughput, millis(view.Global.P50), millis(view.Global.P90), millis(view.Global.P99))
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO run_buckets
		(run_id, fingerprint, shape_class, namespace, kind, count, errors,
		 p50_ms, p90_ms, p99_ms, first_seen, last_seen, shape)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, b := range view.Buckets {
		_, err := stmt.Exec(run.ID, b.Fingerprint.ID, b.Fingerprint.Class, b.Namespace, string(b.Kind),
			b.Count, b.Errors, millis(b.P50), millis(b.P90), millis(b.P99),
			nullTime(b.FirstSeen), nullTime(b.LastSeen), b.Shape)
		if err != nil {
			return fmt.Errorf("failed to insert bucket: %w", err)
		}
	}

	return tx.Commit()
}

const runColumns = `
	id, trace, state, COALESCE(reason, ''), started_at, ended_at, elapsed_ms, concurrency,
	dispatched, completed, failed, discarded, throughput, p50_ms, p90_ms, p99_ms`

// ListRuns returns stored runs, newest first. A limit of zero lists all.
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun retrieves a run by id or by a unique id prefix
func (s *Store) GetRun(id string) (*Run, error) {
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs WHERE id = ? OR id LIKE ? ORDER BY id = ? DESC LIMIT 2`,
		id, id+"%", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	defer rows.Close()

	var found []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch {
	case len(found) == 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case found[0].ID == id || len(found) == 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousRun, id)
	}
}

// GetBuckets returns the buckets of a run ordered by count
func (s *Store) GetBuckets(runID string) ([]*Bucket, error) {
	rows, err := s.db.Query(`
		SELECT run_id, fingerprint, shape_class, COALESCE(namespace, ''), COALESCE(kind, ''), count, errors,
		       p50_ms, p90_ms, p99_ms, first_seen, last_seen, COALESCE(shape, '')
		FROM run_buckets WHERE run_id = ?
		ORDER BY count DESC, fingerprint
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query buckets: %w", err)
	}
	defer rows.Close()

	var buckets []*Bucket
	for rows.Next() {
		b := &Bucket{}
		var first, last sql.NullTime
		err := rows.Scan(&b.RunID, &b.Fingerprint, &b.ShapeClass, &b.Namespace, &b.Kind, &b.Count, &b.Errors,
			&b.P50Ms, &b.P90Ms, &b.P99Ms, &first, &last, &b.Shape)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bucket: %w", err)
		}
		if first.Valid {
			b.FirstSeen = &first.Time
		}
		if last.Valid {
			b.LastSeen = &last.Time
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

// DeleteRun deletes a run and all its buckets
func (s *Store) DeleteRun(id string) error {
	_, err := s.db.Exec("DELETE FROM runs WHERE id = ?", id)
	return err
}

// Count returns the number of stored runs
func (s *Store) Count() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&count)
	return count, err
}

func scanRun(rows *sql.Rows) (*Run, error) {
	run := &Run{}
	var ended sql.NullTime
	var elapsedMs int64
	err := rows.Scan(&run.ID, &run.Trace, &run.State, &run.Reason, &run.StartedAt, &ended, &elapsedMs,
		&run.Concurrency, &run.Dispatched, &run.Completed, &run.Failed, &run.Discarded,
		&run.Throughput, &run.P50Ms, &run.P90Ms, &run.P99Ms)
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	if ended.Valid {
		run.EndedAt = &ended.Time
	}
	run.Elapsed = time.Duration(elapsedMs) * time.Millisecond
	return run, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
