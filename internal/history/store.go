// Package history is the orchestrator's durable state: per-task aging
// clocks, retry counters, and skip backoff timestamps, persisted to a
// sqlite database so a restarted scheduler doesn't lose its memory of
// how long a task has been waiting or how many times it has been retried.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps a sqlite-backed connection to the task history database.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS task_history (
	task_id      TEXT PRIMARY KEY,
	ready_since  DATETIME,
	retry_count  INTEGER NOT NULL DEFAULT 0,
	skip_count   INTEGER NOT NULL DEFAULT 0,
	last_skip_at DATETIME,
	last_outcome TEXT
);
`

// Open opens (creating if necessary) the sqlite database at path and
// ensures the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordReady sets a task's ready_since timestamp the first time it is
// observed ready, so its aging bonus can be computed on later ticks. A
// second call for the same task is a no-op.
func (s *Store) RecordReady(taskID string, at time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO task_history (task_id, ready_since) VALUES (?, ?)
		ON CONFLICT(task_id) DO UPDATE SET ready_since = COALESCE(task_history.ready_since, excluded.ready_since)
	`, taskID, at)
	if err != nil {
		return fmt.Errorf("failed to record ready timestamp for %s: %w", taskID, err)
	}
	return nil
}

// AgingBonus returns factor multiplied by the number of minutes taskID has
// been continuously ready, for the scheduler's priority score formula. A
// task with no recorded ready_since contributes zero.
func (s *Store) AgingBonus(taskID string, factor float64, now time.Time) (float64, error) {
	var readySince sql.NullTime
	err := s.db.QueryRow(`SELECT ready_since FROM task_history WHERE task_id = ?`, taskID).Scan(&readySince)
	if err == sql.ErrNoRows || !readySince.Valid {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read ready_since for %s: %w", taskID, err)
	}
	minutes := now.Sub(readySince.Time).Minutes()
	if minutes < 0 {
		minutes = 0
	}
	return minutes * factor, nil
}

// ClearReady removes a task's ready_since marker, used when a task leaves
// the ready set (claimed by a worker, or its dependencies regress).
func (s *Store) ClearReady(taskID string) error {
	_, err := s.db.Exec(`UPDATE task_history SET ready_since = NULL WHERE task_id = ?`, taskID)
	if err != nil {
		return fmt.Errorf("failed to clear ready timestamp for %s: %w", taskID, err)
	}
	return nil
}

// IncrementRetry records one more retry attempt for taskID and returns the
// new count.
func (s *Store) IncrementRetry(taskID string) (int, error) {
	_, err := s.db.Exec(`
		INSERT INTO task_history (task_id, retry_count) VALUES (?, 1)
		ON CONFLICT(task_id) DO UPDATE SET retry_count = task_history.retry_count + 1
	`, taskID)
	if err != nil {
		return 0, fmt.Errorf("failed to increment retry count for %s: %w", taskID, err)
	}
	return s.RetryCount(taskID)
}

// RetryCount returns the number of retries recorded for taskID.
func (s *Store) RetryCount(taskID string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT retry_count FROM task_history WHERE task_id = ?`, taskID).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read retry count for %s: %w", taskID, err)
	}
	return count, nil
}

// RecordSkip increments taskID's skip counter and stamps the skip time,
// starting its backoff window.
func (s *Store) RecordSkip(taskID string, at time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO task_history (task_id, skip_count, last_skip_at) VALUES (?, 1, ?)
		ON CONFLICT(task_id) DO UPDATE SET skip_count = task_history.skip_count + 1, last_skip_at = excluded.last_skip_at
	`, taskID, at)
	if err != nil {
		return fmt.Errorf("failed to record skip for %s: %w", taskID, err)
	}
	return nil
}

// SkipEligible reports whether taskID's skip backoff window has elapsed
// (or it has never been skipped), meaning the scheduler may consider it
// again.
func (s *Store) SkipEligible(taskID string, backoff time.Duration, now time.Time) (bool, error) {
	var lastSkip sql.NullTime
	err := s.db.QueryRow(`SELECT last_skip_at FROM task_history WHERE task_id = ?`, taskID).Scan(&lastSkip)
	if err == sql.ErrNoRows || !lastSkip.Valid {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read last skip time for %s: %w", taskID, err)
	}
	return now.Sub(lastSkip.Time) >= backoff, nil
}

// RecordOutcome stores the final disposition of a task's most recent run.
func (s *Store) RecordOutcome(taskID, outcome string) error {
	_, err := s.db.Exec(`
		INSERT INTO task_history (task_id, last_outcome) VALUES (?, ?)
		ON CONFLICT(task_id) DO UPDATE SET last_outcome = excluded.last_outcome
	`, taskID, outcome)
	if err != nil {
		return fmt.Errorf("failed to record outcome for %s: %w", taskID, err)
	}
	return nil
}
