// Package journal persists cleanup-time failures so they are surfaced to
// the next Open of the same key instead of being silently logged and
// forgotten (§7, §9 - resolving the open question over what should happen
// when the background upload/delete issued at handle cleanup fails after
// the caller has already gone away).
//
// This is a failure-visibility ledger, not a write-ahead log: it never
// retries or replays a failed operation itself.
package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/andybochmann/blob-mounter/metrics"
)

// Journal records sticky cleanup-time failures keyed by blob key.
type Journal struct {
	db *sql.DB
}

// Open opens (creating if necessary) a sqlite-backed Journal at path.
// path may be ":memory:" for a journal that doesn't survive the process.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, err
	}

	j := &Journal{db: db}
	if err := j.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) initSchema() error {
	_, err := j.db.Exec(`
	CREATE TABLE IF NOT EXISTS sticky_errors (
		key         TEXT PRIMARY KEY,
		op          TEXT NOT NULL,
		message     TEXT NOT NULL,
		occurred_at INTEGER NOT NULL
	);
	`)
	return err
}

// RecordFailure marks key as having an unresolved cleanup-time failure
// from op. A later RecordFailure for the same key overwrites the prior
// entry rather than accumulating history.
func (j *Journal) RecordFailure(key, op string, cause error) error {
	message := ""
	if cause != nil {
		message = cause.Error()
	}

	_, err := j.db.Exec(`
		INSERT INTO sticky_errors (key, op, message, occurred_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET op = excluded.op, message = excluded.message, occurred_at = excluded.occurred_at
	`, key, op, message, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("journal: recording failure for %q: %w", key, err)
	}
	metrics.StickyErrorsTotal.WithLabelValues(op).Inc()
	return nil
}

// Resolve clears any sticky failure recorded for key. Called after a
// subsequent successful upload or delete of that key.
func (j *Journal) Resolve(key string) error {
	_, err := j.db.Exec(`DELETE FROM sticky_errors WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("journal: resolving %q: %w", key, err)
	}
	return nil
}

// Check reports whether key currently has an unresolved sticky failure,
// and if so, the operation and message recorded for it.
func (j *Journal) Check(key string) (op string, message string, found bool, err error) {
	row := j.db.QueryRow(`SELECT op, message FROM sticky_errors WHERE key = ?`, key)
	err = row.Scan(&op, &message)
	if err == sql.ErrNoRows {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, fmt.Errorf("journal: checking %q: %w", key, err)
	}
	return op, message, true, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}
