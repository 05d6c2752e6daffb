// Package store is the transactional SQLite store shared by every worker.
// It is the single rendezvous point between services: all coordination
// happens through row state, never through direct worker-to-worker calls.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	openAttempts   = 3
	openRetryDelay = 1 * time.Second
)

// Store wraps a SQLite handle opened in WAL mode.
type Store struct {
	db *sql.DB
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Open connects to the SQLite database at path, creating the schema if
// needed. Transient open failures are retried with exponential backoff
// (1s, 2s) up to 3 attempts; callers treat a persistent failure as a
// skipped cycle.
func Open(path string) (*Store, error) {
	var lastErr error
	delay := openRetryDelay
	for attempt := 1; attempt <= openAttempts; attempt++ {
		db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
		if err == nil {
			err = db.Ping()
		}
		if err == nil {
			db.SetMaxOpenConns(1)
			db.SetMaxIdleConns(1)
			if err := createSchema(db); err != nil {
				db.Close()
				return nil, fmt.Errorf("store schema: %w", err)
			}
			return &Store{db: db}, nil
		}
		lastErr = err
		if attempt < openAttempts {
			time.Sleep(delay)
			delay *= 2
		}
	}
	return nil, fmt.Errorf("store open after %d attempts: %w", openAttempts, lastErr)
}

// Tx runs fn inside a transaction, rolling back on error.
func (s *Store) Tx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func nullFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func scanFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
