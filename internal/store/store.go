// Package store is the SQLite persistence layer for merged watch
// history and reconciled video metadata.
package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "github.com/dmaltsev/takeout-sync/internal/errors"
)

//go:embed schema.sql
var schemaSQL string

// Video lifecycle states. A video stays unknown until the reconciler
// has asked the API about it at least once.
const (
	StatusUnknown  = "unknown"
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// UnknownVideoID is the bucket row that owns timestamps whose entry
// carried no video id. It is never sent to the API.
const UnknownVideoID = "unknown"

// Store wraps the SQLite database holding watch history.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at the given path, applying
// pragmas and the schema. Safe to call on an existing database.
//
// SQLite allows a single writer, so the pool is pinned to one
// connection; WAL keeps reads available during writes.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying pragmas: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}

	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("executing %q: %w", pragma, err)
		}
	}

	return nil
}

// WriteError describes a failed store write. It matches
// errors.ErrStoreWrite so callers can classify without knowing the
// concrete type.
type WriteError struct {
	Op  string
	ID  string
	Err error
}

func (e *WriteError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("store: %s %s: %v", e.Op, e.ID, e.Err)
	}

	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

func (e *WriteError) Is(target error) bool { return target == apperrors.ErrStoreWrite }

// timeText formats a timestamp for storage. RFC3339 UTC strings
// compare lexicographically in time order, which the cutoff query
// relies on.
func timeText(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
