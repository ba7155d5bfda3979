// Package state persists ingestion cursors and run history in a small
// bbolt database next to the watch database.
package state

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	// stateDirPerm is the permission mode for the state directory.
	stateDirPerm = fs.FileMode(0o700)

	// stateFilePerm is the permission mode for the state database file.
	stateFilePerm = fs.FileMode(0o600)

	// stateOpenTimeout is the maximum time to wait for the bolt database lock.
	stateOpenTimeout = 5 * time.Second
)

var (
	cursorsBucket = []byte("cursors")
	runsBucket    = []byte("runs")
)

// Cursor marks how far into one archive file ingestion has progressed.
// Marker is the flattened text of the newest entry the last time the
// file's records were fully persisted; entries at or above it are
// skipped on the next run.
type Cursor struct {
	Path      string    `json:"path"`
	Marker    string    `json:"marker"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Run records one pipeline invocation for the status command.
type Run struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Cancelled  bool      `json:"cancelled"`
}

// State wraps a bbolt database for all persistent pipeline state.
type State struct {
	db *bolt.DB
}

// Load opens the state database at the given path, creating it and its
// parent directory if they do not exist.
func Load(path string) (*State, error) {
	if err := os.MkdirAll(filepath.Dir(path), stateDirPerm); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := bolt.Open(path, stateFilePerm, &bolt.Options{Timeout: stateOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(cursorsBucket); err != nil {
			return err
		}

		_, err := tx.CreateBucketIfNotExists(runsBucket)

		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing state db: %w", err)
	}

	return &State{db: db}, nil
}

// Close closes the database.
func (s *State) Close() error {
	return s.db.Close()
}

// Cursor returns the cursor for an archive file, or nil if the file has
// never been ingested.
func (s *State) Cursor(path string) (*Cursor, error) {
	var c *Cursor

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(cursorsBucket)

		v := b.Get([]byte(path))
		if v == nil {
			return nil
		}

		c = &Cursor{}

		return json.Unmarshal(v, c)
	})

	return c, err
}

// SetCursor persists the cursor for an archive file.
func (s *State) SetCursor(c Cursor) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(c)
		if err != nil {
			return err
		}

		return tx.Bucket(cursorsBucket).Put([]byte(c.Path), data)
	})
}

// AllCursors returns every stored cursor, keyed by archive file path.
func (s *State) AllCursors() (map[string]Cursor, error) {
	result := make(map[string]Cursor)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(cursorsBucket)

		return b.ForEach(func(k, v []byte) error {
			var c Cursor
			if err := json.Unmarshal(v, &c); err != nil {
				return err
			}

			result[string(k)] = c

			return nil
		})
	})

	return result, err
}

// ClearCursors removes every stored cursor, forcing the next ingest to
// re-parse all archive files from the top.
func (s *State) ClearCursors() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(cursorsBucket); err != nil {
			return err
		}

		_, err := tx.CreateBucket(cursorsBucket)

		return err
	})
}

// RecordRun persists a run record.
func (s *State) RecordRun(r Run) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}

		return tx.Bucket(runsBucket).Put([]byte(r.ID), data)
	})
}

// LastRun returns the most recently started run, or nil if none has
// been recorded.
func (s *State) LastRun() (*Run, error) {
	var last *Run

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(runsBucket)

		return b.ForEach(func(_, v []byte) error {
			var r Run
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}

			if last == nil || r.StartedAt.After(last.StartedAt) {
				last = &r
			}

			return nil
		})
	})

	return last, err
}
