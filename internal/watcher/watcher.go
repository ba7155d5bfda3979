// Package watcher triggers ingest runs when new watch-history archives
// land in the takeout directory.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	// debounceInterval is how often pending events are checked. Takeout
	// downloads arrive as multi-megabyte writes, so a single archive
	// fires many write events in quick succession.
	debounceInterval = time.Second

	// settleDelay is how long a path must stay quiet before the trigger
	// fires, so a half-extracted bundle is not ingested mid-copy.
	settleDelay = 2 * time.Second
)

// TriggerFunc runs one ingest over the watched directory.
type TriggerFunc func(ctx context.Context) error

// Watcher monitors the takeout directory and fires the trigger when new
// archives appear. Rapid events for the same run collapse into one
// trigger.
type Watcher struct {
	dir     string
	trigger TriggerFunc
	logger  *slog.Logger
}

// New creates a watcher over dir.
func New(dir string, trigger TriggerFunc, logger *slog.Logger) *Watcher {
	return &Watcher{dir: dir, trigger: trigger, logger: logger}
}

// Watch blocks until the context is cancelled, running the trigger
// whenever archive files settle. Trigger failures are logged and the
// watch continues; the next archive gets a fresh run.
func (w *Watcher) Watch(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watching takeout dir: %w", err)
	}

	w.logger.Info("watching for new archives", slog.String("dir", w.dir))

	// Debounce: batch rapid writes into a single ingest.
	pending := make(map[string]time.Time)

	ticker := time.NewTicker(debounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return fmt.Errorf("fsnotify events channel closed unexpectedly")
			}

			if !isArchiveEvent(event) {
				continue
			}

			pending[event.Name] = time.Now()

		case err, ok := <-fsw.Errors:
			if !ok {
				return fmt.Errorf("fsnotify errors channel closed unexpectedly")
			}

			w.logger.Warn("watcher error", slog.String("error", err.Error()))

		case <-ticker.C:
			if len(pending) == 0 {
				continue
			}

			if !settled(pending, time.Now()) {
				continue
			}

			w.logger.Info("archive changes settled, ingesting",
				slog.Int("paths", len(pending)))

			clear(pending)

			if err := w.trigger(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}

				w.logger.Error("triggered ingest failed", slog.String("error", err.Error()))
			}
		}
	}
}

// settled reports whether every pending path has been quiet long enough.
func settled(pending map[string]time.Time, now time.Time) bool {
	for _, t := range pending {
		if now.Sub(t) < settleDelay {
			return false
		}
	}

	return true
}

// isArchiveEvent keeps only creations and writes of things that can hold
// watch history: the html files themselves or extracted bundle dirs.
func isArchiveEvent(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}

	base := filepath.Base(event.Name)

	if strings.HasPrefix(base, "watch-history") && strings.HasSuffix(base, ".html") {
		return true
	}

	return strings.HasPrefix(base, "takeout-2")
}
