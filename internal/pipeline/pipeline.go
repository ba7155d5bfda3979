package pipeline

import (
	"log/slog"
	"time"

	"github.com/dmaltsev/takeout-sync/internal/progress"
	"github.com/dmaltsev/takeout-sync/internal/reconcile"
	"github.com/dmaltsev/takeout-sync/internal/state"
	"github.com/dmaltsev/takeout-sync/internal/store"
)

// Pipeline wires the store, the cursor state, and the remote metadata
// source into runnable ingest and sync operations. One pipeline serves
// one project directory; the caller guarantees a single active run at a
// time.
type Pipeline struct {
	store  *store.Store
	state  *state.State
	source reconcile.MetadataSource
	logger *slog.Logger

	pruneHTML   bool
	fullReparse bool
}

// Option adjusts pipeline behaviour.
type Option func(*Pipeline)

// WithPruneHTML rewrites archives with their cleaned content after
// parsing, so later runs skip the cleanup pass.
func WithPruneHTML() Option {
	return func(p *Pipeline) { p.pruneHTML = true }
}

// WithFullReparse drops the per-file cursors before ingest, forcing
// every archive to be parsed again. Dedup in the store keeps a re-parse
// from duplicating rows.
func WithFullReparse() Option {
	return func(p *Pipeline) { p.fullReparse = true }
}

// New builds a pipeline. Source may be nil for ingest-only use; Sync
// requires it.
func New(st *store.Store, cursors *state.State, source reconcile.MetadataSource, logger *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:  st,
		state:  cursors,
		source: source,
		logger: logger,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Sync refreshes stored metadata for every video not checked within the
// cutoff. Cancellation between batches ends the run cleanly with the
// partial summary.
func (p *Pipeline) Sync(run *Run, cutoff time.Duration) (*reconcile.Summary, error) {
	start := time.Now()

	rec := reconcile.New(p.store, p.source, p.logger)

	sum, err := rec.Run(run.Context(), run.ID, start.Add(-cutoff), run.Reporter)
	if err != nil {
		run.Reporter.Error(err)
		return sum, err
	}

	p.recordRun(run, "sync", start, run.Cancelled())

	run.Reporter.Stats(progress.StageSyncing, sum.Counts())
	run.Reporter.Stage(progress.StageDone)

	return sum, nil
}

// recordRun appends the run to the state file's history. Bookkeeping
// only; a failure is logged, never fatal.
func (p *Pipeline) recordRun(run *Run, kind string, started time.Time, cancelled bool) {
	r := state.Run{
		ID:         run.ID,
		Kind:       kind,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Cancelled:  cancelled,
	}

	if err := p.state.RecordRun(r); err != nil {
		p.logger.Warn("recording run failed", slog.String("error", err.Error()))
	}
}
