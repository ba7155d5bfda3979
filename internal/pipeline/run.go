// Package pipeline orchestrates the ingestion and synchronization runs:
// locating archives, parsing and merging them, persisting the result,
// and refreshing stored metadata against the remote API.
package pipeline

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dmaltsev/takeout-sync/internal/progress"
)

// Run carries per-invocation state: the run id, the event stream, and
// the cancellation flag. There are no process-wide flags; a caller that
// wants to stop a run calls Cancel on its Run and nothing else is
// affected.
type Run struct {
	// ID tags the run in logs and the sync_log table.
	ID string

	// Reporter is the run's event stream. The pipeline is its only
	// producer.
	Reporter *progress.Reporter

	ctx       context.Context
	cancel    context.CancelFunc
	cancelled atomic.Bool
}

// NewRun creates a run bound to the parent context. Cancelling the
// parent cancels the run.
func NewRun(ctx context.Context) *Run {
	rctx, cancel := context.WithCancel(ctx)

	return &Run{
		ID:       uuid.NewString(),
		Reporter: progress.NewReporter(),
		ctx:      rctx,
		cancel:   cancel,
	}
}

// Context returns the run's context. Blocking operations inside the run
// use it so Cancel interrupts backoff waits and in-flight requests.
func (r *Run) Context() context.Context {
	return r.ctx
}

// Cancel requests a cooperative stop. The run finishes its current
// file or batch and returns the partial summary without an error.
func (r *Run) Cancel() {
	r.cancelled.Store(true)
	r.cancel()
}

// Cancelled reports whether the run should stop. Checked at every
// suspension point: between archive files, between store-write chunks,
// and between API batches.
func (r *Run) Cancelled() bool {
	return r.cancelled.Load() || r.ctx.Err() != nil
}
