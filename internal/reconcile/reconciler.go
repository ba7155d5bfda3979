// Package reconcile refreshes stored video metadata against the
// YouTube Data API and tracks which videos have gone dark.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/dmaltsev/takeout-sync/internal/errors"
	"github.com/dmaltsev/takeout-sync/internal/progress"
	"github.com/dmaltsev/takeout-sync/internal/retry"
	"github.com/dmaltsev/takeout-sync/internal/store"
	"github.com/dmaltsev/takeout-sync/internal/youtube"
)

// Storage is the slice of the store the reconciler writes through.
type Storage interface {
	VideosNeedingRefresh(ctx context.Context, checkedBefore time.Time) ([]store.VideoStatus, error)
	ApplyMetadata(ctx context.Context, id string, meta store.RemoteMetadata, checkedAt time.Time) error
	MarkInactive(ctx context.Context, id string, checkedAt time.Time) error
	MarkChecked(ctx context.Context, id string, checkedAt time.Time) error
	RecordSyncOutcome(ctx context.Context, runID, videoID, outcome, detail string, checkedAt time.Time) error
}

// MetadataSource is the remote the stored history is reconciled
// against.
type MetadataSource interface {
	VerifyKey(ctx context.Context) error
	FetchBatch(ctx context.Context, ids []string) (map[string]*youtube.VideoMetadata, error)
}

// Summary counts what one reconciliation run did. Every video the API
// returned counts as Updated; NewlyActive is the additional tag for the
// returned videos that were not previously active, so it is always a
// subset of Updated.
type Summary struct {
	Checked       int
	Updated       int
	NewlyActive   int
	NewlyInactive int
	StillInactive int
	Failed        int
	Elapsed       time.Duration
}

func (s *Summary) count(o Outcome) {
	s.Checked++

	switch o {
	case OutcomeUpdated:
		s.Updated++
	case OutcomeNewlyActive:
		// A video the API returned got fresh metadata no matter what it
		// was before, so newly-active videos count as updated too.
		s.Updated++
		s.NewlyActive++
	case OutcomeNewlyInactive:
		s.NewlyInactive++
	case OutcomeStillInactive:
		s.StillInactive++
	case OutcomeFailed:
		s.Failed++
	}
}

// Counts returns the summary as event-stream counters.
func (s *Summary) Counts() map[string]int {
	return map[string]int{
		"checked":        s.Checked,
		"updated":        s.Updated,
		"newly_active":   s.NewlyActive,
		"newly_inactive": s.NewlyInactive,
		"still_inactive": s.StillInactive,
		"failed":         s.Failed,
	}
}

// Reconciler drives batched metadata refresh.
type Reconciler struct {
	storage   Storage
	source    MetadataSource
	logger    *slog.Logger
	retryCfg  retry.Config
	batchSize int
	now       func() time.Time
}

// New builds a reconciler with the default retry policy and the API's
// maximum batch size.
func New(storage Storage, source MetadataSource, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		storage:   storage,
		source:    source,
		logger:    logger,
		retryCfg:  retry.DefaultConfig(),
		batchSize: youtube.MaxBatchSize,
		now:       time.Now,
	}
}

// Run refreshes every video not checked since the cutoff. The key is
// verified before any batch so credential faults surface immediately.
// Quota exhaustion, credential faults and store write failures abort
// the run; a batch whose retries run out marks its videos failed and
// the run continues. Cancellation between batches ends the run cleanly
// with the partial summary and no error.
func (r *Reconciler) Run(ctx context.Context, runID string, cutoff time.Time, rep *progress.Reporter) (*Summary, error) {
	start := r.now()
	sum := &Summary{}

	rep.Stage(progress.StageSyncing)

	if err := r.source.VerifyKey(ctx); err != nil {
		return sum, fmt.Errorf("verifying API key: %w", err)
	}

	stale, err := r.storage.VideosNeedingRefresh(ctx, cutoff)
	if err != nil {
		return sum, fmt.Errorf("selecting stale videos: %w", err)
	}
	if len(stale) == 0 {
		r.logger.Info("no videos need refresh")
		sum.Elapsed = r.now().Sub(start)

		return sum, nil
	}

	r.logger.Info("refreshing videos",
		slog.Int("videos", len(stale)),
		slog.Int("batch_size", r.batchSize))

	for offset := 0; offset < len(stale); offset += r.batchSize {
		if ctx.Err() != nil {
			r.logger.Info("sync cancelled", slog.Int("checked", sum.Checked))
			sum.Elapsed = r.now().Sub(start)

			return sum, nil
		}

		end := offset + r.batchSize
		if end > len(stale) {
			end = len(stale)
		}

		if err := r.syncBatch(ctx, runID, stale[offset:end], sum, rep); err != nil {
			if errors.Is(err, context.Canceled) {
				r.logger.Info("sync cancelled", slog.Int("checked", sum.Checked))
				sum.Elapsed = r.now().Sub(start)

				return sum, nil
			}
			sum.Elapsed = r.now().Sub(start)

			return sum, err
		}

		// Each batch tick carries the running counters so a watcher can
		// follow the classification as it happens, not just at the end.
		rep.Progress(progress.StageSyncing, float64(end)/float64(len(stale))*100, sum.Counts())
	}

	sum.Elapsed = r.now().Sub(start)

	return sum, nil
}

// syncBatch fetches one batch and applies every outcome. Outcomes are
// only persisted once the fetch has succeeded, so an aborted batch
// leaves no rows behind.
func (r *Reconciler) syncBatch(ctx context.Context, runID string, batch []store.VideoStatus, sum *Summary, rep *progress.Reporter) error {
	ids := make([]string, len(batch))
	for i, vs := range batch {
		ids[i] = vs.ID
	}

	var found map[string]*youtube.VideoMetadata
	err := retry.Do(ctx, r.retryCfg, youtube.IsTransient, func(ctx context.Context) error {
		var ferr error
		found, ferr = r.source.FetchBatch(ctx, ids)

		return ferr
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrQuotaExceeded) ||
			errors.Is(err, apperrors.ErrAuth) ||
			errors.Is(err, context.Canceled) {
			return err
		}

		// The batch is lost for this run but the videos stay stale, so
		// the next run picks them up again.
		r.logger.Warn("batch fetch failed",
			slog.Int("videos", len(batch)),
			slog.String("error", err.Error()))
		rep.Warningf("batch of %d videos failed: %v", len(batch), err)

		return r.failBatch(ctx, runID, batch, sum, err)
	}

	checkedAt := r.now()
	for _, vs := range batch {
		meta, ok := found[vs.ID]
		outcome := Classify(vs.Status, ok)

		var werr error
		switch outcome {
		case OutcomeUpdated, OutcomeNewlyActive:
			werr = r.storage.ApplyMetadata(ctx, vs.ID, toRemote(meta), checkedAt)
		case OutcomeNewlyInactive:
			werr = r.storage.MarkInactive(ctx, vs.ID, checkedAt)
		case OutcomeStillInactive:
			werr = r.storage.MarkChecked(ctx, vs.ID, checkedAt)
		}
		if werr != nil {
			return werr
		}

		if err := r.storage.RecordSyncOutcome(ctx, runID, vs.ID, outcome.String(), "", checkedAt); err != nil {
			return err
		}

		switch outcome {
		case OutcomeNewlyActive:
			r.logger.Info("video became active", slog.String("video", vs.ID))
		case OutcomeNewlyInactive:
			r.logger.Info("video went inactive", slog.String("video", vs.ID))
		}

		sum.count(outcome)
	}

	return nil
}

func (r *Reconciler) failBatch(ctx context.Context, runID string, batch []store.VideoStatus, sum *Summary, cause error) error {
	checkedAt := r.now()
	for _, vs := range batch {
		// last_checked stays untouched so the next run retries these.
		if err := r.storage.RecordSyncOutcome(ctx, runID, vs.ID, OutcomeFailed.String(), cause.Error(), checkedAt); err != nil {
			return err
		}
		sum.count(OutcomeFailed)
	}

	return nil
}

func toRemote(meta *youtube.VideoMetadata) store.RemoteMetadata {
	return store.RemoteMetadata{
		Title:           meta.Title,
		ChannelID:       meta.ChannelID,
		ChannelTitle:    meta.ChannelTitle,
		PublishedAt:     meta.PublishedAt,
		DurationSeconds: meta.DurationSeconds,
		ViewCount:       meta.ViewCount,
		LikeCount:       meta.LikeCount,
		Raw:             meta.Raw,
	}
}
