package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	apperrors "github.com/dmaltsev/takeout-sync/internal/errors"
	"github.com/dmaltsev/takeout-sync/internal/progress"
	"github.com/dmaltsev/takeout-sync/internal/records"
	"github.com/dmaltsev/takeout-sync/internal/state"
	"github.com/dmaltsev/takeout-sync/internal/takeout"
)

// persistChunkSize bounds how many records are written between
// cancellation checks during the persist stage.
const persistChunkSize = 200

// warningCap bounds how many per-entry parse failures become individual
// warning events before they collapse into one aggregate.
const warningCap = 10

// IngestSummary counts what one ingestion run did.
type IngestSummary struct {
	Files             int
	CorruptFiles      int
	Entries           int
	Skipped           int
	Videos            int
	WatchEvents       int
	UnknownTimestamps int
	FailedEntries     int
	NewTimestamps     int
	Cancelled         bool
	Elapsed           time.Duration
}

func (s *IngestSummary) stats() map[string]int {
	return map[string]int{
		"files":              s.Files,
		"corrupt_files":      s.CorruptFiles,
		"entries":            s.Entries,
		"skipped":            s.Skipped,
		"videos":             s.Videos,
		"watch_events":       s.WatchEvents,
		"unknown_timestamps": s.UnknownTimestamps,
		"failed_entries":     s.FailedEntries,
		"new_timestamps":     s.NewTimestamps,
	}
}

// Ingest parses every watch-history archive under dir and merges it into
// the store. Archives are processed oldest first so later exports only
// backfill fields the earlier ones missed. A corrupt archive is reported
// and skipped; the run fails only when every located file is corrupt.
// Cursors advance only after the persist stage completes, so an
// interrupted run re-parses at worst what it had not yet committed.
func (p *Pipeline) Ingest(run *Run, dir string) (*IngestSummary, error) {
	start := time.Now()
	sum := &IngestSummary{}
	rep := run.Reporter

	defer func() { sum.Elapsed = time.Since(start) }()

	if p.fullReparse {
		if err := p.state.ClearCursors(); err != nil {
			rep.Error(err)
			return sum, fmt.Errorf("clearing cursors: %w", err)
		}

		p.logger.Info("cursors cleared, re-parsing every archive")
	}

	rep.Stage(progress.StageLocating)

	files, err := takeout.LocateWatchFiles(p.logger, dir)
	if err != nil {
		rep.Error(err)
		return sum, err
	}
	if len(files) == 0 {
		err := fmt.Errorf("locating archives in %s: %w", dir, apperrors.ErrNoWatchFiles)
		rep.Error(err)

		return sum, err
	}

	p.logger.Info("located watch-history files", slog.Int("files", len(files)))

	acc := records.NewAccumulator()
	markers := make(map[string]string)

	for i, path := range files {
		if run.Cancelled() {
			sum.Cancelled = true
			break
		}

		rep.Stage(progress.StageParsing)
		rep.Progress(progress.StageParsing, float64(i)/float64(len(files))*100, nil)

		res, err := p.parseFile(path)
		if err != nil {
			if errors.Is(err, apperrors.ErrCorruptArchive) {
				sum.CorruptFiles++
				rep.Warningf("skipping corrupt archive %s: %v", path, err)
				p.logger.Warn("corrupt archive skipped", slog.String("file", path))

				continue
			}

			rep.Error(err)

			return sum, err
		}

		rep.Stage(progress.StageMerging)
		acc.MergeFile(path, res)

		markers[path] = res.NewMarker
		sum.Files++
		sum.Entries += len(res.Entries)
		sum.Skipped += res.Skipped
	}

	if sum.Files == 0 && sum.CorruptFiles > 0 {
		err := fmt.Errorf("all %d archives corrupt: %w", sum.CorruptFiles, apperrors.ErrCorruptArchive)
		rep.Error(err)

		return sum, err
	}

	totals := acc.Finalize()
	sum.Videos = totals.Videos
	sum.WatchEvents = totals.WatchEvents
	sum.UnknownTimestamps = totals.UnknownTimestamps
	sum.FailedEntries = totals.FailedEntries

	p.warnFailedEntries(rep, acc.Failed())

	persisted, err := p.persist(run, acc.Records(), sum)
	if err != nil {
		rep.Error(err)
		return sum, err
	}

	// Cursors move only for fully persisted runs. A cancelled persist
	// keeps the old markers and the next run re-parses; the tolerance
	// dedup makes that harmless.
	if persisted {
		for path, marker := range markers {
			cursor := state.Cursor{Path: path, Marker: marker, UpdatedAt: time.Now()}
			if err := p.state.SetCursor(cursor); err != nil {
				return sum, fmt.Errorf("saving cursor for %s: %w", path, err)
			}
		}
	}

	p.recordRun(run, "ingest", start, sum.Cancelled)

	rep.Stats(progress.StagePersisting, sum.stats())
	rep.Stage(progress.StageDone)

	p.logger.Info("ingest finished",
		slog.Int("files", sum.Files),
		slog.Int("videos", sum.Videos),
		slog.Int("new_timestamps", sum.NewTimestamps),
		slog.Bool("cancelled", sum.Cancelled))

	return sum, nil
}

// parseFile reads, cleans and parses one archive, resuming from the
// file's cursor when one exists.
func (p *Pipeline) parseFile(path string) (*takeout.ParseResult, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading archive: %w", err)
	}

	var marker string

	cursor, err := p.state.Cursor(path)
	if err != nil {
		return nil, fmt.Errorf("loading cursor for %s: %w", path, err)
	}
	if cursor != nil {
		marker = cursor.Marker
	}

	content := takeout.CleanContent(string(raw))

	if p.pruneHTML && content != string(raw) {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			p.logger.Warn("pruning archive failed",
				slog.String("file", path),
				slog.String("error", err.Error()))
		}
	}

	res, err := takeout.ParseEntries(content, marker)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	p.logger.Debug("parsed archive",
		slog.String("file", path),
		slog.Int("entries", len(res.Entries)),
		slog.Int("skipped", res.Skipped),
		slog.Int("failed", len(res.Failed)))

	return res, nil
}

// persist writes the merged records in chunks, polling cancellation
// between them. Returns false when the run was cancelled before every
// chunk was committed.
func (p *Pipeline) persist(run *Run, recs []*records.Record, sum *IngestSummary) (bool, error) {
	ctx := run.Context()
	rep := run.Reporter

	rep.Stage(progress.StagePersisting)

	for offset := 0; offset < len(recs); offset += persistChunkSize {
		if run.Cancelled() {
			sum.Cancelled = true
			return false, nil
		}

		end := offset + persistChunkSize
		if end > len(recs) {
			end = len(recs)
		}

		for _, rec := range recs[offset:end] {
			if rec.ChannelID != "" {
				if err := p.store.UpsertChannel(ctx, rec.ChannelID, rec.ChannelTitle); err != nil {
					return false, err
				}
			}

			if err := p.store.UpsertVideo(ctx, rec.VideoID, rec.Title, rec.ChannelID); err != nil {
				return false, err
			}

			added, err := p.store.InsertTimestamps(ctx, rec.VideoID, rec.WatchedAt)
			if err != nil {
				return false, err
			}

			sum.NewTimestamps += added
		}

		rep.Progress(progress.StagePersisting, float64(end)/float64(len(recs))*100, nil)
	}

	return !sum.Cancelled, nil
}

func (p *Pipeline) warnFailedEntries(rep *progress.Reporter, failed []records.FailedEntry) {
	for i, fe := range failed {
		if i == warningCap {
			rep.Warningf("%d more entries failed to parse", len(failed)-warningCap)
			break
		}

		rep.Warningf("unparseable entry in %s: %v", fe.File, fe.Reason)
	}
}
