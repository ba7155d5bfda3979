package store

import (
	"context"
	"time"
)

// UpsertChannel inserts a channel or fills in a title the earlier
// insert lacked. A title already stored never changes.
func (s *Store) UpsertChannel(ctx context.Context, id, title string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO channels (id, title) VALUES (?, NULLIF(?, ''))
		ON CONFLICT(id) DO UPDATE SET
			title = COALESCE(channels.title, excluded.title)
	`, id, title)
	if err != nil {
		return &WriteError{Op: "upsert channel", ID: id, Err: err}
	}

	return nil
}

// UpsertVideo inserts a video row or completes fields the existing row
// is missing. Stored values win over incoming ones, mirroring how the
// accumulator completes fields across archive files.
func (s *Store) UpsertVideo(ctx context.Context, id, title, channelID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO videos (id, title, channel_id)
		VALUES (?, NULLIF(?, ''), NULLIF(?, ''))
		ON CONFLICT(id) DO UPDATE SET
			title      = COALESCE(videos.title, excluded.title),
			channel_id = COALESCE(videos.channel_id, excluded.channel_id)
	`, id, title, channelID)
	if err != nil {
		return &WriteError{Op: "upsert video", ID: id, Err: err}
	}

	return nil
}

// InsertTimestamps records watch events for a video, silently skipping
// ones already stored. Returns the number of new rows. The video row
// must exist.
func (s *Store) InsertTimestamps(ctx context.Context, videoID string, times []time.Time) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &WriteError{Op: "insert timestamps", ID: videoID, Err: err}
	}
	defer tx.Rollback()

	inserted := 0
	for _, ts := range times {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO watch_times (video_id, watched_at) VALUES (?, ?)
			ON CONFLICT DO NOTHING
		`, videoID, timeText(ts))
		if err != nil {
			return 0, &WriteError{Op: "insert timestamps", ID: videoID, Err: err}
		}

		n, err := res.RowsAffected()
		if err != nil {
			return 0, &WriteError{Op: "insert timestamps", ID: videoID, Err: err}
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, &WriteError{Op: "insert timestamps", ID: videoID, Err: err}
	}

	return inserted, nil
}

// RemoteMetadata carries the API fields the reconciler applies to a
// video. Raw holds the API item as JSON for ad hoc inspection.
type RemoteMetadata struct {
	Title           string
	ChannelID       string
	ChannelTitle    string
	PublishedAt     time.Time
	DurationSeconds int64
	ViewCount       int64
	LikeCount       int64
	Raw             []byte
}

// ApplyMetadata overwrites a video's stored metadata from the API,
// marks it active and stamps last_checked. Unlike ingest upserts, the
// API response is authoritative and replaces earlier values.
func (s *Store) ApplyMetadata(ctx context.Context, id string, meta RemoteMetadata, checkedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &WriteError{Op: "apply metadata", ID: id, Err: err}
	}
	defer tx.Rollback()

	if meta.ChannelID != "" {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO channels (id, title) VALUES (?, NULLIF(?, ''))
			ON CONFLICT(id) DO UPDATE SET
				title = COALESCE(excluded.title, channels.title)
		`, meta.ChannelID, meta.ChannelTitle)
		if err != nil {
			return &WriteError{Op: "apply metadata", ID: id, Err: err}
		}
	}

	published := ""
	if !meta.PublishedAt.IsZero() {
		published = timeText(meta.PublishedAt)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE videos SET
			title            = NULLIF(?, ''),
			channel_id       = NULLIF(?, ''),
			status           = ?,
			published_at     = NULLIF(?, ''),
			duration_seconds = ?,
			view_count       = ?,
			like_count       = ?,
			metadata         = NULLIF(?, ''),
			last_checked     = ?
		WHERE id = ?
	`,
		meta.Title,
		meta.ChannelID,
		StatusActive,
		published,
		meta.DurationSeconds,
		meta.ViewCount,
		meta.LikeCount,
		string(meta.Raw),
		timeText(checkedAt),
		id,
	)
	if err != nil {
		return &WriteError{Op: "apply metadata", ID: id, Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &WriteError{Op: "apply metadata", ID: id, Err: err}
	}

	return nil
}

// MarkInactive flags a video the API no longer returns and stamps
// last_checked. Earlier ingest metadata stays as the only record of
// what the video was.
func (s *Store) MarkInactive(ctx context.Context, id string, checkedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE videos SET status = ?, last_checked = ? WHERE id = ?
	`, StatusInactive, timeText(checkedAt), id)
	if err != nil {
		return &WriteError{Op: "mark inactive", ID: id, Err: err}
	}

	return nil
}

// MarkChecked bumps last_checked without touching status, for videos
// whose state the API confirmed unchanged.
func (s *Store) MarkChecked(ctx context.Context, id string, checkedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE videos SET last_checked = ? WHERE id = ?
	`, timeText(checkedAt), id)
	if err != nil {
		return &WriteError{Op: "mark checked", ID: id, Err: err}
	}

	return nil
}

// RecordSyncOutcome appends one reconciliation outcome to the sync log.
func (s *Store) RecordSyncOutcome(ctx context.Context, runID, videoID, outcome, detail string, checkedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_log (run_id, video_id, outcome, detail, checked_at)
		VALUES (?, ?, ?, NULLIF(?, ''), ?)
	`, runID, videoID, outcome, detail, timeText(checkedAt))
	if err != nil {
		return &WriteError{Op: "record sync outcome", ID: videoID, Err: err}
	}

	return nil
}
