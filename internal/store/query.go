package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

// VideoStatus pairs a video id with its stored lifecycle state. The
// reconciler needs the prior state to classify the API answer.
type VideoStatus struct {
	ID     string
	Status string
}

// VideosNeedingRefresh returns videos not checked since the cutoff,
// oldest ids first. Never-checked videos always qualify; the unknown
// bucket never does.
func (s *Store) VideosNeedingRefresh(ctx context.Context, checkedBefore time.Time) ([]VideoStatus, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status FROM videos
		WHERE id <> ? AND (last_checked IS NULL OR last_checked < ?)
		ORDER BY id
	`, UnknownVideoID, timeText(checkedBefore))
	if err != nil {
		return nil, fmt.Errorf("querying stale videos: %w", err)
	}
	defer rows.Close()

	var stale []VideoStatus
	for rows.Next() {
		var vs VideoStatus
		if err := rows.Scan(&vs.ID, &vs.Status); err != nil {
			return nil, fmt.Errorf("scanning stale video: %w", err)
		}
		stale = append(stale, vs)
	}

	return stale, rows.Err()
}

// Summary aggregates the database for the status command.
type Summary struct {
	Channels          int
	Videos            int
	ByStatus          map[string]int
	WatchEvents       int
	UnknownTimestamps int
	Tagged            int
	Categories        int
	SyncOutcomes      map[string]int
}

// Summary counts the stored history. Tagged and Categories come from
// the raw API metadata blobs: Tagged counts videos whose snippet
// carries tags, Categories counts distinct category ids seen.
func (s *Store) Summary(ctx context.Context) (*Summary, error) {
	sum := &Summary{
		ByStatus:     make(map[string]int),
		SyncOutcomes: make(map[string]int),
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM channels`,
	).Scan(&sum.Channels); err != nil {
		return nil, fmt.Errorf("counting channels: %w", err)
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM videos WHERE id <> ?`, UnknownVideoID,
	).Scan(&sum.Videos); err != nil {
		return nil, fmt.Errorf("counting videos: %w", err)
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM watch_times WHERE video_id <> ?`, UnknownVideoID,
	).Scan(&sum.WatchEvents); err != nil {
		return nil, fmt.Errorf("counting watch events: %w", err)
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM watch_times WHERE video_id = ?`, UnknownVideoID,
	).Scan(&sum.UnknownTimestamps); err != nil {
		return nil, fmt.Errorf("counting unknown timestamps: %w", err)
	}

	if err := s.groupCount(ctx, sum.ByStatus,
		`SELECT status, COUNT(*) FROM videos WHERE id <> ? GROUP BY status`, UnknownVideoID,
	); err != nil {
		return nil, err
	}

	if err := s.groupCount(ctx, sum.SyncOutcomes,
		`SELECT outcome, COUNT(*) FROM sync_log GROUP BY outcome`,
	); err != nil {
		return nil, err
	}

	if err := s.scanMetadata(ctx, sum); err != nil {
		return nil, err
	}

	return sum, nil
}

func (s *Store) groupCount(ctx context.Context, dst map[string]int, query string, args ...any) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("grouping counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("scanning group count: %w", err)
		}
		dst[key] = n
	}

	return rows.Err()
}

func (s *Store) scanMetadata(ctx context.Context, sum *Summary) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT metadata FROM videos WHERE metadata IS NOT NULL
	`)
	if err != nil {
		return fmt.Errorf("querying metadata: %w", err)
	}
	defer rows.Close()

	categories := make(map[string]struct{})
	for rows.Next() {
		var raw sql.NullString
		if err := rows.Scan(&raw); err != nil {
			return fmt.Errorf("scanning metadata: %w", err)
		}
		if !raw.Valid {
			continue
		}

		if gjson.Get(raw.String, "snippet.tags").Exists() {
			sum.Tagged++
		}
		if cat := gjson.Get(raw.String, "snippet.categoryId").String(); cat != "" {
			categories[cat] = struct{}{}
		}
	}
	sum.Categories = len(categories)

	return rows.Err()
}
