package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/dmaltsev/takeout-sync/internal/errors"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "takeout.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func watched(hour int) time.Time {
	return time.Date(2018, time.March, 15, hour, 0, 0, 0, time.UTC)
}

func videoColumn(t *testing.T, s *Store, id, column string) string {
	t.Helper()
	var value string
	err := s.db.QueryRow("SELECT COALESCE("+column+", '') FROM videos WHERE id = ?", id).Scan(&value)
	require.NoError(t, err)
	return value
}

// --- Open ---

func TestOpen_CreatesSchema(t *testing.T) {
	s := testStore(t)

	for _, table := range []string{"channels", "videos", "watch_times", "sync_log"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s missing", table)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "takeout.db")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.UpsertVideo(context.Background(), "vid00000001", "Title", ""))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	assert.Equal(t, "Title", videoColumn(t, s2, "vid00000001", "title"))
}

// --- Ingest writes ---

func TestUpsertVideo_CompletesMissingFields(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertChannel(ctx, "UCx", ""))
	require.NoError(t, s.UpsertVideo(ctx, "vid00000001", "", ""))
	require.NoError(t, s.UpsertVideo(ctx, "vid00000001", "Title", "UCx"))

	assert.Equal(t, "Title", videoColumn(t, s, "vid00000001", "title"))
	assert.Equal(t, "UCx", videoColumn(t, s, "vid00000001", "channel_id"))
	assert.Equal(t, StatusUnknown, videoColumn(t, s, "vid00000001", "status"))
}

func TestUpsertVideo_StoredValueWins(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertChannel(ctx, "UCx", ""))
	require.NoError(t, s.UpsertChannel(ctx, "UCx", "First Title"))
	require.NoError(t, s.UpsertChannel(ctx, "UCx", "Second Title"))
	require.NoError(t, s.UpsertVideo(ctx, "vid00000001", "First", "UCx"))
	require.NoError(t, s.UpsertVideo(ctx, "vid00000001", "Second", "UCx"))

	assert.Equal(t, "First", videoColumn(t, s, "vid00000001", "title"))

	var channelTitle string
	require.NoError(t, s.db.QueryRow("SELECT title FROM channels WHERE id = 'UCx'").Scan(&channelTitle))
	assert.Equal(t, "First Title", channelTitle)
}

func TestInsertTimestamps_CountsOnlyNewRows(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertVideo(ctx, "vid00000001", "Title", ""))

	n, err := s.InsertTimestamps(ctx, "vid00000001", []time.Time{watched(10), watched(14)})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Re-ingesting an overlapping set only adds the genuinely new row.
	n, err = s.InsertTimestamps(ctx, "vid00000001", []time.Time{watched(10), watched(18)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestInsertTimestamps_MissingVideoIsWriteError(t *testing.T) {
	s := testStore(t)

	_, err := s.InsertTimestamps(context.Background(), "absent00000", []time.Time{watched(10)})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrStoreWrite)

	var werr *WriteError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, "absent00000", werr.ID)
}

// --- Reconciler writes ---

func TestApplyMetadata_OverwritesAndActivates(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertVideo(ctx, "vid00000001", "Stale Title", ""))

	meta := RemoteMetadata{
		Title:           "Fresh Title",
		ChannelID:       "UCx",
		ChannelTitle:    "Fresh Channel",
		PublishedAt:     time.Date(2017, time.May, 1, 0, 0, 0, 0, time.UTC),
		DurationSeconds: 212,
		ViewCount:       1000,
		LikeCount:       50,
		Raw:             []byte(`{"snippet":{"title":"Fresh Title","categoryId":"10"}}`),
	}
	require.NoError(t, s.ApplyMetadata(ctx, "vid00000001", meta, watched(12)))

	assert.Equal(t, "Fresh Title", videoColumn(t, s, "vid00000001", "title"))
	assert.Equal(t, StatusActive, videoColumn(t, s, "vid00000001", "status"))
	assert.NotEmpty(t, videoColumn(t, s, "vid00000001", "last_checked"))

	var channelTitle string
	require.NoError(t, s.db.QueryRow("SELECT title FROM channels WHERE id = 'UCx'").Scan(&channelTitle))
	assert.Equal(t, "Fresh Channel", channelTitle)
}

func TestMarkInactive(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertVideo(ctx, "vid00000001", "Gone", ""))
	require.NoError(t, s.MarkInactive(ctx, "vid00000001", watched(12)))

	assert.Equal(t, StatusInactive, videoColumn(t, s, "vid00000001", "status"))
	assert.NotEmpty(t, videoColumn(t, s, "vid00000001", "last_checked"))
}

func TestMarkChecked_KeepsStatus(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertVideo(ctx, "vid00000001", "Still Gone", ""))
	require.NoError(t, s.MarkInactive(ctx, "vid00000001", watched(8)))
	require.NoError(t, s.MarkChecked(ctx, "vid00000001", watched(14)))

	assert.Equal(t, StatusInactive, videoColumn(t, s, "vid00000001", "status"))

	stale, err := s.VideosNeedingRefresh(ctx, watched(12))
	require.NoError(t, err)
	assert.Empty(t, stale)
}

// --- Refresh selection ---

func TestVideosNeedingRefresh(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertVideo(ctx, "never-checked", "", ""))
	require.NoError(t, s.UpsertVideo(ctx, "checked-long-ago", "", ""))
	require.NoError(t, s.MarkInactive(ctx, "checked-long-ago", watched(8)))
	require.NoError(t, s.UpsertVideo(ctx, "checked-recently", "", ""))
	require.NoError(t, s.MarkInactive(ctx, "checked-recently", watched(14)))
	require.NoError(t, s.UpsertVideo(ctx, UnknownVideoID, "", ""))

	stale, err := s.VideosNeedingRefresh(ctx, watched(12))
	require.NoError(t, err)

	require.Len(t, stale, 2)
	assert.Equal(t, "checked-long-ago", stale[0].ID)
	assert.Equal(t, StatusInactive, stale[0].Status)
	assert.Equal(t, "never-checked", stale[1].ID)
	assert.Equal(t, StatusUnknown, stale[1].Status)
}

// --- Summary ---

func TestSummary(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertChannel(ctx, "UCx", "Channel"))
	require.NoError(t, s.UpsertVideo(ctx, "vid00000001", "One", "UCx"))
	require.NoError(t, s.UpsertVideo(ctx, "vid00000002", "Two", "UCx"))
	require.NoError(t, s.UpsertVideo(ctx, UnknownVideoID, "", ""))

	_, err := s.InsertTimestamps(ctx, "vid00000001", []time.Time{watched(10), watched(14)})
	require.NoError(t, err)
	_, err = s.InsertTimestamps(ctx, UnknownVideoID, []time.Time{watched(20)})
	require.NoError(t, err)

	require.NoError(t, s.ApplyMetadata(ctx, "vid00000001", RemoteMetadata{
		Title:     "One",
		ChannelID: "UCx",
		Raw:       []byte(`{"snippet":{"tags":["music","live"],"categoryId":"10"}}`),
	}, watched(12)))
	require.NoError(t, s.ApplyMetadata(ctx, "vid00000002", RemoteMetadata{
		Title:     "Two",
		ChannelID: "UCx",
		Raw:       []byte(`{"snippet":{"categoryId":"10"}}`),
	}, watched(12)))
	require.NoError(t, s.RecordSyncOutcome(ctx, "run-001", "vid00000001", "updated", "", watched(12)))
	require.NoError(t, s.RecordSyncOutcome(ctx, "run-001", "vid00000002", "updated", "", watched(12)))

	sum, err := s.Summary(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Channels)
	assert.Equal(t, 2, sum.Videos)
	assert.Equal(t, 2, sum.WatchEvents)
	assert.Equal(t, 1, sum.UnknownTimestamps)
	assert.Equal(t, map[string]int{StatusActive: 2}, sum.ByStatus)
	assert.Equal(t, 1, sum.Tagged)
	assert.Equal(t, 1, sum.Categories)
	assert.Equal(t, map[string]int{"updated": 2}, sum.SyncOutcomes)
}
