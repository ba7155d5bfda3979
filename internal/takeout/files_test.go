package takeout

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("<html></html>"), 0o644))
}

func TestLocateWatchFiles(t *testing.T) {
	dir := t.TempDir()

	touch(t, filepath.Join(dir, "watch-history.html"))
	touch(t, filepath.Join(dir, "watch-history-2019.html"))
	touch(t, filepath.Join(dir, "takeout-20190801T123456Z-001", "Takeout", "YouTube", "history", "watch-history.html"))

	// None of these should be picked up.
	touch(t, filepath.Join(dir, "watch-history.json"))
	touch(t, filepath.Join(dir, "notes.html"))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "music"), 0o755))

	files, err := LocateWatchFiles(testLogger(), dir)
	require.NoError(t, err)

	want := []string{
		filepath.Join(dir, "takeout-20190801T123456Z-001", "Takeout", "YouTube", "history", "watch-history.html"),
		filepath.Join(dir, "watch-history-2019.html"),
		filepath.Join(dir, "watch-history.html"),
	}
	assert.Equal(t, want, files)
}

func TestLocateWatchFiles_SkipsBundleWithoutHistory(t *testing.T) {
	dir := t.TempDir()

	touch(t, filepath.Join(dir, "takeout-20190801T123456Z-001", "Takeout", "YouTube", "history", "watch-history.html"))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "takeout-20200101T000000Z-002", "Takeout", "Drive"), 0o755))

	files, err := LocateWatchFiles(testLogger(), dir)
	require.NoError(t, err)

	require.Len(t, files, 1)
	assert.Contains(t, files[0], "takeout-20190801T123456Z-001")
}

func TestLocateWatchFiles_EmptyDir(t *testing.T) {
	files, err := LocateWatchFiles(testLogger(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestLocateWatchFiles_MissingDir(t *testing.T) {
	_, err := LocateWatchFiles(testLogger(), filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.ErrorContains(t, err, "reading takeout directory")
}

func TestIsTakeoutBundle(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"takeout-20181120T163352Z-001", true},
		{"takeout-20240215T090000Z-012", true},
		{"takeout-20181120T163352Z", false},
		{"takeout-19991231T235959Z-001", false},
		{"Takeout", false},
		{"downloads", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTakeoutBundle(tt.name))
		})
	}
}
