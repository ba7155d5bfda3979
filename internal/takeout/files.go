package takeout

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// watchHistoryName is the file name Takeout uses inside an extracted
// archive bundle.
const watchHistoryName = "watch-history.html"

// LocateWatchFiles finds the watch-history archives under dir, sorted
// ascending by path so bundle timestamps order them oldest first. Two
// shapes are recognized: watch-history*.html files directly in dir, and
// extracted Takeout bundles (takeout-20181120T163352Z-001 and the like)
// holding Takeout/YouTube/history/watch-history.html. A bundle missing
// that file logs a warning and is skipped. An empty result is not an
// error; callers decide what it means.
func LocateWatchFiles(logger *slog.Logger, dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading takeout directory: %w", err)
	}

	var files []string

	for _, ent := range entries {
		name := ent.Name()

		switch {
		case !ent.IsDir() && strings.HasPrefix(name, "watch-history") && strings.HasSuffix(name, ".html"):
			files = append(files, filepath.Join(dir, name))

		case ent.IsDir() && isTakeoutBundle(name):
			inner := filepath.Join(dir, name, "Takeout", "YouTube", "history", watchHistoryName)
			if _, err := os.Stat(inner); err != nil {
				logger.Warn("takeout bundle has no watch-history file", slog.String("bundle", name))
				continue
			}

			files = append(files, inner)
		}
	}

	sort.Strings(files)

	return files, nil
}

// isTakeoutBundle matches extracted archive directory names, e.g.
// takeout-20181120T163352Z-001: the takeout-2 prefix pins the decade and
// the Z- fragment sits before the three-digit part number.
func isTakeoutBundle(name string) bool {
	if !strings.HasPrefix(name, "takeout-2") || len(name) < 5 {
		return false
	}

	return name[len(name)-5:len(name)-3] == "Z-"
}
