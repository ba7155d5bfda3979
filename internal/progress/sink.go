package progress

import (
	"log/slog"
	"sort"
)

// LogSink drains events into the logger until the stream closes. Meant
// to run on its own goroutine while the pipeline works.
func LogSink(logger *slog.Logger, events <-chan Event) {
	for e := range events {
		switch e.Kind {
		case KindStage:
			logger.Info("stage", slog.String("stage", e.Stage))
		case KindProgress:
			attrs := []any{
				slog.String("stage", e.Stage),
				slog.Int("percent", int(e.Percent)),
			}
			for _, k := range sortedKeys(e.Stats) {
				attrs = append(attrs, slog.Int(k, e.Stats[k]))
			}

			logger.Debug("progress", attrs...)
		case KindWarning:
			logger.Warn(e.Message)
		case KindError:
			logger.Error("run failed", slog.String("error", e.Err.Error()))
		case KindStats:
			logger.Info("stage finished", statAttrs(e)...)
		case KindStop:
			logger.Debug("event stream closed")
		}
	}
}

func statAttrs(e Event) []any {
	keys := sortedKeys(e.Stats)

	attrs := make([]any, 0, len(keys)+1)
	attrs = append(attrs, slog.String("stage", e.Stage))
	for _, k := range keys {
		attrs = append(attrs, slog.Int(k, e.Stats[k]))
	}

	return attrs
}

func sortedKeys(stats map[string]int) []string {
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}
