package progress

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(r *Reporter) []Event {
	var events []Event
	for e := range r.Events() {
		events = append(events, e)
	}
	return events
}

func TestReporter_DeliversInOrder(t *testing.T) {
	r := NewReporter()

	r.Stage(StageParsing)
	r.Warningf("entry %d unreadable", 7)
	r.Stats(StageParsing, map[string]int{"entries": 42})
	r.Close()

	events := drain(r)
	require.Len(t, events, 4)

	assert.Equal(t, KindStage, events[0].Kind)
	assert.Equal(t, StageParsing, events[0].Stage)
	assert.Equal(t, KindWarning, events[1].Kind)
	assert.Equal(t, "entry 7 unreadable", events[1].Message)
	assert.Equal(t, KindStats, events[2].Kind)
	assert.Equal(t, 42, events[2].Stats["entries"])
	assert.Equal(t, KindStop, events[3].Kind)
}

func TestReporter_DropsProgressWhenFull(t *testing.T) {
	r := newReporter(2)

	// Nobody is draining: the buffer holds two ticks and the rest
	// vanish instead of blocking the producer.
	for i := 0; i < 10; i++ {
		r.Progress(StageParsing, float64(i*10), nil)
	}

	assert.Len(t, r.events, 2)
}

func TestReporter_CloseEmitsStopOnce(t *testing.T) {
	r := NewReporter()

	r.Close()
	r.Close()

	events := drain(r)
	require.Len(t, events, 1)
	assert.Equal(t, KindStop, events[0].Kind)
}

func TestReporter_NilDiscards(t *testing.T) {
	var r *Reporter

	r.Stage(StageParsing)
	r.Progress(StageParsing, 50, nil)
	r.Warningf("ignored")
	r.Error(errors.New("ignored"))
	r.Stats(StageParsing, nil)
	r.Close()
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "stage", KindStage.String())
	assert.Equal(t, "progress", KindProgress.String())
	assert.Equal(t, "warning", KindWarning.String())
	assert.Equal(t, "error", KindError.String())
	assert.Equal(t, "stats", KindStats.String())
	assert.Equal(t, "stop", KindStop.String())
	assert.Equal(t, "invalid", Kind(99).String())
}

func TestLogSink_DrainsUntilClose(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	r := NewReporter()
	done := make(chan struct{})
	go func() {
		LogSink(logger, r.Events())
		close(done)
	}()

	r.Stage(StageSyncing)
	r.Warningf("batch retried")
	r.Error(errors.New("quota gone"))
	r.Stats(StageSyncing, map[string]int{"checked": 3, "updated": 1})
	r.Close()
	<-done

	out := buf.String()
	assert.Contains(t, out, "stage=syncing")
	assert.Contains(t, out, "batch retried")
	assert.Contains(t, out, "quota gone")
	assert.Contains(t, out, "checked=3")
	assert.Contains(t, out, "updated=1")
}

func TestLogSink_DiscardHandlerNeverBlocks(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := NewReporter()
	done := make(chan struct{})
	go func() {
		LogSink(logger, r.Events())
		close(done)
	}()

	for i := 0; i < 500; i++ {
		r.Progress(StageParsing, float64(i%100), nil)
	}
	r.Close()
	<-done
}
