// Package progress carries run events from the pipeline to whoever is
// watching, normally the CLI's log sink.
package progress

import (
	"fmt"
	"sync"
)

// Kind discriminates events.
type Kind int

const (
	// KindStage announces entering a named pipeline stage.
	KindStage Kind = iota
	// KindProgress reports fractional completion within a stage.
	KindProgress
	// KindWarning reports a problem the run survived.
	KindWarning
	// KindError reports the fault that ended the run.
	KindError
	// KindStats publishes counters at the end of a stage.
	KindStats
	// KindStop is the final event before the channel closes.
	KindStop
)

func (k Kind) String() string {
	switch k {
	case KindStage:
		return "stage"
	case KindProgress:
		return "progress"
	case KindWarning:
		return "warning"
	case KindError:
		return "error"
	case KindStats:
		return "stats"
	case KindStop:
		return "stop"
	default:
		return "invalid"
	}
}

// Pipeline stages in the order a full run passes through them.
const (
	StageLocating   = "locating"
	StageParsing    = "parsing"
	StageMerging    = "merging"
	StagePersisting = "persisting"
	StageSyncing    = "syncing"
	StageDone       = "done"
)

// Event is one pipeline notification. Only the fields relevant to its
// Kind are set.
type Event struct {
	Kind    Kind
	Stage   string
	Percent float64
	Message string
	Err     error
	Stats   map[string]int
}

const defaultBuffer = 64

// Reporter fans events into a bounded channel. Progress events are
// dropped when the consumer lags; every other kind blocks until
// delivered, so nothing important is lost. A nil Reporter discards
// everything.
//
// A run has one producer: emitting concurrently with Close is not
// supported.
type Reporter struct {
	events chan Event
	once   sync.Once
}

// NewReporter returns a reporter with the default buffer.
func NewReporter() *Reporter {
	return newReporter(defaultBuffer)
}

func newReporter(buffer int) *Reporter {
	return &Reporter{events: make(chan Event, buffer)}
}

// Events returns the receive side of the event stream. It is closed by
// Close, after the stop event.
func (r *Reporter) Events() <-chan Event {
	return r.events
}

// Stage announces entering a stage.
func (r *Reporter) Stage(stage string) {
	r.send(Event{Kind: KindStage, Stage: stage})
}

// Progress reports completion of the current stage in percent, with
// optional running counters (nil when the stage has none). Unlike the
// other kinds it never blocks: a lagging consumer just misses ticks.
func (r *Reporter) Progress(stage string, percent float64, stats map[string]int) {
	if r == nil {
		return
	}

	select {
	case r.events <- Event{Kind: KindProgress, Stage: stage, Percent: percent, Stats: stats}:
	default:
	}
}

// Warningf reports a problem the run survived.
func (r *Reporter) Warningf(format string, args ...any) {
	r.send(Event{Kind: KindWarning, Message: fmt.Sprintf(format, args...)})
}

// Error reports the fault that is ending the run.
func (r *Reporter) Error(err error) {
	r.send(Event{Kind: KindError, Err: err})
}

// Stats publishes counters for a finished stage.
func (r *Reporter) Stats(stage string, stats map[string]int) {
	r.send(Event{Kind: KindStats, Stage: stage, Stats: stats})
}

// Close emits the stop event exactly once and closes the stream.
// Subsequent calls are no-ops.
func (r *Reporter) Close() {
	if r == nil {
		return
	}

	r.once.Do(func() {
		r.events <- Event{Kind: KindStop}
		close(r.events)
	})
}

func (r *Reporter) send(e Event) {
	if r == nil {
		return
	}

	r.events <- e
}
