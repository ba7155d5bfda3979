// Package records merges parsed watch entries into per-video records.
//
// Entries for the same video arrive from multiple archive files with
// different levels of detail. The accumulator completes missing fields
// from later files and collapses timestamps that fall within the watch
// tolerance into a single event.
package records

import (
	"sort"
	"time"

	"github.com/dmaltsev/takeout-sync/internal/takeout"
)

// Record is the merged watch history for one video.
type Record struct {
	VideoID      string
	Title        string
	ChannelID    string
	ChannelTitle string
	WatchedAt    []time.Time
}

// FailedEntry describes an entry that could not be parsed. The flattened
// text is kept so the user can find it in the source archive.
type FailedEntry struct {
	File   string
	Text   string
	Reason error
}

// Totals summarises an accumulator after Finalize. WatchEvents counts
// timestamps on identified videos; the unknown bucket is reported
// separately.
type Totals struct {
	Videos            int
	WatchEvents       int
	UnknownTimestamps int
	FailedEntries     int
}

// Accumulator builds Records from parsed archive files. Fields complete
// progressively: the first file to supply a title or channel wins and
// later values never overwrite it.
type Accumulator struct {
	records map[string]*Record
	failed  []FailedEntry
}

// NewAccumulator returns an empty accumulator with the unknown bucket
// already present.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		records: map[string]*Record{
			takeout.UnknownID: {VideoID: takeout.UnknownID},
		},
	}
}

// MergeFile folds one parsed archive file into the accumulator. Entries
// that failed to parse are recorded against the file name for reporting.
func (a *Accumulator) MergeFile(file string, res *takeout.ParseResult) {
	for _, entry := range res.Entries {
		a.merge(entry)
	}
	for _, entry := range res.Failed {
		a.failed = append(a.failed, FailedEntry{File: file, Text: entry.Text, Reason: entry.Err})
	}
}

func (a *Accumulator) merge(entry takeout.Entry) {
	rec, ok := a.records[entry.VideoID]
	if !ok {
		rec = &Record{VideoID: entry.VideoID}
		a.records[entry.VideoID] = rec
	}

	if rec.Title == "" {
		rec.Title = entry.Title
	}
	if rec.ChannelID == "" {
		rec.ChannelID = entry.ChannelID
	}
	if rec.ChannelTitle == "" {
		rec.ChannelTitle = entry.ChannelTitle
	}

	rec.WatchedAt, _ = takeout.InsertUnique(rec.WatchedAt, entry.WatchedAt)
}

// Finalize drops unknown-bucket timestamps that exactly match a watch
// time already attached to an identified video, sorts every record's
// timestamps ascending and returns the totals. Near matches stay: the
// tolerance applies within a record, never across records.
func (a *Accumulator) Finalize() Totals {
	unknown := a.records[takeout.UnknownID]

	identified := make(map[time.Time]struct{})
	for id, rec := range a.records {
		if id == takeout.UnknownID {
			continue
		}
		for _, ts := range rec.WatchedAt {
			identified[ts] = struct{}{}
		}
	}

	kept := unknown.WatchedAt[:0]
	for _, ts := range unknown.WatchedAt {
		if _, ok := identified[ts]; !ok {
			kept = append(kept, ts)
		}
	}
	unknown.WatchedAt = kept

	var totals Totals
	for id, rec := range a.records {
		sort.Slice(rec.WatchedAt, func(i, j int) bool {
			return rec.WatchedAt[i].Before(rec.WatchedAt[j])
		})

		if id == takeout.UnknownID {
			continue
		}
		totals.Videos++
		totals.WatchEvents += len(rec.WatchedAt)
	}
	totals.UnknownTimestamps = len(unknown.WatchedAt)
	totals.FailedEntries = len(a.failed)

	return totals
}

// Records returns the merged records sorted by video id. The unknown
// bucket appears only while it holds timestamps.
func (a *Accumulator) Records() []*Record {
	out := make([]*Record, 0, len(a.records))
	for id, rec := range a.records {
		if id == takeout.UnknownID && len(rec.WatchedAt) == 0 {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VideoID < out[j].VideoID })

	return out
}

// Failed returns the entries that could not be parsed, in merge order.
func (a *Accumulator) Failed() []FailedEntry {
	return a.failed
}
