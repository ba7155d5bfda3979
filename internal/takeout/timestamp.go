package takeout

import (
	"fmt"
	"strings"
	"time"
)

// watchedAtLayout matches Takeout's rendered watch times, e.g.
// "Mar 15, 2018, 7:42:17 PM" once the trailing zone token is removed.
const watchedAtLayout = "Jan 2, 2006, 3:04:05 PM"

// WatchTolerance is the window within which two timestamps of the same
// calendar month count as the same watch event. Takeout renders the same
// event with different zone offsets across exports; two hours absorbs
// every offset pair observed in real archives.
const WatchTolerance = 2 * time.Hour

// TimestampParseError reports a watch timestamp that does not match the
// Takeout layout. Entries carrying one are skipped and surfaced as
// warnings; they never abort an ingest.
type TimestampParseError struct {
	Raw string
}

func (e *TimestampParseError) Error() string {
	return fmt.Sprintf("cannot parse watch timestamp %q", e.Raw)
}

// ParseWatchedAt parses a rendered Takeout watch time. The raw string
// usually ends with a locale zone abbreviation ("... 7:42:17 PM PST");
// the final space-delimited token is dropped unless it is the meridiem
// itself, so zoneless strings parse too. The result is a naive wall-clock
// time carrying no zone.
func ParseWatchedAt(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if i := strings.LastIndexByte(s, ' '); i >= 0 {
		if tok := s[i+1:]; tok != "AM" && tok != "PM" {
			s = s[:i]
		}
	}

	ts, err := time.Parse(watchedAtLayout, s)
	if err != nil {
		return time.Time{}, &TimestampParseError{Raw: raw}
	}

	return ts, nil
}

// SameWatch reports whether two timestamps record the same watch event:
// same calendar year and month, no more than WatchTolerance apart.
// Timestamps a month boundary apart are always distinct, however close.
func SameWatch(a, b time.Time) bool {
	if a.Year() != b.Year() || a.Month() != b.Month() {
		return false
	}

	d := a.Sub(b)
	if d < 0 {
		d = -d
	}

	return d <= WatchTolerance
}

// InsertUnique appends ts to list unless an existing element already
// records the same watch event. The existing element always wins. The
// second return reports whether ts was inserted.
func InsertUnique(list []time.Time, ts time.Time) ([]time.Time, bool) {
	for _, got := range list {
		if SameWatch(got, ts) {
			return list, false
		}
	}

	return append(list, ts), true
}
