package takeout

import (
	"strings"
	"time"
)

// UnknownID is the record identity for entries that carry no video id:
// removed videos and stories. Their timestamps accumulate in a shared
// bucket under this key.
const UnknownID = "unknown"

// EntryKind identifies which of the three Takeout entry shapes a chunk
// matched.
type EntryKind int

const (
	// KindVideo is a regular entry with a watch link, and usually a title
	// and channel.
	KindVideo EntryKind = iota

	// KindRemoved is an entry for a video that was removed before the
	// export; only its timestamp survives.
	KindRemoved

	// KindStory is a story view; stories carry no extractable video id.
	KindStory
)

func (k EntryKind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindRemoved:
		return "removed"
	case KindStory:
		return "story"
	default:
		return "invalid"
	}
}

// Entry is one parsed watch event from an archive file.
type Entry struct {
	Kind         EntryKind
	VideoID      string
	Title        string
	ChannelID    string
	ChannelTitle string
	WatchedAt    time.Time

	// Text is the flattened, NFC-normalized text of the entry chunk. It
	// doubles as the incremental marker value for the newest entry.
	Text string

	// Err is set when the chunk could not be parsed: such entries are
	// counted and reported, never merged.
	Err error
}

// ExtractVideoID pulls the video id out of a watch URL: the substring
// after the first '=', truncated before a "&t=" resume offset when one
// is present.
func ExtractVideoID(url string) string {
	id := url[strings.Index(url, "=")+1:]
	if end := strings.Index(id, "&t="); end > 0 {
		id = id[:end]
	}

	return id
}
