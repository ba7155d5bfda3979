package youtube

import (
	"encoding/json"
	"strings"
	"time"

	yt "google.golang.org/api/youtube/v3"
)

// VideoMetadata is one videos.list item flattened to the fields the
// store keeps. Raw holds the whole item as JSON.
type VideoMetadata struct {
	ID              string
	Title           string
	ChannelID       string
	ChannelTitle    string
	PublishedAt     time.Time
	DurationSeconds int64
	ViewCount       int64
	LikeCount       int64
	Raw             []byte
}

func fromItem(item *yt.Video) (*VideoMetadata, error) {
	raw, err := json.Marshal(item)
	if err != nil {
		return nil, err
	}

	meta := &VideoMetadata{ID: item.Id, Raw: raw}

	if item.Snippet != nil {
		meta.Title = item.Snippet.Title
		meta.ChannelID = item.Snippet.ChannelId
		meta.ChannelTitle = item.Snippet.ChannelTitle
		if t, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt); err == nil {
			meta.PublishedAt = t
		}
	}
	if item.ContentDetails != nil {
		meta.DurationSeconds = parseISODuration(item.ContentDetails.Duration)
	}
	if item.Statistics != nil {
		meta.ViewCount = int64(item.Statistics.ViewCount)
		meta.LikeCount = int64(item.Statistics.LikeCount)
	}

	return meta, nil
}

// parseISODuration converts the API's ISO-8601 durations (PT1H2M3S)
// to seconds. Videos never carry months or years, so only days and
// smaller units are handled; malformed input counts as zero rather
// than failing the whole item.
func parseISODuration(s string) int64 {
	if !strings.HasPrefix(s, "P") {
		return 0
	}

	var total, num int64
	inTime := false
	for _, r := range s[1:] {
		switch {
		case r == 'T':
			inTime = true
		case r >= '0' && r <= '9':
			num = num*10 + int64(r-'0')
		case r == 'D':
			total, num = total+num*86400, 0
		case r == 'H':
			total, num = total+num*3600, 0
		case r == 'M' && inTime:
			total, num = total+num*60, 0
		case r == 'S':
			total, num = total+num, 0
		default:
			return 0
		}
	}

	return total
}
