package takeout

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	apperrors "github.com/dmaltsev/takeout-sync/internal/errors"
)

const (
	// entryBoundary splits cleaned content into per-watch chunks. The
	// cleanup pass renames Takeout's content-cell class to this.
	entryBoundary = `<div class="awesome_class">`

	removedMarker = "Watched a video that has been removed"
	storyMarker   = "Watched story"

	// storyURLLen is the length of the watch URL Takeout renders inline
	// on a story entry's timestamp line. Constant across all observed
	// archives.
	storyURLLen = 57
)

// ParseResult holds the outcome of parsing one archive file.
type ParseResult struct {
	// Entries are the successfully parsed chunks in document order,
	// which Takeout writes newest first.
	Entries []Entry

	// Failed are chunks that could not be parsed; each carries its
	// flattened text and the reason in Err.
	Failed []Entry

	// NewMarker is the flattened text of the newest chunk. Persist it
	// after the entries have been stored so the next parse of the same
	// file stops there.
	NewMarker string

	// Skipped counts chunks at and below the marker, already ingested
	// by an earlier run.
	Skipped int
}

// ParseEntries splits cleaned archive content into watch entries. When
// marker is non-empty and matches a chunk's flattened text, that chunk
// and everything after it is skipped: Takeout lists entries newest first,
// so the marker chunk is where the previous run started. A marker that
// matches nothing means the file was rewritten and the whole file is
// parsed. Matching is at chunk granularity, never inside one.
func ParseEntries(content, marker string) (*ParseResult, error) {
	chunks := strings.Split(content, entryBoundary)
	if len(chunks) < 2 {
		return nil, fmt.Errorf("splitting watch entries: %w", apperrors.ErrCorruptArchive)
	}

	// chunks[0] is the preamble before the first entry.
	chunks = chunks[1:]

	flat := make([]string, len(chunks))
	anchors := make([][]anchor, len(chunks))

	for i, chunk := range chunks {
		flat[i], anchors[i] = flatten(chunk)
	}

	cut := len(chunks)

	if marker != "" {
		for i, text := range flat {
			if text == marker {
				cut = i
				break
			}
		}
	}

	res := &ParseResult{
		NewMarker: flat[0],
		Skipped:   len(chunks) - cut,
	}

	for i := 0; i < cut; i++ {
		entry := parseChunk(flat[i], anchors[i])
		if entry.Err != nil {
			res.Failed = append(res.Failed, entry)
			continue
		}

		res.Entries = append(res.Entries, entry)
	}

	return res, nil
}

// parseChunk classifies one flattened chunk into an entry shape and
// extracts its fields.
func parseChunk(text string, anchors []anchor) Entry {
	entry := Entry{Kind: KindVideo, VideoID: UnknownID, Text: text}

	var raw string

	switch {
	case strings.HasPrefix(text, removedMarker):
		// The <br> between marker and timestamp is stripped during
		// cleanup, so the timestamp directly follows the marker text.
		entry.Kind = KindRemoved
		raw = text[len(removedMarker):]

	case strings.HasPrefix(text, storyMarker):
		entry.Kind = KindStory

		raw = lastLine(text)
		if strings.Contains(raw, "/watch?v=") && len(raw) > storyURLLen {
			raw = raw[storyURLLen:]
		}

	default:
		watch := findAnchor(anchors, "watch?v=")
		if watch == nil {
			entry.Err = errors.New("entry has no watch link")
			return entry
		}

		entry.VideoID = ExtractVideoID(watch.href)

		// Some entries carry the URL itself as the title. Those videos
		// are almost always gone from the platform and the anchor text
		// is not a real title, so only the id and timestamp are kept.
		if watch.text != watch.href {
			entry.Title = watch.text

			if ch := findAnchor(anchors, "youtube.com/channel"); ch != nil {
				entry.ChannelID = ch.href[strings.LastIndex(ch.href, "/")+1:]
				entry.ChannelTitle = ch.text
			}
		}

		raw = lastLine(text)
	}

	ts, err := ParseWatchedAt(raw)
	if err != nil {
		entry.Err = err
		return entry
	}

	entry.WatchedAt = ts

	return entry
}

// anchor is one <a> element of an entry chunk.
type anchor struct {
	href string
	text string
}

func findAnchor(anchors []anchor, hrefSubstr string) *anchor {
	for i := range anchors {
		if strings.Contains(anchors[i].href, hrefSubstr) {
			return &anchors[i]
		}
	}

	return nil
}

// flatten reduces an entry chunk to its trimmed, entity-decoded text
// lines and its anchors. The text is NFC-normalized so marker equality
// holds across exports that disagree on Unicode composition.
func flatten(chunk string) (string, []anchor) {
	// The chunk runs to the next entry boundary and may include stray
	// closing tags between entries; the entry's own div ends first.
	if i := strings.Index(chunk, "</div>"); i >= 0 {
		chunk = chunk[:i]
	}

	var (
		text    strings.Builder
		aText   strings.Builder
		anchors []anchor
		inA     bool
	)

	z := html.NewTokenizer(strings.NewReader(chunk))

tokens:
	for {
		switch z.Next() {
		case html.ErrorToken:
			// The tokenizer only errors at EOF when fed a string.
			break tokens

		case html.StartTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "a" {
				continue
			}

			inA = true

			aText.Reset()

			var href string

			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()

				if string(key) == "href" {
					href = string(val)
				}
			}

			anchors = append(anchors, anchor{href: href})

		case html.TextToken:
			tok := string(z.Text())

			text.WriteString(tok)

			if inA {
				aText.WriteString(tok)
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "a" && inA {
				anchors[len(anchors)-1].text = norm.NFC.String(strings.TrimSpace(aText.String()))
				inA = false
			}
		}
	}

	var lines []string

	for _, line := range strings.Split(text.String(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}

	return norm.NFC.String(strings.Join(lines, "\n")), anchors
}

func lastLine(text string) string {
	if i := strings.LastIndexByte(text, '\n'); i >= 0 {
		return text[i+1:]
	}

	return text
}
