// Package takeout parses Google Takeout watch-history.html archives:
// locating the files, stripping their boilerplate markup, and splitting
// them into per-watch entries.
package takeout

import "strings"

// cleanedSentinel marks content whose boilerplate was already stripped by
// a previous run, so cleanup can be skipped entirely.
const cleanedSentinel = `<span id="Done">`

// fluff is the ordered list of boilerplate replacements applied before
// entry parsing. The order is load-bearing: the content-cell rename must
// happen before entries are split on it, <br> removal must precede the
// bracket newlining, and the newlining runs last.
var fluff = [...][2]string{
	{`<div class="mdl-grid">`, ""},
	{`<div class="outer-cell mdl-cell mdl-cell--12-col mdl-shadow--2dp">`, ""},
	{`<div class="header-cell mdl-cell mdl-cell--12-col"><p class="mdl-typography--title">YouTube<br></p></div>`, ""},
	{`"content-cell mdl-cell mdl-cell--6-col mdl-typography--body-1"`, `"awesome_class"`},
	{`<div class="content-cell mdl-cell mdl-cell--6-col mdl-typography--body-1 mdl-typography--text-right"></div><div class="content-cell mdl-cell mdl-cell--12-col mdl-typography--caption"><b>Products:</b><br>&emsp;YouTube<br></div></div></div>`, ""},
	{`<br>`, ""},
	{`<`, "\n<"},
	{`>`, ">\n"},
}

// CleanContent strips the Takeout boilerplate down to the entry markup the
// parser consumes. The result is prefixed with a sentinel span; content
// already carrying it is returned unchanged, which makes cleanup
// idempotent and lets pruned archives skip this pass on re-ingest.
func CleanContent(raw string) string {
	if strings.HasPrefix(raw, cleanedSentinel) {
		return raw
	}

	content := raw

	// Keep only the region strictly inside <body>. The trailing 6 bytes
	// before </body> are the dangling </div> closing the mdl-grid div
	// whose opening tag the fluff pass removes.
	start := strings.Index(raw, "<body>")
	end := strings.Index(raw, "</body>")

	if start >= 0 && end-6 > start+6 {
		content = raw[start+6 : end-6]
	}

	for _, piece := range fluff {
		content = strings.ReplaceAll(content, piece[0], piece[1])
	}

	return cleanedSentinel + "\n" + content
}
