// Package journal implements the flat-file entry store: a single text file
// holding dated blocks delimited by "--- YYYY-MM-DD ---" separator lines,
// oldest entry first on disk.
package journal

import (
	"regexp"
	"slices"
	"strings"
)

// Entry is one dated block of journal text. Content is opaque at this layer;
// inline image markers are interpreted by the markup package.
type Entry struct {
	Date    string `json:"date"`
	Content string `json:"content"`
}

// separatorRe matches an entry separator line, capturing the date text.
// Dates are tolerated loosely here (2-4 digit year, 1-2 digit month/day);
// canonicalization is a separate concern, see CanonicalDate.
var separatorRe = regexp.MustCompile(`--- (\d{2,4}-\d{1,2}-\d{1,2}) ---`)

// ParseEntries splits raw journal text into entries, newest first (the
// reverse of file order). Anything before the first separator is discarded.
// Content is trimmed of surrounding whitespace; a separator with nothing
// after it yields an entry with empty content.
func ParseEntries(raw string) []Entry {
	locs := separatorRe.FindAllStringSubmatchIndex(raw, -1)
	entries := make([]Entry, 0, len(locs))
	for i, loc := range locs {
		end := len(raw)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		entries = append(entries, Entry{
			Date:    raw[loc[2]:loc[3]],
			Content: strings.TrimSpace(raw[loc[1]:end]),
		})
	}
	slices.Reverse(entries)
	return entries
}

// SerializeEntries renders a newest-first entry list back to flat journal
// text, oldest first on disk so appends stay chronological. No trailing
// separator is emitted.
func SerializeEntries(entries []Entry) string {
	var b strings.Builder
	for i := len(entries) - 1; i >= 0; i-- {
		b.WriteString(formatBlock(entries[i]))
	}
	return b.String()
}

func formatBlock(e Entry) string {
	return "\n\n--- " + e.Date + " ---\n" + e.Content
}
