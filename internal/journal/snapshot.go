package journal

import "slices"

// Snapshot is an owned, in-memory copy of the journal taken at Load time,
// ordered newest first. Mutations edit the snapshot only; nothing reaches
// disk until the snapshot is passed back to Store.Commit. Staleness is the
// caller's concern: holding a snapshot across unrelated writes and then
// committing it will clobber them.
type Snapshot struct {
	entries []Entry
}

// NewSnapshot builds a snapshot from a newest-first entry list.
func NewSnapshot(entries []Entry) *Snapshot {
	return &Snapshot{entries: slices.Clone(entries)}
}

// Entries returns a copy of the entry list, newest first.
func (s *Snapshot) Entries() []Entry {
	return slices.Clone(s.entries)
}

// Len returns the number of entries.
func (s *Snapshot) Len() int { return len(s.entries) }

// Find returns the entry for date, if present.
func (s *Snapshot) Find(date string) (Entry, bool) {
	for _, e := range s.entries {
		if e.Date == date {
			return e, true
		}
	}
	return Entry{}, false
}

// Set replaces the content of the entry for date, or prepends a new entry
// (newest position) when no entry with that date exists.
func (s *Snapshot) Set(date, content string) {
	for i, e := range s.entries {
		if e.Date == date {
			s.entries[i].Content = content
			return
		}
	}
	s.entries = append([]Entry{{Date: date, Content: content}}, s.entries...)
}

// Remove deletes the entry for date and reports whether it was present.
func (s *Snapshot) Remove(date string) bool {
	for i, e := range s.entries {
		if e.Date == date {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return true
		}
	}
	return false
}
