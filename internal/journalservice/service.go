// Package journalservice coordinates the journal store, markup engine,
// asset store, and search index behind one mutation-safe service.
package journalservice

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/starford/daybook/internal/apperr"
	"github.com/starford/daybook/internal/assets"
	"github.com/starford/daybook/internal/checksum"
	"github.com/starford/daybook/internal/index"
	"github.com/starford/daybook/internal/journal"
	"github.com/starford/daybook/internal/markup"
)

// EntryDetail is the full representation of one journal entry.
type EntryDetail struct {
	Date     string `json:"date"`
	Content  string `json:"content"`
	Checksum string `json:"checksum"`
}

// EntryListItem is a lightweight item in a list response. Preview is the
// first line of visible text with markers elided.
type EntryListItem struct {
	Date     string `json:"date"`
	Checksum string `json:"checksum"`
	Preview  string `json:"preview"`
}

// Service owns all journal mutations. A single mutex serializes
// read-modify-write cycles so concurrent HTTP requests cannot interleave a
// load with someone else's commit; the core packages themselves stay
// synchronous and lock-free.
type Service struct {
	mu     sync.Mutex
	store  *journal.Store
	db     *index.DB
	assets *assets.Store
}

// New creates a journal service.
func New(store *journal.Store, db *index.DB, assetStore *assets.Store) *Service {
	return &Service{store: store, db: db, assets: assetStore}
}

// Assets exposes the underlying asset store for upload/serve paths.
func (s *Service) Assets() *assets.Store { return s.assets }

// ListEntries returns all entries newest first.
func (s *Service) ListEntries(_ context.Context) ([]EntryListItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	entries := snap.Entries()
	items := make([]EntryListItem, len(entries))
	for i, e := range entries {
		items[i] = EntryListItem{
			Date:     e.Date,
			Checksum: checksum.SumString(e.Content),
			Preview:  previewText(e.Content),
		}
	}
	return items, nil
}

// GetEntry returns the entry for date (canonical or as stored on disk).
func (s *Service) GetEntry(_ context.Context, date string) (*EntryDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	e, ok := findEntry(snap, date)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return detail(e), nil
}

// CreateEntry appends a new entry. An empty date means today. The
// duplicate-date guard lives here, not in the store: one entry per
// canonical date.
func (s *Service) CreateEntry(_ context.Context, date, content string) (*EntryDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if date == "" {
		date = journal.Today()
	}
	canonical, ok := journal.CanonicalDate(date)
	if !ok {
		return nil, fmt.Errorf("journalservice: invalid date %q", date)
	}

	snap, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	if _, exists := findEntry(snap, canonical); exists {
		return nil, apperr.ErrAlreadyExists
	}

	e := journal.Entry{Date: canonical, Content: content}
	if err := s.store.Append(e); err != nil {
		return nil, err
	}
	s.indexEntry(e)
	return detail(e), nil
}

// UpdateEntry rewrites an entry's content with optimistic concurrency:
// when ifMatch is non-empty it must equal the current content checksum.
func (s *Service) UpdateEntry(_ context.Context, date, content, ifMatch string) (*EntryDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitContent(date, ifMatch, func(string) (string, error) {
		return content, nil
	})
}

// DeleteEntry removes an entry from the journal and the index.
func (s *Service) DeleteEntry(_ context.Context, date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.store.Load()
	if err != nil {
		return err
	}
	e, ok := findEntry(snap, date)
	if !ok {
		return apperr.ErrNotFound
	}
	snap.Remove(e.Date)
	if err := s.store.Commit(snap); err != nil {
		return err
	}
	if err := s.db.DeleteEntry(e.Date); err != nil {
		return err
	}
	return nil
}

// RenderEntry scans an entry's content against the asset store and returns
// the render plan alongside the entry itself.
func (s *Service) RenderEntry(ctx context.Context, date string) (*markup.Plan, *EntryDetail, error) {
	d, err := s.GetEntry(ctx, date)
	if err != nil {
		return nil, nil, err
	}
	return markup.Scan(d.Content, s.assets), d, nil
}

// InsertImage inserts a marker for assetName at offset in the entry's
// content and returns the updated entry plus the span of the new marker.
func (s *Service) InsertImage(_ context.Context, date string, offset int, assetName string) (*EntryDetail, markup.Span, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var span markup.Span
	d, err := s.commitContent(date, "", func(content string) (string, error) {
		out, sp, err := markup.InsertMarker(content, offset, assetName)
		if err != nil {
			return "", err
		}
		span = sp
		return out, nil
	})
	if err != nil {
		return nil, markup.Span{}, err
	}
	return d, span, nil
}

// ResizeImage replaces the marker at span with the same asset at width.
func (s *Service) ResizeImage(_ context.Context, date string, span markup.Span, width int) (*EntryDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitContent(date, "", func(content string) (string, error) {
		out, _, err := markup.ResizeMarker(content, span, width)
		return out, err
	})
}

// RemoveImage deletes the marker at span from the entry's content.
func (s *Service) RemoveImage(_ context.Context, date string, span markup.Span) (*EntryDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitContent(date, "", func(content string) (string, error) {
		return markup.DeleteMarker(content, span)
	})
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// commitContent runs a load → mutate → commit cycle for one entry. The
// caller must hold s.mu. On any failure the journal file is untouched and
// the mutation must be treated as not committed.
func (s *Service) commitContent(date, ifMatch string, mutate func(string) (string, error)) (*EntryDetail, error) {
	snap, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	e, ok := findEntry(snap, date)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if ifMatch != "" && ifMatch != checksum.SumString(e.Content) {
		return nil, apperr.ErrConflict
	}
	content, err := mutate(e.Content)
	if err != nil {
		return nil, err
	}
	snap.Set(e.Date, content)
	if err := s.store.Commit(snap); err != nil {
		return nil, err
	}
	out := journal.Entry{Date: e.Date, Content: content}
	s.indexEntry(out)
	return detail(out), nil
}

func (s *Service) indexEntry(e journal.Entry) {
	// Index failures are non-fatal: the journal file is the source of
	// truth and the next sync repairs the index.
	_ = s.db.UpsertEntry(e.Date, checksum.SumString(e.Content), e.Content)
}

// findEntry matches by exact stored date first, then by canonical form, so
// "2024-1-5" on disk is reachable as "2024-01-05" and vice versa.
func findEntry(snap *journal.Snapshot, date string) (journal.Entry, bool) {
	if e, ok := snap.Find(date); ok {
		return e, true
	}
	want, ok := journal.CanonicalDate(date)
	if !ok {
		return journal.Entry{}, false
	}
	for _, e := range snap.Entries() {
		if got, ok := journal.CanonicalDate(e.Date); ok && got == want {
			return e, true
		}
	}
	return journal.Entry{}, false
}

func detail(e journal.Entry) *EntryDetail {
	return &EntryDetail{
		Date:     e.Date,
		Content:  e.Content,
		Checksum: checksum.SumString(e.Content),
	}
}

// previewText returns the first line of visible text, markers elided,
// truncated to a sidebar-sized length.
func previewText(content string) string {
	plan := markup.Scan(content, unresolved{})
	var b strings.Builder
	for _, r := range plan.Runs {
		if t, ok := r.(markup.TextRun); ok {
			b.WriteString(t.Text)
		}
	}
	line := strings.TrimSpace(b.String())
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	const max = 80
	if len(line) > max {
		line = line[:max]
	}
	return line
}

// unresolved is a Resolver that resolves nothing; used when only the text
// of a plan matters.
type unresolved struct{}

func (unresolved) Resolve(string) (markup.Dimensions, error) {
	return markup.Dimensions{}, apperr.ErrAssetUnresolved
}
