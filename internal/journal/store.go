package journal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Store persists the journal file. Loads are explicit snapshots and commits
// are full rewrites through a temp file, so a failed write never leaves a
// half-rewritten journal behind. New entries go through Append, which only
// ever adds bytes at the end of the file.
type Store struct {
	path string
}

// NewStore creates a store for the journal file at path. The file itself
// may not exist yet; its directory must.
func NewStore(path string) (*Store, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("journal: resolve path: %w", err)
	}
	info, err := os.Stat(filepath.Dir(abs))
	if err != nil {
		return nil, fmt.Errorf("journal: stat dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("journal: parent is not a directory: %s", filepath.Dir(abs))
	}
	return &Store{path: abs}, nil
}

// Path returns the absolute journal file path.
func (s *Store) Path() string { return s.path }

// Load reads and parses the journal into a fresh snapshot. A missing file
// is an empty journal, not an error; any other read failure is surfaced.
func (s *Store) Load() (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Snapshot{}, nil
		}
		return nil, fmt.Errorf("journal: read %s: %w", s.path, err)
	}
	return &Snapshot{entries: ParseEntries(string(data))}, nil
}

// Append writes a single new entry block at the end of the file, creating
// the file on first use. A torn append at worst truncates the newest entry;
// it cannot damage earlier ones.
func (s *Store) Append(e Entry) error {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("journal: open for append: %w", err)
	}
	if _, err := f.WriteString(formatBlock(e)); err != nil {
		f.Close()
		return fmt.Errorf("journal: append: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("journal: fsync: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("journal: close: %w", err)
	}
	return nil
}

// Commit rewrites the whole journal from the snapshot: tmp file → fsync →
// rename. Callers must treat their in-memory mutation as uncommitted unless
// Commit returns nil.
func (s *Store) Commit(snap *Snapshot) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".daybook-tmp-*")
	if err != nil {
		return fmt.Errorf("journal: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.WriteString(SerializeEntries(snap.entries)); err != nil {
		return fmt.Errorf("journal: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("journal: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("journal: close temp: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("journal: rename: %w", err)
	}
	success = true
	return nil
}
