package index

// EntryIndex defines the interface for entry indexing operations.
// Consumers should depend on this interface rather than the concrete *DB
// type to facilitate testing with mocks.
type EntryIndex interface {
	UpsertEntry(date, checksum, body string) error
	DeleteEntry(date string) error
	AllChecksums() (map[string]string, error)
	Search(query string, limit int) ([]SearchResult, error)
	Close() error
}

// Verify *DB satisfies EntryIndex at compile time.
var _ EntryIndex = (*DB)(nil)
