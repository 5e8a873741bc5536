// Package testutil provides shared test helpers for setting up journal
// stores, asset directories, and index databases.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/daybook/internal/assets"
	"github.com/starford/daybook/internal/index"
	"github.com/starford/daybook/internal/journal"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "daybook-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestJournal creates a journal store backed by a temp directory.
func TestJournal(t *testing.T) *journal.Store {
	t.Helper()
	store, err := journal.NewStore(filepath.Join(t.TempDir(), "journal.txt"))
	if err != nil {
		t.Fatal(err)
	}
	return store
}

// TestAssets creates an asset store backed by a temp directory.
func TestAssets(t *testing.T) *assets.Store {
	t.Helper()
	store, err := assets.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return store
}
