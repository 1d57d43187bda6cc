// Package testutil provides shared test helpers for setting up collections
// and deck directories.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/dagaz/internal/collection"
	"github.com/starford/dagaz/internal/storage"
)

// TestDB creates a temporary SQLite collection that is automatically
// cleaned up.
func TestDB(t *testing.T) *collection.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "dagaz-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := collection.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestDecks creates a temporary decks directory with a storage.Provider.
func TestDecks(t *testing.T) (string, storage.Provider) {
	t.Helper()
	decksDir := t.TempDir()
	store, err := storage.NewFS(decksDir)
	if err != nil {
		t.Fatal(err)
	}
	return decksDir, store
}
