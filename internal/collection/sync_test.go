package collection

import (
	"log/slog"
	"os"
	"testing"

	"github.com/starford/dagaz/internal/storage"
)

func syncTestEnv(t *testing.T) (storage.Provider, *DB, *slog.Logger) {
	t.Helper()
	decksDir := t.TempDir()
	store, err := storage.NewFS(decksDir)
	if err != nil {
		t.Fatal(err)
	}
	db := testDB(t)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return store, db, logger
}

const sampleDeck = `deck: Spanish
notes:
  - fields:
      Front: hola
      Back: hello
  - fields:
      Front: hola
      Back: hello
`

func TestSyncAppliesNewFiles(t *testing.T) {
	store, db, logger := syncTestEnv(t)
	if err := store.Write("spanish.yaml", []byte(sampleDeck)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := Sync(db, store, logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	ids, err := db.ResolveFilter("deck:Spanish")
	if err != nil {
		t.Fatalf("ResolveFilter: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("len(ids) = %d, want 2", len(ids))
	}
}

func TestSyncSkipsUnchangedFiles(t *testing.T) {
	store, db, logger := syncTestEnv(t)
	_ = store.Write("spanish.yaml", []byte(sampleDeck))
	if err := Sync(db, store, logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	ids1, _ := db.ResolveFilter("deck:Spanish")

	if err := Sync(db, store, logger); err != nil {
		t.Fatalf("Sync again: %v", err)
	}
	ids2, _ := db.ResolveFilter("deck:Spanish")

	if len(ids1) != len(ids2) || ids1[0] != ids2[0] {
		t.Errorf("ids changed on no-op sync: %v vs %v", ids1, ids2)
	}
}

func TestSyncRemovesDeletedFiles(t *testing.T) {
	store, db, logger := syncTestEnv(t)
	_ = store.Write("spanish.yaml", []byte(sampleDeck))
	_ = Sync(db, store, logger)

	if err := store.Delete("spanish.yaml"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := Sync(db, store, logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	ids, _ := db.ResolveFilter("deck:Spanish")
	if len(ids) != 0 {
		t.Errorf("len(ids) = %d, want 0 after file removal", len(ids))
	}
}

func TestSyncDeckNameFallsBackToFileName(t *testing.T) {
	store, db, logger := syncTestEnv(t)
	_ = store.Write("nameless.yaml", []byte("notes:\n  - fields:\n      Front: x\n"))
	if err := Sync(db, store, logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	ids, err := db.ResolveFilter("deck:nameless")
	if err != nil {
		t.Fatalf("ResolveFilter: %v", err)
	}
	if len(ids) != 1 {
		t.Errorf("len(ids) = %d, want 1", len(ids))
	}
}
