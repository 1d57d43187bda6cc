package collection

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/parser"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "dagaz-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func spec(cards int, tags []string, pairs ...string) parser.NoteSpec {
	s := parser.NoteSpec{Cards: cards, Tags: tags}
	for i := 0; i+1 < len(pairs); i += 2 {
		s.Fields = append(s.Fields, models.Field{Name: pairs[i], Value: pairs[i+1]})
	}
	return s
}

func TestApplyDeckAndFetch(t *testing.T) {
	db := testDB(t)
	notes := []parser.NoteSpec{
		spec(2, []string{"greetings"}, "Front", "hola", "Back", "hello"),
		spec(1, nil, "Front", "adios", "Back", "goodbye"),
	}
	if err := db.ApplyDeck("spanish.yaml", "Spanish", notes, "cs1"); err != nil {
		t.Fatalf("ApplyDeck: %v", err)
	}

	ids, err := db.ResolveFilter("deck:Spanish")
	if err != nil {
		t.Fatalf("ResolveFilter: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("len(ids) = %d, want 2", len(ids))
	}

	n, err := db.Note(ids[0])
	if err != nil {
		t.Fatalf("Note: %v", err)
	}
	if n.Deck != "Spanish" {
		t.Errorf("deck = %q", n.Deck)
	}
	if n.Cards != 2 {
		t.Errorf("cards = %d, want 2", n.Cards)
	}
	if len(n.Fields) != 2 || n.Fields[0].Name != "Front" || n.Fields[0].Value != "hola" {
		t.Errorf("fields = %v", n.Fields)
	}
	if len(n.Tags) != 1 || n.Tags[0] != "greetings" {
		t.Errorf("tags = %v", n.Tags)
	}
}

func TestApplyDeckKeepsIDsAcrossSyncs(t *testing.T) {
	db := testDB(t)
	notes := []parser.NoteSpec{spec(1, nil, "Front", "hola")}
	if err := db.ApplyDeck("d.yaml", "D", notes, "cs1"); err != nil {
		t.Fatalf("ApplyDeck: %v", err)
	}
	ids1, _ := db.ResolveFilter("deck:D")

	// Edit the note and sync again.
	notes[0].Fields[0].Value = "buenas"
	if err := db.ApplyDeck("d.yaml", "D", notes, "cs2"); err != nil {
		t.Fatalf("ApplyDeck again: %v", err)
	}
	ids2, _ := db.ResolveFilter("deck:D")

	if len(ids1) != 1 || len(ids2) != 1 || ids1[0] != ids2[0] {
		t.Fatalf("ids changed across syncs: %v vs %v", ids1, ids2)
	}

	n, _ := db.Note(ids2[0])
	if n.Fields[0].Value != "buenas" {
		t.Errorf("value = %q, want updated value", n.Fields[0].Value)
	}
}

func TestApplyDeckPreservesDedupTagsOnResync(t *testing.T) {
	db := testDB(t)
	notes := []parser.NoteSpec{spec(1, []string{"file-tag"}, "Front", "hola")}
	if err := db.ApplyDeck("d.yaml", "D", notes, "cs1"); err != nil {
		t.Fatalf("ApplyDeck: %v", err)
	}
	ids, _ := db.ResolveFilter("deck:D")
	n, _ := db.Note(ids[0])
	n.AddTag("duplicate-card")
	if err := db.SaveTags(n); err != nil {
		t.Fatalf("SaveTags: %v", err)
	}

	if err := db.ApplyDeck("d.yaml", "D", notes, "cs2"); err != nil {
		t.Fatalf("ApplyDeck again: %v", err)
	}
	n2, _ := db.Note(ids[0])
	if !n2.HasTag("duplicate-card") {
		t.Error("dedup tag lost on re-sync")
	}
	if !n2.HasTag("file-tag") {
		t.Error("file tag lost on re-sync")
	}
}

func TestApplyDeckTrimsRemovedNotes(t *testing.T) {
	db := testDB(t)
	notes := []parser.NoteSpec{
		spec(1, nil, "Front", "a"),
		spec(1, nil, "Front", "b"),
	}
	if err := db.ApplyDeck("d.yaml", "D", notes, "cs1"); err != nil {
		t.Fatalf("ApplyDeck: %v", err)
	}
	if err := db.ApplyDeck("d.yaml", "D", notes[:1], "cs2"); err != nil {
		t.Fatalf("ApplyDeck shrink: %v", err)
	}
	ids, _ := db.ResolveFilter("deck:D")
	if len(ids) != 1 {
		t.Fatalf("len(ids) = %d, want 1 after trim", len(ids))
	}
}

func TestRemoveSource(t *testing.T) {
	db := testDB(t)
	_ = db.ApplyDeck("d.yaml", "D", []parser.NoteSpec{spec(1, nil, "Front", "a")}, "cs1")
	if err := db.RemoveSource("d.yaml"); err != nil {
		t.Fatalf("RemoveSource: %v", err)
	}
	ids, _ := db.ResolveFilter("deck:D")
	if len(ids) != 0 {
		t.Errorf("len(ids) = %d, want 0", len(ids))
	}
	cs, _ := db.SourceChecksums()
	if _, ok := cs["d.yaml"]; ok {
		t.Error("source checksum should be gone")
	}
}

func TestNoteNotFound(t *testing.T) {
	db := testDB(t)
	_, err := db.Note(12345)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSaveTagsNotFound(t *testing.T) {
	db := testDB(t)
	err := db.SaveTags(&models.Note{ID: 999, Tags: []string{"x"}})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestZeroCardNote(t *testing.T) {
	db := testDB(t)
	_ = db.ApplyDeck("d.yaml", "D", []parser.NoteSpec{spec(0, nil, "Front", "orphan")}, "cs1")
	ids, _ := db.ResolveFilter("deck:D")
	if len(ids) != 1 {
		t.Fatalf("orphaned note should still be enumerable, got %d ids", len(ids))
	}
	n, err := db.Note(ids[0])
	if err != nil {
		t.Fatalf("Note: %v", err)
	}
	if n.Cards != 0 {
		t.Errorf("cards = %d, want 0", n.Cards)
	}
}

func TestFieldNames(t *testing.T) {
	db := testDB(t)
	_ = db.ApplyDeck("a.yaml", "A", []parser.NoteSpec{
		spec(1, nil, "Front", "x", "Back", "y"),
		spec(1, nil, "Question", "q"),
	}, "cs1")
	ids, _ := db.ResolveFilter("deck:A")

	names, err := db.FieldNames(ids)
	if err != nil {
		t.Fatalf("FieldNames: %v", err)
	}
	want := []string{"Back", "Front", "Question"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q (sorted)", i, names[i], want[i])
		}
	}
}

func TestListNotes(t *testing.T) {
	db := testDB(t)
	_ = db.ApplyDeck("a.yaml", "A", []parser.NoteSpec{
		spec(1, []string{"keep"}, "Front", "1"),
		spec(1, nil, "Front", "2"),
	}, "cs1")
	_ = db.ApplyDeck("b.yaml", "B", []parser.NoteSpec{spec(1, nil, "Front", "3")}, "cs2")

	all, total, err := db.ListNotes(50, 0, "", "")
	if err != nil {
		t.Fatalf("ListNotes: %v", err)
	}
	if total != 3 || len(all) != 3 {
		t.Fatalf("total = %d, len = %d, want 3", total, len(all))
	}

	deckA, total, _ := db.ListNotes(50, 0, "A", "")
	if total != 2 || len(deckA) != 2 {
		t.Errorf("deck filter: total = %d, len = %d", total, len(deckA))
	}

	tagged, total, _ := db.ListNotes(50, 0, "", "keep")
	if total != 1 || len(tagged) != 1 {
		t.Errorf("tag filter: total = %d, len = %d", total, len(tagged))
	}
}

func TestRunHistory(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	r := Run{
		ID:         uuid.NewString(),
		Filter:     "deck:A",
		KeySpec:    "Front",
		Tag:        "duplicate-card",
		Tagged:     3,
		StartedAt:  now.Add(-time.Second),
		FinishedAt: now,
	}
	if err := db.InsertRun(r); err != nil {
		t.Fatalf("InsertRun: %v", err)
	}

	runs, err := db.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("len(runs) = %d, want 1", len(runs))
	}
	if runs[0].ID != r.ID || runs[0].Tagged != 3 {
		t.Errorf("run = %+v", runs[0])
	}
}
