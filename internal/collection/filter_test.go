package collection

import (
	"errors"
	"testing"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/parser"
)

func seedFilterData(t *testing.T, db *DB) {
	t.Helper()
	err := db.ApplyDeck("spanish.yaml", "Spanish", []parser.NoteSpec{
		spec(1, []string{"greetings"}, "Front", "hola", "Back", "hello"),
		spec(1, nil, "Front", "adios", "Back", "goodbye"),
	}, "cs1")
	if err != nil {
		t.Fatalf("ApplyDeck: %v", err)
	}
	err = db.ApplyDeck("german.yaml", "German", []parser.NoteSpec{
		spec(1, nil, "Front", "hallo", "Back", "hello"),
	}, "cs2")
	if err != nil {
		t.Fatalf("ApplyDeck: %v", err)
	}
}

func TestResolveFilterDeck(t *testing.T) {
	db := testDB(t)
	seedFilterData(t, db)

	ids, err := db.ResolveFilter("deck:Spanish")
	if err != nil {
		t.Fatalf("ResolveFilter: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("len(ids) = %d, want 2", len(ids))
	}
}

func TestResolveFilterTag(t *testing.T) {
	db := testDB(t)
	seedFilterData(t, db)

	ids, err := db.ResolveFilter("tag:greetings")
	if err != nil {
		t.Fatalf("ResolveFilter: %v", err)
	}
	if len(ids) != 1 {
		t.Errorf("len(ids) = %d, want 1", len(ids))
	}
}

func TestResolveFilterField(t *testing.T) {
	db := testDB(t)
	seedFilterData(t, db)

	ids, err := db.ResolveFilter("field:Back=hello")
	if err != nil {
		t.Fatalf("ResolveFilter: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("len(ids) = %d, want 2 (one per deck)", len(ids))
	}
}

func TestResolveFilterBareWord(t *testing.T) {
	db := testDB(t)
	seedFilterData(t, db)

	ids, err := db.ResolveFilter("adios")
	if err != nil {
		t.Fatalf("ResolveFilter: %v", err)
	}
	if len(ids) != 1 {
		t.Errorf("len(ids) = %d, want 1", len(ids))
	}
}

func TestResolveFilterTermsAreANDed(t *testing.T) {
	db := testDB(t)
	seedFilterData(t, db)

	ids, err := db.ResolveFilter("deck:Spanish field:Back=hello")
	if err != nil {
		t.Fatalf("ResolveFilter: %v", err)
	}
	if len(ids) != 1 {
		t.Errorf("len(ids) = %d, want 1", len(ids))
	}
}

func TestResolveFilterOrderedByID(t *testing.T) {
	db := testDB(t)
	seedFilterData(t, db)

	ids, err := db.ResolveFilter("field:Back=hello")
	if err != nil {
		t.Fatalf("ResolveFilter: %v", err)
	}
	for i := 1; i < len(ids); i++ {
		if ids[i-1] >= ids[i] {
			t.Fatalf("ids not ascending: %v", ids)
		}
	}
}

func TestResolveFilterNoMatches(t *testing.T) {
	db := testDB(t)
	seedFilterData(t, db)

	ids, err := db.ResolveFilter("deck:Nope")
	if err != nil {
		t.Fatalf("ResolveFilter: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("len(ids) = %d, want 0", len(ids))
	}
}

func TestResolveFilterEmpty(t *testing.T) {
	db := testDB(t)
	for _, expr := range []string{"", "   "} {
		if _, err := db.ResolveFilter(expr); !errors.Is(err, apperr.ErrEmptyFilter) {
			t.Errorf("expr %q: err = %v, want ErrEmptyFilter", expr, err)
		}
	}
}

func TestResolveFilterMalformed(t *testing.T) {
	db := testDB(t)
	cases := []string{
		"bogus:thing",
		"deck:",
		"tag:",
		"field:NoEquals",
		"field:=value",
	}
	for _, expr := range cases {
		if _, err := db.ResolveFilter(expr); !errors.Is(err, apperr.ErrBadFilter) {
			t.Errorf("expr %q: err = %v, want ErrBadFilter", expr, err)
		}
	}
}
