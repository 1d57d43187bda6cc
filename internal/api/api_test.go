package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/dagaz/internal/collection"
	"github.com/starford/dagaz/internal/dedupservice"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/parser"
	"github.com/starford/dagaz/internal/settings"
	"github.com/starford/dagaz/internal/testutil"
)

// testEnv sets up a temp SQLite collection, settings store, service, and
// router. authToken="" means auth disabled; non-empty enables token mode.
func testEnv(t *testing.T, authToken string) (*collection.DB, http.Handler) {
	t.Helper()

	db := testutil.TestDB(t)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	st := settings.Open(filepath.Join(t.TempDir(), "settings.json"), logger)
	svc := dedupservice.NewService(db, st, nil)
	router := NewRouter(svc, db, authToken != "", authToken, nil)
	return db, router
}

func spec(cards int, pairs ...string) parser.NoteSpec {
	s := parser.NoteSpec{Cards: cards}
	for i := 0; i+1 < len(pairs); i += 2 {
		s.Fields = append(s.Fields, models.Field{Name: pairs[i], Value: pairs[i+1]})
	}
	return s
}

func seedDuplicates(t *testing.T, db *collection.DB) {
	t.Helper()
	err := db.ApplyDeck("d.yaml", "D", []parser.NoteSpec{
		spec(1, "Front", "A", "Back", "X"),
		spec(1, "Front", "A", "Back", "X"),
		spec(1, "Front", "B", "Back", "Y"),
	}, "cs1")
	if err != nil {
		t.Fatalf("ApplyDeck: %v", err)
	}
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRunDedup(t *testing.T) {
	db, router := testEnv(t, "")
	seedDuplicates(t, db)

	w := doJSON(t, router, http.MethodPost, "/dedup/run", map[string]string{"filter": "deck:D"})
	if w.Code != http.StatusOK {
		t.Fatalf("run status = %d, body = %s", w.Code, w.Body.String())
	}
	var res RunResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if res.Tagged != 1 {
		t.Errorf("tagged = %d, want 1", res.Tagged)
	}
	if res.Message != "Total: 1 notes tagged as 'duplicate-card'" {
		t.Errorf("message = %q", res.Message)
	}
	if res.RunID == "" {
		t.Error("run id missing")
	}

	// Second note of the pair carries the tag; the first stays clean.
	n1, err := db.Note(1)
	if err != nil {
		t.Fatalf("Note(1): %v", err)
	}
	if n1.HasTag("duplicate-card") {
		t.Error("canonical note was tagged")
	}
	n2, _ := db.Note(2)
	if !n2.HasTag("duplicate-card") {
		t.Error("duplicate note missing tag")
	}
}

func TestRunDedup_EmptyFilter(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/dedup/run", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty filter status = %d, want 400", w.Code)
	}
}

func TestRunDedup_BadFilter(t *testing.T) {
	db, router := testEnv(t, "")
	seedDuplicates(t, db)

	w := doJSON(t, router, http.MethodPost, "/dedup/run", map[string]string{"filter": "bogus:thing"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad filter status = %d", w.Code)
	}

	// Nothing was written.
	n2, _ := db.Note(2)
	if n2.HasTag("duplicate-card") {
		t.Error("note tagged despite invalid filter")
	}
}

func TestPreviewDedup(t *testing.T) {
	db, router := testEnv(t, "")
	seedDuplicates(t, db)

	w := doJSON(t, router, http.MethodGet, "/dedup/preview?filter=deck:D", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("preview status = %d, body = %s", w.Code, w.Body.String())
	}
	var res PreviewResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if len(res.Groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(res.Groups))
	}
	if res.Groups[0].Size != 2 {
		t.Errorf("group size = %d, want 2", res.Groups[0].Size)
	}

	// Preview never writes.
	n2, _ := db.Note(2)
	if n2.HasTag("duplicate-card") {
		t.Error("preview tagged a note")
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodGet, "/settings", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get settings = %d", w.Code)
	}
	var doc SettingsDoc
	_ = json.Unmarshal(w.Body.Bytes(), &doc)
	if doc.TagName != settings.DefaultTag {
		t.Errorf("default tag = %q", doc.TagName)
	}

	w = doJSON(t, router, http.MethodPut, "/settings", map[string]string{
		"filter":   "deck:D",
		"dedupKey": "Front",
		"tagName":  "dupe",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("put settings = %d, body = %s", w.Code, w.Body.String())
	}
	_ = json.Unmarshal(w.Body.Bytes(), &doc)
	if doc.DedupKey != "Front" || doc.TagName != "dupe" {
		t.Errorf("applied settings = %+v", doc)
	}
}

func TestListAndGetNotes(t *testing.T) {
	db, router := testEnv(t, "")
	seedDuplicates(t, db)

	w := doJSON(t, router, http.MethodGet, "/notes?deck=D", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var list NoteListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Total != 3 || len(list.Notes) != 3 {
		t.Errorf("total = %d, notes = %d, want 3", list.Total, len(list.Notes))
	}

	w = doJSON(t, router, http.MethodGet, "/notes/1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var n models.Note
	_ = json.Unmarshal(w.Body.Bytes(), &n)
	if n.ID != 1 || n.Deck != "D" {
		t.Errorf("note = %+v", n)
	}
}

func TestGetNote_NotFound(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodGet, "/notes/99", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing note = %d, want 404", w.Code)
	}
}

func TestListFields(t *testing.T) {
	db, router := testEnv(t, "")
	seedDuplicates(t, db)

	w := doJSON(t, router, http.MethodGet, "/fields?filter=deck:D", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("fields status = %d", w.Code)
	}
	var res FieldListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if len(res.Fields) != 2 || res.Fields[0] != "Back" || res.Fields[1] != "Front" {
		t.Errorf("fields = %v", res.Fields)
	}
}

func TestListRuns(t *testing.T) {
	db, router := testEnv(t, "")
	seedDuplicates(t, db)

	doJSON(t, router, http.MethodPost, "/dedup/run", map[string]string{"filter": "deck:D"})

	w := doJSON(t, router, http.MethodGet, "/dedup/runs", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("runs status = %d", w.Code)
	}
	var res RunListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if len(res.Runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(res.Runs))
	}
	if res.Runs[0].Tagged != 1 {
		t.Errorf("recorded tagged = %d, want 1", res.Runs[0].Tagged)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/settings", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed get = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/settings", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/settings", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}
