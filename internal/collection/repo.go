package collection

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/parser"
)

// ApplyDeck reconciles the notes of one deck file into the collection.
//
// Notes are matched to existing rows by (source, position), so a note keeps
// its id, and therefore its age rank for canonical selection, across
// repeated syncs of an unchanged or edited file. Tags are merged as a union
// of the file's tags and the stored tags: tags attached by dedup runs
// survive a re-sync. Rows past the end of the file are removed, and each
// note's card rows are rebuilt from its declared card count.
func (db *DB) ApplyDeck(source, deckName string, notes []parser.NoteSpec, checksum string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("collection: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	now := time.Now()

	for ord, spec := range notes {
		fieldsJSON, _ := json.Marshal(spec.Fields)

		var id int64
		var storedTags string
		err := tx.QueryRow(`SELECT id, tags FROM notes WHERE source = ? AND ord = ?`, source, ord).
			Scan(&id, &storedTags)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			tagsJSON, _ := json.Marshal(nonNil(spec.Tags))
			res, err := tx.Exec(`
				INSERT INTO notes (deck, fields, tags, source, ord, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, deckName, string(fieldsJSON), string(tagsJSON), source, ord, now, now)
			if err != nil {
				return fmt.Errorf("collection: insert note: %w", err)
			}
			id, err = res.LastInsertId()
			if err != nil {
				return fmt.Errorf("collection: note id: %w", err)
			}
		case err != nil:
			return fmt.Errorf("collection: lookup note: %w", err)
		default:
			merged := mergeTags(storedTags, spec.Tags)
			tagsJSON, _ := json.Marshal(merged)
			_, err = tx.Exec(`
				UPDATE notes SET deck = ?, fields = ?, tags = ?, updated_at = ?
				WHERE id = ?
			`, deckName, string(fieldsJSON), string(tagsJSON), now, id)
			if err != nil {
				return fmt.Errorf("collection: update note: %w", err)
			}
		}

		if err := rebuildCards(tx, id, spec.Cards); err != nil {
			return err
		}
	}

	// Drop rows the file no longer has.
	if _, err := tx.Exec(`DELETE FROM notes WHERE source = ? AND ord >= ?`, source, len(notes)); err != nil {
		return fmt.Errorf("collection: trim stale notes: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO sources (path, checksum) VALUES (?, ?)
		ON CONFLICT(path) DO UPDATE SET checksum = excluded.checksum
	`, source, checksum)
	if err != nil {
		return fmt.Errorf("collection: upsert source: %w", err)
	}

	return tx.Commit()
}

func rebuildCards(tx *sql.Tx, noteID int64, count int) error {
	if _, err := tx.Exec(`DELETE FROM cards WHERE note_id = ?`, noteID); err != nil {
		return fmt.Errorf("collection: clear cards: %w", err)
	}
	for ord := 0; ord < count; ord++ {
		if _, err := tx.Exec(`INSERT INTO cards (note_id, ord) VALUES (?, ?)`, noteID, ord); err != nil {
			return fmt.Errorf("collection: insert card: %w", err)
		}
	}
	return nil
}

// RemoveSource deletes every note that came from the given deck file.
func (db *DB) RemoveSource(source string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("collection: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, _ = tx.Exec(`DELETE FROM notes WHERE source = ?`, source)
	_, _ = tx.Exec(`DELETE FROM sources WHERE path = ?`, source)

	return tx.Commit()
}

// SourceChecksums returns the last synced checksum of every deck file.
func (db *DB) SourceChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM sources`)
	if err != nil {
		return nil, fmt.Errorf("collection: source checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// Note fetches a single note with its card count.
// Returns apperr.ErrNotFound when the id no longer exists.
func (db *DB) Note(id int64) (*models.Note, error) {
	row := db.conn.QueryRow(`
		SELECT id, deck, fields, tags, created_at, updated_at,
			(SELECT COUNT(*) FROM cards WHERE note_id = notes.id)
		FROM notes WHERE id = ?
	`, id)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("collection: note %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("collection: note %d: %w", id, err)
	}
	return n, nil
}

// SaveTags persists a note's tag list. This is the only mutation the dedup
// engine performs; field values are never written back.
func (db *DB) SaveTags(n *models.Note) error {
	tagsJSON, _ := json.Marshal(nonNil(n.Tags))
	res, err := db.conn.Exec(`UPDATE notes SET tags = ?, updated_at = ? WHERE id = ?`,
		string(tagsJSON), time.Now(), n.ID)
	if err != nil {
		return fmt.Errorf("collection: save tags %d: %w", n.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("collection: save tags %d: %w", n.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("collection: note %d: %w", n.ID, apperr.ErrNotFound)
	}
	return nil
}

// FieldNames returns the distinct field names across the given notes,
// sorted. This backs the key-spec choices the presentation layer offers.
func (db *DB) FieldNames(ids []int64) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := db.conn.Query(`SELECT fields FROM notes WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("collection: field names: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var fields []models.Field
		if err := json.Unmarshal([]byte(raw), &fields); err != nil {
			continue
		}
		for _, f := range fields {
			seen[f.Name] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// ListNotes returns paginated notes with optional deck and tag filters.
func (db *DB) ListNotes(limit, offset int, deck, tag string) ([]models.Note, int, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	where := "1=1"
	var args []any
	if deck != "" {
		where += " AND deck = ?"
		args = append(args, deck)
	}
	if tag != "" {
		where += " AND tags LIKE ?"
		args = append(args, `%"`+tag+`"%`)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM notes WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("collection: count notes: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT id, deck, fields, tags, created_at, updated_at,
			(SELECT COUNT(*) FROM cards WHERE note_id = notes.id)
		FROM notes WHERE `+where+` ORDER BY id LIMIT ? OFFSET ?
	`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("collection: list notes: %w", err)
	}
	defer rows.Close()

	var out []models.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *n)
	}
	return out, total, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(s scanner) (*models.Note, error) {
	var n models.Note
	var fieldsRaw, tagsRaw string
	if err := s.Scan(&n.ID, &n.Deck, &fieldsRaw, &tagsRaw, &n.CreatedAt, &n.UpdatedAt, &n.Cards); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(fieldsRaw), &n.Fields); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	if err := json.Unmarshal([]byte(tagsRaw), &n.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	return &n, nil
}

// mergeTags unions the stored tag list with tags from the deck file,
// keeping stored order first.
func mergeTags(storedJSON string, fileTags []string) []string {
	var stored []string
	_ = json.Unmarshal([]byte(storedJSON), &stored)

	seen := make(map[string]struct{}, len(stored))
	out := make([]string, 0, len(stored)+len(fileTags))
	for _, t := range stored {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	for _, t := range fileTags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
