// Package collection provides the SQLite-backed note collection: the record
// store the dedup engine reads from and tags into.
package collection

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/parser"
)

// Store defines the collection operations. Consumers should depend on this
// interface rather than the concrete *DB type to facilitate testing.
type Store interface {
	// Sync side: keeping the collection current with deck files on disk.
	ApplyDeck(source, deckName string, notes []parser.NoteSpec, checksum string) error
	RemoveSource(source string) error
	SourceChecksums() (map[string]string, error)

	// Dedup and presentation side.
	Note(id int64) (*models.Note, error)
	SaveTags(n *models.Note) error
	ResolveFilter(expr string) ([]int64, error)
	FieldNames(ids []int64) ([]string, error)
	ListNotes(limit, offset int, deck, tag string) ([]models.Note, int, error)

	InsertRun(r Run) error
	ListRuns(limit int) ([]Run, error)

	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	deck       TEXT NOT NULL DEFAULT '',
	fields     TEXT NOT NULL DEFAULT '[]',
	tags       TEXT NOT NULL DEFAULT '[]',
	source     TEXT NOT NULL DEFAULT '',
	ord        INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(source, ord)
);

CREATE INDEX IF NOT EXISTS idx_notes_deck ON notes(deck);

CREATE TABLE IF NOT EXISTS cards (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	note_id INTEGER NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
	ord     INTEGER NOT NULL DEFAULT 0,
	UNIQUE(note_id, ord)
);

CREATE INDEX IF NOT EXISTS idx_cards_note ON cards(note_id);

CREATE TABLE IF NOT EXISTS sources (
	path     TEXT PRIMARY KEY,
	checksum TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS dedup_runs (
	id          TEXT PRIMARY KEY,
	filter      TEXT NOT NULL DEFAULT '',
	key_spec    TEXT NOT NULL DEFAULT '',
	tag         TEXT NOT NULL DEFAULT '',
	tagged      INTEGER NOT NULL DEFAULT 0,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON dedup_runs(started_at);
`

// DB wraps a sql.DB with collection-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("collection: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("collection: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("collection: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
