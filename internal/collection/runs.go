package collection

import (
	"fmt"
	"time"
)

// Run records one completed dedup pass.
type Run struct {
	ID         string    `json:"id"`
	Filter     string    `json:"filter"`
	KeySpec    string    `json:"key_spec"`
	Tag        string    `json:"tag"`
	Tagged     int       `json:"tagged"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// InsertRun appends a run to the history.
func (db *DB) InsertRun(r Run) error {
	_, err := db.conn.Exec(`
		INSERT INTO dedup_runs (id, filter, key_spec, tag, tagged, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Filter, r.KeySpec, r.Tag, r.Tagged, r.StartedAt, r.FinishedAt)
	if err != nil {
		return fmt.Errorf("collection: insert run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT id, filter, key_spec, tag, tagged, started_at, finished_at
		FROM dedup_runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("collection: list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Filter, &r.KeySpec, &r.Tag, &r.Tagged, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
