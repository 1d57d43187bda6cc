// Package models defines the domain types for Dagaz.
package models

import "time"

// Field is a single named value on a note. Notes keep their fields as an
// ordered list, not a map: field order is part of the note's identity and
// feeds directly into combined dedup keys.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Note represents one note in the collection. The ID is assigned by the
// collection store and is totally ordered: smaller IDs are older notes.
type Note struct {
	ID        int64     `json:"id"`
	Deck      string    `json:"deck"`
	Fields    []Field   `json:"fields"`
	Tags      []string  `json:"tags"`
	Cards     int       `json:"cards"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Values returns the field values in field order.
func (n *Note) Values() []string {
	out := make([]string, len(n.Fields))
	for i, f := range n.Fields {
		out[i] = f.Value
	}
	return out
}

// FieldValue looks up a field by exact, case-sensitive name.
func (n *Note) FieldValue(name string) (string, bool) {
	for _, f := range n.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// HasTag reports whether the note already carries tag.
func (n *Note) HasTag(tag string) bool {
	for _, t := range n.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// AddTag attaches tag to the note. Adding an already-present tag is a no-op,
// so the note's tag list never holds duplicates.
func (n *Note) AddTag(tag string) {
	if n.HasTag(tag) {
		return
	}
	n.Tags = append(n.Tags, tag)
}
