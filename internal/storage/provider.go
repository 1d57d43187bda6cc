// Package storage defines the decks-directory file abstraction.
package storage

import "time"

// DeckMetadata is a lightweight description of one deck file on disk.
type DeckMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Provider is the interface for deck file operations.
type Provider interface {
	// List returns metadata for every deck file under dir (relative to the decks root).
	List(dir string) ([]DeckMetadata, error)
	// Read returns the raw bytes of the file at path (relative to the decks root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to the decks root).
	Write(path string, content []byte) error
	// Delete removes the file at path (relative to the decks root).
	Delete(path string) error
}
