package collection

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/starford/dagaz/internal/parser"
	"github.com/starford/dagaz/internal/storage"
)

// Sync walks the decks directory and brings the collection up to date:
//   - new/changed deck files are parsed and applied
//   - files removed from disk have their notes removed
func Sync(db Store, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.SourceChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := syncFile(db, m.Path, data); err != nil {
			logger.Warn("sync: apply failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: applied", slog.String("path", m.Path))
		}
	}

	// Remove notes of deck files that are gone.
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.RemoveSource(p); err != nil {
				logger.Warn("sync: remove failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// syncFile parses deck file data and applies it to the collection.
func syncFile(db Store, path string, data []byte) error {
	deck, err := parser.Parse(data)
	if err != nil {
		return err
	}

	name := deck.Name
	if name == "" {
		name = deckNameFromPath(path)
	}

	return db.ApplyDeck(path, name, deck.Notes, storage.Checksum(data))
}

// deckNameFromPath derives a deck name from the file path when the file
// declares none: the base name without extension.
func deckNameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
