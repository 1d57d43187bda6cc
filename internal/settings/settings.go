// Package settings manages the user-editable dedup settings: a flat JSON
// document persisted next to the collection and rewritten on every edit.
package settings

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/starford/dagaz/internal/dedup"
)

// DefaultTag is the tag applied to duplicates when none is configured.
const DefaultTag = "duplicate-card"

// Settings is the flat settings document.
type Settings struct {
	Filter   string `json:"filter"`
	DedupKey string `json:"dedupKey"`
	TagName  string `json:"tagName"`
}

// Defaults returns the settings used when nothing is stored yet.
func Defaults() Settings {
	return Settings{
		Filter:  "",
		DedupKey: dedup.CombineAll,
		TagName: DefaultTag,
	}
}

// Normalize replaces empty key spec and tag name with their defaults. The
// filter may legitimately be empty; runs reject it separately.
func (s Settings) Normalize() Settings {
	s.Filter = strings.TrimSpace(s.Filter)
	s.TagName = strings.TrimSpace(s.TagName)
	if s.DedupKey == "" {
		s.DedupKey = dedup.CombineAll
	}
	if s.TagName == "" {
		s.TagName = DefaultTag
	}
	return s
}

// legacyKeys maps old document keys to their current names. Migration runs
// once at load time; a legacy key is honored only when the current key is
// absent, and legacy keys are dropped on the next save.
var legacyKeys = map[string]string{
	"ankiFilter":  "filter",
	"selectedKey": "dedupKey",
}

// Store holds the current settings in memory and persists edits to disk.
// A failed read or write is reported and never fatal: the run proceeds on
// defaults or the last known good values.
type Store struct {
	path   string
	logger *slog.Logger

	mu  sync.RWMutex
	cur Settings
}

// Open loads the settings document at path, falling back to defaults when
// the file is missing or corrupt. A corrupt document is reported, not an
// error.
func Open(path string, logger *slog.Logger) *Store {
	s := &Store{path: path, logger: logger, cur: Defaults()}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("settings: load failed, using defaults",
				slog.String("path", path), slog.String("error", err.Error()))
		}
		return s
	}

	loaded, err := decode(data)
	if err != nil {
		logger.Warn("settings: corrupt document, using defaults",
			slog.String("path", path), slog.String("error", err.Error()))
		return s
	}

	s.cur = loaded.Normalize()
	return s
}

// decode parses the raw document and applies legacy-key migration.
func decode(data []byte) (Settings, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Settings{}, fmt.Errorf("parse: %w", err)
	}

	for legacy, current := range legacyKeys {
		if v, ok := raw[legacy]; ok {
			if _, exists := raw[current]; !exists {
				raw[current] = v
			}
		}
	}

	out := Defaults()
	assign := func(key string, dst *string) {
		v, ok := raw[key]
		if !ok {
			return
		}
		var str string
		if err := json.Unmarshal(v, &str); err != nil {
			// Wrong type for a recognized key: keep the default.
			return
		}
		*dst = str
	}
	assign("filter", &out.Filter)
	assign("dedupKey", &out.DedupKey)
	assign("tagName", &out.TagName)

	return out, nil
}

// Current returns the settings in effect.
func (s *Store) Current() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Update normalizes and stores new settings, then persists them. The
// in-memory settings are updated even when the write fails; the returned
// error is for reporting only.
func (s *Store) Update(next Settings) (Settings, error) {
	next = next.Normalize()

	s.mu.Lock()
	s.cur = next
	s.mu.Unlock()

	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return next, fmt.Errorf("settings: encode: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		s.logger.Warn("settings: save failed, keeping in-memory values",
			slog.String("path", s.path), slog.String("error", err.Error()))
		return next, fmt.Errorf("settings: save: %w", err)
	}
	return next, nil
}
