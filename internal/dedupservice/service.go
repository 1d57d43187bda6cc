// Package dedupservice orchestrates dedup runs over the collection:
// settings resolution, filter resolution, grouping, tagging, run history,
// and view refresh notification.
package dedupservice

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/collection"
	"github.com/starford/dagaz/internal/dedup"
	"github.com/starford/dagaz/internal/settings"
)

// Notifier receives run-completion notifications so the presentation layer
// can refresh cached views. A nil Notifier is allowed.
type Notifier interface {
	PublishDedupCompleted(runID string, tagged int, tag string)
}

// Service coordinates collection, settings, and the dedup core.
type Service struct {
	store    collection.Store
	settings *settings.Store
	notifier Notifier
}

// NewService creates a new dedup service. notifier may be nil.
func NewService(store collection.Store, st *settings.Store, notifier Notifier) *Service {
	return &Service{store: store, settings: st, notifier: notifier}
}

// RunOptions override the stored settings for a single run. Empty values
// fall back to the stored settings and then to the defaults.
type RunOptions struct {
	Filter   string `json:"filter"`
	DedupKey string `json:"dedupKey"`
	TagName  string `json:"tagName"`
}

// RunResult summarizes a completed dedup run.
type RunResult struct {
	RunID    string   `json:"run_id"`
	Filter   string   `json:"filter"`
	DedupKey string   `json:"dedupKey"`
	Tag      string   `json:"tag"`
	Tagged   int      `json:"tagged"`
	Message  string   `json:"message"`
	Trace    []string `json:"trace,omitempty"`
}

// Run executes one dedup pass: resolve the filter to note ids, group them
// by dedup key, and tag every non-canonical duplicate.
//
// An empty effective filter is rejected with apperr.ErrEmptyFilter before
// the store is touched; a malformed filter surfaces apperr.ErrBadFilter
// with zero writes performed. A note vanishing mid-run aborts the pass,
// but tags already persisted stay: each write commits independently and
// re-running is safe.
func (s *Service) Run(_ context.Context, opts RunOptions) (*RunResult, error) {
	filter, keySpec, tag := s.effective(opts)
	if filter == "" {
		return nil, apperr.ErrEmptyFilter
	}

	started := time.Now()

	ids, err := s.store.ResolveFilter(filter)
	if err != nil {
		return nil, err
	}

	groups, err := dedup.Group(ids, s.store.Note, keySpec)
	if err != nil {
		return nil, err
	}

	tagged, trace, err := dedup.ApplyTag(groups, tag, s.store.Note, s.store.SaveTags)
	if err != nil {
		return nil, err
	}

	run := collection.Run{
		ID:         uuid.NewString(),
		Filter:     filter,
		KeySpec:    keySpec,
		Tag:        tag,
		Tagged:     tagged,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if err := s.store.InsertRun(run); err != nil {
		// History is best-effort; the tagging itself succeeded.
		return nil, fmt.Errorf("dedupservice: record run: %w", err)
	}

	if s.notifier != nil {
		s.notifier.PublishDedupCompleted(run.ID, tagged, tag)
	}

	return &RunResult{
		RunID:   run.ID,
		Filter:  filter,
		DedupKey: keySpec,
		Tag:     tag,
		Tagged:  tagged,
		Message: fmt.Sprintf("Total: %d notes tagged as '%s'", tagged, tag),
		Trace:   trace,
	}, nil
}

// GroupPreview describes one duplicate group without tagging anything.
type GroupPreview struct {
	Key     string  `json:"key"`
	NoteIDs []int64 `json:"note_ids"`
	Size    int     `json:"size"`
}

// Preview resolves and groups like Run but performs no writes, returning
// only the groups that would have members tagged.
func (s *Service) Preview(_ context.Context, opts RunOptions) ([]GroupPreview, error) {
	filter, keySpec, _ := s.effective(opts)
	if filter == "" {
		return nil, apperr.ErrEmptyFilter
	}

	ids, err := s.store.ResolveFilter(filter)
	if err != nil {
		return nil, err
	}

	groups, err := dedup.Group(ids, s.store.Note, keySpec)
	if err != nil {
		return nil, err
	}

	var out []GroupPreview
	for _, k := range groups.Keys() {
		bucket := groups.Bucket(k)
		if len(bucket) <= 1 {
			continue
		}
		sorted := append([]int64(nil), bucket...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		out = append(out, GroupPreview{
			Key:     keyDisplay(keySpec, k),
			NoteIDs: sorted,
			Size:    len(sorted),
		})
	}
	return out, nil
}

// FieldNames returns the distinct field names of the notes the filter
// matches, for building key-spec choices.
func (s *Service) FieldNames(_ context.Context, filter string) ([]string, error) {
	ids, err := s.store.ResolveFilter(filter)
	if err != nil {
		return nil, err
	}
	return s.store.FieldNames(ids)
}

// Settings returns the settings in effect.
func (s *Service) Settings(_ context.Context) settings.Settings {
	return s.settings.Current()
}

// UpdateSettings stores new settings. The returned settings are always the
// normalized values now in effect; the error reports a failed disk write,
// which is non-fatal.
func (s *Service) UpdateSettings(_ context.Context, next settings.Settings) (settings.Settings, error) {
	return s.settings.Update(next)
}

// Runs returns recent run history, newest first.
func (s *Service) Runs(_ context.Context, limit int) ([]collection.Run, error) {
	return s.store.ListRuns(limit)
}

// effective merges per-run overrides with stored settings and defaults.
func (s *Service) effective(opts RunOptions) (filter, keySpec, tag string) {
	st := s.settings.Current()

	merged := settings.Settings{
		Filter:   firstNonEmpty(opts.Filter, st.Filter),
		DedupKey: firstNonEmpty(opts.DedupKey, st.DedupKey),
		TagName:  firstNonEmpty(opts.TagName, st.TagName),
	}.Normalize()

	return merged.Filter, merged.DedupKey, merged.TagName
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func keyDisplay(keySpec string, k dedup.Key) string {
	if keySpec == dedup.CombineAll {
		return "(combined keys)"
	}
	return string(k)
}
