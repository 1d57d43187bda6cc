package api

import (
	"github.com/starford/dagaz/internal/collection"
	"github.com/starford/dagaz/internal/dedupservice"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/settings"
)

// RunRequest is the request body for a dedup run; every field is an
// optional override of the stored settings.
type RunRequest = dedupservice.RunOptions

// RunResponse is the result of a dedup run.
type RunResponse = dedupservice.RunResult

// SettingsDoc is the settings payload for GET/PUT /settings.
type SettingsDoc = settings.Settings

// NoteListResponse wraps paginated note listings.
type NoteListResponse struct {
	Notes []models.Note `json:"notes"`
	Total int           `json:"total"`
}

// PreviewResponse wraps the duplicate groups a run would tag.
type PreviewResponse struct {
	Groups []dedupservice.GroupPreview `json:"groups"`
}

// RunListResponse wraps the run history.
type RunListResponse struct {
	Runs []collection.Run `json:"runs"`
}

// FieldListResponse wraps the field names available under a filter.
type FieldListResponse struct {
	Fields []string `json:"fields"`
}
