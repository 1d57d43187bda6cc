package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/collection"
	"github.com/starford/dagaz/internal/dedupservice"
	"github.com/starford/dagaz/internal/settings"
)

// Handler holds API route handlers.
type Handler struct {
	svc   *dedupservice.Service
	store collection.Store
}

// NewHandler creates a new Handler.
func NewHandler(svc *dedupservice.Service, store collection.Store) *Handler {
	return &Handler{svc: svc, store: store}
}

// writeServiceError maps service errors onto HTTP statuses. Filter problems
// are user-correctable (400); a note vanishing mid-run is a conflict with a
// concurrent edit (409).
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperr.ErrEmptyFilter), errors.Is(err, apperr.ErrBadFilter):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	default:
		slog.Error("request failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// GetSettings handles GET /api/settings.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Settings(r.Context()))
}

// UpdateSettings handles PUT /api/settings.
//
// A failed disk write is reported but not fatal: the new settings stay in
// effect in memory and the response still carries them.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settings.Settings
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	applied, err := h.svc.UpdateSettings(r.Context(), req)
	if err != nil {
		slog.Warn("settings save failed", slog.String("error", err.Error()))
	}
	writeJSON(w, http.StatusOK, applied)
}

// RunDedup handles POST /api/dedup/run. The body is optional; any field
// present overrides the stored settings for this run only.
func (h *Handler) RunDedup(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
			return
		}
	}
	res, err := h.svc.Run(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// PreviewDedup handles GET /api/dedup/preview.
func (h *Handler) PreviewDedup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := RunRequest{Filter: q.Get("filter"), DedupKey: q.Get("key")}
	groups, err := h.svc.Preview(r.Context(), opts)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if groups == nil {
		groups = []dedupservice.GroupPreview{}
	}
	writeJSON(w, http.StatusOK, PreviewResponse{Groups: groups})
}

// ListRuns handles GET /api/dedup/runs.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.svc.Runs(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if runs == nil {
		runs = []collection.Run{}
	}
	writeJSON(w, http.StatusOK, RunListResponse{Runs: runs})
}

// ListFields handles GET /api/fields.
func (h *Handler) ListFields(w http.ResponseWriter, r *http.Request) {
	names, err := h.svc.FieldNames(r.Context(), r.URL.Query().Get("filter"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, FieldListResponse{Fields: names})
}

// ListNotes handles GET /api/notes.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	notes, total, err := h.store.ListNotes(limit, offset, q.Get("deck"), q.Get("tag"))
	if err != nil {
		slog.Error("list notes failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes, Total: total})
}

// GetNote handles GET /api/notes/{id}.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid note id"))
		return
	}
	n, err := h.store.Note(id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get note failed", slog.Int64("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, n)
}
