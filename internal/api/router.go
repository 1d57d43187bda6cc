package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/dagaz/internal/collection"
	"github.com/starford/dagaz/internal/dedupservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *dedupservice.Service, store collection.Store, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, store)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Settings.
	r.Get("/settings", h.GetSettings)
	r.Put("/settings", h.UpdateSettings)

	// Dedup runs.
	r.Post("/dedup/run", h.RunDedup)
	r.Get("/dedup/preview", h.PreviewDedup)
	r.Get("/dedup/runs", h.ListRuns)

	// Collection browsing.
	r.Get("/notes", h.ListNotes)
	r.Get("/notes/{id}", h.GetNote)
	r.Get("/fields", h.ListFields)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
