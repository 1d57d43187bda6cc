// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/dagaz/internal/api"
	"github.com/starford/dagaz/internal/collection"
	"github.com/starford/dagaz/internal/dedupservice"
	"github.com/starford/dagaz/internal/mcpserver"
	"github.com/starford/dagaz/internal/settings"
	"github.com/starford/dagaz/internal/sse"
	"github.com/starford/dagaz/internal/storage"
)

// components holds the shared application wiring used by every entrypoint.
type components struct {
	store collection.Store
	decks storage.Provider
	sets  *settings.Store
	svc   func(notifier dedupservice.Notifier) *dedupservice.Service
	close func()
}

// openComponents brings up the deck store, collection database, and settings,
// and runs one deck sync so the collection reflects the files on disk.
func openComponents(cfg *Config, logger *slog.Logger) (*components, error) {
	if err := os.MkdirAll(cfg.Decks.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create decks dir: %w", err)
	}

	decks, err := storage.NewFS(cfg.Decks.Path)
	if err != nil {
		return nil, fmt.Errorf("init deck storage: %w", err)
	}

	db, err := collection.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init collection: %w", err)
	}

	if err := collection.Sync(db, decks, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	sets := settings.Open(cfg.Settings.Path, logger)

	return &components{
		store: db,
		decks: decks,
		sets:  sets,
		svc: func(notifier dedupservice.Notifier) *dedupservice.Service {
			return dedupservice.NewService(db, sets, notifier)
		},
		close: func() { _ = db.Close() },
	}, nil
}

// Run starts the HTTP server, deck watcher, and SSE broker with the given
// options, blocking until the context is cancelled or a shutdown signal
// arrives.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("decks_path", cfg.Decks.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	comps, err := openComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer comps.close()

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	// Build service and router.
	svc := comps.svc(broker)
	apiRouter := api.NewRouter(svc, comps.store, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start deck watcher with SSE callback.
	g.Go(func() error {
		return collection.Watch(gCtx, comps.store, comps.decks, cfg.Decks.Path, logger, func(kind, path string) {
			broker.PublishDeckEvent(kind, path)
		})
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunOnce performs a single dedup pass and exits: sync decks, resolve the
// filter, tag duplicates, record the run. Overrides take precedence over the
// stored settings for this pass only.
func RunOnce(ctx context.Context, cfg *Config, overrides dedupservice.RunOptions) (*dedupservice.RunResult, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))

	comps, err := openComponents(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer comps.close()

	return comps.svc(nil).Run(ctx, overrides)
}

// RunMCP serves the MCP tools over stdio until the client disconnects.
// Logs go to stderr since stdout carries the MCP transport.
func RunMCP(_ context.Context, cfg *Config) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))

	comps, err := openComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer comps.close()

	srv := mcpserver.New(comps.svc(nil), comps.store)
	return srv.ServeStdio()
}
