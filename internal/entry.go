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
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/daybook/internal/api"
	"github.com/starford/daybook/internal/assets"
	"github.com/starford/daybook/internal/auth"
	"github.com/starford/daybook/internal/index"
	"github.com/starford/daybook/internal/journal"
	"github.com/starford/daybook/internal/journalservice"
	"github.com/starford/daybook/internal/mcpserver"
	"github.com/starford/daybook/internal/sse"
)

const sessionTTL = 12 * time.Hour

// Run starts the application with the given options.
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
		slog.String("journal_path", cfg.Journal.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	svc, store, db, err := buildService(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// Run initial sync.
	if snap, loadErr := store.Load(); loadErr != nil {
		logger.Warn("initial journal load failed", slog.String("error", loadErr.Error()))
	} else if err := index.Sync(db, snap, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	// SSE broker.
	broker := sse.NewBroker()
	defer broker.Close()

	// Authentication wiring.
	var validate api.TokenValidator
	var authH *api.AuthHandler
	switch cfg.Auth.Mode {
	case AuthModeToken:
		token := cfg.Auth.Token
		validate = func(got string) bool { return got == token }
	case AuthModeSession:
		gate := auth.NewGate(cfg.Auth.CredentialsPath)
		sessions := auth.NewSessions(sessionTTL)
		validate = sessions.Valid
		authH = api.NewAuthHandler(gate, sessions)
	}

	apiRouter := api.NewRouter(svc, svc.Assets(), validate, authH, broker)

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

	// Asset files are served unauthenticated so rendered <img> tags work
	// without header plumbing.
	r.Get("/assets/{name}", api.NewAssetHandler(svc.Assets()).ServeFile)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher so edits made outside the application reach the
	// search index and connected SSE clients.
	g.Go(func() error {
		if err := index.Watch(gCtx, db, store, logger, func() {
			broker.PublishEntryEvent("reloaded", "")
		}); err != nil {
			logger.Warn("file watcher stopped", slog.String("error", err.Error()))
		}
		return nil
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

// RunMCP serves the journal tools over MCP stdio. Logs go to stderr so
// stdout stays clean for the protocol stream.
func RunMCP(_ context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: app.config.App.LogLevel,
	}))
	slog.SetDefault(logger)

	svc, store, db, err := buildService(app.config)
	if err != nil {
		return err
	}
	defer db.Close()

	if snap, loadErr := store.Load(); loadErr == nil {
		if err := index.Sync(db, snap, logger); err != nil {
			logger.Warn("initial sync failed", slog.String("error", err.Error()))
		}
	}

	return mcpserver.New(svc).ServeStdio()
}

// buildService creates the journal store, asset store, and search index
// from the configuration, creating directories as needed.
func buildService(cfg *Config) (*journalservice.Service, *journal.Store, *index.DB, error) {
	journalDir := filepath.Dir(cfg.Journal.Path)
	if err := os.MkdirAll(journalDir, 0o755); err != nil {
		return nil, nil, nil, fmt.Errorf("create journal dir: %w", err)
	}

	assetsDir := cfg.Journal.AssetsDir
	if assetsDir == "" {
		assetsDir = filepath.Join(journalDir, "assets")
	}
	if err := os.MkdirAll(assetsDir, 0o755); err != nil {
		return nil, nil, nil, fmt.Errorf("create assets dir: %w", err)
	}

	store, err := journal.NewStore(cfg.Journal.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init journal store: %w", err)
	}

	assetStore, err := assets.NewStore(assetsDir)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init asset store: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init index: %w", err)
	}

	return journalservice.New(store, db, assetStore), store, db, nil
}
