// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/mdmemo/internal/api"
	"github.com/starford/mdmemo/internal/auth"
	"github.com/starford/mdmemo/internal/cardstore"
	"github.com/starford/mdmemo/internal/importer"
	"github.com/starford/mdmemo/internal/mcpserver"
	"github.com/starford/mdmemo/internal/sse"
	"github.com/starford/mdmemo/internal/storage"
)

// runtime is what every entry point needs: a logger, an open backend and a
// loaded store.
type runtime struct {
	cfg     *Config
	logger  *slog.Logger
	backend storage.Backend
	store   *cardstore.Store
}

func (rt *runtime) Close() {
	if err := rt.backend.Close(); err != nil {
		rt.logger.Warn("close storage", slog.String("error", err.Error()))
	}
}

func newApplication(opts []Option, defaultOut io.Writer) (*application, error) {
	app := &application{logOutput: defaultOut}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// bootstrap opens the configured backend and loads the store. A load failure
// is fatal.
func bootstrap(ctx context.Context, app *application, extra ...cardstore.Option) (*runtime, error) {
	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("storage_driver", cfg.Storage.Driver),
		slog.String("storage_path", cfg.Storage.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	backend, err := storage.Open(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	opts := append([]cardstore.Option{
		cardstore.WithLogger(logger),
		cardstore.WithActivityLog(backend),
		cardstore.WithSeed(cfg.Seed.Enabled),
	}, extra...)
	store := cardstore.New(backend, opts...)

	if err := store.Load(ctx); err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("load cards: %w", err)
	}
	logger.Info("Cards loaded", slog.Int("count", len(store.All())))

	return &runtime{cfg: cfg, logger: logger, backend: backend, store: store}, nil
}

// importOnce syncs the git source when configured and imports the directory.
func (rt *runtime) importOnce(ctx context.Context, im *importer.Importer) (importer.Report, error) {
	ic := rt.cfg.Import
	if ic.GitURL != "" {
		if err := importer.SyncGit(ctx, ic.GitURL, ic.Dir, rt.logger); err != nil {
			return importer.Report{}, fmt.Errorf("git sync: %w", err)
		}
	}
	report, err := im.ImportDir(ctx, ic.Dir)
	if err != nil {
		return report, fmt.Errorf("import %s: %w", ic.Dir, err)
	}
	rt.logger.Info("Import finished",
		slog.String("dir", ic.Dir),
		slog.Int("created", report.Created),
		slog.Int("updated", report.Updated),
		slog.Int("unchanged", report.Unchanged),
		slog.Int("skipped", report.Skipped),
		slog.Int("errors", len(report.Errors)))
	return report, nil
}

// newHTTPHandler builds the root router: health checks plus the API under /api.
func newHTTPHandler(cfg *Config, store *cardstore.Store, events http.Handler) http.Handler {
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
		if store.PersistErr() != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"persist failing"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", api.NewRouter(store, api.RouterConfig{
		AuthEnabled: cfg.Auth.AuthEnabled(),
		Token:       cfg.Auth.Token,
		Users:       auth.NewStatic(cfg.Auth.UserID, cfg.Auth.Email),
		Events:      events,
	}))
	return r
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts, os.Stdout)
	if err != nil {
		return err
	}
	cfg := app.config

	broker := sse.NewBroker(cfg.Events.GraphThrottle)
	defer broker.Close()

	rt, err := bootstrap(ctx, app, cardstore.WithListener(broker.PublishCardEvent))
	if err != nil {
		return err
	}
	defer rt.Close()
	logger := rt.logger

	im := importer.New(rt.store, logger)
	if cfg.Import.Enabled() {
		if _, err := rt.importOnce(ctx, im); err != nil {
			logger.Warn("initial import failed", slog.String("error", err.Error()))
		}
	}

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           newHTTPHandler(cfg, rt.store, broker),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Import.Enabled() && cfg.Import.Watch {
		g.Go(func() error {
			if err := im.Watch(gCtx, cfg.Import.Dir); err != nil {
				logger.Warn("import watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

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
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")
		cancel()

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

// RunMCP serves the card tools over stdio. Logs go to stderr because stdout
// carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts, os.Stderr)
	if err != nil {
		return err
	}
	rt, err := bootstrap(ctx, app)
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.logger.Info("MCP server starting on stdio")
	if err := mcpserver.New(rt.store).ServeStdio(); err != nil {
		return fmt.Errorf("mcp: %w", err)
	}
	return nil
}

// RunImport imports the configured directory once and exits.
func RunImport(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts, os.Stdout)
	if err != nil {
		return err
	}
	if !app.config.Import.Enabled() {
		return fmt.Errorf("import: import.dir is not set")
	}
	rt, err := bootstrap(ctx, app)
	if err != nil {
		return err
	}
	defer rt.Close()

	report, err := rt.importOnce(ctx, importer.New(rt.store, rt.logger))
	if err != nil {
		return err
	}
	for _, e := range report.Errors {
		rt.logger.Warn("import error", slog.String("error", e))
	}
	if err := rt.store.PersistErr(); err != nil {
		return fmt.Errorf("import: %w", err)
	}
	return nil
}
