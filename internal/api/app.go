// Package api wires the HTTP surface of the conversion queue.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/tablefold/tablefold/internal/api/handlers"
	"github.com/tablefold/tablefold/internal/api/middleware"
	"github.com/tablefold/tablefold/internal/cache"
	"github.com/tablefold/tablefold/internal/config"
	"github.com/tablefold/tablefold/internal/domain"
	"github.com/tablefold/tablefold/internal/encode"
	"github.com/tablefold/tablefold/internal/events"
	"github.com/tablefold/tablefold/internal/extract"
	"github.com/tablefold/tablefold/internal/observability"
	"github.com/tablefold/tablefold/internal/queue"
	"github.com/tablefold/tablefold/internal/render"
	"github.com/tablefold/tablefold/internal/selection"
	"github.com/tablefold/tablefold/internal/sheet"
	"github.com/tablefold/tablefold/internal/store"
)

// App wires the queue, its collaborators and the HTTP surface together.
type App struct {
	logger *observability.Logger
	cfg    *config.Config

	store    *store.SnapshotStore
	cacheCli cache.Client
	queue    *queue.Queue
	hub      *events.Hub
	router   http.Handler
}

// NewApp builds the full application from configuration.
func NewApp(ctx context.Context, logger *observability.Logger, cfg *config.Config) (*App, error) {
	if err := os.MkdirAll(cfg.Queue.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	snapshots, err := store.Open(store.Config{
		Driver:            cfg.Database.Driver,
		SQLitePath:        cfg.Database.SQLite.Path,
		SQLiteJournalMode: cfg.Database.SQLite.JournalMode,
		PostgresDSN:       cfg.Database.Postgres.DSN,
		MaxOpenConns:      cfg.Database.Postgres.MaxOpenConns,
		MaxIdleConns:      cfg.Database.Postgres.MaxIdleConns,
		ConnMaxLifetime:   cfg.Database.Postgres.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}

	var cacheCli cache.Client
	if cfg.Cache.Driver == "redis" {
		cacheCli, err = cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			PoolSize: cfg.Cache.Redis.PoolSize,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, falling back to memory cache")
			cacheCli = cache.NewMemoryClient(cfg.Cache.MaxEntries)
		}
	} else {
		cacheCli = cache.NewMemoryClient(cfg.Cache.MaxEntries)
	}

	renderer := render.NewRenderer(cfg.Render.JPEGQuality)
	thumbnailer := render.NewThumbnailer(cacheCli, logger, cfg.Render.ThumbnailWidth, cfg.Render.MaxThumbnails, cfg.Cache.TTL)
	xlsx := encode.NewXLSX()
	pdf := encode.NewPDF()

	extractor, err := extract.NewClient(extract.Config{
		APIKey:         cfg.Extraction.APIKey,
		Model:          cfg.Extraction.Model,
		RequestTimeout: cfg.Extraction.RequestTimeout,
		MaxRetries:     cfg.Extraction.MaxRetries,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create extraction client: %w", err)
	}

	hub := events.NewHub(logger)
	hub.Start()

	jobSelection := selection.NewJobSelection()

	pipelines := map[domain.ConversionMode]queue.Pipeline{
		domain.ModeDocToSheet: queue.NewExtractionPipeline(renderer, extractor, logger),
		domain.ModeSheetToDoc: queue.NewTabularPipeline(xlsx, logger),
	}

	q := queue.New(ctx, queue.Config{MaxConcurrentJobs: cfg.Queue.MaxConcurrentJobs}, logger, pipelines,
		queue.WithStore(snapshots),
		queue.WithPublisher(hub),
		queue.WithChangeHook(jobSelection.Reconcile),
	)
	if err := q.Restore(ctx); err != nil {
		return nil, fmt.Errorf("restore queue: %w", err)
	}

	sessions := sheet.NewSessionManager()

	jobHandler := handlers.NewJobHandler(logger, q, thumbnailer, handlers.JobHandlerConfig{
		UploadDir:       cfg.Queue.UploadDir,
		MaxUploadBytes:  cfg.Server.MaxUploadBytes,
		DefaultPageSize: cfg.Queue.PageSize,
	})
	downloadHandler := handlers.NewDownloadHandler(logger, q, xlsx, pdf)
	selectionHandler := handlers.NewSelectionHandler(logger, q, jobSelection, cfg.Queue.PageSize)
	sessionHandler := handlers.NewSessionHandler(logger, q, sessions)
	wsHandler := handlers.NewWSHandler(logger, hub)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"tablefold"}`))
	})

	r.Get("/ws", wsHandler.Serve)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(60 * time.Second))

		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", jobHandler.Upload)
			r.Get("/", jobHandler.List)
			r.Route("/{jobId}", func(r chi.Router) {
				r.Get("/", jobHandler.Get)
				r.Delete("/", jobHandler.Delete)
				r.Post("/retry", jobHandler.Retry)
				r.Patch("/options", jobHandler.UpdateOptions)
				r.Get("/thumbnail", jobHandler.Thumbnail)
				r.Get("/download", downloadHandler.Download)
				r.Post("/session", sessionHandler.Open)
			})
		})

		r.Route("/selection", func(r chi.Router) {
			r.Get("/", selectionHandler.List)
			r.Put("/{jobId}", selectionHandler.Toggle)
			r.Post("/page-toggle", selectionHandler.TogglePage)
			r.Post("/retry", selectionHandler.RetrySelected)
			r.Post("/delete", selectionHandler.DeleteSelected)
		})

		r.Route("/sessions/{sessionId}", func(r chi.Router) {
			r.Put("/cell", sessionHandler.SetCell)
			r.Put("/style", sessionHandler.ApplyStyle)
			r.Put("/selection", sessionHandler.UpdateSelection)
			r.Post("/commit", sessionHandler.Commit)
			r.Delete("/", sessionHandler.Discard)
		})
	})

	return &App{
		logger:   logger,
		cfg:      cfg,
		store:    snapshots,
		cacheCli: cacheCli,
		queue:    q,
		hub:      hub,
		router:   r,
	}, nil
}

// Router returns the HTTP handler.
func (a *App) Router() http.Handler {
	return a.router
}

// Queue returns the job queue.
func (a *App) Queue() *queue.Queue {
	return a.queue
}

// Close releases application resources.
func (a *App) Close() {
	if err := a.cacheCli.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("cache close failed")
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("store close failed")
	}
}
