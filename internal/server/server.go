// Package server exposes the ingestion pipeline over HTTP: file upload,
// quarantine review and registry inspection.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/flowledger/ledgerd/internal/classify"
	"github.com/flowledger/ledgerd/internal/service"
)

// Config holds the HTTP server configuration.
type Config struct {
	Addr            string
	DefaultTenant   string
	MaxUploadBytes  int64
	ShutdownTimeout time.Duration
}

// DefaultConfig returns sensible server defaults.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		DefaultTenant:   "default",
		MaxUploadBytes:  32 << 20,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server wires the pipeline components behind an HTTP API.
type Server struct {
	store    service.Storage
	ingestor *classify.Ingestor
	reviewer *classify.Reviewer
	logger   *slog.Logger
	cfg      Config
}

// New creates a Server around an already-constructed pipeline.
func New(store service.Storage, ingestor *classify.Ingestor, reviewer *classify.Reviewer, logger *slog.Logger, cfg Config) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultConfig().Addr
	}
	if cfg.DefaultTenant == "" {
		cfg.DefaultTenant = DefaultConfig().DefaultTenant
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultConfig().MaxUploadBytes
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultConfig().ShutdownTimeout
	}
	return &Server{
		store:    store,
		ingestor: ingestor,
		reviewer: reviewer,
		logger:   logger,
		cfg:      cfg,
	}
}

// Routes builds the HTTP router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Tenant-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/ingest", s.handleIngest)
		r.Get("/events", s.handleListEvents)
		r.Get("/quarantine", s.handleListQuarantine)
		r.Post("/quarantine/{eventID}/resolve", s.handleResolveQuarantine)
		r.Get("/patterns", s.handleListPatterns)
		r.Get("/entities", s.handleListEntities)
		r.Get("/categories", s.handleListCategories)
		r.Post("/categories", s.handleCreateCategory)
	})

	return r
}

// ListenAndServe runs the server until ctx is canceled, then drains
// in-flight requests within the shutdown timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		s.logger.Info("shutting down HTTP server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server listen: %w", err)
		}
		return nil
	}
}

// tenantFrom resolves the tenant for a request. Tenancy is carried in a
// header; absent means the configured default tenant.
func (s *Server) tenantFrom(r *http.Request) string {
	if tenant := r.Header.Get("X-Tenant-ID"); tenant != "" {
		return tenant
	}
	return s.cfg.DefaultTenant
}
