// Package server provides the HTTP API for pagebind.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/pagebind/internal/config"
	"github.com/hyperjump/pagebind/internal/export"
	"github.com/hyperjump/pagebind/internal/storage"
	"github.com/hyperjump/pagebind/pkg/utils"
)

// Server is the HTTP server for the pagebind API.
type Server struct {
	svc     *export.Service
	storage storage.Storage
	blobs   storage.BlobStore
	config  *config.Config
	logger  *zap.Logger
	exports chan struct{}
	server  *http.Server
}

// NewServer creates a server with the given dependencies. At most
// cfg.Export.MaxConcurrent exports run at once.
func NewServer(
	svc *export.Service,
	store storage.Storage,
	blobs storage.BlobStore,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	n := cfg.Export.MaxConcurrent
	if n <= 0 {
		n = 1
	}
	return &Server{
		svc:     svc,
		storage: store,
		blobs:   blobs,
		config:  cfg,
		logger:  utils.OrNop(logger),
		exports: make(chan struct{}, n),
	}
}

// Routes returns the API router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Minute))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/bundles/{id}/export", s.handleExport)
		r.Get("/bundles/{id}/exports", s.handleListExports)
		r.With(middleware.Compress(5)).Get("/bundles/{id}/index", s.handleIndex)
		r.Get("/documents/{id}/rendered", s.handleRendered)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
