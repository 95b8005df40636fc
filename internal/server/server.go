// Package server provides the HTTP API for Kotaeru.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/kotaeru/internal/config"
	"github.com/hyperjump/kotaeru/internal/ingest"
	"github.com/hyperjump/kotaeru/internal/query"
	"github.com/hyperjump/kotaeru/internal/registry"
)

// Server is the HTTP server for the Kotaeru API.
type Server struct {
	orchestrator *query.Orchestrator
	ingestor     *ingest.Ingestor
	registry     registry.Registry
	config       *config.ServerConfig
	logger       *zap.Logger

	mu     sync.Mutex
	server *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	orch *query.Orchestrator,
	ing *ingest.Ingestor,
	reg registry.Registry,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	return &Server{
		orchestrator: orch,
		ingestor:     ing,
		registry:     reg,
		config:       cfg,
		logger:       logger,
	}
}

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/documents", s.handleIngestDocument)
	r.Get("/api/v1/documents", s.handleListDocuments)
	r.Get("/api/v1/documents/{id}", s.handleGetDocument)
	r.Delete("/api/v1/documents/{id}", s.handleDeleteDocument)
	r.Post("/api/v1/query", s.handleQuery)
	r.Post("/api/v1/compare", s.handleCompare)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops. A graceful
// Stop is not an error: Start returns nil in that case.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()
	s.logger.Info("Starting server", zap.String("addr", addr))
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}
