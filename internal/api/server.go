package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/procureos/harrier/internal/domain"
	"github.com/procureos/harrier/internal/match"
	"github.com/procureos/harrier/internal/screen"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *match.Engine, screens *screen.Engine, version string) *Server {
	handler := NewHandler(repo, cache, bus, engine, screens, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// RFQ intake and matching
	router.Post("/rfqs", handler.CreateRFQ)
	router.Get("/rfqs/{id}", handler.GetRFQ)
	router.Post("/rfqs/{id}/match", handler.RunMatch)
	router.Get("/rfqs/{id}/matches", handler.ListMatches)

	// Catalog management
	router.Post("/skus", handler.CreateSKU)
	router.Get("/skus/{id}", handler.GetSKU)
	router.Post("/companies", handler.CreateCompany)
	router.Get("/companies/{id}", handler.GetCompany)

	// Screening rule management
	router.Get("/screen-rules", handler.ListScreenRules)
	router.Get("/screen-rules/{id}", handler.GetScreenRule)
	router.Post("/screen-rules", handler.CreateScreenRule)
	router.Post("/screen-rules/reload", handler.ReloadScreenRules)

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
