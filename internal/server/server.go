// Package server exposes recorded scheduler runs over a REST API:
// run listings, per-run lifecycle events, and load samples.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/me/kosched/internal/config"
	"github.com/me/kosched/internal/store"
)

// Server is the trace inspection API server.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.Config
	startTime time.Time
	store     store.Store
}

// New creates a new Server with all routes registered.
func New(cfg config.Config, st store.Store, logger *slog.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		config:    cfg,
		startTime: time.Now(),
		store:     st,
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	// API routes (JSON)
	r.Route("/api/v1", func(r chi.Router) {
		// Discovery
		r.Get("/", s.handleDiscovery)

		// Health
		r.Get("/health", s.handleHealth)

		// Runs and their traces
		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.handleListRuns)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetRun)
				r.Delete("/", s.handleDeleteRun)
				r.Get("/events", s.handleListEvents)
				r.Get("/samples", s.handleListSamples)
			})
		})
	})
}
