// Package web exposes the import engine over a small JSON/SSE API. The
// surrounding application drives the whole flow through these endpoints:
// propose a column mapping, start a run, watch progress, fetch the
// terminal result.
package web

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hiredesk/hiredesk/internal/config"
	"github.com/hiredesk/hiredesk/internal/importer"
	"github.com/hiredesk/hiredesk/internal/mapping"
	"github.com/hiredesk/hiredesk/internal/web/middleware"
)

// Server is the HTTP server for the import API.
type Server struct {
	service *importer.Service
	mapper  *mapping.Mapper
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a new Server instance.
func NewServer(service *importer.Service, mapper *mapping.Mapper, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		mapper:  mapper,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
}

func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		// Column mapping
		r.Post("/mappings/preview", s.handleMappingPreview)
		r.Put("/mappings", s.handleMappingOverride)

		// Import runs
		r.Post("/imports", s.handleStartImport)
		r.Get("/imports/{runID}/progress", s.handleProgress)
		r.Get("/imports/{runID}/events", s.handleProgressEvents)
		r.Get("/imports/{runID}/result", s.handleResult)
		r.Get("/imports/{runID}/skipped.csv", s.handleSkippedCSV)
		r.Post("/imports/{runID}/cancel", s.handleCancel)
		r.Post("/imports/{runID}/resume", s.handleResume)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout, // 0 keeps SSE streams open
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }
