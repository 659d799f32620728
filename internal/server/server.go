// Package server exposes a shared pipeline session over HTTP: the current
// graph and its drawing, mutation commands, recorded runs, export
// artifacts, published views, and a websocket stream that tells clients
// when any of it changed.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/flowscope/flowscope/pkg/archive"
	"github.com/flowscope/flowscope/pkg/observability"
	"github.com/flowscope/flowscope/pkg/render"
	"github.com/flowscope/flowscope/pkg/runs"
	"github.com/flowscope/flowscope/pkg/view"
)

// Config holds the listen address and CORS policy.
type Config struct {
	Addr        string
	CORSOrigins []string // empty means localhost only
}

// Server serves one view session shared by every client. The run store
// and archive are optional: without a run store the history endpoints
// serve empty results, without an archive publishing is rejected.
type Server struct {
	cfg      Config
	session  *view.Session
	runs     *runs.Store
	archive  archive.Store
	exporter *render.Exporter
	logger   *log.Logger
	hub      *hub

	router     chi.Router
	httpServer *http.Server
}

// New assembles a server around the given session. A nil exporter or
// logger falls back to defaults. A non-nil run store is attached to the
// session so node details carry recorded metric series.
func New(cfg Config, session *view.Session, runStore *runs.Store, archiveStore archive.Store, exporter *render.Exporter, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	if exporter == nil {
		exporter = render.NewExporter(nil, nil, logger)
	}
	if runStore != nil {
		session.AttachRuns(runStore)
	}

	s := &Server{
		cfg:      cfg,
		session:  session,
		runs:     runStore,
		archive:  archiveStore,
		exporter: exporter,
		logger:   logger,
		hub:      newHub(logger),
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	corsOpts := cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}
	if len(corsOpts.AllowedOrigins) == 0 {
		corsOpts.AllowedOrigins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		// The event stream stays open for the life of the client, so it
		// sits outside the request timeout.
		r.Get("/events", s.handleEvents)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Get("/main", s.handleMain)
			r.Get("/layout", s.handleLayout)
			r.Get("/nodes/{id}", s.handleNodeDetail)
			r.Post("/filters", s.handleFilters)
			r.Post("/pipelines/{id}/toggle", s.handleToggle)
			r.Post("/focus", s.handleFocus)
			r.Post("/snapshot", s.handleSnapshot)
			r.Get("/export/{format}", s.handleExport)

			r.Get("/runs", s.handleRunIndex)
			r.Get("/runs/{id}", s.handleRunGet)
			r.Patch("/runs/{id}", s.handleRunAnnotate)

			r.Post("/publish", s.handlePublish)
			r.Get("/published", s.handlePublishedIndex)
			r.Get("/published/{id}", s.handlePublishedGet)
			r.Delete("/published/{id}", s.handlePublishedDelete)
		})
	})

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		observability.Server().OnRequest(r.Context(), r.Method, r.URL.Path)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		observability.Server().OnResponse(r.Context(), r.Method, r.URL.Path, ww.Status(), duration)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", duration)
	})
}

// Router returns the assembled router, for tests and for embedding the
// API under a larger mux.
func (s *Server) Router() chi.Router { return s.router }

// Start listens on the configured address and blocks until the listener
// fails or Shutdown is called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.logger.Info("serving", "addr", s.cfg.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
