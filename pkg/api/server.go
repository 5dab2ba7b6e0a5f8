// Package api serves the scheduler over HTTP.
//
// Routes:
//
//	GET  /healthz          liveness and build version
//	POST /v1/schedule      schedule a graph and archive the run
//	GET  /v1/runs          list archived runs, newest first
//	GET  /v1/runs/{id}     fetch one archived run
//
// Errors are returned as {"code": ..., "message": ...} using the codes from
// [github.com/matzehuels/kahnsched/pkg/errors].
package api

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/kahnsched/pkg/observability"
	"github.com/matzehuels/kahnsched/pkg/pipeline"
	"github.com/matzehuels/kahnsched/pkg/store"
)

const (
	// MaxListLimit caps the limit query parameter of GET /v1/runs.
	MaxListLimit = 100

	// maxBodyBytes bounds POST /v1/schedule request bodies.
	maxBodyBytes = 8 << 20

	readHeaderTimeout = 10 * time.Second
)

// Server handles API requests. Scheduling goes through the pipeline runner,
// so API runs share the CLI's defaults and cache keys.
type Server struct {
	runner *pipeline.Runner
	logger *log.Logger
}

// NewServer returns a server backed by runner. A runner without a store
// gets an in-memory one, since every scheduled run is archived.
func NewServer(runner *pipeline.Runner, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	if runner.Store == nil {
		runner.Store = store.NewMemoryStore()
	}
	return &Server{runner: runner, logger: logger}
}

// Handler returns the routed handler with middleware installed.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/schedule", s.handleSchedule)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
	})
	return r
}

// HTTPServer returns an http.Server for addr serving [Server.Handler].
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// logRequests logs every request at debug level and reports it to the
// HTTP observability hooks.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		hooks := observability.HTTP()
		hooks.OnRequest(r.Context(), r.Method, r.URL.Path)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		d := time.Since(start)
		hooks.OnResponse(r.Context(), r.Method, r.URL.Path, status, d)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration", d,
			"request_id", middleware.GetReqID(r.Context()))
	})
}
