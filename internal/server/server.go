package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/jm-kang/examgen/internal/config"
	"github.com/jm-kang/examgen/internal/exam"
	"github.com/jm-kang/examgen/internal/stats"
)

// Server is the HTTP front of the generation service.
type Server struct {
	httpServer *http.Server
}

// New wires the router and handlers from the given config and service.
func New(cfg *config.Config, svc *exam.Service, counters *stats.Counters) *Server {
	h := newHandler(svc, counters, overallTimeout(cfg))

	r := mux.NewRouter()
	r.HandleFunc("/v1/exams/generate", h.generate).Methods(http.MethodPost)
	r.HandleFunc("/v1/exams/generate/stream", h.generateStream).Methods(http.MethodPost)
	r.HandleFunc("/v1/stats", h.stats).Methods(http.MethodGet)
	r.Use(loggingMiddleware, recoveryMiddleware)

	return &Server{
		httpServer: &http.Server{
			Addr:        cfg.ListenAddr,
			Handler:     r,
			ReadTimeout: 30 * time.Second,
			// No write timeout: a paced stream legitimately runs for minutes.
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// overallTimeout bounds one single-shot request end to end: both upstream
// attempts, the retry wait, and time spent waiting on the gate.
func overallTimeout(cfg *config.Config) time.Duration {
	return 2*cfg.RequestTimeout + cfg.RetryWait + 5*time.Second
}

// Start begins listening and blocks until the server is stopped.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Handler returns the underlying http.Handler (for httptest in tests).
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
