// Package worker provides the decody HTTP service: scan submission
// and report generation endpoints over the classification core.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/decody/internal/advice"
	"github.com/thebtf/decody/internal/config"
	"github.com/thebtf/decody/internal/engine"
)

// Service is the HTTP worker wiring the pipeline and coordinator to
// the router.
type Service struct {
	version     string
	config      *config.Config
	pipeline    *engine.Pipeline
	coordinator *advice.Coordinator
	router      chi.Router
	httpServer  *http.Server
	startTime   time.Time
}

// New creates the service and sets up its routes.
func New(version string, cfg *config.Config, pipeline *engine.Pipeline, coordinator *advice.Coordinator) *Service {
	s := &Service{
		version:     version,
		config:      cfg,
		pipeline:    pipeline,
		coordinator: coordinator,
		router:      chi.NewRouter(),
		startTime:   time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Service) setupRoutes() {
	s.router.Use(requestLogger)

	s.router.Post("/load/{requestID}", s.handleLoad)
	s.router.Get("/generate/{requestID}", s.handleGenerate)
	s.router.Get("/api/health", s.handleHealth)
}

// ServeHTTP makes the service usable as an http.Handler in tests.
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run starts the HTTP server and blocks until ctx is cancelled, then
// shuts down gracefully.
func (s *Service) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", s.config.Port).Str("version", s.version).Msg("HTTP server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info().Msg("Shutting down HTTP server")
	return s.httpServer.Shutdown(shutdownCtx)
}

// requestLogger tags each request with an id and logs its outcome.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		start := time.Now()

		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		log.Debug().
			Str("requestId", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.status).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
