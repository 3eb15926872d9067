// Package server exposes the fragility engine over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/harrison/fragility/internal/analytics"
	"github.com/harrison/fragility/internal/ingest"
	"github.com/harrison/fragility/internal/metrics"
	"github.com/harrison/fragility/internal/report"
	"github.com/harrison/fragility/internal/store"
)

// Logger receives server lifecycle messages
type Logger interface {
	LogInfo(message string)
	LogError(message string)
}

// Options tunes request defaults
type Options struct {
	TransitionLimit int
	HistoryLimit    int
	Windows         analytics.WindowOptions
}

// Server wires the store, report builder and ingest service to HTTP routes.
type Server struct {
	events  analytics.EventReader
	reports store.ReportStore
	builder *report.Builder
	ingest  *ingest.Service
	metrics *metrics.Metrics
	logger  Logger
	opts    Options
}

// New creates a Server. metrics may be nil, which disables /metrics and
// request instrumentation.
func New(events analytics.EventReader, reports store.ReportStore, builder *report.Builder,
	svc *ingest.Service, m *metrics.Metrics, logger Logger, opts Options) *Server {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 20
	}
	return &Server{
		events:  events,
		reports: reports,
		builder: builder,
		ingest:  svc,
		metrics: m,
		logger:  logger,
		opts:    opts,
	}
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.instrument)
	}

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/transitions", s.handleTransitions)
		r.Get("/sequences", s.handleSequences)
		r.Get("/stats/sequences", s.handleSequenceStats)
		r.Get("/reports", s.handleListReports)
		r.Post("/reports", s.handleBuildReport)
		r.Get("/reports/{id}", s.handleGetReport)
		r.Post("/events", s.handleAppendEvents)
	})

	return r
}

// instrument counts requests by route pattern, method and status.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.ObserveRequest(route, r.Method, status)
	})
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logInfo(fmt.Sprintf("Listening on %s", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve %s: %w", addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logInfo("Shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) logInfo(msg string) {
	if s.logger != nil {
		s.logger.LogInfo(msg)
	}
}

func (s *Server) logError(msg string) {
	if s.logger != nil {
		s.logger.LogError(msg)
	}
}
