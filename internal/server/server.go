// Package server composes the HTTP surface: the layout sync API, chart pages,
// exports, health and metrics, all behind the request middleware.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"gridboard/internal/adapters/charts"
	"gridboard/internal/adapters/exports"
	"gridboard/internal/adapters/layout"
	"gridboard/internal/blob"
	"gridboard/internal/observability"
	"gridboard/pkg/dashboard"
)

// Server owns the export worker and the routed handler.
type Server struct {
	store   *observability.ObservedStore
	worker  *exports.Worker
	metrics *observability.Metrics
	logger  *slog.Logger
	handler http.Handler
}

// New wires the handlers over store and blobs. A nil logger discards.
func New(store dashboard.Store, blobs blob.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	metrics := observability.NewMetrics()
	observed := observability.ObserveStore(store, metrics)
	worker := exports.NewWorker(observed, blobs, logger.With(slog.String("component", "exports")), metrics)

	layoutHandler := layout.NewHandler(observed, logger)
	chartHandler := charts.NewHandler(observed, logger)
	exportHandler := exports.NewHandler(worker, blobs)

	mux := http.NewServeMux()
	mux.Handle("/layout", layoutHandler)
	mux.Handle("/widget", layoutHandler)
	mux.Handle("/widget/chart", chartHandler)
	mux.Handle("/dashboard", chartHandler)
	mux.Handle("/exports", exportHandler)
	mux.Handle("/exports/", exportHandler)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if _, err := observed.Read(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok\n")
	})

	return &Server{
		store:   observed,
		worker:  worker,
		metrics: metrics,
		logger:  logger,
		handler: observability.Middleware(logger, metrics, mux),
	}
}

// Handler returns the routed, instrumented handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Store returns the instrumented store the handlers write through.
func (s *Server) Store() dashboard.Store { return s.store }

// Metrics returns the server's metric registry wrapper.
func (s *Server) Metrics() *observability.Metrics { return s.metrics }

// Start syncs the gauges and starts the export worker.
func (s *Server) Start(ctx context.Context) error {
	if err := s.store.Sync(ctx); err != nil {
		return err
	}
	s.worker.Start()
	return nil
}

// Stop drains the export worker.
func (s *Server) Stop(ctx context.Context) error {
	return s.worker.Stop(ctx)
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully within shutdownTimeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener, shutdownTimeout time.Duration) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.logger.InfoContext(ctx, "listening", slog.String("addr", ln.Addr().String()))

	var serveErr error
	select {
	case serveErr = <-errc:
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = err
	}
	if err := s.Stop(shutdownCtx); err != nil && serveErr == nil {
		serveErr = err
	}
	if errors.Is(serveErr, http.ErrServerClosed) {
		serveErr = nil
	}
	s.logger.InfoContext(shutdownCtx, "server stopped")
	return serveErr
}
