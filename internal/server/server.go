// Package server exposes the control surface over HTTP: task submission,
// agent registration, heartbeats, and status queries. The listener binds
// loopback by default; this is an operator-facing local API, not a public
// one.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/foreman/internal/config"
	"github.com/mrz1836/foreman/internal/deps"
	"github.com/mrz1836/foreman/internal/dispatcher"
	"github.com/mrz1836/foreman/internal/registry"
	"github.com/mrz1836/foreman/internal/store"
)

// Server wires the HTTP handlers to the coordination core.
type Server struct {
	dispatcher *dispatcher.Dispatcher
	store      store.Store
	registry   registry.Registry
	deps       *deps.Manager
	cfg        config.ServerConfig
	logger     zerolog.Logger
}

// New creates a Server. The deps manager may be nil when no manifest is
// configured; /health then reports process liveness only.
func New(d *dispatcher.Dispatcher, s store.Store, r registry.Registry, m *deps.Manager, cfg config.ServerConfig, logger zerolog.Logger) *Server {
	return &Server{dispatcher: d, store: s, registry: r, deps: m, cfg: cfg, logger: logger}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /register", s.handleRegister)
	mux.HandleFunc("POST /heartbeat", s.handleHeartbeat)
	mux.HandleFunc("POST /tasks", s.handleSubmit)
	mux.HandleFunc("GET /tasks/{id}", s.handleTask)
	mux.HandleFunc("GET /agents", s.handleAgents)
	mux.HandleFunc("GET /agents/{name}", s.handleAgent)
	return s.logRequests(mux)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.ListenAddr).Msg("control server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		s.logger.Info().Msg("control server stopped")
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// logRequests is a minimal structured access log.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("request handled")
	})
}
