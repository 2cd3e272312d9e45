package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ternarybob/claimscope/internal/app"
	"github.com/ternarybob/claimscope/internal/common"
)

const (
	defaultReadTimeout     = 15 * time.Second
	defaultWriteTimeout    = 60 * time.Second
	defaultShutdownTimeout = 30 * time.Second
)

// Server serves the job API, cron trigger endpoints and the event websocket
type Server struct {
	app             *app.App
	router          *http.ServeMux
	server          *http.Server
	shutdownTimeout time.Duration
}

// New creates a server from the app's [server] config
func New(application *app.App) *Server {
	cfg := application.Config.Server
	s := &Server{
		app:             application,
		shutdownTimeout: parseTimeout(application, "shutdown_timeout", cfg.ShutdownTimeout, defaultShutdownTimeout),
	}

	s.router = s.setupRoutes()
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.withMiddleware(s.router),
		ReadTimeout:  parseTimeout(application, "read_timeout", cfg.ReadTimeout, defaultReadTimeout),
		WriteTimeout: parseTimeout(application, "write_timeout", cfg.WriteTimeout, defaultWriteTimeout),
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// parseTimeout falls back to def for empty, invalid or non-positive values
func parseTimeout(application *app.App, key, raw string, def time.Duration) time.Duration {
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		application.Logger.Warn().
			Str("key", key).
			Str("value", raw).
			Str("default", def.String()).
			Msg("Invalid server timeout, using default")
		return def
	}
	return d
}

// Handler returns the routed handler with middleware applied
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start listens on the configured address and serves until Shutdown
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	return s.Serve(listener)
}

// Serve serves on an existing listener
func (s *Server) Serve(listener net.Listener) error {
	s.app.Logger.Info().
		Str("address", listener.Addr().String()).
		Str("version", common.GetVersion()).
		Str("read_timeout", s.server.ReadTimeout.String()).
		Str("write_timeout", s.server.WriteTimeout.String()).
		Msg("HTTP server starting")

	if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown waits for in-flight requests, bounded by ctx and the configured
// shutdown timeout. A job run still in flight is abandoned in the analyzing
// state; the next sweep's timeout check fails it.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()

	s.app.Logger.Info().
		Str("timeout", s.shutdownTimeout.String()).
		Msg("Shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.app.Logger.Info().Msg("HTTP server stopped")
	return nil
}
