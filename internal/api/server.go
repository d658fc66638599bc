package api

import (
	"context"
	"net/http"
	"time"

	"github.com/zysolutions/octodash/internal/auth"
	"github.com/zysolutions/octodash/internal/config"
)

// Server represents the API server
type Server struct {
	config   config.ServerConfig
	handler  http.Handler
	handlers *Handlers
	server   *http.Server
}

// Options carries the optional pieces of the router.
type Options struct {
	Auth    *auth.Manager
	Health  *HealthChecker
	Metrics config.MetricsConfig
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, handlers *Handlers, opts Options) *Server {
	return &Server{
		config:   cfg,
		handler:  SetupRoutes(handlers, cfg, opts),
		handlers: handlers,
	}
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.handler,
		// Image uploads and contact imports are the slow paths.
		ReadTimeout:       2 * time.Minute,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing
func (s *Server) Handler() http.Handler {
	return s.handler
}
