// Package core provides the API chassis for the subscription service.
// It creates the chi router and enforces cross-cutting concerns -- recovery,
// request correlation, logging, CORS -- before requests reach domain handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"reride/internal/config"
)

// Server encapsulates the dependencies of the HTTP API, allowing injection
// during testing and distinct configuration for different environments.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator

	// V1RouteRegistrars are populated by the application entry point. This
	// indirection avoids import cycles between core and handler packages.
	V1RouteRegistrars []func(chi.Router)

	// WebhookRegistrars mount unauthenticated provider callbacks outside the
	// /v1 namespace.
	WebhookRegistrars []func(chi.Router)

	// HealthProbes are checked by GET /health.
	HealthProbes []HealthProbe

	router *chi.Mux
	closer func() error
}

// NewServer initializes dependencies and prepares the server for route
// mounting. The caller mounts routes via MountRoutes after registering
// handlers; this separation lets tests customize route registration.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the http.Handler for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration in tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// OnShutdown registers a cleanup function (e.g. closing the database pool)
// invoked during Shutdown.
func (s *Server) OnShutdown(fn func() error) {
	s.closer = fn
}

// Shutdown performs a graceful termination of server-owned resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")
	if s.closer != nil {
		if err := s.closer(); err != nil {
			s.Logger.Error("error during shutdown cleanup", "error", err)
			return fmt.Errorf("shutdown cleanup: %w", err)
		}
	}
	s.Logger.Info("server shutdown complete")
	return nil
}
