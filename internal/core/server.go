package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/KabirBatra18/valoquick-sub001/internal/config"
)

// Server encapsulates the router and cross-cutting dependencies for the
// ValoQuick API, allowing injection during testing and distinct wiring per
// environment.
type Server struct {
	Config        *config.Config
	Logger        *slog.Logger
	Validator     *Validator
	Authenticator Authenticator

	// V1RouteRegistrars are invoked under /v1 when routes are mounted.
	// Populated by the application entry point to avoid import cycles
	// between core and handler packages.
	V1RouteRegistrars []func(chi.Router)

	// PublicRouteRegistrars are mounted at the root, outside auth
	// middleware (webhooks, health).
	PublicRouteRegistrars []func(chi.Router)

	router *chi.Mux
}

// NewServer initializes the chassis. The caller mounts routes afterwards via
// MountRoutes; this separation lets tests customize registration.
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

// MountRoutes registers the global middleware chain and the route groups.
//
// Ordering: Recoverer catches panics from everything below it; RequestID
// must precede logging; public routes (webhooks, health) are mounted before
// the auth middleware group because the payment provider authenticates via
// payload signature, not a bearer token.
func (s *Server) MountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(RequestLogger(s.Logger))

	s.router.Get("/health", s.HandleHealth)

	s.router.Group(func(r chi.Router) {
		for _, registrar := range s.PublicRouteRegistrars {
			registrar(r)
		}
	})

	s.router.Route("/v1", func(r chi.Router) {
		r.Use(s.AuthMiddleware)
		for _, registrar := range s.V1RouteRegistrars {
			registrar(r)
		}
	})
}

// HandleHealth responds to liveness probes.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// Handler returns the http.Handler for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration in tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown performs a graceful termination of server-held resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown complete")
	return nil
}
