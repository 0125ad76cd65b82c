package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/vibehealth/healthsync/internal/api/handlers"
	"github.com/vibehealth/healthsync/internal/api/middleware"
	"github.com/vibehealth/healthsync/internal/config"
	"github.com/vibehealth/healthsync/internal/pkg/logger"
	"github.com/vibehealth/healthsync/internal/pkg/metrics"
)

type Handlers struct {
	Health      *handlers.HealthHandler
	Integration *handlers.IntegrationHandler
	Device      *handlers.DeviceHandler
	Portal      *handlers.PortalHandler
	Consent     *handlers.ConsentHandler
}

func New(cfg *config.Config, log *logger.Logger, h *Handlers) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	r.Use(metrics.Middleware)
	r.Use(middleware.DefaultCORS(cfg.Server.FrontendURL))
	r.Use(middleware.RateLimit(100, 200)) // 100 req/sec, burst of 200

	// Public routes
	r.Group(func(r chi.Router) {
		// Swagger documentation
		r.Get("/swagger/*", httpSwagger.WrapHandler)

		// Prometheus metrics
		r.Handle("/metrics", metrics.Handler())

		// Health checks
		r.Get("/health", h.Health.Healthz)
		r.Get("/healthz", h.Health.Healthz)
		r.Get("/readyz", h.Health.Readyz)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(cfg.Auth.JWTSecret))
		r.Use(middleware.UserRateLimit(20, 40)) // per-user, on top of the IP limit

		r.Route("/api/v1/integration", func(r chi.Router) {
			r.Get("/supported", h.Integration.Supported)

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", h.Device.List)
				r.Post("/", h.Device.Connect)
				r.Post("/{id}/sync", h.Device.Sync)
				r.Delete("/{id}", h.Device.Disconnect)
			})

			r.Route("/portals", func(r chi.Router) {
				r.Get("/", h.Portal.List)
				r.Post("/", h.Portal.Connect)
				r.Post("/{id}/sync", h.Portal.Sync)
				r.Delete("/{id}", h.Portal.Disconnect)
			})

			r.Route("/consents", func(r chi.Router) {
				r.Get("/", h.Consent.List)
				r.Post("/{id}/revoke", h.Consent.Revoke)
				// DELETE alias for clients that model revocation as deletion
				r.Delete("/{id}", h.Consent.Revoke)
			})
		})
	})

	return r
}
