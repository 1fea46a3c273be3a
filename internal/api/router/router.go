package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hostr-app/guest-messaging-platform/internal/http/handlers"
	httpmiddleware "github.com/hostr-app/guest-messaging-platform/internal/http/middleware"
	"github.com/hostr-app/guest-messaging-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger          *logging.Logger
	DecideHandler   *handlers.DecideHandler
	AdminRules      *handlers.AdminRulesHandler
	AdminAuthSecret string
	MetricsHandler  http.Handler
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", cfg.DecideHandler.HealthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		public.Route("/v1", func(v1 chi.Router) {
			v1.Post("/messages/decide", cfg.DecideHandler.Decide)
		})
	})

	// Admin routes (protected by HMAC JWT)
	if cfg.AdminRules != nil && cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Get("/rules", cfg.AdminRules.List)
			admin.Post("/rules", cfg.AdminRules.Create)
			admin.Put("/rules/{ruleID}", cfg.AdminRules.Update)
			admin.Delete("/rules/{ruleID}", cfg.AdminRules.Delete)
		})
	}

	return r
}
