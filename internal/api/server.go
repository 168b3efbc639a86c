// Package api wires the HTTP router: middleware, health checks, swagger docs,
// and the proximity endpoints.
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	corslib "github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/albapepper/beacon-proximity/internal/api/handler"
	"github.com/albapepper/beacon-proximity/internal/config"
)

// Deps are the components the handlers read from.
type Deps struct {
	Engine   handler.Engine
	Snapshot handler.Snapshot
	Registry handler.StatsSource   // optional
	DB       handler.HealthChecker // optional
}

// NewRouter creates and configures the Chi router with all middleware and routes.
func NewRouter(deps Deps, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(TimingMiddleware)
	r.Use(middleware.Recoverer)

	// CORS
	c := corslib.New(corslib.Options{
		AllowedOrigins:   cfg.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "POST", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Cache-Control"},
		ExposedHeaders:   []string{"X-Process-Time", "X-Request-Id"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	// Rate limiting
	if cfg.RateLimitEnabled {
		r.Use(RateLimitMiddleware(cfg.RateLimitRequests, cfg.RateLimitWindow))
	}

	// --- Handler dependencies ---
	h := handler.New(deps.Engine, deps.Snapshot, deps.Registry, deps.DB)

	// --- Routes ---

	// Root
	r.Get("/", h.Root)

	// Health checks
	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.HealthCheck)
		r.Get("/db", h.HealthCheckDB)
		r.Get("/engine", h.HealthCheckEngine)
	})

	// Swagger UI
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/docs/doc.json")))

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sightings", h.PostSightings)

		r.Get("/beacons", h.GetBeacons)
		r.Get("/beacons/closest", h.GetClosest)
		r.Get("/beacons/detected", h.GetDetected)
		r.Get("/beacons/{tier}", h.GetTier)

		r.Get("/triggers", h.GetTriggers)
	})

	return r
}
