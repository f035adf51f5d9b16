package server

import (
	"net/http"

	"github.com/arquery/arquery/internal/config"
	"github.com/arquery/arquery/internal/handler"
	"github.com/arquery/arquery/internal/middleware"
	"github.com/arquery/arquery/internal/observability"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter mounts the public and token-protected routes over d.
func NewRouter(cfg *config.Config, d *Deps) http.Handler {
	// ─── Handlers ────────────────────────────────────────────────────────────────
	healthH := handler.NewHealthHandler(d.Warehouse, d.HistoryPinger, d.Cache)
	generateH := handler.NewGenerateHandler(d.Pipeline, cfg.RequestTimeout.D(), cfg.TokenHeader)
	schemaH := handler.NewSchemaHandler(d.Cache, d.Shared, cfg.InvoiceTable, d.Warehouse.Dialect())

	// ─── Router ──────────────────────────────────────────────────────────────────
	r := chi.NewRouter()

	// Core middleware. RealIP comes before anything that reads RemoteAddr.
	r.Use(middleware.Recovery)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.SecurityHeaders)
	r.Use(observability.MetricsMiddleware)
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSOrigins)))

	// Public routes
	r.Get("/health", healthH.Health)
	r.Get("/", healthH.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Rate limiting runs before auth so unauthenticated floods are still throttled
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(d.RateLimiter))
		r.Use(middleware.Auth(cfg.APIAccessTokens, cfg.TokenHeader, d.Audit))

		r.Route("/v1", func(r chi.Router) {
			r.Post("/generate_sql", generateH.GenerateSQL)
			r.Get("/schema", schemaH.Get)
			r.Post("/schema/refresh", schemaH.Refresh)
		})
	})

	return r
}
