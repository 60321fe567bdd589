package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kilnproject/kiln/internal/telemetry"
	"github.com/kilnproject/kiln/pkg/metrics"
	"github.com/kilnproject/kiln/pkg/server/handlers"
	"github.com/kilnproject/kiln/pkg/templates"
)

// NewRouter creates and configures the chi router with all middleware and
// routes.
//
// Middleware order matters: the span opens before anything that logs, the
// timeout bounds the handlers only, and compression sits inside the
// observers so sizes are logged post-compression.
//
// Routes:
//   - GET / - index page
//   - GET /pages/{name} - named page
//   - GET /health - liveness probe
//   - GET /health/ready - readiness probe
//   - GET /health/templates - live snapshot detail
//   - GET /metrics - Prometheus scrape endpoint (when metrics are enabled)
func NewRouter(cfg Config, provider *templates.Provider, version string) http.Handler {
	r := chi.NewRouter()

	tracing := NewTracing(telemetry.Tracer())

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(tracing.Handler)
	r.Use(requestLogger)
	r.Use(requestMetrics)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5, "text/html", "application/json"))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteJSON(w, http.StatusNotFound, handlers.ErrorResponse("not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteJSON(w, http.StatusMethodNotAllowed, handlers.ErrorResponse("method not allowed"))
	})

	healthHandler := handlers.NewHealthHandler(provider, version)
	pagesHandler := handlers.NewPagesHandler(provider)

	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
		r.Get("/templates", healthHandler.Templates)
	})

	if metrics.IsEnabled() {
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}

	r.Get("/", pagesHandler.Index)
	r.Get("/pages/{name}", pagesHandler.Page)

	return r
}
