// Package httpapi assembles the HTTP surface: shared middleware, the public
// probes and the authenticated API routes.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/platform/httputil"
	authmw "docverify/pkg/platform/middleware/auth"
	"docverify/pkg/platform/middleware/metadata"
	request "docverify/pkg/platform/middleware/request"
	"docverify/pkg/platform/middleware/requesttime"
)

// Registrar is implemented by every feature handler.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

type Deps struct {
	Logger         *slog.Logger
	Validator      authmw.JWTValidator
	AllowedOrigins []string
	Metrics        interface {
		Middleware(next http.Handler) http.Handler
	}
	// RateLimit runs after authentication so callers are keyed by user id.
	RateLimit func(http.Handler) http.Handler
	// Checks are run by /healthz, keyed by dependency name.
	Checks   map[string]HealthCheck
	Handlers []Registrar
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(request.RequestID)
	r.Use(request.Recovery(d.Logger))
	r.Use(request.Logger(d.Logger))
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", healthz(d.Checks))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(api chi.Router) {
		api.Use(authmw.RequireAuth(d.Validator, d.Logger))
		if d.RateLimit != nil {
			api.Use(d.RateLimit)
		}
		for _, h := range d.Handlers {
			h.Register(api)
		}
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "endpoint not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{
			"error":             "method_not_allowed",
			"error_description": "method not allowed",
		})
	})
	return r
}

func healthz(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{}
		healthy := true
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				status[name] = "down"
				healthy = false
				continue
			}
			status[name] = "up"
		}
		code := http.StatusOK
		overall := "ok"
		if !healthy {
			code = http.StatusServiceUnavailable
			overall = "degraded"
		}
		httputil.WriteJSON(w, code, map[string]any{"status": overall, "checks": status})
	}
}
