// Package httptransport assembles the public HTTP surface: shared middleware,
// health and metrics endpoints, and the module handlers.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"findthem/pkg/platform/httputil"
	metadata "findthem/pkg/platform/middleware/metadata"
	request "findthem/pkg/platform/middleware/request"
	"findthem/pkg/platform/middleware/requesttime"
)

const healthTimeout = 2 * time.Second

// Registrar is implemented by every module handler.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck reports a dependency failure, e.g. a database ping.
type HealthCheck func(ctx context.Context) error

type Config struct {
	Logger   *slog.Logger
	Gatherer prometheus.Gatherer
	// Checks are named dependency checks run by /health.
	Checks   map[string]HealthCheck
	Handlers []Registrar
	// TrustProxyHeaders takes the client IP from X-Forwarded-For or
	// X-Real-IP. Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool
}

// NewRouter wires middleware in order: request id, recovery, access log,
// request time, real ip (when trusted), client metadata. Handlers mount on
// the root router.
func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(cfg.Logger))
	r.Use(request.Logger(cfg.Logger))
	r.Use(requesttime.Middleware)
	if cfg.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(metadata.ClientMetadata)

	r.Get("/health", healthHandler(cfg.Checks))
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	for _, h := range cfg.Handlers {
		h.Register(r)
	}
	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[name] = "down"
				continue
			}
			results[name] = "ok"
		}
		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		httputil.WriteJSON(w, status, map[string]any{
			"status": overall,
			"checks": results,
		})
	}
}
