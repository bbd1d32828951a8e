// Package httptransport assembles the public HTTP surface: the shared
// middleware chain, operational endpoints and every module's routes.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"farmshield/pkg/platform/httputil"
	"farmshield/pkg/platform/middleware/device"
	"farmshield/pkg/platform/middleware/metadata"
	request "farmshield/pkg/platform/middleware/request"
	"farmshield/pkg/platform/middleware/requesttime"
)

// readyTimeout bounds a single dependency probe on /ready.
const readyTimeout = 2 * time.Second

// Module is implemented by every module handler.
type Module interface {
	Register(r chi.Router)
}

// Check probes one backing dependency for readiness.
type Check func(ctx context.Context) error

type Config struct {
	Logger         *slog.Logger
	Latency        request.LatencyObserver
	RequestTimeout time.Duration
	// RateLimit, when set, guards module routes but not the probes.
	RateLimit func(http.Handler) http.Handler
	// Checks are keyed by dependency name and reported on /ready.
	Checks map[string]Check
}

// NewRouter wires the middleware chain, /health, /ready and /metrics, then
// lets each module register its routes.
func NewRouter(cfg Config, modules ...Module) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(request.Recovery(logger))
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(device.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(request.Logger(logger))
	r.Use(request.Latency(cfg.Latency))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ready", readiness(logger, cfg.Checks))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if cfg.RequestTimeout > 0 {
			r.Use(chimw.Timeout(cfg.RequestTimeout))
		}
		if cfg.RateLimit != nil {
			r.Use(cfg.RateLimit)
		}
		for _, m := range modules {
			m.Register(r)
		}
	})
	return r
}

func readiness(logger *slog.Logger, checks map[string]Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
			err := check(ctx)
			cancel()
			if err != nil {
				logger.WarnContext(r.Context(), "readiness check failed",
					"dependency", name,
					"error", err,
					"request_id", request.GetRequestID(r.Context()),
				)
				results[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
		httputil.WriteJSON(w, status, map[string]any{"checks": results})
	}
}
