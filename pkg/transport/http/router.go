// Package http provides the ldapgate HTTP surface: a chi router with the
// health, readiness and metrics endpoints plus the auth-gated catch-all,
// and a Server that manages startup and graceful shutdown.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/ldapgate/pkg/observability"
	"github.com/rhuss/ldapgate/pkg/transport"
)

// GatewayBody is returned to authenticated callers.
const GatewayBody = "Another LDAP Auth"

// ReadinessCheck reports whether a dependency is ready to serve.
type ReadinessCheck func(ctx context.Context) error

// RouterConfig configures NewRouter.
type RouterConfig struct {
	// Auth gates the catch-all route. Nil leaves it open, which only
	// tests should do.
	Auth func(http.Handler) http.Handler

	// ReadinessChecks are run by /readyz, keyed by dependency name.
	ReadinessChecks map[string]ReadinessCheck

	// ReadinessTimeout bounds all readiness checks together (default: 2s).
	ReadinessTimeout time.Duration

	// MetricsPath serves Prometheus metrics. Empty disables the endpoint.
	MetricsPath string

	Logger *slog.Logger
}

// NewRouter builds the gateway handler. Every request passes through
// recovery, request ID, logging and metrics middleware, in that order.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ReadinessTimeout <= 0 {
		cfg.ReadinessTimeout = 2 * time.Second
	}

	r := chi.NewRouter()
	r.Use(
		transport.Recovery(cfg.Logger),
		transport.RequestID(),
		transport.Logging(cfg.Logger),
		observability.MetricsMiddleware,
	)

	r.Get("/healthz", handleHealthz)
	r.Get("/readyz", handleReadyz(cfg.ReadinessChecks, cfg.ReadinessTimeout))
	if cfg.MetricsPath != "" {
		r.Method(http.MethodGet, cfg.MetricsPath, promhttp.Handler())
	}

	r.Group(func(r chi.Router) {
		if cfg.Auth != nil {
			r.Use(cfg.Auth)
		}
		r.HandleFunc("/", handleGateway)
		r.HandleFunc("/*", handleGateway)
	})

	return r
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// handleReadyz runs every check and answers 503 if any fails.
func handleReadyz(checks map[string]ReadinessCheck, timeout time.Duration) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		results := make(map[string]string, len(names))
		status := http.StatusOK
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
		writeJSON(w, status, map[string]any{
			"status": http.StatusText(status),
			"checks": results,
		})
	}
}

func handleGateway(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(GatewayBody))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
