package httpx

import (
	"context"
	"github.com/ariefcatur/lexshelf-orders/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"net/http"
	"time"
)

// HealthCheck is one dependency probe for /healthz.
type HealthCheck func(ctx context.Context) error

func NewRouter(checks map[string]HealthCheck) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for name, check := range checks {
			if err := check(ctx); err != nil {
				zap.L().Warn("health check failed", zap.String("dependency", name), zap.Error(err))
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(name + " unavailable"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// RegisterMetrics serves the checkout counters as JSON.
func RegisterMetrics(r *chi.Mux, m *metrics.Collector) {
	r.Get("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, m.GetStats())
	})
}

// NewMetricsServer is the small listener of background workers that have no
// API of their own: /healthz and /metrics only.
func NewMetricsServer(addr string, m *metrics.Collector, checks map[string]HealthCheck) *http.Server {
	r := NewRouter(checks)
	RegisterMetrics(r, m)
	return &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
}
