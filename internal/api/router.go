package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/gitjobs/notifier/internal/api/handler"
	apimw "github.com/gitjobs/notifier/internal/api/middleware"
	"github.com/gitjobs/notifier/internal/service"
)

// RouterConfig carries the optional pieces of the HTTP surface.
type RouterConfig struct {
	// JWTSecret enables bearer authentication on /api/v1 when non-empty.
	JWTSecret string
	// DB is pinged by /health. Nil skips the check.
	DB handler.Pinger
}

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(
	svc *service.NotificationService,
	reg prometheus.Gatherer,
	logger *zap.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)          // recover panics, return 500
	r.Use(chimw.RealIP)             // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(1<<20)) // 1 MB max request body
	r.Use(apimw.CorrelationID)      // X-Correlation-ID inject / echo
	r.Use(apimw.RequestLogger(logger))

	// --- handler instances ---
	nh := handler.NewNotificationHandler(svc, logger)
	sh := handler.NewStatsHandler(svc, logger)
	hh := handler.NewHealthHandler(cfg.DB)

	// --- routes ---
	r.Get("/health", hh.Health)

	// Raw Prometheus scrape endpoint (for Prometheus server / Grafana)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.JWTSecret != "" {
			r.Use(apimw.BearerAuth(cfg.JWTSecret))
		}

		r.Post("/notifications", nh.Enqueue)
		r.Get("/notifications", nh.List)
		r.Get("/notifications/{id}", nh.GetByID)

		// JSON queue snapshot
		r.Get("/stats", sh.GetStats)
	})

	return r
}
