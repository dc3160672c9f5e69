package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/storefront-search/internal/service"
	"github.com/utafrali/storefront-search/pkg/health"
	"github.com/utafrali/storefront-search/pkg/middleware"
)

// RouterConfig carries the settings of the HTTP surface.
type RouterConfig struct {
	ServiceName     string
	AdminToken      string
	CORS            middleware.CORSConfig
	RateLimitRPS    float64
	RateLimitBurst  int
	PprofCIDRs      []string
	RequestTimeout  time.Duration
	SearchDebounce  time.Duration
	SuggestDebounce time.Duration
}

// NewRouter creates a chi router with all search service routes registered.
// ctx bounds background work such as the rate limiter janitor.
func NewRouter(
	ctx context.Context,
	cfg RouterConfig,
	searchService *service.SearchService,
	healthHandler *health.Handler,
	logger *slog.Logger,
) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())
	if len(cfg.PprofCIDRs) > 0 {
		middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)
	}

	h := NewSearchHandler(searchService, logger, LiveConfig{
		SearchDebounce:  cfg.SearchDebounce,
		SuggestDebounce: cfg.SuggestDebounce,
	})

	r.Route("/api/v1/search", func(r chi.Router) {
		r.Use(middleware.Identity())
		r.Use(middleware.RequestLogger(logger))
		r.Use(middleware.RateLimit(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst, logger))

		// The websocket outlives any request timeout.
		r.Get("/live", h.Live)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Compress(5))
			r.Use(chimw.Timeout(cfg.RequestTimeout))

			r.Get("/", h.Search)
			r.Get("/suggest", h.Suggest)
			r.With(middleware.CacheControl(60)).Get("/trending", h.Trending)
			r.Post("/click", h.Click)

			r.Group(func(r chi.Router) {
				r.Use(middleware.NoStore)
				r.Get("/history", h.History)
				r.Delete("/history", h.ClearHistory)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.NoStore)
				r.Use(middleware.AdminToken(cfg.AdminToken))
				r.Use(ContentTypeJSON)
				r.Post("/index", h.IndexProduct)
				r.Post("/bulk", h.BulkIndex)
				r.Post("/reindex", h.Reindex)
				r.Delete("/{id}", h.DeleteProduct)
			})
		})
	})

	return r
}

// ContentTypeJSON rejects request bodies that are not declared as JSON.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength != 0 && r.Method != http.MethodDelete {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !isJSON(ct) {
				writeUnsupportedMedia(w)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
