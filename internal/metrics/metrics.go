// Package metrics holds the Prometheus collectors of the search pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Search outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeEmpty       = "empty"
	OutcomeDegraded    = "degraded"
	OutcomeCancelled   = "cancelled"
	OutcomeInvalid     = "invalid"
	OutcomeUnavailable = "unavailable"
)

// Pipeline stages.
const (
	StageRetrieve = "retrieve"
	StageOptimize = "optimize"
	StageFacets   = "facets"
	StageSuggest  = "suggest"
	StageTotal    = "total"
)

var (
	SearchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_requests_total",
			Help: "Searches by outcome",
		},
		[]string{"outcome"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "search_stage_duration_seconds",
			Help:    "Time spent in each search pipeline stage",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"stage"},
	)

	Fallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_fallback_total",
			Help: "Retrievals served from the fallback catalog, by primary engine",
		},
		[]string{"engine"},
	)

	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_cache_requests_total",
			Help: "Cache lookups by cache name and hit or miss",
		},
		[]string{"cache", "result"},
	)

	SessionRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_session_runs_total",
			Help: "Debounced live-search runs by final state",
		},
		[]string{"kind", "state"},
	)

	AnalyticsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "search_analytics_dropped_total",
			Help: "Analytics events dropped because the buffer was full or the sink failed",
		},
	)
)

// ObserveStage records the time since start under stage.
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// CacheResult records a cache lookup.
func CacheResult(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheRequests.WithLabelValues(cache, result).Inc()
}
