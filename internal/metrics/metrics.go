// Package metrics defines the Prometheus collectors shared across the
// service. Collectors are registered on the default registry and exposed
// through /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ValidationOutcomes counts validated recommendations by outcome:
	// valid, corrected or dropped.
	ValidationOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cineman_movie_validation_total",
		Help: "Movie recommendation validation outcomes.",
	}, []string{"outcome"})

	// ValidationDuration observes per-candidate validation latency.
	ValidationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cineman_movie_validation_duration_seconds",
		Help:    "Time spent validating a single recommendation.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	// CacheEvents counts cache hits, misses and evictions.
	CacheEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cineman_cache_events_total",
		Help: "Movie metadata cache events.",
	}, []string{"event"})

	// ExternalAPICalls counts outbound provider calls by API and outcome.
	ExternalAPICalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cineman_external_api_calls_total",
		Help: "Outbound calls to external movie data providers.",
	}, []string{"api", "outcome"})

	// LLMInvocations counts LLM chat completions by outcome.
	LLMInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cineman_llm_invocations_total",
		Help: "LLM chat completion invocations.",
	}, []string{"outcome"})

	// LLMDuration observes LLM call latency.
	LLMDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cineman_llm_duration_seconds",
		Help:    "Time spent on LLM chat completions.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30},
	})

	// RateLimitExceeded counts chat requests rejected by the daily quota.
	RateLimitExceeded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cineman_rate_limit_exceeded_total",
		Help: "Chat requests rejected because the daily LLM quota was reached.",
	})

	// DuplicateRecommendations counts candidates suppressed because the
	// session had already seen them.
	DuplicateRecommendations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cineman_duplicate_recommendations_total",
		Help: "Recommendations suppressed as duplicates within a session.",
	})
)
