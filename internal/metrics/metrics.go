// Metafuse - Cross-Provider Media Metadata Aggregation
// Copyright 2026 Kai Matsuda (kaimatsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaimatsu/metafuse

// Package metrics provides Prometheus instrumentation for the aggregation
// engine: provider call outcomes, retry/rate-limit pressure, mapping cache
// efficiency and match quality.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Provider call metrics

	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "metafuse_provider_request_duration_seconds",
			Help:    "Duration of provider search/fetch calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "operation"},
	)

	ProviderErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metafuse_provider_errors_total",
			Help: "Total provider call failures after retries were exhausted",
		},
		[]string{"provider", "operation", "error_type"},
	)

	// Retry / rate-limit metrics

	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metafuse_retry_attempts_total",
			Help: "Total retry attempts by provider and operation",
		},
		[]string{"provider", "operation"},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metafuse_rate_limit_hits_total",
			Help: "Total HTTP 429 responses observed per provider",
		},
		[]string{"provider"},
	)

	RateLimitQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "metafuse_rate_limit_queue_depth",
			Help: "Calls currently queued behind a provider's rate-limit window",
		},
		[]string{"provider"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "metafuse_circuit_breaker_state",
			Help: "Circuit breaker state per provider (0=closed, 1=half-open, 2=open)",
		},
		[]string{"provider"},
	)

	// Mapping cache metrics

	MappingCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "metafuse_mapping_cache_hits_total",
			Help: "Total mapping cache hits",
		},
	)

	MappingCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "metafuse_mapping_cache_misses_total",
			Help: "Total mapping cache misses (including expired and corrupt entries)",
		},
	)

	MappingCacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "metafuse_mapping_cache_evictions_total",
			Help: "Total mapping cache entries evicted to stay under the byte budget",
		},
	)

	MappingCacheBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "metafuse_mapping_cache_bytes",
			Help: "Current serialized size of the mapping cache in bytes",
		},
	)

	// Match quality metrics

	MatchConfidence = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "metafuse_match_confidence",
			Help:    "Confidence scores of accepted cross-provider matches",
			Buckets: []float64{0.80, 0.85, 0.90, 0.95, 0.99, 1.0},
		},
		[]string{"provider"},
	)

	MatchesBelowThreshold = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metafuse_matches_below_threshold_total",
			Help: "Candidate matches rejected for falling below the confidence threshold",
		},
		[]string{"provider"},
	)

	// Aggregation metrics

	AggregationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "metafuse_aggregation_duration_seconds",
			Help:    "End-to-end aggregation latency in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"kind"}, // episodes, chapters, details
	)
)
