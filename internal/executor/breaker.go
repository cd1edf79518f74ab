// Metafuse - Cross-Provider Media Metadata Aggregation
// Copyright 2026 Kai Matsuda (kaimatsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaimatsu/metafuse

package executor

import (
	"errors"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/kaimatsu/metafuse/internal/logging"
	"github.com/kaimatsu/metafuse/internal/metrics"
	"github.com/kaimatsu/metafuse/internal/models"
)

// BreakerSet lazily builds one circuit breaker per provider. A provider that
// keeps failing trips its breaker and fails fast for the recovery window
// instead of burning retries against a dead upstream.
type BreakerSet struct {
	mu       sync.Mutex
	breakers map[models.ProviderID]*gobreaker.CircuitBreaker[any]
}

// NewBreakerSet creates an empty breaker set.
func NewBreakerSet() *BreakerSet {
	return &BreakerSet{breakers: make(map[models.ProviderID]*gobreaker.CircuitBreaker[any])}
}

// For returns the breaker for provider, creating it on first use.
//
// Settings: up to 3 concurrent requests in half-open state, counts reset
// every minute while closed, 2 minute recovery timeout, opens at a 60%
// failure rate once at least 10 requests have been observed.
func (b *BreakerSet) For(provider models.ProviderID) *gobreaker.CircuitBreaker[any] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cb, ok := b.breakers[provider]; ok {
		return cb
	}

	name := provider.String()
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRate := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRate >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			logging.Warn().
				Str("provider", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})

	b.breakers[provider] = cb
	return cb
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// isBreakerOpen reports whether err came from a tripped or saturated breaker.
// Such failures are permanent for the current call; retrying inside the
// recovery window cannot succeed.
func isBreakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
