// Metafuse - Cross-Provider Media Metadata Aggregation
// Copyright 2026 Kai Matsuda (kaimatsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaimatsu/metafuse

package executor

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kaimatsu/metafuse/internal/logging"
	"github.com/kaimatsu/metafuse/internal/metrics"
	"github.com/kaimatsu/metafuse/internal/models"
)

// defaultRateLimitWindow is applied when a 429 arrives without a Retry-After
// header.
const defaultRateLimitWindow = 60 * time.Second

// drainInterval paces dequeued calls after a rate-limit window elapses so the
// first burst does not immediately re-trip the limit.
const drainInterval = 100 * time.Millisecond

// RateLimiter tracks per-provider rate-limit state shared across all executor
// invocations for that provider. When a provider is flagged, subsequent
// acquisitions queue FIFO and drain only after the window elapses.
//
// Construct one RateLimiter per process and inject it; there is no package
// singleton.
type RateLimiter struct {
	mu        sync.Mutex
	providers map[models.ProviderID]*providerLimit
}

type providerLimit struct {
	resetAt  time.Time
	queue    []chan struct{}
	draining bool
	// pace throttles dequeued calls while draining.
	pace *rate.Limiter
}

// NewRateLimiter creates an empty rate limiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{providers: make(map[models.ProviderID]*providerLimit)}
}

func (rl *RateLimiter) state(provider models.ProviderID) *providerLimit {
	st, ok := rl.providers[provider]
	if !ok {
		st = &providerLimit{pace: rate.NewLimiter(rate.Every(drainInterval), 1)}
		rl.providers[provider] = st
	}
	return st
}

// Flag marks provider rate-limited for the given window. A zero window
// applies the default. Concurrent 429s extend rather than shorten the window.
func (rl *RateLimiter) Flag(provider models.ProviderID, window time.Duration) {
	if window <= 0 {
		window = defaultRateLimitWindow
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	st := rl.state(provider)
	resetAt := time.Now().Add(window)
	if resetAt.After(st.resetAt) {
		st.resetAt = resetAt
	}

	metrics.RateLimitHits.WithLabelValues(provider.String()).Inc()
	logging.Warn().
		Str("provider", provider.String()).
		Dur("window", window).
		Time("reset_at", st.resetAt).
		Msg("provider rate limited, queuing subsequent calls")
}

// Limited reports whether provider is currently inside a rate-limit window.
func (rl *RateLimiter) Limited(provider models.ProviderID) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	st, ok := rl.providers[provider]
	return ok && time.Now().Before(st.resetAt)
}

// QueueDepth returns the number of calls waiting on provider's window.
func (rl *RateLimiter) QueueDepth(provider models.ProviderID) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	st, ok := rl.providers[provider]
	if !ok {
		return 0
	}
	return len(st.queue)
}

// Acquire blocks until a call to provider may be dispatched. Unlimited
// providers return immediately. Limited providers enqueue FIFO; the queue
// drains once the window elapses, one call per drainInterval. Returns the
// context error if ctx is done before dispatch.
func (rl *RateLimiter) Acquire(ctx context.Context, provider models.ProviderID) error {
	rl.mu.Lock()
	st := rl.state(provider)

	if time.Now().After(st.resetAt) && !st.draining {
		rl.mu.Unlock()
		return nil
	}

	ready := make(chan struct{})
	st.queue = append(st.queue, ready)
	metrics.RateLimitQueueDepth.WithLabelValues(provider.String()).Set(float64(len(st.queue)))
	if !st.draining {
		st.draining = true
		go rl.drain(provider)
	}
	rl.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		// The drainer will still close ready; abandoning it is harmless.
		return ctx.Err()
	}
}

// drain releases queued calls one at a time once the provider's window has
// elapsed. A fresh 429 arriving mid-drain pushes resetAt forward and the
// drainer waits again.
func (rl *RateLimiter) drain(provider models.ProviderID) {
	for {
		rl.mu.Lock()
		st := rl.state(provider)

		if wait := time.Until(st.resetAt); wait > 0 {
			rl.mu.Unlock()
			time.Sleep(wait)
			continue
		}

		if len(st.queue) == 0 {
			st.draining = false
			metrics.RateLimitQueueDepth.WithLabelValues(provider.String()).Set(0)
			rl.mu.Unlock()
			return
		}

		ready := st.queue[0]
		st.queue = st.queue[1:]
		pace := st.pace
		metrics.RateLimitQueueDepth.WithLabelValues(provider.String()).Set(float64(len(st.queue)))
		rl.mu.Unlock()

		// Inter-request pacing between dequeued calls.
		_ = pace.Wait(context.Background())
		close(ready)
	}
}
