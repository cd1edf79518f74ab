// Metafuse - Cross-Provider Media Metadata Aggregation
// Copyright 2026 Kai Matsuda (kaimatsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaimatsu/metafuse

// Package executor wraps asynchronous provider operations with
// exponential-backoff retry, per-provider rate-limit queuing and optional
// circuit breaking. Every network-bound call in the matcher and aggregator
// goes through Execute.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/kaimatsu/metafuse/internal/logging"
	"github.com/kaimatsu/metafuse/internal/metrics"
	"github.com/kaimatsu/metafuse/internal/models"
)

// Policy configures the exponential backoff schedule for one operation.
type Policy struct {
	// MaxAttempts is the total number of tries including the first.
	MaxAttempts int
	// InitialDelay is the delay before the second attempt.
	InitialDelay time.Duration
	// Multiplier grows the delay between consecutive attempts.
	Multiplier float64
	// MaxDelay caps the computed delay.
	MaxDelay time.Duration
}

// jitterFactor adds ±25% randomization to each computed delay.
const jitterFactor = 0.25

// DefaultPolicy is the standard retry schedule: 3 attempts starting at 1s,
// doubling, capped at 30s.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, InitialDelay: time.Second, Multiplier: 2.0, MaxDelay: 30 * time.Second}
}

// AggressivePolicy retries harder: 5 attempts starting at 500ms.
func AggressivePolicy() Policy {
	return Policy{MaxAttempts: 5, InitialDelay: 500 * time.Millisecond, Multiplier: 2.0, MaxDelay: 30 * time.Second}
}

// ConservativePolicy retries gently: 2 attempts starting at 2s, 1.5x growth.
func ConservativePolicy() Policy {
	return Policy{MaxAttempts: 2, InitialDelay: 2 * time.Second, Multiplier: 1.5, MaxDelay: 30 * time.Second}
}

// Executor coordinates retries against the shared per-provider rate-limit
// state. One Executor per process, injected into the matcher and aggregator.
type Executor struct {
	limiter  *RateLimiter
	breakers *BreakerSet
}

// New creates an Executor with its own rate limiter and no circuit breakers.
func New() *Executor {
	return &Executor{limiter: NewRateLimiter()}
}

// NewWithBreakers creates an Executor whose provider calls additionally pass
// through per-provider circuit breakers.
func NewWithBreakers() *Executor {
	return &Executor{limiter: NewRateLimiter(), breakers: NewBreakerSet()}
}

// Limiter exposes the underlying rate limiter, mainly for tests and metrics.
func (e *Executor) Limiter() *RateLimiter { return e.limiter }

// Operation is a single asynchronous unit of work.
type Operation[T any] func(ctx context.Context) (T, error)

// options holds per-call configuration assembled from Option values.
type options struct {
	provider    models.ProviderID
	name        string
	policy      Policy
	shouldRetry func(error) bool
}

// Option customizes a single Execute call.
type Option func(*options)

// WithProvider attributes the operation to a provider, enabling rate-limit
// queuing and circuit breaking for that provider.
func WithProvider(id models.ProviderID) Option {
	return func(o *options) { o.provider = id }
}

// WithName labels the operation in logs and metrics.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithPolicy overrides the default retry policy.
func WithPolicy(p Policy) Option {
	return func(o *options) { o.policy = p }
}

// WithShouldRetry overrides the default retryability classifier.
func WithShouldRetry(fn func(error) bool) Option {
	return func(o *options) { o.shouldRetry = fn }
}

// Execute runs op under the executor's retry, rate-limit and circuit-breaker
// rules. Non-retryable errors propagate immediately without consuming a retry
// attempt. After exhausting retries, timeout failures are wrapped in
// ErrTimeout and all other retryable failures in ErrRetriesExhausted.
func Execute[T any](ctx context.Context, e *Executor, op Operation[T], opts ...Option) (T, error) {
	cfg := options{policy: DefaultPolicy(), shouldRetry: IsRetryable}
	for _, apply := range opts {
		apply(&cfg)
	}
	if cfg.name == "" {
		cfg.name = "operation"
	}

	var zero T

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.policy.InitialDelay
	bo.RandomizationFactor = jitterFactor
	bo.Multiplier = cfg.policy.Multiplier
	bo.MaxInterval = cfg.policy.MaxDelay
	bo.MaxElapsedTime = 0 // attempts bound the loop, not wall time
	bo.Reset()

	schedule := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(cfg.policy.MaxAttempts-1)), ctx)

	attempt := 0
	var lastErr error

	result, err := backoff.RetryWithData(func() (T, error) {
		attempt++
		if attempt > 1 {
			metrics.RetryAttempts.WithLabelValues(cfg.provider.String(), cfg.name).Inc()
		}

		// Queue behind the provider's rate-limit window, if any.
		if cfg.provider != "" {
			if err := e.limiter.Acquire(ctx, cfg.provider); err != nil {
				return zero, backoff.Permanent(err)
			}
		}

		start := time.Now()
		value, opErr := invoke(ctx, e, cfg, op)
		if cfg.provider != "" {
			metrics.ProviderRequestDuration.WithLabelValues(cfg.provider.String(), cfg.name).Observe(time.Since(start).Seconds())
		}
		if opErr == nil {
			return value, nil
		}
		lastErr = opErr

		if window, limited := IsRateLimited(opErr); limited && cfg.provider != "" {
			e.limiter.Flag(cfg.provider, window)
		}

		if isBreakerOpen(opErr) || !cfg.shouldRetry(opErr) {
			return zero, backoff.Permanent(opErr)
		}

		logging.Debug().
			Str("provider", cfg.provider.String()).
			Str("operation", cfg.name).
			Int("attempt", attempt).
			Int("max_attempts", cfg.policy.MaxAttempts).
			Err(opErr).
			Msg("operation failed, backing off")
		return zero, opErr
	}, schedule)

	if err == nil {
		return result, nil
	}

	// Permanent errors (cancellation, 4xx, breaker open) pass through as-is.
	if isBreakerOpen(err) || !cfg.shouldRetry(err) || errors.Is(err, context.Canceled) {
		return zero, err
	}

	if lastErr == nil {
		lastErr = err
	}

	metrics.ProviderErrors.WithLabelValues(cfg.provider.String(), cfg.name, errorType(lastErr)).Inc()
	logging.Warn().
		Str("provider", cfg.provider.String()).
		Str("operation", cfg.name).
		Int("attempts", attempt).
		Err(lastErr).
		Msg("operation failed after exhausting retries")

	if IsTimeout(lastErr) {
		return zero, fmt.Errorf("%s: %w: %w", cfg.name, ErrTimeout, lastErr)
	}
	return zero, fmt.Errorf("%s: %w: %w", cfg.name, ErrRetriesExhausted, lastErr)
}

// invoke runs the operation, through the provider's circuit breaker when one
// is configured.
func invoke[T any](ctx context.Context, e *Executor, cfg options, op Operation[T]) (T, error) {
	if e.breakers == nil || cfg.provider == "" {
		return op(ctx)
	}

	res, err := e.breakers.For(cfg.provider).Execute(func() (any, error) {
		return op(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	value, _ := res.(T)
	return value, nil
}

// errorType buckets an error for the metrics label.
func errorType(err error) string {
	switch {
	case IsTimeout(err):
		return "timeout"
	case func() bool { _, ok := IsRateLimited(err); return ok }():
		return "rate_limited"
	default:
		return "error"
	}
}
