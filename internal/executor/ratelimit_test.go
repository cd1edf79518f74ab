// Metafuse - Cross-Provider Media Metadata Aggregation
// Copyright 2026 Kai Matsuda (kaimatsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaimatsu/metafuse

package executor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaimatsu/metafuse/internal/models"
)

func TestAcquireUnlimitedProviderReturnsImmediately(t *testing.T) {
	rl := NewRateLimiter()

	start := time.Now()
	require.NoError(t, rl.Acquire(context.Background(), models.ProviderAniList))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestFlagBlocksUntilWindowElapses(t *testing.T) {
	rl := NewRateLimiter()
	window := 150 * time.Millisecond

	rl.Flag(models.ProviderJikan, window)
	assert.True(t, rl.Limited(models.ProviderJikan))

	start := time.Now()
	require.NoError(t, rl.Acquire(context.Background(), models.ProviderJikan))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, window, "call dispatched before rate-limit window elapsed")
}

func TestQueueDrainsFIFO(t *testing.T) {
	rl := NewRateLimiter()
	rl.Flag(models.ProviderKitsu, 100*time.Millisecond)

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			// Stagger enqueue so FIFO order is deterministic.
			time.Sleep(time.Duration(n) * 10 * time.Millisecond)
			require.NoError(t, rl.Acquire(context.Background(), models.ProviderKitsu))
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
		}(i)
	}

	wg.Wait()
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestAcquireRespectsContextCancellation(t *testing.T) {
	rl := NewRateLimiter()
	rl.Flag(models.ProviderTMDB, 5*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := rl.Acquire(ctx, models.ProviderTMDB)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRateLimitStateAutoExpires(t *testing.T) {
	rl := NewRateLimiter()
	rl.Flag(models.ProviderMangaDex, 30*time.Millisecond)

	assert.True(t, rl.Limited(models.ProviderMangaDex))
	time.Sleep(50 * time.Millisecond)
	assert.False(t, rl.Limited(models.ProviderMangaDex))

	// Post-expiry acquisitions are immediate again.
	start := time.Now()
	require.NoError(t, rl.Acquire(context.Background(), models.ProviderMangaDex))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestConcurrentFlagsExtendWindow(t *testing.T) {
	rl := NewRateLimiter()

	rl.Flag(models.ProviderSimkl, 200*time.Millisecond)
	rl.Flag(models.ProviderSimkl, 50*time.Millisecond) // must not shorten

	start := time.Now()
	require.NoError(t, rl.Acquire(context.Background(), models.ProviderSimkl))
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

func TestQueueDepth(t *testing.T) {
	rl := NewRateLimiter()
	assert.Equal(t, 0, rl.QueueDepth(models.ProviderJikan))

	rl.Flag(models.ProviderJikan, 200*time.Millisecond)

	done := make(chan struct{})
	go func() {
		_ = rl.Acquire(context.Background(), models.ProviderJikan)
		close(done)
	}()

	// Wait for the goroutine to enqueue.
	assert.Eventually(t, func() bool {
		return rl.QueueDepth(models.ProviderJikan) == 1 || isClosed(done)
	}, time.Second, 5*time.Millisecond)

	<-done
	assert.Equal(t, 0, rl.QueueDepth(models.ProviderJikan))
}

func isClosed(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
