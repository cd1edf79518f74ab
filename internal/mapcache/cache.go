// Metafuse - Cross-Provider Media Metadata Aggregation
// Copyright 2026 Kai Matsuda (kaimatsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaimatsu/metafuse

// Package mapcache persists previously resolved cross-provider ID mappings.
//
// Entries expire after a TTL (7 days by default) and the aggregate serialized
// size is bounded by a byte budget (10 MiB by default) with
// least-recently-accessed eviction. Every failure mode on the read path
// degrades to a cache miss: callers can always recompute a mapping from the
// live providers, so this cache is never allowed to fail an operation.
package mapcache

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/kaimatsu/metafuse/internal/logging"
	"github.com/kaimatsu/metafuse/internal/metrics"
	"github.com/kaimatsu/metafuse/internal/models"
)

const (
	// DefaultTTL is how long a resolved mapping stays valid.
	DefaultTTL = 7 * 24 * time.Hour

	// DefaultMaxBytes bounds the aggregate serialized cache size.
	DefaultMaxBytes = 10 << 20 // 10 MiB
)

// MappingCache stores cross-provider identity resolutions keyed by
// "{primaryProviderId}_{primaryMediaId}". Safe for concurrent use.
type MappingCache struct {
	store    Store
	ttl      time.Duration
	maxBytes int64

	// mu serializes size accounting during writes and evictions. Reads only
	// take it for the LRU touch.
	mu sync.Mutex

	now func() time.Time
}

// CacheOption customizes a MappingCache.
type CacheOption func(*MappingCache)

// WithTTL overrides the entry time-to-live.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *MappingCache) { c.ttl = ttl }
}

// WithMaxBytes overrides the byte budget.
func WithMaxBytes(n int64) CacheOption {
	return func(c *MappingCache) { c.maxBytes = n }
}

// withClock overrides the time source, for tests.
func withClock(now func() time.Time) CacheOption {
	return func(c *MappingCache) { c.now = now }
}

// New creates a MappingCache over the given store.
func New(store Store, opts ...CacheOption) *MappingCache {
	c := &MappingCache{
		store:    store,
		ttl:      DefaultTTL,
		maxBytes: DefaultMaxBytes,
		now:      time.Now,
	}
	for _, apply := range opts {
		apply(c)
	}
	return c
}

// entryKey builds the store key for a mapping.
func entryKey(primaryProvider models.ProviderID, primaryMediaID string) string {
	return fmt.Sprintf("%s_%s", primaryProvider, primaryMediaID)
}

// StoreMapping serializes and writes a resolved mapping. Before writing, the
// cache evicts least-recently-accessed entries until the new entry fits the
// byte budget.
func (c *MappingCache) StoreMapping(primaryProvider models.ProviderID, primaryMediaID string, providerMappings map[models.ProviderID]string) error {
	now := c.now()
	entry := models.CachedMapping{
		PrimaryProviderID: primaryProvider,
		PrimaryMediaID:    primaryMediaID,
		ProviderMappings:  providerMappings,
		CachedAt:          now,
		AccessedAt:        now,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal mapping: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := entryKey(primaryProvider, primaryMediaID)
	if err := c.evictForLocked(key, int64(len(data))); err != nil {
		return err
	}
	if err := c.store.Put(key, data); err != nil {
		return fmt.Errorf("store mapping %s: %w", key, err)
	}

	if size, err := c.cacheSizeLocked(); err == nil {
		metrics.MappingCacheBytes.Set(float64(size))
	}
	return nil
}

// GetMappings returns the provider mappings for a key, or nil when absent,
// expired or unreadable. Expired and corrupt entries are deleted as a side
// effect; live hits refresh the entry's access time.
func (c *MappingCache) GetMappings(primaryProvider models.ProviderID, primaryMediaID string) map[models.ProviderID]string {
	key := entryKey(primaryProvider, primaryMediaID)

	data, err := c.store.Get(key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logging.Debug().Str("key", key).Err(err).Msg("mapping cache read failed, treating as miss")
		}
		metrics.MappingCacheMisses.Inc()
		return nil
	}

	var entry models.CachedMapping
	if err := json.Unmarshal(data, &entry); err != nil {
		// Corrupt entry: delete it rather than propagate.
		logging.Warn().Str("key", key).Err(err).Msg("corrupt mapping cache entry, deleting")
		_ = c.store.Delete(key)
		metrics.MappingCacheMisses.Inc()
		return nil
	}

	if c.now().Sub(entry.CachedAt) > c.ttl {
		_ = c.store.Delete(key)
		metrics.MappingCacheMisses.Inc()
		return nil
	}

	// LRU touch: persist the updated access time, best-effort.
	c.mu.Lock()
	entry.AccessedAt = c.now()
	if touched, err := json.Marshal(entry); err == nil {
		_ = c.store.Put(key, touched)
	}
	c.mu.Unlock()

	metrics.MappingCacheHits.Inc()
	return entry.ProviderMappings
}

// RemoveMapping deletes a single mapping.
func (c *MappingCache) RemoveMapping(primaryProvider models.ProviderID, primaryMediaID string) error {
	return c.store.Delete(entryKey(primaryProvider, primaryMediaID))
}

// ClearExpired deletes every entry past the TTL. Individually corrupt entries
// are deleted rather than reported: a cache purge must never fail on bad data.
func (c *MappingCache) ClearExpired() error {
	keys, err := c.store.Keys()
	if err != nil {
		return fmt.Errorf("list cache keys: %w", err)
	}

	now := c.now()
	removed := 0
	for _, key := range keys {
		data, err := c.store.Get(key)
		if err != nil {
			continue
		}
		var entry models.CachedMapping
		if err := json.Unmarshal(data, &entry); err != nil {
			_ = c.store.Delete(key)
			removed++
			continue
		}
		if now.Sub(entry.CachedAt) > c.ttl {
			_ = c.store.Delete(key)
			removed++
		}
	}

	if removed > 0 {
		logging.Debug().Int("removed", removed).Msg("cleared expired mapping cache entries")
	}
	return nil
}

// ClearAll deletes every entry.
func (c *MappingCache) ClearAll() error {
	keys, err := c.store.Keys()
	if err != nil {
		return fmt.Errorf("list cache keys: %w", err)
	}
	for _, key := range keys {
		if err := c.store.Delete(key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}
	metrics.MappingCacheBytes.Set(0)
	return nil
}

// CacheSize returns the aggregate serialized size in bytes.
func (c *MappingCache) CacheSize() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cacheSizeLocked()
}

// EntryCount returns the number of stored mappings.
func (c *MappingCache) EntryCount() (int, error) {
	keys, err := c.store.Keys()
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (c *MappingCache) cacheSizeLocked() (int64, error) {
	keys, err := c.store.Keys()
	if err != nil {
		return 0, err
	}
	var total int64
	for _, key := range keys {
		data, err := c.store.Get(key)
		if err != nil {
			continue
		}
		total += int64(len(data))
	}
	return total, nil
}

// lruCandidate pairs a key with its last access time for eviction ordering.
type lruCandidate struct {
	key        string
	accessedAt time.Time
	size       int64
}

// evictForLocked frees room for an incoming entry of newSize bytes by
// deleting least-recently-accessed entries, oldest first. The entry being
// replaced does not count toward the budget.
func (c *MappingCache) evictForLocked(incomingKey string, newSize int64) error {
	keys, err := c.store.Keys()
	if err != nil {
		return fmt.Errorf("list cache keys: %w", err)
	}

	var total int64
	candidates := make([]lruCandidate, 0, len(keys))
	for _, key := range keys {
		if key == incomingKey {
			continue
		}
		data, err := c.store.Get(key)
		if err != nil {
			continue
		}
		size := int64(len(data))
		total += size

		cand := lruCandidate{key: key, size: size}
		var entry models.CachedMapping
		if err := json.Unmarshal(data, &entry); err == nil {
			cand.accessedAt = entry.AccessedAt
		}
		// Unparseable entries keep a zero access time and evict first.
		candidates = append(candidates, cand)
	}

	if total+newSize <= c.maxBytes {
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].accessedAt.Before(candidates[j].accessedAt)
	})

	for _, cand := range candidates {
		if total+newSize <= c.maxBytes {
			break
		}
		if err := c.store.Delete(cand.key); err != nil {
			continue
		}
		total -= cand.size
		metrics.MappingCacheEvictions.Inc()
		logging.Debug().Str("key", cand.key).Msg("evicted mapping cache entry")
	}
	return nil
}
