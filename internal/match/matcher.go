// Metafuse - Cross-Provider Media Metadata Aggregation
// Copyright 2026 Kai Matsuda (kaimatsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaimatsu/metafuse

// Package match resolves the "same title across providers" problem: given a
// title from one provider, it searches every other known provider in
// parallel, scores candidates by normalized-title similarity plus year and
// type bonuses, and returns the best match per provider above a confidence
// threshold. Resolved identities are cached so subsequent lookups for the
// same logical title skip the live searches.
package match

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kaimatsu/metafuse/internal/executor"
	"github.com/kaimatsu/metafuse/internal/logging"
	"github.com/kaimatsu/metafuse/internal/mapcache"
	"github.com/kaimatsu/metafuse/internal/metrics"
	"github.com/kaimatsu/metafuse/internal/models"
)

const (
	// MinConfidenceThreshold is the floor for accepting a live match.
	MinConfidenceThreshold = 0.8

	// searchTimeout bounds each provider search. Expiry resolves to an
	// empty result list, never to an overall failure.
	searchTimeout = 10 * time.Second
)

// SearchFunc searches one provider for a query. Must be safe to call
// concurrently for distinct providers.
type SearchFunc func(ctx context.Context, query string, provider models.ProviderID, mediaType models.MediaType) ([]models.MediaRecord, error)

// Request describes the primary title to resolve across providers.
type Request struct {
	Title           string
	EnglishTitle    string
	RomajiTitle     string
	Year            *int
	Type            models.MediaType
	PrimaryProvider models.ProviderID
}

// Matcher performs cross-provider identity resolution.
type Matcher struct {
	exec      *executor.Executor
	search    SearchFunc
	cache     *mapcache.MappingCache // nil disables caching
	providers []models.ProviderID
	policyFor func(models.ProviderID) executor.Policy
	threshold float64
}

// Option customizes a Matcher.
type Option func(*Matcher)

// WithCache attaches a mapping cache. Without one every call searches live.
func WithCache(c *mapcache.MappingCache) Option {
	return func(m *Matcher) { m.cache = c }
}

// WithProviders overrides the candidate provider set.
func WithProviders(ids []models.ProviderID) Option {
	return func(m *Matcher) { m.providers = ids }
}

// WithPolicyFor supplies per-provider retry policies.
func WithPolicyFor(fn func(models.ProviderID) executor.Policy) Option {
	return func(m *Matcher) { m.policyFor = fn }
}

// WithThreshold overrides the minimum confidence threshold, for tests.
func WithThreshold(t float64) Option {
	return func(m *Matcher) { m.threshold = t }
}

// New creates a Matcher. search is the only mandatory collaborator.
func New(exec *executor.Executor, search SearchFunc, opts ...Option) *Matcher {
	m := &Matcher{
		exec:      exec,
		search:    search,
		providers: models.KnownProviders(),
		policyFor: func(models.ProviderID) executor.Policy { return executor.DefaultPolicy() },
		threshold: MinConfidenceThreshold,
	}
	for _, apply := range opts {
		apply(m)
	}
	return m
}

// CacheKey derives the composite cache key for a request: the normalized
// titles, the year (or "unknown") and the media type, pipe-delimited. The
// composite — not any provider's native ID — indexes the mapping cache,
// because the primary media ID is not known to be stable across calls for
// the same logical title.
func CacheKey(req Request) string {
	year := "unknown"
	if req.Year != nil {
		year = fmt.Sprintf("%d", *req.Year)
	}
	return strings.Join([]string{
		NormalizeTitle(req.Title),
		NormalizeTitle(req.EnglishTitle),
		NormalizeTitle(req.RomajiTitle),
		year,
		req.Type.String(),
	}, "|")
}

// FindMatches resolves req against every candidate provider except the
// primary. Cache-first: a cached mapping synthesizes matches with confidence
// 1.0 and no source record. On a miss the providers are searched in parallel
// with fan-out isolation; a provider that fails after retries is logged and
// excluded without affecting its siblings. Found matches are written back to
// the cache best-effort.
//
// The returned map never contains an entry below the confidence threshold.
func (m *Matcher) FindMatches(ctx context.Context, req Request) map[models.ProviderID]models.ProviderMatch {
	key := CacheKey(req)

	if m.cache != nil {
		if cached := m.cache.GetMappings(req.PrimaryProvider, key); cached != nil {
			matches := make(map[models.ProviderID]models.ProviderMatch, len(cached))
			for provider, mediaID := range cached {
				matches[provider] = models.ProviderMatch{
					ProviderID:      provider,
					ProviderMediaID: mediaID,
					// Cached confidence is never re-validated.
					Confidence:   1.0,
					MatchedTitle: req.Title,
				}
			}
			logging.Ctx(ctx).Debug().
				Str("key", key).
				Int("providers", len(matches)).
				Msg("cross-provider matches served from cache")
			return matches
		}
	}

	matches := m.searchAll(ctx, req)

	if m.cache != nil && len(matches) > 0 {
		mappings := make(map[models.ProviderID]string, len(matches))
		for provider, match := range matches {
			mappings[provider] = match.ProviderMediaID
		}
		if err := m.cache.StoreMapping(req.PrimaryProvider, key, mappings); err != nil {
			// Cache write failure must not fail the overall call.
			logging.Ctx(ctx).Warn().Str("key", key).Err(err).Msg("mapping cache write failed")
		}
	}

	return matches
}

// searchAll fans out one search per candidate provider and joins the results.
func (m *Matcher) searchAll(ctx context.Context, req Request) map[models.ProviderID]models.ProviderMatch {
	primary := TitleSet{
		Title:        req.Title,
		EnglishTitle: req.EnglishTitle,
		RomajiTitle:  req.RomajiTitle,
		Year:         req.Year,
		Type:         req.Type,
	}

	var (
		mu      sync.Mutex
		matches = make(map[models.ProviderID]models.ProviderMatch)
		wg      sync.WaitGroup
	)

	for _, provider := range m.providers {
		if provider.Equal(req.PrimaryProvider) {
			continue
		}

		wg.Add(1)
		go func(provider models.ProviderID) {
			defer wg.Done()

			best, ok := m.searchOne(ctx, provider, req, primary)
			if !ok {
				return
			}

			mu.Lock()
			matches[provider] = best
			mu.Unlock()
		}(provider)
	}

	wg.Wait()
	return matches
}

// searchOne queries a single provider and returns its best candidate above
// the threshold. Timeouts resolve to no match; errors are logged and absorbed.
func (m *Matcher) searchOne(ctx context.Context, provider models.ProviderID, req Request, primary TitleSet) (models.ProviderMatch, bool) {
	searchCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	results, err := executor.Execute(searchCtx, m.exec,
		func(ctx context.Context) ([]models.MediaRecord, error) {
			return m.search(ctx, req.Title, provider, req.Type)
		},
		executor.WithProvider(provider),
		executor.WithName("search"),
		executor.WithPolicy(m.policyFor(provider)),
	)
	if err != nil {
		if executor.IsTimeout(err) {
			// A slow provider contributes nothing, it does not fail siblings.
			logging.Ctx(ctx).Debug().Str("provider", provider.String()).Msg("provider search timed out")
			return models.ProviderMatch{}, false
		}
		logging.Ctx(ctx).Warn().Str("provider", provider.String()).Err(err).Msg("provider search failed, excluding from matches")
		return models.ProviderMatch{}, false
	}

	var (
		best     models.MediaRecord
		bestConf float64
		found    bool
	)
	for _, candidate := range results {
		conf := CalculateMatchConfidence(primary, candidate)
		// Strictly-greater keeps the first-seen candidate on ties.
		if conf > bestConf {
			best = candidate
			bestConf = conf
			found = true
		}
	}

	if !found || bestConf < m.threshold {
		if found {
			metrics.MatchesBelowThreshold.WithLabelValues(provider.String()).Inc()
		}
		return models.ProviderMatch{}, false
	}

	metrics.MatchConfidence.WithLabelValues(provider.String()).Observe(bestConf)
	record := best
	return models.ProviderMatch{
		ProviderID:      provider,
		ProviderMediaID: best.ID,
		Confidence:      bestConf,
		MatchedTitle:    best.Title,
		SourceRecord:    &record,
	}, true
}
