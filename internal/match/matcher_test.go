// Metafuse - Cross-Provider Media Metadata Aggregation
// Copyright 2026 Kai Matsuda (kaimatsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaimatsu/metafuse

package match

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaimatsu/metafuse/internal/executor"
	"github.com/kaimatsu/metafuse/internal/mapcache"
	"github.com/kaimatsu/metafuse/internal/models"
)

func fastPolicies(models.ProviderID) executor.Policy {
	return executor.Policy{MaxAttempts: 2, InitialDelay: 5 * time.Millisecond, Multiplier: 2.0, MaxDelay: 20 * time.Millisecond}
}

// catalogSearch returns a canned per-provider search function.
func catalogSearch(catalog map[models.ProviderID][]models.MediaRecord) SearchFunc {
	return func(ctx context.Context, query string, provider models.ProviderID, mediaType models.MediaType) ([]models.MediaRecord, error) {
		return catalog[provider], nil
	}
}

func narutoRequest() Request {
	return Request{
		Title:           "Naruto",
		Year:            intPtr(2002),
		Type:            models.MediaTypeAnime,
		PrimaryProvider: models.ProviderAniList,
	}
}

func TestFindMatchesReturnsBestPerProvider(t *testing.T) {
	catalog := map[models.ProviderID][]models.MediaRecord{
		models.ProviderJikan: {
			{ID: "271", Title: "Naruto SD", Year: intPtr(2012), Type: models.MediaTypeAnime},
			{ID: "20", Title: "Naruto", Year: intPtr(2002), Type: models.MediaTypeAnime},
		},
		models.ProviderKitsu: {
			{ID: "11", Title: "Naruto", Year: intPtr(2002), Type: models.MediaTypeAnime},
		},
	}

	m := New(executor.New(), catalogSearch(catalog),
		WithProviders([]models.ProviderID{models.ProviderJikan, models.ProviderKitsu}),
		WithPolicyFor(fastPolicies),
	)

	matches := m.FindMatches(context.Background(), narutoRequest())

	require.Len(t, matches, 2)
	assert.Equal(t, "20", matches[models.ProviderJikan].ProviderMediaID)
	assert.InDelta(t, 1.0, matches[models.ProviderJikan].Confidence, 1e-9)
	assert.Equal(t, "11", matches[models.ProviderKitsu].ProviderMediaID)
	require.NotNil(t, matches[models.ProviderJikan].SourceRecord)
	assert.Equal(t, "Naruto", matches[models.ProviderJikan].SourceRecord.Title)
}

func TestFindMatchesExcludesPrimaryProviderCaseInsensitive(t *testing.T) {
	var searched int32
	search := func(ctx context.Context, query string, provider models.ProviderID, mediaType models.MediaType) ([]models.MediaRecord, error) {
		if provider.Equal(models.ProviderAniList) {
			atomic.AddInt32(&searched, 1)
		}
		return nil, nil
	}

	req := narutoRequest()
	req.PrimaryProvider = "AniList" // arbitrary casing from a caller

	m := New(executor.New(), search, WithPolicyFor(fastPolicies))
	m.FindMatches(context.Background(), req)

	assert.Zero(t, atomic.LoadInt32(&searched), "primary provider must never be searched")
}

func TestFindMatchesThresholdProperty(t *testing.T) {
	catalog := map[models.ProviderID][]models.MediaRecord{
		models.ProviderJikan: {
			{ID: "1", Title: "Naruto", Year: intPtr(2002), Type: models.MediaTypeAnime},
		},
		models.ProviderKitsu: {
			{ID: "2", Title: "Completely Unrelated Show", Year: intPtr(1999), Type: models.MediaTypeManga},
		},
	}

	m := New(executor.New(), catalogSearch(catalog),
		WithProviders([]models.ProviderID{models.ProviderJikan, models.ProviderKitsu}),
		WithPolicyFor(fastPolicies),
	)

	matches := m.FindMatches(context.Background(), narutoRequest())

	require.Contains(t, matches, models.ProviderJikan)
	assert.NotContains(t, matches, models.ProviderKitsu)
	for _, match := range matches {
		assert.GreaterOrEqual(t, match.Confidence, MinConfidenceThreshold)
	}
}

func TestFindMatchesFanOutIsolation(t *testing.T) {
	catalog := map[models.ProviderID][]models.MediaRecord{
		models.ProviderKitsu: {
			{ID: "11", Title: "Naruto", Year: intPtr(2002), Type: models.MediaTypeAnime},
		},
	}
	search := func(ctx context.Context, query string, provider models.ProviderID, mediaType models.MediaType) ([]models.MediaRecord, error) {
		if provider == models.ProviderJikan {
			return nil, errors.New("provider exploded")
		}
		return catalog[provider], nil
	}

	m := New(executor.New(), search,
		WithProviders([]models.ProviderID{models.ProviderJikan, models.ProviderKitsu}),
		WithPolicyFor(fastPolicies),
	)

	matches := m.FindMatches(context.Background(), narutoRequest())

	assert.NotContains(t, matches, models.ProviderJikan)
	require.Contains(t, matches, models.ProviderKitsu, "sibling providers must be unaffected by one provider's failure")
	assert.Equal(t, "11", matches[models.ProviderKitsu].ProviderMediaID)
}

func TestFindMatchesCacheFirst(t *testing.T) {
	var searches int32
	catalog := map[models.ProviderID][]models.MediaRecord{
		models.ProviderJikan: {
			{ID: "20", Title: "Naruto", Year: intPtr(2002), Type: models.MediaTypeAnime},
		},
	}
	search := func(ctx context.Context, query string, provider models.ProviderID, mediaType models.MediaType) ([]models.MediaRecord, error) {
		atomic.AddInt32(&searches, 1)
		return catalog[provider], nil
	}

	cache := mapcache.New(mapcache.NewMemoryStore())
	m := New(executor.New(), search,
		WithProviders([]models.ProviderID{models.ProviderJikan}),
		WithPolicyFor(fastPolicies),
		WithCache(cache),
	)

	first := m.FindMatches(context.Background(), narutoRequest())
	require.Contains(t, first, models.ProviderJikan)
	liveSearches := atomic.LoadInt32(&searches)
	require.Positive(t, liveSearches)

	second := m.FindMatches(context.Background(), narutoRequest())
	require.Contains(t, second, models.ProviderJikan)
	assert.Equal(t, liveSearches, atomic.LoadInt32(&searches), "cache hit must skip live searches")

	// Reconstructed matches carry confidence 1.0 and no source record.
	assert.Equal(t, 1.0, second[models.ProviderJikan].Confidence)
	assert.Nil(t, second[models.ProviderJikan].SourceRecord)
	assert.Equal(t, "20", second[models.ProviderJikan].ProviderMediaID)
}

func TestFindMatchesCacheKeyDistinguishesYearAndType(t *testing.T) {
	a := CacheKey(Request{Title: "Hunter x Hunter", Year: intPtr(1999), Type: models.MediaTypeAnime})
	b := CacheKey(Request{Title: "Hunter x Hunter", Year: intPtr(2011), Type: models.MediaTypeAnime})
	c := CacheKey(Request{Title: "Hunter x Hunter", Type: models.MediaTypeManga})

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Contains(t, c, "unknown", "absent year uses the literal token")
}

func TestFindMatchesEmptyResultsYieldEmptyMap(t *testing.T) {
	m := New(executor.New(), catalogSearch(nil), WithPolicyFor(fastPolicies))
	matches := m.FindMatches(context.Background(), narutoRequest())
	assert.Empty(t, matches)
}

func TestCacheKeyUsesNormalizedTitles(t *testing.T) {
	a := CacheKey(Request{Title: "One Piece Season 2", Type: models.MediaTypeAnime})
	b := CacheKey(Request{Title: "One Piece (2023)", Type: models.MediaTypeAnime})
	assert.Equal(t, a, b)
}
