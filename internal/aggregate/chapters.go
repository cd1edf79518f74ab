// Metafuse - Cross-Provider Media Metadata Aggregation
// Copyright 2026 Kai Matsuda (kaimatsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaimatsu/metafuse

package aggregate

import (
	"context"
	"sync"
	"time"

	"github.com/kaimatsu/metafuse/internal/executor"
	"github.com/kaimatsu/metafuse/internal/logging"
	"github.com/kaimatsu/metafuse/internal/metrics"
	"github.com/kaimatsu/metafuse/internal/models"
)

// ChapterRequest bundles the inputs to AggregateChapters.
type ChapterRequest struct {
	Primary Primary
	Matches map[models.ProviderID]models.ProviderMatch
}

// Chapter list completeness weights: a dated chapter is worth more than a
// bare number, a page count a bit less than a date.
const (
	chapterDateWeight  = 0.5
	chapterPagesWeight = 0.3

	// chapterScoreSlack admits a configured-priority provider whose score
	// is within this fraction of the best score.
	chapterScoreSlack = 0.8
)

// AggregateChapters fetches chapter lists in parallel and merges them. When
// the primary provider has chapters it is always the base, enhanced
// field-by-field from the first other provider with a matching chapter
// number. Otherwise the best-scoring list becomes the base, preferring
// configured-priority providers whose score is within 80% of the best.
func (a *Aggregator) AggregateChapters(ctx context.Context, req ChapterRequest, fetch ChapterFetcher) []models.ChapterRecord {
	start := time.Now()
	defer func() {
		metrics.AggregationDuration.WithLabelValues("chapters").Observe(time.Since(start).Seconds())
	}()

	lists := a.fetchChapterLists(ctx, req, fetch)

	primaryChapters := lists[req.Primary.Provider]
	if len(primaryChapters) > 0 {
		return enhanceChapters(req.Primary.Provider, primaryChapters, lists)
	}

	baseProvider := a.selectChapterBase(lists)
	if baseProvider == "" {
		return nil
	}

	logging.Ctx(ctx).Debug().
		Str("base_provider", baseProvider.String()).
		Int("chapters", len(lists[baseProvider])).
		Msg("primary has no chapters, selected alternative base")

	return enhanceChapters(baseProvider, lists[baseProvider], lists)
}

// fetchChapterLists fans out per-provider chapter fetches with the detail
// timeout and fan-out isolation.
func (a *Aggregator) fetchChapterLists(ctx context.Context, req ChapterRequest, fetch ChapterFetcher) map[models.ProviderID][]models.ChapterRecord {
	var (
		mu    sync.Mutex
		lists = make(map[models.ProviderID][]models.ChapterRecord)
		wg    sync.WaitGroup
	)

	fetchOne := func(provider models.ProviderID, mediaID string) {
		defer wg.Done()

		fetchCtx, cancel := context.WithTimeout(ctx, detailFetchTimeout)
		defer cancel()

		chapters, err := executor.Execute(fetchCtx, a.exec,
			func(ctx context.Context) ([]models.ChapterRecord, error) {
				return fetch(ctx, mediaID, provider)
			},
			executor.WithProvider(provider),
			executor.WithName("chapters"),
			executor.WithPolicy(a.policyFor(provider)),
		)
		if err != nil {
			logging.Ctx(ctx).Warn().Str("provider", provider.String()).Err(err).Msg("chapter fetch failed, treating as empty")
			return
		}

		// Stamp the source provider on every record.
		for i := range chapters {
			if chapters[i].SourceProvider == "" {
				chapters[i].SourceProvider = provider
			}
		}

		mu.Lock()
		lists[provider] = chapters
		mu.Unlock()
	}

	wg.Add(1)
	go fetchOne(req.Primary.Provider, req.Primary.MediaID)

	for provider, match := range req.Matches {
		if provider.Equal(req.Primary.Provider) {
			continue
		}
		wg.Add(1)
		go fetchOne(provider, match.ProviderMediaID)
	}

	wg.Wait()
	return lists
}

// chapterScore rates a list's completeness.
func chapterScore(chapters []models.ChapterRecord) float64 {
	score := float64(len(chapters))
	for _, ch := range chapters {
		if ch.ReleaseDate != nil {
			score += chapterDateWeight
		}
		if ch.PageCount > 0 {
			score += chapterPagesWeight
		}
	}
	return score
}

// selectChapterBase picks the provider whose list scores highest, preferring
// any configured-priority provider within the slack fraction of the best.
func (a *Aggregator) selectChapterBase(lists map[models.ProviderID][]models.ChapterRecord) models.ProviderID {
	var (
		bestProvider models.ProviderID
		bestScore    float64
	)
	for _, provider := range models.KnownProviders() {
		if len(lists[provider]) == 0 {
			continue
		}
		if score := chapterScore(lists[provider]); score > bestScore {
			bestProvider = provider
			bestScore = score
		}
	}
	if bestProvider == "" {
		return ""
	}

	for _, preferred := range a.priorities.ChapterPriority {
		if len(lists[preferred]) == 0 {
			continue
		}
		if chapterScore(lists[preferred]) >= chapterScoreSlack*bestScore {
			return preferred
		}
	}
	return bestProvider
}

// enhanceChapters backfills release dates and page counts on the base list
// from the first other provider with a matching chapter number.
func enhanceChapters(baseProvider models.ProviderID, base []models.ChapterRecord, lists map[models.ProviderID][]models.ChapterRecord) []models.ChapterRecord {
	merged := make([]models.ChapterRecord, len(base))
	copy(merged, base)

	others := make([]models.ProviderID, 0, len(lists))
	for _, id := range models.KnownProviders() {
		if id != baseProvider && len(lists[id]) > 0 {
			others = append(others, id)
		}
	}

	for i := range merged {
		if merged[i].ReleaseDate != nil && merged[i].PageCount > 0 {
			continue
		}
		for _, provider := range others {
			matched := findChapterByNumber(lists[provider], merged[i].Number)
			if matched == nil {
				continue
			}
			if merged[i].ReleaseDate == nil && matched.ReleaseDate != nil {
				merged[i].ReleaseDate = matched.ReleaseDate
			}
			if merged[i].PageCount == 0 && matched.PageCount > 0 {
				merged[i].PageCount = matched.PageCount
			}
			if merged[i].ReleaseDate != nil && merged[i].PageCount > 0 {
				break
			}
		}
	}

	return merged
}

func findChapterByNumber(chapters []models.ChapterRecord, number float64) *models.ChapterRecord {
	for i := range chapters {
		if chapters[i].Number == number {
			return &chapters[i]
		}
	}
	return nil
}
