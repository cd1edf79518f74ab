// Metafuse - Cross-Provider Media Metadata Aggregation
// Copyright 2026 Kai Matsuda (kaimatsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaimatsu/metafuse

package aggregate

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kaimatsu/metafuse/internal/executor"
	"github.com/kaimatsu/metafuse/internal/logging"
	"github.com/kaimatsu/metafuse/internal/metrics"
	"github.com/kaimatsu/metafuse/internal/models"
)

// EpisodeRequest bundles the inputs to AggregateEpisodes.
type EpisodeRequest struct {
	Primary Primary
	Matches map[models.ProviderID]models.ProviderMatch

	// Covers maps each provider to its series cover image, used for
	// fallback-cover thumbnail detection. Optional.
	Covers map[models.ProviderID]string
}

// AggregateEpisodes fetches episode lists from the primary and every matched
// provider in parallel and merges them: the most complete list becomes the
// base, season numbers are inferred from the season authority when missing,
// and thumbnails and release dates are enhanced per episode from the other
// providers. One provider's failure never affects the others; if everything
// fails the result is empty, not an error.
func (a *Aggregator) AggregateEpisodes(ctx context.Context, req EpisodeRequest, fetch EpisodeFetcher) []models.EpisodeRecord {
	start := time.Now()
	defer func() {
		metrics.AggregationDuration.WithLabelValues("episodes").Observe(time.Since(start).Seconds())
	}()

	lists := a.fetchEpisodeLists(ctx, req, fetch)

	baseProvider, base := selectEpisodeBase(req.Primary.Provider, lists)
	if len(base) == 0 {
		return nil
	}

	logging.Ctx(ctx).Debug().
		Str("base_provider", baseProvider.String()).
		Int("episodes", len(base)).
		Msg("selected episode base list")

	seasonCounts := a.inferSeasons(ctx, req, baseProvider, base, lists)
	seasonMatching := seasonCounts != nil || hasSeasonNumbers(base)

	merged := make([]models.EpisodeRecord, len(base))
	copy(merged, base)

	others := make([]models.ProviderID, 0, len(lists))
	for _, id := range models.KnownProviders() {
		if id != baseProvider && len(lists[id]) > 0 {
			others = append(others, id)
		}
	}

	for i := range merged {
		a.enhanceEpisode(&merged[i], baseProvider, others, lists, req.Covers, seasonMatching)
	}

	return merged
}

// fetchEpisodeLists fans out the per-provider fetches. The primary is called
// directly (its fetcher carries its own timeout); matched providers go
// through the executor with the long episode timeout, resolving to empty on
// expiry.
func (a *Aggregator) fetchEpisodeLists(ctx context.Context, req EpisodeRequest, fetch EpisodeFetcher) map[models.ProviderID][]models.EpisodeRecord {
	var (
		mu    sync.Mutex
		lists = make(map[models.ProviderID][]models.EpisodeRecord)
		wg    sync.WaitGroup
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		episodes, err := fetch(ctx, req.Primary.MediaID, req.Primary.Provider)
		if err != nil {
			logging.Ctx(ctx).Warn().Str("provider", req.Primary.Provider.String()).Err(err).Msg("primary episode fetch failed")
			return
		}
		mu.Lock()
		lists[req.Primary.Provider] = episodes
		mu.Unlock()
	}()

	for provider, match := range req.Matches {
		if provider.Equal(req.Primary.Provider) {
			continue
		}

		wg.Add(1)
		go func(provider models.ProviderID, mediaID string) {
			defer wg.Done()

			fetchCtx, cancel := context.WithTimeout(ctx, episodeFetchTimeout)
			defer cancel()

			episodes, err := executor.Execute(fetchCtx, a.exec,
				func(ctx context.Context) ([]models.EpisodeRecord, error) {
					return fetch(ctx, mediaID, provider)
				},
				executor.WithProvider(provider),
				executor.WithName("episodes"),
				executor.WithPolicy(a.policyFor(provider)),
			)
			if err != nil {
				// Timeout or failure: this provider contributes nothing.
				logging.Ctx(ctx).Warn().Str("provider", provider.String()).Err(err).Msg("episode fetch failed, treating as empty")
				return
			}

			mu.Lock()
			lists[provider] = episodes
			mu.Unlock()
		}(provider, match.ProviderMediaID)
	}

	wg.Wait()
	return lists
}

// selectEpisodeBase scores every non-empty list as episodeCount plus twice
// the count of episodes with a thumbnail, and picks the highest. The winner
// may not be the primary provider. Ties keep the earlier provider in the
// stable known-provider order.
func selectEpisodeBase(primary models.ProviderID, lists map[models.ProviderID][]models.EpisodeRecord) (models.ProviderID, []models.EpisodeRecord) {
	var (
		bestProvider models.ProviderID
		bestScore    = -1
	)

	for _, provider := range models.KnownProviders() {
		episodes := lists[provider]
		if len(episodes) == 0 {
			continue
		}
		score := len(episodes) + 2*countWithThumbnail(episodes)
		if score > bestScore {
			bestProvider = provider
			bestScore = score
		}
	}

	if bestScore < 0 {
		return primary, nil
	}
	return bestProvider, lists[bestProvider]
}

func countWithThumbnail(episodes []models.EpisodeRecord) int {
	n := 0
	for _, ep := range episodes {
		if ep.Thumbnail != "" {
			n++
		}
	}
	return n
}

func hasSeasonNumbers(episodes []models.EpisodeRecord) bool {
	for _, ep := range episodes {
		if ep.SeasonNumber != nil {
			return true
		}
	}
	return false
}

// inferSeasons assigns season numbers to the base list when it has none but
// the season authority does. Season sizes come from the explicit season
// metadata lookup when available, else from counting the authority's
// episodes per season. Base episodes are matched to seasons by cumulative
// episode-number ranges; episodes outside every range keep no season number.
//
// Returns the per-season episode counts when inference ran, nil otherwise.
func (a *Aggregator) inferSeasons(ctx context.Context, req EpisodeRequest, baseProvider models.ProviderID, base []models.EpisodeRecord, lists map[models.ProviderID][]models.EpisodeRecord) map[int]int {
	if hasSeasonNumbers(base) {
		return nil
	}

	authority := a.priorities.SeasonAuthority
	if authority == "" || authority == baseProvider {
		return nil
	}
	authEpisodes := lists[authority]
	if !hasSeasonNumbers(authEpisodes) {
		return nil
	}

	counts := a.seasonEpisodeCounts(ctx, req, authority, authEpisodes)
	if len(counts) == 0 {
		return nil
	}

	seasons := make([]int, 0, len(counts))
	for season := range counts {
		seasons = append(seasons, season)
	}
	sort.Ints(seasons)

	// Cumulative-range assignment: season 1 covers 1..c1, season 2 covers
	// c1+1..c1+c2, and so on.
	for i := range base {
		cumulative := 0
		for _, season := range seasons {
			lo := cumulative + 1
			hi := cumulative + counts[season]
			if base[i].Number >= lo && base[i].Number <= hi {
				s := season
				base[i].SeasonNumber = &s
				break
			}
			cumulative = hi
		}
	}

	return counts
}

// seasonEpisodeCounts prefers the explicit season metadata lookup, falling
// back to counting the authority's episodes per season.
func (a *Aggregator) seasonEpisodeCounts(ctx context.Context, req EpisodeRequest, authority models.ProviderID, authEpisodes []models.EpisodeRecord) map[int]int {
	if a.seasonMeta != nil {
		if match, ok := req.Matches[authority]; ok {
			if meta, err := a.seasonMeta(ctx, match.ProviderMediaID); err == nil && len(meta) > 0 {
				counts := make(map[int]int, len(meta))
				for season, info := range meta {
					if season > 0 && info.EpisodeCount > 0 {
						counts[season] = info.EpisodeCount
					}
				}
				if len(counts) > 0 {
					return counts
				}
			}
		}
	}

	counts := make(map[int]int)
	for _, ep := range authEpisodes {
		if ep.SeasonNumber != nil && *ep.SeasonNumber > 0 {
			counts[*ep.SeasonNumber]++
		}
	}
	return counts
}

// enhanceEpisode fills thumbnail, release date and per-provider alternative
// data for one base episode from the other providers' matching episodes.
func (a *Aggregator) enhanceEpisode(ep *models.EpisodeRecord, baseProvider models.ProviderID, others []models.ProviderID, lists map[models.ProviderID][]models.EpisodeRecord, covers map[models.ProviderID]string, seasonMatching bool) {
	// Record what each provider offered, for audit/attribution.
	for _, provider := range others {
		if matched := findMatchingEpisode(lists[provider], *ep, seasonMatching); matched != nil {
			ep.RecordSource(provider, models.EpisodeSource{
				Title:     matched.Title,
				Thumbnail: matched.Thumbnail,
				AirDate:   matched.ReleaseDate,
			})
		}
	}

	a.selectThumbnail(ep, baseProvider, others, lists, covers, seasonMatching)

	// Backfill a missing release date from the first other provider that
	// has one.
	if ep.ReleaseDate == nil {
		for _, provider := range others {
			if matched := findMatchingEpisode(lists[provider], *ep, seasonMatching); matched != nil && matched.ReleaseDate != nil {
				ep.ReleaseDate = matched.ReleaseDate
				break
			}
		}
	}
}

// selectThumbnail walks the thumbnail priority order and keeps the first
// genuine (non-fallback-cover) thumbnail. A genuine thumbnail from a lower
// priority provider beats a fallback from a higher one; if nothing genuine
// exists the thumbnail stays empty rather than knowingly showing cover art.
func (a *Aggregator) selectThumbnail(ep *models.EpisodeRecord, baseProvider models.ProviderID, others []models.ProviderID, lists map[models.ProviderID][]models.EpisodeRecord, covers map[models.ProviderID]string, seasonMatching bool) {
	candidate := func(provider models.ProviderID) (string, bool) {
		var thumb string
		if provider == baseProvider {
			thumb = ep.Thumbnail
		} else if matched := findMatchingEpisode(lists[provider], *ep, seasonMatching); matched != nil {
			thumb = matched.Thumbnail
		}
		if thumb == "" {
			return "", false
		}
		return thumb, !IsFallbackCover(thumb, covers[provider])
	}

	for _, provider := range a.priorities.ThumbnailPriority {
		if provider != baseProvider && !containsProvider(others, provider) {
			continue
		}
		if thumb, genuine := candidate(provider); genuine {
			ep.Thumbnail = thumb
			return
		}
	}

	// No genuine thumbnail anywhere: never fall back to cover art.
	if ep.Thumbnail != "" && IsFallbackCover(ep.Thumbnail, covers[baseProvider]) {
		ep.Thumbnail = ""
	}
}

func containsProvider(ids []models.ProviderID, id models.ProviderID) bool {
	for _, have := range ids {
		if have == id {
			return true
		}
	}
	return false
}

// findMatchingEpisode locates target's counterpart in candidates:
//  1. exact season+number match when season matching is active and the
//     target carries a season;
//  2. the target's season+number mapped to flat numbering by summing the
//     per-season max episode numbers of all prior seasons;
//  3. exact number match;
//  4. closest number within ±2, smallest difference first.
//
// Returns nil otherwise; there is no fuzzy title fallback for episodes.
func findMatchingEpisode(candidates []models.EpisodeRecord, target models.EpisodeRecord, seasonMatching bool) *models.EpisodeRecord {
	if len(candidates) == 0 {
		return nil
	}

	if seasonMatching && target.SeasonNumber != nil {
		for i := range candidates {
			c := &candidates[i]
			if c.SeasonNumber != nil && *c.SeasonNumber == *target.SeasonNumber && c.Number == target.Number {
				return c
			}
		}

		// Map season+number onto the candidates' flat numbering.
		if flat, ok := flatNumber(candidates, *target.SeasonNumber, target.Number); ok {
			for i := range candidates {
				if candidates[i].SeasonNumber == nil && candidates[i].Number == flat {
					return &candidates[i]
				}
			}
		}
	}

	for i := range candidates {
		if candidates[i].Number == target.Number {
			return &candidates[i]
		}
	}

	var (
		closest  *models.EpisodeRecord
		bestDiff = 3 // outside the ±2 window
	)
	for i := range candidates {
		diff := candidates[i].Number - target.Number
		if diff < 0 {
			diff = -diff
		}
		if diff <= 2 && diff < bestDiff {
			closest = &candidates[i]
			bestDiff = diff
		}
	}
	return closest
}

// flatNumber converts a (season, number) pair to a flat episode number by
// summing the per-season maximum episode numbers of all prior seasons.
func flatNumber(candidates []models.EpisodeRecord, season, number int) (int, bool) {
	maxBySeason := make(map[int]int)
	for _, c := range candidates {
		if c.SeasonNumber == nil {
			continue
		}
		if c.Number > maxBySeason[*c.SeasonNumber] {
			maxBySeason[*c.SeasonNumber] = c.Number
		}
	}
	if len(maxBySeason) == 0 {
		return 0, false
	}

	offset := 0
	for s := 1; s < season; s++ {
		count, ok := maxBySeason[s]
		if !ok {
			return 0, false
		}
		offset += count
	}
	return offset + number, true
}
