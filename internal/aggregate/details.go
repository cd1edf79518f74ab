// Metafuse - Cross-Provider Media Metadata Aggregation
// Copyright 2026 Kai Matsuda (kaimatsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaimatsu/metafuse

package aggregate

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/kaimatsu/metafuse/internal/executor"
	"github.com/kaimatsu/metafuse/internal/logging"
	"github.com/kaimatsu/metafuse/internal/metrics"
	"github.com/kaimatsu/metafuse/internal/models"
)

// DetailsRequest bundles the inputs to AggregateMediaDetails.
type DetailsRequest struct {
	Primary Primary
	Matches map[models.ProviderID]models.ProviderMatch
}

// AggregateMediaDetails fetches every provider's detail record in parallel
// and merges them into one. A failed or timed-out fetch contributes a
// placeholder so the provider still appears in attribution as attempted.
// The primary provider's record anchors identity fields; statistics take
// the maximum across providers, dates the widest range, and list fields a
// deduplicated union.
func (a *Aggregator) AggregateMediaDetails(ctx context.Context, req DetailsRequest, fetch DetailsFetcher) *models.AggregatedDetails {
	start := time.Now()
	defer func() {
		metrics.AggregationDuration.WithLabelValues("details").Observe(time.Since(start).Seconds())
	}()

	records := a.fetchDetails(ctx, req, fetch)
	return a.mergeDetails(req, records)
}

// fetchDetails fans out per-provider detail fetches with fan-out isolation.
// Failures yield a PlaceholderDetails entry rather than dropping the provider.
func (a *Aggregator) fetchDetails(ctx context.Context, req DetailsRequest, fetch DetailsFetcher) map[models.ProviderID]*models.MediaDetails {
	var (
		mu      sync.Mutex
		records = make(map[models.ProviderID]*models.MediaDetails)
		wg      sync.WaitGroup
	)

	fetchOne := func(provider models.ProviderID, mediaID, title string) {
		defer wg.Done()

		fetchCtx, cancel := context.WithTimeout(ctx, detailFetchTimeout)
		defer cancel()

		details, err := executor.Execute(fetchCtx, a.exec,
			func(ctx context.Context) (*models.MediaDetails, error) {
				return fetch(ctx, mediaID, provider)
			},
			executor.WithProvider(provider),
			executor.WithName("details"),
			executor.WithPolicy(a.policyFor(provider)),
		)
		if err != nil || details == nil {
			if err != nil {
				logging.Ctx(ctx).Warn().Str("provider", provider.String()).Err(err).Msg("detail fetch failed, using placeholder")
			}
			details = models.PlaceholderDetails(provider, mediaID, title)
		}
		if details.Provider == "" {
			details.Provider = provider
		}

		mu.Lock()
		records[provider] = details
		mu.Unlock()
	}

	wg.Add(1)
	go fetchOne(req.Primary.Provider, req.Primary.MediaID, req.Primary.Title)

	for provider, match := range req.Matches {
		if provider.Equal(req.Primary.Provider) {
			continue
		}
		wg.Add(1)
		go fetchOne(provider, match.ProviderMediaID, match.MatchedTitle)
	}

	wg.Wait()
	return records
}

func (a *Aggregator) mergeDetails(req DetailsRequest, records map[models.ProviderID]*models.MediaDetails) *models.AggregatedDetails {
	primary := records[req.Primary.Provider]
	if primary == nil {
		primary = models.PlaceholderDetails(req.Primary.Provider, req.Primary.MediaID, req.Primary.Title)
	}

	out := &models.AggregatedDetails{MediaDetails: *primary}
	out.MatchConfidences = make(map[models.ProviderID]float64, len(req.Matches))
	out.MatchConfidences[req.Primary.Provider] = 1.0

	// Stable iteration order: primary first, then known-provider order.
	others := make([]models.ProviderID, 0, len(req.Matches))
	for _, id := range orderedProviders(req.Matches) {
		if id == req.Primary.Provider {
			continue
		}
		others = append(others, id)
	}

	out.ContributingProviders = append([]models.ProviderID{req.Primary.Provider}, others...)
	for _, id := range others {
		out.MatchConfidences[id] = req.Matches[id].Confidence
	}

	allProviders := append([]models.ProviderID{req.Primary.Provider}, others...)

	// Statistics: each field independently takes the maximum across providers.
	for _, id := range others {
		r := records[id]
		mergeMaxFloat(out, "rating", &out.Rating, r.Rating, id)
		mergeMaxFloat(out, "average_score", &out.AverageScore, r.AverageScore, id)
		mergeMaxFloat(out, "mean_score", &out.MeanScore, r.MeanScore, id)
		mergeMaxInt(out, "popularity", &out.Popularity, r.Popularity, id)
		mergeMaxInt(out, "favorites", &out.Favorites, r.Favorites, id)
		mergeMaxInt(out, "episodes", &out.Episodes, r.Episodes, id)
		mergeMaxInt(out, "chapters", &out.Chapters, r.Chapters, id)
		mergeMaxInt(out, "volumes", &out.Volumes, r.Volumes, id)
		mergeMaxInt(out, "duration_minutes", &out.DurationMinutes, r.DurationMinutes, id)
	}

	// Dates: earliest start, latest end.
	for _, id := range others {
		r := records[id]
		if r.StartDate != nil && (out.StartDate == nil || r.StartDate.Before(*out.StartDate)) {
			out.StartDate = r.StartDate
			out.Attribute("start_date", id)
		}
		if r.EndDate != nil && (out.EndDate == nil || r.EndDate.After(*out.EndDate)) {
			out.EndDate = r.EndDate
			out.Attribute("end_date", id)
		}
	}

	// Genres and tags: case-insensitive union preserving first-seen order.
	out.Genres = unionStrings(allProviders, records, func(r *models.MediaDetails) []string { return r.Genres })
	out.Tags = unionStrings(allProviders, records, func(r *models.MediaDetails) []string { return r.Tags })

	// Description: primary wins when present, else the first non-empty in
	// image-priority order.
	if out.Description == "" {
		for _, id := range a.priorities.ImagePriority {
			if r, ok := records[id]; ok && r.Description != "" {
				out.Description = r.Description
				out.Attribute("description", id)
				break
			}
		}
	}

	// Images follow the same primary-else-priority rule.
	alternatives := make(map[models.ProviderID]ImageSet, len(others))
	for _, id := range others {
		alternatives[id] = ImageSet{CoverImage: records[id].CoverImage, BannerImage: records[id].BannerImage}
	}
	images := a.MergeImages(req.Primary.Provider, ImageSet{CoverImage: primary.CoverImage, BannerImage: primary.BannerImage}, alternatives)
	out.CoverImage = images.CoverImage
	out.BannerImage = images.BannerImage
	if images.CoverImage != "" {
		out.Attribute("cover_image", images.CoverAttribution)
	}
	if images.BannerImage != "" {
		out.Attribute("banner_image", images.BannerAttribution)
	}

	// People and recommendations: deduplicated unions keeping the most
	// complete entries.
	out.Characters = MergeCharacters(collect(allProviders, records, func(r *models.MediaDetails) []models.Character { return r.Characters })...)
	out.Staff = MergeStaff(collect(allProviders, records, func(r *models.MediaDetails) []models.StaffMember { return r.Staff })...)
	out.Recommendations = MergeRecommendations(collect(allProviders, records, func(r *models.MediaDetails) []models.Recommendation { return r.Recommendations })...)

	out.Studios = mergeStudios(allProviders, records)
	out.Relations = mergeRelations(allProviders, records)
	out.Trailer = mergeTrailer(out, allProviders, records)

	return out
}

func mergeMaxFloat(out *models.AggregatedDetails, field string, dst *float64, candidate float64, provider models.ProviderID) {
	if candidate > *dst {
		*dst = candidate
		out.Attribute(field, provider)
	}
}

func mergeMaxInt(out *models.AggregatedDetails, field string, dst *int, candidate int, provider models.ProviderID) {
	if candidate > *dst {
		*dst = candidate
		out.Attribute(field, provider)
	}
}

// unionStrings merges string lists across providers, deduplicating
// case-insensitively while preserving first-seen order and casing.
func unionStrings(providers []models.ProviderID, records map[models.ProviderID]*models.MediaDetails, field func(*models.MediaDetails) []string) []string {
	var (
		out  []string
		seen = make(map[string]bool)
	)
	for _, id := range providers {
		r, ok := records[id]
		if !ok {
			continue
		}
		for _, s := range field(r) {
			key := strings.ToLower(strings.TrimSpace(s))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, s)
		}
	}
	return out
}

func collect[T any](providers []models.ProviderID, records map[models.ProviderID]*models.MediaDetails, field func(*models.MediaDetails) []T) [][]T {
	out := make([][]T, 0, len(providers))
	for _, id := range providers {
		if r, ok := records[id]; ok {
			out = append(out, field(r))
		}
	}
	return out
}

// mergeStudios deduplicates by lowercased name. A main-studio credit from
// any provider upgrades a non-main entry.
func mergeStudios(providers []models.ProviderID, records map[models.ProviderID]*models.MediaDetails) []models.Studio {
	var (
		order []string
		best  = make(map[string]models.Studio)
	)
	for _, id := range providers {
		r, ok := records[id]
		if !ok {
			continue
		}
		for _, s := range r.Studios {
			key := strings.ToLower(strings.TrimSpace(s.Name))
			if key == "" {
				continue
			}
			existing, seen := best[key]
			if !seen {
				order = append(order, key)
				best[key] = s
				continue
			}
			if s.IsMain && !existing.IsMain {
				best[key] = s
			}
		}
	}

	merged := make([]models.Studio, 0, len(order))
	for _, key := range order {
		merged = append(merged, best[key])
	}
	return merged
}

// mergeRelations deduplicates by provider-qualified media ID, falling back
// to normalized title when an ID is absent.
func mergeRelations(providers []models.ProviderID, records map[models.ProviderID]*models.MediaDetails) []models.Relation {
	var (
		out  []models.Relation
		seen = make(map[string]bool)
	)
	for _, id := range providers {
		r, ok := records[id]
		if !ok {
			continue
		}
		for _, rel := range r.Relations {
			key := rel.Provider.String() + ":" + rel.MediaID
			if rel.MediaID == "" {
				key = "title:" + strings.ToLower(strings.TrimSpace(rel.Title))
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, rel)
		}
	}
	return out
}

// mergeTrailer keeps the primary's trailer when it is a YouTube one;
// otherwise the first YouTube trailer from any provider wins, then the
// primary's non-YouTube trailer as a last resort.
func mergeTrailer(out *models.AggregatedDetails, providers []models.ProviderID, records map[models.ProviderID]*models.MediaDetails) *models.Trailer {
	isYouTube := func(t *models.Trailer) bool {
		return t != nil && strings.EqualFold(t.Site, "youtube")
	}

	primary := records[providers[0]]
	if primary != nil && isYouTube(primary.Trailer) {
		return primary.Trailer
	}

	for _, id := range providers {
		r, ok := records[id]
		if !ok {
			continue
		}
		if isYouTube(r.Trailer) {
			out.Attribute("trailer", id)
			return r.Trailer
		}
	}

	if primary != nil {
		return primary.Trailer
	}
	return nil
}
