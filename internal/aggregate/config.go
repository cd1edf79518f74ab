// Metafuse - Cross-Provider Media Metadata Aggregation
// Copyright 2026 Kai Matsuda (kaimatsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaimatsu/metafuse

// Package aggregate merges per-provider metadata (episodes, chapters, images,
// cast, recommendations, full details) into one coherent record under
// explicit provider-priority and completeness rules. No single provider's
// failure or timeout aborts an aggregation; the worst case for a failing
// provider is an empty contribution.
package aggregate

import (
	"context"
	"time"

	"github.com/kaimatsu/metafuse/internal/executor"
	"github.com/kaimatsu/metafuse/internal/models"
)

const (
	// episodeFetchTimeout bounds matched-provider episode fetches. Large
	// series make these the slowest calls in the system.
	episodeFetchTimeout = 60 * time.Second

	// detailFetchTimeout bounds chapter and detail fetches.
	detailFetchTimeout = 10 * time.Second
)

// PriorityConfig is the immutable provider-priority configuration supplied at
// construction. Order matters: earlier providers win when both qualify.
type PriorityConfig struct {
	// ThumbnailPriority orders providers for per-episode thumbnail selection.
	ThumbnailPriority []models.ProviderID

	// ImagePriority orders providers for cover/banner fallback.
	ImagePriority []models.ProviderID

	// ChapterPriority orders providers preferred as chapter base when the
	// primary has no chapters.
	ChapterPriority []models.ProviderID

	// SeasonAuthority is the provider whose per-episode season numbers are
	// trusted for season-boundary inference.
	SeasonAuthority models.ProviderID
}

// DefaultPriorityConfig reflects typical provider data quality: TMDB has the
// best episode stills, AniList the best cover art, MangaDex the best chapter
// data.
func DefaultPriorityConfig() PriorityConfig {
	return PriorityConfig{
		ThumbnailPriority: []models.ProviderID{
			models.ProviderTMDB,
			models.ProviderSimkl,
			models.ProviderKitsu,
			models.ProviderAniList,
			models.ProviderJikan,
		},
		ImagePriority: []models.ProviderID{
			models.ProviderAniList,
			models.ProviderKitsu,
			models.ProviderTMDB,
			models.ProviderJikan,
		},
		ChapterPriority: []models.ProviderID{
			models.ProviderMangaDex,
			models.ProviderAniList,
		},
		SeasonAuthority: models.ProviderTMDB,
	}
}

// EpisodeFetcher retrieves one provider's episode list for a media ID.
// Must be safe to call concurrently for distinct providers.
type EpisodeFetcher func(ctx context.Context, mediaID string, provider models.ProviderID) ([]models.EpisodeRecord, error)

// ChapterFetcher retrieves one provider's chapter list.
type ChapterFetcher func(ctx context.Context, mediaID string, provider models.ProviderID) ([]models.ChapterRecord, error)

// DetailsFetcher retrieves one provider's full detail record.
type DetailsFetcher func(ctx context.Context, mediaID string, provider models.ProviderID) (*models.MediaDetails, error)

// SeasonInfo describes one season from the authoritative season source.
type SeasonInfo struct {
	EpisodeCount int
	Name         string
}

// SeasonMetadataFunc looks up per-season metadata for a TV id. Optional;
// consulted opportunistically during season inference.
type SeasonMetadataFunc func(ctx context.Context, tvID string) (map[int]SeasonInfo, error)

// Primary identifies the record the aggregation is anchored on.
type Primary struct {
	Provider models.ProviderID
	MediaID  string
	Title    string
}

// Aggregator merges multi-provider data. Construct once and share; all
// methods are safe for concurrent use.
type Aggregator struct {
	exec       *executor.Executor
	priorities PriorityConfig
	seasonMeta SeasonMetadataFunc
	policyFor  func(models.ProviderID) executor.Policy
}

// Option customizes an Aggregator.
type Option func(*Aggregator)

// WithSeasonMetadata attaches the optional season metadata lookup.
func WithSeasonMetadata(fn SeasonMetadataFunc) Option {
	return func(a *Aggregator) { a.seasonMeta = fn }
}

// WithPolicyFor supplies per-provider retry policies.
func WithPolicyFor(fn func(models.ProviderID) executor.Policy) Option {
	return func(a *Aggregator) { a.policyFor = fn }
}

// New creates an Aggregator with the given priorities.
func New(exec *executor.Executor, priorities PriorityConfig, opts ...Option) *Aggregator {
	a := &Aggregator{
		exec:       exec,
		priorities: priorities,
		policyFor:  func(models.ProviderID) executor.Policy { return executor.DefaultPolicy() },
	}
	for _, apply := range opts {
		apply(a)
	}
	return a
}

// orderedProviders returns the matched providers in the stable known-provider
// order, so merge passes iterate deterministically.
func orderedProviders(matches map[models.ProviderID]models.ProviderMatch) []models.ProviderID {
	var out []models.ProviderID
	for _, id := range models.KnownProviders() {
		if _, ok := matches[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
