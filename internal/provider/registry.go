// Metafuse - Cross-Provider Media Metadata Aggregation
// Copyright 2026 Kai Matsuda (kaimatsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaimatsu/metafuse

// Package provider defines the capability interfaces catalog clients
// implement and the registry that maps provider IDs to them. The registry is
// assembled once at startup and injected; there are no package-level
// singletons.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/kaimatsu/metafuse/internal/aggregate"
	"github.com/kaimatsu/metafuse/internal/executor"
	"github.com/kaimatsu/metafuse/internal/models"
)

// ErrNotRegistered is returned when a provider ID has no registered client.
var ErrNotRegistered = errors.New("provider not registered")

// Searcher finds candidate records for a title query.
type Searcher interface {
	Search(ctx context.Context, query string, mediaType models.MediaType) ([]models.MediaRecord, error)
}

// EpisodeLister retrieves the full episode list for a media ID.
type EpisodeLister interface {
	Episodes(ctx context.Context, mediaID string) ([]models.EpisodeRecord, error)
}

// ChapterLister retrieves the full chapter list for a media ID.
type ChapterLister interface {
	Chapters(ctx context.Context, mediaID string) ([]models.ChapterRecord, error)
}

// DetailsGetter retrieves the full detail record for a media ID.
type DetailsGetter interface {
	Details(ctx context.Context, mediaID string) (*models.MediaDetails, error)
}

// SeasonMetadataGetter retrieves per-season metadata for a TV id. Only the
// season-authority provider needs to implement it.
type SeasonMetadataGetter interface {
	SeasonMetadata(ctx context.Context, tvID string) (map[int]aggregate.SeasonInfo, error)
}

// Client is the union surface a catalog client may offer. A client
// implements the subset its provider supports; capability checks happen at
// call time via type assertion.
type Client interface {
	ID() models.ProviderID
}

// Registry maps provider IDs to their clients. Immutable after construction
// and safe for concurrent use.
type Registry struct {
	clients  map[models.ProviderID]Client
	policies map[models.ProviderID]executor.Policy
}

// NewRegistry builds a registry from the given clients.
func NewRegistry(clients ...Client) *Registry {
	r := &Registry{
		clients:  make(map[models.ProviderID]Client, len(clients)),
		policies: make(map[models.ProviderID]executor.Policy),
	}
	for _, c := range clients {
		r.clients[c.ID()] = c
		r.policies[c.ID()] = defaultPolicyFor(c.ID())
	}
	return r
}

// defaultPolicyFor encodes per-provider rate expectations. Jikan is an
// unauthenticated shared proxy over MAL and throttles hard, so it gets the
// gentle schedule; TMDB with an API key tolerates the aggressive one.
func defaultPolicyFor(id models.ProviderID) executor.Policy {
	switch id {
	case models.ProviderJikan, models.ProviderMangaDex:
		return executor.ConservativePolicy()
	case models.ProviderTMDB:
		return executor.AggressivePolicy()
	default:
		return executor.DefaultPolicy()
	}
}

// Policy returns the retry policy for a provider.
func (r *Registry) Policy(id models.ProviderID) executor.Policy {
	if p, ok := r.policies[id]; ok {
		return p
	}
	return executor.DefaultPolicy()
}

// IDs returns the registered provider IDs in stable known-provider order.
func (r *Registry) IDs() []models.ProviderID {
	var out []models.ProviderID
	for _, id := range models.KnownProviders() {
		if _, ok := r.clients[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Searcher returns the search capability for a provider, or an error when
// the provider is absent or cannot search.
func (r *Registry) Searcher(id models.ProviderID) (Searcher, error) {
	c, ok := r.clients[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, id)
	}
	s, ok := c.(Searcher)
	if !ok {
		return nil, fmt.Errorf("provider %s does not support search", id)
	}
	return s, nil
}

// SearchFunc returns a dispatch closure shaped for the matcher's fan-out:
// it routes each search to the addressed provider's client.
func (r *Registry) SearchFunc() func(ctx context.Context, query string, id models.ProviderID, mediaType models.MediaType) ([]models.MediaRecord, error) {
	return func(ctx context.Context, query string, id models.ProviderID, mediaType models.MediaType) ([]models.MediaRecord, error) {
		s, err := r.Searcher(id)
		if err != nil {
			return nil, err
		}
		return s.Search(ctx, query, mediaType)
	}
}

// EpisodeFetcher adapts the registry to the aggregator's episode fetch
// signature. Providers without episode support report an error, which the
// aggregator treats as an empty contribution.
func (r *Registry) EpisodeFetcher() aggregate.EpisodeFetcher {
	return func(ctx context.Context, mediaID string, id models.ProviderID) ([]models.EpisodeRecord, error) {
		c, ok := r.clients[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotRegistered, id)
		}
		l, ok := c.(EpisodeLister)
		if !ok {
			return nil, fmt.Errorf("provider %s does not list episodes", id)
		}
		return l.Episodes(ctx, mediaID)
	}
}

// ChapterFetcher adapts the registry to the aggregator's chapter fetch
// signature.
func (r *Registry) ChapterFetcher() aggregate.ChapterFetcher {
	return func(ctx context.Context, mediaID string, id models.ProviderID) ([]models.ChapterRecord, error) {
		c, ok := r.clients[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotRegistered, id)
		}
		l, ok := c.(ChapterLister)
		if !ok {
			return nil, fmt.Errorf("provider %s does not list chapters", id)
		}
		return l.Chapters(ctx, mediaID)
	}
}

// DetailsFetcher adapts the registry to the aggregator's details fetch
// signature.
func (r *Registry) DetailsFetcher() aggregate.DetailsFetcher {
	return func(ctx context.Context, mediaID string, id models.ProviderID) (*models.MediaDetails, error) {
		c, ok := r.clients[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotRegistered, id)
		}
		g, ok := c.(DetailsGetter)
		if !ok {
			return nil, fmt.Errorf("provider %s does not serve details", id)
		}
		return g.Details(ctx, mediaID)
	}
}

// SeasonMetadata returns the season metadata lookup backed by the given
// provider, or nil when that provider cannot serve one.
func (r *Registry) SeasonMetadata(id models.ProviderID) aggregate.SeasonMetadataFunc {
	c, ok := r.clients[id]
	if !ok {
		return nil
	}
	g, ok := c.(SeasonMetadataGetter)
	if !ok {
		return nil
	}
	return g.SeasonMetadata
}
