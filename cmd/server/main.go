// Metafuse - Cross-Provider Media Metadata Aggregation
// Copyright 2026 Kai Matsuda (kaimatsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaimatsu/metafuse

// Package main is the entry point for the Metafuse server.
//
// Metafuse resolves a media record from one catalog provider (AniList, Jikan,
// Kitsu, TMDB, MangaDex, Simkl) against the others and merges their metadata
// into one aggregated record: episode lists with the best thumbnails, chapter
// lists with dates and page counts, cover art, cast, staff, recommendations
// and full details with per-field source attribution.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: defaults, optional YAML file, METAFUSE_ env vars (Koanf v2)
//  2. Mapping cache: BadgerDB-backed (or in-memory) cross-provider ID mappings
//  3. Executor: shared retry/rate-limit state, optional circuit breakers
//  4. Provider clients: one HTTP client per enabled catalog provider
//  5. Matcher and aggregator over the provider registry
//  6. HTTP server: REST API with health, metrics and aggregation endpoints
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority
// wins):
//   - Environment variables (METAFUSE_ prefix, e.g. METAFUSE_SERVER_PORT)
//   - Config file (config.yaml, or the path in METAFUSE_CONFIG)
//   - Built-in defaults
//
// TMDB and Simkl are disabled by default; TMDB requires an API key:
//
//	export METAFUSE_PROVIDERS_TMDB_ENABLED=true
//	export METAFUSE_PROVIDERS_TMDB_API_KEY=your-tmdb-key
//	./metafuse
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM:
//   - Stops accepting new connections
//   - Waits for in-flight requests to complete (shutdown timeout)
//   - Closes the mapping cache database
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/kaimatsu/metafuse/internal/aggregate"
	"github.com/kaimatsu/metafuse/internal/api"
	"github.com/kaimatsu/metafuse/internal/config"
	"github.com/kaimatsu/metafuse/internal/executor"
	"github.com/kaimatsu/metafuse/internal/logging"
	"github.com/kaimatsu/metafuse/internal/mapcache"
	"github.com/kaimatsu/metafuse/internal/match"
	"github.com/kaimatsu/metafuse/internal/models"
	"github.com/kaimatsu/metafuse/internal/provider"
	"github.com/kaimatsu/metafuse/internal/providers/anilist"
	"github.com/kaimatsu/metafuse/internal/providers/jikan"
	"github.com/kaimatsu/metafuse/internal/providers/kitsu"
	"github.com/kaimatsu/metafuse/internal/providers/mangadex"
	"github.com/kaimatsu/metafuse/internal/providers/tmdb"
)

func main() {
	// Load configuration first to get logging settings.
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	logging.Info().Msg("Starting Metafuse")

	// Mapping cache: Badger on disk, or in-memory when no path is set.
	var store mapcache.Store
	if cfg.Cache.Path == "" {
		logging.Info().Msg("Mapping cache path empty, using in-memory store")
		store = mapcache.NewMemoryStore()
	} else {
		badgerStore, db, err := mapcache.OpenBadgerStore(cfg.Cache.Path)
		if err != nil {
			logging.Fatal().Err(err).Str("path", cfg.Cache.Path).Msg("Failed to open mapping cache")
		}
		defer func() {
			if err := db.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing mapping cache")
			}
		}()
		store = badgerStore
		logging.Info().Str("path", cfg.Cache.Path).Msg("Mapping cache opened")
	}
	cache := mapcache.New(store,
		mapcache.WithTTL(cfg.Cache.TTL),
		mapcache.WithMaxBytes(cfg.Cache.MaxBytes),
	)

	exec := executor.New()
	if cfg.Retry.BreakersEnabled {
		exec = executor.NewWithBreakers()
	}

	reg := provider.NewRegistry(buildClients(&cfg.Providers)...)
	if len(reg.IDs()) == 0 {
		logging.Fatal().Msg("No providers enabled")
	}
	logging.Info().Interface("providers", reg.IDs()).Msg("Provider registry assembled")

	policyFor := policySelector(cfg.Retry.Preset, reg)

	matcher := match.New(exec, reg.SearchFunc(),
		match.WithCache(cache),
		match.WithProviders(reg.IDs()),
		match.WithThreshold(cfg.Match.MinConfidence),
		match.WithPolicyFor(policyFor),
	)

	priorities := buildPriorities(&cfg.Aggregate)
	aggOpts := []aggregate.Option{aggregate.WithPolicyFor(policyFor)}
	if fn := reg.SeasonMetadata(priorities.SeasonAuthority); fn != nil {
		aggOpts = append(aggOpts, aggregate.WithSeasonMetadata(fn))
	}
	aggregator := aggregate.New(exec, priorities, aggOpts...)

	router := api.NewRouter(matcher, aggregator, reg, api.RouterConfig{
		RateLimitReqs:   cfg.Server.RateLimitReqs,
		RateLimitWindow: cfg.Server.RateLimitWindow,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       2 * cfg.Server.Timeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received")
	case err := <-errCh:
		logging.Error().Err(err).Msg("HTTP server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("Graceful shutdown failed")
	}
	logging.Info().Msg("Metafuse stopped")
}

// buildClients constructs one client per enabled provider. Simkl has no
// client yet and is skipped even when enabled.
func buildClients(p *config.ProvidersConfig) []provider.Client {
	var clients []provider.Client
	if p.AniList.Enabled {
		clients = append(clients, anilist.New(
			anilist.WithBaseURL(p.AniList.BaseURL),
			anilist.WithHTTPClient(&http.Client{Timeout: p.AniList.Timeout}),
		))
	}
	if p.Jikan.Enabled {
		clients = append(clients, jikan.New(
			jikan.WithBaseURL(p.Jikan.BaseURL),
			jikan.WithHTTPClient(&http.Client{Timeout: p.Jikan.Timeout}),
		))
	}
	if p.Kitsu.Enabled {
		clients = append(clients, kitsu.New(
			kitsu.WithBaseURL(p.Kitsu.BaseURL),
			kitsu.WithHTTPClient(&http.Client{Timeout: p.Kitsu.Timeout}),
		))
	}
	if p.TMDB.Enabled {
		clients = append(clients, tmdb.New(p.TMDB.APIKey,
			tmdb.WithBaseURL(p.TMDB.BaseURL),
			tmdb.WithHTTPClient(&http.Client{Timeout: p.TMDB.Timeout}),
		))
	}
	if p.MangaDex.Enabled {
		clients = append(clients, mangadex.New(
			mangadex.WithBaseURL(p.MangaDex.BaseURL),
			mangadex.WithHTTPClient(&http.Client{Timeout: p.MangaDex.Timeout}),
		))
	}
	if p.Simkl.Enabled {
		logging.Warn().Msg("Simkl is enabled in config but has no client implementation; skipping")
	}
	return clients
}

// policySelector maps the retry preset onto per-provider policies. The
// default preset keeps the registry's per-provider tiers; an explicit
// aggressive or conservative preset applies uniformly.
func policySelector(preset string, reg *provider.Registry) func(models.ProviderID) executor.Policy {
	switch preset {
	case "aggressive":
		return func(models.ProviderID) executor.Policy { return executor.AggressivePolicy() }
	case "conservative":
		return func(models.ProviderID) executor.Policy { return executor.ConservativePolicy() }
	default:
		return reg.Policy
	}
}

func buildPriorities(a *config.AggregateConfig) aggregate.PriorityConfig {
	p := aggregate.DefaultPriorityConfig()
	if ids := parseProviderList(a.ThumbnailPriority); len(ids) > 0 {
		p.ThumbnailPriority = ids
	}
	if ids := parseProviderList(a.ImagePriority); len(ids) > 0 {
		p.ImagePriority = ids
	}
	if ids := parseProviderList(a.ChapterPriority); len(ids) > 0 {
		p.ChapterPriority = ids
	}
	if a.SeasonAuthority != "" {
		if id, err := models.ParseProviderID(a.SeasonAuthority); err == nil {
			p.SeasonAuthority = id
		}
	}
	return p
}

// parseProviderList converts config provider names to IDs. Validation has
// already rejected unknown names so parse failures only guard against
// programmer error.
func parseProviderList(names []string) []models.ProviderID {
	var ids []models.ProviderID
	for _, name := range names {
		id, err := models.ParseProviderID(name)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
