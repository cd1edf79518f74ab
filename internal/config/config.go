// Metafuse - Cross-Provider Media Metadata Aggregation
// Copyright 2026 Kai Matsuda (kaimatsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaimatsu/metafuse

// Package config loads layered application configuration: built-in defaults,
// then an optional YAML file, then METAFUSE_-prefixed environment variables.
// Config is immutable after Load and safe for concurrent reads.
package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Providers ProvidersConfig `koanf:"providers"`
	Match     MatchConfig     `koanf:"match"`
	Aggregate AggregateConfig `koanf:"aggregate"`
	Cache     CacheConfig     `koanf:"cache"`
	Retry     RetryConfig     `koanf:"retry"`
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ProviderConfig holds one catalog provider's connection settings.
type ProviderConfig struct {
	Enabled bool          `koanf:"enabled"`
	BaseURL string        `koanf:"base_url" validate:"omitempty,url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

// ProvidersConfig groups the per-provider settings. TMDB requires an API
// key; the others are open APIs.
type ProvidersConfig struct {
	AniList  ProviderConfig `koanf:"anilist"`
	Jikan    ProviderConfig `koanf:"jikan"`
	Kitsu    ProviderConfig `koanf:"kitsu"`
	TMDB     ProviderConfig `koanf:"tmdb"`
	MangaDex ProviderConfig `koanf:"mangadex"`
	Simkl    ProviderConfig `koanf:"simkl"`
}

// MatchConfig tunes cross-provider matching.
type MatchConfig struct {
	// MinConfidence is the acceptance threshold for a match.
	MinConfidence float64 `koanf:"min_confidence" validate:"gte=0,lte=1"`
}

// AggregateConfig holds the provider priority lists consumed by the
// aggregator. Values are provider IDs; order matters.
type AggregateConfig struct {
	ThumbnailPriority []string `koanf:"thumbnail_priority" validate:"dive,oneof=anilist jikan kitsu tmdb mangadex simkl"`
	ImagePriority     []string `koanf:"image_priority" validate:"dive,oneof=anilist jikan kitsu tmdb mangadex simkl"`
	ChapterPriority   []string `koanf:"chapter_priority" validate:"dive,oneof=anilist jikan kitsu tmdb mangadex simkl"`
	SeasonAuthority   string   `koanf:"season_authority" validate:"omitempty,oneof=anilist jikan kitsu tmdb mangadex simkl"`
}

// CacheConfig holds the persistent mapping-cache settings.
type CacheConfig struct {
	// Path is the Badger database directory. Empty selects the in-memory
	// store, mainly for tests and ephemeral deployments.
	Path     string        `koanf:"path"`
	MaxBytes int64         `koanf:"max_bytes" validate:"gt=0"`
	TTL      time.Duration `koanf:"ttl" validate:"gt=0"`
}

// RetryConfig selects the retry preset applied to provider calls.
type RetryConfig struct {
	// Preset is one of: default, aggressive, conservative.
	Preset string `koanf:"preset" validate:"oneof=default aggressive conservative"`
	// BreakersEnabled wires per-provider circuit breakers into the executor.
	BreakersEnabled bool `koanf:"breakers_enabled"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"gt=0,lte=65535"`
	Timeout         time.Duration `koanf:"timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	// RateLimitReqs requests per RateLimitWindow per client IP; 0 disables.
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"gte=0"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// defaultConfig returns a Config with all defaults applied. Defaults are
// loaded first, then overridden by the config file and environment.
func defaultConfig() *Config {
	return &Config{
		Providers: ProvidersConfig{
			AniList:  ProviderConfig{Enabled: true, BaseURL: "https://graphql.anilist.co", Timeout: 15 * time.Second},
			Jikan:    ProviderConfig{Enabled: true, BaseURL: "https://api.jikan.moe/v4", Timeout: 15 * time.Second},
			Kitsu:    ProviderConfig{Enabled: true, BaseURL: "https://kitsu.io/api/edge", Timeout: 15 * time.Second},
			TMDB:     ProviderConfig{Enabled: false, BaseURL: "https://api.themoviedb.org/3", Timeout: 15 * time.Second},
			MangaDex: ProviderConfig{Enabled: true, BaseURL: "https://api.mangadex.org", Timeout: 15 * time.Second},
			Simkl:    ProviderConfig{Enabled: false, BaseURL: "https://api.simkl.com", Timeout: 15 * time.Second},
		},
		Match: MatchConfig{
			MinConfidence: 0.8,
		},
		Aggregate: AggregateConfig{
			ThumbnailPriority: []string{"tmdb", "simkl", "kitsu", "anilist", "jikan"},
			ImagePriority:     []string{"anilist", "kitsu", "tmdb", "jikan"},
			ChapterPriority:   []string{"mangadex", "anilist"},
			SeasonAuthority:   "tmdb",
		},
		Cache: CacheConfig{
			Path:     "/data/metafuse/mappings",
			MaxBytes: 10 << 20,
			TTL:      7 * 24 * time.Hour,
		},
		Retry: RetryConfig{
			Preset:          "default",
			BreakersEnabled: true,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8970,
			Timeout:         75 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
