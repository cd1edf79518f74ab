// Metafuse - Cross-Provider Media Metadata Aggregation
// Copyright 2026 Kai Matsuda (kaimatsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaimatsu/metafuse

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Providers.AniList.Enabled)
	assert.False(t, cfg.Providers.TMDB.Enabled, "tmdb needs an API key, off by default")
	assert.InDelta(t, 0.8, cfg.Match.MinConfidence, 1e-9)
	assert.Equal(t, int64(10<<20), cfg.Cache.MaxBytes)
	assert.Equal(t, 7*24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "default", cfg.Retry.Preset)
	assert.Equal(t, "0.0.0.0:8970", cfg.Server.Addr())
	assert.Equal(t, []string{"mangadex", "anilist"}, cfg.Aggregate.ChapterPriority)
	assert.Equal(t, "tmdb", cfg.Aggregate.SeasonAuthority)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("METAFUSE_LOGGING_LEVEL", "debug")
	t.Setenv("METAFUSE_SERVER_PORT", "9000")
	t.Setenv("METAFUSE_PROVIDERS_TMDB_ENABLED", "true")
	t.Setenv("METAFUSE_PROVIDERS_TMDB_API_KEY", "secret")
	t.Setenv("METAFUSE_AGGREGATE_CHAPTER_PRIORITY", "anilist, mangadex")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.True(t, cfg.Providers.TMDB.Enabled)
	assert.Equal(t, "secret", cfg.Providers.TMDB.APIKey)
	assert.Equal(t, []string{"anilist", "mangadex"}, cfg.Aggregate.ChapterPriority)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 7777
logging:
  level: warn
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestEnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 7777\n"), 0o600))
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("METAFUSE_SERVER_PORT", "8888")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8888, cfg.Server.Port)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"confidence above one", func(c *Config) { c.Match.MinConfidence = 1.2 }},
		{"zero cache budget", func(c *Config) { c.Cache.MaxBytes = 0 }},
		{"unknown retry preset", func(c *Config) { c.Retry.Preset = "frantic" }},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"unknown priority provider", func(c *Config) { c.Aggregate.ImagePriority = []string{"netflix"} }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"tmdb enabled without key", func(c *Config) { c.Providers.TMDB.Enabled = true }},
		{"nothing enabled", func(c *Config) {
			c.Providers = ProvidersConfig{}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestEnvTransform(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"METAFUSE_SERVER_PORT", "server.port"},
		{"METAFUSE_SERVER_RATE_LIMIT_REQS", "server.rate_limit_reqs"},
		{"METAFUSE_CACHE_MAX_BYTES", "cache.max_bytes"},
		{"METAFUSE_PROVIDERS_TMDB_API_KEY", "providers.tmdb.api_key"},
		{"METAFUSE_AGGREGATE_SEASON_AUTHORITY", "aggregate.season_authority"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, envTransform(tt.in), tt.in)
	}
}
