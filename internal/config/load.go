// Metafuse - Cross-Provider Media Metadata Aggregation
// Copyright 2026 Kai Matsuda (kaimatsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaimatsu/metafuse

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, first hit wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/metafuse/config.yaml",
	"/etc/metafuse/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "METAFUSE_CONFIG"

// envPrefix namespaces the environment variables consumed by Load.
// METAFUSE_CACHE_MAX_BYTES -> cache.max_bytes
// METAFUSE_PROVIDERS_TMDB_API_KEY -> providers.tmdb.api_key
const envPrefix = "METAFUSE_"

// sliceConfigPaths are the keys parsed from comma-separated env strings.
var sliceConfigPaths = []string{
	"aggregate.thumbnail_priority",
	"aggregate.image_priority",
	"aggregate.chapter_priority",
}

// Load assembles the configuration from defaults, then an optional YAML
// file, then environment variables, and validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks struct tags plus the cross-field rules that tags cannot
// express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("field %s failed rule %q", first.Namespace(), first.Tag())
		}
		return err
	}

	if c.Providers.TMDB.Enabled && c.Providers.TMDB.APIKey == "" {
		return fmt.Errorf("providers.tmdb.api_key is required when tmdb is enabled")
	}
	if !anyProviderEnabled(c.Providers) {
		return fmt.Errorf("at least one provider must be enabled")
	}
	return nil
}

func anyProviderEnabled(p ProvidersConfig) bool {
	for _, pc := range []ProviderConfig{p.AniList, p.Jikan, p.Kitsu, p.TMDB, p.MangaDex, p.Simkl} {
		if pc.Enabled {
			return true
		}
	}
	return false
}

// envTransform maps METAFUSE_SERVER_RATE_LIMIT_REQS to a koanf path. Known
// multi-word leaf keys are rejoined after the section split.
func envTransform(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	parts := strings.Split(s, "_")
	if len(parts) < 2 {
		return s
	}

	section := parts[0]
	rest := strings.Join(parts[1:], "_")

	// providers.<id>.<key>
	if section == "providers" && len(parts) >= 3 {
		return "providers." + parts[1] + "." + strings.Join(parts[2:], "_")
	}
	return section + "." + rest
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// processSliceFields splits comma-separated env strings into slices for the
// known slice-valued keys. YAML-sourced slices pass through untouched.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
		}
	}
	return nil
}
