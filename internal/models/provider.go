// Metafuse - Cross-Provider Media Metadata Aggregation
// Copyright 2026 Kai Matsuda (kaimatsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaimatsu/metafuse

// Package models defines the value objects shared across the matcher,
// aggregator and provider clients. All types here are plain data; they are
// constructed fresh per request and never retained by the core beyond the
// mapping cache's durable store.
package models

import (
	"fmt"
	"strings"
)

// ProviderID identifies one of the known external catalog providers.
// The set is closed: components switch on these constants instead of
// scattering literal strings (a single registry maps each ID to its
// capability implementations at startup).
type ProviderID string

// Known providers.
const (
	ProviderAniList  ProviderID = "anilist"
	ProviderJikan    ProviderID = "jikan"
	ProviderKitsu    ProviderID = "kitsu"
	ProviderTMDB     ProviderID = "tmdb"
	ProviderMangaDex ProviderID = "mangadex"
	ProviderSimkl    ProviderID = "simkl"
)

// KnownProviders returns all provider IDs in a stable order.
func KnownProviders() []ProviderID {
	return []ProviderID{
		ProviderAniList,
		ProviderJikan,
		ProviderKitsu,
		ProviderTMDB,
		ProviderMangaDex,
		ProviderSimkl,
	}
}

// ParseProviderID converts a string to a ProviderID, case-insensitively.
func ParseProviderID(s string) (ProviderID, error) {
	id := ProviderID(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range KnownProviders() {
		if id == known {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown provider %q", s)
}

// String implements fmt.Stringer.
func (p ProviderID) String() string { return string(p) }

// Equal compares provider IDs case-insensitively. Provider IDs arriving from
// configuration or URLs may carry arbitrary casing.
func (p ProviderID) Equal(other ProviderID) bool {
	return strings.EqualFold(string(p), string(other))
}
