// Metafuse - Cross-Provider Media Metadata Aggregation
// Copyright 2026 Kai Matsuda (kaimatsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaimatsu/metafuse

package models

import "time"

// ProviderMatch is the result of matching one external record to the primary
// title. Immutable once created; reconstructed matches from the mapping cache
// carry confidence 1.0 and a nil SourceRecord.
type ProviderMatch struct {
	ProviderID      ProviderID   `json:"provider_id"`
	ProviderMediaID string       `json:"provider_media_id"`
	Confidence      float64      `json:"confidence"`
	MatchedTitle    string       `json:"matched_title"`
	SourceRecord    *MediaRecord `json:"source_record,omitempty"`
}

// CachedMapping is the durable record of a previously computed cross-provider
// identity resolution. PrimaryMediaID is the composite cache key derived from
// normalized title, year and type, not any provider's native ID.
type CachedMapping struct {
	PrimaryProviderID ProviderID            `json:"primary_provider_id"`
	PrimaryMediaID    string                `json:"primary_media_id"`
	ProviderMappings  map[ProviderID]string `json:"provider_mappings"`
	CachedAt          time.Time             `json:"cached_at"`
	AccessedAt        time.Time             `json:"accessed_at"`
}

// AggregatedDetails is the merged full-detail record handed back to callers,
// with per-field source attribution.
type AggregatedDetails struct {
	MediaDetails

	// DataSourceAttribution maps a field name to the provider that supplied
	// its final value. Best-effort: only tracked where multiple candidates
	// existed.
	DataSourceAttribution map[string]ProviderID `json:"data_source_attribution,omitempty"`

	// ContributingProviders lists every provider whose data reached the
	// merged record, including ones that only surfaced as attempted.
	ContributingProviders []ProviderID `json:"contributing_providers,omitempty"`

	// MatchConfidences records the match confidence per contributing provider.
	MatchConfidences map[ProviderID]float64 `json:"match_confidences,omitempty"`
}

// Attribute records that field's final value came from provider, allocating
// the map on first use.
func (a *AggregatedDetails) Attribute(field string, provider ProviderID) {
	if a.DataSourceAttribution == nil {
		a.DataSourceAttribution = make(map[string]ProviderID)
	}
	a.DataSourceAttribution[field] = provider
}
