// Metafuse - Cross-Provider Media Metadata Aggregation
// Copyright 2026 Kai Matsuda (kaimatsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaimatsu/metafuse

package models

import "time"

// EpisodeSource records what one contributing provider offered for an
// episode, preserved on the merged record for audit and attribution.
type EpisodeSource struct {
	Title     string     `json:"title,omitempty"`
	Thumbnail string     `json:"thumbnail,omitempty"`
	AirDate   *time.Time `json:"air_date,omitempty"`
}

// EpisodeRecord is one episode's metadata. Number is the primary tie-break
// key; within a merged list numbers are unique per (season, number) when
// season matching is active, else unique by number alone.
type EpisodeRecord struct {
	SeasonNumber *int       `json:"season_number,omitempty"`
	Number       int        `json:"number"`
	Title        string     `json:"title,omitempty"`
	Description  string     `json:"description,omitempty"`
	Thumbnail    string     `json:"thumbnail,omitempty"`
	DurationMins int        `json:"duration_mins,omitempty"`
	ReleaseDate  *time.Time `json:"release_date,omitempty"`

	// AlternativeData maps provider ID to the data that provider offered
	// for this episode.
	AlternativeData map[ProviderID]EpisodeSource `json:"alternative_data,omitempty"`
}

// RecordSource stores provider's offering for this episode in
// AlternativeData, allocating the map on first use.
func (e *EpisodeRecord) RecordSource(provider ProviderID, src EpisodeSource) {
	if e.AlternativeData == nil {
		e.AlternativeData = make(map[ProviderID]EpisodeSource)
	}
	e.AlternativeData[provider] = src
}

// ChapterRecord is the textual-media analogue of EpisodeRecord. Number is a
// float because providers publish half-chapters (10.5).
type ChapterRecord struct {
	Number         float64    `json:"number"`
	Title          string     `json:"title,omitempty"`
	ReleaseDate    *time.Time `json:"release_date,omitempty"`
	PageCount      int        `json:"page_count,omitempty"`
	SourceProvider ProviderID `json:"source_provider,omitempty"`
}
