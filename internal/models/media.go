// Metafuse - Cross-Provider Media Metadata Aggregation
// Copyright 2026 Kai Matsuda (kaimatsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaimatsu/metafuse

package models

import (
	"strings"
	"time"
)

// MediaType classifies a title's medium. The type participates in match
// confidence scoring (exact enum match earns a bonus) and in cache-key
// derivation.
type MediaType string

// Known media types.
const (
	MediaTypeAnime MediaType = "anime"
	MediaTypeManga MediaType = "manga"
	MediaTypeMovie MediaType = "movie"
	MediaTypeTV    MediaType = "tv"
	MediaTypeNovel MediaType = "novel"
)

// ParseMediaType converts a string to a MediaType, case-insensitively.
// Unknown values map to MediaTypeAnime, the dominant type in practice.
func ParseMediaType(s string) MediaType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "manga":
		return MediaTypeManga
	case "movie":
		return MediaTypeMovie
	case "tv":
		return MediaTypeTV
	case "novel", "light_novel":
		return MediaTypeNovel
	default:
		return MediaTypeAnime
	}
}

// String implements fmt.Stringer.
func (m MediaType) String() string { return string(m) }

// MediaRecord is one provider's search result for a title. It carries just
// enough metadata to score a match; full details are fetched separately.
type MediaRecord struct {
	ID           string     `json:"id"`
	Provider     ProviderID `json:"provider"`
	Title        string     `json:"title"`
	EnglishTitle string     `json:"english_title,omitempty"`
	RomajiTitle  string     `json:"romaji_title,omitempty"`
	Synonyms     []string   `json:"synonyms,omitempty"`
	Type         MediaType  `json:"type"`
	Year         *int       `json:"year,omitempty"`
	CoverImage   string     `json:"cover_image,omitempty"`
	Format       string     `json:"format,omitempty"` // TV, OVA, movie, oneshot...
}

// Character is a cast entry from one provider.
type Character struct {
	Name       string `json:"name"`
	NativeName string `json:"native_name,omitempty"`
	Image      string `json:"image,omitempty"`
	Role       string `json:"role,omitempty"` // main, supporting, background
	VoiceActor string `json:"voice_actor,omitempty"`
}

// StaffMember is a production staff entry from one provider.
type StaffMember struct {
	Name       string `json:"name"`
	NativeName string `json:"native_name,omitempty"`
	Image      string `json:"image,omitempty"`
	Role       string `json:"role,omitempty"` // director, original creator...
}

// Recommendation is a "viewers also liked" entry from one provider.
type Recommendation struct {
	Title      string     `json:"title"`
	MediaID    string     `json:"media_id,omitempty"`
	Provider   ProviderID `json:"provider,omitempty"`
	CoverImage string     `json:"cover_image,omitempty"`
	Rating     float64    `json:"rating,omitempty"` // provider-native score, higher wins on dedupe
}

// Studio is a production studio credit.
type Studio struct {
	Name   string `json:"name"`
	IsMain bool   `json:"is_main"`
}

// Relation links a title to a related title (sequel, adaptation...).
type Relation struct {
	MediaID  string     `json:"media_id"`
	Provider ProviderID `json:"provider,omitempty"`
	Title    string     `json:"title"`
	Kind     string     `json:"kind,omitempty"` // sequel, prequel, adaptation, side_story
}

// Trailer is a promotional video reference.
type Trailer struct {
	Site string `json:"site"` // youtube, dailymotion...
	ID   string `json:"id"`
	URL  string `json:"url,omitempty"`
}

// MediaDetails is the full per-provider detail record consumed by the
// aggregator. Every field is optional; providers differ wildly in coverage.
type MediaDetails struct {
	ID           string     `json:"id"`
	Provider     ProviderID `json:"provider"`
	Title        string     `json:"title"`
	EnglishTitle string     `json:"english_title,omitempty"`
	RomajiTitle  string     `json:"romaji_title,omitempty"`
	Description  string     `json:"description,omitempty"`
	Type         MediaType  `json:"type"`
	Format       string     `json:"format,omitempty"`
	Status       string     `json:"status,omitempty"`

	CoverImage  string `json:"cover_image,omitempty"`
	BannerImage string `json:"banner_image,omitempty"`

	Rating       float64 `json:"rating,omitempty"`        // 0-10 provider-native
	AverageScore float64 `json:"average_score,omitempty"` // 0-100
	MeanScore    float64 `json:"mean_score,omitempty"`    // 0-100
	Popularity   int     `json:"popularity,omitempty"`
	Favorites    int     `json:"favorites,omitempty"`

	Episodes        int `json:"episodes,omitempty"`
	Chapters        int `json:"chapters,omitempty"`
	Volumes         int `json:"volumes,omitempty"`
	DurationMinutes int `json:"duration_minutes,omitempty"`

	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`

	Genres []string `json:"genres,omitempty"`
	Tags   []string `json:"tags,omitempty"`

	Characters      []Character      `json:"characters,omitempty"`
	Staff           []StaffMember    `json:"staff,omitempty"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
	Studios         []Studio         `json:"studios,omitempty"`
	Relations       []Relation       `json:"relations,omitempty"`
	Trailer         *Trailer         `json:"trailer,omitempty"`
}

// PlaceholderDetails builds a minimal detail record for a provider whose
// details fetch failed or timed out. The provider still surfaces in
// attribution as attempted rather than silently vanishing.
func PlaceholderDetails(provider ProviderID, id, title string) *MediaDetails {
	return &MediaDetails{
		ID:       id,
		Provider: provider,
		Title:    title,
	}
}
