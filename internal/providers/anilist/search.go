// Metafuse - Cross-Provider Media Metadata Aggregation
// Copyright 2026 Kai Matsuda (kaimatsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaimatsu/metafuse

package anilist

import (
	"context"
	"strconv"
	"strings"

	"github.com/kaimatsu/metafuse/internal/models"
)

const searchQuery = `
query ($search: String, $type: MediaType) {
  Page(page: 1, perPage: 10) {
    media(search: $search, type: $type) {
      id
      type
      format
      seasonYear
      startDate { year }
      synonyms
      title { romaji english native }
      coverImage { large }
    }
  }
}`

type mediaTitle struct {
	Romaji  string `json:"romaji"`
	English string `json:"english"`
	Native  string `json:"native"`
}

type searchMedia struct {
	ID         int        `json:"id"`
	Type       string     `json:"type"`
	Format     string     `json:"format"`
	SeasonYear *int       `json:"seasonYear"`
	StartDate  *fuzzyDate `json:"startDate"`
	Synonyms   []string   `json:"synonyms"`
	Title      mediaTitle `json:"title"`
	CoverImage struct {
		Large string `json:"large"`
	} `json:"coverImage"`
}

type fuzzyDate struct {
	Year  *int `json:"year"`
	Month *int `json:"month"`
	Day   *int `json:"day"`
}

// Search implements provider.Searcher over AniList's paged media query.
func (c *Client) Search(ctx context.Context, query string, mediaType models.MediaType) ([]models.MediaRecord, error) {
	var result struct {
		Page struct {
			Media []searchMedia `json:"media"`
		} `json:"Page"`
	}
	err := c.post(ctx, searchQuery, map[string]any{
		"search": query,
		"type":   anilistType(mediaType),
	}, &result)
	if err != nil {
		return nil, err
	}

	records := make([]models.MediaRecord, 0, len(result.Page.Media))
	for _, m := range result.Page.Media {
		records = append(records, m.toRecord())
	}
	return records, nil
}

func (m searchMedia) toRecord() models.MediaRecord {
	rec := models.MediaRecord{
		ID:           strconv.Itoa(m.ID),
		Provider:     models.ProviderAniList,
		Title:        firstNonEmpty(m.Title.English, m.Title.Romaji, m.Title.Native),
		EnglishTitle: m.Title.English,
		RomajiTitle:  m.Title.Romaji,
		Synonyms:     m.Synonyms,
		Type:         mediaTypeFrom(m.Type, m.Format),
		CoverImage:   m.CoverImage.Large,
		Format:       m.Format,
	}
	if m.SeasonYear != nil {
		rec.Year = m.SeasonYear
	} else if m.StartDate != nil && m.StartDate.Year != nil {
		rec.Year = m.StartDate.Year
	}
	return rec
}

// mediaTypeFrom narrows AniList's ANIME/MANGA plus format into the internal
// media type.
func mediaTypeFrom(anilist, format string) models.MediaType {
	switch strings.ToUpper(anilist) {
	case "MANGA":
		if strings.ToUpper(format) == "NOVEL" {
			return models.MediaTypeNovel
		}
		return models.MediaTypeManga
	default:
		if strings.ToUpper(format) == "MOVIE" {
			return models.MediaTypeMovie
		}
		return models.MediaTypeAnime
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
