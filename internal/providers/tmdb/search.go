// Metafuse - Cross-Provider Media Metadata Aggregation
// Copyright 2026 Kai Matsuda (kaimatsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaimatsu/metafuse

package tmdb

import (
	"context"
	"net/url"
	"strconv"

	"github.com/kaimatsu/metafuse/internal/models"
)

type searchResult struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`           // TV
	OriginalName  string `json:"original_name"`  // TV
	Title         string `json:"title"`          // movie
	OriginalTitle string `json:"original_title"` // movie
	FirstAirDate  string `json:"first_air_date"` // TV, "2002-10-03"
	ReleaseDate   string `json:"release_date"`   // movie
	PosterPath    string `json:"poster_path"`
}

// Search implements provider.Searcher. Anime and TV map to the tv resource,
// movies to the movie resource; TMDB has no manga catalog.
func (c *Client) Search(ctx context.Context, query string, mediaType models.MediaType) ([]models.MediaRecord, error) {
	resource := "tv"
	if mediaType == models.MediaTypeMovie {
		resource = "movie"
	}

	var result struct {
		Results []searchResult `json:"results"`
	}
	err := c.doRequest(ctx, requestConfig{
		path:  "/search/" + resource,
		query: url.Values{"query": {query}, "include_adult": {"false"}},
	}, &result)
	if err != nil {
		return nil, err
	}

	records := make([]models.MediaRecord, 0, len(result.Results))
	for _, r := range result.Results {
		records = append(records, r.toRecord(mediaType))
	}
	return records, nil
}

func (r searchResult) toRecord(mediaType models.MediaType) models.MediaRecord {
	title := r.Name
	if title == "" {
		title = r.Title
	}

	rec := models.MediaRecord{
		ID:         strconv.Itoa(r.ID),
		Provider:   models.ProviderTMDB,
		Title:      title,
		Type:       mediaType,
		CoverImage: imageURL(r.PosterPath),
	}
	if alt := firstNonEmpty(r.OriginalName, r.OriginalTitle); alt != "" && alt != title {
		rec.Synonyms = []string{alt}
	}
	if year := yearOf(firstNonEmpty(r.FirstAirDate, r.ReleaseDate)); year != 0 {
		rec.Year = &year
	}
	return rec
}

// yearOf extracts the year from a "2002-10-03" date string, 0 when absent.
func yearOf(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
