// Metafuse - Cross-Provider Media Metadata Aggregation
// Copyright 2026 Kai Matsuda (kaimatsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaimatsu/metafuse

package kitsu

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kaimatsu/metafuse/internal/models"
)

type mediaResource struct {
	ID         string `json:"id"`
	Type       string `json:"type"` // "anime" or "manga"
	Attributes struct {
		CanonicalTitle string `json:"canonicalTitle"`
		Titles         struct {
			En   string `json:"en"`
			EnJp string `json:"en_jp"`
			JaJp string `json:"ja_jp"`
		} `json:"titles"`
		AbbreviatedTitles []string `json:"abbreviatedTitles"`
		Synopsis          string   `json:"synopsis"`
		AverageRating     string   `json:"averageRating"` // "82.23", 0-100 scale
		UserCount         int      `json:"userCount"`
		FavoritesCount    int      `json:"favoritesCount"`
		StartDate         string   `json:"startDate"` // "2002-10-03"
		EndDate           string   `json:"endDate"`
		EpisodeCount      int      `json:"episodeCount"`
		EpisodeLength     int      `json:"episodeLength"`
		ChapterCount      int      `json:"chapterCount"`
		VolumeCount       int      `json:"volumeCount"`
		Subtype           string   `json:"subtype"` // TV, movie, OVA, manga, novel...
		Status            string   `json:"status"`
		PosterImage       struct {
			Large    string `json:"large"`
			Original string `json:"original"`
		} `json:"posterImage"`
		CoverImage struct {
			Original string `json:"original"`
		} `json:"coverImage"`
	} `json:"attributes"`
}

// Search implements provider.Searcher via the filter[text] query.
func (c *Client) Search(ctx context.Context, query string, mediaType models.MediaType) ([]models.MediaRecord, error) {
	resource := "anime"
	if mediaType == models.MediaTypeManga || mediaType == models.MediaTypeNovel {
		resource = "manga"
	}

	var result struct {
		Data []mediaResource `json:"data"`
	}
	err := c.doRequest(ctx, requestConfig{
		path: "/" + resource,
		query: url.Values{
			"filter[text]": {query},
			"page[limit]":  {"10"},
		},
	}, &result)
	if err != nil {
		return nil, err
	}

	records := make([]models.MediaRecord, 0, len(result.Data))
	for _, r := range result.Data {
		records = append(records, r.toRecord())
	}
	return records, nil
}

func (r mediaResource) toRecord() models.MediaRecord {
	attr := r.Attributes
	rec := models.MediaRecord{
		ID:           r.ID,
		Provider:     models.ProviderKitsu,
		Title:        attr.CanonicalTitle,
		EnglishTitle: attr.Titles.En,
		RomajiTitle:  attr.Titles.EnJp,
		Synonyms:     attr.AbbreviatedTitles,
		Type:         kitsuMediaType(r.Type, attr.Subtype),
		CoverImage:   firstNonEmpty(attr.PosterImage.Large, attr.PosterImage.Original),
		Format:       attr.Subtype,
	}
	if start := parseDate(attr.StartDate); start != nil {
		y := start.Year()
		rec.Year = &y
	}
	return rec
}

// Details implements provider.DetailsGetter. Kitsu has no combined endpoint;
// details come from the base resource alone.
func (c *Client) Details(ctx context.Context, mediaID string) (*models.MediaDetails, error) {
	var result struct {
		Data mediaResource `json:"data"`
	}
	err := c.doRequest(ctx, requestConfig{
		path: fmt.Sprintf("/anime/%s", url.PathEscape(mediaID)),
	}, &result)
	if err != nil {
		return nil, err
	}
	return result.Data.toDetails(), nil
}

func (r mediaResource) toDetails() *models.MediaDetails {
	attr := r.Attributes
	d := &models.MediaDetails{
		ID:              r.ID,
		Provider:        models.ProviderKitsu,
		Title:           attr.CanonicalTitle,
		EnglishTitle:    attr.Titles.En,
		RomajiTitle:     attr.Titles.EnJp,
		Description:     attr.Synopsis,
		Type:            kitsuMediaType(r.Type, attr.Subtype),
		Format:          attr.Subtype,
		Status:          attr.Status,
		CoverImage:      firstNonEmpty(attr.PosterImage.Original, attr.PosterImage.Large),
		BannerImage:     attr.CoverImage.Original,
		Popularity:      attr.UserCount,
		Favorites:       attr.FavoritesCount,
		Episodes:        attr.EpisodeCount,
		Chapters:        attr.ChapterCount,
		Volumes:         attr.VolumeCount,
		DurationMinutes: attr.EpisodeLength,
		StartDate:       parseDate(attr.StartDate),
		EndDate:         parseDate(attr.EndDate),
	}
	if rating, err := strconv.ParseFloat(attr.AverageRating, 64); err == nil {
		d.AverageScore = rating
	}
	return d
}

func kitsuMediaType(resourceType, subtype string) models.MediaType {
	if resourceType == "manga" {
		if strings.EqualFold(subtype, "novel") {
			return models.MediaTypeNovel
		}
		return models.MediaTypeManga
	}
	if strings.EqualFold(subtype, "movie") {
		return models.MediaTypeMovie
	}
	return models.MediaTypeAnime
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
