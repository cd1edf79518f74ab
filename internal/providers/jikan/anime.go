// Metafuse - Cross-Provider Media Metadata Aggregation
// Copyright 2026 Kai Matsuda (kaimatsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaimatsu/metafuse

package jikan

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kaimatsu/metafuse/internal/models"
)

// animeItem is the shared shape of Jikan search hits and detail records.
type animeItem struct {
	MalID         int      `json:"mal_id"`
	Title         string   `json:"title"`
	TitleEnglish  string   `json:"title_english"`
	TitleJapanese string   `json:"title_japanese"`
	TitleSynonyms []string `json:"title_synonyms"`
	Type          string   `json:"type"`
	Source        string   `json:"source"`
	Status        string   `json:"status"`
	Synopsis      string   `json:"synopsis"`
	Year          *int     `json:"year"`
	Episodes      int      `json:"episodes"`
	Chapters      int      `json:"chapters"`
	Volumes       int      `json:"volumes"`
	Duration      string   `json:"duration"`
	Score         float64  `json:"score"`
	Popularity    int      `json:"popularity"`
	Members       int      `json:"members"`
	Favorites     int      `json:"favorites"`
	Images        struct {
		JPG struct {
			ImageURL      string `json:"image_url"`
			LargeImageURL string `json:"large_image_url"`
		} `json:"jpg"`
	} `json:"images"`
	Aired struct {
		From *time.Time `json:"from"`
		To   *time.Time `json:"to"`
	} `json:"aired"`
	Published struct {
		From *time.Time `json:"from"`
		To   *time.Time `json:"to"`
	} `json:"published"`
	Genres  []namedRef `json:"genres"`
	Themes  []namedRef `json:"themes"`
	Studios []namedRef `json:"studios"`
	Trailer struct {
		YoutubeID string `json:"youtube_id"`
		URL       string `json:"url"`
	} `json:"trailer"`
	Relations []struct {
		Relation string `json:"relation"`
		Entry    []struct {
			MalID int    `json:"mal_id"`
			Name  string `json:"name"`
		} `json:"entry"`
	} `json:"relations"`
}

type namedRef struct {
	Name string `json:"name"`
}

// Search implements provider.Searcher. Anime and manga live under separate
// top-level resources.
func (c *Client) Search(ctx context.Context, query string, mediaType models.MediaType) ([]models.MediaRecord, error) {
	resource := "anime"
	if mediaType == models.MediaTypeManga || mediaType == models.MediaTypeNovel {
		resource = "manga"
	}

	var result struct {
		Data []animeItem `json:"data"`
	}
	err := c.doRequest(ctx, requestConfig{
		path:  "/" + resource,
		query: url.Values{"q": {query}, "limit": {"10"}},
	}, &result)
	if err != nil {
		return nil, err
	}

	records := make([]models.MediaRecord, 0, len(result.Data))
	for _, item := range result.Data {
		records = append(records, item.toRecord())
	}
	return records, nil
}

func (a animeItem) toRecord() models.MediaRecord {
	rec := models.MediaRecord{
		ID:           strconv.Itoa(a.MalID),
		Provider:     models.ProviderJikan,
		Title:        a.Title,
		EnglishTitle: a.TitleEnglish,
		Synonyms:     a.TitleSynonyms,
		Type:         jikanMediaType(a.Type),
		Year:         a.Year,
		CoverImage:   a.coverImage(),
		Format:       a.Type,
	}
	if rec.Year == nil {
		if from := a.startDate(); from != nil {
			y := from.Year()
			rec.Year = &y
		}
	}
	return rec
}

// Details implements provider.DetailsGetter via the /full endpoint.
func (c *Client) Details(ctx context.Context, mediaID string) (*models.MediaDetails, error) {
	var result struct {
		Data animeItem `json:"data"`
	}
	err := c.doRequest(ctx, requestConfig{
		path: fmt.Sprintf("/anime/%s/full", url.PathEscape(mediaID)),
	}, &result)
	if err != nil {
		return nil, err
	}
	return result.Data.toDetails(), nil
}

func (a animeItem) toDetails() *models.MediaDetails {
	d := &models.MediaDetails{
		ID:              strconv.Itoa(a.MalID),
		Provider:        models.ProviderJikan,
		Title:           a.Title,
		EnglishTitle:    a.TitleEnglish,
		Description:     a.Synopsis,
		Type:            jikanMediaType(a.Type),
		Format:          a.Type,
		Status:          a.Status,
		CoverImage:      a.coverImage(),
		Rating:          a.Score,
		Popularity:      a.Members,
		Favorites:       a.Favorites,
		Episodes:        a.Episodes,
		Chapters:        a.Chapters,
		Volumes:         a.Volumes,
		DurationMinutes: parseDurationMinutes(a.Duration),
		StartDate:       a.startDate(),
		EndDate:         a.endDate(),
	}

	for _, g := range a.Genres {
		d.Genres = append(d.Genres, g.Name)
	}
	for _, t := range a.Themes {
		d.Tags = append(d.Tags, t.Name)
	}
	for i, s := range a.Studios {
		d.Studios = append(d.Studios, models.Studio{Name: s.Name, IsMain: i == 0})
	}

	for _, rel := range a.Relations {
		for _, entry := range rel.Entry {
			d.Relations = append(d.Relations, models.Relation{
				MediaID:  strconv.Itoa(entry.MalID),
				Provider: models.ProviderJikan,
				Title:    entry.Name,
				Kind:     strings.ToLower(rel.Relation),
			})
		}
	}

	if a.Trailer.YoutubeID != "" {
		d.Trailer = &models.Trailer{Site: "youtube", ID: a.Trailer.YoutubeID, URL: a.Trailer.URL}
	}

	return d
}

func (a animeItem) coverImage() string {
	if a.Images.JPG.LargeImageURL != "" {
		return a.Images.JPG.LargeImageURL
	}
	return a.Images.JPG.ImageURL
}

func (a animeItem) startDate() *time.Time {
	if a.Aired.From != nil {
		return a.Aired.From
	}
	return a.Published.From
}

func (a animeItem) endDate() *time.Time {
	if a.Aired.To != nil {
		return a.Aired.To
	}
	return a.Published.To
}

func jikanMediaType(t string) models.MediaType {
	switch strings.ToLower(t) {
	case "movie":
		return models.MediaTypeMovie
	case "manga", "manhwa", "manhua", "one-shot", "oneshot", "doujinshi":
		return models.MediaTypeManga
	case "novel", "light novel":
		return models.MediaTypeNovel
	default:
		return models.MediaTypeAnime
	}
}

// parseDurationMinutes extracts the minute count from strings like
// "23 min per ep" or "1 hr 55 min". Zero when unparseable.
func parseDurationMinutes(s string) int {
	fields := strings.Fields(s)
	minutes := 0
	for i := 0; i+1 < len(fields); i++ {
		n, err := strconv.Atoi(fields[i])
		if err != nil {
			continue
		}
		switch strings.TrimSuffix(fields[i+1], ".") {
		case "hr", "hrs", "hour", "hours":
			minutes += n * 60
		case "min", "mins", "minute", "minutes":
			minutes += n
		}
	}
	return minutes
}
