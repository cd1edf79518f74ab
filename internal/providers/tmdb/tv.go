// Metafuse - Cross-Provider Media Metadata Aggregation
// Copyright 2026 Kai Matsuda (kaimatsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaimatsu/metafuse

package tmdb

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/kaimatsu/metafuse/internal/aggregate"
	"github.com/kaimatsu/metafuse/internal/models"
)

type tvDetails struct {
	ID               int     `json:"id"`
	Name             string  `json:"name"`
	OriginalName     string  `json:"original_name"`
	Overview         string  `json:"overview"`
	Status           string  `json:"status"`
	FirstAirDate     string  `json:"first_air_date"`
	LastAirDate      string  `json:"last_air_date"`
	NumberOfEpisodes int     `json:"number_of_episodes"`
	VoteAverage      float64 `json:"vote_average"`
	Popularity       float64 `json:"popularity"`
	PosterPath       string  `json:"poster_path"`
	BackdropPath     string  `json:"backdrop_path"`
	EpisodeRunTime   []int   `json:"episode_run_time"`
	Genres           []struct {
		Name string `json:"name"`
	} `json:"genres"`
	Seasons []seasonSummary `json:"seasons"`
	Credits struct {
		Cast []struct {
			Name        string `json:"name"`
			Character   string `json:"character"`
			ProfilePath string `json:"profile_path"`
		} `json:"cast"`
	} `json:"credits"`
	Videos struct {
		Results []struct {
			Key  string `json:"key"`
			Site string `json:"site"`
			Type string `json:"type"`
		} `json:"results"`
	} `json:"videos"`
	Recommendations struct {
		Results []struct {
			ID          int     `json:"id"`
			Name        string  `json:"name"`
			VoteAverage float64 `json:"vote_average"`
			PosterPath  string  `json:"poster_path"`
		} `json:"results"`
	} `json:"recommendations"`
}

type seasonSummary struct {
	SeasonNumber int    `json:"season_number"`
	EpisodeCount int    `json:"episode_count"`
	Name         string `json:"name"`
}

// Details implements provider.DetailsGetter for TV ids, folding credits,
// videos and recommendations into one call via append_to_response.
func (c *Client) Details(ctx context.Context, mediaID string) (*models.MediaDetails, error) {
	var tv tvDetails
	err := c.doRequest(ctx, requestConfig{
		path:  fmt.Sprintf("/tv/%s", url.PathEscape(mediaID)),
		query: url.Values{"append_to_response": {"credits,videos,recommendations"}},
	}, &tv)
	if err != nil {
		return nil, err
	}
	return tv.toDetails(), nil
}

func (tv tvDetails) toDetails() *models.MediaDetails {
	d := &models.MediaDetails{
		ID:          strconv.Itoa(tv.ID),
		Provider:    models.ProviderTMDB,
		Title:       tv.Name,
		Description: tv.Overview,
		Type:        models.MediaTypeTV,
		Status:      tv.Status,
		CoverImage:  imageURL(tv.PosterPath),
		BannerImage: imageURL(tv.BackdropPath),
		Rating:      tv.VoteAverage,
		Popularity:  int(tv.Popularity),
		Episodes:    tv.NumberOfEpisodes,
		StartDate:   parseDate(tv.FirstAirDate),
		EndDate:     parseDate(tv.LastAirDate),
	}
	if len(tv.EpisodeRunTime) > 0 {
		d.DurationMinutes = tv.EpisodeRunTime[0]
	}
	for _, g := range tv.Genres {
		d.Genres = append(d.Genres, g.Name)
	}

	for _, cast := range tv.Credits.Cast {
		d.Characters = append(d.Characters, models.Character{
			Name:       cast.Character,
			Image:      imageURL(cast.ProfilePath),
			VoiceActor: cast.Name,
		})
	}

	for _, v := range tv.Videos.Results {
		if v.Site == "YouTube" && v.Type == "Trailer" {
			d.Trailer = &models.Trailer{
				Site: "youtube",
				ID:   v.Key,
				URL:  "https://www.youtube.com/watch?v=" + v.Key,
			}
			break
		}
	}

	for _, r := range tv.Recommendations.Results {
		d.Recommendations = append(d.Recommendations, models.Recommendation{
			Title:      r.Name,
			MediaID:    strconv.Itoa(r.ID),
			Provider:   models.ProviderTMDB,
			CoverImage: imageURL(r.PosterPath),
			Rating:     r.VoteAverage,
		})
	}

	return d
}

type seasonEpisode struct {
	EpisodeNumber int     `json:"episode_number"`
	SeasonNumber  int     `json:"season_number"`
	Name          string  `json:"name"`
	Overview      string  `json:"overview"`
	AirDate       string  `json:"air_date"`
	Runtime       int     `json:"runtime"`
	StillPath     string  `json:"still_path"`
	VoteAverage   float64 `json:"vote_average"`
}

// Episodes implements provider.EpisodeLister by walking every regular
// season of the show. Specials (season 0) are skipped.
func (c *Client) Episodes(ctx context.Context, mediaID string) ([]models.EpisodeRecord, error) {
	seasons, err := c.seasons(ctx, mediaID)
	if err != nil {
		return nil, err
	}

	var episodes []models.EpisodeRecord
	for _, s := range seasons {
		if s.SeasonNumber < 1 {
			continue
		}
		var season struct {
			Episodes []seasonEpisode `json:"episodes"`
		}
		err := c.doRequest(ctx, requestConfig{
			path: fmt.Sprintf("/tv/%s/season/%d", url.PathEscape(mediaID), s.SeasonNumber),
		}, &season)
		if err != nil {
			return nil, err
		}

		for _, ep := range season.Episodes {
			sn := ep.SeasonNumber
			episodes = append(episodes, models.EpisodeRecord{
				SeasonNumber: &sn,
				Number:       ep.EpisodeNumber,
				Title:        ep.Name,
				Description:  ep.Overview,
				Thumbnail:    imageURL(ep.StillPath),
				DurationMins: ep.Runtime,
				ReleaseDate:  parseDate(ep.AirDate),
			})
		}
	}
	return episodes, nil
}

// SeasonMetadata implements provider.SeasonMetadataGetter from the show's
// season summaries.
func (c *Client) SeasonMetadata(ctx context.Context, tvID string) (map[int]aggregate.SeasonInfo, error) {
	seasons, err := c.seasons(ctx, tvID)
	if err != nil {
		return nil, err
	}

	meta := make(map[int]aggregate.SeasonInfo, len(seasons))
	for _, s := range seasons {
		if s.SeasonNumber < 1 {
			continue
		}
		meta[s.SeasonNumber] = aggregate.SeasonInfo{EpisodeCount: s.EpisodeCount, Name: s.Name}
	}
	return meta, nil
}

func (c *Client) seasons(ctx context.Context, tvID string) ([]seasonSummary, error) {
	var tv struct {
		Seasons []seasonSummary `json:"seasons"`
	}
	err := c.doRequest(ctx, requestConfig{
		path: fmt.Sprintf("/tv/%s", url.PathEscape(tvID)),
	}, &tv)
	if err != nil {
		return nil, err
	}
	return tv.Seasons, nil
}

// parseDate parses TMDB's "2002-10-03" dates, nil when absent or malformed.
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
