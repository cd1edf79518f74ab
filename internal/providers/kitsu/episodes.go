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

	"github.com/kaimatsu/metafuse/internal/models"
)

const (
	episodePageSize = 20
	maxEpisodePages = 200
)

type episodeResource struct {
	Attributes struct {
		Number         int    `json:"number"`
		SeasonNumber   *int   `json:"seasonNumber"`
		CanonicalTitle string `json:"canonicalTitle"`
		Synopsis       string `json:"synopsis"`
		Airdate        string `json:"airdate"`
		Length         int    `json:"length"`
		Thumbnail      *struct {
			Original string `json:"original"`
		} `json:"thumbnail"`
	} `json:"attributes"`
}

// Episodes implements provider.EpisodeLister, paging through the episodes
// relationship until meta.count is exhausted.
func (c *Client) Episodes(ctx context.Context, mediaID string) ([]models.EpisodeRecord, error) {
	var episodes []models.EpisodeRecord

	for page := 0; page < maxEpisodePages; page++ {
		var result struct {
			Data []episodeResource `json:"data"`
			Meta struct {
				Count int `json:"count"`
			} `json:"meta"`
		}
		err := c.doRequest(ctx, requestConfig{
			path: fmt.Sprintf("/anime/%s/episodes", url.PathEscape(mediaID)),
			query: url.Values{
				"page[limit]":  {strconv.Itoa(episodePageSize)},
				"page[offset]": {strconv.Itoa(page * episodePageSize)},
				"sort":         {"number"},
			},
		}, &result)
		if err != nil {
			return nil, err
		}
		if len(result.Data) == 0 {
			break
		}

		for _, ep := range result.Data {
			attr := ep.Attributes
			rec := models.EpisodeRecord{
				SeasonNumber: attr.SeasonNumber,
				Number:       attr.Number,
				Title:        attr.CanonicalTitle,
				Description:  attr.Synopsis,
				DurationMins: attr.Length,
				ReleaseDate:  parseDate(attr.Airdate),
			}
			if attr.Thumbnail != nil {
				rec.Thumbnail = attr.Thumbnail.Original
			}
			episodes = append(episodes, rec)
		}

		if (page+1)*episodePageSize >= result.Meta.Count {
			break
		}
	}

	return episodes, nil
}
