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
	"time"

	"github.com/kaimatsu/metafuse/internal/models"
)

// maxEpisodePages caps pagination for pathological series; at Jikan's 100
// episodes per page this covers anything real.
const maxEpisodePages = 40

type episodeItem struct {
	MalID int        `json:"mal_id"`
	Title string     `json:"title"`
	Aired *time.Time `json:"aired"`
}

// Episodes implements provider.EpisodeLister, following Jikan's pagination
// until the last page. Jikan episode lists carry no thumbnails.
func (c *Client) Episodes(ctx context.Context, mediaID string) ([]models.EpisodeRecord, error) {
	var episodes []models.EpisodeRecord

	for page := 1; page <= maxEpisodePages; page++ {
		var result struct {
			Data       []episodeItem `json:"data"`
			Pagination struct {
				HasNextPage bool `json:"has_next_page"`
			} `json:"pagination"`
		}
		err := c.doRequest(ctx, requestConfig{
			path:  fmt.Sprintf("/anime/%s/episodes", url.PathEscape(mediaID)),
			query: url.Values{"page": {strconv.Itoa(page)}},
		}, &result)
		if err != nil {
			return nil, err
		}

		for _, item := range result.Data {
			episodes = append(episodes, models.EpisodeRecord{
				Number:      item.MalID,
				Title:       item.Title,
				ReleaseDate: item.Aired,
			})
		}

		if !result.Pagination.HasNextPage {
			break
		}
	}

	return episodes, nil
}
