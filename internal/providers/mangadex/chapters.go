// Metafuse - Cross-Provider Media Metadata Aggregation
// Copyright 2026 Kai Matsuda (kaimatsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaimatsu/metafuse

package mangadex

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/kaimatsu/metafuse/internal/models"
)

const (
	feedPageSize = 500
	maxFeedPages = 20
)

type chapterData struct {
	ID         string `json:"id"`
	Attributes struct {
		Chapter    string     `json:"chapter"` // "10" or "10.5"; empty for oneshots
		Title      string     `json:"title"`
		Pages      int        `json:"pages"`
		ReadableAt *time.Time `json:"readableAt"`
	} `json:"attributes"`
}

// Chapters implements provider.ChapterLister over the paginated English
// chapter feed. Entries without a parsable chapter number are skipped.
func (c *Client) Chapters(ctx context.Context, mediaID string) ([]models.ChapterRecord, error) {
	var chapters []models.ChapterRecord

	for page := 0; page < maxFeedPages; page++ {
		var result struct {
			Data  []chapterData `json:"data"`
			Total int           `json:"total"`
		}
		err := c.doRequest(ctx, requestConfig{
			path: fmt.Sprintf("/manga/%s/feed", url.PathEscape(mediaID)),
			query: url.Values{
				"translatedLanguage[]": {"en"},
				"order[chapter]":       {"asc"},
				"limit":                {strconv.Itoa(feedPageSize)},
				"offset":               {strconv.Itoa(page * feedPageSize)},
			},
		}, &result)
		if err != nil {
			return nil, err
		}

		for _, ch := range result.Data {
			number, err := strconv.ParseFloat(ch.Attributes.Chapter, 64)
			if err != nil {
				continue
			}
			chapters = append(chapters, models.ChapterRecord{
				Number:         number,
				Title:          ch.Attributes.Title,
				ReleaseDate:    ch.Attributes.ReadableAt,
				PageCount:      ch.Attributes.Pages,
				SourceProvider: models.ProviderMangaDex,
			})
		}

		if (page+1)*feedPageSize >= result.Total {
			break
		}
	}

	return chapters, nil
}
