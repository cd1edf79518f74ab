// Metafuse - Cross-Provider Media Metadata Aggregation
// Copyright 2026 Kai Matsuda (kaimatsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaimatsu/metafuse

package mangadex

import (
	"context"
	"fmt"
	"net/url"

	"github.com/kaimatsu/metafuse/internal/models"
)

// localizedString is MangaDex's language-keyed string map.
type localizedString map[string]string

// preferred returns the English value, falling back to romanized Japanese,
// then any value.
func (l localizedString) preferred() string {
	for _, lang := range []string{"en", "ja-ro", "ja"} {
		if v := l[lang]; v != "" {
			return v
		}
	}
	for _, v := range l {
		if v != "" {
			return v
		}
	}
	return ""
}

type mangaData struct {
	ID         string `json:"id"`
	Attributes struct {
		Title       localizedString   `json:"title"`
		AltTitles   []localizedString `json:"altTitles"`
		Description localizedString   `json:"description"`
		Year        *int              `json:"year"`
		Status      string            `json:"status"`
		LastChapter string            `json:"lastChapter"`
		LastVolume  string            `json:"lastVolume"`
		Tags        []struct {
			Attributes struct {
				Name  localizedString `json:"name"`
				Group string          `json:"group"`
			} `json:"attributes"`
		} `json:"tags"`
	} `json:"attributes"`
	Relationships []struct {
		Type       string `json:"type"`
		Attributes struct {
			FileName string `json:"fileName"`
			Name     string `json:"name"`
		} `json:"attributes"`
	} `json:"relationships"`
}

// Search implements provider.Searcher. MangaDex serves manga only; other
// media types return no results rather than an error, so the fan-out treats
// it as an empty contribution for anime queries.
func (c *Client) Search(ctx context.Context, query string, mediaType models.MediaType) ([]models.MediaRecord, error) {
	if mediaType != models.MediaTypeManga && mediaType != models.MediaTypeNovel {
		return nil, nil
	}

	var result struct {
		Data []mangaData `json:"data"`
	}
	err := c.doRequest(ctx, requestConfig{
		path: "/manga",
		query: url.Values{
			"title":      {query},
			"limit":      {"10"},
			"includes[]": {"cover_art"},
		},
	}, &result)
	if err != nil {
		return nil, err
	}

	records := make([]models.MediaRecord, 0, len(result.Data))
	for _, m := range result.Data {
		records = append(records, m.toRecord())
	}
	return records, nil
}

func (m mangaData) toRecord() models.MediaRecord {
	rec := models.MediaRecord{
		ID:         m.ID,
		Provider:   models.ProviderMangaDex,
		Title:      m.Attributes.Title.preferred(),
		Type:       models.MediaTypeManga,
		Year:       m.Attributes.Year,
		CoverImage: m.coverURL(),
	}
	for _, alt := range m.Attributes.AltTitles {
		if v := alt.preferred(); v != "" {
			rec.Synonyms = append(rec.Synonyms, v)
		}
	}
	return rec
}

// Details implements provider.DetailsGetter.
func (c *Client) Details(ctx context.Context, mediaID string) (*models.MediaDetails, error) {
	var result struct {
		Data mangaData `json:"data"`
	}
	err := c.doRequest(ctx, requestConfig{
		path:  fmt.Sprintf("/manga/%s", url.PathEscape(mediaID)),
		query: url.Values{"includes[]": {"cover_art", "author", "artist"}},
	}, &result)
	if err != nil {
		return nil, err
	}
	return result.Data.toDetails(), nil
}

func (m mangaData) toDetails() *models.MediaDetails {
	d := &models.MediaDetails{
		ID:          m.ID,
		Provider:    models.ProviderMangaDex,
		Title:       m.Attributes.Title.preferred(),
		Description: m.Attributes.Description.preferred(),
		Type:        models.MediaTypeManga,
		Status:      m.Attributes.Status,
		CoverImage:  m.coverURL(),
	}

	for _, tag := range m.Attributes.Tags {
		name := tag.Attributes.Name.preferred()
		if name == "" {
			continue
		}
		if tag.Attributes.Group == "genre" {
			d.Genres = append(d.Genres, name)
		} else {
			d.Tags = append(d.Tags, name)
		}
	}

	for _, rel := range m.Relationships {
		if (rel.Type == "author" || rel.Type == "artist") && rel.Attributes.Name != "" {
			d.Staff = append(d.Staff, models.StaffMember{Name: rel.Attributes.Name, Role: rel.Type})
		}
	}

	return d
}

func (m mangaData) coverURL() string {
	for _, rel := range m.Relationships {
		if rel.Type == "cover_art" && rel.Attributes.FileName != "" {
			return fmt.Sprintf("%s/%s/%s", coverBaseURL, m.ID, rel.Attributes.FileName)
		}
	}
	return ""
}
