// Metafuse - Cross-Provider Media Metadata Aggregation
// Copyright 2026 Kai Matsuda (kaimatsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaimatsu/metafuse

package anilist

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/kaimatsu/metafuse/internal/models"
)

const detailsQuery = `
query ($id: Int) {
  Media(id: $id) {
    id
    type
    format
    status
    description(asHtml: false)
    seasonYear
    startDate { year month day }
    endDate { year month day }
    episodes
    chapters
    volumes
    duration
    averageScore
    meanScore
    popularity
    favourites
    genres
    synonyms
    title { romaji english native }
    coverImage { extraLarge large }
    bannerImage
    tags { name }
    trailer { id site }
    studios { edges { isMain node { name } } }
    characters(perPage: 25, sort: ROLE) {
      edges {
        role
        voiceActors(language: JAPANESE) { name { full } }
        node { name { full native } image { large } }
      }
    }
    staff(perPage: 25) {
      edges { role node { name { full native } image { large } } }
    }
    relations {
      edges { relationType node { id title { romaji english } } }
    }
    recommendations(perPage: 10, sort: RATING_DESC) {
      nodes {
        rating
        mediaRecommendation { id title { romaji english } coverImage { large } }
      }
    }
  }
}`

type detailsMedia struct {
	ID           int        `json:"id"`
	Type         string     `json:"type"`
	Format       string     `json:"format"`
	Status       string     `json:"status"`
	Description  string     `json:"description"`
	SeasonYear   *int       `json:"seasonYear"`
	StartDate    *fuzzyDate `json:"startDate"`
	EndDate      *fuzzyDate `json:"endDate"`
	Episodes     int        `json:"episodes"`
	Chapters     int        `json:"chapters"`
	Volumes      int        `json:"volumes"`
	Duration     int        `json:"duration"`
	AverageScore float64    `json:"averageScore"`
	MeanScore    float64    `json:"meanScore"`
	Popularity   int        `json:"popularity"`
	Favourites   int        `json:"favourites"`
	Genres       []string   `json:"genres"`
	Title        mediaTitle `json:"title"`
	CoverImage   struct {
		ExtraLarge string `json:"extraLarge"`
		Large      string `json:"large"`
	} `json:"coverImage"`
	BannerImage string `json:"bannerImage"`
	Tags        []struct {
		Name string `json:"name"`
	} `json:"tags"`
	Trailer *struct {
		ID   string `json:"id"`
		Site string `json:"site"`
	} `json:"trailer"`
	Studios struct {
		Edges []struct {
			IsMain bool `json:"isMain"`
			Node   struct {
				Name string `json:"name"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"studios"`
	Characters struct {
		Edges []characterEdge `json:"edges"`
	} `json:"characters"`
	Staff struct {
		Edges []staffEdge `json:"edges"`
	} `json:"staff"`
	Relations struct {
		Edges []relationEdge `json:"edges"`
	} `json:"relations"`
	Recommendations struct {
		Nodes []recommendationNode `json:"nodes"`
	} `json:"recommendations"`
}

type characterEdge struct {
	Role        string `json:"role"`
	VoiceActors []struct {
		Name struct {
			Full string `json:"full"`
		} `json:"name"`
	} `json:"voiceActors"`
	Node struct {
		Name struct {
			Full   string `json:"full"`
			Native string `json:"native"`
		} `json:"name"`
		Image struct {
			Large string `json:"large"`
		} `json:"image"`
	} `json:"node"`
}

type staffEdge struct {
	Role string `json:"role"`
	Node struct {
		Name struct {
			Full   string `json:"full"`
			Native string `json:"native"`
		} `json:"name"`
		Image struct {
			Large string `json:"large"`
		} `json:"image"`
	} `json:"node"`
}

type relationEdge struct {
	RelationType string `json:"relationType"`
	Node         struct {
		ID    int        `json:"id"`
		Title mediaTitle `json:"title"`
	} `json:"node"`
}

type recommendationNode struct {
	Rating              float64 `json:"rating"`
	MediaRecommendation *struct {
		ID         int        `json:"id"`
		Title      mediaTitle `json:"title"`
		CoverImage struct {
			Large string `json:"large"`
		} `json:"coverImage"`
	} `json:"mediaRecommendation"`
}

// Details implements provider.DetailsGetter.
func (c *Client) Details(ctx context.Context, mediaID string) (*models.MediaDetails, error) {
	id, err := strconv.Atoi(mediaID)
	if err != nil {
		return nil, fmt.Errorf("anilist media id %q: %w", mediaID, err)
	}

	var result struct {
		Media detailsMedia `json:"Media"`
	}
	if err := c.post(ctx, detailsQuery, map[string]any{"id": id}, &result); err != nil {
		return nil, err
	}
	return result.Media.toDetails(), nil
}

func (m detailsMedia) toDetails() *models.MediaDetails {
	d := &models.MediaDetails{
		ID:           strconv.Itoa(m.ID),
		Provider:     models.ProviderAniList,
		Title:        firstNonEmpty(m.Title.English, m.Title.Romaji, m.Title.Native),
		EnglishTitle: m.Title.English,
		RomajiTitle:  m.Title.Romaji,
		Description:  m.Description,
		Type:         mediaTypeFrom(m.Type, m.Format),
		Format:       m.Format,
		Status:       m.Status,
		CoverImage:   firstNonEmpty(m.CoverImage.ExtraLarge, m.CoverImage.Large),
		BannerImage:  m.BannerImage,
		AverageScore: m.AverageScore,
		MeanScore:    m.MeanScore,
		Popularity:   m.Popularity,
		Favorites:    m.Favourites,
		Episodes:     m.Episodes,
		Chapters:     m.Chapters,
		Volumes:      m.Volumes,

		DurationMinutes: m.Duration,
		StartDate:       m.StartDate.toTime(),
		EndDate:         m.EndDate.toTime(),
		Genres:          m.Genres,
	}

	for _, t := range m.Tags {
		d.Tags = append(d.Tags, t.Name)
	}

	for _, e := range m.Characters.Edges {
		ch := models.Character{
			Name:       e.Node.Name.Full,
			NativeName: e.Node.Name.Native,
			Image:      e.Node.Image.Large,
			Role:       e.Role,
		}
		if len(e.VoiceActors) > 0 {
			ch.VoiceActor = e.VoiceActors[0].Name.Full
		}
		d.Characters = append(d.Characters, ch)
	}

	for _, e := range m.Staff.Edges {
		d.Staff = append(d.Staff, models.StaffMember{
			Name:       e.Node.Name.Full,
			NativeName: e.Node.Name.Native,
			Image:      e.Node.Image.Large,
			Role:       e.Role,
		})
	}

	for _, e := range m.Studios.Edges {
		d.Studios = append(d.Studios, models.Studio{Name: e.Node.Name, IsMain: e.IsMain})
	}

	for _, e := range m.Relations.Edges {
		d.Relations = append(d.Relations, models.Relation{
			MediaID:  strconv.Itoa(e.Node.ID),
			Provider: models.ProviderAniList,
			Title:    firstNonEmpty(e.Node.Title.English, e.Node.Title.Romaji),
			Kind:     e.RelationType,
		})
	}

	for _, n := range m.Recommendations.Nodes {
		if n.MediaRecommendation == nil {
			continue
		}
		d.Recommendations = append(d.Recommendations, models.Recommendation{
			Title:      firstNonEmpty(n.MediaRecommendation.Title.English, n.MediaRecommendation.Title.Romaji),
			MediaID:    strconv.Itoa(n.MediaRecommendation.ID),
			Provider:   models.ProviderAniList,
			CoverImage: n.MediaRecommendation.CoverImage.Large,
			Rating:     n.Rating,
		})
	}

	if m.Trailer != nil && m.Trailer.ID != "" {
		d.Trailer = &models.Trailer{Site: m.Trailer.Site, ID: m.Trailer.ID}
		if m.Trailer.Site == "youtube" {
			d.Trailer.URL = "https://www.youtube.com/watch?v=" + m.Trailer.ID
		}
	}

	return d
}

// toTime converts a fuzzy date to a time, defaulting missing month and day
// to 1. Nil when the year is absent.
func (f *fuzzyDate) toTime() *time.Time {
	if f == nil || f.Year == nil {
		return nil
	}
	month, day := 1, 1
	if f.Month != nil && *f.Month > 0 {
		month = *f.Month
	}
	if f.Day != nil && *f.Day > 0 {
		day = *f.Day
	}
	t := time.Date(*f.Year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return &t
}
