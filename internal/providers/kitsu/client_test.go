// Metafuse - Cross-Provider Media Metadata Aggregation
// Copyright 2026 Kai Matsuda (kaimatsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaimatsu/metafuse

package kitsu

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaimatsu/metafuse/internal/models"
)

func TestSearchAnime(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/anime", r.URL.Path)
		assert.Equal(t, "naruto", r.URL.Query().Get("filter[text]"))
		assert.Equal(t, "10", r.URL.Query().Get("page[limit]"))

		w.Header().Set("Content-Type", "application/vnd.api+json")
		_, _ = w.Write([]byte(`{"data":[{
			"id":"11","type":"anime",
			"attributes":{
				"canonicalTitle":"Naruto",
				"titles":{"en":"Naruto","en_jp":"Naruto","ja_jp":"ナルト"},
				"abbreviatedTitles":["NARUTO"],
				"startDate":"2002-10-03","subtype":"TV",
				"posterImage":{"large":"https://media.kitsu.example/11/large.jpg"}
			}
		}]}`))
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL))
	records, err := c.Search(context.Background(), "naruto", models.MediaTypeAnime)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "11", rec.ID)
	assert.Equal(t, models.ProviderKitsu, rec.Provider)
	assert.Equal(t, "Naruto", rec.Title)
	require.NotNil(t, rec.Year)
	assert.Equal(t, 2002, *rec.Year)
	assert.Equal(t, models.MediaTypeAnime, rec.Type)
}

func TestDetailsParsesRatingScale(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/anime/11", r.URL.Path)
		w.Header().Set("Content-Type", "application/vnd.api+json")
		_, _ = w.Write([]byte(`{"data":{
			"id":"11","type":"anime",
			"attributes":{
				"canonicalTitle":"Naruto","synopsis":"A ninja story.",
				"averageRating":"79.12","userCount":900000,"favoritesCount":30000,
				"startDate":"2002-10-03","endDate":"2007-02-08",
				"episodeCount":220,"episodeLength":23,"subtype":"TV","status":"finished",
				"posterImage":{"original":"https://media.kitsu.example/11/original.jpg"},
				"coverImage":{"original":"https://media.kitsu.example/11/cover.jpg"}
			}
		}}`))
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL))
	d, err := c.Details(context.Background(), "11")
	require.NoError(t, err)

	assert.InDelta(t, 79.12, d.AverageScore, 1e-9)
	assert.Equal(t, 900000, d.Popularity)
	assert.Equal(t, 220, d.Episodes)
	assert.Equal(t, "https://media.kitsu.example/11/cover.jpg", d.BannerImage)
	require.NotNil(t, d.EndDate)
	assert.Equal(t, 2007, d.EndDate.Year())
}

func TestEpisodesPaginates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.api+json")
		switch r.URL.Query().Get("page[offset]") {
		case "0":
			_, _ = w.Write([]byte(`{"meta":{"count":21},"data":[
				{"attributes":{"number":1,"canonicalTitle":"Enter: Naruto Uzumaki!","airdate":"2002-10-03",
				 "length":23,"thumbnail":{"original":"https://media.kitsu.example/ep1.jpg"}}},
				{"attributes":{"number":2}},{"attributes":{"number":3}},{"attributes":{"number":4}},
				{"attributes":{"number":5}},{"attributes":{"number":6}},{"attributes":{"number":7}},
				{"attributes":{"number":8}},{"attributes":{"number":9}},{"attributes":{"number":10}},
				{"attributes":{"number":11}},{"attributes":{"number":12}},{"attributes":{"number":13}},
				{"attributes":{"number":14}},{"attributes":{"number":15}},{"attributes":{"number":16}},
				{"attributes":{"number":17}},{"attributes":{"number":18}},{"attributes":{"number":19}},
				{"attributes":{"number":20}}
			]}`))
		case "20":
			_, _ = w.Write([]byte(`{"meta":{"count":21},"data":[
				{"attributes":{"number":21,"seasonNumber":1}}
			]}`))
		default:
			t.Errorf("unexpected offset %q", r.URL.Query().Get("page[offset]"))
		}
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL))
	episodes, err := c.Episodes(context.Background(), "11")
	require.NoError(t, err)
	require.Len(t, episodes, 21)

	assert.Equal(t, "Enter: Naruto Uzumaki!", episodes[0].Title)
	assert.Equal(t, "https://media.kitsu.example/ep1.jpg", episodes[0].Thumbnail)
	require.NotNil(t, episodes[20].SeasonNumber)
	assert.Equal(t, 1, *episodes[20].SeasonNumber)
}

func TestKitsuMediaType(t *testing.T) {
	assert.Equal(t, models.MediaTypeAnime, kitsuMediaType("anime", "TV"))
	assert.Equal(t, models.MediaTypeMovie, kitsuMediaType("anime", "movie"))
	assert.Equal(t, models.MediaTypeManga, kitsuMediaType("manga", "manga"))
	assert.Equal(t, models.MediaTypeNovel, kitsuMediaType("manga", "novel"))
}
