// Metafuse - Cross-Provider Media Metadata Aggregation
// Copyright 2026 Kai Matsuda (kaimatsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaimatsu/metafuse

package jikan

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaimatsu/metafuse/internal/executor"
	"github.com/kaimatsu/metafuse/internal/models"
)

func TestSearchAnime(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/anime", r.URL.Path)
		assert.Equal(t, "one piece", r.URL.Query().Get("q"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[
			{"mal_id":21,"title":"One Piece","title_english":"One Piece",
			 "title_synonyms":["OP"],"type":"TV","year":1999,
			 "images":{"jpg":{"large_image_url":"https://cdn.mal.example/21l.jpg"}}}
		]}`))
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL))
	records, err := c.Search(context.Background(), "one piece", models.MediaTypeAnime)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "21", rec.ID)
	assert.Equal(t, models.ProviderJikan, rec.Provider)
	assert.Equal(t, models.MediaTypeAnime, rec.Type)
	require.NotNil(t, rec.Year)
	assert.Equal(t, 1999, *rec.Year)
	assert.Equal(t, "https://cdn.mal.example/21l.jpg", rec.CoverImage)
}

func TestSearchMangaUsesMangaResource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/manga", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL))
	records, err := c.Search(context.Background(), "berserk", models.MediaTypeManga)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDetailsFull(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/anime/21/full", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{
			"mal_id":21,"title":"One Piece","type":"TV","status":"Currently Airing",
			"synopsis":"Pirates.","episodes":1100,"duration":"24 min per ep",
			"score":8.7,"members":2400000,"favorites":220000,
			"aired":{"from":"1999-10-20T00:00:00+00:00"},
			"genres":[{"name":"Action"}],"themes":[{"name":"Pirates"}],
			"studios":[{"name":"Toei Animation"}],
			"trailer":{"youtube_id":"xyz","url":"https://youtu.be/xyz"},
			"relations":[{"relation":"Adaptation","entry":[{"mal_id":13,"name":"One Piece (manga)"}]}]
		}}`))
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL))
	d, err := c.Details(context.Background(), "21")
	require.NoError(t, err)

	assert.InDelta(t, 8.7, d.Rating, 1e-9)
	assert.Equal(t, 2400000, d.Popularity)
	assert.Equal(t, 24, d.DurationMinutes)
	assert.Equal(t, []string{"Action"}, d.Genres)
	assert.Equal(t, []string{"Pirates"}, d.Tags)
	require.Len(t, d.Studios, 1)
	assert.True(t, d.Studios[0].IsMain)
	require.Len(t, d.Relations, 1)
	assert.Equal(t, "adaptation", d.Relations[0].Kind)
	require.NotNil(t, d.Trailer)
	assert.Equal(t, "youtube", d.Trailer.Site)
	require.NotNil(t, d.StartDate)
	assert.Equal(t, 1999, d.StartDate.Year())
}

func TestEpisodesFollowsPagination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("page") {
		case "1":
			_, _ = w.Write([]byte(`{"data":[{"mal_id":1,"title":"Ep 1"},{"mal_id":2,"title":"Ep 2"}],
				"pagination":{"has_next_page":true}}`))
		case "2":
			_, _ = w.Write([]byte(`{"data":[{"mal_id":3,"title":"Ep 3"}],
				"pagination":{"has_next_page":false}}`))
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL))
	episodes, err := c.Episodes(context.Background(), "21")
	require.NoError(t, err)
	require.Len(t, episodes, 3)
	assert.Equal(t, 1, episodes[0].Number)
	assert.Equal(t, "Ep 3", episodes[2].Title)
}

func TestRateLimitSurfacesRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "4")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL))
	_, err := c.Episodes(context.Background(), "21")
	require.Error(t, err)
	_, limited := executor.IsRateLimited(err)
	assert.True(t, limited)
}

func TestParseDurationMinutes(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"24 min per ep", 24},
		{"1 hr 55 min", 115},
		{"2 hr", 120},
		{"Unknown", 0},
		{"", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseDurationMinutes(tt.in), tt.in)
	}
}
