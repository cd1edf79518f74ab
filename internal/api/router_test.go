// Metafuse - Cross-Provider Media Metadata Aggregation
// Copyright 2026 Kai Matsuda (kaimatsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaimatsu/metafuse

package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaimatsu/metafuse/internal/aggregate"
	"github.com/kaimatsu/metafuse/internal/executor"
	"github.com/kaimatsu/metafuse/internal/match"
	"github.com/kaimatsu/metafuse/internal/models"
	"github.com/kaimatsu/metafuse/internal/provider"
)

// fakeCatalog serves canned data for one provider.
type fakeCatalog struct {
	id       models.ProviderID
	records  []models.MediaRecord
	episodes []models.EpisodeRecord
	chapters []models.ChapterRecord
	details  *models.MediaDetails
}

func (f *fakeCatalog) ID() models.ProviderID { return f.id }

func (f *fakeCatalog) Search(_ context.Context, _ string, _ models.MediaType) ([]models.MediaRecord, error) {
	return f.records, nil
}

func (f *fakeCatalog) Episodes(_ context.Context, _ string) ([]models.EpisodeRecord, error) {
	return f.episodes, nil
}

func (f *fakeCatalog) Chapters(_ context.Context, _ string) ([]models.ChapterRecord, error) {
	return f.chapters, nil
}

func (f *fakeCatalog) Details(_ context.Context, _ string) (*models.MediaDetails, error) {
	return f.details, nil
}

func fastPolicy(models.ProviderID) executor.Policy {
	return executor.Policy{MaxAttempts: 1, InitialDelay: time.Millisecond, Multiplier: 1.0, MaxDelay: time.Millisecond}
}

func newTestHandler(t *testing.T, clients ...provider.Client) http.Handler {
	t.Helper()

	reg := provider.NewRegistry(clients...)
	exec := executor.New()
	matcher := match.New(exec, reg.SearchFunc(),
		match.WithProviders(reg.IDs()),
		match.WithPolicyFor(fastPolicy),
	)
	agg := aggregate.New(exec, aggregate.DefaultPriorityConfig(),
		aggregate.WithPolicyFor(fastPolicy),
	)
	return NewRouter(matcher, agg, reg, RouterConfig{}).Handler()
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func animeClient(id models.ProviderID, mediaID string) *fakeCatalog {
	year := 2016
	return &fakeCatalog{
		id: id,
		records: []models.MediaRecord{{
			ID:       mediaID,
			Provider: id,
			Title:    "Spring City Blues",
			Year:     &year,
			Type:     models.MediaTypeAnime,
		}},
	}
}

func TestHealthz(t *testing.T) {
	h := newTestHandler(t, animeClient(models.ProviderAniList, "101"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status    string   `json:"status"`
		Providers []string `json:"providers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, []string{"anilist"}, body.Providers)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestHandler(t, animeClient(models.ProviderAniList, "101"))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestFindMatches(t *testing.T) {
	h := newTestHandler(t,
		animeClient(models.ProviderAniList, "101"),
		animeClient(models.ProviderKitsu, "kit-9"),
	)

	year := 2016
	rec := postJSON(t, h, "/api/v1/match", matchRequest{
		PrimaryProvider: "anilist",
		PrimaryMediaID:  "101",
		Title:           "Spring City Blues",
		Year:            &year,
		Type:            "anime",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Matches map[string]models.ProviderMatch `json:"matches"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body.Matches, "kitsu")
	assert.Equal(t, "kit-9", body.Matches["kitsu"].ProviderMediaID)
	assert.GreaterOrEqual(t, body.Matches["kitsu"].Confidence, 0.8)
	assert.NotContains(t, body.Matches, "anilist")
}

func TestFindMatchesRejectsBadRequests(t *testing.T) {
	h := newTestHandler(t, animeClient(models.ProviderAniList, "101"))

	cases := []struct {
		name string
		body matchRequest
	}{
		{"missing title", matchRequest{PrimaryProvider: "anilist", PrimaryMediaID: "101"}},
		{"missing media id", matchRequest{PrimaryProvider: "anilist", Title: "x"}},
		{"unknown provider", matchRequest{PrimaryProvider: "netflix", PrimaryMediaID: "101", Title: "x"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, h, "/api/v1/match", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestFindMatchesRejectsMalformedJSON(t *testing.T) {
	h := newTestHandler(t, animeClient(models.ProviderAniList, "101"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/match", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAggregateEpisodes(t *testing.T) {
	primary := animeClient(models.ProviderAniList, "101")
	for n := 1; n <= 3; n++ {
		primary.episodes = append(primary.episodes, models.EpisodeRecord{
			Number: n,
			Title:  fmt.Sprintf("Episode %d", n),
		})
	}
	other := animeClient(models.ProviderKitsu, "kit-9")
	other.episodes = []models.EpisodeRecord{
		{Number: 1, Thumbnail: "https://media.kitsu.app/ep/1.jpg"},
	}

	h := newTestHandler(t, primary, other)

	year := 2016
	rec := postJSON(t, h, "/api/v1/aggregate/episodes", matchRequest{
		PrimaryProvider: "anilist",
		PrimaryMediaID:  "101",
		Title:           "Spring City Blues",
		Year:            &year,
		Type:            "anime",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Episodes []models.EpisodeRecord `json:"episodes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Episodes, 3)
	assert.Equal(t, "Episode 1", body.Episodes[0].Title)
	assert.Equal(t, "https://media.kitsu.app/ep/1.jpg", body.Episodes[0].Thumbnail)
}

func TestAggregateEpisodesSuppressesCoverArtThumbnails(t *testing.T) {
	primary := animeClient(models.ProviderAniList, "101")
	for n := 1; n <= 3; n++ {
		primary.episodes = append(primary.episodes, models.EpisodeRecord{Number: n})
	}

	other := animeClient(models.ProviderTMDB, "5512")
	other.records[0].CoverImage = "https://tmdb.example/poster-original.jpg"
	other.episodes = []models.EpisodeRecord{
		{Number: 1, Thumbnail: "https://tmdb.example/poster-300x450.jpg"},
	}

	h := newTestHandler(t, primary, other)

	year := 2016
	rec := postJSON(t, h, "/api/v1/aggregate/episodes", matchRequest{
		PrimaryProvider: "anilist",
		PrimaryMediaID:  "101",
		Title:           "Spring City Blues",
		Year:            &year,
		Type:            "anime",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Episodes []models.EpisodeRecord `json:"episodes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Episodes, 3)
	// The match carried the series poster as cover; the same asset at a
	// different size must not surface as an episode thumbnail.
	assert.NotEqual(t, "https://tmdb.example/poster-300x450.jpg", body.Episodes[0].Thumbnail)
	assert.Empty(t, body.Episodes[0].Thumbnail)
}

func TestAggregateChapters(t *testing.T) {
	primary := &fakeCatalog{
		id: models.ProviderMangaDex,
		records: []models.MediaRecord{{
			ID:       "md-1",
			Provider: models.ProviderMangaDex,
			Title:    "Paper Lantern",
			Type:     models.MediaTypeManga,
		}},
		chapters: []models.ChapterRecord{
			{Number: 1, Title: "Opening"},
			{Number: 2},
		},
	}

	h := newTestHandler(t, primary)

	rec := postJSON(t, h, "/api/v1/aggregate/chapters", matchRequest{
		PrimaryProvider: "mangadex",
		PrimaryMediaID:  "md-1",
		Title:           "Paper Lantern",
		Type:            "manga",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Chapters []models.ChapterRecord `json:"chapters"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Chapters, 2)
	assert.Equal(t, "Opening", body.Chapters[0].Title)
}

func TestAggregateDetails(t *testing.T) {
	primary := animeClient(models.ProviderAniList, "101")
	primary.details = &models.MediaDetails{
		ID:           "101",
		Provider:     models.ProviderAniList,
		Title:        "Spring City Blues",
		Description:  "A quiet town, a loud spring.",
		AverageScore: 81,
	}
	other := animeClient(models.ProviderKitsu, "kit-9")
	other.details = &models.MediaDetails{
		ID:           "kit-9",
		Provider:     models.ProviderKitsu,
		Title:        "Spring City Blues",
		AverageScore: 84,
		Popularity:   12000,
	}

	h := newTestHandler(t, primary, other)

	year := 2016
	rec := postJSON(t, h, "/api/v1/aggregate/details", matchRequest{
		PrimaryProvider: "anilist",
		PrimaryMediaID:  "101",
		Title:           "Spring City Blues",
		Year:            &year,
		Type:            "anime",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body models.AggregatedDetails
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "A quiet town, a loud spring.", body.Description)
	assert.InDelta(t, 84, body.AverageScore, 0.001)
	assert.Equal(t, 12000, body.Popularity)
	assert.Contains(t, body.ContributingProviders, models.ProviderKitsu)
}
