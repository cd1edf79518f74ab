// Metafuse - Cross-Provider Media Metadata Aggregation
// Copyright 2026 Kai Matsuda (kaimatsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaimatsu/metafuse

package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kaimatsu/metafuse/internal/models"
)

func TestIsFallbackCover(t *testing.T) {
	tests := []struct {
		name      string
		thumbnail string
		cover     string
		want      bool
	}{
		{
			name:      "identical URLs",
			thumbnail: "https://cdn.example/art/poster.jpg",
			cover:     "https://cdn.example/art/poster.jpg",
			want:      true,
		},
		{
			name:      "same asset at different sizes",
			thumbnail: "https://cdn.example/art/poster-300x450.jpg",
			cover:     "https://cdn.example/art/poster-large.jpg",
			want:      true,
		},
		{
			name:      "query parameters ignored",
			thumbnail: "https://cdn.example/art/key.png?width=200",
			cover:     "https://cdn.example/art/key.png",
			want:      true,
		},
		{
			name:      "case differences ignored",
			thumbnail: "https://CDN.example/Art/Poster.jpg",
			cover:     "https://cdn.example/art/poster.jpg",
			want:      true,
		},
		{
			name:      "cover keyword with shared base path",
			thumbnail: "https://cdn.example/series/42/cover-variant-b.jpg",
			cover:     "https://cdn.example/series/42/main.jpg",
			want:      true,
		},
		{
			name:      "genuine episode still",
			thumbnail: "https://cdn.example/stills/s1e4.jpg",
			cover:     "https://cdn.example/art/poster.jpg",
			want:      false,
		},
		{
			name:      "shared base path without cover keyword",
			thumbnail: "https://cdn.example/art/still-s1e4.jpg",
			cover:     "https://cdn.example/art/main.jpg",
			want:      false,
		},
		{
			name:      "empty thumbnail",
			thumbnail: "",
			cover:     "https://cdn.example/art/poster.jpg",
			want:      false,
		},
		{
			name:      "empty cover",
			thumbnail: "https://cdn.example/art/poster.jpg",
			cover:     "",
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsFallbackCover(tt.thumbnail, tt.cover))
		})
	}
}

func TestNormalizeImageURL(t *testing.T) {
	assert.Equal(t,
		"https://cdn.example/a/poster.jpg",
		normalizeImageURL("https://cdn.example/a/poster-600x900.jpg?quality=80#frag"))
	assert.Equal(t,
		"https://cdn.example/a/poster",
		normalizeImageURL("https://cdn.example/a/poster.thumb"))
	assert.Empty(t, normalizeImageURL("  "))
}

func TestMergeImagesPrimaryWins(t *testing.T) {
	agg := newTestAggregator(t)

	merged := agg.MergeImages(models.ProviderJikan,
		ImageSet{CoverImage: "https://jikan.example/cover.jpg"},
		map[models.ProviderID]ImageSet{
			models.ProviderAniList: {CoverImage: "https://anilist.example/cover.jpg", BannerImage: "https://anilist.example/banner.jpg"},
		})

	assert.Equal(t, "https://jikan.example/cover.jpg", merged.CoverImage)
	assert.Equal(t, models.ProviderJikan, merged.CoverAttribution)

	// The primary has no banner; AniList leads the image priority.
	assert.Equal(t, "https://anilist.example/banner.jpg", merged.BannerImage)
	assert.Equal(t, models.ProviderAniList, merged.BannerAttribution)
}

func TestMergeImagesFallsBackPastPriorityList(t *testing.T) {
	agg := newTestAggregator(t)

	// Only simkl, absent from the image priority list, has a cover.
	merged := agg.MergeImages(models.ProviderAniList,
		ImageSet{},
		map[models.ProviderID]ImageSet{
			models.ProviderSimkl: {CoverImage: "https://simkl.example/cover.jpg"},
		})

	assert.Equal(t, "https://simkl.example/cover.jpg", merged.CoverImage)
	assert.Equal(t, models.ProviderSimkl, merged.CoverAttribution)
	assert.Empty(t, merged.BannerImage)
}
