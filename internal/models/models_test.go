// Metafuse - Cross-Provider Media Metadata Aggregation
// Copyright 2026 Kai Matsuda (kaimatsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaimatsu/metafuse

package models

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProviderID(t *testing.T) {
	tests := []struct {
		in      string
		want    ProviderID
		wantErr bool
	}{
		{"anilist", ProviderAniList, false},
		{"AniList", ProviderAniList, false},
		{"  JIKAN  ", ProviderJikan, false},
		{"tmdb", ProviderTMDB, false},
		{"netflix", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseProviderID(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestProviderIDEqual(t *testing.T) {
	assert.True(t, ProviderAniList.Equal("AniList"))
	assert.True(t, ProviderID("TMDB").Equal(ProviderTMDB))
	assert.False(t, ProviderAniList.Equal(ProviderJikan))
}

func TestParseMediaType(t *testing.T) {
	assert.Equal(t, MediaTypeManga, ParseMediaType("MANGA"))
	assert.Equal(t, MediaTypeNovel, ParseMediaType("light_novel"))
	assert.Equal(t, MediaTypeAnime, ParseMediaType("something-else"))
	assert.Equal(t, MediaTypeAnime, ParseMediaType(""))
}

func TestCachedMappingJSONShape(t *testing.T) {
	m := CachedMapping{
		PrimaryProviderID: ProviderAniList,
		PrimaryMediaID:    "naruto|naruto|naruto|2002|anime",
		ProviderMappings: map[ProviderID]string{
			ProviderJikan: "20",
			ProviderKitsu: "11",
		},
	}

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var back CachedMapping
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, m.PrimaryProviderID, back.PrimaryProviderID)
	assert.Equal(t, m.ProviderMappings, back.ProviderMappings)
}

func TestEpisodeRecordSource(t *testing.T) {
	var ep EpisodeRecord
	ep.RecordSource(ProviderTMDB, EpisodeSource{Thumbnail: "https://img.example/still.jpg"})
	ep.RecordSource(ProviderJikan, EpisodeSource{Title: "Enter: Naruto Uzumaki!"})

	require.Len(t, ep.AlternativeData, 2)
	assert.Equal(t, "https://img.example/still.jpg", ep.AlternativeData[ProviderTMDB].Thumbnail)
}

func TestPlaceholderDetails(t *testing.T) {
	d := PlaceholderDetails(ProviderKitsu, "42", "Some Title")
	assert.Equal(t, ProviderKitsu, d.Provider)
	assert.Equal(t, "42", d.ID)
	assert.Equal(t, "Some Title", d.Title)
	assert.Empty(t, d.Description)
}
