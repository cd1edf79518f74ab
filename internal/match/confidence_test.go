// Metafuse - Cross-Provider Media Metadata Aggregation
// Copyright 2026 Kai Matsuda (kaimatsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaimatsu/metafuse

package match

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kaimatsu/metafuse/internal/models"
)

func intPtr(n int) *int { return &n }

func TestNarutoExactMatchScoresFullConfidence(t *testing.T) {
	primary := TitleSet{
		Title: "Naruto",
		Year:  intPtr(2002),
		Type:  models.MediaTypeAnime,
	}
	candidate := models.MediaRecord{
		ID:       "20",
		Provider: models.ProviderJikan,
		Title:    "Naruto",
		Year:     intPtr(2002),
		Type:     models.MediaTypeAnime,
	}

	// title similarity 1.0 * 0.8 + 0.10 year + 0.10 type = 1.0
	assert.InDelta(t, 1.0, CalculateMatchConfidence(primary, candidate), 1e-9)
}

func TestYearBonusTiers(t *testing.T) {
	primary := TitleSet{Title: "Monster", Year: intPtr(2004)}
	base := models.MediaRecord{Title: "Monster"}

	exact := base
	exact.Year = intPtr(2004)
	near := base
	near.Year = intPtr(2005)
	far := base
	far.Year = intPtr(2010)

	assert.InDelta(t, 0.90, CalculateMatchConfidence(primary, exact), 1e-9)
	assert.InDelta(t, 0.85, CalculateMatchConfidence(primary, near), 1e-9)
	assert.InDelta(t, 0.80, CalculateMatchConfidence(primary, far), 1e-9)
}

func TestYearBonusRequiresBothYears(t *testing.T) {
	primary := TitleSet{Title: "Monster"}
	candidate := models.MediaRecord{Title: "Monster", Year: intPtr(2004)}
	assert.InDelta(t, 0.80, CalculateMatchConfidence(primary, candidate), 1e-9)
}

func TestTypeBonus(t *testing.T) {
	primary := TitleSet{Title: "Berserk", Type: models.MediaTypeManga}

	same := models.MediaRecord{Title: "Berserk", Type: models.MediaTypeManga}
	other := models.MediaRecord{Title: "Berserk", Type: models.MediaTypeAnime}

	assert.InDelta(t, 0.90, CalculateMatchConfidence(primary, same), 1e-9)
	assert.InDelta(t, 0.80, CalculateMatchConfidence(primary, other), 1e-9)
}

func TestAlternateTitlesUseMaxSimilarity(t *testing.T) {
	primary := TitleSet{
		Title:        "SPY×FAMILY",
		EnglishTitle: "Spy x Family",
		RomajiTitle:  "Spy x Family",
	}
	candidate := models.MediaRecord{
		Title:        "Spy Family Part 2", // weaker primary-title similarity
		EnglishTitle: "Spy x Family",
	}

	withAlternates := CalculateMatchConfidence(primary, candidate)
	withoutAlternates := CalculateMatchConfidence(TitleSet{Title: "SPY×FAMILY"}, models.MediaRecord{Title: "Spy Family Part 2"})

	assert.Greater(t, withAlternates, withoutAlternates)
	assert.InDelta(t, 0.80, withAlternates, 1e-9, "english-title exact match should carry the base")
}

func TestConfidenceIsPureAndBounded(t *testing.T) {
	primary := TitleSet{Title: "Fullmetal Alchemist", Year: intPtr(2003), Type: models.MediaTypeAnime}
	candidates := []models.MediaRecord{
		{Title: "Fullmetal Alchemist", Year: intPtr(2003), Type: models.MediaTypeAnime},
		{Title: "Fullmetal Alchemist: Brotherhood", Year: intPtr(2009), Type: models.MediaTypeAnime},
		{Title: "Something Else Entirely"},
		{Title: ""},
	}

	for _, cand := range candidates {
		first := CalculateMatchConfidence(primary, cand)
		second := CalculateMatchConfidence(primary, cand)
		assert.Equal(t, first, second, "confidence must be deterministic for %q", cand.Title)
		assert.GreaterOrEqual(t, first, 0.0)
		assert.LessOrEqual(t, first, 1.0)
	}
}
