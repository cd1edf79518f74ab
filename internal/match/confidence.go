// Metafuse - Cross-Provider Media Metadata Aggregation
// Copyright 2026 Kai Matsuda (kaimatsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaimatsu/metafuse

package match

import "github.com/kaimatsu/metafuse/internal/models"

// Confidence weighting: title similarity dominates; year and type are
// tie-breaking bonuses, not requirements. A title-only match can still clear
// the 0.8 threshold when the titles are near-identical.
const (
	titleWeight    = 0.8
	yearExactBonus = 0.10
	yearNearBonus  = 0.05
	typeBonus      = 0.10
)

// TitleSet carries the primary record's titles for confidence scoring.
type TitleSet struct {
	Title        string
	EnglishTitle string
	RomajiTitle  string
	Year         *int
	Type         models.MediaType
}

// CalculateMatchConfidence scores how likely candidate is the same title as
// primary. Pure: identical inputs always yield the identical score, in [0,1].
//
// Similarity is computed on normalized primary titles, and independently on
// normalized English and Romaji titles when both sides supply them; the
// maximum of the available similarities forms the base. Final score is
// 0.8*titleSimilarity + yearBonus + typeBonus, clamped to [0,1].
func CalculateMatchConfidence(primary TitleSet, candidate models.MediaRecord) float64 {
	titleSim := Similarity(NormalizeTitle(primary.Title), NormalizeTitle(candidate.Title))

	if primary.EnglishTitle != "" && candidate.EnglishTitle != "" {
		if sim := Similarity(NormalizeTitle(primary.EnglishTitle), NormalizeTitle(candidate.EnglishTitle)); sim > titleSim {
			titleSim = sim
		}
	}
	if primary.RomajiTitle != "" && candidate.RomajiTitle != "" {
		if sim := Similarity(NormalizeTitle(primary.RomajiTitle), NormalizeTitle(candidate.RomajiTitle)); sim > titleSim {
			titleSim = sim
		}
	}

	score := titleWeight * titleSim

	if primary.Year != nil && candidate.Year != nil {
		diff := *primary.Year - *candidate.Year
		if diff < 0 {
			diff = -diff
		}
		switch diff {
		case 0:
			score += yearExactBonus
		case 1:
			score += yearNearBonus
		}
	}

	if primary.Type != "" && primary.Type == candidate.Type {
		score += typeBonus
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
