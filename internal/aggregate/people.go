// Metafuse - Cross-Provider Media Metadata Aggregation
// Copyright 2026 Kai Matsuda (kaimatsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaimatsu/metafuse

package aggregate

import (
	"github.com/kaimatsu/metafuse/internal/match"
	"github.com/kaimatsu/metafuse/internal/models"
)

// characterScore counts the populated enrichment fields on a character.
// Merging keeps the most complete version of each person.
func characterScore(c models.Character) int {
	score := 0
	if c.Image != "" {
		score++
	}
	if c.NativeName != "" {
		score++
	}
	if c.Role != "" {
		score++
	}
	return score
}

func staffScore(s models.StaffMember) int {
	score := 0
	if s.Image != "" {
		score++
	}
	if s.NativeName != "" {
		score++
	}
	if s.Role != "" {
		score++
	}
	return score
}

// MergeCharacters deduplicates cast lists across providers by normalized
// name, keeping the most complete entry for each character. Ties keep the
// first-seen entry; input order follows the given provider order.
func MergeCharacters(lists ...[]models.Character) []models.Character {
	var (
		order []string
		best  = make(map[string]models.Character)
	)
	for _, list := range lists {
		for _, c := range list {
			key := match.NormalizeTitle(c.Name)
			if key == "" {
				continue
			}
			existing, seen := best[key]
			if !seen {
				order = append(order, key)
				best[key] = c
				continue
			}
			if characterScore(c) > characterScore(existing) {
				best[key] = c
			}
		}
	}

	merged := make([]models.Character, 0, len(order))
	for _, key := range order {
		merged = append(merged, best[key])
	}
	return merged
}

// MergeStaff deduplicates staff lists the same way as MergeCharacters.
func MergeStaff(lists ...[]models.StaffMember) []models.StaffMember {
	var (
		order []string
		best  = make(map[string]models.StaffMember)
	)
	for _, list := range lists {
		for _, s := range list {
			key := match.NormalizeTitle(s.Name)
			if key == "" {
				continue
			}
			existing, seen := best[key]
			if !seen {
				order = append(order, key)
				best[key] = s
				continue
			}
			if staffScore(s) > staffScore(existing) {
				best[key] = s
			}
		}
	}

	merged := make([]models.StaffMember, 0, len(order))
	for _, key := range order {
		merged = append(merged, best[key])
	}
	return merged
}

// MergeRecommendations deduplicates recommendation lists by normalized
// title, keeping the entry with the higher provider-native rating. Ties keep
// the first-seen entry.
func MergeRecommendations(lists ...[]models.Recommendation) []models.Recommendation {
	var (
		order []string
		best  = make(map[string]models.Recommendation)
	)
	for _, list := range lists {
		for _, r := range list {
			key := match.NormalizeTitle(r.Title)
			if key == "" {
				continue
			}
			existing, seen := best[key]
			if !seen {
				order = append(order, key)
				best[key] = r
				continue
			}
			if r.Rating > existing.Rating {
				best[key] = r
			}
		}
	}

	merged := make([]models.Recommendation, 0, len(order))
	for _, key := range order {
		merged = append(merged, best[key])
	}
	return merged
}
