// Metafuse - Cross-Provider Media Metadata Aggregation
// Copyright 2026 Kai Matsuda (kaimatsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaimatsu/metafuse

package match

import (
	"regexp"
	"strings"
)

// Normalization strips the decorations providers bolt onto titles (years,
// season markers, punctuation) so that "One Piece (2023)" and "One Piece
// Season 2" both compare as "one piece". The same normalization is applied
// everywhere titles are compared, including cache-key derivation.
var (
	parenYearRe    = regexp.MustCompile(`\s*\(\d{4}\)`)
	dashYearRe     = regexp.MustCompile(`\s*-\s*\d{4}\s*$`)
	trailingYearRe = regexp.MustCompile(`\s+\d{4}\s*$`)
	seasonWordRe   = regexp.MustCompile(`\bseason\s*\d+\b`)
	seasonShortRe  = regexp.MustCompile(`\bs\d+\b`)
	seasonOrdRe    = regexp.MustCompile(`\b\d+(?:st|nd|rd|th)\s+season\b`)
	nonAlnumRe     = regexp.MustCompile(`[^a-z0-9\s]+`)
	whitespaceRe   = regexp.MustCompile(`\s+`)
)

// NormalizeTitle lowercases a title and strips bracketed or suffixed 4-digit
// years, season markers and all non-alphanumeric characters, then collapses
// whitespace. Idempotent: NormalizeTitle(NormalizeTitle(s)) == NormalizeTitle(s).
func NormalizeTitle(title string) string {
	// Stripping can expose a new trailing year ("X 1999 2004"), so iterate
	// to a fixpoint. Titles converge in one or two passes.
	s := normalizeOnce(title)
	for {
		next := normalizeOnce(s)
		if next == s {
			return s
		}
		s = next
	}
}

func normalizeOnce(title string) string {
	s := strings.ToLower(title)

	s = parenYearRe.ReplaceAllString(s, " ")
	s = dashYearRe.ReplaceAllString(s, " ")
	s = trailingYearRe.ReplaceAllString(s, " ")

	s = seasonOrdRe.ReplaceAllString(s, " ")
	s = seasonWordRe.ReplaceAllString(s, " ")
	s = seasonShortRe.ReplaceAllString(s, " ")

	s = nonAlnumRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(s, " ")

	return strings.TrimSpace(s)
}

// levenshtein computes the edit distance between two strings using the
// two-row dynamic programming formulation. Operates on runes so multi-byte
// titles are measured in characters, not bytes.
func levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)

	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)

	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// Similarity returns 1 - levenshtein(a,b)/maxLen clamped to [0,1], computed
// on already-normalized titles. Two empty strings score zero: an absent title
// must not pass as a perfect match.
func Similarity(a, b string) float64 {
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 0
	}

	sim := 1.0 - float64(levenshtein(a, b))/float64(maxLen)
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
