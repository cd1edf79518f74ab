// Metafuse - Cross-Provider Media Metadata Aggregation
// Copyright 2026 Kai Matsuda (kaimatsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaimatsu/metafuse

package aggregate

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/kaimatsu/metafuse/internal/models"
)

// sizeSuffixRe matches size decorations providers append to image paths:
// "poster-300x450.jpg", "cover_large.png", "art.600x338.webp". The extension
// is captured and restored on replacement.
var sizeSuffixRe = regexp.MustCompile(`[-_.](?:\d{2,4}x\d{2,4}|small|medium|large|original|thumb)(\.[a-z0-9]+)?$`)

// coverKeywords flag a URL as series-level art rather than an episode still.
var coverKeywords = []string{"cover", "poster"}

// normalizeImageURL lowercases an image URL and strips query parameters and
// size suffixes so the same asset served at different sizes compares equal.
func normalizeImageURL(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	if u, err := url.Parse(s); err == nil {
		u.RawQuery = ""
		u.Fragment = ""
		s = u.String()
	}
	return sizeSuffixRe.ReplaceAllString(s, "$1")
}

// imageBasePath returns the URL path up to the final segment.
func imageBasePath(raw string) string {
	u, err := url.Parse(strings.ToLower(raw))
	if err != nil {
		return ""
	}
	idx := strings.LastIndex(u.Path, "/")
	if idx <= 0 {
		return u.Host
	}
	return u.Host + u.Path[:idx]
}

// containsCoverKeyword reports whether the URL names series-level art.
func containsCoverKeyword(raw string) bool {
	s := strings.ToLower(raw)
	for _, kw := range coverKeywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// IsFallbackCover detects the "fallback cover image" case: an episode
// thumbnail that is actually the series' cover/poster reused as a
// placeholder. Detection is normalized-URL equality after stripping size
// suffixes, or a shared base path when the URL carries cover/poster keywords.
//
// The heuristic is best-effort; no ground-truth signal exists in the data,
// so false positives and negatives are possible.
func IsFallbackCover(thumbnail, coverImage string) bool {
	if thumbnail == "" || coverImage == "" {
		return false
	}

	if normalizeImageURL(thumbnail) == normalizeImageURL(coverImage) {
		return true
	}

	if containsCoverKeyword(thumbnail) {
		if bp := imageBasePath(thumbnail); bp != "" && bp == imageBasePath(coverImage) {
			return true
		}
	}
	return false
}

// ImageSet groups a provider's series-level art.
type ImageSet struct {
	CoverImage  string
	BannerImage string
}

// MergedImages is the result of MergeImages, with per-field attribution.
type MergedImages struct {
	CoverImage        string
	BannerImage       string
	CoverAttribution  models.ProviderID
	BannerAttribution models.ProviderID
}

// MergeImages selects cover and banner independently: the primary's image
// wins when present; otherwise the configured priority list is scanned for
// the first provider with that image type, falling back to any remaining
// provider when none in the priority list qualifies.
func (a *Aggregator) MergeImages(primaryProvider models.ProviderID, primary ImageSet, alternatives map[models.ProviderID]ImageSet) MergedImages {
	merged := MergedImages{
		CoverImage:        primary.CoverImage,
		BannerImage:       primary.BannerImage,
		CoverAttribution:  primaryProvider,
		BannerAttribution: primaryProvider,
	}

	if merged.CoverImage == "" {
		merged.CoverImage, merged.CoverAttribution = pickImage(a.priorities.ImagePriority, alternatives, func(s ImageSet) string { return s.CoverImage })
	}
	if merged.BannerImage == "" {
		merged.BannerImage, merged.BannerAttribution = pickImage(a.priorities.ImagePriority, alternatives, func(s ImageSet) string { return s.BannerImage })
	}
	return merged
}

// pickImage scans the priority list, then the remaining providers in stable
// order, for the first non-empty image.
func pickImage(priority []models.ProviderID, alternatives map[models.ProviderID]ImageSet, field func(ImageSet) string) (string, models.ProviderID) {
	seen := make(map[models.ProviderID]bool, len(priority))
	for _, id := range priority {
		seen[id] = true
		if img := field(alternatives[id]); img != "" {
			return img, id
		}
	}
	for _, id := range models.KnownProviders() {
		if seen[id] {
			continue
		}
		if img := field(alternatives[id]); img != "" {
			return img, id
		}
	}
	return "", ""
}
