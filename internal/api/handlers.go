// Metafuse - Cross-Provider Media Metadata Aggregation
// Copyright 2026 Kai Matsuda (kaimatsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaimatsu/metafuse

package api

import (
	"fmt"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/kaimatsu/metafuse/internal/aggregate"
	"github.com/kaimatsu/metafuse/internal/match"
	"github.com/kaimatsu/metafuse/internal/models"
)

// matchRequest is the shared request body: the primary record plus the
// titles the matcher scores against.
type matchRequest struct {
	PrimaryProvider string `json:"primary_provider"`
	PrimaryMediaID  string `json:"primary_media_id"`
	Title           string `json:"title"`
	EnglishTitle    string `json:"english_title,omitempty"`
	RomajiTitle     string `json:"romaji_title,omitempty"`
	Year            *int   `json:"year,omitempty"`
	Type            string `json:"type"`
	// CoverImage is the primary record's series cover, used to suppress
	// cover art masquerading as episode thumbnails.
	CoverImage string `json:"cover_image,omitempty"`
}

func (req *matchRequest) validate() error {
	if req.Title == "" {
		return fmt.Errorf("title is required")
	}
	if req.PrimaryMediaID == "" {
		return fmt.Errorf("primary_media_id is required")
	}
	if _, err := models.ParseProviderID(req.PrimaryProvider); err != nil {
		return fmt.Errorf("primary_provider: %w", err)
	}
	return nil
}

func (req *matchRequest) toMatchRequest() match.Request {
	provider, _ := models.ParseProviderID(req.PrimaryProvider)
	return match.Request{
		Title:           req.Title,
		EnglishTitle:    req.EnglishTitle,
		RomajiTitle:     req.RomajiTitle,
		Year:            req.Year,
		Type:            models.ParseMediaType(req.Type),
		PrimaryProvider: provider,
	}
}

func (req *matchRequest) primary() aggregate.Primary {
	provider, _ := models.ParseProviderID(req.PrimaryProvider)
	return aggregate.Primary{
		Provider: provider,
		MediaID:  req.PrimaryMediaID,
		Title:    req.Title,
	}
}

// covers collects each provider's series cover from the match results so
// episode aggregation can detect thumbnails that are really cover art.
// Cache-synthesized matches carry no source record and contribute nothing.
func (req *matchRequest) covers(matches map[models.ProviderID]models.ProviderMatch) map[models.ProviderID]string {
	covers := make(map[models.ProviderID]string, len(matches)+1)
	if req.CoverImage != "" {
		provider, _ := models.ParseProviderID(req.PrimaryProvider)
		covers[provider] = req.CoverImage
	}
	for provider, m := range matches {
		if m.SourceRecord != nil && m.SourceRecord.CoverImage != "" {
			covers[provider] = m.SourceRecord.CoverImage
		}
	}
	return covers
}

// findMatches resolves the primary record against every other provider.
func (rt *Router) findMatches(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeMatchRequest(w, r)
	if !ok {
		return
	}

	matches := rt.matcher.FindMatches(r.Context(), req.toMatchRequest())
	respondJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

// aggregateDetails matches, then merges full detail records.
func (rt *Router) aggregateDetails(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeMatchRequest(w, r)
	if !ok {
		return
	}

	matches := rt.matcher.FindMatches(r.Context(), req.toMatchRequest())
	details := rt.aggregator.AggregateMediaDetails(r.Context(), aggregate.DetailsRequest{
		Primary: req.primary(),
		Matches: matches,
	}, rt.registry.DetailsFetcher())

	respondJSON(w, http.StatusOK, details)
}

// aggregateEpisodes matches, then merges episode lists.
func (rt *Router) aggregateEpisodes(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeMatchRequest(w, r)
	if !ok {
		return
	}

	matches := rt.matcher.FindMatches(r.Context(), req.toMatchRequest())
	episodes := rt.aggregator.AggregateEpisodes(r.Context(), aggregate.EpisodeRequest{
		Primary: req.primary(),
		Matches: matches,
		Covers:  req.covers(matches),
	}, rt.registry.EpisodeFetcher())

	respondJSON(w, http.StatusOK, map[string]any{"episodes": episodes})
}

// aggregateChapters matches, then merges chapter lists.
func (rt *Router) aggregateChapters(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeMatchRequest(w, r)
	if !ok {
		return
	}

	matches := rt.matcher.FindMatches(r.Context(), req.toMatchRequest())
	chapters := rt.aggregator.AggregateChapters(r.Context(), aggregate.ChapterRequest{
		Primary: req.primary(),
		Matches: matches,
	}, rt.registry.ChapterFetcher())

	respondJSON(w, http.StatusOK, map[string]any{"chapters": chapters})
}

func decodeMatchRequest(w http.ResponseWriter, r *http.Request) (*matchRequest, bool) {
	var req matchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return nil, false
	}
	if err := req.validate(); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return nil, false
	}
	return &req, true
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]string{"error": err.Error()})
}
