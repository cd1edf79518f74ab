// Metafuse - Cross-Provider Media Metadata Aggregation
// Copyright 2026 Kai Matsuda (kaimatsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaimatsu/metafuse

// Package tmdb is a thin client for The Movie Database API, covering TV and
// movie search, details, per-season episode lists and season metadata. It is
// the season authority for episode aggregation.
package tmdb

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/kaimatsu/metafuse/internal/executor"
	"github.com/kaimatsu/metafuse/internal/models"
)

const (
	defaultBaseURL = "https://api.themoviedb.org/3"
	imageBaseURL   = "https://image.tmdb.org/t/p/original"
)

// Client talks to the TMDB REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL, mainly for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a TMDB client. The API key is required by every endpoint.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, apply := range opts {
		apply(c)
	}
	return c
}

// ID implements provider.Client.
func (c *Client) ID() models.ProviderID { return models.ProviderTMDB }

// requestConfig holds configuration for building API requests.
type requestConfig struct {
	path  string
	query url.Values
}

// doRequest executes one GET request with the API key attached and decodes
// the response into result. Non-200 responses become HTTPErrors so the
// executor can classify them.
func (c *Client) doRequest(ctx context.Context, cfg requestConfig, result any) error {
	reqURL := fmt.Sprintf("%s%s", c.baseURL, cfg.path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	query := cfg.query
	if query == nil {
		query = url.Values{}
	}
	query.Set("api_key", c.apiKey)
	req.URL.RawQuery = query.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tmdb request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return executor.NewHTTPError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// imageURL prefixes a TMDB image path with the CDN base. Empty in, empty out.
func imageURL(path string) string {
	if path == "" {
		return ""
	}
	return imageBaseURL + path
}
