// Metafuse - Cross-Provider Media Metadata Aggregation
// Copyright 2026 Kai Matsuda (kaimatsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaimatsu/metafuse

// Package api exposes the matcher and aggregator over HTTP with Chi routing.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kaimatsu/metafuse/internal/aggregate"
	"github.com/kaimatsu/metafuse/internal/logging"
	"github.com/kaimatsu/metafuse/internal/match"
	"github.com/kaimatsu/metafuse/internal/provider"
)

// RouterConfig tunes the HTTP surface.
type RouterConfig struct {
	// RateLimitReqs per RateLimitWindow per client IP; 0 disables limiting.
	RateLimitReqs   int
	RateLimitWindow time.Duration
}

// Router assembles the HTTP handler tree from the injected components.
type Router struct {
	matcher    *match.Matcher
	aggregator *aggregate.Aggregator
	registry   *provider.Registry
	cfg        RouterConfig
}

// NewRouter creates a Router over the given components.
func NewRouter(m *match.Matcher, a *aggregate.Aggregator, reg *provider.Registry, cfg RouterConfig) *Router {
	return &Router{matcher: m, aggregator: a, registry: reg, cfg: cfg}
}

// Handler builds the chi handler tree.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogging)

	r.Get("/healthz", rt.health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if rt.cfg.RateLimitReqs > 0 {
			r.Use(httprate.Limit(
				rt.cfg.RateLimitReqs,
				rt.cfg.RateLimitWindow,
				httprate.WithKeyFuncs(httprate.KeyByIP),
			))
		}

		r.Post("/match", rt.findMatches)
		r.Route("/aggregate", func(r chi.Router) {
			r.Post("/details", rt.aggregateDetails)
			r.Post("/episodes", rt.aggregateEpisodes)
			r.Post("/chapters", rt.aggregateChapters)
		})
	})

	return r
}

// requestLogging attaches a correlation ID to the request context and logs
// one line per request on completion.
func requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.ContextWithNewCorrelationID(r.Context())
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		start := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctx))

		logging.Ctx(ctx).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

func (rt *Router) health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"providers": rt.registry.IDs(),
	})
}
