// Paceboard - CRM Activity Mirror and Productivity Leaderboard
// Copyright 2026 Paceboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/paceboard/paceboard

/* router.go - HTTP Router Setup

Wires the Chi router: global middleware (request ID, real IP,
panic recovery, CORS), per-group rate limits and Prometheus
instrumentation, and the versioned route tree.
*/
//nolint:staticcheck
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/paceboard/paceboard/internal/middleware"
)

// NewRouter builds the full route tree around the handler set.
func NewRouter(h *Handler, mw *ChiMiddleware) http.Handler {
	r := chi.NewRouter()

	// ============================================================================
	// GLOBAL MIDDLEWARE
	// ============================================================================

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS())

	// ============================================================================
	// API ROUTES
	// ============================================================================

	r.Route("/api/v1", func(r chi.Router) {
		// Sync control: strict rate limit, triggers spend upstream budget.
		r.Route("/sync", func(r chi.Router) {
			r.Use(mw.RateLimitSync())
			r.Use(middleware.PrometheusMetrics)

			r.Post("/trigger", h.TriggerSync)
			r.Post("/backfill", h.TriggerBackfill)
			r.Get("/status", h.SyncStatus)
		})

		// Read endpoints: permissive limit, served from memoized buckets.
		r.Group(func(r chi.Router) {
			r.Use(mw.RateLimitRead())
			r.Use(middleware.PrometheusMetrics)

			r.Get("/metrics/tracked", h.TrackedMetric)
			r.Get("/leaderboard", h.Leaderboard)
		})

		// Health probes: high limit for monitoring, no metrics noise.
		r.Group(func(r chi.Router) {
			r.Use(mw.RateLimitHealth())

			r.Get("/healthz", h.HealthLive)
			r.Get("/readyz", h.HealthReady)
		})
	})

	// ============================================================================
	// OPERATIONAL ENDPOINTS
	// ============================================================================

	r.Handle("/metrics", promhttp.Handler())

	return r
}
