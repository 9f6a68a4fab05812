// LogVigil - Real-Time Security Log Threat Detection
// Copyright 2026 LogVigil Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logvigil/logvigil

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/logvigil/logvigil/internal/config"
)

// Router wires handlers to routes with per-group middleware.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router from the handler set and API config.
func NewRouter(handler *Handler, cfg *config.Config) *Router {
	mwConfig := DefaultChiMiddlewareConfig()
	if cfg != nil {
		mwConfig.CORSAllowedOrigins = cfg.API.CORSOrigins
		mwConfig.RateLimitRequests = cfg.API.RateLimitRequests
		mwConfig.RateLimitWindow = cfg.API.RateLimitWindow
		mwConfig.RateLimitDisabled = cfg.API.RateLimitDisabled
	}

	return &Router{
		handler:       handler,
		chiMiddleware: NewChiMiddleware(mwConfig),
	}
}

// Setup configures all HTTP routes and returns the root handler.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order.
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	// CORS must be global to handle OPTIONS preflight.
	r.Use(router.chiMiddleware.CORS())

	// Health endpoints: permissive rate limiting so monitoring tools can
	// poll frequently.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
		r.Get("/", router.handler.Health)
	})

	// Monitoring control plane: strict limiting, state flips are rare.
	r.Route("/api/v1/monitoring", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitControl())
		r.Use(APISecurityHeaders())
		r.Use(PrometheusMetrics("/monitoring"))

		r.Post("/start", router.handler.MonitoringStart)
		r.Post("/stop", router.handler.MonitoringStop)
		r.Get("/status", router.handler.MonitoringStatus)
	})

	// Core API endpoints.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(PrometheusMetrics("/api"))

		r.Post("/analyze", router.handler.Analyze)
		r.Get("/stats", router.handler.Stats)

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", router.handler.Alerts)
			r.Get("/{id}", router.handler.Alert)
			r.Post("/{id}/ack", router.handler.AlertAcknowledge)
		})
	})

	// WebSocket stream: the limiter bounds upgrade attempts, not traffic
	// on established connections.
	r.Route("/api/v1/ws", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitWebSocket())
		r.Get("/", router.handler.WebSocket)
	})

	// Observability
	r.Handle("/metrics", promhttp.Handler())

	return r
}
