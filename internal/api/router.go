// ModSentry - Moderator Activity Tracking and Anomaly Response
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/modsentry

// Package api exposes the operational HTTP surface: health, queue
// status and enqueue, manual scheduler triggers, and Prometheus
// metrics.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/modsentry/internal/config"
	"github.com/tomtom215/modsentry/internal/queue"
)

// Core is the tracker surface the API needs.
type Core interface {
	QueueStatus() queue.Status
	Enqueue(it queue.Item) bool
}

// Router builds the HTTP handler tree.
type Router struct {
	cfg     *config.ServerConfig
	handler *Handler
}

// NewRouter wires the API against the core and the manual trigger hooks.
func NewRouter(cfg *config.ServerConfig, core Core, reconcileNow, inactivityNow func()) *Router {
	return &Router{
		cfg:     cfg,
		handler: NewHandler(core, reconcileNow, inactivityNow),
	}
}

// Setup returns the fully configured handler.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestMetrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: router.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(router.cfg.RateLimitReqs, router.cfg.RateLimitWindow))

		r.Get("/health", router.handler.Health)
		r.Get("/queue", router.handler.QueueStatus)
		r.Post("/queue/enqueue", router.handler.Enqueue)
		r.Post("/run/reconcile", router.handler.RunReconcile)
		r.Post("/run/inactivity", router.handler.RunInactivity)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
