// CO2Track - Carbon Footprint Tracking and Reduction Goals
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/co2track

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/co2track/internal/auth"
	"github.com/tomtom215/co2track/internal/config"
	"github.com/tomtom215/co2track/internal/middleware"
	"github.com/tomtom215/co2track/internal/websocket"
)

// Router wires the HTTP surface.
type Router struct {
	cfg           *config.Config
	hub           *websocket.Hub
	verifier      auth.Verifier
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a Router.
func NewRouter(cfg *config.Config, hub *websocket.Hub, verifier auth.Verifier) *Router {
	return &Router{
		cfg:           cfg,
		hub:           hub,
		verifier:      verifier,
		handler:       NewHandler(hub),
		chiMiddleware: NewChiMiddleware(ChiMiddlewareConfigFrom(cfg.Security)),
	}
}

// SetupChi builds the chi handler.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())
	r.Use(middleware.AccessLog)
	r.Use(middleware.PrometheusMetrics)
	r.Use(WithNotifier(router.hub))

	// Upgrade endpoint. Authentication happens after the upgrade so the
	// rejection can carry close code 1008.
	ws := websocket.NewHandler(router.hub, router.verifier, router.cfg.Security.CORSOrigins)
	r.With(router.chiMiddleware.RateLimit()).Get(router.cfg.WebSocket.Path, ws.ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimiddleware.Compress(5, "application/json"))

		r.Route("/health", func(r chi.Router) {
			r.Get("/live", router.handler.HealthLive)
			r.Get("/ready", router.handler.HealthReady)
		})

		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimit())
			r.Use(RequireBearer(router.verifier))
			r.Get("/ws/stats", router.handler.WSStats)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	return r
}
