// CO2Track - Carbon Footprint Tracking and Reduction Goals
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/co2track

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/co2track/internal/auth"
	"github.com/tomtom215/co2track/internal/websocket"
)

// HubStatus is the read-only view of the hub the handlers need.
type HubStatus interface {
	IsRunning() bool
	Stats() websocket.Stats
}

// Handler serves the health and stats endpoints.
type Handler struct {
	hub       HubStatus
	startTime time.Time
}

// NewHandler creates a Handler.
func NewHandler(hub HubStatus) *Handler {
	return &Handler{hub: hub, startTime: time.Now()}
}

// HealthLive always answers 200 while the process serves HTTP.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, &Response{
		Status: "success",
		Data: map[string]interface{}{
			"alive":  true,
			"uptime": time.Since(h.startTime).Seconds(),
		},
	})
}

// HealthReady answers 503 until the hub run loop is active.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	running := h.hub.IsRunning()
	status, code := "ready", http.StatusOK
	if !running {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	respondJSON(w, r, code, &Response{
		Status: status,
		Data: map[string]interface{}{
			"hub_running": running,
			"uptime":      time.Since(h.startTime).Seconds(),
		},
	})
}

// WSStatsData is the /ws/stats payload. Totals cover every identity;
// Conns lists only the caller's own connections.
type WSStatsData struct {
	Identities  int                   `json:"identities"`
	Connections int                   `json:"connections"`
	Conns       []websocket.ConnStats `json:"conns"`
}

// WSStats reports registry totals and the caller's connections with their
// subscriptions. Requires RequireBearer.
func (h *Handler) WSStats(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	s := h.hub.Stats()
	data := WSStatsData{
		Identities:  s.Identities,
		Connections: s.Connections,
		Conns:       make([]websocket.ConnStats, 0),
	}
	for _, c := range s.Conns {
		if c.UserID == id.UserID {
			data.Conns = append(data.Conns, c)
		}
	}
	respondJSON(w, r, http.StatusOK, &Response{Status: "success", Data: data})
}
