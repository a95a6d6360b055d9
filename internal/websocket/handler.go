// CO2Track - Carbon Footprint Tracking and Reduction Goals
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/co2track

package websocket

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/co2track/internal/auth"
	"github.com/tomtom215/co2track/internal/logging"
	"github.com/tomtom215/co2track/internal/metrics"
)

// TokenQueryParam carries the bearer credential on the handshake URL.
// Browsers cannot set headers on a WebSocket handshake.
const TokenQueryParam = "token"

const connectedMessage = "Connected to CO2 tracker"

// Handler upgrades HTTP requests and admits authenticated connections into
// the hub.
type Handler struct {
	hub      *Hub
	verifier auth.Verifier
	upgrader websocket.Upgrader
	origins  []string
}

// NewHandler creates the handshake handler. allowedOrigins uses the CORS
// origin list; "*" admits any origin, including requests without one.
func NewHandler(hub *Hub, verifier auth.Verifier, allowedOrigins []string) *Handler {
	h := &Handler{
		hub:      hub,
		verifier: verifier,
		origins:  allowedOrigins,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkOrigin,
		HandshakeTimeout: hub.cfg.HandshakeTimeout,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	for _, allowed := range h.origins {
		if allowed == "*" || (origin != "" && allowed == origin) {
			return true
		}
	}
	if origin == "" {
		logging.Warn().Msg("websocket connection rejected: missing Origin header")
		return false
	}
	logging.Warn().Str("origin", logging.SanitizeLogValue(origin)).Msg("websocket connection rejected from unauthorized origin")
	return false
}

// ServeHTTP runs the handshake: upgrade, verify the token query parameter,
// register, then send the connected acknowledgment. Credential failures
// close the socket with 1008 before anything is registered.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error response.
		metrics.RecordWSError(metrics.WSErrorUpgrade)
		logging.Ctx(r.Context()).Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.hub.cfg.HandshakeTimeout)
	defer cancel()

	identity, err := h.verifier.Verify(ctx, r.URL.Query().Get(TokenQueryParam))
	if err != nil {
		metrics.RecordWSError(metrics.WSErrorAuth)
		reason := "invalid token"
		if errors.Is(err, auth.ErrNoCredentials) {
			reason = "authentication required"
		}
		logging.Ctx(r.Context()).Warn().Err(err).Msg("websocket handshake rejected")
		h.reject(ws, websocket.ClosePolicyViolation, reason)
		return
	}

	c := newConn(r.Context(), h.hub, ws, identity)
	if err := h.hub.register(ctx, c); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("websocket registration failed")
		h.reject(ws, websocket.CloseGoingAway, "server shutting down")
		return
	}

	if err := c.writeEvent(Event{
		Type:    TypeConnected,
		Payload: ConnectedPayload{UserID: identity.UserID, Message: connectedMessage},
	}); err != nil {
		c.log.Debug().Err(err).Msg("failed to send connected event")
	}
	c.start()
}

func (h *Handler) reject(ws *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(h.hub.cfg.WriteWait))
	_ = ws.Close()
}
