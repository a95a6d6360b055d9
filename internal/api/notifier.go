// CO2Track - Carbon Footprint Tracking and Reduction Goals
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/co2track

package api

import (
	"context"
	"net/http"

	"github.com/tomtom215/co2track/internal/websocket"
)

// Notifier pushes events to connected clients. *websocket.Hub satisfies it.
// Both methods are fire-and-forget and never block the caller.
type Notifier interface {
	BroadcastToUser(userID string, ev websocket.Event)
	BroadcastToAll(ev websocket.Event)
}

type notifierKey struct{}

// WithNotifier stores n in every request context.
func WithNotifier(n Notifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), notifierKey{}, n)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NotifierFromContext returns the request's notifier, or a no-op one.
func NotifierFromContext(ctx context.Context) Notifier {
	if n, ok := ctx.Value(notifierKey{}).(Notifier); ok && n != nil {
		return n
	}
	return noopNotifier{}
}

type noopNotifier struct{}

func (noopNotifier) BroadcastToUser(string, websocket.Event) {}
func (noopNotifier) BroadcastToAll(websocket.Event)          {}
