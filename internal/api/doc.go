// CO2Track - Carbon Footprint Tracking and Reduction Goals
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/co2track

/*
Package api is the HTTP surface of the notification server.

Routes (chi):

	GET /ws                    websocket upgrade (rate limited per IP)
	GET /api/v1/health/live    liveness
	GET /api/v1/health/ready   readiness: 503 until the hub run loop is up
	GET /api/v1/ws/stats       registry snapshot for the bearer's identity
	GET /metrics               Prometheus

Global middleware, in order: request ID, real IP, panic recovery, CORS,
access log, Prometheus, and the notifier hook.

Notifier Hook:

Application handlers mounted on the router reach the dispatcher through
the request context instead of a package global:

	func (h *EntryHandler) Create(w http.ResponseWriter, r *http.Request) {
		...
		api.NotifierFromContext(r.Context()).BroadcastToUser(userID, ev)
	}

Without WithNotifier in the chain NotifierFromContext returns a no-op.
*/
package api
