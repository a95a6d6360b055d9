// CO2Track - Carbon Footprint Tracking and Reduction Goals
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/co2track

/*
Package websocket pushes real-time notifications to authenticated browser
sessions.

A user may have several tabs or devices open at once, so the hub keeps a
registry keyed by user id, each entry holding the set of that user's live
connections. Route handlers call BroadcastToUser or BroadcastToAll after a
state change; delivery is best effort and never blocks the caller.

Key Components:

  - Hub: owns the Registry and serializes every mutation in its run loop
  - Handler: upgrades /ws, verifies the token query parameter, registers
  - Conn: one session with a read pump and a write pump
  - Subscriptions: per-connection topics (co2:<dataType>, goal:<goalId>)

Architecture:

	             BroadcastToUser / BroadcastToAll
	                          │
	                    ┌─────┴─────┐
	                    │    Hub    │ ← Register / Unregister
	                    └─────┬─────┘
	             ┌────────────┴────────────┐
	        user "alice"              user "bob"
	       ┌─────┴─────┐                   │
	     Conn1       Conn2               Conn3

Connection lifecycle:

	Connecting ──token ok──▶ Open ──close / error / shutdown──▶ Closed
	     │
	     └──no token / bad token──▶ Closed (1008, never registered)

Each connection has two goroutines:
  - readPump: reads frames and answers them inline (pong, subscribed, error)
  - writePump: drains the send queue, sends ping frames, writes the close frame

A connection whose send queue is full is closed with 1013 and removed; the
others are unaffected. When the hub's context is canceled every connection
is closed with 1001.

Wire Format:

	{"type": "<string>", "payload": <any>}

Inbound: subscribe-co2-data {dataType}, subscribe-goal-progress {goalId},
ping {}. Outbound: connected {userId, message}, subscribed {message},
pong {timestamp}, error {message}, plus the application events
co2-data-added, co2-data-updated, data-deleted, password-updated,
account-deleted and leaderboard-updated.

Usage Example:

	hub := websocket.NewHub(cfg.WebSocket)
	go hub.RunWithContext(ctx)

	r.Handle("/ws", websocket.NewHandler(hub, verifier, cfg.Security.CORSOrigins))

	hub.NotifyCO2DataAdded(userID, entry)
*/
package websocket
