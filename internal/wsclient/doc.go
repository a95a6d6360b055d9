// CO2Track - Carbon Footprint Tracking and Reduction Goals
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/co2track

/*
Package wsclient is the client side of the CO2Track notification channel.

A Connector holds at most one connection. It derives the ws:// or wss://
URL from the page origin, passes the bearer token as a query parameter and
re-dispatches every received event to local listeners by type.

State Machine:

	Idle ──Connect──▶ Connecting ──"connected"──▶ Open
	                      │                       │
	                 timeout/error          close != 1000
	                      ▼                       ▼
	                 Reconnecting ◀───────────────┘
	                      │  base·2^(n-1), at most MaxReconnectAttempts
	                      ▼
	                 Idle + "connection-lost"

	any ──Disconnect──▶ Disconnected (no further reconnects)

The server upgrades before it checks the token, so Connecting lasts until
the "connected" event arrives. A socket closed earlier (1008 for a refused
token) counts as a failed attempt and never resets the attempt counter.

While Open the connector sends {"type":"ping"} every PingInterval. A close
with code 1000 returns to Idle without reconnecting.

Local events "open", "close", "error" and "connection-lost" are dispatched
through the same listener table as server events. Wildcard listeners ("*")
see everything. A panicking listener is logged and does not affect others.

Usage:

	c := wsclient.NewConnector(wsclient.OptionsFromConfig(cfg.Client))
	c.On(websocket.TypeCO2DataAdded, func(m wsclient.Message) { ... })
	if err := c.Connect(ctx, token); err != nil { ... }
	defer c.Disconnect()

Time is injectable through Options.Clock so tests can step the timeout,
ping and backoff timers deterministically.
*/
package wsclient
