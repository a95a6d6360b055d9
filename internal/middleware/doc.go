// CO2Track - Carbon Footprint Tracking and Reduction Goals
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/co2track

// Package middleware provides chi-compatible HTTP middleware for the
// notification server.
//
//   - RequestID: X-Request-ID propagation into chi and the logging context
//   - PrometheusMetrics: request count, latency and in-flight gauges
//   - AccessLog: one zerolog line per request
//
// Every wrapper keeps http.Hijacker so the websocket upgrade route can sit
// behind the same chain.
package middleware
