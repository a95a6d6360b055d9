// CO2Track - Carbon Footprint Tracking and Reduction Goals
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/co2track

/*
Package metrics provides Prometheus metrics for the notification layer.

Metrics are registered on the default registry through promauto and exposed
at /metrics in Prometheus text format:

	curl http://localhost:5000/metrics

# Available Metrics

HTTP Metrics:
  - api_requests_total: Total API requests (counter)
    Labels: method, endpoint, status_code
  - api_request_duration_seconds: Request latency (histogram)
  - api_active_requests: In-flight requests (gauge)
  - api_rate_limit_hits_total: Rate limit rejections (counter)
    Labels: endpoint

WebSocket Metrics:
  - websocket_connections: Open connections (gauge)
  - websocket_identities: Users with at least one open connection (gauge)
  - websocket_messages_sent_total / websocket_messages_received_total
  - websocket_broadcasts_total: Labels: scope (user, all)
  - websocket_errors_total: Labels: error_type (auth, malformed,
    unknown_type, rate_limited, slow_consumer, write, read, ...)

Client Metrics:
  - websocket_client_reconnect_attempts_total
  - websocket_client_connection_lost_total
*/
package metrics
