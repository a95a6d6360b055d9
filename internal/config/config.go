// CO2Track - Carbon Footprint Tracking and Reduction Goals
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/co2track

// Package config loads CO2Track configuration from built-in defaults, an
// optional YAML file and environment variables (highest priority wins).
//
// Environment Variables:
//   - HTTP_PORT, HTTP_HOST, HTTP_TIMEOUT, SHUTDOWN_TIMEOUT, ENVIRONMENT
//   - JWT_SECRET (32+ characters), SESSION_TIMEOUT
//   - CORS_ORIGINS (comma-separated), RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW, DISABLE_RATE_LIMIT
//   - WS_PATH, WS_WRITE_WAIT, WS_PONG_WAIT, WS_PING_PERIOD, WS_MAX_MESSAGE_SIZE,
//     WS_SEND_BUFFER, WS_BROADCAST_BUFFER, WS_INBOUND_RATE, WS_INBOUND_BURST, WS_HANDSHAKE_TIMEOUT
//   - CLIENT_ORIGIN, CLIENT_TOKEN, CLIENT_CONNECT_TIMEOUT, CLIENT_PING_INTERVAL,
//     CLIENT_RECONNECT_BASE_DELAY, CLIENT_MAX_RECONNECT_ATTEMPTS
//   - LOG_LEVEL, LOG_FORMAT, LOG_CALLER
//   - CONFIG_PATH: explicit YAML file location
package config

import (
	"net"
	"strconv"
	"time"
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Security  SecurityConfig  `koanf:"security"`
	WebSocket WebSocketConfig `koanf:"websocket"`
	Client    ClientConfig    `koanf:"client"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"` // development, staging, production
}

// SecurityConfig holds credential verification and HTTP hardening settings.
type SecurityConfig struct {
	JWTSecret         string        `koanf:"jwt_secret"`
	SessionTimeout    time.Duration `koanf:"session_timeout"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// WebSocketConfig tunes the server-side dispatcher.
type WebSocketConfig struct {
	// Path is the handshake endpoint.
	Path string `koanf:"path"`

	// WriteWait bounds every frame write.
	WriteWait time.Duration `koanf:"write_wait"`

	// PongWait is the read deadline, extended on every pong.
	PongWait time.Duration `koanf:"pong_wait"`

	// PingPeriod must be shorter than PongWait.
	PingPeriod time.Duration `koanf:"ping_period"`

	MaxMessageSize      int64         `koanf:"max_message_size"`
	SendBufferSize      int           `koanf:"send_buffer_size"`
	BroadcastBufferSize int           `koanf:"broadcast_buffer_size"`
	HandshakeTimeout    time.Duration `koanf:"handshake_timeout"`

	// InboundRate is the sustained client->server frames per second allowed
	// per connection; InboundBurst the bucket size. Zero disables limiting.
	InboundRate  float64 `koanf:"inbound_rate"`
	InboundBurst int     `koanf:"inbound_burst"`
}

// ClientConfig tunes the client-side connector used by cmd/wsclient.
type ClientConfig struct {
	// Origin is the page origin the connector derives its ws:// or wss:// URL from.
	Origin string `koanf:"origin"`
	Path   string `koanf:"path"`
	Token  string `koanf:"token"`

	ConnectTimeout       time.Duration `koanf:"connect_timeout"`
	PingInterval         time.Duration `koanf:"ping_interval"`
	ReconnectBaseDelay   time.Duration `koanf:"reconnect_base_delay"`
	MaxReconnectAttempts int           `koanf:"max_reconnect_attempts"`
}

// LoggingConfig holds zerolog settings.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// IsProduction reports whether the server runs in production mode.
func (s ServerConfig) IsProduction() bool {
	return s.Environment == "production"
}

// Load loads and validates the full server configuration.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
