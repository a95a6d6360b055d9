// CO2Track - Carbon Footprint Tracking and Reduction Goals
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/co2track

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/tomtom215/co2track/internal/logging"
)

// MinJWTSecretLength is the shortest accepted HMAC secret.
const MinJWTSecretLength = 32

// MaxClientReconnectAttempts bounds CLIENT_MAX_RECONNECT_ATTEMPTS. The last
// delay is CLIENT_RECONNECT_BASE_DELAY * 2^(n-1).
const MaxClientReconnectAttempts = 20

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	if err := c.validateWebSocket(); err != nil {
		return err
	}
	if err := c.validateClient(); err != nil {
		return err
	}
	return c.validateLogging()
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return invalid("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return invalid("HTTP_TIMEOUT must be positive")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return invalid("SHUTDOWN_TIMEOUT must be positive")
	}
	switch c.Server.Environment {
	case "development", "staging", "production":
	default:
		return invalid("ENVIRONMENT must be development, staging or production, got %q", c.Server.Environment)
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if c.Security.JWTSecret == "" {
		return invalid("JWT_SECRET is required")
	}
	if len(c.Security.JWTSecret) < MinJWTSecretLength {
		return invalid("JWT_SECRET must be at least %d characters", MinJWTSecretLength)
	}
	if c.Security.SessionTimeout <= 0 {
		return invalid("SESSION_TIMEOUT must be positive")
	}
	if !c.Security.RateLimitDisabled {
		if c.Security.RateLimitReqs <= 0 {
			return invalid("RATE_LIMIT_REQUESTS must be positive")
		}
		if c.Security.RateLimitWindow <= 0 {
			return invalid("RATE_LIMIT_WINDOW must be positive")
		}
	}
	if c.Server.IsProduction() {
		for _, origin := range c.Security.CORSOrigins {
			if origin == "*" {
				return invalid("CORS_ORIGINS must not contain * in production")
			}
		}
	}
	return nil
}

func (c *Config) validateWebSocket() error {
	ws := c.WebSocket
	if !strings.HasPrefix(ws.Path, "/") {
		return invalid("WS_PATH must start with /, got %q", ws.Path)
	}
	if ws.WriteWait <= 0 || ws.PongWait <= 0 || ws.PingPeriod <= 0 || ws.HandshakeTimeout <= 0 {
		return invalid("websocket timeouts must be positive")
	}
	if ws.PingPeriod >= ws.PongWait {
		return invalid("WS_PING_PERIOD (%s) must be shorter than WS_PONG_WAIT (%s)", ws.PingPeriod, ws.PongWait)
	}
	if ws.MaxMessageSize <= 0 {
		return invalid("WS_MAX_MESSAGE_SIZE must be positive")
	}
	if ws.SendBufferSize <= 0 || ws.BroadcastBufferSize <= 0 {
		return invalid("websocket buffer sizes must be positive")
	}
	if ws.InboundRate < 0 {
		return invalid("WS_INBOUND_RATE must not be negative")
	}
	if ws.InboundRate > 0 && ws.InboundBurst <= 0 {
		return invalid("WS_INBOUND_BURST must be positive when WS_INBOUND_RATE is set")
	}
	return nil
}

func (c *Config) validateClient() error {
	cl := c.Client
	u, err := url.Parse(cl.Origin)
	if err != nil {
		return invalid("CLIENT_ORIGIN is not a valid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return invalid("CLIENT_ORIGIN must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return invalid("CLIENT_ORIGIN must include a host")
	}
	if !strings.HasPrefix(cl.Path, "/") {
		return invalid("CLIENT_PATH must start with /, got %q", cl.Path)
	}
	if cl.ConnectTimeout <= 0 || cl.PingInterval <= 0 || cl.ReconnectBaseDelay <= 0 {
		return invalid("client timings must be positive")
	}
	if cl.MaxReconnectAttempts < 0 || cl.MaxReconnectAttempts > MaxClientReconnectAttempts {
		return invalid("CLIENT_MAX_RECONNECT_ATTEMPTS must be between 0 and %d, got %d",
			MaxClientReconnectAttempts, cl.MaxReconnectAttempts)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return invalid("LOG_LEVEL %q is not recognized", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return invalid("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
