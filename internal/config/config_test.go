// CO2Track - Carbon Footprint Tracking and Reduction Goals
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/co2track

package config

import (
	"errors"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Security.JWTSecret = testSecret
	return cfg
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults with secret", func(*Config) {}, false},
		{"missing secret", func(c *Config) { c.Security.JWTSecret = "" }, true},
		{"short secret", func(c *Config) { c.Security.JWTSecret = "short" }, true},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, true},
		{"bad environment", func(c *Config) { c.Server.Environment = "qa" }, true},
		{"wildcard cors in production", func(c *Config) {
			c.Server.Environment = "production"
		}, true},
		{"explicit cors in production", func(c *Config) {
			c.Server.Environment = "production"
			c.Security.CORSOrigins = []string{"https://co2.example.com"}
		}, false},
		{"rate limit zero", func(c *Config) { c.Security.RateLimitReqs = 0 }, true},
		{"rate limit zero but disabled", func(c *Config) {
			c.Security.RateLimitReqs = 0
			c.Security.RateLimitDisabled = true
		}, false},
		{"ping not shorter than pong", func(c *Config) {
			c.WebSocket.PingPeriod = c.WebSocket.PongWait
		}, true},
		{"relative ws path", func(c *Config) { c.WebSocket.Path = "ws" }, true},
		{"zero send buffer", func(c *Config) { c.WebSocket.SendBufferSize = 0 }, true},
		{"inbound rate without burst", func(c *Config) { c.WebSocket.InboundBurst = 0 }, true},
		{"inbound limiting off", func(c *Config) {
			c.WebSocket.InboundRate = 0
			c.WebSocket.InboundBurst = 0
		}, false},
		{"client origin ws scheme", func(c *Config) { c.Client.Origin = "ws://localhost" }, true},
		{"client origin no host", func(c *Config) { c.Client.Origin = "https://" }, true},
		{"negative attempts", func(c *Config) { c.Client.MaxReconnectAttempts = -1 }, true},
		{"attempts at limit", func(c *Config) { c.Client.MaxReconnectAttempts = MaxClientReconnectAttempts }, false},
		{"attempts above limit", func(c *Config) { c.Client.MaxReconnectAttempts = 33 }, true},
		{"zero reconnect delay", func(c *Config) { c.Client.ReconnectBaseDelay = 0 }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, true},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error %v does not wrap ErrInvalidConfig", err)
			}
		})
	}
}

func TestServerConfigAddr(t *testing.T) {
	t.Parallel()

	s := ServerConfig{Host: "127.0.0.1", Port: 5000, Timeout: time.Second}
	if got := s.Addr(); got != "127.0.0.1:5000" {
		t.Errorf("Addr() = %q", got)
	}
	s.Host = "::1"
	if got := s.Addr(); got != "[::1]:5000" {
		t.Errorf("Addr() = %q", got)
	}
}
