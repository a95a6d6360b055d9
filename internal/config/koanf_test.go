// CO2Track - Carbon Footprint Tracking and Reduction Goals
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/co2track

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// TestDefaultConfig verifies that defaultConfig() returns proper defaults
func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Security.JWTSecret != "" {
		t.Errorf("Security.JWTSecret should be empty by default")
	}
	if cfg.WebSocket.Path != "/ws" {
		t.Errorf("WebSocket.Path = %q, want /ws", cfg.WebSocket.Path)
	}
	if cfg.WebSocket.PingPeriod >= cfg.WebSocket.PongWait {
		t.Errorf("PingPeriod %v must be shorter than PongWait %v", cfg.WebSocket.PingPeriod, cfg.WebSocket.PongWait)
	}
	if cfg.Client.ConnectTimeout != 10*time.Second {
		t.Errorf("Client.ConnectTimeout = %v, want 10s", cfg.Client.ConnectTimeout)
	}
	if cfg.Client.PingInterval != 30*time.Second {
		t.Errorf("Client.PingInterval = %v, want 30s", cfg.Client.PingInterval)
	}
	if cfg.Client.ReconnectBaseDelay != 3*time.Second {
		t.Errorf("Client.ReconnectBaseDelay = %v, want 3s", cfg.Client.ReconnectBaseDelay)
	}
	if cfg.Client.MaxReconnectAttempts != 5 {
		t.Errorf("Client.MaxReconnectAttempts = %d, want 5", cfg.Client.MaxReconnectAttempts)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want info/json", cfg.Logging)
	}
}

func TestLoadWithKoanf_RequiresSecret(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, "")
	t.Setenv("JWT_SECRET", "")

	if _, err := LoadWithKoanf(); err == nil {
		t.Fatal("expected error without JWT_SECRET")
	}
}

func TestLoadWithKoanf_EnvOverrides(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, "")
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("WS_PONG_WAIT", "90s")
	t.Setenv("WS_PING_PERIOD", "45s")
	t.Setenv("WS_INBOUND_RATE", "2.5")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("CLIENT_MAX_RECONNECT_ATTEMPTS", "3")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.WebSocket.PongWait != 90*time.Second {
		t.Errorf("PongWait = %v, want 90s", cfg.WebSocket.PongWait)
	}
	if cfg.WebSocket.PingPeriod != 45*time.Second {
		t.Errorf("PingPeriod = %v, want 45s", cfg.WebSocket.PingPeriod)
	}
	if cfg.WebSocket.InboundRate != 2.5 {
		t.Errorf("InboundRate = %v, want 2.5", cfg.WebSocket.InboundRate)
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.Security.CORSOrigins) != len(want) {
		t.Fatalf("CORSOrigins = %v, want %v", cfg.Security.CORSOrigins, want)
	}
	for i := range want {
		if cfg.Security.CORSOrigins[i] != want[i] {
			t.Errorf("CORSOrigins[%d] = %q, want %q", i, cfg.Security.CORSOrigins[i], want[i])
		}
	}
	if cfg.Client.MaxReconnectAttempts != 3 {
		t.Errorf("MaxReconnectAttempts = %d, want 3", cfg.Client.MaxReconnectAttempts)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadWithKoanf_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 7000
security:
  jwt_secret: "` + testSecret + `"
websocket:
  path: /notifications
client:
  origin: https://co2.example.com
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("JWT_SECRET", "")
	os.Unsetenv("JWT_SECRET")
	// Environment still wins over the file.
	t.Setenv("HTTP_PORT", "7001")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}
	if cfg.Server.Port != 7001 {
		t.Errorf("Server.Port = %d, want 7001", cfg.Server.Port)
	}
	if cfg.WebSocket.Path != "/notifications" {
		t.Errorf("WebSocket.Path = %q, want /notifications", cfg.WebSocket.Path)
	}
	if cfg.Client.Origin != "https://co2.example.com" {
		t.Errorf("Client.Origin = %q", cfg.Client.Origin)
	}
	if cfg.Security.JWTSecret != testSecret {
		t.Errorf("JWT secret from file not applied")
	}
}

func TestLoadClient_IgnoresServerSecurity(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("CLIENT_ORIGIN", "https://co2.example.com")
	t.Setenv("CLIENT_TOKEN", "abc")

	cfg, err := LoadClient()
	if err != nil {
		t.Fatalf("LoadClient() error = %v", err)
	}
	if cfg.Client.Token != "abc" {
		t.Errorf("Client.Token = %q, want abc", cfg.Client.Token)
	}
}

func TestLoadClient_BadOrigin(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, "")
	t.Setenv("CLIENT_ORIGIN", "ftp://co2.example.com")

	if _, err := LoadClient(); err == nil {
		t.Fatal("expected error for ftp origin")
	}
}

func TestEnvTransformFunc(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key  string
		want string
	}{
		{"JWT_SECRET", "security.jwt_secret"},
		{"WS_PING_PERIOD", "websocket.ping_period"},
		{"CLIENT_ORIGIN", "client.origin"},
		{"LOG_FORMAT", "logging.format"},
		{"HOME", ""},
		{"PATH", ""},
	}
	for _, tt := range tests {
		if got := envTransformFunc(tt.key); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}
