// CO2Track - Carbon Footprint Tracking and Reduction Goals
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/co2track

package wsclient

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/co2track/internal/auth"
	"github.com/tomtom215/co2track/internal/config"
	wsproto "github.com/tomtom215/co2track/internal/websocket"
)

// startServer runs a real hub behind the upgrade handler.
func startServer(t *testing.T) (*wsproto.Hub, *auth.JWTVerifier, *httptest.Server) {
	t.Helper()
	verifier, err := auth.NewJWTVerifier(&config.SecurityConfig{
		JWTSecret:      "0123456789abcdef0123456789abcdef",
		SessionTimeout: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewJWTVerifier() error = %v", err)
	}

	hub := wsproto.NewHub(config.WebSocketConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.RunWithContext(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	waitFor(t, hub.IsRunning, "hub running")

	srv := httptest.NewServer(wsproto.NewHandler(hub, verifier, []string{"*"}))
	t.Cleanup(srv.Close)
	return hub, verifier, srv
}

func TestConnector_AgainstHub(t *testing.T) {
	hub, verifier, srv := startServer(t)
	token, err := verifier.GenerateToken(auth.Identity{UserID: "alice", Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	c := NewConnector(DefaultOptions(srv.URL))
	t.Cleanup(c.Disconnect)
	connected := collect(c, wsproto.TypeConnected)
	added := collect(c, wsproto.TypeCO2DataAdded)
	pongs := collect(c, wsproto.TypePong)

	if err := c.Connect(context.Background(), token); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	var cp wsproto.ConnectedPayload
	if err := nextEvent(t, connected).Decode(&cp); err != nil || cp.UserID != "alice" {
		t.Fatalf("connected payload = %+v, %v", cp, err)
	}
	waitFor(t, func() bool { return hub.GetClientCount() == 1 }, "registration")

	hub.NotifyCO2DataAdded("alice", map[string]string{"id": "e1"})
	nextEvent(t, added)

	if !c.Send(wsproto.Event{Type: wsproto.TypePing, Payload: struct{}{}}) {
		t.Fatal("Send(ping) = false")
	}
	var pp wsproto.PongPayload
	if err := nextEvent(t, pongs).Decode(&pp); err != nil || pp.Timestamp == 0 {
		t.Fatalf("pong payload = %+v, %v", pp, err)
	}

	c.Disconnect()
	waitFor(t, func() bool { return hub.GetClientCount() == 0 }, "unregistration")
}

func TestConnector_RejectedTokenExhaustsBudget(t *testing.T) {
	hub, _, srv := startServer(t)

	opts := DefaultOptions(srv.URL)
	opts.ReconnectBaseDelay = 5 * time.Millisecond
	c := NewConnector(opts)
	t.Cleanup(c.Disconnect)
	closes := collect(c, EventClose)
	opened := collect(c, EventOpen)
	lost := collect(c, EventConnectionLost)

	err := c.Connect(context.Background(), "not-a-jwt")
	var terr *TransportError
	if !errors.As(err, &terr) || terr.Code != websocket.ClosePolicyViolation {
		t.Fatalf("Connect() error = %v, want TransportError with code 1008", err)
	}

	var cp ClosePayload
	if err := nextEvent(t, closes).Decode(&cp); err != nil || cp.Code != websocket.ClosePolicyViolation {
		t.Fatalf("close payload = %+v, %v", cp, err)
	}

	var payload wsproto.MessagePayload
	if err := nextEvent(t, lost).Decode(&payload); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if payload.Message != "Connection lost after 5 reconnection attempts" {
		t.Errorf("connection-lost message = %q", payload.Message)
	}
	if c.State() != StateIdle {
		t.Errorf("State() = %v, want idle", c.State())
	}
	if n := len(opened); n != 0 {
		t.Errorf("open events = %d, want 0", n)
	}
	if hub.GetClientCount() != 0 {
		t.Errorf("GetClientCount() = %d, want 0", hub.GetClientCount())
	}
}
