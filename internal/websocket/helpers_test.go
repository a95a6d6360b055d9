// CO2Track - Carbon Footprint Tracking and Reduction Goals
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/co2track

package websocket

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/co2track/internal/auth"
	"github.com/tomtom215/co2track/internal/config"
	"github.com/tomtom215/co2track/internal/logging"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

// unencodable always fails to marshal.
type unencodable struct{}

func (unencodable) MarshalJSON() ([]byte, error) {
	return nil, errors.New("unencodable")
}

// stubVerifier maps fixed tokens to identities.
type stubVerifier map[string]auth.Identity

func (s stubVerifier) Verify(_ context.Context, token string) (auth.Identity, error) {
	if token == "" {
		return auth.Identity{}, &auth.AuthError{Kind: auth.ErrNoCredentials}
	}
	id, ok := s[token]
	if !ok {
		return auth.Identity{}, &auth.AuthError{Kind: auth.ErrInvalidCredentials}
	}
	return id, nil
}

var testVerifier = stubVerifier{
	"token-alice":   {UserID: "alice", Email: "alice@example.com"},
	"token-alice-2": {UserID: "alice", Email: "alice@example.com"},
	"token-bob":     {UserID: "bob", Email: "bob@example.com"},
}

func testConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		Path:                "/ws",
		WriteWait:           time.Second,
		PongWait:            10 * time.Second,
		PingPeriod:          9 * time.Second,
		MaxMessageSize:      4096,
		SendBufferSize:      16,
		BroadcastBufferSize: 16,
		HandshakeTimeout:    2 * time.Second,
	}
}

// startHub runs hub until the test ends.
func startHub(t *testing.T, hub *Hub) context.CancelFunc {
	t.Helper()
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
	return cancel
}

func newTestServer(t *testing.T, hub *Hub, origins ...string) *httptest.Server {
	t.Helper()
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	srv := httptest.NewServer(NewHandler(hub, testVerifier, origins))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server, token string) string {
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	if token != "" {
		u += "?token=" + url.QueryEscape(token)
	}
	return u
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, token), nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// dialOpen dials and consumes the connected event.
func dialOpen(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	conn := dial(t, srv, token)
	ev := readEvent(t, conn)
	if ev.Type != TypeConnected {
		t.Fatalf("first event = %q, want %q", ev.Type, TypeConnected)
	}
	return conn
}

type rawEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func readEvent(t *testing.T, conn *websocket.Conn) rawEvent {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatal(err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	var ev rawEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("invalid event %q: %v", data, err)
	}
	return ev
}

func readMessagePayload(t *testing.T, ev rawEvent) string {
	t.Helper()
	var p MessagePayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		t.Fatalf("invalid payload %q: %v", ev.Payload, err)
	}
	return p.Message
}

func send(t *testing.T, conn *websocket.Conn, raw string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
}

// expectClose reads until the server's close frame and returns its code.
func expectClose(t *testing.T, conn *websocket.Conn) int {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatal(err)
	}
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		var ce *websocket.CloseError
		if !errors.As(err, &ce) {
			t.Fatalf("ReadMessage() error = %v, want close frame", err)
		}
		return ce.Code
	}
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// fakeConn builds a registered-able connection without a socket. Only the
// hub side (queue, state, registry) may be exercised.
func fakeConn(hub *Hub, userID string) *Conn {
	return newConn(context.Background(), hub, nil, auth.Identity{UserID: userID})
}

var _ http.Handler = (*Handler)(nil)
