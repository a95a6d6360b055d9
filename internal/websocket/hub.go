// CO2Track - Carbon Footprint Tracking and Reduction Goals
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/co2track

package websocket

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/co2track/internal/config"
	"github.com/tomtom215/co2track/internal/logging"
	"github.com/tomtom215/co2track/internal/metrics"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful shutdown path (e.g., SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline may indicate a hung operation during shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// ErrHubStopped is returned when registering with a hub that is not running.
var ErrHubStopped = errors.New("websocket hub stopped")

// outbound is one queued broadcast. The event is encoded once and the same
// bytes are offered to every target connection.
type outbound struct {
	userID  string
	all     bool
	msgType string
	data    []byte
}

// Hub owns the connection registry and serializes every mutation of it in
// its run loop.
type Hub struct {
	registry   *Registry
	broadcast  chan outbound
	Register   chan *Conn
	Unregister chan *Conn

	cfg config.WebSocketConfig
	now func() time.Time

	running   atomic.Bool
	lifecycle sync.Mutex
	stopped   chan struct{}
}

// HubOption customizes a Hub.
type HubOption func(*Hub)

// WithClock replaces time.Now for protocol timestamps (pong, connectedAt).
// Socket deadlines always use the wall clock.
func WithClock(now func() time.Time) HubOption {
	return func(h *Hub) {
		h.now = now
	}
}

// NewHub creates a new Hub. Zero-valued settings in cfg fall back to the
// package defaults.
func NewHub(cfg config.WebSocketConfig, opts ...HubOption) *Hub {
	cfg = withDefaults(cfg)
	h := &Hub{
		registry:   NewRegistry(),
		broadcast:  make(chan outbound, cfg.BroadcastBufferSize),
		Register:   make(chan *Conn),
		Unregister: make(chan *Conn),
		cfg:        cfg,
		now:        time.Now,
		stopped:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func withDefaults(cfg config.WebSocketConfig) config.WebSocketConfig {
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 10 * time.Second
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}
	if cfg.PingPeriod <= 0 || cfg.PingPeriod >= cfg.PongWait {
		cfg.PingPeriod = (cfg.PongWait * 9) / 10
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 64 * 1024
	}
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = 256
	}
	if cfg.BroadcastBufferSize <= 0 {
		cfg.BroadcastBufferSize = 256
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	return cfg
}

// RunWithContext runs the hub until ctx is canceled, then closes every
// connection with 1001 (going away) and returns ctx.Err().
//
// Selection is prioritized: shutdown first, then Register/Unregister, then
// broadcasts, so the registry is always current before a fan-out.
func (h *Hub) RunWithContext(ctx context.Context) error {
	stopped := h.beginRun()
	defer func() {
		h.running.Store(false)
		close(stopped)
	}()

	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case c := <-h.Register:
			h.handleRegister(c)
			continue
		case c := <-h.Unregister:
			h.handleUnregister(c)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case c := <-h.Register:
			h.handleRegister(c)
		case c := <-h.Unregister:
			h.handleUnregister(c)
		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) beginRun() chan struct{} {
	h.lifecycle.Lock()
	defer h.lifecycle.Unlock()
	select {
	case <-h.stopped:
		h.stopped = make(chan struct{})
	default:
	}
	h.running.Store(true)
	return h.stopped
}

func (h *Hub) stoppedCh() <-chan struct{} {
	h.lifecycle.Lock()
	defer h.lifecycle.Unlock()
	return h.stopped
}

// IsRunning reports whether the run loop is active.
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}

// register hands c to the run loop and waits until it is Open. If ctx ends
// after the hand-off, c is unregistered again before returning.
func (h *Hub) register(ctx context.Context, c *Conn) error {
	stopped := h.stoppedCh()
	select {
	case h.Register <- c:
	case <-stopped:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-c.opened:
		return nil
	case <-c.done:
		return ErrHubStopped
	case <-ctx.Done():
		h.unregister(c)
		return ctx.Err()
	}
}

// unregister hands c to the run loop for removal. It never blocks on a
// stopped hub.
func (h *Hub) unregister(c *Conn) {
	select {
	case h.Unregister <- c:
	case <-h.stoppedCh():
	}
}

func (h *Hub) handleRegister(c *Conn) {
	if !h.registry.add(c) {
		return
	}
	c.markOpen()
	metrics.WSConnections.Inc()
	metrics.WSIdentities.Set(float64(h.registry.IdentityCount()))
	c.log.Info().
		Str("email", logging.SanitizeEmail(c.identity.Email)).
		Int("user_connections", h.registry.CountFor(c.identity.UserID)).
		Int("total_connections", h.registry.ConnectionCount()).
		Msg("websocket client connected")
}

func (h *Hub) handleUnregister(c *Conn) {
	if !h.registry.remove(c) {
		return
	}
	c.closeWith(websocket.CloseNormalClosure, "")
	metrics.WSConnections.Dec()
	metrics.WSIdentities.Set(float64(h.registry.IdentityCount()))
	c.log.Info().
		Int("total_connections", h.registry.ConnectionCount()).
		Msg("websocket client disconnected")
}

// deliver offers msg to every target connection independently. A full send
// queue closes only that connection.
func (h *Hub) deliver(msg outbound) {
	var targets []*Conn
	if msg.all {
		targets = h.registry.All()
	} else {
		targets = h.registry.ConnectionsFor(msg.userID)
	}

	for _, c := range targets {
		if c.State() != StateOpen {
			continue
		}
		if !c.enqueue(msg.data) {
			h.dropSlowConsumer(c, msg.msgType)
		}
	}
}

func (h *Hub) dropSlowConsumer(c *Conn, msgType string) {
	if !h.registry.remove(c) {
		return
	}
	c.closeWith(websocket.CloseTryAgainLater, "send queue full")
	metrics.WSConnections.Dec()
	metrics.WSIdentities.Set(float64(h.registry.IdentityCount()))
	metrics.RecordWSError(metrics.WSErrorSlowConsumer)
	c.log.Warn().Str("message_type", msgType).Msg("send queue full, closing slow websocket client")
}

// shutdown closes every connection with 1001 and logs the reason.
// ctx.Err() is expected here and is not logged as an error.
func (h *Hub) shutdown(ctx context.Context) {
	conns := h.registry.All()
	for _, c := range conns {
		h.registry.remove(c)
		c.closeWith(websocket.CloseGoingAway, "server shutting down")
		metrics.WSConnections.Dec()
	}
	metrics.WSIdentities.Set(0)

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", len(conns)).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// BroadcastToUser sends ev to every open connection of the user. Users
// without connections are skipped silently. It never blocks.
func (h *Hub) BroadcastToUser(userID string, ev Event) {
	h.publish(outbound{userID: userID, msgType: ev.Type}, ev, "user")
}

// BroadcastToAll sends ev to every open connection. It never blocks.
func (h *Hub) BroadcastToAll(ev Event) {
	h.publish(outbound{all: true, msgType: ev.Type}, ev, "all")
}

func (h *Hub) publish(out outbound, ev Event, scope string) {
	data, err := MarshalEvent(ev)
	if err != nil {
		metrics.RecordWSError(metrics.WSErrorEncode)
		logging.Warn().Err(err).Str("message_type", ev.Type).Msg("failed to encode broadcast, dropping")
		return
	}
	out.data = data

	select {
	case h.broadcast <- out:
		metrics.WSBroadcasts.WithLabelValues(scope).Inc()
	default:
		metrics.RecordWSError(metrics.WSErrorBroadcastDrop)
		logging.Warn().Str("message_type", ev.Type).Msg("broadcast channel full, dropping message")
	}
}

// GetClientCount returns the number of registered connections.
func (h *Hub) GetClientCount() int {
	return h.registry.ConnectionCount()
}

// ConnStats describes one registered connection.
type ConnStats struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	State       string    `json:"state"`
	Topics      []Topic   `json:"topics"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// Stats is a point-in-time snapshot of the registry.
type Stats struct {
	Identities  int         `json:"identities"`
	Connections int         `json:"connections"`
	Conns       []ConnStats `json:"conns"`
}

// Stats returns a snapshot of registered connections and their topics.
func (h *Hub) Stats() Stats {
	conns := h.registry.All()
	s := Stats{
		Identities:  h.registry.IdentityCount(),
		Connections: len(conns),
		Conns:       make([]ConnStats, 0, len(conns)),
	}
	for _, c := range conns {
		s.Conns = append(s.Conns, ConnStats{
			ID:          c.id,
			UserID:      c.identity.UserID,
			State:       c.State().String(),
			Topics:      c.subs.List(),
			ConnectedAt: c.connectedAt,
		})
	}
	return s
}
