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

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/co2track/internal/auth"
	"github.com/tomtom215/co2track/internal/logging"
	"github.com/tomtom215/co2track/internal/metrics"
)

// ConnState is the lifecycle state of a server-side connection.
type ConnState int32

const (
	StateConnecting ConnState = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// connSeq orders connections for deterministic fan-out and shutdown.
var connSeq atomic.Uint64

// Conn is one authenticated WebSocket session. It is owned by the hub's
// registry from registration until close.
type Conn struct {
	id          string
	seq         uint64
	identity    auth.Identity
	hub         *Hub
	ws          *websocket.Conn
	send        chan []byte
	subs        *Subscriptions
	limiter     *rate.Limiter
	connectedAt time.Time
	log         zerolog.Logger

	// writeMu serializes every frame written to ws. The reader answers
	// pings directly while the writer drains the send queue.
	writeMu sync.Mutex

	state     atomic.Int32
	opened    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	closeCode int
	closeText string
}

// newConn builds a connection whose logger carries the request and
// connection IDs from ctx.
func newConn(ctx context.Context, hub *Hub, ws *websocket.Conn, identity auth.Identity) *Conn {
	id := uuid.New().String()
	ctx = logging.ContextWithConnID(ctx, id)
	c := &Conn{
		id:          id,
		seq:         connSeq.Add(1),
		identity:    identity,
		hub:         hub,
		ws:          ws,
		send:        make(chan []byte, hub.cfg.SendBufferSize),
		subs:        NewSubscriptions(),
		connectedAt: hub.now(),
		opened:      make(chan struct{}),
		done:        make(chan struct{}),
		log: logging.CtxWith(ctx).
			Str("component", "websocket").
			Str("user_id", identity.UserID).
			Logger(),
	}
	if hub.cfg.InboundRate > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(hub.cfg.InboundRate), hub.cfg.InboundBurst)
	}
	return c
}

// ID returns the connection's unique identifier.
func (c *Conn) ID() string {
	return c.id
}

// Identity returns the authenticated owner of the connection.
func (c *Conn) Identity() auth.Identity {
	return c.identity
}

// State returns the current lifecycle state.
func (c *Conn) State() ConnState {
	return ConnState(c.state.Load())
}

// Subscriptions returns the connection's subscription table.
func (c *Conn) Subscriptions() *Subscriptions {
	return c.subs
}

// markOpen is called by the hub once the connection is registered.
func (c *Conn) markOpen() {
	c.state.CompareAndSwap(int32(StateConnecting), int32(StateOpen))
	close(c.opened)
}

// enqueue offers an encoded frame to the send queue without blocking.
// It reports false when the queue is full.
func (c *Conn) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// closeWith starts closing the connection. The write pump sends a close
// frame carrying code and text, then tears down the socket. Only the first
// call has an effect.
func (c *Conn) closeWith(code int, text string) {
	c.closeOnce.Do(func() {
		c.closeCode = code
		c.closeText = text
		c.state.Store(int32(StateClosing))
		close(c.done)
	})
}

// start runs the read and write pumps.
func (c *Conn) start() {
	go c.writePump()
	go c.readPump()
}

// readPump reads frames until the peer goes away and answers them inline.
func (c *Conn) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.closeWith(websocket.CloseNormalClosure, "")
	}()

	cfg := c.hub.cfg
	c.ws.SetReadLimit(cfg.MaxMessageSize)
	if err := c.ws.SetReadDeadline(time.Now().Add(cfg.PongWait)); err != nil {
		c.log.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived) && c.State() == StateOpen {
				metrics.RecordWSError(metrics.WSErrorRead)
				c.log.Debug().Err(err).Msg("unexpected websocket close")
			}
			return
		}
		metrics.WSMessagesReceived.Inc()

		if err := c.handleFrame(data); err != nil {
			metrics.RecordWSError(metrics.WSErrorWrite)
			c.log.Debug().Err(err).Msg("failed to answer websocket message")
			return
		}
	}
}

// writePump drains the send queue, keeps the peer alive with ping frames
// and writes the close frame once closeWith has been called.
func (c *Conn) writePump() {
	ticker := time.NewTicker(c.hub.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.state.Store(int32(StateClosed))
		_ = c.ws.Close() // best-effort cleanup
	}()

	for {
		select {
		case <-c.done:
			c.writeClose()
			return

		case data := <-c.send:
			if err := c.writeFrame(websocket.TextMessage, data); err != nil {
				metrics.RecordWSError(metrics.WSErrorWrite)
				c.log.Debug().Err(err).Msg("failed to write websocket message")
				return
			}
			metrics.WSMessagesSent.Inc()

		case <-ticker.C:
			if err := c.writeFrame(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleFrame dispatches one inbound frame. Only write failures are
// returned; protocol problems are reported to the peer as error events.
func (c *Conn) handleFrame(data []byte) error {
	if c.limiter != nil && !c.limiter.Allow() {
		metrics.RecordWSError(metrics.WSErrorRateLimited)
		return c.writeEvent(errorEvent("Rate limit exceeded, message dropped"))
	}

	msg, err := ParseInbound(data)
	if err != nil {
		metrics.RecordWSError(metrics.WSErrorMalformed)
		c.log.Debug().Err(err).Msg("malformed websocket message")
		return c.writeEvent(errorEvent(describeMalformed(err)))
	}

	switch m := msg.(type) {
	case SubscribeCO2Data:
		c.subs.Add(CO2DataTopic(m.DataType))
		return c.writeEvent(Event{
			Type:    TypeSubscribed,
			Payload: MessagePayload{Message: "Subscribed to CO2 data updates for " + m.DataType},
		})

	case SubscribeGoalProgress:
		c.subs.Add(GoalProgressTopic(m.GoalID))
		return c.writeEvent(Event{
			Type:    TypeSubscribed,
			Payload: MessagePayload{Message: "Subscribed to goal progress for " + m.GoalID},
		})

	case Ping:
		return c.writeEvent(Event{
			Type:    TypePong,
			Payload: PongPayload{Timestamp: c.hub.now().UnixMilli()},
		})

	case UnknownMessage:
		metrics.RecordWSError(metrics.WSErrorUnknownType)
		c.log.Debug().Str("type", logging.SanitizeLogValue(m.Type)).Msg("unknown websocket message type")
		return c.writeEvent(errorEvent("Unknown message type: " + m.Type))
	}
	return nil
}

func describeMalformed(err error) string {
	var me *MalformedMessageError
	if errors.As(err, &me) && me.Type == "" {
		return "Invalid message format"
	}
	return err.Error()
}

// writeEvent encodes and writes an event immediately, bypassing the queue.
func (c *Conn) writeEvent(ev Event) error {
	data, err := MarshalEvent(ev)
	if err != nil {
		return err
	}
	if err := c.writeFrame(websocket.TextMessage, data); err != nil {
		return err
	}
	metrics.WSMessagesSent.Inc()
	return nil
}

func (c *Conn) writeFrame(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.ws.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, data)
}

func (c *Conn) writeClose() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	msg := websocket.FormatCloseMessage(c.closeCode, c.closeText)
	// The peer may already be gone; the close frame is best effort.
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.hub.cfg.WriteWait))
}
