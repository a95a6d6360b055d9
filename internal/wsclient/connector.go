// CO2Track - Carbon Footprint Tracking and Reduction Goals
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/co2track

package wsclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"math"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/co2track/internal/config"
	"github.com/tomtom215/co2track/internal/logging"
	"github.com/tomtom215/co2track/internal/metrics"
	wsproto "github.com/tomtom215/co2track/internal/websocket"
)

// Locally synthesized event types. They never travel over the wire.
const (
	EventOpen           = "open"
	EventClose          = "close"
	EventError          = "error"
	EventConnectionLost = "connection-lost"
)

// writeWait bounds client frame writes.
const writeWait = 10 * time.Second

// maxBackoffShift caps the exponent of the reconnect delay.
const maxBackoffShift = 30

// connectKey is the single-flight key for handshakes. It is forgotten before
// listeners run so a listener may call Connect again.
const connectKey = "connect"

var (
	// ErrConnectTimeout is wrapped when the handshake does not complete
	// within the connect timeout.
	ErrConnectTimeout = errors.New("connection establishment timed out")

	// ErrDisconnected is returned by a Connect that was overtaken by Disconnect.
	ErrDisconnected = errors.New("connector disconnected")
)

// State is the connector lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateReconnecting
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Transport is the subset of *websocket.Conn the connector uses.
type Transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Dialer opens a Transport.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, header http.Header) (Transport, error)
}

// GorillaDialer dials with gorilla/websocket.
type GorillaDialer struct {
	Dialer *websocket.Dialer
}

// DialContext implements Dialer.
func (d GorillaDialer) DialContext(ctx context.Context, urlStr string, header http.Header) (Transport, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, urlStr, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// TransportError describes a failed connection attempt or a dropped
// connection. Dial failures carry code 1006 (abnormal closure).
type TransportError struct {
	Op   string
	Code int
	Err  error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("wsclient: %s failed (code %d)", e.Op, e.Code)
	}
	return fmt.Sprintf("wsclient: %s failed (code %d): %v", e.Op, e.Code, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ClosePayload is the payload of the local close event.
type ClosePayload struct {
	Code int `json:"code"`
}

// Options configures a Connector.
type Options struct {
	// Origin is the page origin, e.g. https://co2.example.com.
	Origin string
	Path   string

	ConnectTimeout     time.Duration
	PingInterval       time.Duration
	ReconnectBaseDelay time.Duration

	// MaxReconnectAttempts caps consecutive reconnects. Zero disables
	// reconnection.
	MaxReconnectAttempts int

	Clock  Clock
	Dialer Dialer
}

// DefaultOptions returns the stock connector settings for origin.
func DefaultOptions(origin string) Options {
	return Options{
		Origin:               origin,
		Path:                 "/ws",
		ConnectTimeout:       10 * time.Second,
		PingInterval:         30 * time.Second,
		ReconnectBaseDelay:   3 * time.Second,
		MaxReconnectAttempts: 5,
	}
}

// OptionsFromConfig maps the client configuration section to Options.
func OptionsFromConfig(cfg config.ClientConfig) Options {
	return Options{
		Origin:               cfg.Origin,
		Path:                 cfg.Path,
		ConnectTimeout:       cfg.ConnectTimeout,
		PingInterval:         cfg.PingInterval,
		ReconnectBaseDelay:   cfg.ReconnectBaseDelay,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
	}
}

// Connector maintains one authenticated connection to the notification
// server and fans received events out to local listeners.
type Connector struct {
	opts      Options
	clock     Clock
	dialer    Dialer
	flight    singleflight.Group
	listeners *listenerRegistry
	log       zerolog.Logger

	mu             sync.Mutex
	state          State
	token          string
	conn           Transport
	attempts       int
	gen            uint64
	cancelDial     context.CancelFunc
	timedOut       bool
	connectTimer   Timer
	pingTimer      Timer
	reconnectTimer Timer

	writeMu sync.Mutex
}

// NewConnector creates an idle connector. Zero durations fall back to
// DefaultOptions; a nil Clock or Dialer uses the real implementations.
func NewConnector(opts Options) *Connector {
	def := DefaultOptions(opts.Origin)
	if opts.Path == "" {
		opts.Path = def.Path
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = def.ConnectTimeout
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = def.PingInterval
	}
	if opts.ReconnectBaseDelay <= 0 {
		opts.ReconnectBaseDelay = def.ReconnectBaseDelay
	}
	if opts.MaxReconnectAttempts < 0 {
		opts.MaxReconnectAttempts = 0
	}

	c := &Connector{
		opts:      opts,
		clock:     opts.Clock,
		dialer:    opts.Dialer,
		listeners: newListenerRegistry(),
		log:       logging.WithComponent("wsclient"),
	}
	if c.clock == nil {
		c.clock = RealClock()
	}
	if c.dialer == nil {
		c.dialer = GorillaDialer{Dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.ConnectTimeout,
		}}
	}
	return c
}

// State returns the current lifecycle state.
func (c *Connector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// On registers fn for eventType (or Wildcard).
func (c *Connector) On(eventType string, fn Handler) ListenerID {
	return c.listeners.on(eventType, fn)
}

// Off removes a registration. It reports whether one was found.
func (c *Connector) Off(eventType string, id ListenerID) bool {
	return c.listeners.off(eventType, id)
}

// Connect opens the connection with token. Concurrent calls share one
// handshake. The connection is Open once the server's connected event
// arrives; a socket closed before that (e.g. 1008 for a rejected token) is a
// failed attempt and spends the reconnect budget. Connect returns nil once
// Open, or the handshake failure; in the failure case a reconnect may already
// be scheduled. ctx only bounds the wait, the shared handshake is bounded by
// the connect timeout.
func (c *Connector) Connect(ctx context.Context, token string) error {
	if c.State() == StateOpen {
		return nil
	}
	ch := c.flight.DoChan(connectKey, func() (interface{}, error) {
		return nil, c.dial(token)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Connector) dial(token string) error {
	c.mu.Lock()
	if c.state == StateOpen {
		c.mu.Unlock()
		return nil
	}
	urlStr, err := BuildURL(c.opts.Origin, c.opts.Path, token)
	if err != nil {
		c.mu.Unlock()
		return &TransportError{Op: "dial", Code: websocket.CloseAbnormalClosure, Err: err}
	}

	stopTimer(&c.reconnectTimer)
	c.gen++
	gen := c.gen
	c.token = token
	c.state = StateConnecting
	c.timedOut = false

	dialCtx, cancel := context.WithCancel(context.Background())
	c.cancelDial = cancel
	c.connectTimer = c.clock.AfterFunc(c.opts.ConnectTimeout, func() {
		c.expireConnect(gen)
	})
	c.mu.Unlock()

	header := http.Header{}
	header.Set("Origin", c.opts.Origin)
	conn, err := c.dialer.DialContext(dialCtx, urlStr, header)

	c.mu.Lock()
	if c.gen != gen || c.state != StateConnecting {
		c.mu.Unlock()
		cancel()
		if conn != nil {
			_ = conn.Close()
		}
		return ErrDisconnected
	}
	c.cancelDial = nil
	cancel()

	if err != nil {
		terr := c.connectErrorLocked("dial", websocket.CloseAbnormalClosure, err)
		c.log.Warn().Err(err).Msg("websocket connection failed")
		events := c.handleCloseLocked(websocket.CloseAbnormalClosure)
		c.mu.Unlock()
		c.flight.Forget(connectKey)
		c.emitAll(events)
		return terr
	}

	// The socket is up but the server has not accepted the credential yet.
	c.conn = conn
	c.mu.Unlock()

	ready := make(chan error, 1)
	go c.readLoop(conn, gen, redactToken(urlStr, token), ready)
	return <-ready
}

// expireConnect aborts a handshake that did not reach Open in time.
func (c *Connector) expireConnect(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen || c.state != StateConnecting {
		return
	}
	c.timedOut = true
	if c.cancelDial != nil {
		c.cancelDial()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func (c *Connector) connectErrorLocked(op string, code int, err error) *TransportError {
	if c.timedOut {
		err = fmt.Errorf("%w after %s: %w", ErrConnectTimeout, c.opts.ConnectTimeout, err)
	}
	return &TransportError{Op: op, Code: code, Err: err}
}

// openLocked moves a connecting socket to Open. It reports false when conn
// was superseded or closed meanwhile.
func (c *Connector) openLocked(conn Transport, gen uint64) bool {
	if c.gen != gen || c.conn != conn || c.state != StateConnecting {
		return false
	}
	stopTimer(&c.connectTimer)
	c.state = StateOpen
	c.attempts = 0
	c.schedulePingLocked(gen)
	return true
}

// handleCloseLocked tears down timers for a closed or failed connection and
// either schedules a reconnect or gives up. It returns the local events to
// emit once c.mu is released.
func (c *Connector) handleCloseLocked(code int) []Message {
	stopTimer(&c.pingTimer)
	stopTimer(&c.connectTimer)
	c.conn = nil

	events := []Message{localEvent(EventClose, ClosePayload{Code: code})}
	if c.state == StateDisconnected {
		return events
	}
	if code == websocket.CloseNormalClosure {
		c.state = StateIdle
		return events
	}

	if c.attempts < c.opts.MaxReconnectAttempts {
		c.attempts++
		delay := c.backoff(c.attempts)
		c.state = StateReconnecting
		gen := c.gen
		c.reconnectTimer = c.clock.AfterFunc(delay, func() {
			c.reconnect(gen)
		})
		metrics.WSClientReconnects.Inc()
		c.log.Info().
			Int("close_code", code).
			Int("attempt", c.attempts).
			Int("max_attempts", c.opts.MaxReconnectAttempts).
			Dur("delay", delay).
			Msg("scheduling websocket reconnect")
		return events
	}

	c.state = StateIdle
	metrics.WSClientConnectionLost.Inc()
	c.log.Error().
		Int("close_code", code).
		Int("max_attempts", c.opts.MaxReconnectAttempts).
		Msg("websocket connection lost")
	return append(events, localEvent(EventConnectionLost, wsproto.MessagePayload{
		Message: fmt.Sprintf("Connection lost after %d reconnection attempts", c.opts.MaxReconnectAttempts),
	}))
}

// backoff returns base * 2^(attempt-1). The exponent is capped and the
// result saturates instead of overflowing.
func (c *Connector) backoff(attempt int) time.Duration {
	shift := attempt - 1
	if shift < 0 {
		shift = 0
	}
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	d := c.opts.ReconnectBaseDelay
	if d > time.Duration(math.MaxInt64>>shift) {
		return time.Duration(math.MaxInt64)
	}
	return d << shift
}

func (c *Connector) reconnect(gen uint64) {
	c.mu.Lock()
	if c.gen != gen || c.state != StateReconnecting {
		c.mu.Unlock()
		return
	}
	c.reconnectTimer = nil
	token := c.token
	c.mu.Unlock()

	if err := c.Connect(context.Background(), token); err != nil {
		c.log.Debug().Err(err).Msg("websocket reconnect attempt failed")
	}
}

func (c *Connector) schedulePingLocked(gen uint64) {
	c.pingTimer = c.clock.AfterFunc(c.opts.PingInterval, func() {
		c.firePing(gen)
	})
}

func (c *Connector) firePing(gen uint64) {
	c.mu.Lock()
	if c.gen != gen || c.state != StateOpen {
		c.mu.Unlock()
		return
	}
	c.schedulePingLocked(gen)
	c.mu.Unlock()

	c.Send(wsproto.Event{Type: wsproto.TypePing, Payload: struct{}{}})
}

// readLoop reads until the socket fails. While the handshake is pending,
// ready receives its outcome exactly once.
func (c *Connector) readLoop(conn Transport, gen uint64, logURL string, ready chan<- error) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleReadError(conn, gen, err, ready)
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			c.log.Debug().Err(err).Msg("failed to parse websocket message")
			c.emit(localEvent(EventError, wsproto.MessagePayload{Message: "Invalid message format"}))
			continue
		}

		if ready != nil && msg.Type == wsproto.TypeConnected {
			c.mu.Lock()
			opened := c.openLocked(conn, gen)
			c.mu.Unlock()
			if !opened {
				// Disconnect closed conn; the next read reports it.
				continue
			}
			c.log.Info().Str("url", logURL).Msg("websocket connected")
			c.flight.Forget(connectKey)
			c.emit(localEvent(EventOpen, nil))
			ready <- nil
			ready = nil
		}
		c.emit(msg)
	}
}

func (c *Connector) handleReadError(conn Transport, gen uint64, err error, ready chan<- error) {
	code := websocket.CloseAbnormalClosure
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		code = ce.Code
	}

	c.mu.Lock()
	if c.gen != gen || c.conn != conn {
		c.mu.Unlock()
		if ready != nil {
			ready <- ErrDisconnected
		}
		return
	}
	var terr error
	if ready != nil {
		if c.timedOut {
			code = websocket.CloseAbnormalClosure
		}
		terr = c.connectErrorLocked("handshake", code, err)
		c.log.Warn().Err(err).Int("close_code", code).Msg("websocket handshake rejected")
	}
	events := c.handleCloseLocked(code)
	c.mu.Unlock()

	_ = conn.Close()
	if ready != nil {
		c.flight.Forget(connectKey)
	}
	c.emitAll(events)
	if ready != nil {
		ready <- terr
	}
}

// Send writes ev to the server. It reports false when the connection is not
// open or the write fails.
func (c *Connector) Send(ev wsproto.Event) bool {
	c.mu.Lock()
	conn := c.conn
	open := c.state == StateOpen
	c.mu.Unlock()
	if !open || conn == nil {
		return false
	}

	data, err := wsproto.MarshalEvent(ev)
	if err != nil {
		c.log.Warn().Err(err).Str("type", ev.Type).Msg("failed to encode websocket message")
		return false
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return false
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.log.Debug().Err(err).Str("type", ev.Type).Msg("failed to send websocket message")
		return false
	}
	return true
}

// Disconnect closes the connection with 1000 and cancels every pending
// timer. No reconnect follows; a later Connect starts over.
func (c *Connector) Disconnect() {
	c.mu.Lock()
	c.attempts = c.opts.MaxReconnectAttempts
	stopTimer(&c.pingTimer)
	stopTimer(&c.connectTimer)
	stopTimer(&c.reconnectTimer)
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}
	conn := c.conn
	c.conn = nil
	c.state = StateDisconnected
	c.gen++
	c.mu.Unlock()

	if conn == nil {
		return
	}
	c.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	c.writeMu.Unlock()
	_ = conn.Close()

	c.log.Info().Msg("websocket disconnected")
	c.emit(localEvent(EventClose, ClosePayload{Code: websocket.CloseNormalClosure}))
}

func (c *Connector) emitAll(events []Message) {
	for _, m := range events {
		c.emit(m)
	}
}

// emit runs the listeners for m.Type, then the wildcard listeners.
func (c *Connector) emit(m Message) {
	for _, l := range c.listeners.snapshot(m.Type) {
		c.invoke(l, m)
	}
	if m.Type == Wildcard {
		return
	}
	for _, l := range c.listeners.snapshot(Wildcard) {
		c.invoke(l, m)
	}
}

func (c *Connector) invoke(l listener, m Message) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().
				Interface("panic", r).
				Str("type", m.Type).
				Uint64("listener_id", uint64(l.id)).
				Msg("websocket listener panicked")
		}
	}()
	l.fn(m)
}

func localEvent(eventType string, payload interface{}) Message {
	m := Message{Type: eventType}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			m.Payload = raw
		}
	}
	return m
}

func redactToken(urlStr, token string) string {
	if token == "" {
		return urlStr
	}
	return strings.Replace(urlStr, "token="+url.QueryEscape(token), "token="+logging.SanitizeToken(token), 1)
}
