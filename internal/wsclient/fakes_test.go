// CO2Track - Carbon Footprint Tracking and Reduction Goals
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/co2track

package wsclient

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

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

// fakeClock fires timers only when advanced.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Advance moves time forward by d, running due timers in deadline order.
// Callbacks run on the caller's goroutine with the clock unlocked.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = next.at
		next.fired = true
		c.mu.Unlock()
		next.fn()
	}
}

// Pending returns the number of timers that have neither fired nor been stopped.
func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// fakeTransport is an in-memory Transport. The "server" side pushes frames
// with deliver and drops the connection with serverClose.
type fakeTransport struct {
	incoming  chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu          sync.Mutex
	code        int
	written     [][]byte
	closeFrames []int
}

// greeting is the server's acknowledgment of an accepted credential.
const greeting = `{"type":"connected","payload":{"userId":"u1","message":"Connected to CO2 tracker"}}`

// newFakeTransport returns a transport whose server has accepted the
// credential and already queued the connected event.
func newFakeTransport() *fakeTransport {
	f := newSilentTransport()
	f.deliver(greeting)
	return f
}

// newSilentTransport returns a transport whose server never greets.
func newSilentTransport() *fakeTransport {
	return &fakeTransport{
		incoming: make(chan []byte, 16),
		closed:   make(chan struct{}),
	}
}

// rejectingTransport is a socket the server closes with code before
// sending anything, like a handshake with a refused credential.
func rejectingTransport(code int) *fakeTransport {
	f := newSilentTransport()
	f.serverClose(code)
	return f
}

func (f *fakeTransport) ReadMessage() (int, []byte, error) {
	select {
	case data := <-f.incoming:
		return websocket.TextMessage, data, nil
	case <-f.closed:
		f.mu.Lock()
		code := f.code
		f.mu.Unlock()
		return 0, nil, &websocket.CloseError{Code: code}
	}
}

func (f *fakeTransport) WriteMessage(_ int, data []byte) error {
	select {
	case <-f.closed:
		return errors.New("use of closed connection")
	default:
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, append([]byte(nil), data...))
	return nil
}

func (f *fakeTransport) WriteControl(messageType int, data []byte, _ time.Time) error {
	if messageType == websocket.CloseMessage && len(data) >= 2 {
		f.mu.Lock()
		f.closeFrames = append(f.closeFrames, int(binary.BigEndian.Uint16(data)))
		f.mu.Unlock()
	}
	return nil
}

func (f *fakeTransport) SetWriteDeadline(time.Time) error {
	return nil
}

func (f *fakeTransport) Close() error {
	f.shut(websocket.CloseAbnormalClosure)
	return nil
}

func (f *fakeTransport) serverClose(code int) {
	f.shut(code)
}

func (f *fakeTransport) shut(code int) {
	f.mu.Lock()
	if f.code == 0 {
		f.code = code
	}
	f.mu.Unlock()
	f.closeOnce.Do(func() { close(f.closed) })
}

func (f *fakeTransport) deliver(data string) {
	f.incoming <- []byte(data)
}

func (f *fakeTransport) Written() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.written...)
}

func (f *fakeTransport) CloseFrames() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.closeFrames...)
}

// fakeDialer records every dial and delegates the outcome to next, which
// receives the 1-based dial number.
type fakeDialer struct {
	clock   *fakeClock
	next    func(ctx context.Context, n int) (Transport, error)
	entered chan int

	mu      sync.Mutex
	times   []time.Time
	urls    []string
	headers []http.Header
}

func (d *fakeDialer) DialContext(ctx context.Context, urlStr string, header http.Header) (Transport, error) {
	d.mu.Lock()
	d.times = append(d.times, d.clock.Now())
	d.urls = append(d.urls, urlStr)
	d.headers = append(d.headers, header.Clone())
	n := len(d.times)
	d.mu.Unlock()

	if d.entered != nil {
		select {
		case d.entered <- n:
		default:
		}
	}
	return d.next(ctx, n)
}

func (d *fakeDialer) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.times)
}

func (d *fakeDialer) Times() []time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]time.Time(nil), d.times...)
}

func (d *fakeDialer) Last() (string, http.Header) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.urls) == 0 {
		return "", nil
	}
	return d.urls[len(d.urls)-1], d.headers[len(d.headers)-1]
}

var errRefused = errors.New("connection refused")

func newTestConnector(t *testing.T, next func(ctx context.Context, n int) (Transport, error)) (*Connector, *fakeClock, *fakeDialer) {
	t.Helper()
	clock := newFakeClock()
	dialer := &fakeDialer{clock: clock, next: next, entered: make(chan int, 16)}
	opts := DefaultOptions("http://localhost:5000")
	opts.Clock = clock
	opts.Dialer = dialer
	c := NewConnector(opts)
	t.Cleanup(c.Disconnect)
	return c, clock, dialer
}

// blockingDial waits until the dial context is canceled.
func blockingDial(ctx context.Context, _ int) (Transport, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// collect registers a buffered listener for eventType.
func collect(c *Connector, eventType string) chan Message {
	ch := make(chan Message, 32)
	c.On(eventType, func(m Message) { ch <- m })
	return ch
}

func nextEvent(t *testing.T, ch chan Message) Message {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Message{}
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

func waitState(t *testing.T, c *Connector, want State) {
	t.Helper()
	waitFor(t, func() bool { return c.State() == want }, "state "+want.String())
}
