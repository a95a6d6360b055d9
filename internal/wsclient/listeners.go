// CO2Track - Carbon Footprint Tracking and Reduction Goals
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/co2track

package wsclient

import (
	"sync"

	"github.com/goccy/go-json"
)

// Wildcard listeners receive every event regardless of type.
const Wildcard = "*"

// Message is an event received from the server or synthesized locally.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Decode unmarshals the payload into v.
func (m Message) Decode(v interface{}) error {
	if len(m.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(m.Payload, v)
}

// Handler receives dispatched events. A panicking handler is recovered and
// logged; remaining handlers still run.
type Handler func(Message)

// ListenerID identifies a registration for Off.
type ListenerID uint64

type listener struct {
	id ListenerID
	fn Handler
}

// listenerRegistry maps event type to handlers in registration order.
type listenerRegistry struct {
	mu     sync.RWMutex
	nextID ListenerID
	byType map[string][]listener
}

func newListenerRegistry() *listenerRegistry {
	return &listenerRegistry{byType: make(map[string][]listener)}
}

func (r *listenerRegistry) on(eventType string, fn Handler) ListenerID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.byType[eventType] = append(r.byType[eventType], listener{id: r.nextID, fn: fn})
	return r.nextID
}

func (r *listenerRegistry) off(eventType string, id ListenerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	ls := r.byType[eventType]
	for i, l := range ls {
		if l.id != id {
			continue
		}
		kept := make([]listener, 0, len(ls)-1)
		kept = append(kept, ls[:i]...)
		kept = append(kept, ls[i+1:]...)
		if len(kept) == 0 {
			delete(r.byType, eventType)
		} else {
			r.byType[eventType] = kept
		}
		return true
	}
	return false
}

// snapshot copies the handlers for eventType so dispatch runs unlocked and
// handlers may register or remove listeners.
func (r *listenerRegistry) snapshot(eventType string) []listener {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ls := r.byType[eventType]
	if len(ls) == 0 {
		return nil
	}
	out := make([]listener, len(ls))
	copy(out, ls)
	return out
}
