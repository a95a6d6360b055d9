// CO2Track - Carbon Footprint Tracking and Reduction Goals
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/co2track

package websocket

import (
	"sort"
	"sync"
)

// Registry maps a user id to the set of live connections for that user.
//
// Mutations (add, remove) are made only from the hub's run loop. Readers on
// other goroutines take the read lock and get copies.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]map[*Conn]struct{}
	total  int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byUser: make(map[string]map[*Conn]struct{})}
}

// add inserts c under its identity. The identity entry is created on demand.
// It reports false if c was already registered.
func (r *Registry) add(c *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	uid := c.identity.UserID
	set, ok := r.byUser[uid]
	if !ok {
		set = make(map[*Conn]struct{})
		r.byUser[uid] = set
	}
	if _, dup := set[c]; dup {
		return false
	}
	set[c] = struct{}{}
	r.total++
	return true
}

// remove deletes c and drops the identity entry once its set is empty.
// It reports false if c was not registered.
func (r *Registry) remove(c *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	uid := c.identity.UserID
	set, ok := r.byUser[uid]
	if !ok {
		return false
	}
	if _, present := set[c]; !present {
		return false
	}
	delete(set, c)
	r.total--
	if len(set) == 0 {
		delete(r.byUser, uid)
	}
	return true
}

// ConnectionsFor returns the user's connections ordered by connection sequence.
func (r *Registry) ConnectionsFor(userID string) []*Conn {
	r.mu.RLock()
	set := r.byUser[userID]
	out := make([]*Conn, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	r.mu.RUnlock()

	sortConns(out)
	return out
}

// All returns every registered connection ordered by connection sequence.
func (r *Registry) All() []*Conn {
	r.mu.RLock()
	out := make([]*Conn, 0, r.total)
	for _, set := range r.byUser {
		for c := range set {
			out = append(out, c)
		}
	}
	r.mu.RUnlock()

	sortConns(out)
	return out
}

// Has reports whether the user has at least one connection.
func (r *Registry) Has(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byUser[userID]
	return ok
}

// IdentityCount returns the number of users with at least one connection.
func (r *Registry) IdentityCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

// ConnectionCount returns the total number of registered connections.
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.total
}

// CountFor returns the number of connections registered for the user.
func (r *Registry) CountFor(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID])
}

// sortConns orders connections by their monotonically increasing sequence so
// fan-out and shutdown iterate deterministically.
func sortConns(conns []*Conn) {
	sort.Slice(conns, func(i, j int) bool { return conns[i].seq < conns[j].seq })
}
