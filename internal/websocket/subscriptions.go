// CO2Track - Carbon Footprint Tracking and Reduction Goals
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/co2track

package websocket

import (
	"sort"
	"sync"
)

// Topic is an opaque subscription key. Broadcasts do not filter on topics;
// they are recorded so operators and future routing can see what each
// connection asked for.
type Topic string

// CO2DataTopic is the topic for one CO2 data category.
func CO2DataTopic(dataType string) Topic {
	return Topic("co2:" + dataType)
}

// GoalProgressTopic is the topic for one goal.
func GoalProgressTopic(goalID string) Topic {
	return Topic("goal:" + goalID)
}

// Subscriptions is the per-connection subscription table.
type Subscriptions struct {
	mu     sync.RWMutex
	topics map[Topic]struct{}
}

// NewSubscriptions returns an empty table.
func NewSubscriptions() *Subscriptions {
	return &Subscriptions{topics: make(map[Topic]struct{})}
}

// Add records a topic. It reports false if the topic was already present.
func (s *Subscriptions) Add(t Topic) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.topics[t]; ok {
		return false
	}
	s.topics[t] = struct{}{}
	return true
}

// Has reports whether the topic is recorded.
func (s *Subscriptions) Has(t Topic) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.topics[t]
	return ok
}

// Len returns the number of recorded topics.
func (s *Subscriptions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.topics)
}

// List returns the topics in sorted order.
func (s *Subscriptions) List() []Topic {
	s.mu.RLock()
	out := make([]Topic, 0, len(s.topics))
	for t := range s.topics {
		out = append(out, t)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
