// CO2Track - Carbon Footprint Tracking and Reduction Goals
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/co2track

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tomtom215/co2track/internal/websocket"
)

var _ Notifier = (*websocket.Hub)(nil)

type recordingNotifier struct {
	users []string
	all   []string
}

func (n *recordingNotifier) BroadcastToUser(userID string, ev websocket.Event) {
	n.users = append(n.users, userID+":"+ev.Type)
}

func (n *recordingNotifier) BroadcastToAll(ev websocket.Event) {
	n.all = append(n.all, ev.Type)
}

func TestNotifierFromContext_Default(t *testing.T) {
	n := NotifierFromContext(context.Background())
	// Must be callable without a hub.
	n.BroadcastToUser("alice", websocket.Event{Type: websocket.TypeCO2DataAdded})
	n.BroadcastToAll(websocket.Event{Type: websocket.TypeLeaderboardUpdated})
}

func TestWithNotifier(t *testing.T) {
	rec := &recordingNotifier{}
	h := WithNotifier(rec)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := NotifierFromContext(r.Context())
		n.BroadcastToUser("alice", websocket.Event{Type: websocket.TypeDataDeleted})
		n.BroadcastToAll(websocket.Event{Type: websocket.TypeLeaderboardUpdated})
		w.WriteHeader(http.StatusNoContent)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/entries/1", nil))

	if len(rec.users) != 1 || rec.users[0] != "alice:data-deleted" {
		t.Errorf("user broadcasts = %v", rec.users)
	}
	if len(rec.all) != 1 || rec.all[0] != "leaderboard-updated" {
		t.Errorf("all broadcasts = %v", rec.all)
	}
}
