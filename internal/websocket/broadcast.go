// CO2Track - Carbon Footprint Tracking and Reduction Goals
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/co2track

package websocket

// DataDeletedPayload identifies a removed CO2 data entry.
type DataDeletedPayload struct {
	ID string `json:"id"`
}

// NotifyCO2DataAdded tells the user's sessions that a CO2 entry was created.
func (h *Hub) NotifyCO2DataAdded(userID string, entry interface{}) {
	h.BroadcastToUser(userID, Event{Type: TypeCO2DataAdded, Payload: entry})
}

// NotifyCO2DataUpdated tells the user's sessions that a CO2 entry changed.
func (h *Hub) NotifyCO2DataUpdated(userID string, entry interface{}) {
	h.BroadcastToUser(userID, Event{Type: TypeCO2DataUpdated, Payload: entry})
}

// NotifyDataDeleted tells the user's sessions that a CO2 entry was removed.
func (h *Hub) NotifyDataDeleted(userID, entryID string) {
	h.BroadcastToUser(userID, Event{Type: TypeDataDeleted, Payload: DataDeletedPayload{ID: entryID}})
}

// NotifyPasswordUpdated tells the user's other sessions that the password changed.
func (h *Hub) NotifyPasswordUpdated(userID string) {
	h.BroadcastToUser(userID, Event{
		Type:    TypePasswordUpdated,
		Payload: MessagePayload{Message: "Your password has been updated"},
	})
}

// NotifyAccountDeleted tells the user's sessions that the account is gone.
func (h *Hub) NotifyAccountDeleted(userID string) {
	h.BroadcastToUser(userID, Event{
		Type:    TypeAccountDeleted,
		Payload: MessagePayload{Message: "Your account has been deleted"},
	})
}

// NotifyLeaderboardUpdated tells every session that rankings changed.
func (h *Hub) NotifyLeaderboardUpdated(leaderboard interface{}) {
	h.BroadcastToAll(Event{Type: TypeLeaderboardUpdated, Payload: leaderboard})
}
