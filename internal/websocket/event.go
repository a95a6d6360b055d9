// CO2Track - Carbon Footprint Tracking and Reduction Goals
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/co2track

package websocket

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

// Inbound message types (client -> server)
const (
	TypeSubscribeCO2Data      = "subscribe-co2-data"
	TypeSubscribeGoalProgress = "subscribe-goal-progress"
	TypePing                  = "ping"
)

// Outbound message types (server -> client)
const (
	TypeConnected  = "connected"
	TypeSubscribed = "subscribed"
	TypePong       = "pong"
	TypeError      = "error"
)

// Application broadcast types
const (
	TypeCO2DataAdded       = "co2-data-added"
	TypeCO2DataUpdated     = "co2-data-updated"
	TypeDataDeleted        = "data-deleted"
	TypePasswordUpdated    = "password-updated"
	TypeAccountDeleted     = "account-deleted"
	TypeLeaderboardUpdated = "leaderboard-updated"
)

// Event is the unit of communication in both directions.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ConnectedPayload acknowledges a successful handshake.
type ConnectedPayload struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

// MessagePayload is used by subscribed and error events.
type MessagePayload struct {
	Message string `json:"message"`
}

// PongPayload answers a ping. Timestamp is Unix milliseconds.
type PongPayload struct {
	Timestamp int64 `json:"timestamp"`
}

// MarshalEvent encodes an event as a JSON text frame.
func MarshalEvent(ev Event) ([]byte, error) {
	return json.Marshal(ev)
}

// InboundMessage is a decoded client frame. The concrete type is one of
// SubscribeCO2Data, SubscribeGoalProgress, Ping or UnknownMessage.
type InboundMessage interface {
	MessageType() string
}

// SubscribeCO2Data asks for updates on one CO2 data category.
type SubscribeCO2Data struct {
	DataType string `json:"dataType" validate:"required"`
}

// SubscribeGoalProgress asks for updates on one goal.
type SubscribeGoalProgress struct {
	GoalID string `json:"goalId" validate:"required"`
}

// Ping is a liveness probe.
type Ping struct{}

// UnknownMessage carries a type the server does not recognize.
type UnknownMessage struct {
	Type string
}

func (SubscribeCO2Data) MessageType() string      { return TypeSubscribeCO2Data }
func (SubscribeGoalProgress) MessageType() string { return TypeSubscribeGoalProgress }
func (Ping) MessageType() string                  { return TypePing }
func (m UnknownMessage) MessageType() string      { return m.Type }

// ErrInvalidFormat is wrapped by MalformedMessageError when the frame is not
// a JSON event.
var ErrInvalidFormat = errors.New("invalid message format")

// MalformedMessageError reports a frame that could not be decoded or whose
// payload failed validation. The connection stays open.
type MalformedMessageError struct {
	// Type is the message type, empty if the envelope itself was unreadable.
	Type string
	Err  error
}

func (e *MalformedMessageError) Error() string {
	if e.Type == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("invalid payload for %s: %v", e.Type, e.Err)
}

func (e *MalformedMessageError) Unwrap() error {
	return e.Err
}

type envelope struct {
	Type    *string         `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ParseInbound decodes a client frame into its typed message.
func ParseInbound(data []byte) (InboundMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &MalformedMessageError{Err: ErrInvalidFormat}
	}
	if env.Type == nil {
		return nil, &MalformedMessageError{Err: fmt.Errorf("%w: missing type", ErrInvalidFormat)}
	}

	switch *env.Type {
	case TypeSubscribeCO2Data:
		var m SubscribeCO2Data
		if err := decodePayload(env.Payload, &m); err != nil {
			return nil, &MalformedMessageError{Type: *env.Type, Err: err}
		}
		return m, nil
	case TypeSubscribeGoalProgress:
		var m SubscribeGoalProgress
		if err := decodePayload(env.Payload, &m); err != nil {
			return nil, &MalformedMessageError{Type: *env.Type, Err: err}
		}
		return m, nil
	case TypePing:
		return Ping{}, nil
	default:
		return UnknownMessage{Type: *env.Type}, nil
	}
}

func decodePayload(raw json.RawMessage, dst interface{}) error {
	if len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		if err := json.Unmarshal(raw, dst); err != nil {
			return ErrInvalidFormat
		}
	}
	return validatePayload(dst)
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

func validatePayload(s interface{}) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		default:
			msgs = append(msgs, fe.Field()+" failed "+fe.Tag())
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

func errorEvent(message string) Event {
	return Event{Type: TypeError, Payload: MessagePayload{Message: message}}
}
