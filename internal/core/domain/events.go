package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	apperrors "github.com/hellodits/dee-POS-sub002/internal/core/errors"
)

// EventKind is the notification kind clients switch on.
type EventKind string

const (
	EventOrderStatusUpdated EventKind = "order_status_updated"
	EventOrderReady         EventKind = "order_ready"
	EventNewOrder           EventKind = "new_order_notification"
	EventKitchenUpdate      EventKind = "kitchen_update"
	EventNewReservation     EventKind = "new_reservation_notification"
	EventTableStatusUpdated EventKind = "table_status_updated"
)

// Control kinds are gateway replies, not notifications.
const (
	ControlJoined EventKind = "joined"
	ControlLeft   EventKind = "left"
	ControlError  EventKind = "error"
	ControlPong   EventKind = "pong"
)

var notificationKinds = map[EventKind]bool{
	EventOrderStatusUpdated: true,
	EventOrderReady:         true,
	EventNewOrder:           true,
	EventKitchenUpdate:      true,
	EventNewReservation:     true,
	EventTableStatusUpdated: true,
}

// IsNotification reports whether k is one of the six enumerated notification kinds.
func (k EventKind) IsNotification() bool {
	return notificationKinds[k]
}

// Scope is attached by the producer. At least one field must be set.
type Scope struct {
	BranchID    string `json:"branch_id,omitempty"`
	OrderNumber string `json:"order_number,omitempty"`
}

// IsEmpty reports whether the scope names no target at all.
func (s Scope) IsEmpty() bool {
	return s.BranchID == "" && s.OrderNumber == ""
}

// Rooms resolves the scope to its target rooms, branch room first.
func (s Scope) Rooms() []RoomID {
	rooms := make([]RoomID, 0, 2)
	if s.BranchID != "" {
		rooms = append(rooms, StaffRoom(s.BranchID))
	}
	if s.OrderNumber != "" {
		rooms = append(rooms, OrderRoom(s.OrderNumber))
	}
	return rooms
}

// Event is an immutable fact handed to the dispatcher. It is discarded once dispatched.
type Event struct {
	Kind    EventKind
	Payload json.RawMessage
	Scope   Scope
}

// NewEvent marshals payload and validates the result.
func NewEvent(kind EventKind, payload any, scope Scope) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %w", apperrors.ErrInvalidPayload, err)
	}
	event := Event{Kind: kind, Payload: raw, Scope: scope}
	if err := event.Validate(); err != nil {
		return Event{}, err
	}
	return event, nil
}

// Validate rejects events that cannot be published. An empty scope is a
// producer bug and fails with ErrRoomTargetUnresolvable.
func (e Event) Validate() error {
	if !e.Kind.IsNotification() {
		return fmt.Errorf("%w: %q", apperrors.ErrUnknownEventKind, e.Kind)
	}
	if e.Scope.IsEmpty() {
		return apperrors.ErrRoomTargetUnresolvable
	}
	if e.Scope.BranchID != "" {
		if err := ValidateBranchID(e.Scope.BranchID); err != nil {
			return err
		}
	}
	if e.Scope.OrderNumber != "" {
		if err := ValidateOrderNumber(e.Scope.OrderNumber); err != nil {
			return err
		}
	}
	if len(e.Payload) > 0 {
		trimmed := bytes.TrimSpace(e.Payload)
		if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
			return apperrors.ErrInvalidPayload
		}
	}
	return nil
}

// Message is the client-facing shape of the event.
func (e Event) Message() OutboundMessage {
	payload := e.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	return OutboundMessage{Kind: e.Kind, Payload: payload}
}

// OutboundMessage is one frame sent to a client: {kind, payload}.
type OutboundMessage struct {
	Kind    EventKind       `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// RoomPayload is carried by joined/left replies.
type RoomPayload struct {
	Room RoomID `json:"room"`
}

// ErrorPayload is carried by error replies.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewControlMessage builds a gateway reply frame.
func NewControlMessage(kind EventKind, payload any) OutboundMessage {
	msg := OutboundMessage{Kind: kind}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			msg.Payload = raw
		}
	}
	return msg
}
