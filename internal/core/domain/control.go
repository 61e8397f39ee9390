package domain

import "encoding/json"

// ControlType names a client to gateway control message.
type ControlType string

const (
	ControlJoinStaff     ControlType = "join:staff"
	ControlJoinCustomer  ControlType = "join:customer"
	ControlLeaveStaff    ControlType = "leave:staff"
	ControlLeaveCustomer ControlType = "leave:customer"
	ControlPing          ControlType = "ping"
)

// ControlMessage is the client to gateway frame: {type, payload}.
type ControlMessage struct {
	Type    ControlType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// JoinStaffPayload is the body of join:staff. Any branch a client sends is ignored.
type JoinStaffPayload struct {
	Role Role `json:"role"`
}

// CustomerPayload is the body of join:customer and leave:customer.
type CustomerPayload struct {
	OrderNumber string `json:"order_number"`
}

// NewControl builds a control message with a marshalled payload.
func NewControl(t ControlType, payload any) (ControlMessage, error) {
	msg := ControlMessage{Type: t}
	if payload == nil {
		return msg, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return ControlMessage{}, err
	}
	msg.Payload = raw
	return msg, nil
}
