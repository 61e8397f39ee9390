package domain

import "strings"

const (
	staffRoomPrefix = "staff:"
	orderRoomPrefix = "order:"
)

// RoomID names a delivery scope. Rooms are never declared; they exist while
// they have members.
type RoomID string

// ConnectionID identifies one live connection. Generated at accept time.
type ConnectionID string

// StaffRoom returns the room for the staff of one branch.
func StaffRoom(branchID string) RoomID {
	return RoomID(staffRoomPrefix + branchID)
}

// OrderRoom returns the room for customers tracking one order.
func OrderRoom(orderNumber string) RoomID {
	return RoomID(orderRoomPrefix + orderNumber)
}

// IsStaffRoom reports whether the room is a branch staff room.
func (r RoomID) IsStaffRoom() bool {
	return strings.HasPrefix(string(r), staffRoomPrefix)
}

// IsOrderRoom reports whether the room is an order tracking room.
func (r RoomID) IsOrderRoom() bool {
	return strings.HasPrefix(string(r), orderRoomPrefix)
}

// ScopeLabel is the low-cardinality name of the room family, for metrics and logs.
func (r RoomID) ScopeLabel() string {
	switch {
	case r.IsStaffRoom():
		return "staff"
	case r.IsOrderRoom():
		return "order"
	default:
		return "unknown"
	}
}

func (r RoomID) String() string {
	return string(r)
}
