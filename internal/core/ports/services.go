package ports

import (
	"context"

	"github.com/hellodits/dee-POS-sub002/internal/core/domain"
)

// DeliverySink is the transport side of one connection. Deliver must never
// block; it returns false when the outbound queue is full.
type DeliverySink interface {
	Deliver(msg domain.OutboundMessage) bool
	Close()
}

// RoomDirectory maps rooms to their current members.
type RoomDirectory interface {
	Join(room domain.RoomID, conn domain.ConnectionID)
	Leave(room domain.RoomID, conn domain.ConnectionID)
	MembersOf(room domain.RoomID) []domain.ConnectionID
	RoomsOf(conn domain.ConnectionID) []domain.RoomID
	LeaveAll(conn domain.ConnectionID) []domain.RoomID
	RoomCount() int
}

// ConnectionRegistry owns every live connection and its identity.
type ConnectionRegistry interface {
	Register(identity domain.Identity, sink DeliverySink) (domain.ConnectionID, error)
	Unregister(conn domain.ConnectionID)
	Send(conn domain.ConnectionID, msg domain.OutboundMessage)
	IsLive(conn domain.ConnectionID) bool
	Identity(conn domain.ConnectionID) (domain.Identity, bool)
	Join(conn domain.ConnectionID, room domain.RoomID) error
	Leave(conn domain.ConnectionID, room domain.RoomID)
	Count() int
	CloseAll()
}

// EventPublisher is the inbound contract for domain collaborators.
type EventPublisher interface {
	// Publish validates and fans out an event, returning the rooms it targeted.
	Publish(ctx context.Context, event domain.Event) ([]domain.RoomID, error)
}

// SubscriptionService applies the room naming policy to client control messages.
type SubscriptionService interface {
	JoinStaff(ctx context.Context, conn domain.ConnectionID, role domain.Role) (domain.RoomID, error)
	JoinCustomer(ctx context.Context, conn domain.ConnectionID, orderNumber string) (domain.RoomID, error)
	LeaveStaff(ctx context.Context, conn domain.ConnectionID) (domain.RoomID, error)
	LeaveCustomer(ctx context.Context, conn domain.ConnectionID, orderNumber string) (domain.RoomID, error)
}
