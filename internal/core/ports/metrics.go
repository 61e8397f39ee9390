package ports

import "github.com/hellodits/dee-POS-sub002/internal/core/domain"

// Delivery outcomes reported to GatewayMetrics.
const (
	OutcomeDelivered = "delivered"
	OutcomeDropped   = "dropped"
	OutcomeEvicted   = "evicted"
)

// GatewayMetrics receives counters from the core services.
type GatewayMetrics interface {
	ConnectionOpened(kind domain.IdentityKind)
	ConnectionClosed(kind domain.IdentityKind)
	RoomJoined(room domain.RoomID)
	EventPublished(kind domain.EventKind)
	Delivery(outcome string)
	PublishRejected(reason string)
}
