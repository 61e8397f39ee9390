package services

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"sync"

	"github.com/hellodits/dee-POS-sub002/internal/core/domain"
	apperrors "github.com/hellodits/dee-POS-sub002/internal/core/errors"
	"github.com/hellodits/dee-POS-sub002/internal/core/ports"
)

const roomLockStripes = 64

// EventDispatcher resolves events to rooms and fans them out. Fan-out to one
// room is serialized so members see events in publish order.
type EventDispatcher struct {
	rooms    ports.RoomDirectory
	registry ports.ConnectionRegistry
	metrics  ports.GatewayMetrics
	logger   *slog.Logger

	stripes [roomLockStripes]sync.Mutex
}

var _ ports.EventPublisher = (*EventDispatcher)(nil)

// NewEventDispatcher creates a dispatcher.
func NewEventDispatcher(
	rooms ports.RoomDirectory,
	registry ports.ConnectionRegistry,
	metrics ports.GatewayMetrics,
	logger *slog.Logger,
) *EventDispatcher {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &EventDispatcher{
		rooms:    rooms,
		registry: registry,
		metrics:  metrics,
		logger:   logger.With("component", "event_dispatcher"),
	}
}

// Publish validates the event and broadcasts it to every room its scope names.
// An event with no scope is rejected before anything is sent. Rooms with no
// members are a normal no-op.
func (d *EventDispatcher) Publish(ctx context.Context, event domain.Event) ([]domain.RoomID, error) {
	if err := event.Validate(); err != nil {
		reason := rejectionReason(err)
		d.metrics.PublishRejected(reason)
		d.logger.WarnContext(ctx, "event rejected",
			"event_kind", event.Kind,
			"reason", reason,
			"error", err,
		)
		return nil, err
	}

	targets := event.Scope.Rooms()
	msg := event.Message()
	d.metrics.EventPublished(event.Kind)

	for _, room := range targets {
		if err := ctx.Err(); err != nil {
			return targets, err
		}
		d.broadcast(ctx, room, msg)
	}
	return targets, nil
}

func (d *EventDispatcher) broadcast(ctx context.Context, room domain.RoomID, msg domain.OutboundMessage) {
	lock := d.roomLock(room)
	lock.Lock()
	defer lock.Unlock()

	members := d.rooms.MembersOf(room)
	for _, conn := range members {
		d.registry.Send(conn, msg)
	}

	d.logger.DebugContext(ctx, "event broadcast",
		"event_kind", msg.Kind,
		"room", room,
		"room_scope", room.ScopeLabel(),
		"recipients", len(members),
	)
}

func (d *EventDispatcher) roomLock(room domain.RoomID) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(room))
	return &d.stripes[h.Sum32()%roomLockStripes]
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrRoomTargetUnresolvable):
		return "room_target_unresolvable"
	case errors.Is(err, apperrors.ErrUnknownEventKind):
		return "unknown_kind"
	case errors.Is(err, apperrors.ErrInvalidPayload):
		return "invalid_payload"
	default:
		return "invalid_scope"
	}
}
