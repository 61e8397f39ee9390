package services

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/hellodits/dee-POS-sub002/internal/core/domain"
	apperrors "github.com/hellodits/dee-POS-sub002/internal/core/errors"
	"github.com/hellodits/dee-POS-sub002/internal/core/ports"
)

type connection struct {
	id       domain.ConnectionID
	identity domain.Identity
	sink     ports.DeliverySink

	// mu orders membership changes against unregistration.
	mu   sync.Mutex
	live bool
}

// ConnectionRegistry tracks live connections and gates their room membership.
type ConnectionRegistry struct {
	mu    sync.RWMutex
	conns map[domain.ConnectionID]*connection

	rooms   ports.RoomDirectory
	metrics ports.GatewayMetrics
	logger  *slog.Logger
}

var _ ports.ConnectionRegistry = (*ConnectionRegistry)(nil)

// NewConnectionRegistry creates a registry backed by rooms.
func NewConnectionRegistry(rooms ports.RoomDirectory, metrics ports.GatewayMetrics, logger *slog.Logger) *ConnectionRegistry {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &ConnectionRegistry{
		conns:   make(map[domain.ConnectionID]*connection),
		rooms:   rooms,
		metrics: metrics,
		logger:  logger.With("component", "connection_registry"),
	}
}

// Register admits an authenticated identity and returns its new connection ID.
func (r *ConnectionRegistry) Register(identity domain.Identity, sink ports.DeliverySink) (domain.ConnectionID, error) {
	if err := identity.Validate(); err != nil {
		return "", err
	}
	if sink == nil {
		return "", apperrors.ErrInternal
	}

	c := &connection{
		id:       domain.ConnectionID(uuid.NewString()),
		identity: identity,
		sink:     sink,
		live:     true,
	}

	r.mu.Lock()
	r.conns[c.id] = c
	total := len(r.conns)
	r.mu.Unlock()

	r.metrics.ConnectionOpened(identity.Kind)
	r.logger.Debug("connection registered",
		"connection_id", c.id,
		"identity_kind", identity.Kind,
		"total_connections", total,
	)
	return c.id, nil
}

// Unregister removes the connection from the table and from every room. It is
// safe to call any number of times.
func (r *ConnectionRegistry) Unregister(id domain.ConnectionID) {
	r.mu.Lock()
	c, ok := r.conns[id]
	if ok {
		delete(r.conns, id)
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	c.mu.Lock()
	if !c.live {
		c.mu.Unlock()
		return
	}
	c.live = false
	c.mu.Unlock()

	left := r.rooms.LeaveAll(id)
	c.sink.Close()

	r.metrics.ConnectionClosed(c.identity.Kind)
	r.logger.Debug("connection unregistered",
		"connection_id", id,
		"rooms_left", len(left),
	)
}

// Send delivers msg to one connection. Missing or dead connections are
// skipped silently. A connection whose queue is full is evicted.
func (r *ConnectionRegistry) Send(id domain.ConnectionID, msg domain.OutboundMessage) {
	c := r.lookup(id)
	if c == nil {
		r.metrics.Delivery(ports.OutcomeDropped)
		return
	}

	c.mu.Lock()
	if !c.live {
		c.mu.Unlock()
		r.metrics.Delivery(ports.OutcomeDropped)
		return
	}
	delivered := c.sink.Deliver(msg)
	c.mu.Unlock()

	if delivered {
		r.metrics.Delivery(ports.OutcomeDelivered)
		return
	}

	r.metrics.Delivery(ports.OutcomeEvicted)
	r.logger.Warn("evicting slow consumer",
		"connection_id", id,
		"event_kind", msg.Kind,
	)
	r.Unregister(id)
}

// IsLive reports whether the connection is registered and not closed.
func (r *ConnectionRegistry) IsLive(id domain.ConnectionID) bool {
	c := r.lookup(id)
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live
}

// Identity returns the immutable identity the connection was registered with.
func (r *ConnectionRegistry) Identity(id domain.ConnectionID) (domain.Identity, bool) {
	c := r.lookup(id)
	if c == nil {
		return domain.Identity{}, false
	}
	return c.identity, true
}

// Join adds the connection to room only while it is live, so a join racing
// with Unregister can never leave a stale member behind.
func (r *ConnectionRegistry) Join(id domain.ConnectionID, room domain.RoomID) error {
	c := r.lookup(id)
	if c == nil {
		return apperrors.ErrConnectionClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.live {
		return apperrors.ErrConnectionClosed
	}
	r.rooms.Join(room, id)
	r.metrics.RoomJoined(room)
	return nil
}

// Leave removes the connection from room.
func (r *ConnectionRegistry) Leave(id domain.ConnectionID, room domain.RoomID) {
	r.rooms.Leave(room, id)
}

// Count returns the number of live connections.
func (r *ConnectionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// CloseAll unregisters every connection. Used on shutdown.
func (r *ConnectionRegistry) CloseAll() {
	r.mu.RLock()
	ids := make([]domain.ConnectionID, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	for _, id := range ids {
		r.Unregister(id)
	}
}

func (r *ConnectionRegistry) lookup(id domain.ConnectionID) *connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conns[id]
}
