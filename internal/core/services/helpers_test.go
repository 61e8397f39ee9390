package services_test

import (
	"io"
	"log/slog"
	"sync"

	"github.com/hellodits/dee-POS-sub002/internal/core/domain"
	"github.com/hellodits/dee-POS-sub002/internal/core/services"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingSink captures delivered messages. When capacity is non-zero the
// sink reports a full queue once it holds that many messages.
type recordingSink struct {
	mu       sync.Mutex
	messages []domain.OutboundMessage
	capacity int
	closed   bool
}

func (s *recordingSink) Deliver(msg domain.OutboundMessage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		panic("deliver after close")
	}
	if s.capacity > 0 && len(s.messages) >= s.capacity {
		return false
	}
	s.messages = append(s.messages, msg)
	return true
}

func (s *recordingSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *recordingSink) Received() []domain.OutboundMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.OutboundMessage(nil), s.messages...)
}

func (s *recordingSink) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type gateway struct {
	rooms      *services.RoomDirectory
	registry   *services.ConnectionRegistry
	dispatcher *services.EventDispatcher
	subs       *services.SubscriptionService
}

func newGateway() *gateway {
	logger := discardLogger()
	rooms := services.NewRoomDirectory()
	registry := services.NewConnectionRegistry(rooms, nil, logger)
	return &gateway{
		rooms:      rooms,
		registry:   registry,
		dispatcher: services.NewEventDispatcher(rooms, registry, nil, logger),
		subs:       services.NewSubscriptionService(registry, nil, logger),
	}
}

func mustStaff(branch string, role domain.Role) domain.Identity {
	id, err := domain.NewStaffIdentity("staff-"+branch, role, branch)
	if err != nil {
		panic(err)
	}
	return id
}

func mustCustomer(orderNumber string) domain.Identity {
	id, err := domain.NewCustomerIdentity(orderNumber)
	if err != nil {
		panic(err)
	}
	return id
}
