package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/hellodits/dee-POS-sub002/internal/core/domain"
	"github.com/hellodits/dee-POS-sub002/internal/core/ports"
	"github.com/stretchr/testify/mock"
)

// MockBranchScopeResolver is a mock implementation of ports.BranchScopeResolver
type MockBranchScopeResolver struct {
	mock.Mock
}

func NewMockBranchScopeResolver() *MockBranchScopeResolver {
	return &MockBranchScopeResolver{}
}

func (m *MockBranchScopeResolver) ResolveBranch(ctx context.Context, staffID uuid.UUID, claimedBranch string) (string, error) {
	args := m.Called(ctx, staffID, claimedBranch)
	return args.String(0), args.Error(1)
}

// MockOrderLookup is a mock implementation of ports.OrderLookup
type MockOrderLookup struct {
	mock.Mock
}

func NewMockOrderLookup() *MockOrderLookup {
	return &MockOrderLookup{}
}

func (m *MockOrderLookup) OrderExists(ctx context.Context, orderNumber string) (bool, error) {
	args := m.Called(ctx, orderNumber)
	return args.Bool(0), args.Error(1)
}

// MockEventPublisher is a mock implementation of ports.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{}
}

func (m *MockEventPublisher) Publish(ctx context.Context, event domain.Event) ([]domain.RoomID, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RoomID), args.Error(1)
}

// MockSubscriptionService is a mock implementation of ports.SubscriptionService
type MockSubscriptionService struct {
	mock.Mock
}

func NewMockSubscriptionService() *MockSubscriptionService {
	return &MockSubscriptionService{}
}

func (m *MockSubscriptionService) JoinStaff(ctx context.Context, conn domain.ConnectionID, role domain.Role) (domain.RoomID, error) {
	args := m.Called(ctx, conn, role)
	return args.Get(0).(domain.RoomID), args.Error(1)
}

func (m *MockSubscriptionService) JoinCustomer(ctx context.Context, conn domain.ConnectionID, orderNumber string) (domain.RoomID, error) {
	args := m.Called(ctx, conn, orderNumber)
	return args.Get(0).(domain.RoomID), args.Error(1)
}

func (m *MockSubscriptionService) LeaveStaff(ctx context.Context, conn domain.ConnectionID) (domain.RoomID, error) {
	args := m.Called(ctx, conn)
	return args.Get(0).(domain.RoomID), args.Error(1)
}

func (m *MockSubscriptionService) LeaveCustomer(ctx context.Context, conn domain.ConnectionID, orderNumber string) (domain.RoomID, error) {
	args := m.Called(ctx, conn, orderNumber)
	return args.Get(0).(domain.RoomID), args.Error(1)
}

// MockDeliverySink is a mock implementation of ports.DeliverySink
type MockDeliverySink struct {
	mock.Mock
}

func NewMockDeliverySink() *MockDeliverySink {
	return &MockDeliverySink{}
}

func (m *MockDeliverySink) Deliver(msg domain.OutboundMessage) bool {
	args := m.Called(msg)
	return args.Bool(0)
}

func (m *MockDeliverySink) Close() {
	m.Called()
}

// MockGatewayMetrics is a mock implementation of ports.GatewayMetrics
type MockGatewayMetrics struct {
	mock.Mock
}

func NewMockGatewayMetrics() *MockGatewayMetrics {
	return &MockGatewayMetrics{}
}

func (m *MockGatewayMetrics) ConnectionOpened(kind domain.IdentityKind) { m.Called(kind) }
func (m *MockGatewayMetrics) ConnectionClosed(kind domain.IdentityKind) { m.Called(kind) }
func (m *MockGatewayMetrics) RoomJoined(room domain.RoomID)             { m.Called(room) }
func (m *MockGatewayMetrics) EventPublished(kind domain.EventKind)      { m.Called(kind) }
func (m *MockGatewayMetrics) Delivery(outcome string)                   { m.Called(outcome) }
func (m *MockGatewayMetrics) PublishRejected(reason string)             { m.Called(reason) }

var (
	_ ports.BranchScopeResolver = (*MockBranchScopeResolver)(nil)
	_ ports.OrderLookup         = (*MockOrderLookup)(nil)
	_ ports.EventPublisher      = (*MockEventPublisher)(nil)
	_ ports.SubscriptionService = (*MockSubscriptionService)(nil)
	_ ports.DeliverySink        = (*MockDeliverySink)(nil)
	_ ports.GatewayMetrics      = (*MockGatewayMetrics)(nil)
)
