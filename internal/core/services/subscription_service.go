package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hellodits/dee-POS-sub002/internal/core/domain"
	apperrors "github.com/hellodits/dee-POS-sub002/internal/core/errors"
	"github.com/hellodits/dee-POS-sub002/internal/core/ports"
)

// SubscriptionService turns client join/leave requests into room membership.
// Room names are always derived from the connection's identity; client
// supplied fields are only checked against it.
type SubscriptionService struct {
	registry ports.ConnectionRegistry
	orders   ports.OrderLookup
	logger   *slog.Logger
}

var _ ports.SubscriptionService = (*SubscriptionService)(nil)

// NewSubscriptionService creates the service. orders may be nil, in which
// case order numbers are only format checked.
func NewSubscriptionService(registry ports.ConnectionRegistry, orders ports.OrderLookup, logger *slog.Logger) *SubscriptionService {
	return &SubscriptionService{
		registry: registry,
		orders:   orders,
		logger:   logger.With("component", "subscription_service"),
	}
}

// JoinStaff joins the staff room of the connection's authenticated branch.
func (s *SubscriptionService) JoinStaff(ctx context.Context, conn domain.ConnectionID, role domain.Role) (domain.RoomID, error) {
	identity, err := s.identity(conn)
	if err != nil {
		return "", err
	}
	if !identity.IsStaff() {
		return "", fmt.Errorf("%w: customer connections cannot join staff rooms", apperrors.ErrScopeMismatch)
	}
	if role != "" && role != identity.Role {
		return "", fmt.Errorf("%w: role %q does not match authenticated role", apperrors.ErrScopeMismatch, role)
	}

	room := identity.HomeRoom()
	if err := s.registry.Join(conn, room); err != nil {
		return "", err
	}

	s.logger.DebugContext(ctx, "staff joined room",
		"connection_id", conn,
		"room", room,
		"role", identity.Role,
	)
	return room, nil
}

// JoinCustomer joins the tracking room of the requested order. The order
// number must be the one the connection was opened for.
func (s *SubscriptionService) JoinCustomer(ctx context.Context, conn domain.ConnectionID, orderNumber string) (domain.RoomID, error) {
	identity, err := s.identity(conn)
	if err != nil {
		return "", err
	}
	if err := s.checkCustomer(identity, orderNumber); err != nil {
		return "", err
	}

	if s.orders != nil {
		exists, err := s.orders.OrderExists(ctx, orderNumber)
		if err != nil {
			return "", fmt.Errorf("checking order: %w", err)
		}
		if !exists {
			return "", apperrors.ErrOrderNotFound
		}
	}

	room := identity.HomeRoom()
	if err := s.registry.Join(conn, room); err != nil {
		return "", err
	}

	s.logger.DebugContext(ctx, "customer joined room",
		"connection_id", conn,
		"room", room,
	)
	return room, nil
}

// LeaveStaff leaves the staff room of the connection's branch.
func (s *SubscriptionService) LeaveStaff(ctx context.Context, conn domain.ConnectionID) (domain.RoomID, error) {
	identity, err := s.identity(conn)
	if err != nil {
		return "", err
	}
	if !identity.IsStaff() {
		return "", fmt.Errorf("%w: not a staff connection", apperrors.ErrScopeMismatch)
	}

	room := identity.HomeRoom()
	s.registry.Leave(conn, room)
	return room, nil
}

// LeaveCustomer leaves the order tracking room.
func (s *SubscriptionService) LeaveCustomer(ctx context.Context, conn domain.ConnectionID, orderNumber string) (domain.RoomID, error) {
	identity, err := s.identity(conn)
	if err != nil {
		return "", err
	}
	if orderNumber == "" {
		orderNumber = identity.OrderNumber
	}
	if err := s.checkCustomer(identity, orderNumber); err != nil {
		return "", err
	}

	room := identity.HomeRoom()
	s.registry.Leave(conn, room)
	return room, nil
}

func (s *SubscriptionService) identity(conn domain.ConnectionID) (domain.Identity, error) {
	identity, ok := s.registry.Identity(conn)
	if !ok {
		return domain.Identity{}, apperrors.ErrConnectionClosed
	}
	return identity, nil
}

func (s *SubscriptionService) checkCustomer(identity domain.Identity, orderNumber string) error {
	if !identity.IsCustomer() {
		return fmt.Errorf("%w: staff connections cannot join order rooms", apperrors.ErrScopeMismatch)
	}
	if err := domain.ValidateOrderNumber(orderNumber); err != nil {
		return err
	}
	if orderNumber != identity.OrderNumber {
		return fmt.Errorf("%w: order number does not match connection", apperrors.ErrScopeMismatch)
	}
	return nil
}
