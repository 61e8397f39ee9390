package ports

import (
	"context"

	"github.com/google/uuid"
)

// BranchScopeResolver determines the branch a staff member belongs to. It is
// only consulted at handshake time.
type BranchScopeResolver interface {
	ResolveBranch(ctx context.Context, staffID uuid.UUID, claimedBranch string) (string, error)
}

// OrderLookup answers whether an order number refers to a real order.
type OrderLookup interface {
	OrderExists(ctx context.Context, orderNumber string) (bool, error)
}
