package postgres

import (
	"context"
	"fmt"

	"github.com/hellodits/dee-POS-sub002/internal/core/ports"
)

const orderExists = `SELECT EXISTS (SELECT 1 FROM orders WHERE order_number = $1)`

// OrderRepository answers order existence for customer tracking.
type OrderRepository struct {
	db DBTX
}

var _ ports.OrderLookup = (*OrderRepository)(nil)

func NewOrderRepository(db DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) OrderExists(ctx context.Context, orderNumber string) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, orderExists, orderNumber).Scan(&exists); err != nil {
		return false, fmt.Errorf("looking up order: %w", err)
	}
	return exists, nil
}
