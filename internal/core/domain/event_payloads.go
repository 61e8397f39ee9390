package domain

import "time"

// OrderSnapshot matches the order fields clients render.
type OrderSnapshot struct {
	OrderNumber string     `json:"order_number"`
	BranchID    string     `json:"branch_id"`
	Status      string     `json:"status"`
	TableNumber string     `json:"table_number,omitempty"`
	OrderType   string     `json:"order_type,omitempty"`
	Total       float64    `json:"total,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// KitchenItemSnapshot is one line on a kitchen ticket.
type KitchenItemSnapshot struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Status   string `json:"status"`
	Notes    string `json:"notes,omitempty"`
}

// KitchenSnapshot matches the kitchen display for one order.
type KitchenSnapshot struct {
	OrderNumber string                `json:"order_number"`
	BranchID    string                `json:"branch_id"`
	Station     string                `json:"station,omitempty"`
	Status      string                `json:"status"`
	Items       []KitchenItemSnapshot `json:"items,omitempty"`
}

// ReservationSnapshot matches the reservation list entry.
type ReservationSnapshot struct {
	ReservationID string    `json:"reservation_id"`
	BranchID      string    `json:"branch_id"`
	CustomerName  string    `json:"customer_name"`
	PartySize     int       `json:"party_size"`
	ReservedFor   time.Time `json:"reserved_for"`
	TableNumber   string    `json:"table_number,omitempty"`
	Status        string    `json:"status"`
}

// TableSnapshot matches the floor plan entry for one table.
type TableSnapshot struct {
	TableID     string `json:"table_id"`
	BranchID    string `json:"branch_id"`
	TableNumber string `json:"table_number,omitempty"`
	Status      string `json:"status"`
}

// OrderCreated notifies the branch staff of a new order.
func OrderCreated(order OrderSnapshot) (Event, error) {
	return NewEvent(EventNewOrder, order, Scope{BranchID: order.BranchID})
}

// OrderStatusChanged goes to the branch staff and to the customer tracking the order.
func OrderStatusChanged(order OrderSnapshot) (Event, error) {
	return NewEvent(EventOrderStatusUpdated, order, Scope{
		BranchID:    order.BranchID,
		OrderNumber: order.OrderNumber,
	})
}

// OrderReady goes to the branch staff and to the customer tracking the order.
func OrderReady(order OrderSnapshot) (Event, error) {
	return NewEvent(EventOrderReady, order, Scope{
		BranchID:    order.BranchID,
		OrderNumber: order.OrderNumber,
	})
}

// KitchenUpdate notifies the branch staff of kitchen progress.
func KitchenUpdate(ticket KitchenSnapshot) (Event, error) {
	return NewEvent(EventKitchenUpdate, ticket, Scope{BranchID: ticket.BranchID})
}

// ReservationCreated notifies the branch staff of a new reservation.
func ReservationCreated(reservation ReservationSnapshot) (Event, error) {
	return NewEvent(EventNewReservation, reservation, Scope{BranchID: reservation.BranchID})
}

// TableStatusChanged notifies the branch staff of a floor plan change.
func TableStatusChanged(table TableSnapshot) (Event, error) {
	return NewEvent(EventTableStatusUpdated, table, Scope{BranchID: table.BranchID})
}
