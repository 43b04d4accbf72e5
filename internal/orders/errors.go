package orders

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrDuplicateOrderNumber = errors.New("order number already exists")
	ErrStockConflict        = errors.New("stock changed concurrently")
	// ErrReservationSettled means the reservation was already committed or released
	// (for example by the reaper) and can no longer back an order.
	ErrReservationSettled = errors.New("reservation already settled")
	ErrInvalidTransition  = errors.New("invalid status transition")
)
