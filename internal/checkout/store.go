package checkout

import (
	"context"
	"github.com/ariefcatur/lexshelf-orders/internal/orders"
)

// Catalog is the slice of the product store the checkout core reads and mutates.
// ConditionalDecrementStock must check and write atomically and report a lost
// race as orders.ErrStockConflict.
type Catalog interface {
	FindProduct(ctx context.Context, id string) (*orders.Product, error)
	ConditionalDecrementStock(ctx context.Context, id string, qty int) error
	IncrementStock(ctx context.Context, id string, qty int) error
}

// OrderStore persists finished orders. A duplicate order number is reported as
// orders.ErrDuplicateOrderNumber; an order whose reservation was already settled as
// orders.ErrReservationSettled.
type OrderStore interface {
	CreateOrder(ctx context.Context, o *orders.Order) error
}

// Ledger tracks open reservations so that abandoned ones can be reaped. A row is
// opened before the first decrement and each applied line is recorded on it, so
// the reaper can return stock held by a placement that died midway. Record
// reports orders.ErrReservationSettled once the row was reaped.
type Ledger interface {
	Open(ctx context.Context, r *orders.Reservation) error
	Record(ctx context.Context, id string, it orders.ItemQty) error
	Claim(ctx context.Context, id string) (bool, error)
}
