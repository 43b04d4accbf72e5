package checkout

import (
	"context"
	"errors"
	"github.com/ariefcatur/lexshelf-orders/internal/orders"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"time"
)

// Writer turns validated lines into a persisted, immutable order.
type Writer struct {
	Orders  OrderStore
	Numbers orders.NumberGenerator
	Now     func() time.Time
}

// Commit computes the total from the validated lines and stores the order in one
// write. An order-number collision is retried once with a fresh number. Commit
// never touches stock.
func (w *Writer) Commit(ctx context.Context, customer orders.Customer, lines []ValidatedLine,
	method orders.PaymentMethod, notes string, res *orders.Reservation) (*orders.Order, error) {
	if len(lines) == 0 {
		return nil, invalid("order has no lines")
	}

	items := make([]orders.OrderLine, 0, len(lines))
	for _, l := range lines {
		items = append(items, orders.OrderLine{
			ProductID: l.ProductID,
			Title:     l.Title,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Subtotal:  l.Subtotal(),
		})
	}

	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	o := &orders.Order{
		ID:            uuid.NewString(),
		Customer:      customer,
		Items:         items,
		TotalAmount:   orders.LinesTotal(items),
		Currency:      lines[0].Currency,
		Status:        orders.StatusPending,
		PaymentMethod: method,
		PaymentStatus: orders.PaymentPending,
		Notes:         notes,
		CreatedAt:     now().UTC(),
	}
	o.UpdatedAt = o.CreatedAt
	if res != nil {
		o.ReservationID = res.ID
	}

	for attempt := 0; ; attempt++ {
		o.OrderNumber = w.Numbers.Next()
		err := w.Orders.CreateOrder(ctx, o)
		switch {
		case err == nil:
			return o, nil
		case errors.Is(err, orders.ErrDuplicateOrderNumber) && attempt == 0:
			zap.L().Warn("order number collision, retrying", zap.String("order_number", o.OrderNumber))
			continue
		case errors.Is(err, orders.ErrDuplicateOrderNumber):
			return nil, &Failure{Reason: ErrOrderNumberCollision, Err: err}
		case errors.Is(err, orders.ErrReservationSettled):
			return nil, &Failure{Reason: ErrWrite, Detail: "your reservation expired, please place the order again", Err: err}
		case ctx.Err() != nil:
			return nil, &Failure{Reason: ErrCancelled, Err: err}
		default:
			return nil, &Failure{Reason: ErrWrite, Err: err}
		}
	}
}
