package checkout

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/lexshelf-orders/internal/metrics"
	"github.com/ariefcatur/lexshelf-orders/internal/orders"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"time"
)

// Reserver takes stock for validated lines, all or nothing.
type Reserver struct {
	Catalog Catalog
	Ledger  Ledger // optional
	Metrics *metrics.Collector
	Now     func() time.Time
}

func (r *Reserver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Reserve applies one conditional decrement per line in cart order. The first
// line that cannot be taken stops the loop, and every decrement already applied in
// this call is given back in reverse order before the failure is returned.
//
// With a ledger, the reservation row is opened before the first decrement and
// each applied line is recorded on it, so a process that dies inside this loop
// still leaves the reaper enough to return the stock.
func (r *Reserver) Reserve(ctx context.Context, lines []ValidatedLine) (*orders.Reservation, error) {
	res := &orders.Reservation{
		ID:        uuid.NewString(),
		Items:     make([]orders.ItemQty, 0, len(lines)),
		Status:    orders.ReservationReserved,
		CreatedAt: r.now(),
	}
	if r.Ledger != nil {
		if err := r.Ledger.Open(ctx, res); err != nil {
			return nil, &Failure{Reason: ErrUnavailable, Err: fmt.Errorf("open reservation: %w", err)}
		}
	}

	undo := func(f *Failure) error {
		if err := r.Release(context.WithoutCancel(ctx), res); err != nil {
			f.Err = errors.Join(f.Err, err)
		}
		return f
	}

	for _, l := range lines {
		if err := ctx.Err(); err != nil {
			return nil, undo(&Failure{Reason: ErrCancelled, Err: err})
		}
		err := r.Catalog.ConditionalDecrementStock(ctx, l.ProductID, l.Quantity)
		switch {
		case err == nil:
			it := orders.ItemQty{ProductID: l.ProductID, Qty: l.Quantity}
			if f := r.record(ctx, res, it); f != nil {
				if errors.Is(f, orders.ErrReservationSettled) {
					// reaped already, earlier lines are back in stock
					return nil, f
				}
				return nil, undo(f)
			}
			res.Items = append(res.Items, it)
		case errors.Is(err, orders.ErrStockConflict):
			r.Metrics.RecordConflict()
			return nil, undo(&Failure{Reason: ErrReservationConflict, ProductID: l.ProductID, Title: l.Title})
		case ctx.Err() != nil:
			return nil, undo(&Failure{Reason: ErrCancelled, ProductID: l.ProductID, Err: err})
		default:
			return nil, undo(&Failure{Reason: ErrUnavailable, ProductID: l.ProductID, Title: l.Title, Err: err})
		}
	}
	return res, nil
}

// record adds an applied decrement to the ledger row. When that fails the
// decrement is not covered by the row, so it is given back here.
func (r *Reserver) record(ctx context.Context, res *orders.Reservation, it orders.ItemQty) *Failure {
	if r.Ledger == nil {
		return nil
	}
	err := r.Ledger.Record(context.WithoutCancel(ctx), res.ID, it)
	if err == nil {
		return nil
	}
	f := &Failure{Reason: ErrUnavailable, ProductID: it.ProductID, Err: fmt.Errorf("record reservation line: %w", err)}
	if errors.Is(err, orders.ErrReservationSettled) {
		f = &Failure{Reason: ErrWrite, Detail: "your reservation expired, please place the order again", Err: err}
	}
	if cerr := r.compensate(ctx, []orders.ItemQty{it}); cerr != nil {
		f.Err = errors.Join(f.Err, cerr)
	}
	return f
}

// Release gives back the stock held by res. When a ledger is configured the
// reservation is claimed first; if the commit or the reaper already settled it,
// stock is left untouched.
func (r *Reserver) Release(ctx context.Context, res *orders.Reservation) error {
	if res == nil {
		return nil
	}
	if r.Ledger != nil {
		claimed, err := r.Ledger.Claim(ctx, res.ID)
		if err != nil {
			zap.L().Warn("reservation claim failed, leaving it to the reaper",
				zap.String("reservation_id", res.ID), zap.Error(err))
			return fmt.Errorf("claim reservation %s: %w", res.ID, err)
		}
		if !claimed {
			return nil
		}
	}
	return r.compensate(ctx, res.Items)
}

// compensate increments stock back in reverse order. It keeps going past
// individual failures so that as much stock as possible is restored, and logs
// every product left drifted.
func (r *Reserver) compensate(ctx context.Context, applied []orders.ItemQty) error {
	if len(applied) == 0 {
		return nil
	}
	r.Metrics.RecordRollback()
	ctx = context.WithoutCancel(ctx)

	var errs []error
	for i := len(applied) - 1; i >= 0; i-- {
		it := applied[i]
		if err := r.Catalog.IncrementStock(ctx, it.ProductID, it.Qty); err != nil {
			r.Metrics.RecordRollbackFailure()
			zap.L().Error("STOCK DRIFT: compensating increment failed, manual reconciliation required",
				zap.String("product_id", it.ProductID), zap.Int("qty", it.Qty), zap.Error(err))
			errs = append(errs, fmt.Errorf("restore %d of %s: %w", it.Qty, it.ProductID, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrRollbackFailed, errors.Join(errs...))
	}
	return nil
}
