package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"time"
)

// ReservationRepo is the ledger of stock held by placements that have not yet
// produced an order.
type ReservationRepo struct{ DB *pgxpool.Pool }

// Open inserts a RESERVED row before any stock is taken. Lines are added with
// Record as their decrements succeed.
func (r *ReservationRepo) Open(ctx context.Context, res *Reservation) error {
	held := res.Items
	if held == nil {
		held = []ItemQty{}
	}
	items, err := json.Marshal(held)
	if err != nil {
		return fmt.Errorf("encode reservation items: %w", err)
	}
	return r.DB.QueryRow(ctx, `
		INSERT INTO reservations(id, items, status) VALUES ($1, $2, 'RESERVED')
		RETURNING created_at`, res.ID, items).Scan(&res.CreatedAt)
}

// Record appends one applied decrement to an open reservation. It returns
// ErrReservationSettled when the row is no longer RESERVED.
func (r *ReservationRepo) Record(ctx context.Context, id string, it ItemQty) error {
	item, err := json.Marshal([]ItemQty{it})
	if err != nil {
		return fmt.Errorf("encode reservation item: %w", err)
	}
	ct, err := r.DB.Exec(ctx, `
		UPDATE reservations SET items = items || $2::jsonb
		WHERE id=$1 AND status='RESERVED'`, id, item)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrReservationSettled
	}
	return nil
}

// Claim moves a reservation from RESERVED to RELEASED. It returns false when
// someone else (commit or reaper) settled it first; the caller must then leave
// stock alone.
func (r *ReservationRepo) Claim(ctx context.Context, id string) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE reservations SET status='RELEASED', settled_at=now()
		WHERE id=$1 AND status='RESERVED'`, id)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

// ReleaseStale returns stock held by reservations opened before cutoff that never
// reached commit. Rows are locked with SKIP LOCKED so concurrent reapers and
// in-flight commits never double-release.
func (r *ReservationRepo) ReleaseStale(ctx context.Context, cutoff time.Time, limit int) ([]Reservation, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id::text, items, created_at FROM reservations
		WHERE status='RESERVED' AND created_at < $1
		ORDER BY created_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED`, cutoff, limit)
	if err != nil {
		return nil, err
	}

	var recs []Reservation
	for rows.Next() {
		var (
			x     Reservation
			items []byte
		)
		if err := rows.Scan(&x.ID, &items, &x.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		if err := json.Unmarshal(items, &x.Items); err != nil {
			rows.Close()
			return nil, fmt.Errorf("reservation %s: decode items: %w", x.ID, err)
		}
		x.Status = ReservationReleased
		recs = append(recs, x)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, x := range recs {
		for _, it := range x.Items {
			if _, err := tx.Exec(ctx, `UPDATE products SET stock = stock + $2, updated_at = now() WHERE id=$1`, it.ProductID, it.Qty); err != nil {
				return nil, err
			}
		}
		if _, err := tx.Exec(ctx, `UPDATE reservations SET status='RELEASED', settled_at=now() WHERE id=$1`, x.ID); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return recs, nil
}
