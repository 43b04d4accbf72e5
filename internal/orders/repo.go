package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const pgUniqueViolation = "23505"

// Repo is the Postgres-backed catalog and order store.
type Repo struct{ DB *pgxpool.Pool }

type scanner interface {
	Scan(dest ...any) error
}

const productColumns = `id, title, slug, description, author, publisher, edition, isbn,
	price_original::text, price_discounted::text, currency, stock, created_at, updated_at`

func scanProduct(row scanner) (*Product, error) {
	var (
		p          Product
		original   string
		discounted *string
	)
	err := row.Scan(&p.ID, &p.Title, &p.Slug, &p.Description, &p.Author, &p.Publisher, &p.Edition, &p.ISBN,
		&original, &discounted, &p.Price.Currency, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if p.Price.Original, err = decimal.NewFromString(original); err != nil {
		return nil, fmt.Errorf("product %s: original price: %w", p.ID, err)
	}
	if discounted != nil {
		d, err := decimal.NewFromString(*discounted)
		if err != nil {
			return nil, fmt.Errorf("product %s: discounted price: %w", p.ID, err)
		}
		p.Price.Discounted = &d
	}
	return &p, nil
}

func (r *Repo) FindProduct(ctx context.Context, id string) (*Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// FindProductByIDOrSlug resolves the storefront's /products/{key} lookups.
func (r *Repo) FindProductByIDOrSlug(ctx context.Context, key string) (*Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1 OR slug=$1 LIMIT 1`, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (r *Repo) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// ConditionalDecrementStock takes qty units only if at least qty are left.
// The check and the write are one statement, so concurrent callers cannot both win
// the last unit.
func (r *Repo) ConditionalDecrementStock(ctx context.Context, id string, qty int) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2`, id, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrStockConflict
	}
	return nil
}

func (r *Repo) IncrementStock(ctx context.Context, id string, qty int) error {
	ct, err := r.DB.Exec(ctx, `UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1`, id, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

// UpsertProduct is used by the seed command only.
func (r *Repo) UpsertProduct(ctx context.Context, p *Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Price.Currency == "" {
		p.Price.Currency = DefaultCurrency
	}
	var discounted *string
	if p.Price.Discounted != nil {
		s := p.Price.Discounted.String()
		discounted = &s
	}
	_, err := r.DB.Exec(ctx, `
		INSERT INTO products(id, title, slug, description, author, publisher, edition, isbn,
		                     price_original, price_discounted, currency, stock)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9::numeric,$10::numeric,$11,$12)
		ON CONFLICT (slug) DO UPDATE SET
			title = EXCLUDED.title, description = EXCLUDED.description,
			price_original = EXCLUDED.price_original, price_discounted = EXCLUDED.price_discounted,
			stock = EXCLUDED.stock, updated_at = now()`,
		p.ID, p.Title, p.Slug, p.Description, p.Author, p.Publisher, p.Edition, p.ISBN,
		p.Price.Original.String(), discounted, p.Price.Currency, p.Stock)
	return err
}

// CreateOrder inserts the order document. When the order is backed by a
// reservation the ledger row is flipped to COMMITTED in the same transaction;
// a reservation already released by the reaper aborts the insert.
func (r *Repo) CreateOrder(ctx context.Context, o *Order) error {
	customer, err := json.Marshal(o.Customer)
	if err != nil {
		return fmt.Errorf("encode customer: %w", err)
	}
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if o.ReservationID != "" {
		ct, err := tx.Exec(ctx, `
			UPDATE reservations SET status='COMMITTED', settled_at=now()
			WHERE id=$1 AND status='RESERVED'`, o.ReservationID)
		if err != nil {
			return err
		}
		if ct.RowsAffected() != 1 {
			return ErrReservationSettled
		}
	}

	var reservationID *string
	if o.ReservationID != "" {
		reservationID = &o.ReservationID
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO orders(id, order_number, customer, items, total_amount, currency, status,
		                   payment_method, payment_status, notes, reservation_id)
		VALUES ($1,$2,$3,$4,$5::numeric,$6,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at`,
		o.ID, o.OrderNumber, customer, items, o.TotalAmount.String(), o.Currency, string(o.Status),
		string(o.PaymentMethod), string(o.PaymentStatus), o.Notes, reservationID,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == "orders_order_number_key" {
			return ErrDuplicateOrderNumber
		}
		return err
	}
	return tx.Commit(ctx)
}

const orderColumns = `id, order_number, customer, items, total_amount::text, currency, status,
	payment_method, payment_status, coalesce(tracking_number, ''), coalesce(notes, ''),
	coalesce(reservation_id::text, ''), created_at, updated_at`

func scanOrder(row scanner) (*Order, error) {
	var (
		o               Order
		customer, items []byte
		total           string
		status, pm, ps  string
	)
	err := row.Scan(&o.ID, &o.OrderNumber, &customer, &items, &total, &o.Currency, &status,
		&pm, &ps, &o.TrackingNumber, &o.Notes, &o.ReservationID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(customer, &o.Customer); err != nil {
		return nil, fmt.Errorf("order %s: decode customer: %w", o.OrderNumber, err)
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("order %s: decode items: %w", o.OrderNumber, err)
	}
	if o.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("order %s: total: %w", o.OrderNumber, err)
	}
	o.Status, o.PaymentMethod, o.PaymentStatus = Status(status), PaymentMethod(pm), PaymentStatus(ps)
	return &o, nil
}

func (r *Repo) FindOrder(ctx context.Context, orderNumber string) (*Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_number=$1`, orderNumber))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return o, err
}

// ListOrders returns one page of orders, newest first, and the total match count.
func (r *Repo) ListOrders(ctx context.Context, f OrderFilter) ([]Order, int, error) {
	where := `WHERE ($1 = '' OR status = $1) AND ($2 = '' OR customer->>'email' = $2)`
	args := []any{string(f.Status), f.Email}

	var total int
	if err := r.DB.QueryRow(ctx, `SELECT count(*) FROM orders `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page, limit := NormalizePage(f.Page, f.Limit)
	rows, err := r.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders `+where+`
		ORDER BY created_at DESC OFFSET $3 LIMIT $4`, append(args, (page-1)*limit, limit)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *o)
	}
	return out, total, rows.Err()
}

// TransitionStatus applies a fulfillment status change. Only status, tracking
// number and updated_at ever change on a stored order.
func (r *Repo) TransitionStatus(ctx context.Context, orderNumber string, to Status, tracking string) (*Order, Status, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var from string
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE order_number=$1 FOR UPDATE`, orderNumber).Scan(&from)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", err
	}
	if !CanTransition(Status(from), to) {
		return nil, Status(from), fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	o, err := scanOrder(tx.QueryRow(ctx, `
		UPDATE orders SET status=$2, tracking_number=coalesce(nullif($3, ''), tracking_number), updated_at=now()
		WHERE order_number=$1
		RETURNING `+orderColumns, orderNumber, string(to), tracking))
	if err != nil {
		return nil, "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, "", err
	}
	return o, Status(from), nil
}

func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
