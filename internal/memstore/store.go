// Package memstore keeps the catalog, orders and reservation ledger in process
// memory. It backs STORE_DRIVER=memory and the checkout tests.
package memstore

import (
	"context"
	"fmt"
	"github.com/ariefcatur/lexshelf-orders/internal/orders"
	"sort"
	"sync"
	"time"
)

type productEntry struct {
	mu sync.Mutex
	p  orders.Product
}

// Store implements the catalog, order and ledger contracts of the checkout core.
// Stock for each product is guarded by its own mutex so a conditional decrement is
// a single critical section.
type Store struct {
	mu       sync.RWMutex
	products map[string]*productEntry
	slugs    map[string]string

	omu          sync.Mutex
	orders       map[string]orders.Order
	reservations map[string]*orders.Reservation

	Now func() time.Time
}

func New() *Store {
	return &Store{
		products:     make(map[string]*productEntry),
		slugs:        make(map[string]string),
		orders:       make(map[string]orders.Order),
		reservations: make(map[string]*orders.Reservation),
	}
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Store) entry(id string) (*productEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.products[id]
	return e, ok
}

// UpsertProduct inserts or replaces a product, keyed by slug like the Postgres seed.
func (s *Store) UpsertProduct(_ context.Context, p *orders.Product) error {
	if p.Stock < 0 {
		return fmt.Errorf("product %s: negative stock", p.Slug)
	}
	if !p.Price.Valid() {
		return fmt.Errorf("product %s: invalid price", p.Slug)
	}
	if p.Price.Currency == "" {
		p.Price.Currency = orders.DefaultCurrency
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.slugs[p.Slug]; ok && p.ID == "" {
		p.ID = id
	}
	if p.ID == "" {
		p.ID = p.Slug
	}
	if e, ok := s.products[p.ID]; ok {
		e.mu.Lock()
		p.CreatedAt = e.p.CreatedAt
		p.UpdatedAt = now
		e.p = *p
		e.mu.Unlock()
	} else {
		p.CreatedAt, p.UpdatedAt = now, now
		s.products[p.ID] = &productEntry{p: *p}
	}
	s.slugs[p.Slug] = p.ID
	return nil
}

func (s *Store) FindProduct(_ context.Context, id string) (*orders.Product, error) {
	e, ok := s.entry(id)
	if !ok {
		return nil, orders.ErrNotFound
	}
	e.mu.Lock()
	p := e.p
	e.mu.Unlock()
	return &p, nil
}

func (s *Store) FindProductByIDOrSlug(ctx context.Context, key string) (*orders.Product, error) {
	if p, err := s.FindProduct(ctx, key); err == nil {
		return p, nil
	}
	s.mu.RLock()
	id, ok := s.slugs[key]
	s.mu.RUnlock()
	if !ok {
		return nil, orders.ErrNotFound
	}
	return s.FindProduct(ctx, id)
}

func (s *Store) ListProducts(_ context.Context) ([]orders.Product, error) {
	s.mu.RLock()
	entries := make([]*productEntry, 0, len(s.products))
	for _, e := range s.products {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]orders.Product, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.p)
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

// SetPrice changes a product's price in place.
func (s *Store) SetPrice(id string, price orders.Price) error {
	e, ok := s.entry(id)
	if !ok {
		return orders.ErrNotFound
	}
	e.mu.Lock()
	e.p.Price = price
	e.p.UpdatedAt = s.now()
	e.mu.Unlock()
	return nil
}

func (s *Store) ConditionalDecrementStock(_ context.Context, id string, qty int) error {
	e, ok := s.entry(id)
	if !ok {
		return orders.ErrStockConflict
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.p.Stock < qty {
		return orders.ErrStockConflict
	}
	e.p.Stock -= qty
	e.p.UpdatedAt = s.now()
	return nil
}

func (s *Store) IncrementStock(_ context.Context, id string, qty int) error {
	e, ok := s.entry(id)
	if !ok {
		return orders.ErrNotFound
	}
	e.mu.Lock()
	e.p.Stock += qty
	e.p.UpdatedAt = s.now()
	e.mu.Unlock()
	return nil
}

func cloneOrder(o orders.Order) orders.Order {
	o.Items = append([]orders.OrderLine(nil), o.Items...)
	return o
}

// CreateOrder stores o and settles its reservation, atomically with respect to
// the reaper and to Claim.
func (s *Store) CreateOrder(_ context.Context, o *orders.Order) error {
	s.omu.Lock()
	defer s.omu.Unlock()

	if _, exists := s.orders[o.OrderNumber]; exists {
		return orders.ErrDuplicateOrderNumber
	}
	if o.ReservationID != "" {
		r, ok := s.reservations[o.ReservationID]
		if !ok || r.Status != orders.ReservationReserved {
			return orders.ErrReservationSettled
		}
		r.Status = orders.ReservationCommitted
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.now()
	}
	o.UpdatedAt = o.CreatedAt
	s.orders[o.OrderNumber] = cloneOrder(*o)
	return nil
}

func (s *Store) FindOrder(_ context.Context, orderNumber string) (*orders.Order, error) {
	s.omu.Lock()
	defer s.omu.Unlock()
	o, ok := s.orders[orderNumber]
	if !ok {
		return nil, orders.ErrNotFound
	}
	o = cloneOrder(o)
	return &o, nil
}

func (s *Store) ListOrders(_ context.Context, f orders.OrderFilter) ([]orders.Order, int, error) {
	s.omu.Lock()
	var matched []orders.Order
	for _, o := range s.orders {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.Email != "" && o.Customer.Email != f.Email {
			continue
		}
		matched = append(matched, cloneOrder(o))
	}
	s.omu.Unlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	page, limit := orders.NormalizePage(f.Page, f.Limit)
	start := (page - 1) * limit
	if start >= len(matched) {
		return []orders.Order{}, len(matched), nil
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], len(matched), nil
}

func (s *Store) TransitionStatus(_ context.Context, orderNumber string, to orders.Status, tracking string) (*orders.Order, orders.Status, error) {
	s.omu.Lock()
	defer s.omu.Unlock()
	o, ok := s.orders[orderNumber]
	if !ok {
		return nil, "", orders.ErrNotFound
	}
	from := o.Status
	if !orders.CanTransition(from, to) {
		return nil, from, fmt.Errorf("%w: %s -> %s", orders.ErrInvalidTransition, from, to)
	}
	o.Status = to
	if tracking != "" {
		o.TrackingNumber = tracking
	}
	o.UpdatedAt = s.now()
	s.orders[orderNumber] = o
	out := cloneOrder(o)
	return &out, from, nil
}

func (s *Store) Open(_ context.Context, r *orders.Reservation) error {
	s.omu.Lock()
	defer s.omu.Unlock()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	cp := *r
	cp.Items = append([]orders.ItemQty(nil), r.Items...)
	cp.Status = orders.ReservationReserved
	s.reservations[r.ID] = &cp
	return nil
}

func (s *Store) Record(_ context.Context, id string, it orders.ItemQty) error {
	s.omu.Lock()
	defer s.omu.Unlock()
	r, ok := s.reservations[id]
	if !ok || r.Status != orders.ReservationReserved {
		return orders.ErrReservationSettled
	}
	r.Items = append(r.Items, it)
	return nil
}

func (s *Store) Claim(_ context.Context, id string) (bool, error) {
	s.omu.Lock()
	defer s.omu.Unlock()
	r, ok := s.reservations[id]
	if !ok || r.Status != orders.ReservationReserved {
		return false, nil
	}
	r.Status = orders.ReservationReleased
	return true, nil
}

// Reservation returns a copy of the ledger entry, for inspection.
func (s *Store) Reservation(id string) (orders.Reservation, bool) {
	s.omu.Lock()
	defer s.omu.Unlock()
	r, ok := s.reservations[id]
	if !ok {
		return orders.Reservation{}, false
	}
	cp := *r
	cp.Items = append([]orders.ItemQty(nil), r.Items...)
	return cp, true
}

func (s *Store) ReleaseStale(ctx context.Context, cutoff time.Time, limit int) ([]orders.Reservation, error) {
	s.omu.Lock()
	var stale []orders.Reservation
	for _, r := range s.reservations {
		if len(stale) >= limit {
			break
		}
		if r.Status == orders.ReservationReserved && r.CreatedAt.Before(cutoff) {
			r.Status = orders.ReservationReleased
			cp := *r
			cp.Items = append([]orders.ItemQty(nil), r.Items...)
			stale = append(stale, cp)
		}
	}
	s.omu.Unlock()

	for _, r := range stale {
		for _, it := range r.Items {
			if err := s.IncrementStock(ctx, it.ProductID, it.Qty); err != nil {
				return stale, fmt.Errorf("release %s: %w", r.ID, err)
			}
		}
	}
	return stale, nil
}

// OrderCount reports how many orders are stored.
func (s *Store) OrderCount() int {
	s.omu.Lock()
	defer s.omu.Unlock()
	return len(s.orders)
}
