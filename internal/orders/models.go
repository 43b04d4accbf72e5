package orders

import (
	"github.com/shopspring/decimal"
	"time"
)

const DefaultCurrency = "INR"

type Price struct {
	Original   decimal.Decimal  `json:"original"`
	Discounted *decimal.Decimal `json:"discounted,omitempty"`
	Currency   string           `json:"currency"`
}

// Effective is the price a buyer pays right now: discounted if set, else original.
func (p Price) Effective() decimal.Decimal {
	if p.Discounted != nil {
		return *p.Discounted
	}
	return p.Original
}

func (p Price) Valid() bool {
	if p.Original.IsNegative() {
		return false
	}
	if p.Discounted != nil && (p.Discounted.IsNegative() || p.Discounted.GreaterThan(p.Original)) {
		return false
	}
	return true
}

type Product struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	Author      string    `json:"author,omitempty"`
	Publisher   string    `json:"publisher,omitempty"`
	Edition     string    `json:"edition,omitempty"`
	ISBN        string    `json:"isbn,omitempty"`
	Price       Price     `json:"price"`
	Stock       int       `json:"stock"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CartLine is what the checkout page submits. Never persisted.
type CartLine struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity"`
}

type Address struct {
	Street  string `json:"street" validate:"required"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state" validate:"required"`
	Pincode string `json:"pincode" validate:"required"`
	Country string `json:"country"`
}

type Customer struct {
	Name    string  `json:"name" validate:"required"`
	Email   string  `json:"email" validate:"required,email"`
	Phone   string  `json:"phone" validate:"required"`
	Address Address `json:"address"`
}

// OrderLine is a snapshot of the product taken at purchase time. Later catalog
// edits never reach it.
type OrderLine struct {
	ProductID string          `json:"product_id"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type Order struct {
	ID             string          `json:"id"`
	OrderNumber    string          `json:"order_number"`
	Customer       Customer        `json:"customer"`
	Items          []OrderLine     `json:"items"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Currency       string          `json:"currency"`
	Status         Status          `json:"status"`
	PaymentMethod  PaymentMethod   `json:"payment_method"`
	PaymentStatus  PaymentStatus   `json:"payment_status"`
	TrackingNumber string          `json:"tracking_number,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	ReservationID  string          `json:"reservation_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// LinesTotal sums the persisted subtotals.
func LinesTotal(lines []OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal)
	}
	return total
}

type ReservationStatus string

const (
	ReservationReserved  ReservationStatus = "RESERVED"
	ReservationCommitted ReservationStatus = "COMMITTED"
	ReservationReleased  ReservationStatus = "RELEASED"
)

// Reservation records stock taken for one placement attempt.
type Reservation struct {
	ID        string            `json:"id"`
	Items     []ItemQty         `json:"items"`
	Status    ReservationStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
}

type OrderFilter struct {
	Status Status
	Email  string
	Page   int
	Limit  int
}
