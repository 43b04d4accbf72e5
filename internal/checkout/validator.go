package checkout

import (
	"context"
	"errors"
	"math"
	"github.com/ariefcatur/lexshelf-orders/internal/orders"
	"github.com/shopspring/decimal"
)

// ValidatedLine is one priced cart line, the order preview shown before commit.
type ValidatedLine struct {
	ProductID string
	Title     string
	Quantity  int
	UnitPrice decimal.Decimal
	Currency  string
}

func (l ValidatedLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// MaxLineQuantity is the largest quantity a single cart line may ask for; the
// stock column is a 32-bit integer.
const MaxLineQuantity = math.MaxInt32

type Validator struct {
	Catalog Catalog
}

// Validate checks the cart against the current catalog and prices every line.
// It never mutates stock. Lines naming the same product are checked against
// their combined quantity.
func (v *Validator) Validate(ctx context.Context, cart []orders.CartLine) ([]ValidatedLine, error) {
	if len(cart) == 0 {
		return nil, invalid("cart is empty")
	}
	for _, it := range cart {
		if it.ProductID == "" {
			return nil, invalid("cart line without product")
		}
		if it.Quantity <= 0 {
			return nil, &Failure{Reason: ErrInvalidInput, ProductID: it.ProductID,
				Detail: "quantity must be a positive number for product " + it.ProductID}
		}
		if it.Quantity > MaxLineQuantity {
			return nil, &Failure{Reason: ErrInvalidInput, ProductID: it.ProductID,
				Detail: "quantity is too large for product " + it.ProductID}
		}
	}

	products := make(map[string]*orders.Product, len(cart))
	requested := make(map[string]int, len(cart))
	out := make([]ValidatedLine, 0, len(cart))
	currency := ""

	for _, it := range cart {
		p, ok := products[it.ProductID]
		if !ok {
			var err error
			p, err = v.Catalog.FindProduct(ctx, it.ProductID)
			if errors.Is(err, orders.ErrNotFound) {
				return nil, &Failure{Reason: ErrProductNotFound, ProductID: it.ProductID}
			}
			if err != nil {
				return nil, &Failure{Reason: ErrUnavailable, ProductID: it.ProductID, Err: err}
			}
			products[it.ProductID] = p
		}

		// compared against what is left so the running sum cannot overflow
		if it.Quantity > p.Stock-requested[it.ProductID] {
			return nil, &Failure{Reason: ErrInsufficientStock, ProductID: p.ID, Title: p.Title, Available: p.Stock}
		}
		requested[it.ProductID] += it.Quantity

		cur := p.Price.Currency
		if cur == "" {
			cur = orders.DefaultCurrency
		}
		if currency == "" {
			currency = cur
		} else if cur != currency {
			return nil, invalid("cart mixes %s and %s prices", currency, cur)
		}

		out = append(out, ValidatedLine{
			ProductID: p.ID,
			Title:     p.Title,
			Quantity:  it.Quantity,
			UnitPrice: p.Price.Effective(),
			Currency:  cur,
		})
	}
	return out, nil
}
