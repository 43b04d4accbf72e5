package checkout

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/ariefcatur/lexshelf-orders/internal/mocks"
	"github.com/ariefcatur/lexshelf-orders/internal/orders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestValidator_Validate(t *testing.T) {
	discounted := book("c", "500", 4)
	discounted.Price.Discounted = decPtr("450")
	usd := book("u", "20", 4)
	usd.Price.Currency = "USD"

	tests := []struct {
		name     string
		cart     []orders.CartLine
		reason   error
		product  string
		avail    int
		prices   []string
		findErrs map[string]error
	}{
		{name: "empty cart", cart: nil, reason: ErrInvalidInput},
		{name: "zero quantity", cart: []orders.CartLine{line("a", 0)}, reason: ErrInvalidInput, product: "a"},
		{name: "negative quantity", cart: []orders.CartLine{line("a", 1), line("b", -2)}, reason: ErrInvalidInput, product: "b"},
		{name: "missing product id", cart: []orders.CartLine{line("", 1)}, reason: ErrInvalidInput},
		{name: "unknown product", cart: []orders.CartLine{line("a", 1), line("zz", 1)}, reason: ErrProductNotFound, product: "zz"},
		{name: "over stock", cart: []orders.CartLine{line("b", 4)}, reason: ErrInsufficientStock, product: "b", avail: 3},
		{name: "out of stock", cart: []orders.CartLine{line("z", 1)}, reason: ErrInsufficientStock, product: "z", avail: 0},
		{name: "duplicate lines add up", cart: []orders.CartLine{line("b", 2), line("b", 2)}, reason: ErrInsufficientStock, product: "b", avail: 3},
		{name: "line above the quantity cap", cart: []orders.CartLine{line("a", 1), line("a", math.MaxInt)}, reason: ErrInvalidInput, product: "a"},
		{name: "huge duplicate line is still over stock", cart: []orders.CartLine{line("a", 1), line("a", MaxLineQuantity)}, reason: ErrInsufficientStock, product: "a", avail: 5},
		{name: "mixed currency", cart: []orders.CartLine{line("a", 1), line("u", 1)}, reason: ErrInvalidInput},
		{name: "catalog down", cart: []orders.CartLine{line("x", 1)}, reason: ErrUnavailable, product: "x",
			findErrs: map[string]error{"x": errors.New("connection refused")}},
		{name: "priced lines", cart: []orders.CartLine{line("a", 2), line("c", 1)}, prices: []string{"100", "450"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat := new(mocks.MockCatalog)
			for _, p := range []*orders.Product{book("a", "100", 5), book("b", "250", 3), book("z", "80", 0), discounted, usd} {
				cat.On("FindProduct", mock.Anything, p.ID).Return(p, nil).Maybe()
			}
			cat.On("FindProduct", mock.Anything, "zz").Return(nil, orders.ErrNotFound).Maybe()
			for id, err := range tt.findErrs {
				cat.On("FindProduct", mock.Anything, id).Return(nil, err).Maybe()
			}

			lines, err := (&Validator{Catalog: cat}).Validate(context.Background(), tt.cart)
			if tt.reason != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.reason)
				var f *Failure
				require.ErrorAs(t, err, &f)
				assert.Equal(t, tt.product, f.ProductID)
				assert.Equal(t, tt.avail, f.Available)
				assert.Nil(t, lines)
				return
			}
			require.NoError(t, err)
			require.Len(t, lines, len(tt.prices))
			for i, want := range tt.prices {
				assert.True(t, dec(want).Equal(lines[i].UnitPrice), "line %d price %s", i, lines[i].UnitPrice)
			}
			cat.AssertNotCalled(t, "ConditionalDecrementStock", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestValidator_FetchesEachProductOnce(t *testing.T) {
	cat := new(mocks.MockCatalog)
	cat.On("FindProduct", mock.Anything, "a").Return(book("a", "100", 5), nil).Once()

	lines, err := (&Validator{Catalog: cat}).Validate(context.Background(), []orders.CartLine{line("a", 1), line("a", 2)})
	require.NoError(t, err)
	assert.Len(t, lines, 2)
	cat.AssertNumberOfCalls(t, "FindProduct", 1)
}

func TestFailure_Messages(t *testing.T) {
	assert.Equal(t, "Insufficient stock for Book B: only 3 left",
		(&Failure{Reason: ErrInsufficientStock, ProductID: "b", Title: "Book B", Available: 3}).Error())
	assert.Equal(t, "Insufficient stock for b: out of stock",
		(&Failure{Reason: ErrInsufficientStock, ProductID: "b"}).Error())
	assert.Equal(t, "Product zz not found", (&Failure{Reason: ErrProductNotFound, ProductID: "zz"}).Error())
	assert.Equal(t, "RESERVATION_CONFLICT", (&Failure{Reason: ErrReservationConflict}).Code())
	assert.Equal(t, "WRITE_ERROR", (&Failure{Reason: ErrWrite}).Code())

	cause := errors.New("boom")
	f := &Failure{Reason: ErrWrite, Err: cause}
	assert.ErrorIs(t, f, ErrWrite)
	assert.ErrorIs(t, f, cause)
}
