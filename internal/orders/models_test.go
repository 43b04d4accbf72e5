package orders

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestPriceEffective(t *testing.T) {
	d := dec("799.00")
	assert.True(t, dec("999.00").Equal(Price{Original: dec("999.00")}.Effective()))
	assert.True(t, d.Equal(Price{Original: dec("999.00"), Discounted: &d}.Effective()))
}

func TestPriceValid(t *testing.T) {
	lower, higher, negative := dec("10"), dec("120"), dec("-1")
	assert.True(t, Price{Original: dec("100")}.Valid())
	assert.True(t, Price{Original: dec("100"), Discounted: &lower}.Valid())
	assert.False(t, Price{Original: dec("100"), Discounted: &higher}.Valid())
	assert.False(t, Price{Original: dec("100"), Discounted: &negative}.Valid())
	assert.False(t, Price{Original: negative}.Valid())
}

func TestLinesTotal(t *testing.T) {
	lines := []OrderLine{
		{ProductID: "a", Quantity: 2, UnitPrice: dec("450.50"), Subtotal: dec("901.00")},
		{ProductID: "b", Quantity: 1, UnitPrice: dec("99.99"), Subtotal: dec("99.99")},
	}
	assert.True(t, dec("1000.99").Equal(LinesTotal(lines)))
	assert.True(t, decimal.Zero.Equal(LinesTotal(nil)))
}
