package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ariefcatur/lexshelf-orders/internal/mocks"
	"github.com/ariefcatur/lexshelf-orders/internal/orders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestWriter_ComputesTotalFromLines(t *testing.T) {
	store := new(mocks.MockOrderStore)
	store.On("CreateOrder", mock.Anything, mock.AnythingOfType("*orders.Order")).Return(nil)
	numbers := new(mocks.MockNumbers)
	numbers.On("Next").Return("ORD-1-AAAA")
	fixed := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	w := &Writer{Orders: store, Numbers: numbers, Now: func() time.Time { return fixed }}
	lines := []ValidatedLine{
		{ProductID: "a", Title: "Bare Act", Quantity: 2, UnitPrice: dec("199.50"), Currency: "INR"},
		{ProductID: "b", Title: "Commentary", Quantity: 1, UnitPrice: dec("1450"), Currency: "INR"},
	}
	res := &orders.Reservation{ID: "r1"}

	o, err := w.Commit(context.Background(), customer(), lines, orders.PaymentCOD, "leave at gate", res)
	require.NoError(t, err)
	assert.Equal(t, "ORD-1-AAAA", o.OrderNumber)
	assert.True(t, dec("1849").Equal(o.TotalAmount), "total %s", o.TotalAmount)
	assert.True(t, dec("399").Equal(o.Items[0].Subtotal))
	assert.Equal(t, orders.StatusPending, o.Status)
	assert.Equal(t, orders.PaymentPending, o.PaymentStatus)
	assert.Equal(t, "INR", o.Currency)
	assert.Equal(t, "r1", o.ReservationID)
	assert.Equal(t, fixed, o.CreatedAt)
	assert.Equal(t, "leave at gate", o.Notes)
	assert.NotEmpty(t, o.ID)
}

func TestWriter_RetriesCollisionOnce(t *testing.T) {
	store := new(mocks.MockOrderStore)
	store.On("CreateOrder", mock.Anything, mock.Anything).Return(orders.ErrDuplicateOrderNumber).Once()
	store.On("CreateOrder", mock.Anything, mock.Anything).Return(nil).Once()
	numbers := new(mocks.MockNumbers)
	numbers.On("Next").Return("ORD-1-AAAA").Once()
	numbers.On("Next").Return("ORD-1-BBBB").Once()

	o, err := (&Writer{Orders: store, Numbers: numbers}).Commit(context.Background(), customer(),
		[]ValidatedLine{vline("a", 1)}, orders.PaymentCOD, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "ORD-1-BBBB", o.OrderNumber)
	store.AssertNumberOfCalls(t, "CreateOrder", 2)
}

func TestWriter_SecondCollisionFails(t *testing.T) {
	store := new(mocks.MockOrderStore)
	store.On("CreateOrder", mock.Anything, mock.Anything).Return(orders.ErrDuplicateOrderNumber)
	numbers := new(mocks.MockNumbers)
	numbers.On("Next").Return("ORD-1-AAAA")

	_, err := (&Writer{Orders: store, Numbers: numbers}).Commit(context.Background(), customer(),
		[]ValidatedLine{vline("a", 1)}, orders.PaymentCOD, "", nil)
	assert.ErrorIs(t, err, ErrOrderNumberCollision)
	store.AssertNumberOfCalls(t, "CreateOrder", 2)
}

func TestWriter_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		reason error
	}{
		{"settled reservation", orders.ErrReservationSettled, ErrWrite},
		{"store down", errors.New("pool closed"), ErrWrite},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(mocks.MockOrderStore)
			store.On("CreateOrder", mock.Anything, mock.Anything).Return(tt.err)
			numbers := new(mocks.MockNumbers)
			numbers.On("Next").Return("ORD-1-AAAA")

			_, err := (&Writer{Orders: store, Numbers: numbers}).Commit(context.Background(), customer(),
				[]ValidatedLine{vline("a", 1)}, orders.PaymentCOD, "", nil)
			assert.ErrorIs(t, err, tt.reason)
			assert.ErrorIs(t, err, tt.err)
			store.AssertNumberOfCalls(t, "CreateOrder", 1)
		})
	}
}

func TestWriter_RejectsEmptyLines(t *testing.T) {
	_, err := (&Writer{}).Commit(context.Background(), customer(), nil, orders.PaymentCOD, "", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
