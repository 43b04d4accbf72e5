package mocks

import (
	"context"
	"github.com/ariefcatur/lexshelf-orders/internal/orders"
	"github.com/stretchr/testify/mock"
)

type MockCatalog struct {
	mock.Mock
}

type MockOrderStore struct {
	mock.Mock
}

type MockLedger struct {
	mock.Mock
}

type MockNumbers struct {
	mock.Mock
}

func (m *MockCatalog) FindProduct(ctx context.Context, id string) (*orders.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orders.Product), args.Error(1)
}

func (m *MockCatalog) ConditionalDecrementStock(ctx context.Context, id string, qty int) error {
	args := m.Called(ctx, id, qty)
	return args.Error(0)
}

func (m *MockCatalog) IncrementStock(ctx context.Context, id string, qty int) error {
	args := m.Called(ctx, id, qty)
	return args.Error(0)
}

func (m *MockOrderStore) CreateOrder(ctx context.Context, o *orders.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockLedger) Open(ctx context.Context, r *orders.Reservation) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockLedger) Record(ctx context.Context, id string, it orders.ItemQty) error {
	args := m.Called(ctx, id, it)
	return args.Error(0)
}

func (m *MockLedger) Claim(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockNumbers) Next() string {
	args := m.Called()
	return args.String(0)
}
