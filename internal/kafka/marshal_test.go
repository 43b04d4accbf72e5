package kafka

import (
	"testing"

	"github.com/ariefcatur/lexshelf-orders/internal/orders"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeCarriesTypedPayload(t *testing.T) {
	payload := orders.OrderPlacedPayload{
		OrderNumber: "ORD-LZ3K9-7QX2",
		Email:       "asha@example.in",
		Items:       []orders.ItemQty{{ProductID: "p1", Qty: 2}},
		TotalAmount: decimal.RequireFromString("398.00"),
		Currency:    "INR",
	}
	env, err := NewEnvelope(orders.EventOrderPlaced, "order-api", payload.OrderNumber, payload)
	require.NoError(t, err)
	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, EnvelopeVersion, env.EventVersion)

	var back orders.Envelope
	require.NoError(t, UnmarshalEnvelope(MustMarshal(env), &back))
	assert.Equal(t, env.EventID, back.EventID)
	assert.Equal(t, "ORD-LZ3K9-7QX2", back.CorrelationID)

	got, err := UnwrapPayload[orders.OrderPlacedPayload](back.Payload)
	require.NoError(t, err)
	assert.Equal(t, payload.Items, got.Items)
	assert.True(t, payload.TotalAmount.Equal(got.TotalAmount))
}

func TestUnmarshalEnvelopeRejectsGarbage(t *testing.T) {
	var env orders.Envelope
	assert.Error(t, UnmarshalEnvelope([]byte("not json"), &env))
	assert.Error(t, UnmarshalEnvelope([]byte(`{"payload":{}}`), &env))
}
