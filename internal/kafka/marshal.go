package kafka

import (
	"encoding/json"
	"fmt"
	"github.com/ariefcatur/lexshelf-orders/internal/orders"
	"github.com/google/uuid"
	"time"
)

const EnvelopeVersion = 1

func MustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// NewEnvelope wraps payload in the shared event envelope with a fresh event id.
func NewEnvelope(eventType, producer, correlationID string, payload any) (orders.Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return orders.Envelope{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  EnvelopeVersion,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: correlationID,
		Payload:       raw,
	}, nil
}

func UnmarshalEnvelope(b []byte, out *orders.Envelope) error {
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if out.EventID == "" || out.EventType == "" {
		return fmt.Errorf("decode envelope: missing event id or type")
	}
	return nil
}

// UnwrapPayload decodes the typed payload of an envelope.
func UnwrapPayload[T any](payload json.RawMessage) (T, error) {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return t, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}
