package orders

import (
	"encoding/json"
	"github.com/shopspring/decimal"
	"time"
)

const (
	EventOrderPlaced        = "OrderPlaced"
	EventStockReleased      = "StockReleased"
	EventOrderStatusChanged = "OrderStatusChanged"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order number or reservation id
	Payload       json.RawMessage `json:"payload"`
}

type ItemQty struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type OrderPlacedPayload struct {
	OrderNumber   string          `json:"order_number"`
	ReservationID string          `json:"reservation_id,omitempty"`
	Email         string          `json:"email"`
	Items         []ItemQty       `json:"items"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Currency      string          `json:"currency"`
}

type StockReleasedPayload struct {
	ReservationID string    `json:"reservation_id"`
	Reason        string    `json:"reason"` // RESERVATION_EXPIRED
	Items         []ItemQty `json:"items"`
}

type OrderStatusChangedPayload struct {
	OrderNumber    string `json:"order_number"`
	From           Status `json:"from"`
	To             Status `json:"to"`
	TrackingNumber string `json:"tracking_number,omitempty"`
}

func ItemsOf(lines []OrderLine) []ItemQty {
	out := make([]ItemQty, 0, len(lines))
	for _, l := range lines {
		out = append(out, ItemQty{ProductID: l.ProductID, Qty: l.Quantity})
	}
	return out
}
