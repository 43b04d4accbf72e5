package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ariefcatur/lexshelf-orders/internal/checkout"
	"github.com/ariefcatur/lexshelf-orders/internal/orders"
	"github.com/ariefcatur/lexshelf-orders/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type OrderPlacer interface {
	Place(ctx context.Context, req checkout.Request) (*orders.Order, error)
}

type OrderQueries interface {
	FindOrder(ctx context.Context, orderNumber string) (*orders.Order, error)
	ListOrders(ctx context.Context, f orders.OrderFilter) ([]orders.Order, int, error)
	TransitionStatus(ctx context.Context, orderNumber string, to orders.Status, tracking string) (*orders.Order, orders.Status, error)
}

type EventPublisher interface {
	PublishEvent(topic, key, eventType string, payload any) error
}

type OrdersHandler struct {
	Placer  OrderPlacer
	Orders  OrderQueries
	Cache   redisx.KV      // optional
	Events  EventPublisher // optional
	Timeout time.Duration  // placement deadline, defaults to 10s
}

type UpdateStatusReq struct {
	Status         orders.Status `json:"status" validate:"required"`
	TrackingNumber string        `json:"tracking_number"`
}

type OrderPage struct {
	Orders     []orders.Order `json:"orders"`
	Pagination Pagination     `json:"pagination"`
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

var validate = validator.New()

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{number}", h.getOrder)
	r.Patch("/orders/{number}/status", h.updateStatus)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req checkout.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid order: malformed JSON body")
		return
	}

	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	// Fast-path idempotency via Redis: the key holds "" while the first request is
	// in flight and the order number once it committed.
	var idemKey string
	if k := strings.TrimSpace(r.Header.Get("Idempotency-Key")); k != "" && h.Cache != nil {
		idemKey = fmt.Sprintf(redisx.KeyIdemCheckout, k)
		won, err := h.Cache.Claim(ctx, idemKey, "", redisx.TTLInFlight)
		switch {
		case err != nil:
			zap.L().Warn("idempotency claim failed, placing without it", zap.Error(err))
			idemKey = ""
		case !won:
			h.replay(ctx, w, idemKey)
			return
		}
	}

	order, err := h.Placer.Place(ctx, req)
	if err != nil {
		if idemKey != "" {
			_ = h.Cache.Del(context.WithoutCancel(ctx), idemKey)
		}
		writeFailure(w, err)
		return
	}

	bg := context.WithoutCancel(ctx)
	if idemKey != "" {
		_ = h.Cache.Set(bg, idemKey, order.OrderNumber, redisx.TTLIdempotency)
	}
	if h.Cache != nil {
		_ = redisx.SetJSON(bg, h.Cache, fmt.Sprintf(redisx.KeyOrder, order.OrderNumber), order, redisx.TTLOrderCache)
	}
	h.publish(orders.TopicOrderPlaced, order.OrderNumber, orders.EventOrderPlaced, orders.OrderPlacedPayload{
		OrderNumber:   order.OrderNumber,
		ReservationID: order.ReservationID,
		Email:         order.Customer.Email,
		Items:         orders.ItemsOf(order.Items),
		TotalAmount:   order.TotalAmount,
		Currency:      order.Currency,
	})

	writeData(w, http.StatusCreated, order)
}

func (h *OrdersHandler) replay(ctx context.Context, w http.ResponseWriter, idemKey string) {
	number, ok, err := h.Cache.Get(ctx, idemKey)
	if err != nil || !ok || number == "" {
		writeError(w, http.StatusConflict, "IN_PROGRESS", "An order with this idempotency key is still being placed")
		return
	}
	order, err := h.Orders.FindOrder(ctx, number)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "WRITE_ERROR", "Could not load the existing order")
		return
	}
	w.Header().Set("Idempotent-Replayed", "true")
	writeData(w, http.StatusOK, order)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := orders.OrderFilter{Status: orders.Status(q.Get("status")), Email: strings.TrimSpace(q.Get("email"))}
	if f.Status != "" && !f.Status.Valid() {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "unknown status "+string(f.Status))
		return
	}
	var err error
	if f.Page, err = intParam(q.Get("page")); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "page must be a number")
		return
	}
	if f.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "limit must be a number")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, total, err := h.Orders.ListOrders(ctx, f)
	if err != nil {
		zap.L().Error("list orders", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "UNAVAILABLE", "Could not load orders")
		return
	}
	page, limit := orders.NormalizePage(f.Page, f.Limit)
	writeData(w, http.StatusOK, OrderPage{
		Orders:     list,
		Pagination: Pagination{Page: page, Limit: limit, Total: total, Pages: (total + limit - 1) / limit},
	})
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) try cache
	key := fmt.Sprintf(redisx.KeyOrder, number)
	if h.Cache != nil {
		var cached orders.Order
		if ok, _ := redisx.GetJSON(ctx, h.Cache, key, &cached); ok {
			writeData(w, http.StatusOK, cached)
			return
		}
	}

	// 2) fallback DB
	o, err := h.Orders.FindOrder(ctx, number)
	if errors.Is(err, orders.ErrNotFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Order "+number+" not found")
		return
	}
	if err != nil {
		zap.L().Error("find order", zap.String("order_number", number), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "UNAVAILABLE", "Could not load the order")
		return
	}
	if h.Cache != nil {
		_ = redisx.SetJSON(ctx, h.Cache, key, o, redisx.TTLOrderCache)
	}
	writeData(w, http.StatusOK, o)
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	var req UpdateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "malformed JSON body")
		return
	}
	if err := validate.Struct(req); err != nil || !req.Status.Valid() {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "status must be one of pending, confirmed, processing, shipped, delivered, cancelled")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, from, err := h.Orders.TransitionStatus(ctx, number, req.Status, strings.TrimSpace(req.TrackingNumber))
	switch {
	case errors.Is(err, orders.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Order "+number+" not found")
		return
	case errors.Is(err, orders.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "INVALID_TRANSITION",
			fmt.Sprintf("Cannot move order from %s to %s", from, req.Status))
		return
	case err != nil:
		zap.L().Error("transition order", zap.String("order_number", number), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "UNAVAILABLE", "Could not update the order")
		return
	}

	if h.Cache != nil {
		_ = h.Cache.Del(ctx, fmt.Sprintf(redisx.KeyOrder, number))
	}
	h.publish(orders.TopicOrderStatusChanged, number, orders.EventOrderStatusChanged, orders.OrderStatusChangedPayload{
		OrderNumber: number, From: from, To: o.Status, TrackingNumber: o.TrackingNumber,
	})
	zap.L().Info("order status changed", zap.String("order_number", number),
		zap.String("from", string(from)), zap.String("to", string(o.Status)))
	writeData(w, http.StatusOK, o)
}

func (h *OrdersHandler) publish(topic, key, eventType string, payload any) {
	if h.Events == nil {
		return
	}
	if err := h.Events.PublishEvent(topic, key, eventType, payload); err != nil {
		zap.L().Error("publish event", zap.String("event_type", eventType), zap.String("key", key), zap.Error(err))
	}
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
