package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ariefcatur/lexshelf-orders/internal/checkout"
	"github.com/ariefcatur/lexshelf-orders/internal/memstore"
	"github.com/ariefcatur/lexshelf-orders/internal/metrics"
	"github.com/ariefcatur/lexshelf-orders/internal/orders"
	"github.com/ariefcatur/lexshelf-orders/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu     sync.Mutex
	topics []string
}

func (f *fakePublisher) PublishEvent(topic, _, _ string, _ any) error {
	f.mu.Lock()
	f.topics = append(f.topics, topic)
	f.mu.Unlock()
	return nil
}

type fixture struct {
	router *chi.Mux
	store  *memstore.Store
	cache  *redisx.MemoryKV
	events *fakePublisher
	stats  *metrics.Collector
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := memstore.New()
	ctx := context.Background()
	require.NoError(t, s.UpsertProduct(ctx, &orders.Product{
		ID: "p1", Title: "Constitution of India (Bare Act)", Slug: "constitution-of-india-bare-act",
		Price: orders.Price{Original: decimal.RequireFromString("395")}, Stock: 3,
	}))
	require.NoError(t, s.UpsertProduct(ctx, &orders.Product{
		ID: "p2", Title: "Indian Penal Code Commentary", Slug: "ipc-commentary",
		Price: orders.Price{Original: decimal.RequireFromString("1850")}, Stock: 0,
	}))

	f := &fixture{store: s, cache: redisx.NewMemoryKV(), events: &fakePublisher{}, stats: metrics.New()}
	f.router = NewRouter(map[string]HealthCheck{"store": func(context.Context) error { return nil }})
	(&OrdersHandler{
		Placer: checkout.NewPlacer(s, s, s, nil, f.stats),
		Orders: s,
		Cache:  f.cache,
		Events: f.events,
	}).Register(f.router)
	(&ProductsHandler{Catalog: s, Cache: f.cache}).Register(f.router)
	RegisterMetrics(f.router, f.stats)
	return f
}

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *errorBody      `json:"error"`
}

func (f *fixture) do(t *testing.T, method, path string, body any, headers ...string) (int, response) {
	t.Helper()
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var out response
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec.Code, out
}

func orderRequest(items ...map[string]any) map[string]any {
	return map[string]any{
		"customer": map[string]any{
			"name": "Asha Menon", "email": "asha@example.in", "phone": "+91 98470 00000",
			"address": map[string]any{"street": "12 MG Road", "city": "Kochi", "state": "Kerala", "pincode": "682016"},
		},
		"items":          items,
		"payment_method": "COD",
		"total_amount":   1, // ignored
	}
}

func item(id string, qty int) map[string]any {
	return map[string]any{"product_id": id, "quantity": qty}
}

func decodeOrder(t *testing.T, r response) orders.Order {
	t.Helper()
	var o orders.Order
	require.NoError(t, json.Unmarshal(r.Data, &o))
	return o
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t)

	code, res := f.do(t, http.MethodPost, "/orders", orderRequest(item("p1", 2)))
	require.Equal(t, http.StatusCreated, code)
	assert.True(t, res.Success)

	o := decodeOrder(t, res)
	assert.True(t, decimal.RequireFromString("790").Equal(o.TotalAmount))
	assert.Equal(t, orders.StatusPending, o.Status)

	p, _ := f.store.FindProduct(context.Background(), "p1")
	assert.Equal(t, 1, p.Stock)
	assert.Equal(t, []string{orders.TopicOrderPlaced}, f.events.topics)
}

func TestCreateOrderFailures(t *testing.T) {
	tests := []struct {
		name  string
		body  any
		code  int
		ecode string
		avail *int
	}{
		{"malformed", "{", http.StatusBadRequest, "INVALID_INPUT", nil},
		{"empty cart", orderRequest(), http.StatusBadRequest, "INVALID_INPUT", nil},
		{"unknown product", orderRequest(item("nope", 1)), http.StatusNotFound, "NOT_FOUND", nil},
		{"out of stock", orderRequest(item("p1", 1), item("p2", 1)), http.StatusConflict, "INSUFFICIENT_STOCK", new(int)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			code, res := f.do(t, http.MethodPost, "/orders", tt.body)
			assert.Equal(t, tt.code, code)
			assert.False(t, res.Success)
			require.NotNil(t, res.Error)
			assert.Equal(t, tt.ecode, res.Error.Code)
			assert.Equal(t, tt.avail, res.Error.Available)

			p, _ := f.store.FindProduct(context.Background(), "p1")
			assert.Equal(t, 3, p.Stock)
			assert.Empty(t, f.events.topics)
		})
	}
}

func TestCreateOrderIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	body := orderRequest(item("p1", 1))

	code, first := f.do(t, http.MethodPost, "/orders", body, "Idempotency-Key", "cart-42")
	require.Equal(t, http.StatusCreated, code)
	code, second := f.do(t, http.MethodPost, "/orders", body, "Idempotency-Key", "cart-42")
	require.Equal(t, http.StatusOK, code)

	assert.Equal(t, decodeOrder(t, first).OrderNumber, decodeOrder(t, second).OrderNumber)
	assert.Equal(t, 1, f.store.OrderCount())
	p, _ := f.store.FindProduct(context.Background(), "p1")
	assert.Equal(t, 2, p.Stock)
}

func TestFailedOrderFreesIdempotencyKey(t *testing.T) {
	f := newFixture(t)

	code, _ := f.do(t, http.MethodPost, "/orders", orderRequest(item("p1", 5)), "Idempotency-Key", "k1")
	require.Equal(t, http.StatusConflict, code)
	code, _ = f.do(t, http.MethodPost, "/orders", orderRequest(item("p1", 1)), "Idempotency-Key", "k1")
	assert.Equal(t, http.StatusCreated, code)
}

func TestGetAndListOrders(t *testing.T) {
	f := newFixture(t)
	_, res := f.do(t, http.MethodPost, "/orders", orderRequest(item("p1", 1)))
	number := decodeOrder(t, res).OrderNumber

	code, res := f.do(t, http.MethodGet, "/orders/"+number, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, number, decodeOrder(t, res).OrderNumber)

	code, res = f.do(t, http.MethodGet, "/orders/ORD-NOPE-0000", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", res.Error.Code)

	code, res = f.do(t, http.MethodGet, "/orders?status=pending&email=asha@example.in", nil)
	require.Equal(t, http.StatusOK, code)
	var page OrderPage
	require.NoError(t, json.Unmarshal(res.Data, &page))
	assert.Len(t, page.Orders, 1)
	assert.Equal(t, Pagination{Page: 1, Limit: 20, Total: 1, Pages: 1}, page.Pagination)

	code, _ = f.do(t, http.MethodGet, "/orders?status=lost", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = f.do(t, http.MethodGet, "/orders?page=two", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t)
	_, res := f.do(t, http.MethodPost, "/orders", orderRequest(item("p1", 1)))
	number := decodeOrder(t, res).OrderNumber
	// warm the cache so the transition has to drop it
	f.do(t, http.MethodGet, "/orders/"+number, nil)

	code, res := f.do(t, http.MethodPatch, "/orders/"+number+"/status", map[string]string{"status": "confirmed"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, orders.StatusConfirmed, decodeOrder(t, res).Status)

	_, res = f.do(t, http.MethodGet, "/orders/"+number, nil)
	assert.Equal(t, orders.StatusConfirmed, decodeOrder(t, res).Status)

	code, res = f.do(t, http.MethodPatch, "/orders/"+number+"/status", map[string]string{"status": "delivered"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "INVALID_TRANSITION", res.Error.Code)

	code, _ = f.do(t, http.MethodPatch, "/orders/"+number+"/status", map[string]string{"status": "teleported"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(t, http.MethodPatch, "/orders/ORD-NOPE-0000/status", map[string]string{"status": "confirmed"})
	assert.Equal(t, http.StatusNotFound, code)

	assert.Equal(t, []string{orders.TopicOrderPlaced, orders.TopicOrderStatusChanged}, f.events.topics)
}

func TestProducts(t *testing.T) {
	f := newFixture(t)

	code, res := f.do(t, http.MethodGet, "/products", nil)
	require.Equal(t, http.StatusOK, code)
	var list []orders.Product
	require.NoError(t, json.Unmarshal(res.Data, &list))
	assert.Len(t, list, 2)

	code, res = f.do(t, http.MethodGet, "/products/ipc-commentary", nil)
	require.Equal(t, http.StatusOK, code)
	var p orders.Product
	require.NoError(t, json.Unmarshal(res.Data, &p))
	assert.Equal(t, "p2", p.ID)
	_, cached, _ := f.cache.Get(context.Background(), "product:ipc-commentary")
	assert.True(t, cached)

	code, _ = f.do(t, http.MethodGet, "/products/unknown", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/orders", orderRequest(item("p2", 1)))

	code, _ := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats metrics.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.EqualValues(t, 1, stats.Rejected["INSUFFICIENT_STOCK"])

	down := NewRouter(map[string]HealthCheck{"redis": func(context.Context) error { return errors.New("refused") }})
	rec = httptest.NewRecorder()
	down.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsServerReportsReapedReservations(t *testing.T) {
	m := metrics.New()
	m.RecordReaped(3)
	srv := NewMetricsServer(":0", m, nil)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var stats metrics.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.EqualValues(t, 3, stats.Reaped)

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
