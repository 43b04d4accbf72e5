package httpx

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/lexshelf-orders/internal/orders"
	"github.com/ariefcatur/lexshelf-orders/internal/redisx"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"net/http"
	"time"
)

type ProductQueries interface {
	ListProducts(ctx context.Context) ([]orders.Product, error)
	FindProductByIDOrSlug(ctx context.Context, key string) (*orders.Product, error)
}

// ProductsHandler serves catalog reads. The cache here only backs page views;
// checkout always reads stock and prices from the store.
type ProductsHandler struct {
	Catalog ProductQueries
	Cache   redisx.KV // optional
}

func (h *ProductsHandler) Register(r *chi.Mux) {
	r.Get("/products", h.listProducts)
	r.Get("/products/{key}", h.getProduct)
}

func (h *ProductsHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Catalog.ListProducts(ctx)
	if err != nil {
		zap.L().Error("list products", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "UNAVAILABLE", "Could not load products")
		return
	}
	writeData(w, http.StatusOK, ps)
}

func (h *ProductsHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	cacheKey := fmt.Sprintf(redisx.KeyProduct, key)
	if h.Cache != nil {
		var cached orders.Product
		if ok, _ := redisx.GetJSON(ctx, h.Cache, cacheKey, &cached); ok {
			writeData(w, http.StatusOK, cached)
			return
		}
	}

	p, err := h.Catalog.FindProductByIDOrSlug(ctx, key)
	if errors.Is(err, orders.ErrNotFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Product "+key+" not found")
		return
	}
	if err != nil {
		zap.L().Error("find product", zap.String("key", key), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "UNAVAILABLE", "Could not load the product")
		return
	}
	if h.Cache != nil {
		_ = redisx.SetJSON(ctx, h.Cache, cacheKey, p, redisx.TTLProductCache)
	}
	writeData(w, http.StatusOK, p)
}
