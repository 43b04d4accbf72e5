package redisx

import "time"

const (
	// Idempotent checkout: idem:checkout:{Idempotency-Key} -> order_number ("" while in flight)
	KeyIdemCheckout = "idem:checkout:%s"

	// Product read cache: product:{id or slug} -> product JSON. Never read by checkout.
	KeyProduct = "product:%s"

	// Order read cache: order:{order_number} -> order JSON
	KeyOrder = "order:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency  = 24 * time.Hour
	TTLInFlight     = 30 * time.Second
	TTLProductCache = 5 * time.Minute
	TTLOrderCache   = 5 * time.Minute
	TTLDedup        = 48 * time.Hour
)
