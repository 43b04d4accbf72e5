package inventory

import (
	"context"
	"fmt"
	kafkax "github.com/ariefcatur/lexshelf-orders/internal/kafka"
	"github.com/ariefcatur/lexshelf-orders/internal/orders"
	"github.com/ariefcatur/lexshelf-orders/internal/redisx"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type ProductLookup interface {
	FindProduct(ctx context.Context, id string) (*orders.Product, error)
}

// CacheInvalidator drops cached product documents whose stock changed. It is
// installed as the handler of the inventory consumer.
type CacheInvalidator struct {
	Cache       redisx.KV
	Products    ProductLookup // optional, resolves slugs so slug keys are dropped too
	ServiceName string
}

func (s *CacheInvalidator) HandleMessage(ctx context.Context, m kafkago.Message) error {
	// 1) decode envelope
	var env orders.Envelope
	if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
		zap.L().Warn("skipping undecodable event", zap.String("topic", m.Topic), zap.Error(err))
		return nil
	}

	// 2) pick the products touched by this event
	var items []orders.ItemQty
	switch env.EventType {
	case orders.EventOrderPlaced:
		p, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
		if err != nil {
			return err
		}
		items = p.Items
	case orders.EventStockReleased:
		p, err := kafkax.UnwrapPayload[orders.StockReleasedPayload](env.Payload)
		if err != nil {
			return err
		}
		items = p.Items
	default:
		return nil
	}

	// 3) dedup by event id
	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	won, err := s.Cache.Claim(ctx, dkey, "1", redisx.TTLDedup)
	if err != nil {
		return fmt.Errorf("dedup claim: %w", err)
	}
	if !won {
		return nil
	}

	// 4) drop cache entries
	keys := s.keysFor(ctx, items)
	if err := s.Cache.Del(ctx, keys...); err != nil {
		_ = s.Cache.Del(ctx, dkey) // let the redelivery try again
		return fmt.Errorf("invalidate %d keys: %w", len(keys), err)
	}
	zap.L().Debug("product cache invalidated",
		zap.String("event_type", env.EventType), zap.String("correlation_id", env.CorrelationID), zap.Strings("keys", keys))
	return nil
}

func (s *CacheInvalidator) keysFor(ctx context.Context, items []orders.ItemQty) []string {
	seen := make(map[string]bool, len(items))
	keys := make([]string, 0, len(items)*2)
	for _, it := range items {
		if seen[it.ProductID] {
			continue
		}
		seen[it.ProductID] = true
		keys = append(keys, fmt.Sprintf(redisx.KeyProduct, it.ProductID))
		if s.Products == nil {
			continue
		}
		if p, err := s.Products.FindProduct(ctx, it.ProductID); err == nil && p.Slug != "" {
			keys = append(keys, fmt.Sprintf(redisx.KeyProduct, p.Slug))
		}
	}
	return keys
}
