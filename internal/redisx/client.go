package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/redis/go-redis/v9"
	"time"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// KV is the small key/value surface the HTTP layer and the inventory worker
// need from Redis.
type KV interface {
	Claim(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Cache implements KV on a Redis client.
type Cache struct {
	RDB *redis.Client
}

// Claim sets key only if it is absent and reports whether this caller won.
func (c Cache) Claim(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return c.RDB.SetNX(ctx, key, value, ttl).Result()
}

// Get returns the value at key; a miss is ("", false, nil).
func (c Cache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.RDB.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (c Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.RDB.Set(ctx, key, value, ttl).Err()
}

func (c Cache) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.RDB.Del(ctx, keys...).Err()
}

// Ping checks the connection, for /healthz.
func (c Cache) Ping(ctx context.Context) error {
	return c.RDB.Ping(ctx).Err()
}

// GetJSON decodes the cached value at key into dst. A miss returns false, nil.
func GetJSON(ctx context.Context, c KV, key string, dst any) (bool, error) {
	v, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(v), dst); err != nil {
		return false, err
	}
	return true, nil
}

func SetJSON(ctx context.Context, c KV, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, string(b), ttl)
}
