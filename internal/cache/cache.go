package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss indicates the key is absent or unusable.
var ErrMiss = errors.New("cache miss")

// Cache stores JSON-encoded values in Redis with a fixed TTL. Catalog
// listings are cached this way so repeated browses do not hammer the
// marketplace API.
type Cache struct {
	R   *redis.Client
	TTL time.Duration
}

// GetJSON loads and decodes the value at key into dst. A decode failure is
// treated as a miss and the key dropped.
func (c Cache) GetJSON(ctx context.Context, key string, dst any) error {
	if c.R == nil {
		return ErrMiss
	}
	raw, err := c.R.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrMiss
		}
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		_ = c.R.Del(ctx, key).Err()
		return ErrMiss
	}
	return nil
}

// SetJSON stores v at key for the cache TTL. Failures are returned so the
// caller can log them; a failed write never blocks serving the response.
func (c Cache) SetJSON(ctx context.Context, key string, v any) error {
	if c.R == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ttl := c.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return c.R.Set(ctx, key, raw, ttl).Err()
}

// Invalidate removes the given keys.
func (c Cache) Invalidate(ctx context.Context, keys ...string) error {
	if c.R == nil || len(keys) == 0 {
		return nil
	}
	return c.R.Del(ctx, keys...).Err()
}
