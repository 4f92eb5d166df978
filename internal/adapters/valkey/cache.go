package valkey

import (
	"context"
	"time"
)

// Cache implements ports.CacheService using Valkey (Redis-compatible).
type Cache struct {
	c *Client
}

// NewCache wraps a client as a cache.
func NewCache(c *Client) *Cache {
	return &Cache{c: c}
}

// Get retrieves a value by key. A missing key is reported as an error.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	vc := c.c.client
	return vc.Do(ctx, vc.B().Get().Key(key).Build()).AsBytes()
}

// Set stores a value with a TTL in seconds.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	vc := c.c.client
	return vc.Do(ctx,
		vc.B().Set().Key(key).Value(string(value)).Ex(time.Duration(ttlSeconds)*time.Second).Build(),
	).Error()
}

// Delete removes a key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	vc := c.c.client
	return vc.Do(ctx, vc.B().Del().Key(key).Build()).Error()
}
