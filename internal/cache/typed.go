// ABOUTME: Typed wrappers over the raw JSON cache
// ABOUTME: Decode failures count as a miss, never as an error surfaced to screens

package cache

import (
	"context"
	"encoding/json"
	"fmt"
)

// Get returns the typed snapshot for key
func Get[T any](ctx context.Context, c *Cache, key string) (T, bool) {
	var zero T
	raw, ok := c.Snapshot(ctx, key)
	if !ok {
		return zero, false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		c.logger.Debug("Discarding undecodable cache entry", "key", key, "error", err)
		c.evict(ctx, key)
		return zero, false
	}
	return v, true
}

// Fetch is the typed form of Cache.Fetch
func Fetch[T any](ctx context.Context, c *Cache, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	raw, err := c.Fetch(ctx, key, func(ctx context.Context) (json.RawMessage, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", key, err)
		}
		return data, nil
	})
	if err != nil {
		return zero, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return v, nil
}
