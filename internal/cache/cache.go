// ABOUTME: Persistent read-through cache with TTL, request dedupe and bounded storage
// ABOUTME: Memory layer is an LRU; snapshots survive restarts in the state store

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/markalston/review-insight/internal/storage"
)

// Defaults favour fewer refetches over always-fresh data
const (
	DefaultTTL          = 5 * time.Minute
	DefaultDedupeWindow = 2 * time.Second
	DefaultMaxEntries   = 256
	DefaultMaxPersisted = 1000

	keyPrefix = "cache:"
)

// ErrDisabled is returned by Fetch for an empty key
var ErrDisabled = errors.New("cache key is empty")

// Key derives a cache key from a request path and query
func Key(path string, query url.Values) string {
	if len(query) == 0 {
		return path
	}
	return path + "?" + query.Encode()
}

type entry struct {
	value     json.RawMessage
	expiresAt time.Time // zero means no expiry
	fetchedAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// persisted is the stored form of an entry. ExpiresAt is unix milliseconds.
type persisted struct {
	Value     json.RawMessage `json:"value"`
	ExpiresAt *int64          `json:"expiresAt"`
}

// generation identifies the state a fetch started from. Mutate and
// Invalidate bump the key counter; Clear bumps the epoch.
type generation struct {
	epoch uint64
	n     uint64
}

// Cache is safe for concurrent use
type Cache struct {
	kv           storage.Store
	mem          *lru.Cache[string, entry]
	group        singleflight.Group
	ttl          time.Duration
	dedupe       time.Duration
	maxPersisted int
	now          func() time.Time
	logger       *slog.Logger

	mu    sync.Mutex
	epoch uint64
	gens  map[string]uint64
}

// Option configures a Cache
type Option func(*Cache)

// WithTTL sets the expiry for newly written entries. Zero disables expiry.
func WithTTL(d time.Duration) Option {
	return func(c *Cache) { c.ttl = d }
}

// WithDedupeWindow sets how long a successful fetch answers repeat fetches
func WithDedupeWindow(d time.Duration) Option {
	return func(c *Cache) { c.dedupe = d }
}

// WithMaxPersisted sets the stored entry count that triggers Prune
func WithMaxPersisted(n int) Option {
	return func(c *Cache) { c.maxPersisted = n }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// New creates a cache over kv keeping at most maxEntries values in memory
func New(kv storage.Store, maxEntries int, opts ...Option) (*Cache, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	mem, err := lru.New[string, entry](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}
	c := &Cache{
		kv:           kv,
		mem:          mem,
		ttl:          DefaultTTL,
		dedupe:       DefaultDedupeWindow,
		maxPersisted: DefaultMaxPersisted,
		now:          time.Now,
		logger:       slog.Default(),
		gens:         make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Cache) generation(key string) generation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return generation{epoch: c.epoch, n: c.gens[key]}
}

func (c *Cache) bump(key string) {
	c.mu.Lock()
	c.gens[key]++
	c.mu.Unlock()
}

// Snapshot returns the last known value for key without touching the network.
// Expired or corrupt stored entries are deleted on this read and reported absent.
func (c *Cache) Snapshot(ctx context.Context, key string) (json.RawMessage, bool) {
	if key == "" {
		return nil, false
	}
	now := c.now()

	if e, ok := c.mem.Get(key); ok {
		if !e.expired(now) {
			c.logger.Debug("Cache hit", "key", key)
			return e.value, true
		}
		c.mem.Remove(key)
	}

	raw, err := c.kv.Get(ctx, keyPrefix+key)
	if err != nil {
		c.logger.Warn("Failed to read cache snapshot", "key", key, "error", err)
		return nil, false
	}
	if raw == nil {
		c.logger.Debug("Cache miss", "key", key)
		return nil, false
	}

	var p persisted
	if err := json.Unmarshal(raw, &p); err != nil || len(p.Value) == 0 {
		c.logger.Debug("Discarding corrupt cache entry", "key", key)
		c.evict(ctx, key)
		return nil, false
	}
	e := entry{value: p.Value}
	if p.ExpiresAt != nil {
		e.expiresAt = time.UnixMilli(*p.ExpiresAt)
	}
	if e.expired(now) {
		c.logger.Debug("Cache expired", "key", key)
		c.evict(ctx, key)
		return nil, false
	}

	// fetchedAt stays zero: a value loaded from disk never satisfies the dedupe window
	c.mem.Add(key, e)
	return e.value, true
}

func (c *Cache) evict(ctx context.Context, key string) {
	c.mem.Remove(key)
	if err := c.kv.Delete(ctx, keyPrefix+key); err != nil {
		c.logger.Warn("Failed to delete cache entry", "key", key, "error", err)
	}
}

// Fetch returns the value for key from fn, sharing one in-flight call between
// concurrent callers. A call within the dedupe window of the last success
// returns that result without calling fn. A failure leaves stored values as
// they were.
func (c *Cache) Fetch(ctx context.Context, key string, fn func(ctx context.Context) (json.RawMessage, error)) (json.RawMessage, error) {
	if key == "" {
		return nil, ErrDisabled
	}

	now := c.now()
	if e, ok := c.mem.Peek(key); ok && c.dedupe > 0 && !e.fetchedAt.IsZero() &&
		now.Sub(e.fetchedAt) < c.dedupe && !e.expired(now) {
		c.logger.Debug("Cache dedupe hit", "key", key)
		return e.value, nil
	}

	gen := c.generation(key)
	ch := c.group.DoChan(key, func() (any, error) {
		// the shared call outlives any single caller's cancellation
		raw, err := fn(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		if !json.Valid(raw) {
			return nil, fmt.Errorf("cache %s: fetch returned invalid JSON", key)
		}
		c.store(context.WithoutCancel(ctx), key, raw, gen)
		return raw, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.logger.Debug("Cache shared fetch", "key", key)
		}
		return res.Val.(json.RawMessage), nil
	}
}

// store writes a fetched value unless the key was mutated, invalidated or
// cleared after the fetch started
func (c *Cache) store(ctx context.Context, key string, raw json.RawMessage, gen generation) {
	if c.generation(key) != gen {
		c.logger.Debug("Dropping superseded fetch result", "key", key)
		return
	}
	if err := c.write(ctx, key, raw, c.now()); err != nil {
		c.logger.Warn("Failed to persist cache entry", "key", key, "error", err)
	}
}

func (c *Cache) write(ctx context.Context, key string, raw json.RawMessage, fetchedAt time.Time) error {
	e := entry{value: raw, fetchedAt: fetchedAt}
	p := persisted{Value: raw}
	if c.ttl > 0 {
		e.expiresAt = c.now().Add(c.ttl)
		ms := e.expiresAt.UnixMilli()
		p.ExpiresAt = &ms
	}
	c.mem.Add(key, e)
	c.logger.Debug("Cache set", "key", key, "ttl", c.ttl)

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if err := c.kv.Set(ctx, keyPrefix+key, data); err != nil {
		return err
	}
	return c.maybePrune(ctx)
}

// Mutate replaces the value for key locally, as after a successful write to
// the backend. In-flight fetches for key will not overwrite it.
func (c *Cache) Mutate(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache value: %w", err)
	}
	c.bump(key)
	c.group.Forget(key)
	// a zero fetchedAt makes the next Fetch revalidate
	return c.write(ctx, key, raw, time.Time{})
}

// Invalidate drops key from both layers. In-flight fetches for key will not
// write their result.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	c.bump(key)
	c.group.Forget(key)
	c.mem.Remove(key)
	if err := c.kv.Delete(ctx, keyPrefix+key); err != nil {
		return fmt.Errorf("failed to invalidate cache[%s]: %w", key, err)
	}
	return nil
}

// InvalidatePrefix drops every key starting with prefix
func (c *Cache) InvalidatePrefix(ctx context.Context, prefix string) error {
	items, err := c.kv.List(ctx, keyPrefix+prefix)
	if err != nil {
		return fmt.Errorf("failed to list cache[%s*]: %w", prefix, err)
	}
	for _, key := range c.mem.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.bump(key)
			c.group.Forget(key)
			c.mem.Remove(key)
		}
	}
	for _, it := range items {
		key := strings.TrimPrefix(it.Key, keyPrefix)
		c.bump(key)
		c.group.Forget(key)
	}
	if err := c.kv.DeletePrefix(ctx, keyPrefix+prefix); err != nil {
		return fmt.Errorf("failed to invalidate cache[%s*]: %w", prefix, err)
	}
	return nil
}

// Clear drops every entry from both layers
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.epoch++
	c.mu.Unlock()
	c.mem.Purge()
	if err := c.kv.DeletePrefix(ctx, keyPrefix); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

// Len reports the number of stored entries
func (c *Cache) Len(ctx context.Context) (int, error) {
	return c.kv.Count(ctx, keyPrefix)
}

func (c *Cache) maybePrune(ctx context.Context) error {
	if c.maxPersisted <= 0 {
		return nil
	}
	n, err := c.kv.Count(ctx, keyPrefix)
	if err != nil {
		return err
	}
	if n <= c.maxPersisted {
		return nil
	}
	_, err = c.Prune(ctx)
	return err
}

// Prune removes stored entries until at most the configured maximum remain:
// expired entries first, then the oldest writes. It returns how many it removed.
func (c *Cache) Prune(ctx context.Context) (int, error) {
	items, err := c.kv.List(ctx, keyPrefix)
	if err != nil {
		return 0, fmt.Errorf("failed to list cache entries: %w", err)
	}

	now := c.now()
	removed := 0
	var live []storage.Item
	for _, it := range items {
		var p persisted
		if err := json.Unmarshal(it.Value, &p); err != nil ||
			(p.ExpiresAt != nil && now.After(time.UnixMilli(*p.ExpiresAt))) {
			if err := c.kv.Delete(ctx, it.Key); err != nil {
				return removed, fmt.Errorf("failed to prune cache entry: %w", err)
			}
			c.mem.Remove(strings.TrimPrefix(it.Key, keyPrefix))
			removed++
			continue
		}
		live = append(live, it)
	}

	// live is oldest write first
	for i := 0; c.maxPersisted > 0 && len(live)-i > c.maxPersisted; i++ {
		if err := c.kv.Delete(ctx, live[i].Key); err != nil {
			return removed, fmt.Errorf("failed to prune cache entry: %w", err)
		}
		c.mem.Remove(strings.TrimPrefix(live[i].Key, keyPrefix))
		removed++
	}

	if removed > 0 {
		c.logger.Debug("Cache pruned", "removed", removed)
	}
	return removed, nil
}
