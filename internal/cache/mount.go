// ABOUTME: Per-screen handle over the cache: stale value now, fresh value later
// ABOUTME: A newer revalidation supersedes an older one still in flight

package cache

import (
	"context"
	"sync"
)

// MountOptions tunes one mount
type MountOptions struct {
	// RevalidateOnFocus refetches when the screen regains focus. Off by default.
	RevalidateOnFocus bool
	// OnChange runs after each completed revalidation, success or failure
	OnChange func()
}

// Resource is a mounted cache key. It holds the value a screen should render.
type Resource[T any] struct {
	c     *Cache
	key   string
	fetch func(ctx context.Context) (T, error)
	opts  MountOptions

	mu      sync.Mutex
	current T
	has     bool
	err     error
	loading bool
	gen     uint64
	done    chan struct{}
}

// Mount makes the stored snapshot for key available at once and starts a
// background fetch. An empty key disables fetching entirely.
func Mount[T any](ctx context.Context, c *Cache, key string, fetch func(ctx context.Context) (T, error), opts MountOptions) *Resource[T] {
	r := &Resource[T]{c: c, key: key, fetch: fetch, opts: opts}
	closed := make(chan struct{})
	close(closed)
	r.done = closed

	if key == "" {
		return r
	}
	if v, ok := Get[T](ctx, c, key); ok {
		r.current, r.has = v, true
	}
	r.Revalidate(ctx)
	return r
}

// Current returns the value to render and whether there is one
func (r *Resource[T]) Current() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current, r.has
}

// Err returns the error of the last completed revalidation
func (r *Resource[T]) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Loading reports whether a revalidation is in flight
func (r *Resource[T]) Loading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loading
}

// Key returns the mounted key
func (r *Resource[T]) Key() string {
	return r.key
}

// Revalidate starts a background fetch. A failure keeps the current value.
func (r *Resource[T]) Revalidate(ctx context.Context) {
	if r.key == "" {
		return
	}

	r.mu.Lock()
	r.gen++
	gen := r.gen
	r.loading = true
	done := make(chan struct{})
	r.done = done
	r.mu.Unlock()

	go func() {
		defer close(done)
		v, err := Fetch(ctx, r.c, r.key, r.fetch)

		r.mu.Lock()
		if gen != r.gen {
			r.mu.Unlock()
			return
		}
		r.loading = false
		r.err = err
		if err == nil {
			r.current, r.has = v, true
		}
		r.mu.Unlock()

		if r.opts.OnChange != nil {
			r.opts.OnChange()
		}
	}()
}

// Wait blocks until the latest revalidation completes or ctx ends
func (r *Resource[T]) Wait(ctx context.Context) (T, error) {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.current, r.err
	}
	return r.current, nil
}

// Focus tells the resource its screen regained focus
func (r *Resource[T]) Focus(ctx context.Context) {
	if r.opts.RevalidateOnFocus {
		r.Revalidate(ctx)
	}
}

// Mutate sets the value locally and in the cache
func (r *Resource[T]) Mutate(ctx context.Context, v T) error {
	if r.key == "" {
		return ErrDisabled
	}
	r.mu.Lock()
	r.gen++
	r.current, r.has, r.err, r.loading = v, true, nil, false
	r.mu.Unlock()
	return r.c.Mutate(ctx, r.key, v)
}
