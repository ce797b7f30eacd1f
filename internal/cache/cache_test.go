package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markalston/review-insight/internal/storage"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fakeClock {
	return &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newCache(t *testing.T, kv storage.Store, clock *fakeClock, opts ...Option) *Cache {
	t.Helper()
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	c, err := New(kv, 16, opts...)
	require.NoError(t, err)
	return c
}

func counting(calls *int32, v any) func(ctx context.Context) (json.RawMessage, error) {
	return func(ctx context.Context) (json.RawMessage, error) {
		atomic.AddInt32(calls, 1)
		return json.Marshal(v)
	}
}

func TestSnapshot_ExpiredPersistedEntryIsAMiss(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	clock := newClock()

	past := clock.Now().Add(-time.Second).UnixMilli()
	data, err := json.Marshal(persisted{Value: json.RawMessage(`"stale"`), ExpiresAt: &past})
	require.NoError(t, err)
	require.NoError(t, kv.Set(ctx, "cache:/insight", data))

	c := newCache(t, kv, clock)
	_, ok := c.Snapshot(ctx, "/insight")
	assert.False(t, ok)

	var calls int32
	raw, err := c.Fetch(ctx, "/insight", counting(&calls, "fresh"))
	require.NoError(t, err)
	assert.JSONEq(t, `"fresh"`, string(raw))
	assert.EqualValues(t, 1, calls, "expired entry behaves like a miss")
}

func TestSnapshot_LazyEvictionDeletesStoredEntry(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	clock := newClock()
	c := newCache(t, kv, clock, WithTTL(time.Minute))

	var calls int32
	_, err := c.Fetch(ctx, "k", counting(&calls, 1))
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	stored, err := kv.Get(ctx, "cache:k")
	require.NoError(t, err)
	assert.NotNil(t, stored, "no proactive eviction")

	_, ok := c.Snapshot(ctx, "k")
	assert.False(t, ok)

	stored, err = kv.Get(ctx, "cache:k")
	require.NoError(t, err)
	assert.Nil(t, stored, "evicted on read")
}

func TestTTLBoundary(t *testing.T) {
	const ttl = 10 * time.Second
	ctx := context.Background()

	for _, tc := range []struct {
		name    string
		advance time.Duration
		want    bool
	}{
		{"just before expiry", ttl - time.Millisecond, true},
		{"just after expiry", ttl + time.Millisecond, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			clock := newClock()
			kv := storage.NewMemory()
			c := newCache(t, kv, clock, WithTTL(ttl))

			var calls int32
			_, err := c.Fetch(ctx, "k", counting(&calls, "v"))
			require.NoError(t, err)

			clock.Advance(tc.advance)

			// a fresh Cache over the same storage reads the persisted snapshot
			reloaded := newCache(t, kv, clock, WithTTL(ttl))
			for _, cc := range []*Cache{c, reloaded} {
				v, ok := Get[string](ctx, cc, "k")
				assert.Equal(t, tc.want, ok)
				if tc.want {
					assert.Equal(t, "v", v)
				}
			}
			assert.EqualValues(t, 1, calls)
		})
	}
}

func TestSnapshot_NoExpiryWhenTTLZero(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	kv := storage.NewMemory()
	c := newCache(t, kv, clock, WithTTL(0))

	var calls int32
	_, err := c.Fetch(ctx, "k", counting(&calls, "v"))
	require.NoError(t, err)

	raw, err := kv.Get(ctx, "cache:k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"value":"v","expiresAt":null}`, string(raw))

	clock.Advance(365 * 24 * time.Hour)
	_, ok := c.Snapshot(ctx, "k")
	assert.True(t, ok)
}

func TestSnapshot_CorruptEntryDiscarded(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	require.NoError(t, kv.Set(ctx, "cache:k", []byte(`{"value":`)))

	c := newCache(t, kv, newClock())
	_, ok := c.Snapshot(ctx, "k")
	assert.False(t, ok)

	raw, err := kv.Get(ctx, "cache:k")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestFetch_ConcurrentCallersShareOneCall(t *testing.T) {
	ctx := context.Background()
	c := newCache(t, storage.NewMemory(), newClock())

	release := make(chan struct{})
	var calls int32
	fn := func(ctx context.Context) (json.RawMessage, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return json.RawMessage(`{"n":1}`), nil
	}

	const callers = 8
	var wg sync.WaitGroup
	results := make([]json.RawMessage, callers)
	started := make(chan struct{}, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			started <- struct{}{}
			raw, err := c.Fetch(ctx, "k", fn)
			assert.NoError(t, err)
			results[i] = raw
		}(i)
	}
	for i := 0; i < callers; i++ {
		<-started
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	for _, r := range results {
		assert.JSONEq(t, `{"n":1}`, string(r))
	}
}

func TestFetch_DedupeWindow(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	c := newCache(t, storage.NewMemory(), clock, WithDedupeWindow(2*time.Second))

	var calls int32
	_, err := c.Fetch(ctx, "k", counting(&calls, 1))
	require.NoError(t, err)

	clock.Advance(time.Second)
	_, err = c.Fetch(ctx, "k", counting(&calls, 2))
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls, "inside the window")

	clock.Advance(2 * time.Second)
	raw, err := c.Fetch(ctx, "k", counting(&calls, 3))
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls, "outside the window")
	assert.JSONEq(t, `3`, string(raw))
}

func TestFetch_FailureKeepsStoredValue(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	c := newCache(t, storage.NewMemory(), clock)

	var calls int32
	_, err := c.Fetch(ctx, "k", counting(&calls, "good"))
	require.NoError(t, err)
	clock.Advance(time.Minute)

	boom := errors.New("offline")
	_, err = c.Fetch(ctx, "k", func(ctx context.Context) (json.RawMessage, error) { return nil, boom })
	require.ErrorIs(t, err, boom)

	v, ok := Get[string](ctx, c, "k")
	assert.True(t, ok)
	assert.Equal(t, "good", v)
}

func TestFetch_EmptyKeyDisabled(t *testing.T) {
	c := newCache(t, storage.NewMemory(), newClock())
	var calls int32
	_, err := c.Fetch(context.Background(), "", counting(&calls, 1))
	assert.ErrorIs(t, err, ErrDisabled)
	assert.Zero(t, calls)
}

func TestFetch_CallerCancellationDoesNotAbortSharedCall(t *testing.T) {
	c := newCache(t, storage.NewMemory(), newClock())

	release := make(chan struct{})
	fn := func(ctx context.Context) (json.RawMessage, error) {
		<-release
		return json.RawMessage(`"done"`), ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := c.Fetch(ctx, "k", fn)
		errc <- err
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)

	close(release)
	raw, err := c.Fetch(context.Background(), "k", fn)
	require.NoError(t, err)
	assert.JSONEq(t, `"done"`, string(raw))
}

func TestMutate_SupersedesInFlightFetch(t *testing.T) {
	ctx := context.Background()
	c := newCache(t, storage.NewMemory(), newClock())

	release := make(chan struct{})
	fetched := make(chan json.RawMessage, 1)
	go func() {
		raw, _ := c.Fetch(ctx, "k", func(ctx context.Context) (json.RawMessage, error) {
			<-release
			return json.RawMessage(`"old"`), nil
		})
		fetched <- raw
	}()
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, c.Mutate(ctx, "k", "new"))
	close(release)
	<-fetched

	v, ok := Get[string](ctx, c, "k")
	require.True(t, ok)
	assert.Equal(t, "new", v)
}

func TestInvalidate(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	c := newCache(t, kv, newClock())

	var calls int32
	_, err := c.Fetch(ctx, "/reviews?store_id=1", counting(&calls, 1))
	require.NoError(t, err)
	_, err = c.Fetch(ctx, "/reviews?store_id=2", counting(&calls, 2))
	require.NoError(t, err)
	_, err = c.Fetch(ctx, "/insight", counting(&calls, 3))
	require.NoError(t, err)

	require.NoError(t, c.Invalidate(ctx, "/insight"))
	_, ok := c.Snapshot(ctx, "/insight")
	assert.False(t, ok)

	require.NoError(t, c.InvalidatePrefix(ctx, "/reviews"))
	n, err := c.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	// invalidation also resets the dedupe window
	_, err = c.Fetch(ctx, "/insight", counting(&calls, 4))
	require.NoError(t, err)
	assert.EqualValues(t, 4, calls)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	require.NoError(t, kv.Set(ctx, "auth.token", []byte("t")))
	c := newCache(t, kv, newClock())

	var calls int32
	for i := 0; i < 3; i++ {
		_, err := c.Fetch(ctx, fmt.Sprintf("k%d", i), counting(&calls, i))
		require.NoError(t, err)
	}
	require.NoError(t, c.Clear(ctx))

	n, err := c.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, ok := c.Snapshot(ctx, "k0")
	assert.False(t, ok)

	tok, err := kv.Get(ctx, "auth.token")
	require.NoError(t, err)
	assert.Equal(t, "t", string(tok), "only cache keys are cleared")
}

func TestPrune_ExpiredFirstThenOldest(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	kv := storage.NewMemory()
	kv.Now = clock.Now

	c := newCache(t, kv, clock, WithMaxPersisted(100), WithTTL(time.Hour))
	var calls int32

	// k0 expires, k1..k4 do not
	shortLived := newCache(t, kv, clock, WithMaxPersisted(100), WithTTL(time.Second))
	_, err := shortLived.Fetch(ctx, "k0", counting(&calls, 0))
	require.NoError(t, err)
	for i := 1; i < 5; i++ {
		clock.Advance(time.Second)
		_, err := c.Fetch(ctx, fmt.Sprintf("k%d", i), counting(&calls, i))
		require.NoError(t, err)
	}

	c.maxPersisted = 2
	removed, err := c.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	for key, want := range map[string]bool{"k0": false, "k1": false, "k2": false, "k3": true, "k4": true} {
		raw, err := kv.Get(ctx, "cache:"+key)
		require.NoError(t, err)
		assert.Equal(t, want, raw != nil, key)
	}
}

func TestWrite_SweepsBeyondMaxPersisted(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	kv := storage.NewMemory()
	kv.Now = clock.Now
	c := newCache(t, kv, clock, WithMaxPersisted(3))

	var calls int32
	for i := 0; i < 10; i++ {
		clock.Advance(time.Millisecond)
		_, err := c.Fetch(ctx, fmt.Sprintf("k%d", i), counting(&calls, i))
		require.NoError(t, err)
	}

	n, err := c.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, ok := c.Snapshot(ctx, "k9")
	assert.True(t, ok, "newest survives")
}

func TestNew_MemoryLayerIsBounded(t *testing.T) {
	c, err := New(storage.NewMemory(), 2)
	require.NoError(t, err)

	ctx := context.Background()
	var calls int32
	for i := 0; i < 5; i++ {
		_, err := c.Fetch(ctx, fmt.Sprintf("k%d", i), counting(&calls, i))
		require.NoError(t, err)
	}
	assert.Equal(t, 2, c.mem.Len())

	// evicted from memory but still served from storage
	v, ok := Get[int](ctx, c, "k0")
	assert.True(t, ok)
	assert.Equal(t, 0, v)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "/insight", Key("/insight", nil))
	assert.Equal(t, "/reviews?page=2&store_id=s1", Key("/reviews", map[string][]string{"store_id": {"s1"}, "page": {"2"}}))
}
