// ABOUTME: In-memory Store used by tests and --ephemeral runs
// ABOUTME: Same contract as SQLiteStore without touching disk

package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is a mutex-guarded map implementing Store
type MemoryStore struct {
	mu     sync.Mutex
	items  map[string]memItem
	closed bool
	seq    int64
	// Now is the write clock. Defaults to time.Now.
	Now func() time.Time
}

type memItem struct {
	Item
	seq int64
}

// NewMemory returns an empty MemoryStore
func NewMemory() *MemoryStore {
	return &MemoryStore{items: make(map[string]memItem), Now: time.Now}
}

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	it, ok := m.items[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), it.Value...), nil
}

func (m *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	// seq breaks ties between writes within one clock tick
	m.seq++
	m.items[key] = memItem{
		Item: Item{Key: key, Value: append([]byte{}, value...), UpdatedAt: m.Now()},
		seq:  m.seq,
	}
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.items, key)
	return nil
}

func (m *MemoryStore) List(ctx context.Context, prefix string) ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	var matched []memItem
	for k, it := range m.items {
		if strings.HasPrefix(k, prefix) {
			matched = append(matched, it)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].UpdatedAt.Equal(matched[j].UpdatedAt) {
			return matched[i].seq < matched[j].seq
		}
		return matched[i].UpdatedAt.Before(matched[j].UpdatedAt)
	})
	out := make([]Item, 0, len(matched))
	for _, it := range matched {
		item := it.Item
		item.Value = append([]byte(nil), it.Value...)
		out = append(out, item)
	}
	return out, nil
}

func (m *MemoryStore) Count(ctx context.Context, prefix string) (int, error) {
	items, err := m.List(ctx, prefix)
	return len(items), err
}

func (m *MemoryStore) DeletePrefix(ctx context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for k := range m.items {
		if strings.HasPrefix(k, prefix) {
			delete(m.items, k)
		}
	}
	return nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
