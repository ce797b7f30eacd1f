// ABOUTME: Persisted key/value storage for device-local client state
// ABOUTME: Holds session, cache snapshots, onboarding flags and preferences

package storage

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by operations on a closed store
var ErrClosed = errors.New("storage closed")

// Item is a stored value together with its last write time
type Item struct {
	Key       string
	Value     []byte
	UpdatedAt time.Time
}

// Store is the device-local key/value store.
//
// Get returns (nil, nil) when the key does not exist. Values are opaque bytes;
// callers that store JSON own its decoding and must treat decode failures as
// absence of data.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// List returns every item whose key starts with prefix, oldest write first
	List(ctx context.Context, prefix string) ([]Item, error)
	Count(ctx context.Context, prefix string) (int, error)
	DeletePrefix(ctx context.Context, prefix string) error
	Close() error
}
