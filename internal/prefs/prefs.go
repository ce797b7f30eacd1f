// ABOUTME: Device-local preferences: notification toggles, last store, one-shot flags
// ABOUTME: Plain values in the state store with no schema versioning

package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/markalston/review-insight/internal/storage"
)

const (
	lastStoreKey     = "prefs.last_store"
	notificationsKey = "prefs.notifications"
	flagPrefix       = "flag:"
)

// Notifications holds the notification toggles shown in settings
type Notifications struct {
	NewReview      bool `json:"new_review"`
	NegativeReview bool `json:"negative_review"`
	WeeklyReport   bool `json:"weekly_report"`
	Marketing      bool `json:"marketing"`
}

// DefaultNotifications is used until the user changes anything
var DefaultNotifications = Notifications{NewReview: true, NegativeReview: true, WeeklyReport: true}

// Prefs reads and writes preferences
type Prefs struct {
	kv storage.Store
}

// New creates Prefs over kv
func New(kv storage.Store) *Prefs {
	return &Prefs{kv: kv}
}

// LastStore returns the last selected store id, or ""
func (p *Prefs) LastStore(ctx context.Context) (string, error) {
	v, err := p.kv.Get(ctx, lastStoreKey)
	if err != nil {
		return "", fmt.Errorf("failed to read last store: %w", err)
	}
	return string(v), nil
}

// SetLastStore remembers id as the selected store. An empty id forgets it.
func (p *Prefs) SetLastStore(ctx context.Context, id string) error {
	var err error
	if id == "" {
		err = p.kv.Delete(ctx, lastStoreKey)
	} else {
		err = p.kv.Set(ctx, lastStoreKey, []byte(id))
	}
	if err != nil {
		return fmt.Errorf("failed to save last store: %w", err)
	}
	return nil
}

// Notifications returns the stored toggles. Unreadable data yields the defaults.
func (p *Prefs) Notifications(ctx context.Context) (Notifications, error) {
	raw, err := p.kv.Get(ctx, notificationsKey)
	if err != nil {
		return DefaultNotifications, fmt.Errorf("failed to read notification prefs: %w", err)
	}
	if raw == nil {
		return DefaultNotifications, nil
	}
	var n Notifications
	if err := json.Unmarshal(raw, &n); err != nil {
		slog.Debug("Ignoring corrupt notification prefs", "error", err)
		return DefaultNotifications, nil
	}
	return n, nil
}

// SetNotifications stores the toggles
func (p *Prefs) SetNotifications(ctx context.Context, n Notifications) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	if err := p.kv.Set(ctx, notificationsKey, data); err != nil {
		return fmt.Errorf("failed to save notification prefs: %w", err)
	}
	return nil
}

// SetFlag raises a one-shot flag with an optional payload
func (p *Prefs) SetFlag(ctx context.Context, name string, payload []byte) error {
	if payload == nil {
		payload = []byte("1")
	}
	if err := p.kv.Set(ctx, flagPrefix+name, payload); err != nil {
		return fmt.Errorf("failed to set flag %s: %w", name, err)
	}
	return nil
}

// PeekFlag returns the flag payload without clearing it; nil when unset
func (p *Prefs) PeekFlag(ctx context.Context, name string) ([]byte, error) {
	v, err := p.kv.Get(ctx, flagPrefix+name)
	if err != nil {
		return nil, fmt.Errorf("failed to read flag %s: %w", name, err)
	}
	return v, nil
}

// ConsumeFlag returns the flag payload and clears it; nil when unset
func (p *Prefs) ConsumeFlag(ctx context.Context, name string) ([]byte, error) {
	v, err := p.PeekFlag(ctx, name)
	if err != nil || v == nil {
		return v, err
	}
	if err := p.ClearFlag(ctx, name); err != nil {
		return nil, err
	}
	return v, nil
}

// ClearFlag lowers a flag
func (p *Prefs) ClearFlag(ctx context.Context, name string) error {
	if err := p.kv.Delete(ctx, flagPrefix+name); err != nil {
		return fmt.Errorf("failed to clear flag %s: %w", name, err)
	}
	return nil
}
