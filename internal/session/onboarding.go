// ABOUTME: Per-user onboarding completion flag
// ABOUTME: Persisted independently of the session so logout does not clear it

package session

import (
	"context"
	"fmt"

	"github.com/markalston/review-insight/internal/models"
)

const (
	onboardingPrefix     = "onboarding:"
	onboardingDefaultKey = onboardingPrefix + "default"
)

func onboardingKey(userID string) string {
	if userID == "" {
		return onboardingDefaultKey
	}
	return onboardingPrefix + userID
}

// SetOnboarded marks onboarding complete for userID, or the generic key when empty
func (s *Store) SetOnboarded(ctx context.Context, userID string) error {
	if err := s.kv.Set(ctx, onboardingKey(userID), []byte("true")); err != nil {
		return fmt.Errorf("failed to set onboarding flag: %w", err)
	}
	s.logger.Debug("Onboarding flag set", "user_id", userID)
	s.notify()
	return nil
}

// IsOnboarded reports whether the user finished onboarding. The per-user key,
// the generic key and the user record's own flag each count.
func (s *Store) IsOnboarded(ctx context.Context, user *models.User) bool {
	if user != nil && user.OnboardingCompleted {
		return true
	}
	keys := []string{onboardingDefaultKey}
	if user != nil && user.ID != "" {
		keys = append([]string{onboardingKey(user.ID)}, keys...)
	}
	for _, key := range keys {
		v, err := s.kv.Get(ctx, key)
		if err != nil {
			s.logger.Debug("Failed to read onboarding flag", "key", key, "error", err)
			continue
		}
		if string(v) == "true" {
			return true
		}
	}
	return false
}

// ClearOnboarding removes the flag for userID and the generic key
func (s *Store) ClearOnboarding(ctx context.Context, userID string) error {
	if userID != "" {
		if err := s.kv.Delete(ctx, onboardingKey(userID)); err != nil {
			return fmt.Errorf("failed to clear onboarding flag: %w", err)
		}
	}
	if err := s.kv.Delete(ctx, onboardingDefaultKey); err != nil {
		return fmt.Errorf("failed to clear onboarding flag: %w", err)
	}
	return nil
}
