// ABOUTME: Auth endpoints: login, signup, profile and onboarding completion
// ABOUTME: Me backs session refresh

package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/markalston/review-insight/internal/models"
)

// Login calls POST /auth/login
func (c *Client) Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResponse, error) {
	return c.authenticate(ctx, "/auth/login", req)
}

// Signup calls POST /auth/signup
func (c *Client) Signup(ctx context.Context, req *models.SignupRequest) (*models.AuthResponse, error) {
	return c.authenticate(ctx, "/auth/signup", req)
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	if err := c.post(ctx, path, body, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" || resp.User == nil {
		return nil, fmt.Errorf("invalid response from backend: missing token or user")
	}
	return &resp, nil
}

// Me calls POST /auth/profile with an empty body and returns the current user.
// The backend may answer with the bare user or wrapped as {"user": ...}.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var raw json.RawMessage
	if err := c.post(ctx, "/auth/profile", nil, &raw); err != nil {
		return nil, err
	}
	return decodeUser(raw)
}

// CompleteOnboarding calls POST /auth/complete-onboarding
func (c *Client) CompleteOnboarding(ctx context.Context) error {
	return c.post(ctx, "/auth/complete-onboarding", nil, nil)
}

func decodeUser(raw json.RawMessage) (*models.User, error) {
	var wrapped struct {
		User *models.User `json:"user"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.User != nil {
		return wrapped.User, nil
	}
	var user models.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("invalid response from backend: %w", err)
	}
	if user.ID == "" {
		return nil, fmt.Errorf("invalid response from backend: user record has no id")
	}
	return &user, nil
}
