// ABOUTME: Auth request/response models for the review backend
// ABOUTME: Defines the user record and login/signup API contracts

package models

// LoginRequest represents credentials for authentication
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupRequest represents a new account registration
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone,omitempty"`
}

// AuthResponse is returned by login and signup. Token and User are issued together.
type AuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// Subscription states reported on the user record
const (
	SubscriptionNone     = "none"
	SubscriptionActive   = "active"
	SubscriptionCanceled = "canceled"
)

// User is the identity record held by the session
type User struct {
	ID                  string `json:"id"`
	Email               string `json:"email"`
	Name                string `json:"name"`
	Phone               string `json:"phone,omitempty"`
	BusinessType        string `json:"business_type,omitempty"`
	ProfileImage        string `json:"profile_image,omitempty"`
	OnboardingCompleted bool   `json:"onboarding_completed"`
	Credits             int    `json:"credits"`
	SubscriptionStatus  string `json:"subscription_status,omitempty"`
}

// DisplayName returns the name to show for the user, falling back to email
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// Subscribed reports whether the user has an active subscription
func (u *User) Subscribed() bool {
	return u != nil && u.SubscriptionStatus == SubscriptionActive
}
