// ABOUTME: Tests for the auth guard
// ABOUTME: Covers the pure decision table, the redirect latch and the allow-list

package guard

import (
	"context"
	"testing"

	"github.com/markalston/review-insight/internal/models"
	"github.com/markalston/review-insight/internal/session"
	"github.com/markalston/review-insight/internal/storage"
)

func TestDecideRoute(t *testing.T) {
	user := &models.User{ID: "u1"}

	tests := []struct {
		name         string
		state        SessionState
		path         string
		cfg          Config
		wantChecking bool
		wantRedirect string
		wantUser     bool
	}{
		{"not ready never redirects", SessionState{}, "/dashboard", Config{}, true, "", false},
		{"not ready with onboarding required", SessionState{}, "/dashboard", Config{RequireOnboarded: true}, true, "", false},
		{"logged out goes to default fallback", SessionState{Ready: true}, "/dashboard", Config{}, true, "/onboarding", false},
		{"logged out goes to custom fallback", SessionState{Ready: true}, "/dashboard", Config{FallbackPath: "/auth/login"}, true, "/auth/login", false},
		{"not onboarded goes to setup", SessionState{Ready: true, User: user}, "/dashboard", Config{RequireOnboarded: true}, true, "/setup", false},
		{"onboarding not required", SessionState{Ready: true, User: user}, "/dashboard", Config{}, false, "", true},
		{"onboarded passes", SessionState{Ready: true, User: user, Onboarded: true}, "/dashboard", Config{RequireOnboarded: true}, false, "", true},
		{"no redirect to current path", SessionState{Ready: true}, "/onboarding", Config{}, true, "", false},
		{"no redirect to setup from setup", SessionState{Ready: true, User: user}, "/setup", Config{RequireOnboarded: true}, true, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := DecideRoute(tt.state, tt.path, tt.cfg)
			if d.Checking != tt.wantChecking {
				t.Errorf("Checking = %v, want %v", d.Checking, tt.wantChecking)
			}
			if d.Redirect != tt.wantRedirect {
				t.Errorf("Redirect = %q, want %q", d.Redirect, tt.wantRedirect)
			}
			if (d.User != nil) != tt.wantUser {
				t.Errorf("User = %v, want present=%v", d.User, tt.wantUser)
			}
		})
	}
}

func newSession(t *testing.T) *session.Store {
	t.Helper()
	s := session.New(storage.NewMemory())
	if err := s.Hydrate(context.Background()); err != nil {
		t.Fatalf("Hydrate failed: %v", err)
	}
	return s
}

func TestGuard_RedirectsAtMostOncePerMount(t *testing.T) {
	ctx := context.Background()
	sess := newSession(t)

	var navigations []string
	g := New(sess, Config{}, func(path string) { navigations = append(navigations, path) })

	for i := 0; i < 10; i++ {
		d := g.Evaluate(ctx, "/dashboard")
		if !d.Checking {
			t.Fatalf("Evaluate #%d rendered protected content for a logged-out visitor", i)
		}
	}

	if len(navigations) != 1 || navigations[0] != "/onboarding" {
		t.Errorf("Expected exactly one redirect to /onboarding, got %v", navigations)
	}

	g.Remount()
	g.Evaluate(ctx, "/dashboard")
	if len(navigations) != 2 {
		t.Errorf("Expected a new redirect after Remount, got %v", navigations)
	}
}

func TestGuard_WaitsForHydration(t *testing.T) {
	ctx := context.Background()
	sess := session.New(storage.NewMemory())

	var navigations []string
	g := New(sess, Config{}, func(path string) { navigations = append(navigations, path) })

	if d := g.Evaluate(ctx, "/dashboard"); !d.Checking || d.Redirect != "" {
		t.Errorf("Expected checking without redirect before hydration, got %+v", d)
	}
	if len(navigations) != 0 {
		t.Errorf("Expected no navigation before hydration, got %v", navigations)
	}

	if err := sess.Hydrate(ctx); err != nil {
		t.Fatal(err)
	}
	if d := g.Evaluate(ctx, "/dashboard"); d.Redirect != "/onboarding" {
		t.Errorf("Expected redirect after hydration, got %+v", d)
	}
}

func TestGuard_OnboardingFlagUnlocksScreen(t *testing.T) {
	ctx := context.Background()
	sess := newSession(t)
	if err := sess.Login(ctx, "tok", &models.User{ID: "u1"}); err != nil {
		t.Fatal(err)
	}

	g := New(sess, Config{RequireOnboarded: true}, nil)
	if d := g.Evaluate(ctx, "/dashboard"); d.Redirect != "/setup" {
		t.Fatalf("Expected redirect to /setup, got %+v", d)
	}

	if err := sess.SetOnboarded(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	d := g.Evaluate(ctx, "/dashboard")
	if d.Checking || d.User == nil || d.User.ID != "u1" {
		t.Errorf("Expected render with user, got %+v", d)
	}
}

func TestAllowList_Public(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/onboarding", true},
		{"/onboarding/slides/2", true},
		{"/auth/login", true},
		{"/splash", true},
		{"/start", true},
		{"/author", false},
		{"/dashboard", false},
		{"/", false},
	}
	for _, tt := range tests {
		if got := DefaultAllowList.Public(tt.path); got != tt.want {
			t.Errorf("Public(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
