// ABOUTME: Auth guard deciding whether a screen may render for the current session
// ABOUTME: Pure route decision plus a per-mount latch that redirects at most once

package guard

import (
	"context"
	"log/slog"
	"sync"

	"github.com/markalston/review-insight/internal/models"
	"github.com/markalston/review-insight/internal/session"
)

// Entry paths
const (
	DefaultFallbackPath = "/onboarding"
	DefaultSetupPath    = "/setup"
)

// Config controls one guarded screen
type Config struct {
	RequireOnboarded bool
	FallbackPath     string // where logged-out visitors go; default /onboarding
	SetupPath        string // where non-onboarded users go; default /setup
}

func (c Config) withDefaults() Config {
	if c.FallbackPath == "" {
		c.FallbackPath = DefaultFallbackPath
	}
	if c.SetupPath == "" {
		c.SetupPath = DefaultSetupPath
	}
	return c
}

// SessionState is the input to DecideRoute
type SessionState struct {
	Ready     bool
	User      *models.User
	Onboarded bool
}

// Decision is the outcome of a route check. Protected content renders only
// when Checking is false.
type Decision struct {
	Checking bool
	Redirect string
	User     *models.User
}

// DecideRoute decides what a guarded screen at currentPath should do.
// It has no side effects.
func DecideRoute(state SessionState, currentPath string, cfg Config) Decision {
	cfg = cfg.withDefaults()

	if !state.Ready {
		return Decision{Checking: true}
	}

	var target string
	switch {
	case state.User == nil:
		target = cfg.FallbackPath
	case cfg.RequireOnboarded && !state.Onboarded:
		target = cfg.SetupPath
	default:
		return Decision{User: state.User}
	}

	if target == currentPath {
		target = ""
	}
	return Decision{Checking: true, Redirect: target}
}

// Source supplies session state to a Guard
type Source interface {
	Snapshot() session.Snapshot
	IsOnboarded(ctx context.Context, user *models.User) bool
}

// StateOf reads the guard input from src
func StateOf(ctx context.Context, src Source) SessionState {
	snap := src.Snapshot()
	st := SessionState{Ready: snap.Ready, User: snap.User}
	if snap.User != nil {
		st.Onboarded = src.IsOnboarded(ctx, snap.User)
	}
	return st
}

// Guard is one mount of a guarded screen. Evaluate may run any number of
// times; navigate is called at most once until Remount.
type Guard struct {
	src      Source
	cfg      Config
	navigate func(path string)
	logger   *slog.Logger

	mu    sync.Mutex
	fired bool
}

// New creates a Guard. navigate may be nil when the caller acts on the
// returned Decision itself.
func New(src Source, cfg Config, navigate func(path string)) *Guard {
	return &Guard{
		src:      src,
		cfg:      cfg.withDefaults(),
		navigate: navigate,
		logger:   slog.Default(),
	}
}

// Evaluate decides the route for currentPath. After the first redirect of
// this mount, later decisions keep Checking but carry no Redirect.
func (g *Guard) Evaluate(ctx context.Context, currentPath string) Decision {
	d := DecideRoute(StateOf(ctx, g.src), currentPath, g.cfg)
	if d.Redirect == "" {
		return d
	}

	g.mu.Lock()
	if g.fired {
		g.mu.Unlock()
		d.Redirect = ""
		return d
	}
	g.fired = true
	g.mu.Unlock()

	g.logger.Debug("Guard redirect", "from", currentPath, "to", d.Redirect)
	if g.navigate != nil {
		g.navigate(d.Redirect)
	}
	return d
}

// Remount resets the redirect latch for a new mount of the screen
func (g *Guard) Remount() {
	g.mu.Lock()
	g.fired = false
	g.mu.Unlock()
}

// Fired reports whether this mount already redirected
func (g *Guard) Fired() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fired
}
