// ABOUTME: Session store: the single authority for device login state
// ABOUTME: Keeps token and user together in memory and in persisted storage

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/markalston/review-insight/internal/models"
	"github.com/markalston/review-insight/internal/storage"
)

// Persisted keys
const (
	tokenKey = "auth.token"
	userKey  = "auth.user"
)

var (
	// ErrRefreshFailed wraps the cause of a refresh that left the session stale
	ErrRefreshFailed = errors.New("session refresh failed")
	// ErrNotLoggedIn is returned by Refresh when there is no session to refresh
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrInvalidSession is returned by Login when token or user is missing
	ErrInvalidSession = errors.New("token and user are required together")
)

// State is the coarse session state seen by guards
type State int

const (
	// StateUnknown means the store has not hydrated yet. Guards must not redirect.
	StateUnknown State = iota
	StateLoggedOut
	StateLoggedIn
)

func (s State) String() string {
	switch s {
	case StateLoggedOut:
		return "logged-out"
	case StateLoggedIn:
		return "logged-in"
	default:
		return "unknown"
	}
}

// RefreshPolicy decides what a failed refresh does to the session
type RefreshPolicy int

const (
	// KeepStale leaves the session untouched and reports ErrRefreshFailed
	KeepStale RefreshPolicy = iota
	// LogoutOnFailure clears the session on any refresh error
	LogoutOnFailure
)

// UserFetcher loads the current user record with the session's token
type UserFetcher interface {
	Me(ctx context.Context) (*models.User, error)
}

// Snapshot is an immutable view of the session
type Snapshot struct {
	Ready bool
	Token string
	User  *models.User
}

// State derives the coarse state from the snapshot
func (s Snapshot) State() State {
	if !s.Ready {
		return StateUnknown
	}
	if s.User == nil {
		return StateLoggedOut
	}
	return StateLoggedIn
}

// Store holds the authenticated user and bearer token.
// Token and user are always set and cleared together.
type Store struct {
	kv     storage.Store
	logger *slog.Logger
	policy RefreshPolicy

	mu      sync.RWMutex
	ready   bool
	token   string
	user    *models.User
	gen     uint64
	fetcher UserFetcher

	subMu   sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int
}

// Option configures a Store
type Option func(*Store)

// WithPolicy sets the refresh failure policy. Default is KeepStale.
func WithPolicy(p RefreshPolicy) Option {
	return func(s *Store) { s.policy = p }
}

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithFetcher sets the user fetcher used by Refresh
func WithFetcher(f UserFetcher) Option {
	return func(s *Store) { s.fetcher = f }
}

// New creates a session store over kv. Call Hydrate before reading state.
func New(kv storage.Store, opts ...Option) *Store {
	s := &Store{
		kv:     kv,
		logger: slog.Default(),
		subs:   make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetFetcher sets the user fetcher after construction. The HTTP client needs
// the store as its token source, so one side of that pair is wired late.
func (s *Store) SetFetcher(f UserFetcher) {
	s.mu.Lock()
	s.fetcher = f
	s.mu.Unlock()
}

// Hydrate loads the persisted session and marks the store ready.
// Corrupt or half-present data hydrates as logged out and is discarded.
// A storage read error also leaves the store ready and logged out.
func (s *Store) Hydrate(ctx context.Context) error {
	token, user, err := s.load(ctx)

	s.mu.Lock()
	s.ready = true
	s.token, s.user = token, user
	s.gen++
	s.mu.Unlock()

	s.notify()
	return err
}

func (s *Store) load(ctx context.Context) (string, *models.User, error) {
	rawToken, err := s.kv.Get(ctx, tokenKey)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read session token: %w", err)
	}
	rawUser, err := s.kv.Get(ctx, userKey)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read session user: %w", err)
	}
	if rawToken == nil && rawUser == nil {
		return "", nil, nil
	}

	var user *models.User
	if rawUser != nil {
		if err := json.Unmarshal(rawUser, &user); err != nil {
			s.logger.Debug("Discarding corrupt persisted user", "error", err)
			user = nil
		}
	}
	token := string(rawToken)
	if token == "" || user == nil || user.ID == "" {
		s.logger.Debug("Discarding incomplete persisted session")
		s.discard(ctx)
		return "", nil, nil
	}
	return token, user, nil
}

func (s *Store) discard(ctx context.Context) {
	if err := s.kv.Delete(ctx, tokenKey); err != nil {
		s.logger.Debug("Failed to delete persisted token", "error", err)
	}
	if err := s.kv.Delete(ctx, userKey); err != nil {
		s.logger.Debug("Failed to delete persisted user", "error", err)
	}
}

// Ready reports whether Hydrate has completed
func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Snapshot returns the current session state
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{Ready: s.ready, Token: s.token}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}

// Token returns the bearer token, or "" when logged out
func (s *Store) Token(ctx context.Context) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns a copy of the current user, or nil
func (s *Store) User() *models.User {
	return s.Snapshot().User
}

// Login stores token and user together. In-memory state is set even when
// persisting fails; the storage error is returned.
func (s *Store) Login(ctx context.Context, token string, user *models.User) error {
	if token == "" || user == nil {
		return ErrInvalidSession
	}
	u := *user

	s.mu.Lock()
	s.ready = true
	s.token, s.user = token, &u
	s.gen++
	s.mu.Unlock()

	err := s.persist(ctx, token, &u)
	s.notify()
	if err != nil {
		return err
	}
	s.logger.Info("Logged in", "user_id", u.ID)
	return nil
}

func (s *Store) persist(ctx context.Context, token string, user *models.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode session user: %w", err)
	}
	if err := s.kv.Set(ctx, userKey, data); err != nil {
		return fmt.Errorf("failed to persist session user: %w", err)
	}
	if err := s.kv.Set(ctx, tokenKey, []byte(token)); err != nil {
		return fmt.Errorf("failed to persist session token: %w", err)
	}
	return nil
}

// Logout clears token and user. It does not navigate.
func (s *Store) Logout(ctx context.Context) error {
	return s.clear(ctx, "Logged out")
}

// Invalidate clears the session after the backend rejected its credentials
func (s *Store) Invalidate(ctx context.Context) error {
	return s.clear(ctx, "Session invalidated")
}

func (s *Store) clear(ctx context.Context, msg string) error {
	s.mu.Lock()
	s.ready = true
	s.token, s.user = "", nil
	s.gen++
	s.mu.Unlock()

	var errs []error
	if err := s.kv.Delete(ctx, tokenKey); err != nil {
		errs = append(errs, fmt.Errorf("failed to delete session token: %w", err))
	}
	if err := s.kv.Delete(ctx, userKey); err != nil {
		errs = append(errs, fmt.Errorf("failed to delete session user: %w", err))
	}
	s.notify()
	s.logger.Info(msg)
	return errors.Join(errs...)
}

// Refresh re-fetches the user with the existing token and replaces it.
// A result that arrives after the session changed (login, logout) is dropped.
func (s *Store) Refresh(ctx context.Context) (*models.User, error) {
	s.mu.RLock()
	fetcher, gen, loggedIn := s.fetcher, s.gen, s.user != nil
	s.mu.RUnlock()

	if !loggedIn {
		return nil, ErrNotLoggedIn
	}
	if fetcher == nil {
		return nil, fmt.Errorf("%w: no user fetcher configured", ErrRefreshFailed)
	}

	user, err := fetcher.Me(ctx)
	if err == nil && user == nil {
		err = errors.New("empty user record")
	}
	if err != nil {
		s.logger.Warn("Session refresh failed", "error", err)
		if s.policy == LogoutOnFailure {
			if clearErr := s.clearIfGen(ctx, gen); clearErr != nil {
				s.logger.Debug("Failed to clear session after refresh failure", "error", clearErr)
			}
		}
		return nil, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	u := *user
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		s.logger.Debug("Dropping refresh result, session cleared meanwhile")
		return nil, ErrNotLoggedIn
	}
	if s.gen != gen {
		s.mu.Unlock()
		s.logger.Debug("Dropping superseded refresh result")
		return s.User(), nil
	}
	s.user = &u
	token := s.token
	s.mu.Unlock()

	if err := s.persist(ctx, token, &u); err != nil {
		s.logger.Warn("Failed to persist refreshed user", "error", err)
	}
	s.notify()
	return s.User(), nil
}

func (s *Store) clearIfGen(ctx context.Context, gen uint64) error {
	s.mu.RLock()
	current := s.gen
	s.mu.RUnlock()
	if current != gen {
		return nil
	}
	return s.clear(ctx, "Session cleared after refresh failure")
}

// Subscribe registers fn for every session change and returns an unsubscribe func
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify() {
	snap := s.Snapshot()

	s.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
