// ABOUTME: Credit purchase flow: submit, then poll the profile until credits land
// ABOUTME: A persisted pending flag lets an interrupted purchase resume on next start

package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/markalston/review-insight/internal/client"
	"github.com/markalston/review-insight/internal/models"
	"github.com/markalston/review-insight/internal/session"
)

const pendingFlag = "purchase.pending"

// Defaults for balance polling
const (
	DefaultPollInterval = 2 * time.Second
	DefaultPollTimeout  = 60 * time.Second
)

// ErrNotConfirmed is returned when the balance did not reach the expected
// value before the poll timeout. The pending flag stays set for Resume.
var ErrNotConfirmed = errors.New("payment not confirmed yet")

// API is the subset of the backend the flow calls
type API interface {
	PurchaseCredits(ctx context.Context, req *models.CreditPurchaseRequest) (*models.BillingResult, error)
	AdReward(ctx context.Context, req *models.AdRewardRequest) (*models.BillingResult, error)
	SubscribeStore(ctx context.Context, req *models.SubscribeStoreRequest) (*models.BillingResult, error)
}

// Session is the subset of the session store the flow uses
type Session interface {
	User() *models.User
	Refresh(ctx context.Context) (*models.User, error)
}

// Flags persists one-shot flags
type Flags interface {
	SetFlag(ctx context.Context, name string, payload []byte) error
	PeekFlag(ctx context.Context, name string) ([]byte, error)
	ClearFlag(ctx context.Context, name string) error
}

// Phase is where a purchase is
type Phase int

const (
	PhaseSubmitting Phase = iota
	PhaseConfirming
	PhaseConfirmed
)

func (p Phase) String() string {
	switch p {
	case PhaseSubmitting:
		return "submitting"
	case PhaseConfirming:
		return "confirming"
	case PhaseConfirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// Progress is reported while a purchase runs
type Progress struct {
	Phase   Phase
	Credits int
	Target  int
	Attempt int
}

type pending struct {
	UserID  string `json:"user_id"`
	Target  int    `json:"target"`
	OrderID string `json:"order_id,omitempty"`
}

// Flow runs billing actions
type Flow struct {
	api        API
	sess       Session
	flags      Flags
	interval   time.Duration
	timeout    time.Duration
	onProgress func(Progress)
	logger     *slog.Logger
}

// Option configures a Flow
type Option func(*Flow)

// WithPolling sets the poll interval and overall timeout
func WithPolling(interval, timeout time.Duration) Option {
	return func(f *Flow) {
		f.interval = interval
		f.timeout = timeout
	}
}

// WithProgress registers a progress callback
func WithProgress(fn func(Progress)) Option {
	return func(f *Flow) { f.onProgress = fn }
}

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(f *Flow) { f.logger = l }
}

// New creates a billing flow
func New(api API, sess Session, flags Flags, opts ...Option) *Flow {
	f := &Flow{
		api:      api,
		sess:     sess,
		flags:    flags,
		interval: DefaultPollInterval,
		timeout:  DefaultPollTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.interval <= 0 {
		f.interval = DefaultPollInterval
	}
	if f.timeout <= 0 {
		f.timeout = DefaultPollTimeout
	}
	return f
}

func (f *Flow) report(p Progress) {
	if f.onProgress != nil {
		f.onProgress(p)
	}
}

// Purchase buys credits and waits until the balance reflects them
func (f *Flow) Purchase(ctx context.Context, req *models.CreditPurchaseRequest) (*models.User, error) {
	user := f.sess.User()
	if user == nil {
		return nil, fmt.Errorf("purchase requires a logged-in user")
	}
	if req.Credits <= 0 {
		return nil, fmt.Errorf("credits must be positive, got %d", req.Credits)
	}
	p := pending{UserID: user.ID, Target: user.Credits + req.Credits}

	f.report(Progress{Phase: PhaseSubmitting, Credits: user.Credits, Target: p.Target})
	if err := f.savePending(ctx, p); err != nil {
		return nil, err
	}

	res, err := f.api.PurchaseCredits(ctx, req)
	if err != nil {
		f.clearPending(ctx)
		return nil, fmt.Errorf("purchase credits: %w", err)
	}
	if res != nil && res.OrderID != "" {
		p.OrderID = res.OrderID
		if err := f.savePending(ctx, p); err != nil {
			f.logger.Warn("Failed to record order id", "order_id", p.OrderID, "error", err)
		}
	}
	f.logger.Info("Credit purchase submitted", "credits", req.Credits, "order_id", p.OrderID)

	return f.poll(ctx, p)
}

// Resume continues polling for a purchase interrupted earlier. It returns
// false when no purchase was pending. A purchase made by another user is
// discarded; with nobody logged in the flag waits for the next login.
func (f *Flow) Resume(ctx context.Context) (*models.User, bool, error) {
	user := f.sess.User()
	if user == nil {
		return nil, false, nil
	}
	raw, err := f.flags.PeekFlag(ctx, pendingFlag)
	if err != nil {
		return nil, false, err
	}
	if raw == nil {
		return nil, false, nil
	}
	var p pending
	if err := json.Unmarshal(raw, &p); err != nil || p.Target <= 0 {
		f.logger.Debug("Discarding corrupt pending purchase", "error", err)
		f.clearPending(ctx)
		return nil, false, nil
	}
	if p.UserID != "" && p.UserID != user.ID {
		f.logger.Info("Discarding pending purchase of another user", "order_id", p.OrderID)
		f.clearPending(ctx)
		return nil, false, nil
	}
	f.logger.Info("Resuming pending purchase", "target", p.Target, "order_id", p.OrderID)
	u, err := f.poll(ctx, p)
	return u, true, err
}

// Pending reports whether a purchase awaits confirmation
func (f *Flow) Pending(ctx context.Context) (bool, error) {
	raw, err := f.flags.PeekFlag(ctx, pendingFlag)
	return raw != nil, err
}

func (f *Flow) poll(ctx context.Context, p pending) (*models.User, error) {
	deadline := time.NewTimer(f.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		u, err := f.sess.Refresh(ctx)
		switch {
		case err == nil && u != nil:
			f.report(Progress{Phase: PhaseConfirming, Credits: u.Credits, Target: p.Target, Attempt: attempt})
			if u.Credits >= p.Target {
				f.clearPending(ctx)
				f.report(Progress{Phase: PhaseConfirmed, Credits: u.Credits, Target: p.Target, Attempt: attempt})
				f.logger.Info("Credit purchase confirmed", "credits", u.Credits)
				return u, nil
			}
		case client.IsKind(err, client.KindUnauthorized), errors.Is(err, session.ErrNotLoggedIn):
			// keep the flag so the purchase resumes after the next login
			return nil, err
		default:
			f.logger.Debug("Balance poll failed", "attempt", attempt, "error", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return f.sess.User(), ErrNotConfirmed
		case <-ticker.C:
		}
	}
}

func (f *Flow) savePending(ctx context.Context, p pending) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return f.flags.SetFlag(ctx, pendingFlag, data)
}

func (f *Flow) clearPending(ctx context.Context) {
	if err := f.flags.ClearFlag(ctx, pendingFlag); err != nil {
		f.logger.Warn("Failed to clear pending purchase", "error", err)
	}
}

// AdReward claims the reward for a watched ad and refreshes the balance
func (f *Flow) AdReward(ctx context.Context, adID string) (*models.BillingResult, error) {
	res, err := f.api.AdReward(ctx, &models.AdRewardRequest{AdID: adID})
	if err != nil {
		return nil, fmt.Errorf("ad reward: %w", err)
	}
	f.refresh(ctx)
	return res, nil
}

// SubscribeStore subscribes a store to a plan and refreshes the session
func (f *Flow) SubscribeStore(ctx context.Context, storeID, plan string) (*models.BillingResult, error) {
	res, err := f.api.SubscribeStore(ctx, &models.SubscribeStoreRequest{StoreID: storeID, Plan: plan})
	if err != nil {
		return nil, fmt.Errorf("subscribe store: %w", err)
	}
	f.refresh(ctx)
	return res, nil
}

func (f *Flow) refresh(ctx context.Context) {
	if _, err := f.sess.Refresh(ctx); err != nil {
		f.logger.Warn("Session refresh after billing call failed", "error", err)
	}
}
