// ABOUTME: Store-setup wizard state machine: register, connect, collect, analyze, report
// ABOUTME: A step advances only after its last remote call succeeds

package setup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/markalston/review-insight/internal/client"
	"github.com/markalston/review-insight/internal/models"
)

// Navigation targets returned in Result
const (
	DashboardPath = "/dashboard"
	BillingPath   = "/billing"
)

// Step is a wizard state
type Step int

const (
	StepIntro Step = iota
	StepChannelConnect
	StepCollecting
	StepAnalyzing
	StepDone
)

// stepCount is the number of states, Done included
const stepCount = int(StepDone) + 1

func (s Step) String() string {
	switch s {
	case StepIntro:
		return "intro"
	case StepChannelConnect:
		return "channel-connect"
	case StepCollecting:
		return "collecting"
	case StepAnalyzing:
		return "analyzing"
	case StepDone:
		return "done"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// Title is the heading shown for the step
func (s Step) Title() string {
	switch s {
	case StepIntro:
		return "Register your store"
	case StepChannelConnect:
		return "Connect review channels"
	case StepCollecting:
		return "Collect reviews"
	case StepAnalyzing:
		return "Analyze reviews"
	case StepDone:
		return "Generate your first report"
	default:
		return ""
	}
}

var (
	// ErrBusy is returned when an action starts while another is running
	ErrBusy = errors.New("a setup step is already running")
	// ErrWrongStep is returned when an action does not belong to the current step
	ErrWrongStep = errors.New("action not available in this step")
	// ErrFinished is returned after the report was generated
	ErrFinished = errors.New("setup already finished")
	// ErrSuperseded is returned by a step that resolved after Reset
	ErrSuperseded = errors.New("setup was reset while the step ran")
	// ErrNoChannels is returned when no channel URL is given
	ErrNoChannels = errors.New("connect at least one review channel")
)

// API is the subset of the backend the wizard calls
type API interface {
	ExtractStore(ctx context.Context, req *models.ExtractRequest) (*models.ExtractedStore, error)
	RegisterStore(ctx context.Context, req *models.RegisterStoreRequest) (*models.Store, error)
	UpdateStore(ctx context.Context, id string, req *models.UpdateStoreRequest) (*models.Store, error)
	Crawl(ctx context.Context, channel string, req *models.CrawlRequest) (*models.CrawlResult, error)
	CompleteOnboarding(ctx context.Context) error
	SummarizeMissing(ctx context.Context, req *models.BatchRequest) (*models.BatchResult, error)
	SummarizeBatch(ctx context.Context, req *models.BatchRequest) (*models.BatchResult, error)
	GenerateReport(ctx context.Context, req *models.ReportRequest) (*models.Report, error)
}

// Session is the subset of the session store the wizard uses
type Session interface {
	User() *models.User
	SetOnboarded(ctx context.Context, userID string) error
	Refresh(ctx context.Context) (*models.User, error)
}

// StoreRecorder remembers the store the user is working with
type StoreRecorder interface {
	SetLastStore(ctx context.Context, id string) error
}

// StoreInput identifies the business to register
type StoreInput struct {
	URL   string // place page URL
	Query string // name and area, when no URL is known
}

// Channels holds the review channel URLs to connect
type Channels struct {
	NaverURL  string
	GoogleURL string
}

// Result carries a navigation target for the caller to act on
type Result struct {
	Redirect string
	Report   *models.Report
}

// Progress describes where the wizard is
type Progress struct {
	Step    Step
	Index   int // zero-based
	Total   int
	Percent int
	Busy    bool
}

// Wizard drives one run of the setup flow. It is safe for concurrent use,
// but only one action runs at a time.
type Wizard struct {
	api      API
	sess     Session
	recorder StoreRecorder
	logger   *slog.Logger

	mu        sync.Mutex
	step      Step
	busy      bool
	finished  bool
	gen       uint64
	status    string
	store     *models.Store
	collected map[string]int
	analyzed  *models.BatchResult
}

// Option configures a Wizard
type Option func(*Wizard)

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(w *Wizard) { w.logger = l }
}

// WithStoreRecorder persists the registered store as the last selected one
func WithStoreRecorder(r StoreRecorder) Option {
	return func(w *Wizard) { w.recorder = r }
}

// New creates a wizard at StepIntro
func New(api API, sess Session, opts ...Option) *Wizard {
	w := &Wizard{
		api:       api,
		sess:      sess,
		logger:    slog.Default(),
		collected: make(map[string]int),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Resume creates a wizard that starts after registration for an existing store
func Resume(api API, sess Session, store *models.Store, opts ...Option) *Wizard {
	w := New(api, sess, opts...)
	if store != nil {
		s := *store
		w.store = &s
		w.step = StepChannelConnect
		if len(s.Channels()) > 0 {
			w.step = StepCollecting
		}
	}
	return w
}

// Step returns the current state
func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// Busy reports whether an action is running
func (w *Wizard) Busy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.busy
}

// Finished reports whether the report was generated
func (w *Wizard) Finished() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.finished
}

// Status returns the last status message
func (w *Wizard) Status() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Store returns the registered store, or nil
func (w *Wizard) Store() *models.Store {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.store == nil {
		return nil
	}
	s := *w.store
	return &s
}

// Collected returns the number of reviews collected per channel
func (w *Wizard) Collected() map[string]int {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]int, len(w.collected))
	for k, v := range w.collected {
		out[k] = v
	}
	return out
}

// Progress reports the step index and percentage
func (w *Wizard) Progress() Progress {
	w.mu.Lock()
	defer w.mu.Unlock()
	idx := int(w.step)
	pct := idx * 100 / (stepCount - 1)
	if w.finished {
		pct = 100
	}
	return Progress{Step: w.step, Index: idx, Total: stepCount, Percent: pct, Busy: w.busy}
}

// Reset returns to StepIntro. A step still running is ignored when it resolves.
func (w *Wizard) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.gen++
	w.step = StepIntro
	w.busy = false
	w.finished = false
	w.status = ""
	w.store = nil
	w.collected = make(map[string]int)
	w.analyzed = nil
}

// action runs the remote calls of one step and returns a commit func that
// applies its result under the lock
type action func(ctx context.Context, gen uint64) (commit func(), err error)

func (w *Wizard) run(ctx context.Context, want, next Step, name string, act action) (Result, error) {
	w.mu.Lock()
	switch {
	case w.finished:
		w.mu.Unlock()
		return Result{}, ErrFinished
	case w.busy:
		w.mu.Unlock()
		return Result{}, ErrBusy
	case w.step != want:
		w.mu.Unlock()
		return Result{}, fmt.Errorf("%w: %s during %s", ErrWrongStep, name, w.step)
	}
	w.busy = true
	w.status = ""
	gen := w.gen
	w.mu.Unlock()

	w.logger.Debug("Setup step started", "step", want, "action", name)
	commit, err := act(ctx, gen)

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.gen {
		w.logger.Debug("Setup step superseded", "step", want, "action", name)
		return Result{}, ErrSuperseded
	}
	w.busy = false

	if err != nil {
		w.status = statusFor(err)
		w.logger.Warn("Setup step failed", "step", want, "action", name, "error", err)
		res := Result{}
		if client.IsKind(err, client.KindInsufficientCredits) {
			res.Redirect = BillingPath
		}
		return res, err
	}

	if commit != nil {
		commit()
	}
	w.step = next
	w.logger.Info("Setup step completed", "step", want, "next", next)
	return Result{}, nil
}

func statusFor(err error) string {
	switch {
	case errors.Is(err, ErrNoChannels):
		return ErrNoChannels.Error()
	case errors.Is(err, context.Canceled):
		return client.KindCanceled.Message()
	}
	return client.UserMessage(err)
}

func (w *Wizard) currentStore() *models.Store {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.store
}
