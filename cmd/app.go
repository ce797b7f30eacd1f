// ABOUTME: Wires config, logging, storage, session, client and cache for commands
// ABOUTME: Also holds the shared output, error and route-guard helpers

package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/markalston/review-insight/internal/billing"
	"github.com/markalston/review-insight/internal/cache"
	"github.com/markalston/review-insight/internal/client"
	"github.com/markalston/review-insight/internal/config"
	"github.com/markalston/review-insight/internal/feed"
	"github.com/markalston/review-insight/internal/guard"
	"github.com/markalston/review-insight/internal/logger"
	"github.com/markalston/review-insight/internal/prefs"
	"github.com/markalston/review-insight/internal/session"
	"github.com/markalston/review-insight/internal/storage"
)

const stateFile = "state.db"

// Paths used for route checks, shared with the TUI
const (
	pathDashboard = "/dashboard"
	pathSetup     = guard.DefaultSetupPath
)

// logOutput receives logs of non-interactive commands
var logOutput io.Writer = os.Stderr

// notices forwards client notifications to the TUI when one is running and
// to stderr otherwise
type notices struct {
	mu     sync.Mutex
	target client.Notifier
	w      io.Writer
}

func (n *notices) Notify(msg string) {
	n.mu.Lock()
	target := n.target
	n.mu.Unlock()
	if target != nil {
		target.Notify(msg)
		return
	}
	fmt.Fprintln(n.w, msg)
}

func (n *notices) route(target client.Notifier) {
	n.mu.Lock()
	n.target = target
	n.mu.Unlock()
}

// app is everything a command needs
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	kv      storage.Store
	sess    *session.Store
	api     *client.Client
	cache   *cache.Cache
	feed    *feed.Feed
	prefs   *prefs.Prefs
	billing *billing.Flow
	notices *notices
}

// openApp loads configuration, opens the state store and hydrates the session
func openApp(ctx context.Context, logOut io.Writer) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.Init(cfg.LogLevel, cfg.LogFormat, logOut)

	if cfg.StateDir == "" {
		return nil, errors.New("no state directory: set REVIEW_INSIGHT_STATE_DIR or --state-dir")
	}
	if err := os.MkdirAll(cfg.StateDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	kv, err := storage.Open(ctx, filepath.Join(cfg.StateDir, stateFile))
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  log,
		kv:      kv,
		notices: &notices{w: os.Stderr},
	}
	a.sess = session.New(kv, session.WithLogger(log))
	a.api = client.New(cfg.APIURL,
		client.WithTokenSource(a.sess),
		client.WithTimeout(cfg.RequestTimeout),
		client.WithNotifier(a.notices),
		client.WithLogger(log),
	)
	a.sess.SetFetcher(a.api)

	a.cache, err = cache.New(kv, cfg.CacheMaxEntries,
		cache.WithTTL(cfg.CacheTTL),
		cache.WithDedupeWindow(cfg.DedupeWindow),
		cache.WithMaxPersisted(cfg.CacheMaxStored),
		cache.WithLogger(log),
	)
	if err != nil {
		kv.Close()
		return nil, err
	}
	a.feed = feed.New(a.api, a.cache)
	a.prefs = prefs.New(kv)
	a.billing = billing.New(a.api, a.sess, a.prefs,
		billing.WithPolling(cfg.PollInterval, cfg.PollTimeout),
		billing.WithLogger(log),
	)

	if err := a.sess.Hydrate(ctx); err != nil {
		log.Warn("Failed to restore session", "error", err)
	}
	log.Debug("Client ready", "api_url", cfg.APIURL, "state_dir", cfg.StateDir)
	return a, nil
}

// Close releases the state store
func (a *app) Close() error {
	return a.kv.Close()
}

// withApp opens the app around fn and reports setup failures
func withApp(ctx context.Context, w io.Writer, fn func(a *app) int) int {
	a, err := openApp(ctx, logOutput)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return exitError
	}
	defer a.Close()
	return fn(a)
}

// requireRoute runs the route decision for a command standing in for the
// screen at path. It prints where to go instead and returns false when the
// command may not run.
func (a *app) requireRoute(ctx context.Context, w io.Writer, path string, cfg guard.Config) bool {
	d := guard.DecideRoute(guard.StateOf(ctx, a.sess), path, cfg)
	if !d.Checking {
		return true
	}
	switch d.Redirect {
	case guard.DefaultFallbackPath:
		fmt.Fprintln(w, "Not logged in. Run `review-insight login` first.")
	case guard.DefaultSetupPath:
		fmt.Fprintln(w, "Store setup is not finished. Run `review-insight setup` first.")
	default:
		fmt.Fprintln(w, "Session is not available.")
	}
	return false
}

// requireLogin is requireRoute for commands that only need a session
func (a *app) requireLogin(ctx context.Context, w io.Writer) bool {
	return a.requireRoute(ctx, w, "", guard.Config{})
}

// requireOnboarded is requireRoute for commands backed by dashboard data
func (a *app) requireOnboarded(ctx context.Context, w io.Writer) bool {
	return a.requireRoute(ctx, w, pathDashboard, guard.Config{RequireOnboarded: true})
}

// storeID returns flagValue or the remembered store
func (a *app) storeID(ctx context.Context, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	id, err := a.prefs.LastStore(ctx)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", errors.New("no store selected: pass --store or run `review-insight stores use <id>`")
	}
	return id, nil
}

// readThrough returns fetch's result. When the backend cannot be reached it
// falls back to the value stored under key by an earlier run.
func readThrough[T any](ctx context.Context, a *app, key string, fetch func(context.Context) (T, error)) (T, error) {
	v, err := fetch(ctx)
	if err == nil || !(client.IsKind(err, client.KindNetwork) || client.IsKind(err, client.KindTimeout)) {
		return v, err
	}
	if cached, ok := cache.Get[T](ctx, a.cache, key); ok {
		a.logger.Warn("Backend unreachable, using cached data", "key", key, "error", err)
		fmt.Fprintln(a.notices.w, "Backend unreachable; showing cached data.")
		return cached, nil
	}
	return v, err
}

// printError reports err and returns the exit code for it
func printError(w io.Writer, err error) int {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		fmt.Fprintf(w, "Error: %s\n", apiErr.Kind.Message())
		slog.Debug("Command failed", "kind", apiErr.Kind.String(), "request_id", apiErr.RequestID, "error", err)
		switch apiErr.Kind {
		case client.KindInsufficientCredits, client.KindQuotaExceeded, client.KindDailyLimit:
			return exitFailure
		}
		return exitError
	}
	fmt.Fprintf(w, "Error: %v\n", err)
	return exitError
}

// printJSON writes v as indented JSON
func printJSON(w io.Writer, v any) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(w, string(data))
}
