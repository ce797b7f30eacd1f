// ABOUTME: Actions for each wizard step
// ABOUTME: Remote calls within a step run strictly in order

package setup

import (
	"context"
	"fmt"
	"strings"

	"github.com/markalston/review-insight/internal/models"
)

// RegisterStore resolves the store from a URL or query and registers it
func (w *Wizard) RegisterStore(ctx context.Context, in StoreInput) (Result, error) {
	in.URL = strings.TrimSpace(in.URL)
	in.Query = strings.TrimSpace(in.Query)

	return w.run(ctx, StepIntro, StepChannelConnect, "register-store", func(ctx context.Context, gen uint64) (func(), error) {
		if in.URL == "" && in.Query == "" {
			return nil, fmt.Errorf("store URL or name is required")
		}
		extracted, err := w.api.ExtractStore(ctx, &models.ExtractRequest{URL: in.URL, Query: in.Query})
		if err != nil {
			return nil, fmt.Errorf("extract store: %w", err)
		}
		store, err := w.api.RegisterStore(ctx, &models.RegisterStoreRequest{ExtractedStore: *extracted})
		if err != nil {
			return nil, fmt.Errorf("register store: %w", err)
		}
		if w.recorder != nil {
			if err := w.recorder.SetLastStore(ctx, store.ID); err != nil {
				w.logger.Warn("Failed to remember store", "store_id", store.ID, "error", err)
			}
		}
		return func() {
			w.store = store
			w.status = fmt.Sprintf("Registered %s", store.Name)
		}, nil
	})
}

// ConnectChannels saves the review channel URLs on the registered store
func (w *Wizard) ConnectChannels(ctx context.Context, ch Channels) (Result, error) {
	naver := strings.TrimSpace(ch.NaverURL)
	google := strings.TrimSpace(ch.GoogleURL)

	return w.run(ctx, StepChannelConnect, StepCollecting, "connect-channels", func(ctx context.Context, gen uint64) (func(), error) {
		if naver == "" && google == "" {
			return nil, ErrNoChannels
		}
		store := w.currentStore()
		req := &models.UpdateStoreRequest{}
		if naver != "" {
			req.NaverURL = &naver
		}
		if google != "" {
			req.GoogleURL = &google
		}
		updated, err := w.api.UpdateStore(ctx, store.ID, req)
		if err != nil {
			return nil, fmt.Errorf("update store: %w", err)
		}
		// older backends answer PUT with an empty body
		if updated == nil || updated.ID == "" {
			s := *store
			s.NaverURL, s.GoogleURL = naver, google
			updated = &s
		}
		return func() {
			w.store = updated
			w.status = fmt.Sprintf("Connected %s", strings.Join(updated.Channels(), " and "))
		}, nil
	})
}

// CollectReviews crawls each connected channel in turn, then marks onboarding
// complete locally and on the backend. A retry skips channels already collected.
func (w *Wizard) CollectReviews(ctx context.Context) (Result, error) {
	return w.run(ctx, StepCollecting, StepAnalyzing, "collect-reviews", func(ctx context.Context, gen uint64) (func(), error) {
		store := w.currentStore()
		channels := map[string]string{
			models.ChannelNaver:  store.NaverURL,
			models.ChannelGoogle: store.GoogleURL,
		}
		total := 0
		for _, channel := range []string{models.ChannelNaver, models.ChannelGoogle} {
			url := channels[channel]
			if url == "" {
				continue
			}
			if n, done := w.collectedFor(channel); done {
				total += n
				continue
			}
			res, err := w.api.Crawl(ctx, channel, &models.CrawlRequest{StoreID: store.ID, URL: url})
			if err != nil {
				return nil, fmt.Errorf("crawl %s: %w", channel, err)
			}
			w.recordCollected(gen, channel, res.Collected)
			total += res.Collected
		}

		userID := ""
		if u := w.sess.User(); u != nil {
			userID = u.ID
		}
		if err := w.api.CompleteOnboarding(ctx); err != nil {
			return nil, fmt.Errorf("complete onboarding: %w", err)
		}
		// the local flag follows the backend, never leads it
		if err := w.sess.SetOnboarded(ctx, userID); err != nil {
			return nil, err
		}
		w.refresh(ctx)

		return func() {
			w.status = fmt.Sprintf("Collected %d reviews", total)
		}, nil
	})
}

func (w *Wizard) collectedFor(channel string) (int, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n, ok := w.collected[channel]
	return n, ok
}

func (w *Wizard) recordCollected(gen uint64, channel string, n int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.gen == gen {
		w.collected[channel] = n
	}
}

// Analyze summarizes reviews that have none yet and runs the batch analysis
func (w *Wizard) Analyze(ctx context.Context) (Result, error) {
	return w.run(ctx, StepAnalyzing, StepDone, "analyze", func(ctx context.Context, gen uint64) (func(), error) {
		req := &models.BatchRequest{StoreID: w.currentStore().ID}
		if _, err := w.api.SummarizeMissing(ctx, req); err != nil {
			return nil, fmt.Errorf("summarize missing: %w", err)
		}
		batch, err := w.api.SummarizeBatch(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("summarize batch: %w", err)
		}
		w.refresh(ctx)
		return func() {
			w.analyzed = batch
			w.status = fmt.Sprintf("Analyzed %d reviews", batch.Processed)
		}, nil
	})
}

// GenerateReport requests the first insight report. On success the wizard is
// finished and the result points at the dashboard.
func (w *Wizard) GenerateReport(ctx context.Context) (Result, error) {
	var report *models.Report
	res, err := w.run(ctx, StepDone, StepDone, "generate-report", func(ctx context.Context, gen uint64) (func(), error) {
		r, err := w.api.GenerateReport(ctx, &models.ReportRequest{StoreID: w.currentStore().ID})
		if err != nil {
			return nil, fmt.Errorf("generate report: %w", err)
		}
		report = r
		return func() {
			w.finished = true
			w.status = "Report ready"
		}, nil
	})
	if err != nil {
		return res, err
	}
	return Result{Redirect: DashboardPath, Report: report}, nil
}

// refresh picks up new credit balances. Failure keeps the stale session and
// does not fail the step.
func (w *Wizard) refresh(ctx context.Context) {
	if _, err := w.sess.Refresh(ctx); err != nil {
		w.logger.Warn("Session refresh after setup step failed", "error", err)
	}
}
