// ABOUTME: Setup command running the store-setup wizard
// ABOUTME: Runs unattended when the store is given by flags, otherwise opens the TUI

package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/markalston/review-insight/internal/guard"
	"github.com/markalston/review-insight/internal/models"
	"github.com/markalston/review-insight/internal/setup"
)

var (
	setupURL    string
	setupQuery  string
	setupStore  string
	setupNaver  string
	setupGoogle string
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Register your store and collect its first reviews",
	Long: `Walk through store setup: register the store, connect its Naver and Google
review pages, collect and analyze reviews, and generate the first report.

Without flags the interactive wizard opens. With --url, --query or --store the
steps run in order here and stop at the first failure.`,
	Run: func(cmd *cobra.Command, args []string) {
		if setupURL == "" && setupQuery == "" && setupStore == "" {
			runTUIFrom(pathSetup)
			return
		}
		withSignals(runSetup)(cmd, args)
	},
}

var setupResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget on this device that setup was finished",
	Run:   withSignals(runSetupReset),
}

func init() {
	setupCmd.AddCommand(setupResetCmd)
	setupCmd.Flags().StringVar(&setupURL, "url", "", "Place page URL of the store")
	setupCmd.Flags().StringVar(&setupQuery, "query", "", "Store name and area")
	setupCmd.Flags().StringVar(&setupStore, "store", "", "Continue with an already registered store id")
	setupCmd.Flags().StringVar(&setupNaver, "naver", "", "Naver review page URL")
	setupCmd.Flags().StringVar(&setupGoogle, "google", "", "Google review page URL")
	rootCmd.AddCommand(setupCmd)
}

func runSetup(ctx context.Context, w io.Writer, _ []string) int {
	return withApp(ctx, w, func(a *app) int {
		if !a.requireRoute(ctx, w, pathSetup, guard.Config{}) {
			return exitError
		}

		wiz, err := a.newWizard(ctx)
		if err != nil {
			return printError(w, err)
		}
		channels := setup.Channels{NaverURL: setupNaver, GoogleURL: setupGoogle}
		if s := wiz.Store(); s != nil && channels.NaverURL == "" && channels.GoogleURL == "" {
			channels = setup.Channels{NaverURL: s.NaverURL, GoogleURL: s.GoogleURL}
		}

		steps := []func(context.Context) (setup.Result, error){
			func(ctx context.Context) (setup.Result, error) {
				return wiz.RegisterStore(ctx, setup.StoreInput{URL: setupURL, Query: setupQuery})
			},
			func(ctx context.Context) (setup.Result, error) { return wiz.ConnectChannels(ctx, channels) },
			wiz.CollectReviews,
			wiz.Analyze,
			wiz.GenerateReport,
		}

		var res setup.Result
		for i := int(wiz.Step()); i < len(steps); i++ {
			if !IsJSONOutput() {
				fmt.Fprintf(w, "[%d/%d] %s...\n", i+1, len(steps), setup.Step(i).Title())
			}
			res, err = steps[i](ctx)
			if err != nil {
				return setupFailed(w, wiz, res, err)
			}
		}

		for _, invalidate := range []func(context.Context) error{a.feed.StoresChanged, a.feed.ReviewsChanged, a.feed.ReportsChanged} {
			if err := invalidate(ctx); err != nil {
				a.logger.Warn("Failed to invalidate cache after setup", "error", err)
			}
		}

		if IsJSONOutput() {
			printJSON(w, map[string]any{"store": wiz.Store(), "collected": wiz.Collected(), "report": res.Report})
			return exitOK
		}
		fmt.Fprintln(w, formatSetupHuman(wiz.Store(), wiz.Collected(), res.Report))
		return exitOK
	})
}

func runSetupReset(ctx context.Context, w io.Writer, _ []string) int {
	return withApp(ctx, w, func(a *app) int {
		if !a.requireLogin(ctx, w) {
			return exitError
		}
		user := a.sess.User()
		if err := a.sess.ClearOnboarding(ctx, user.ID); err != nil {
			return printError(w, err)
		}
		if a.sess.IsOnboarded(ctx, user) {
			fmt.Fprintln(w, "Your account says setup is finished; the dashboard stays available.")
			return exitOK
		}
		fmt.Fprintln(w, "Setup will run again on next start.")
		return exitOK
	})
}

// newWizard starts fresh, or after registration when --store names a store
func (a *app) newWizard(ctx context.Context) (*setup.Wizard, error) {
	opts := []setup.Option{setup.WithLogger(a.logger), setup.WithStoreRecorder(a.prefs)}
	if setupStore == "" {
		return setup.New(a.api, a.sess, opts...), nil
	}
	stores, err := a.feed.Stores(ctx)
	if err != nil {
		return nil, err
	}
	for i := range stores {
		if stores[i].ID == setupStore {
			return setup.Resume(a.api, a.sess, &stores[i], opts...), nil
		}
	}
	return nil, fmt.Errorf("no store with id %s", setupStore)
}

func setupFailed(w io.Writer, wiz *setup.Wizard, res setup.Result, err error) int {
	if res.Redirect == setup.BillingPath {
		fmt.Fprintln(w, "Not enough credits to continue. Run `review-insight credits buy`, then `review-insight setup --store <id>`.")
	}
	if s := wiz.Store(); s != nil {
		fmt.Fprintf(w, "Continue later with `review-insight setup --store %s`.\n", s.ID)
	}
	return printError(w, err)
}

// formatSetupHuman summarizes a finished setup
func formatSetupHuman(store *models.Store, collected map[string]int, report *models.Report) string {
	var sb strings.Builder
	if store != nil {
		fmt.Fprintf(&sb, "Store:      %s (%s)\n", store.Name, store.ID)
	}
	for _, ch := range []string{models.ChannelNaver, models.ChannelGoogle} {
		if n, ok := collected[ch]; ok {
			fmt.Fprintf(&sb, "Collected:  %d from %s\n", n, ch)
		}
	}
	sb.WriteString("Setup complete.")
	if report != nil && report.Content != "" {
		sb.WriteString("\n\n")
		sb.WriteString(strings.TrimSpace(report.Content))
	}
	return sb.String()
}
