// ABOUTME: Credit commands: balance, buy, resume, ad-reward and subscribe
// ABOUTME: Purchases poll the balance until the new credits show up

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/markalston/review-insight/internal/billing"
	"github.com/markalston/review-insight/internal/models"
)

var (
	buyCredits   int
	buyAmount    int
	buyPackage   string
	adID         string
	subscribeFor string
	subscribePln string
)

var creditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "Show your credit balance and subscription",
	Run:   withSignals(runCreditsShow),
}

var creditsBuyCmd = &cobra.Command{
	Use:   "buy",
	Short: "Buy credits and wait for the balance to update",
	Run:   withSignals(runCreditsBuy),
}

var creditsResumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Keep waiting for a purchase that was interrupted",
	Run:   withSignals(runCreditsResume),
}

var creditsAdCmd = &cobra.Command{
	Use:   "ad-reward",
	Short: "Claim credits for a watched ad",
	Run:   withSignals(runCreditsAd),
}

var creditsSubscribeCmd = &cobra.Command{
	Use:   "subscribe",
	Short: "Subscribe a store to a plan",
	Run:   withSignals(runCreditsSubscribe),
}

func init() {
	creditsBuyCmd.Flags().IntVar(&buyCredits, "credits", 0, "Number of credits to buy")
	creditsBuyCmd.Flags().IntVar(&buyAmount, "amount", 0, "Price paid, in KRW")
	creditsBuyCmd.Flags().StringVar(&buyPackage, "package", "", "Credit package id")
	creditsAdCmd.Flags().StringVar(&adID, "ad", "", "Ad id")
	creditsSubscribeCmd.Flags().StringVar(&subscribeFor, "store", "", "Store id (default: the selected store)")
	creditsSubscribeCmd.Flags().StringVar(&subscribePln, "plan", "basic", "Plan name")

	creditsCmd.AddCommand(creditsBuyCmd, creditsResumeCmd, creditsAdCmd, creditsSubscribeCmd)
	rootCmd.AddCommand(creditsCmd)
}

// progressFlow builds a billing flow that reports progress to w
func (a *app) progressFlow(w io.Writer) *billing.Flow {
	quiet := IsJSONOutput()
	return billing.New(a.api, a.sess, a.prefs,
		billing.WithPolling(a.cfg.PollInterval, a.cfg.PollTimeout),
		billing.WithLogger(a.logger),
		billing.WithProgress(func(p billing.Progress) {
			if !quiet {
				fmt.Fprintln(w, formatProgress(p))
			}
		}),
	)
}

func formatProgress(p billing.Progress) string {
	switch p.Phase {
	case billing.PhaseSubmitting:
		return fmt.Sprintf("Submitting purchase (%d -> %d credits)...", p.Credits, p.Target)
	case billing.PhaseConfirmed:
		return fmt.Sprintf("Confirmed: %d credits", p.Credits)
	default:
		return fmt.Sprintf("Waiting for payment (check %d, %d/%d credits)...", p.Attempt, p.Credits, p.Target)
	}
}

func runCreditsShow(ctx context.Context, w io.Writer, _ []string) int {
	return withApp(ctx, w, func(a *app) int {
		if !a.requireLogin(ctx, w) {
			return exitError
		}
		user, err := a.sess.Refresh(ctx)
		if err != nil {
			a.logger.Debug("Showing stored balance", "error", err)
			user = a.sess.User()
			if user == nil {
				fmt.Fprintln(w, "Session expired. Run `review-insight login` again.")
				return exitError
			}
		}
		pending, _ := a.billing.Pending(ctx)
		if IsJSONOutput() {
			printJSON(w, map[string]any{
				"credits":             user.Credits,
				"subscription_status": user.SubscriptionStatus,
				"purchase_pending":    pending,
			})
			return exitOK
		}
		fmt.Fprintf(w, "Credits:       %d\n", user.Credits)
		fmt.Fprintf(w, "Subscription:  %s\n", orNone(user.SubscriptionStatus))
		if pending {
			fmt.Fprintln(w, "A purchase is awaiting confirmation. Run `review-insight credits resume`.")
		}
		return exitOK
	})
}

func orNone(s string) string {
	if s == "" {
		return models.SubscriptionNone
	}
	return s
}

func runCreditsBuy(ctx context.Context, w io.Writer, _ []string) int {
	if buyCredits <= 0 {
		fmt.Fprintln(w, "Error: --credits must be positive")
		return exitError
	}
	return withApp(ctx, w, func(a *app) int {
		if !a.requireLogin(ctx, w) {
			return exitError
		}
		user, err := a.progressFlow(w).Purchase(ctx, &models.CreditPurchaseRequest{
			PackageID: buyPackage,
			Credits:   buyCredits,
			Amount:    buyAmount,
		})
		return reportPurchase(w, user, err)
	})
}

func runCreditsResume(ctx context.Context, w io.Writer, _ []string) int {
	return withApp(ctx, w, func(a *app) int {
		if !a.requireLogin(ctx, w) {
			return exitError
		}
		user, resumed, err := a.progressFlow(w).Resume(ctx)
		if !resumed && err == nil {
			fmt.Fprintln(w, "No purchase is waiting for confirmation.")
			return exitOK
		}
		return reportPurchase(w, user, err)
	})
}

// reportPurchase prints the outcome of a purchase poll
func reportPurchase(w io.Writer, user *models.User, err error) int {
	if errors.Is(err, billing.ErrNotConfirmed) {
		fmt.Fprintln(w, "Payment is not confirmed yet. Run `review-insight credits resume` later.")
		return exitFailure
	}
	if err != nil {
		return printError(w, err)
	}
	if IsJSONOutput() {
		printJSON(w, user)
		return exitOK
	}
	fmt.Fprintf(w, "Balance: %d credits\n", user.Credits)
	return exitOK
}

func runCreditsAd(ctx context.Context, w io.Writer, _ []string) int {
	return withApp(ctx, w, func(a *app) int {
		if !a.requireLogin(ctx, w) {
			return exitError
		}
		res, err := a.billing.AdReward(ctx, adID)
		if err != nil {
			return printError(w, err)
		}
		return printBillingResult(w, res)
	})
}

func runCreditsSubscribe(ctx context.Context, w io.Writer, _ []string) int {
	return withApp(ctx, w, func(a *app) int {
		if !a.requireLogin(ctx, w) {
			return exitError
		}
		id, err := a.storeID(ctx, subscribeFor)
		if err != nil {
			return printError(w, err)
		}
		res, err := a.billing.SubscribeStore(ctx, id, subscribePln)
		if err != nil {
			return printError(w, err)
		}
		return printBillingResult(w, res)
	})
}

func printBillingResult(w io.Writer, res *models.BillingResult) int {
	if IsJSONOutput() {
		printJSON(w, res)
		return exitOK
	}
	if res.Message != "" {
		fmt.Fprintln(w, res.Message)
	}
	fmt.Fprintf(w, "Balance: %d credits\n", res.Credits)
	if !res.Success {
		return exitFailure
	}
	return exitOK
}
