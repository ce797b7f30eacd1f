// ABOUTME: Notification preference command
// ABOUTME: Shows the stored toggles, or changes the ones passed as flags

package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/markalston/review-insight/internal/prefs"
)

var notifyFlags prefs.Notifications

var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Show or change notification preferences",
	Long: `Show notification preferences. Pass any of the flags to change them, e.g.
  review-insight notifications --marketing=false --weekly-report`,
	Run: func(cmd *cobra.Command, args []string) {
		changed := map[string]bool{}
		for _, name := range []string{"new-review", "negative-review", "weekly-report", "marketing"} {
			changed[name] = cmd.Flags().Changed(name)
		}
		withSignals(func(ctx context.Context, w io.Writer, _ []string) int {
			return runNotifications(ctx, w, changed)
		})(cmd, args)
	},
}

func init() {
	notificationsCmd.Flags().BoolVar(&notifyFlags.NewReview, "new-review", false, "Notify on every new review")
	notificationsCmd.Flags().BoolVar(&notifyFlags.NegativeReview, "negative-review", false, "Notify on negative reviews")
	notificationsCmd.Flags().BoolVar(&notifyFlags.WeeklyReport, "weekly-report", false, "Send the weekly report")
	notificationsCmd.Flags().BoolVar(&notifyFlags.Marketing, "marketing", false, "Receive product news")
	rootCmd.AddCommand(notificationsCmd)
}

// runNotifications applies the flags named in changed and prints the result
func runNotifications(ctx context.Context, w io.Writer, changed map[string]bool) int {
	return withApp(ctx, w, func(a *app) int {
		n, err := a.prefs.Notifications(ctx)
		if err != nil {
			a.logger.Debug("Using default notification prefs", "error", err)
		}

		dirty := false
		apply := func(name string, dst *bool, v bool) {
			if changed[name] {
				*dst = v
				dirty = true
			}
		}
		apply("new-review", &n.NewReview, notifyFlags.NewReview)
		apply("negative-review", &n.NegativeReview, notifyFlags.NegativeReview)
		apply("weekly-report", &n.WeeklyReport, notifyFlags.WeeklyReport)
		apply("marketing", &n.Marketing, notifyFlags.Marketing)

		if dirty {
			if err := a.prefs.SetNotifications(ctx, n); err != nil {
				return printError(w, err)
			}
		}
		if IsJSONOutput() {
			printJSON(w, n)
			return exitOK
		}
		fmt.Fprintln(w, formatNotificationsHuman(n))
		return exitOK
	})
}

func formatNotificationsHuman(n prefs.Notifications) string {
	return fmt.Sprintf(`New reviews:       %s
Negative reviews:  %s
Weekly report:     %s
Marketing:         %s`,
		onOff(n.NewReview), onOff(n.NegativeReview), onOff(n.WeeklyReport), onOff(n.Marketing))
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
