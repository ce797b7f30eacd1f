// ABOUTME: Interactive TUI command for review-insight
// ABOUTME: Routes logs to the state-dir log file while the TUI owns the terminal

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/markalston/review-insight/internal/logger"
	"github.com/markalston/review-insight/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive app",
	Long: `Launch the full-screen app. It opens on the dashboard and sends you to the
intro or store setup first when needed. Logs go to debug.log in the state directory.`,
	Run: func(cmd *cobra.Command, args []string) {
		runTUIFrom(pathDashboard)
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

// runTUIFrom runs the TUI starting at path and exits with its code
func runTUIFrom(path string) {
	withSignals(func(ctx context.Context, w io.Writer, _ []string) int {
		return runTUI(ctx, os.Stderr, path)
	})(nil, nil)
}

// runTUI starts the app at path. Errors go to w once the terminal is restored.
func runTUI(ctx context.Context, w io.Writer, path string) int {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return exitError
	}
	logFile, err := logger.OpenFile(cfg.StateDir)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return exitError
	}
	defer logFile.Close()

	a, err := openApp(ctx, logFile)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return exitError
	}
	defer a.Close()

	app := tui.New(ctx, tui.Deps{
		Session: a.sess,
		API:     a.api,
		Feed:    a.feed,
		Prefs:   a.prefs,
		Billing: a.billing,
		Logger:  a.logger,
	}, path)
	defer app.Close()

	a.notices.route(app)
	defer a.notices.route(nil)

	if err := app.Run(ctx); err != nil {
		return printError(w, err)
	}
	return exitOK
}
