// ABOUTME: Root command for the review-insight CLI
// ABOUTME: Handles global flags and exit-code conventions

package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/markalston/review-insight/internal/config"
)

// Exit codes
const (
	exitOK      = 0
	exitFailure = 1 // the backend refused for a domain reason (credits, quota)
	exitError   = 2 // connectivity, bad input, or a screen that needs login/setup first
)

var (
	apiURL     string
	stateDir   string
	jsonOutput bool
)

// rootCmd is the base command
var rootCmd = &cobra.Command{
	Use:   "review-insight",
	Short: "Terminal client for Review Insight",
	Long: `review-insight collects your store's reviews from Naver and Google, and shows
AI summaries, replies and insight reports from the Review Insight backend.

Run without a subcommand or with "tui" for the interactive app.

Exit codes:
  0 - Success
  1 - Refused by the backend (not enough credits, quota or daily limit)
  2 - Error, or login/setup required first

Environment Variables:
  REVIEW_INSIGHT_API_URL        Backend API URL (default: http://localhost:8080)
  REVIEW_INSIGHT_STATE_DIR      Session, cache and preference storage directory
  REVIEW_INSIGHT_CACHE_TTL      How long cached reads stay valid (default: 5m)
  REVIEW_INSIGHT_DEDUPE_WINDOW  Window in which repeated reads share one request (default: 2s)
  LOG_LEVEL, LOG_FORMAT         Logging (debug|info|warn|error, text|json)`,
	Run: func(cmd *cobra.Command, args []string) {
		runTUIFrom(pathDashboard)
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Backend API URL (overrides REVIEW_INSIGHT_API_URL)")
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", "", "State directory (overrides REVIEW_INSIGHT_STATE_DIR)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output JSON instead of human-readable text")
}

// loadConfig reads env and .env, then applies flag overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if apiURL != "" {
		cfg.APIURL = config.NormalizeURL(apiURL)
	}
	if stateDir != "" {
		cfg.StateDir = stateDir
	}
	return cfg, nil
}

// IsJSONOutput returns whether JSON output is requested
func IsJSONOutput() bool {
	return jsonOutput
}

// runner is the body of a command: it writes to w and returns an exit code
type runner func(ctx context.Context, w io.Writer, args []string) int

// withSignals adapts a runner to cobra, cancelling ctx on SIGINT/SIGTERM
func withSignals(fn runner) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := fn(ctx, os.Stdout, args)
		if exitCode != exitOK {
			os.Exit(exitCode)
		}
	}
}
