// ABOUTME: Report commands: list insight reports and generate a new one
// ABOUTME: Generating costs credits and refreshes the cached report list

package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/markalston/review-insight/internal/models"
)

var (
	reportStore string
	reportFull  bool
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "List insight reports",
	Run:   withSignals(runReportsList),
}

var reportsGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate an insight report for a store",
	Run:   withSignals(runReportsGenerate),
}

func init() {
	reportsCmd.Flags().BoolVar(&reportFull, "full", false, "Print report contents, not only titles")
	reportsGenerateCmd.Flags().StringVar(&reportStore, "store", "", "Store id (default: the selected store)")

	reportsCmd.AddCommand(reportsGenerateCmd)
	rootCmd.AddCommand(reportsCmd)
}

func runReportsList(ctx context.Context, w io.Writer, _ []string) int {
	return withApp(ctx, w, func(a *app) int {
		if !a.requireOnboarded(ctx, w) {
			return exitError
		}
		reports, err := a.feed.Reports(ctx)
		if err != nil {
			return printError(w, err)
		}
		if IsJSONOutput() {
			printJSON(w, reports)
			return exitOK
		}
		fmt.Fprintln(w, formatReportsHuman(reports, reportFull))
		return exitOK
	})
}

// formatReportsHuman lists reports newest first as the backend returns them
func formatReportsHuman(reports []models.Report, full bool) string {
	if len(reports) == 0 {
		return "No reports yet. Run `review-insight reports generate`."
	}
	var sb strings.Builder
	for i, r := range reports {
		title := r.Title
		if title == "" {
			title = "Insight report"
		}
		fmt.Fprintf(&sb, "%-10s %-20s %s", r.ID, r.CreatedAt, title)
		if full && r.Content != "" {
			sb.WriteString("\n\n")
			sb.WriteString(strings.TrimSpace(r.Content))
			sb.WriteString("\n")
		}
		if i < len(reports)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func runReportsGenerate(ctx context.Context, w io.Writer, _ []string) int {
	return withApp(ctx, w, func(a *app) int {
		if !a.requireOnboarded(ctx, w) {
			return exitError
		}
		id, err := a.storeID(ctx, reportStore)
		if err != nil {
			return printError(w, err)
		}
		report, err := a.api.GenerateReport(ctx, &models.ReportRequest{StoreID: id})
		if err != nil {
			return printError(w, err)
		}
		if err := a.feed.ReportsChanged(ctx); err != nil {
			a.logger.Warn("Failed to invalidate reports", "error", err)
		}
		if IsJSONOutput() {
			printJSON(w, report)
			return exitOK
		}
		fmt.Fprintln(w, strings.TrimSpace(report.Content))
		return exitOK
	})
}
