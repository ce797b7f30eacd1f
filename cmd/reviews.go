// ABOUTME: Review commands: reviews, summary, summarize, reply, crawl and insight
// ABOUTME: These stand in for the dashboard and require finished store setup

package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/markalston/review-insight/internal/feed"
	"github.com/markalston/review-insight/internal/models"
)

var (
	reviewStore     string
	reviewChannel   string
	reviewSentiment string
	reviewPage      int
	reviewLimit     int
	summaryGenerate bool
	summarizeAll    bool
	replyTone       string
	replySave       string
	replyShow       bool
	crawlChannel    string
	crawlURL        string
	insightUser     string
)

var reviewsCmd = &cobra.Command{
	Use:   "reviews",
	Short: "List collected reviews of a store",
	Run:   withSignals(runReviews),
}

var reviewsShowCmd = &cobra.Command{
	Use:   "show <review-id>",
	Short: "Show one review with its summary",
	Args:  cobra.ExactArgs(1),
	Run:   withSignals(runReviewShow),
}

var summaryCmd = &cobra.Command{
	Use:   "summary <review-id>",
	Short: "Show the AI summary of a review",
	Args:  cobra.ExactArgs(1),
	Run:   withSignals(runSummary),
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Summarize reviews that have no summary yet",
	Run:   withSignals(runSummarize),
}

var replyCmd = &cobra.Command{
	Use:   "reply <review-id>",
	Short: "Draft, show or save a reply to a review",
	Args:  cobra.ExactArgs(1),
	Run:   withSignals(runReply),
}

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Collect new reviews from one channel",
	Run:   withSignals(runCrawl),
}

var insightCmd = &cobra.Command{
	Use:   "insight",
	Short: "Show rating, sentiment and keyword insight",
	Run:   withSignals(runInsight),
}

func init() {
	for _, c := range []*cobra.Command{reviewsCmd, summarizeCmd, crawlCmd} {
		c.Flags().StringVar(&reviewStore, "store", "", "Store id (default: the selected store)")
	}
	reviewsCmd.Flags().StringVar(&reviewChannel, "channel", "", "Only this channel (naver|google)")
	reviewsCmd.Flags().StringVar(&reviewSentiment, "sentiment", "", "Only this sentiment (positive|neutral|negative)")
	reviewsCmd.Flags().IntVar(&reviewPage, "page", 1, "Page number")
	reviewsCmd.Flags().IntVar(&reviewLimit, "limit", 20, "Reviews per page")
	summaryCmd.Flags().BoolVar(&summaryGenerate, "generate", false, "Generate a summary when there is none")
	summarizeCmd.Flags().BoolVar(&summarizeAll, "all", false, "Re-summarize every review, not only missing ones")
	replyCmd.Flags().StringVar(&replyTone, "tone", "", "Tone of the drafted reply (e.g. friendly, formal)")
	replyCmd.Flags().StringVar(&replySave, "save", "", "Save this text as the reply")
	replyCmd.Flags().BoolVar(&replyShow, "show", false, "Show the saved reply instead of drafting one")
	crawlCmd.Flags().StringVar(&crawlChannel, "channel", models.ChannelNaver, "Channel to crawl (naver|google)")
	crawlCmd.Flags().StringVar(&crawlURL, "url", "", "Review page URL (default: the store's connected page)")
	insightCmd.Flags().StringVar(&insightUser, "user", "", "Insight of another user id (admin accounts)")

	reviewsCmd.AddCommand(reviewsShowCmd)

	rootCmd.AddCommand(reviewsCmd, summaryCmd, summarizeCmd, replyCmd, crawlCmd, insightCmd)
}

func runReviews(ctx context.Context, w io.Writer, _ []string) int {
	return withApp(ctx, w, func(a *app) int {
		if !a.requireOnboarded(ctx, w) {
			return exitError
		}
		id, err := a.storeID(ctx, reviewStore)
		if err != nil {
			return printError(w, err)
		}
		q := models.ReviewQuery{
			StoreID:   id,
			Channel:   reviewChannel,
			Sentiment: reviewSentiment,
			Page:      reviewPage,
			Limit:     reviewLimit,
		}
		list, err := readThrough(ctx, a, feed.ReviewsKey(q), func(ctx context.Context) (models.ReviewList, error) {
			return a.feed.Reviews(ctx, q)
		})
		if err != nil {
			return printError(w, err)
		}
		if IsJSONOutput() {
			printJSON(w, list)
			return exitOK
		}
		fmt.Fprintln(w, formatReviewsHuman(list))
		return exitOK
	})
}

// formatReviewsHuman prints one line per review plus a paging footer
func formatReviewsHuman(list models.ReviewList) string {
	if len(list.Reviews) == 0 {
		return "No reviews collected yet. Run `review-insight crawl` to collect some."
	}
	var sb strings.Builder
	for _, r := range list.Reviews {
		sentiment := r.Sentiment
		if sentiment == "" {
			sentiment = "-"
		}
		replied := ""
		if r.Replied {
			replied = " (replied)"
		}
		fmt.Fprintf(&sb, "%-10s %-7s %.1f  %-8s %s%s\n", r.ID, r.Channel, r.Rating, sentiment, oneLine(r.Content), replied)
	}
	page := list.Page
	if page == 0 {
		page = 1
	}
	fmt.Fprintf(&sb, "Page %d, %d of %d reviews", page, len(list.Reviews), list.Total)
	return sb.String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func runReviewShow(ctx context.Context, w io.Writer, args []string) int {
	return withApp(ctx, w, func(a *app) int {
		if !a.requireOnboarded(ctx, w) {
			return exitError
		}
		review, err := a.api.GetReview(ctx, args[0])
		if err != nil {
			return printError(w, err)
		}
		// reviews collected before analysis have no summary yet
		summary, err := a.api.GetSummary(ctx, args[0])
		if err != nil {
			a.logger.Debug("No summary for review", "review_id", args[0], "error", err)
			summary = nil
		}
		if IsJSONOutput() {
			printJSON(w, map[string]any{"review": review, "summary": summary})
			return exitOK
		}
		fmt.Fprintln(w, formatReviewHuman(review, summary))
		return exitOK
	})
}

func formatReviewHuman(r *models.Review, s *models.Summary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s on %s, %.1f stars", orDash(r.Author), r.Channel, r.Rating)
	if r.CreatedAt != "" {
		fmt.Fprintf(&sb, " (%s)", r.CreatedAt)
	}
	sb.WriteString("\n\n")
	sb.WriteString(strings.TrimSpace(r.Content))
	if s != nil && s.Summary != "" {
		sb.WriteString("\n\nSummary: ")
		sb.WriteString(formatSummaryHuman(s))
	}
	return sb.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func runSummary(ctx context.Context, w io.Writer, args []string) int {
	return withApp(ctx, w, func(a *app) int {
		if !a.requireOnboarded(ctx, w) {
			return exitError
		}
		summary, err := a.api.GetSummary(ctx, args[0])
		if err != nil && summaryGenerate {
			summary, err = a.api.Summarize(ctx, &models.SummaryRequest{ReviewID: args[0]})
			if err == nil {
				if err := a.feed.ReviewsChanged(ctx); err != nil {
					a.logger.Warn("Failed to invalidate reviews", "error", err)
				}
			}
		}
		if err != nil {
			return printError(w, err)
		}
		if IsJSONOutput() {
			printJSON(w, summary)
			return exitOK
		}
		fmt.Fprintln(w, formatSummaryHuman(summary))
		return exitOK
	})
}

func formatSummaryHuman(s *models.Summary) string {
	out := s.Summary
	if s.Sentiment != "" {
		out += "\nSentiment: " + s.Sentiment
	}
	if len(s.Keywords) > 0 {
		out += "\nKeywords:  " + strings.Join(s.Keywords, ", ")
	}
	return out
}

func runSummarize(ctx context.Context, w io.Writer, _ []string) int {
	return withApp(ctx, w, func(a *app) int {
		if !a.requireOnboarded(ctx, w) {
			return exitError
		}
		id, err := a.storeID(ctx, reviewStore)
		if err != nil {
			return printError(w, err)
		}
		req := &models.BatchRequest{StoreID: id}
		var res *models.BatchResult
		if summarizeAll {
			res, err = a.api.SummarizeBatch(ctx, req)
		} else {
			res, err = a.api.SummarizeMissing(ctx, req)
		}
		if err != nil {
			return printError(w, err)
		}
		if err := a.feed.ReviewsChanged(ctx); err != nil {
			a.logger.Warn("Failed to invalidate reviews", "error", err)
		}
		if IsJSONOutput() {
			printJSON(w, res)
			return exitOK
		}
		fmt.Fprintf(w, "Summarized %d reviews, %d remaining\n", res.Processed, res.Remaining)
		return exitOK
	})
}

func runReply(ctx context.Context, w io.Writer, args []string) int {
	reviewID := args[0]
	return withApp(ctx, w, func(a *app) int {
		if !a.requireOnboarded(ctx, w) {
			return exitError
		}

		var (
			reply *models.Reply
			err   error
		)
		switch {
		case replySave != "":
			reply, err = a.api.SaveReply(ctx, &models.Reply{ReviewID: reviewID, Content: replySave})
			if err == nil {
				if err := a.feed.ReviewsChanged(ctx); err != nil {
					a.logger.Warn("Failed to invalidate reviews", "error", err)
				}
			}
		case replyShow:
			reply, err = a.api.GetReply(ctx, reviewID)
		default:
			reply, err = a.api.GenerateReply(ctx, &models.ReplyRequest{ReviewID: reviewID, Tone: replyTone})
		}
		if err != nil {
			return printError(w, err)
		}
		if IsJSONOutput() {
			printJSON(w, reply)
			return exitOK
		}
		fmt.Fprintln(w, reply.Content)
		return exitOK
	})
}

func runCrawl(ctx context.Context, w io.Writer, _ []string) int {
	if crawlChannel != models.ChannelNaver && crawlChannel != models.ChannelGoogle {
		fmt.Fprintf(w, "Error: unknown channel %q\n", crawlChannel)
		return exitError
	}
	return withApp(ctx, w, func(a *app) int {
		if !a.requireLogin(ctx, w) {
			return exitError
		}
		id, err := a.storeID(ctx, reviewStore)
		if err != nil {
			return printError(w, err)
		}

		url := strings.TrimSpace(crawlURL)
		if url == "" {
			stores, err := a.feed.Stores(ctx)
			if err != nil {
				return printError(w, err)
			}
			url = channelURL(stores, id, crawlChannel)
			if url == "" {
				fmt.Fprintf(w, "Error: store %s has no %s page; pass --url or run `review-insight stores connect`\n", id, crawlChannel)
				return exitError
			}
		}

		res, err := a.api.Crawl(ctx, crawlChannel, &models.CrawlRequest{StoreID: id, URL: url})
		if err != nil {
			return printError(w, err)
		}
		if err := a.feed.ReviewsChanged(ctx); err != nil {
			a.logger.Warn("Failed to invalidate reviews", "error", err)
		}
		if IsJSONOutput() {
			printJSON(w, res)
			return exitOK
		}
		fmt.Fprintf(w, "Collected %d reviews from %s\n", res.Collected, crawlChannel)
		return exitOK
	})
}

// channelURL returns the connected page of channel for store id
func channelURL(stores []models.Store, id, channel string) string {
	for _, s := range stores {
		if s.ID != id {
			continue
		}
		if channel == models.ChannelGoogle {
			return s.GoogleURL
		}
		return s.NaverURL
	}
	return ""
}

func runInsight(ctx context.Context, w io.Writer, _ []string) int {
	return withApp(ctx, w, func(a *app) int {
		if !a.requireOnboarded(ctx, w) {
			return exitError
		}
		var insight models.Insight
		var err error
		if insightUser != "" {
			var in *models.Insight
			in, err = a.api.UserInsight(ctx, insightUser)
			if in != nil {
				insight = *in
			}
		} else {
			insight, err = readThrough(ctx, a, feed.InsightKey(), a.feed.Insight)
		}
		if err != nil {
			return printError(w, err)
		}
		if IsJSONOutput() {
			printJSON(w, insight)
			return exitOK
		}
		fmt.Fprintln(w, formatInsightHuman(insight))
		return exitOK
	})
}

// formatInsightHuman formats rating, sentiment split and top keywords
func formatInsightHuman(in models.Insight) string {
	return fmt.Sprintf(`Reviews:   %d
Rating:    %.1f
Positive:  %.0f%%
Negative:  %.0f%%
Liked:     %s
Disliked:  %s`,
		in.TotalReviews,
		in.AverageRating,
		in.PositiveRatio*100,
		in.NegativeRatio*100,
		formatKeywords(in.PositiveKeywords),
		formatKeywords(in.NegativeKeywords))
}

func formatKeywords(ks []models.Keyword) string {
	if len(ks) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(ks))
	for _, k := range ks {
		parts = append(parts, fmt.Sprintf("%s (%d)", k.Word, k.Count))
	}
	return strings.Join(parts, ", ")
}
