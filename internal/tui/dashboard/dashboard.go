// ABOUTME: Dashboard component showing review insight and recent reviews
// ABOUTME: Pure rendering; the app feeds it values from mounted cache resources

package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/markalston/review-insight/internal/client"
	"github.com/markalston/review-insight/internal/models"
	"github.com/markalston/review-insight/internal/tui/icons"
	"github.com/markalston/review-insight/internal/tui/styles"
	"github.com/markalston/review-insight/internal/tui/widgets"
)

// maxKeywords is how many keywords each side lists
const maxKeywords = 5

// Dashboard displays insight metrics and a review page
type Dashboard struct {
	user    *models.User
	store   *models.Store
	insight *models.Insight
	reviews *models.ReviewList
	loading bool
	err     error
	width   int
	height  int
}

// New creates a dashboard for user
func New(user *models.User, width, height int) *Dashboard {
	return &Dashboard{user: user, width: width, height: height}
}

// SetUser replaces the signed-in user
func (d *Dashboard) SetUser(u *models.User) { d.user = u }

// SetStore sets the store whose reviews are listed
func (d *Dashboard) SetStore(s *models.Store) { d.store = s }

// SetInsight sets the insight to render; nil shows a placeholder
func (d *Dashboard) SetInsight(in *models.Insight) { d.insight = in }

// SetReviews sets the review page to render
func (d *Dashboard) SetReviews(list *models.ReviewList) { d.reviews = list }

// SetStatus records whether a refresh is running and its last error.
// Stale values stay on screen either way.
func (d *Dashboard) SetStatus(loading bool, err error) {
	d.loading = loading
	d.err = err
}

// SetSize updates the dashboard dimensions
func (d *Dashboard) SetSize(width, height int) {
	d.width = width
	d.height = height
}

// View renders the dashboard
func (d *Dashboard) View() string {
	var sb strings.Builder

	sb.WriteString(styles.Title.Render(icons.App.String() + " Review Insight"))
	sb.WriteString("\n")
	if d.user != nil {
		line := d.user.DisplayName()
		line += fmt.Sprintf("  %s %d credits", icons.Credits.String(), d.user.Credits)
		if d.user.Subscribed() {
			line += "  " + styles.StatusOK.Render("subscribed")
		}
		sb.WriteString(styles.Subtitle.Render(line))
		sb.WriteString("\n")
	}

	switch {
	case d.err != nil:
		sb.WriteString(styles.StatusWarning.Render(icons.Warning.String() + " " + client.UserMessage(d.err)))
		sb.WriteString("\n\n")
	case d.loading:
		sb.WriteString(styles.Help.Render(icons.Refresh.String() + " Refreshing..."))
		sb.WriteString("\n\n")
	}

	sb.WriteString(d.viewInsight())
	sb.WriteString("\n")
	sb.WriteString(d.viewReviews())
	return sb.String()
}

func (d *Dashboard) viewInsight() string {
	if d.insight == nil {
		return "Loading insight...\n"
	}
	in := d.insight

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s Reviews: %s\n", icons.Review.String(), styles.ValueStyle.Render(fmt.Sprint(in.TotalReviews))))
	sb.WriteString(fmt.Sprintf("%s Rating:  %s\n", icons.Star.String(), widgets.Stars(in.AverageRating)))
	sb.WriteString(fmt.Sprintf("Sentiment %s %s %.0f%%  %s %.0f%%\n",
		widgets.SentimentBar(in.PositiveRatio, in.NegativeRatio, d.barWidth()),
		icons.Positive.String(), in.PositiveRatio*100,
		icons.Negative.String(), in.NegativeRatio*100))

	if len(in.PositiveKeywords) > 0 || len(in.NegativeKeywords) > 0 {
		sb.WriteString("\n")
		left := keywordColumn("Praised", in.PositiveKeywords, styles.Sentiment(models.SentimentPositive))
		right := keywordColumn("Complaints", in.NegativeKeywords, styles.Sentiment(models.SentimentNegative))
		sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, lipgloss.NewStyle().Width(24).Render(left), right))
		sb.WriteString("\n")
	}
	return sb.String()
}

func keywordColumn(title string, kws []models.Keyword, style lipgloss.Style) string {
	var sb strings.Builder
	sb.WriteString(style.Render(title))
	for i, kw := range kws {
		if i == maxKeywords {
			break
		}
		sb.WriteString(fmt.Sprintf("\n  %s (%d)", kw.Word, kw.Count))
	}
	return sb.String()
}

func (d *Dashboard) viewReviews() string {
	var sb strings.Builder
	heading := "Recent reviews"
	if d.store != nil {
		heading += " - " + d.store.Name
	}
	sb.WriteString(styles.Subtitle.Render(heading))
	sb.WriteString("\n")

	if d.store == nil {
		sb.WriteString("No store selected. Press s to set one up.\n")
		return sb.String()
	}
	if d.reviews == nil {
		sb.WriteString("Loading reviews...\n")
		return sb.String()
	}
	if len(d.reviews.Reviews) == 0 {
		sb.WriteString("No reviews collected yet.\n")
		return sb.String()
	}

	limit := d.reviewRows()
	for i, r := range d.reviews.Reviews {
		if i == limit {
			sb.WriteString(styles.Help.Render(fmt.Sprintf("... %d more", d.reviews.Total-limit)))
			sb.WriteString("\n")
			break
		}
		sb.WriteString(d.reviewLine(r))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (d *Dashboard) reviewLine(r models.Review) string {
	content := strings.ReplaceAll(r.Content, "\n", " ")
	if limit := d.width - 24; limit > 10 {
		content = truncate(content, limit)
	}
	label := r.Sentiment
	if label == "" {
		label = "-"
	}
	return fmt.Sprintf("%.1f %-8s %-8s %s",
		r.Rating,
		r.Channel,
		styles.Sentiment(r.Sentiment).Render(label),
		content)
}

func (d *Dashboard) barWidth() int {
	if d.width > 0 && d.width < 60 {
		return 10
	}
	return 20
}

// reviewRows is how many review lines fit below the insight block
func (d *Dashboard) reviewRows() int {
	rows := d.height - 16
	if rows < 3 {
		return 3
	}
	return rows
}

// truncate cuts s to at most width cells, marking the cut with an ellipsis
func truncate(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	var sb strings.Builder
	w := 0
	for _, r := range s {
		rw := lipgloss.Width(string(r))
		if w+rw > width-1 {
			break
		}
		sb.WriteRune(r)
		w += rw
	}
	return sb.String() + "…"
}
