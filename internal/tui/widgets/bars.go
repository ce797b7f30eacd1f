// ABOUTME: Bar widgets for sentiment share and rating display
// ABOUTME: Plain Unicode blocks colored with lipgloss

package widgets

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/markalston/review-insight/internal/tui/styles"
)

// SentimentBar renders positive and negative shares side by side, neutral in
// between. Ratios are fractions in [0, 1].
func SentimentBar(positive, negative float64, width int) string {
	if width <= 0 {
		width = 20
	}
	positive = clamp01(positive)
	negative = clamp01(negative)
	if positive+negative > 1 {
		negative = 1 - positive
	}

	pos := int(math.Round(positive * float64(width)))
	neg := int(math.Round(negative * float64(width)))
	if pos+neg > width {
		neg = width - pos
	}
	neutral := width - pos - neg

	var bar strings.Builder
	bar.WriteString("[")
	bar.WriteString(lipgloss.NewStyle().Foreground(styles.Positive).Render(strings.Repeat("█", pos)))
	bar.WriteString(lipgloss.NewStyle().Foreground(styles.Surface).Render(strings.Repeat("░", neutral)))
	bar.WriteString(lipgloss.NewStyle().Foreground(styles.Negative).Render(strings.Repeat("█", neg)))
	bar.WriteString("]")
	return bar.String()
}

// Stars renders a 0-5 rating as filled and empty stars with the number
func Stars(rating float64) string {
	if rating < 0 {
		rating = 0
	}
	if rating > 5 {
		rating = 5
	}
	full := int(math.Round(rating))
	filled := lipgloss.NewStyle().Foreground(styles.Warning).Render(strings.Repeat("★", full))
	empty := lipgloss.NewStyle().Foreground(styles.Muted).Render(strings.Repeat("☆", 5-full))
	return fmt.Sprintf("%s%s %.1f", filled, empty, rating)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
