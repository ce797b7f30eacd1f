// ABOUTME: Boxed step indicator with a progress line for multi-step flows
// ABOUTME: Completed steps get a check, the current one a filled dot

package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/markalston/review-insight/internal/tui/icons"
	"github.com/markalston/review-insight/internal/tui/styles"
)

// MinStepperWidth is the narrowest box Stepper draws
const MinStepperWidth = 60

// Stepper renders names in a box of the given width. current is zero-based;
// current == len(names) marks every step complete.
func Stepper(names []string, current, width int) string {
	if width < MinStepperWidth {
		width = MinStepperWidth
	}

	borderStyle := lipgloss.NewStyle().Foreground(styles.Muted)
	titleStyle := lipgloss.NewStyle().Foreground(styles.Primary)

	steps := make([]string, 0, len(names))
	for i, name := range names {
		var indicator string
		var nameStyle lipgloss.Style
		switch {
		case i < current:
			indicator = lipgloss.NewStyle().Foreground(styles.Secondary).Render(icons.CheckOK.String())
			nameStyle = lipgloss.NewStyle().Foreground(styles.Muted)
		case i == current:
			indicator = lipgloss.NewStyle().Foreground(styles.Primary).Bold(true).Render("●")
			nameStyle = lipgloss.NewStyle().Foreground(styles.Primary).Bold(true)
		default:
			indicator = lipgloss.NewStyle().Foreground(styles.Muted).Render("○")
			nameStyle = lipgloss.NewStyle().Foreground(styles.Muted)
		}
		steps = append(steps, fmt.Sprintf("%s %s", indicator, nameStyle.Render(name)))
	}
	stepsLine := strings.Join(steps, "  ")

	// "│  " + bar + " │"
	barWidth := width - 5
	filled := 0
	if len(names) > 0 {
		done := current + 1
		if done > len(names) {
			done = len(names)
		}
		filled = done * barWidth / len(names)
	}
	bar := lipgloss.NewStyle().Foreground(styles.Primary).Render(strings.Repeat("━", filled)) +
		lipgloss.NewStyle().Foreground(styles.Surface).Render(strings.Repeat("─", barWidth-filled))

	title := "Progress"
	top := "┌─ " + titleStyle.Render(title) + " " + strings.Repeat("─", max(0, width-5-lipgloss.Width(title))) + "┐"
	middle := "│ " + stepsLine + strings.Repeat(" ", max(0, width-4-lipgloss.Width(stepsLine))) + " │"
	progress := "│  " + bar + " │"
	bottom := "└" + strings.Repeat("─", width-2) + "┘"

	return borderStyle.Render(strings.Join([]string{top, middle, progress, bottom}, "\n"))
}
