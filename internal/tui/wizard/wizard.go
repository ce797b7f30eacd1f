// ABOUTME: Store-setup wizard screen as a bubbletea model
// ABOUTME: One huh form per step; remote work runs as a command behind a spinner

package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/markalston/review-insight/internal/models"
	"github.com/markalston/review-insight/internal/setup"
	"github.com/markalston/review-insight/internal/tui/icons"
	"github.com/markalston/review-insight/internal/tui/styles"
	"github.com/markalston/review-insight/internal/tui/widgets"
)

// NavigateMsg asks the app to leave the wizard for Path
type NavigateMsg struct {
	Path   string
	Report *models.Report
}

// CancelledMsg is sent when the user declines to continue
type CancelledMsg struct{}

// stepDoneMsg reports the outcome of one step action
type stepDoneMsg struct {
	step setup.Step
	res  setup.Result
	err  error
}

// Step names for the progress box
var stepNames = []string{"Store", "Channels", "Collect", "Analyze", "Report"}

// Model wraps a setup.Wizard
type Model struct {
	ctx     context.Context
	wiz     *setup.Wizard
	form    *huh.Form
	spinner spinner.Model
	running bool
	errMsg  string
	width   int

	// form values
	storeURL   string
	storeQuery string
	naverURL   string
	googleURL  string
	proceed    bool
}

// New creates the screen for wiz. ctx bounds every remote call it starts.
func New(ctx context.Context, wiz *setup.Wizard) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(styles.Primary)

	m := &Model{ctx: ctx, wiz: wiz, spinner: s}
	m.form = m.formFor(wiz.Step())
	return m
}

// Wizard returns the underlying state machine
func (m *Model) Wizard() *setup.Wizard {
	return m.wiz
}

// Running reports whether a step action is in flight
func (m *Model) Running() bool {
	return m.running
}

func (m *Model) formFor(step setup.Step) *huh.Form {
	m.proceed = true

	var group *huh.Group
	switch step {
	case setup.StepIntro:
		group = huh.NewGroup(
			huh.NewInput().
				Title("Place page URL").
				Description("Naver Place or Google Maps link to your store").
				Placeholder("https://naver.me/...").
				Value(&m.storeURL),
			huh.NewInput().
				Title("Or store name and area").
				Placeholder("e.g., Blue Bottle Seongsu").
				Value(&m.storeQuery).
				Validate(m.validateStoreInput),
		)

	case setup.StepChannelConnect:
		if st := m.wiz.Store(); st != nil {
			if m.naverURL == "" {
				m.naverURL = st.NaverURL
			}
			if m.googleURL == "" {
				m.googleURL = st.GoogleURL
			}
		}
		group = huh.NewGroup(
			huh.NewInput().
				Title("Naver review page").
				Value(&m.naverURL),
			huh.NewInput().
				Title("Google review page").
				Value(&m.googleURL).
				Validate(m.validateChannels),
		)

	case setup.StepCollecting:
		group = huh.NewGroup(confirm("Collect reviews from your connected channels now?", &m.proceed))
	case setup.StepAnalyzing:
		group = huh.NewGroup(confirm("Summarize and analyze the collected reviews?", &m.proceed))
	default:
		group = huh.NewGroup(confirm("Generate your first insight report?", &m.proceed))
	}

	return huh.NewForm(
		group.Title(fmt.Sprintf("Step %d: %s", int(step)+1, step.Title())),
	).WithTheme(styles.FormTheme()).WithShowHelp(false)
}

func confirm(title string, v *bool) huh.Field {
	return huh.NewConfirm().
		Title(title).
		Affirmative("Continue").
		Negative("Later").
		Value(v)
}

func (m *Model) validateStoreInput(string) error {
	if strings.TrimSpace(m.storeURL) == "" && strings.TrimSpace(m.storeQuery) == "" {
		return errors.New("enter a URL or a store name")
	}
	return nil
}

func (m *Model) validateChannels(string) error {
	if strings.TrimSpace(m.naverURL) == "" && strings.TrimSpace(m.googleURL) == "" {
		return setup.ErrNoChannels
	}
	return nil
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	return m.form.Init()
}

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return m, func() tea.Msg { return CancelledMsg{} }
		case "ctrl+r":
			return m, m.reset()
		}
		if m.running {
			return m, nil
		}

	case spinner.TickMsg:
		if !m.running {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case stepDoneMsg:
		return m, m.handleStepDone(msg)
	}

	if m.running {
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}
	if m.form.State == huh.StateCompleted {
		if !m.proceed {
			return m, func() tea.Msg { return CancelledMsg{} }
		}
		return m, m.start()
	}
	return m, cmd
}

// start runs the action for the current step
func (m *Model) start() tea.Cmd {
	step := m.wiz.Step()
	act := m.actionFor(step)
	m.running = true
	m.errMsg = ""

	ctx := m.ctx
	run := func() tea.Msg {
		res, err := act(ctx)
		return stepDoneMsg{step: step, res: res, err: err}
	}
	return tea.Batch(m.spinner.Tick, run)
}

func (m *Model) actionFor(step setup.Step) func(ctx context.Context) (setup.Result, error) {
	switch step {
	case setup.StepIntro:
		in := setup.StoreInput{URL: m.storeURL, Query: m.storeQuery}
		return func(ctx context.Context) (setup.Result, error) { return m.wiz.RegisterStore(ctx, in) }
	case setup.StepChannelConnect:
		ch := setup.Channels{NaverURL: m.naverURL, GoogleURL: m.googleURL}
		return func(ctx context.Context) (setup.Result, error) { return m.wiz.ConnectChannels(ctx, ch) }
	case setup.StepCollecting:
		return m.wiz.CollectReviews
	case setup.StepAnalyzing:
		return m.wiz.Analyze
	default:
		return m.wiz.GenerateReport
	}
}

func (m *Model) handleStepDone(msg stepDoneMsg) tea.Cmd {
	if errors.Is(msg.err, setup.ErrSuperseded) {
		return nil
	}
	m.running = false

	if msg.res.Redirect != "" {
		res := msg.res
		return func() tea.Msg { return NavigateMsg{Path: res.Redirect, Report: res.Report} }
	}
	if msg.err != nil {
		m.errMsg = m.wiz.Status()
		if m.errMsg == "" {
			m.errMsg = msg.err.Error()
		}
	}
	m.form = m.formFor(m.wiz.Step())
	return m.form.Init()
}

// reset abandons the current run and starts over
func (m *Model) reset() tea.Cmd {
	m.wiz.Reset()
	m.running = false
	m.errMsg = ""
	m.storeURL, m.storeQuery, m.naverURL, m.googleURL = "", "", "", ""
	m.form = m.formFor(m.wiz.Step())
	return m.form.Init()
}

// View implements tea.Model
func (m *Model) View() string {
	var sb strings.Builder

	p := m.wiz.Progress()
	current := p.Index
	if m.wiz.Finished() {
		current = len(stepNames)
	}
	sb.WriteString(widgets.Stepper(stepNames, current, m.width-1))
	sb.WriteString("\n\n")

	if st := m.wiz.Store(); st != nil {
		sb.WriteString(icons.Store.String() + " " + styles.ValueStyle.Render(st.Name))
		if counts := m.wiz.Collected(); len(counts) > 0 {
			sb.WriteString(styles.Subtitle.Render(fmt.Sprintf("  %s", formatCounts(counts))))
		}
		sb.WriteString("\n\n")
	}

	if m.errMsg != "" {
		sb.WriteString(styles.StatusCritical.Render(icons.Critical.String() + " " + m.errMsg))
		sb.WriteString("\n\n")
	} else if status := m.wiz.Status(); status != "" && !m.running {
		sb.WriteString(styles.StatusOK.Render(icons.CheckOK.String() + " " + status))
		sb.WriteString("\n\n")
	}

	if m.running {
		sb.WriteString(m.spinner.View() + " " + p.Step.Title() + "...")
		return sb.String()
	}
	sb.WriteString(m.form.View())
	return sb.String()
}

func formatCounts(counts map[string]int) string {
	var parts []string
	for _, ch := range []string{models.ChannelNaver, models.ChannelGoogle} {
		if n, ok := counts[ch]; ok {
			parts = append(parts, fmt.Sprintf("%s %d", ch, n))
		}
	}
	return strings.Join(parts, ", ")
}
