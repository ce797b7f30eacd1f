// ABOUTME: Login screen as a bubbletea model
// ABOUTME: Collects credentials with a huh form and hands them to the app

package login

import (
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/markalston/review-insight/internal/models"
	"github.com/markalston/review-insight/internal/tui/styles"
)

// SubmitMsg carries credentials entered by the user
type SubmitMsg struct {
	Request models.LoginRequest
}

// CancelledMsg is sent when the user leaves the form
type CancelledMsg struct{}

// Model is the login form
type Model struct {
	form     *huh.Form
	email    string
	password string
	errMsg   string
	width    int
}

// New creates the form, prefilled with email when known
func New(email string) *Model {
	m := &Model{email: email}
	m.form = m.buildForm()
	return m
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Placeholder("owner@example.com").
				Value(&m.email).
				Validate(validateEmail),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&m.password).
				Validate(huh.ValidateNotEmpty()),
		).Title("Log in").
			Description("Sign in with your review-insight account"),
	).WithTheme(styles.FormTheme()).WithShowHelp(false)
}

// Failed resets the form after a rejected login, keeping the email
func (m *Model) Failed(msg string) tea.Cmd {
	m.errMsg = msg
	m.password = ""
	m.form = m.buildForm()
	return m.form.Init()
}

// Err returns the message of the last failed attempt
func (m *Model) Err() string {
	return m.errMsg
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
		if msg.String() == "esc" {
			return m, func() tea.Msg { return CancelledMsg{} }
		}
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		req := models.LoginRequest{Email: strings.TrimSpace(m.email), Password: m.password}
		return m, func() tea.Msg { return SubmitMsg{Request: req} }
	}
	return m, cmd
}

// View implements tea.Model
func (m *Model) View() string {
	var sb strings.Builder
	if m.errMsg != "" {
		sb.WriteString(styles.StatusCritical.Render(m.errMsg))
		sb.WriteString("\n\n")
	}
	sb.WriteString(m.form.View())
	return sb.String()
}

func validateEmail(s string) error {
	s = strings.TrimSpace(s)
	at := strings.Index(s, "@")
	if at <= 0 || at == len(s)-1 {
		return errors.New("enter a valid email address")
	}
	return nil
}
