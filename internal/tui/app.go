// ABOUTME: Main TUI application model with guarded screen routing
// ABOUTME: Manages intro, login, setup, dashboard and billing screens

package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/markalston/review-insight/internal/billing"
	"github.com/markalston/review-insight/internal/cache"
	"github.com/markalston/review-insight/internal/client"
	"github.com/markalston/review-insight/internal/feed"
	"github.com/markalston/review-insight/internal/guard"
	"github.com/markalston/review-insight/internal/models"
	"github.com/markalston/review-insight/internal/prefs"
	"github.com/markalston/review-insight/internal/session"
	"github.com/markalston/review-insight/internal/setup"
	"github.com/markalston/review-insight/internal/tui/dashboard"
	"github.com/markalston/review-insight/internal/tui/icons"
	"github.com/markalston/review-insight/internal/tui/login"
	"github.com/markalston/review-insight/internal/tui/styles"
	"github.com/markalston/review-insight/internal/tui/wizard"
)

// Screen represents the current TUI screen
type Screen int

const (
	ScreenChecking Screen = iota
	ScreenIntro
	ScreenLogin
	ScreenSetup
	ScreenDashboard
	ScreenBilling
)

// Routes
const (
	PathIntro     = guard.DefaultFallbackPath
	PathLogin     = "/auth/login"
	PathSetup     = guard.DefaultSetupPath
	PathDashboard = setup.DashboardPath
	PathBilling   = setup.BillingPath
)

// Layout constants
const (
	minTerminalWidth = 80
	reviewPageSize   = 20
	eventBuffer      = 16
)

// routeConfig is the guard configuration of each protected route
var routeConfig = map[string]guard.Config{
	PathSetup:     {},
	PathDashboard: {RequireOnboarded: true},
	PathBilling:   {},
}

// Deps are the services the app drives
type Deps struct {
	Session *session.Store
	API     *client.Client
	Feed    *feed.Feed
	Prefs   *prefs.Prefs
	Billing *billing.Flow
	Logger  *slog.Logger
}

// Message types
type (
	sessionChangedMsg  struct{}
	resourceChangedMsg struct{}
	noticeMsg          struct{ text string }
	loginDoneMsg       struct{ err error }
	logoutDoneMsg      struct{ err error }
	setupLoadedMsg     struct{ wiz *setup.Wizard }
	billingCheckedMsg  struct {
		user    *models.User
		resumed bool
		err     error
	}
)

// App is the main TUI application model
type App struct {
	ctx    context.Context
	deps   Deps
	logger *slog.Logger
	events chan tea.Msg

	allow  guard.AllowList
	guards map[string]*guard.Guard

	path   string
	screen Screen
	width  int
	height int

	notice     string
	err        error
	lastUpdate time.Time

	login   *login.Model
	wizard  *wizard.Model
	dash    *dashboard.Dashboard
	store   *models.Store
	insight *cache.Resource[models.Insight]
	stores  *cache.Resource[[]models.Store]
	reviews *cache.Resource[models.ReviewList]

	billingBusy bool
	unsubscribe func()
}

// New creates a new TUI application starting at path
func New(ctx context.Context, deps Deps, path string) *App {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if path == "" {
		path = PathDashboard
	}
	a := &App{
		ctx:    ctx,
		deps:   deps,
		logger: deps.Logger,
		events: make(chan tea.Msg, eventBuffer),
		allow:  guard.DefaultAllowList,
		guards: make(map[string]*guard.Guard),
		path:   path,
		screen: ScreenChecking,
	}
	a.unsubscribe = deps.Session.Subscribe(func(session.Snapshot) {
		a.post(sessionChangedMsg{})
	})
	return a
}

// Notify shows msg in the footer. It satisfies client.Notifier.
func (a *App) Notify(msg string) {
	a.post(noticeMsg{text: msg})
}

// Close detaches the app from the session
func (a *App) Close() {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
}

// post delivers msg to the event loop without blocking the caller
func (a *App) post(msg tea.Msg) {
	select {
	case a.events <- msg:
	default:
		a.logger.Debug("Dropping TUI event, buffer full", "type", fmt.Sprintf("%T", msg))
	}
}

// listen waits for the next posted event
func (a *App) listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-a.events:
			return msg
		case <-a.ctx.Done():
			return nil
		}
	}
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.listen(), a.navigate(a.path))
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		if a.dash != nil {
			a.dash.SetSize(a.width, a.contentHeight())
		}
		return a.forward(tea.WindowSizeMsg{Width: msg.Width - 1, Height: msg.Height})

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		return a.handleKey(msg)

	case tea.FocusMsg:
		if a.screen == ScreenDashboard {
			a.focusResources()
		}
		return a, nil

	case sessionChangedMsg:
		return a, tea.Batch(a.listen(), a.sessionChanged())

	case resourceChangedMsg:
		a.mountReviews()
		a.syncDashboard()
		return a, a.listen()

	case noticeMsg:
		a.notice = msg.text
		return a, a.listen()

	case login.SubmitMsg:
		return a, a.submitLogin(msg.Request)

	case login.CancelledMsg:
		return a, a.navigate(PathIntro)

	case loginDoneMsg:
		if a.login == nil {
			return a, nil
		}
		if msg.err != nil {
			return a, a.login.Failed(client.UserMessage(msg.err))
		}
		a.login = nil
		return a, a.navigate(PathDashboard)

	case logoutDoneMsg:
		if msg.err != nil {
			a.err = msg.err
		}
		return a, a.navigate(PathIntro)

	case setupLoadedMsg:
		if a.screen != ScreenSetup {
			return a, nil
		}
		a.wizard = wizard.New(a.ctx, msg.wiz)
		_, cmd := a.forward(tea.WindowSizeMsg{Width: a.width - 1, Height: a.height})
		return a, tea.Batch(a.wizard.Init(), cmd)

	case wizard.NavigateMsg:
		if msg.Report != nil {
			a.notice = "First report ready: " + reportTitle(msg.Report)
		}
		if msg.Path == PathBilling {
			a.notice = client.KindInsufficientCredits.Message()
		}
		a.wizard = nil
		return a, a.navigate(msg.Path)

	case wizard.CancelledMsg:
		return a, tea.Quit

	case billingCheckedMsg:
		a.billingBusy = false
		a.err = msg.err
		switch {
		case msg.err != nil:
		case msg.resumed:
			a.notice = fmt.Sprintf("Purchase confirmed. Balance: %d credits", msg.user.Credits)
		default:
			a.notice = "No purchase waiting for confirmation"
		}
		return a, nil
	}

	return a.forward(msg)
}

// forward passes msg to the active child model
func (a *App) forward(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch a.screen {
	case ScreenLogin:
		if a.login != nil {
			model, cmd := a.login.Update(msg)
			a.login = model.(*login.Model)
			return a, cmd
		}
	case ScreenSetup:
		if a.wizard != nil {
			model, cmd := a.wizard.Update(msg)
			a.wizard = model.(*wizard.Model)
			return a, cmd
		}
	}
	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch a.screen {
	case ScreenIntro:
		switch msg.String() {
		case "q":
			return a, tea.Quit
		case "enter", "l":
			return a, a.navigate(PathLogin)
		}
		return a, nil

	case ScreenChecking:
		if msg.String() == "q" {
			return a, tea.Quit
		}
		return a, nil

	case ScreenDashboard:
		switch msg.String() {
		case "q":
			return a, tea.Quit
		case "r":
			a.revalidate()
			return a, nil
		case "s":
			return a, a.navigate(PathSetup)
		case "b":
			return a, a.navigate(PathBilling)
		case "l":
			return a, a.logout()
		}
		return a, nil

	case ScreenBilling:
		switch msg.String() {
		case "q":
			return a, tea.Quit
		case "r":
			return a, a.checkBilling()
		case "d", "esc":
			return a, a.navigate(PathDashboard)
		}
		return a, nil
	}

	return a.forward(msg)
}

// navigate moves to path, running the route guard for protected paths.
// Each call is a new mount of the target screen.
func (a *App) navigate(path string) tea.Cmd {
	a.logger.Debug("Navigate", "from", a.path, "to", path)
	a.path = path
	a.err = nil

	if a.allow.Public(path) {
		return a.enter(path)
	}
	a.guardFor(path).Remount()
	return a.checkRoute()
}

// checkRoute evaluates the guard of the current protected path
func (a *App) checkRoute() tea.Cmd {
	d := a.guardFor(a.path).Evaluate(a.ctx, a.path)
	switch {
	case d.Redirect != "":
		return a.navigate(d.Redirect)
	case d.Checking:
		a.screen = ScreenChecking
		return nil
	}
	if a.screen == screenFor(a.path) {
		return nil
	}
	return a.enter(a.path)
}

func (a *App) guardFor(path string) *guard.Guard {
	g, ok := a.guards[path]
	if !ok {
		g = guard.New(a.deps.Session, routeConfig[path], nil)
		a.guards[path] = g
	}
	return g
}

func screenFor(path string) Screen {
	switch {
	case path == PathIntro:
		return ScreenIntro
	case strings.HasPrefix(path, "/auth"):
		return ScreenLogin
	case path == PathSetup:
		return ScreenSetup
	case path == PathBilling:
		return ScreenBilling
	default:
		return ScreenDashboard
	}
}

// enter mounts the screen for path
func (a *App) enter(path string) tea.Cmd {
	a.screen = screenFor(path)
	switch a.screen {
	case ScreenLogin:
		email := ""
		if u := a.deps.Session.User(); u != nil {
			email = u.Email
		}
		a.login = login.New(email)
		_, cmd := a.forward(tea.WindowSizeMsg{Width: a.width - 1, Height: a.height})
		return tea.Batch(a.login.Init(), cmd)
	case ScreenSetup:
		a.wizard = nil
		return a.loadSetup()
	case ScreenDashboard:
		a.mountDashboard()
		return nil
	case ScreenBilling:
		return a.checkBilling()
	}
	return nil
}

// sessionChanged re-runs the guard when the session changes under a screen
func (a *App) sessionChanged() tea.Cmd {
	if a.dash != nil {
		a.dash.SetUser(a.deps.Session.User())
	}
	// covers logout and a 401 invalidation alike
	if a.deps.Session.Snapshot().State() == session.StateLoggedOut {
		a.forgetUser(a.ctx)
	}
	if a.allow.Public(a.path) {
		return nil
	}
	return a.checkRoute()
}

func (a *App) submitLogin(req models.LoginRequest) tea.Cmd {
	ctx := a.ctx
	return func() tea.Msg {
		resp, err := a.deps.API.Login(ctx, &req)
		if err != nil {
			return loginDoneMsg{err: err}
		}
		if err := a.deps.Session.Login(ctx, resp.Token, resp.User); err != nil {
			return loginDoneMsg{err: err}
		}
		a.forgetUser(ctx)
		return loginDoneMsg{}
	}
}

func (a *App) logout() tea.Cmd {
	ctx := a.ctx
	return func() tea.Msg {
		err := a.deps.Session.Logout(ctx)
		a.forgetUser(ctx)
		return logoutDoneMsg{err: err}
	}
}

// forgetUser drops cached data and the selected store of the previous identity
func (a *App) forgetUser(ctx context.Context) {
	if err := a.deps.Feed.ForgetUser(ctx, a.deps.Prefs); err != nil {
		a.logger.Warn("Failed to forget previous user's data", "error", err)
	}
}

// loadSetup builds the wizard. A user who has not finished onboarding
// resumes with the store registered last.
func (a *App) loadSetup() tea.Cmd {
	ctx := a.ctx
	deps := a.deps
	return func() tea.Msg {
		opts := []setup.Option{setup.WithLogger(deps.Logger), setup.WithStoreRecorder(deps.Prefs)}
		user := deps.Session.User()
		if user == nil || deps.Session.IsOnboarded(ctx, user) {
			return setupLoadedMsg{wiz: setup.New(deps.API, deps.Session, opts...)}
		}
		store, err := lastStore(ctx, deps)
		if err != nil {
			deps.Logger.Debug("No store to resume setup with", "error", err)
		}
		return setupLoadedMsg{wiz: setup.Resume(deps.API, deps.Session, store, opts...)}
	}
}

// lastStore finds the remembered store in the user's store list
func lastStore(ctx context.Context, deps Deps) (*models.Store, error) {
	id, err := deps.Prefs.LastStore(ctx)
	if err != nil || id == "" {
		return nil, err
	}
	stores, err := deps.Feed.Stores(ctx)
	if err != nil {
		return nil, err
	}
	for i := range stores {
		if stores[i].ID == id {
			return &stores[i], nil
		}
	}
	return nil, errors.New("remembered store no longer exists")
}

// mountDashboard mounts the dashboard's cache resources. Stored snapshots
// render at once; fresh values arrive through resourceChangedMsg.
func (a *App) mountDashboard() {
	a.dash = dashboard.New(a.deps.Session.User(), a.width, a.contentHeight())
	opts := cache.MountOptions{
		RevalidateOnFocus: true,
		OnChange:          func() { a.post(resourceChangedMsg{}) },
	}
	a.insight = a.deps.Feed.MountInsight(a.ctx, opts)
	a.stores = a.deps.Feed.MountStores(a.ctx, opts)
	a.reviews = nil
	a.store = nil
	a.mountReviews()
	a.syncDashboard()
}

// mountReviews mounts the review page once the selected store is known
func (a *App) mountReviews() {
	if a.screen != ScreenDashboard || a.stores == nil {
		return
	}
	stores, ok := a.stores.Current()
	if !ok || len(stores) == 0 {
		return
	}
	store := pickStore(a.ctx, a.deps.Prefs, stores)
	if a.reviews != nil && a.store != nil && a.store.ID == store.ID {
		return
	}
	a.store = store
	q := models.ReviewQuery{StoreID: store.ID, Limit: reviewPageSize}
	a.reviews = a.deps.Feed.MountReviews(a.ctx, q, cache.MountOptions{
		RevalidateOnFocus: true,
		OnChange:          func() { a.post(resourceChangedMsg{}) },
	})
}

// pickStore prefers the remembered store and falls back to the first one
func pickStore(ctx context.Context, p *prefs.Prefs, stores []models.Store) *models.Store {
	if id, err := p.LastStore(ctx); err == nil && id != "" {
		for i := range stores {
			if stores[i].ID == id {
				return &stores[i]
			}
		}
	}
	return &stores[0]
}

// syncDashboard copies resource values into the dashboard view
func (a *App) syncDashboard() {
	if a.dash == nil {
		return
	}
	a.dash.SetUser(a.deps.Session.User())
	a.dash.SetStore(a.store)

	loading := false
	var err error
	if a.insight != nil {
		if v, ok := a.insight.Current(); ok {
			a.dash.SetInsight(&v)
		}
		loading = loading || a.insight.Loading()
		err = a.insight.Err()
	}
	if a.reviews != nil {
		if v, ok := a.reviews.Current(); ok {
			a.dash.SetReviews(&v)
		}
		loading = loading || a.reviews.Loading()
		if err == nil {
			err = a.reviews.Err()
		}
	}
	a.dash.SetStatus(loading, err)
	if !loading && err == nil {
		a.lastUpdate = time.Now()
	}
}

func (a *App) revalidate() {
	if a.insight != nil {
		a.insight.Revalidate(a.ctx)
	}
	if a.stores != nil {
		a.stores.Revalidate(a.ctx)
	}
	if a.reviews != nil {
		a.reviews.Revalidate(a.ctx)
	}
	a.syncDashboard()
}

func (a *App) focusResources() {
	if a.insight != nil {
		a.insight.Focus(a.ctx)
	}
	if a.stores != nil {
		a.stores.Focus(a.ctx)
	}
	if a.reviews != nil {
		a.reviews.Focus(a.ctx)
	}
}

// checkBilling resumes a purchase left waiting for confirmation
func (a *App) checkBilling() tea.Cmd {
	if a.billingBusy || a.deps.Billing == nil {
		return nil
	}
	a.billingBusy = true
	ctx := a.ctx
	flow := a.deps.Billing
	return func() tea.Msg {
		user, resumed, err := flow.Resume(ctx)
		return billingCheckedMsg{user: user, resumed: resumed, err: err}
	}
}

func reportTitle(r *models.Report) string {
	if r.Title != "" {
		return r.Title
	}
	return r.ID
}

// View implements tea.Model
func (a *App) View() string {
	var content string
	switch a.screen {
	case ScreenIntro:
		content = a.viewIntro()
	case ScreenLogin:
		if a.login != nil {
			content = a.login.View()
		}
	case ScreenSetup:
		if a.wizard != nil {
			content = a.wizard.View()
		} else {
			content = "Loading setup..."
		}
	case ScreenDashboard:
		if a.dash != nil {
			content = styles.ActivePanel.Width(a.panelWidth()).Render(a.dash.View())
		}
	case ScreenBilling:
		content = a.viewBilling()
	default:
		content = styles.Subtitle.Render("Checking session...")
	}

	if a.err != nil {
		content = styles.StatusCritical.Render("Error: "+client.UserMessage(a.err)) + "\n\n" + content
	}
	return a.wrapWithFrame(content)
}

func (a *App) viewIntro() string {
	var sb strings.Builder
	sb.WriteString(styles.Title.Render(icons.App.String() + " Welcome to Review Insight"))
	sb.WriteString("\n")
	sb.WriteString("Collect your store's reviews from every channel and let AI\n")
	sb.WriteString("summarize what customers love and what to fix.\n\n")
	sb.WriteString(styles.KeyStyle.Render("Enter") + " Log in")
	return sb.String()
}

func (a *App) viewBilling() string {
	var sb strings.Builder
	sb.WriteString(styles.Title.Render(icons.Credits.String() + " Credits"))
	sb.WriteString("\n")
	if u := a.deps.Session.User(); u != nil {
		sb.WriteString(fmt.Sprintf("Balance: %s credits\n", styles.ValueStyle.Render(fmt.Sprint(u.Credits))))
		if u.Subscribed() {
			sb.WriteString(styles.StatusOK.Render("Subscription active") + "\n")
		}
	}
	sb.WriteString("\n")
	if a.billingBusy {
		sb.WriteString(styles.Subtitle.Render(icons.Refresh.String()+" Checking pending purchase...") + "\n")
	}
	sb.WriteString("Buy credits with: review-insight credits buy --package <id>\n")
	return styles.Panel.Width(a.panelWidth()).Render(sb.String())
}

func (a *App) frameWidth() int {
	width := a.width - 1
	if width < minTerminalWidth {
		width = minTerminalWidth
	}
	return width
}

func (a *App) panelWidth() int {
	return a.frameWidth() - 2
}

// contentHeight is the height left between header and footer
func (a *App) contentHeight() int {
	return a.height - 8
}

func (a *App) renderHeader() string {
	width := a.frameWidth()

	borderStyle := lipgloss.NewStyle().Foreground(styles.Muted)
	titleStyle := lipgloss.NewStyle().Foreground(styles.Primary).Bold(true)
	contextStyle := lipgloss.NewStyle().Foreground(styles.Secondary)

	left := fmt.Sprintf(" %s %s ", icons.App.String(), titleStyle.Render("Review Insight"))
	right := ""
	if u := a.deps.Session.User(); u != nil && a.screen != ScreenIntro && a.screen != ScreenLogin {
		right = " " + contextStyle.Render(u.DisplayName()) + " "
	}

	fill := max(0, width-4-lipgloss.Width(left)-lipgloss.Width(right))
	return borderStyle.Render("╭─" + left + strings.Repeat("─", fill) + right + "─╮")
}

func (a *App) shortcuts() []string {
	switch a.screen {
	case ScreenIntro:
		return []string{"Enter Log in", "q Quit"}
	case ScreenLogin:
		return []string{"Tab Next", "Enter Submit", "Esc Back"}
	case ScreenSetup:
		return []string{"Enter Confirm", "ctrl+r Restart", "Esc Quit"}
	case ScreenDashboard:
		return []string{"r Refresh", "s Setup", "b Credits", "l Logout", "q Quit"}
	case ScreenBilling:
		return []string{"r Check purchase", "d Dashboard", "q Quit"}
	default:
		return []string{"q Quit"}
	}
}

func (a *App) renderFooter() string {
	width := a.frameWidth()

	borderStyle := lipgloss.NewStyle().Foreground(styles.Muted)
	keyStyle := lipgloss.NewStyle().Foreground(styles.Primary)
	labelStyle := lipgloss.NewStyle().Foreground(styles.Muted)
	statusStyle := lipgloss.NewStyle().Foreground(styles.Secondary)

	var styled []string
	for _, s := range a.shortcuts() {
		key, label, _ := strings.Cut(s, " ")
		styled = append(styled, keyStyle.Render(key)+" "+labelStyle.Render(label))
	}
	left := " " + strings.Join(styled, "  ") + " "

	status := a.notice
	if status == "" && !a.lastUpdate.IsZero() && a.screen == ScreenDashboard {
		status = "Updated " + formatTimeSince(a.lastUpdate)
	}
	right := ""
	if status != "" {
		room := width - 4 - lipgloss.Width(left) - 2
		if lipgloss.Width(status) > room {
			status = ""
		} else {
			right = " " + statusStyle.Render(status) + " "
		}
	}

	fill := max(0, width-4-lipgloss.Width(left)-lipgloss.Width(right))
	return borderStyle.Render("╰─" + left + strings.Repeat("─", fill) + right + "─╯")
}

// formatTimeSince formats the time since t in short human form
func formatTimeSince(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < 5*time.Second:
		return "just now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
}

func (a *App) wrapWithFrame(content string) string {
	var sb strings.Builder
	sb.WriteString(a.renderHeader())
	sb.WriteString("\n")
	sb.WriteString(content)
	sb.WriteString("\n")
	sb.WriteString(a.renderFooter())
	return sb.String()
}

// Run starts the TUI at path and blocks until it exits
func Run(ctx context.Context, deps Deps, path string) error {
	app := New(ctx, deps, path)
	defer app.Close()
	return app.Run(ctx)
}

// Run drives the app in the terminal until the user quits or ctx ends
func (a *App) Run(ctx context.Context) error {
	p := tea.NewProgram(
		a,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
		tea.WithReportFocus(),
	)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
