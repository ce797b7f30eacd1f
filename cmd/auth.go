// ABOUTME: Account commands: login, signup, logout and whoami
// ABOUTME: Login prompts for missing credentials with a huh form

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/markalston/review-insight/internal/models"
	"github.com/markalston/review-insight/internal/session"
	"github.com/markalston/review-insight/internal/tui/styles"
)

var (
	authEmail    string
	authPassword string
	authName     string
	authPhone    string
	whoamiFresh  bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to Review Insight",
	Long:  `Log in with email and password. Missing values are prompted for.`,
	Run:   withSignals(runLogin),
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account and log in",
	Run:   withSignals(runSignup),
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and drop cached data",
	Run:   withSignals(runLogout),
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in user",
	Run:   withSignals(runWhoami),
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, signupCmd} {
		c.Flags().StringVar(&authEmail, "email", "", "Account email")
		c.Flags().StringVar(&authPassword, "password", "", "Account password")
	}
	signupCmd.Flags().StringVar(&authName, "name", "", "Your name")
	signupCmd.Flags().StringVar(&authPhone, "phone", "", "Phone number (optional)")
	whoamiCmd.Flags().BoolVar(&whoamiFresh, "refresh", false, "Fetch the profile from the backend first")

	rootCmd.AddCommand(loginCmd, signupCmd, logoutCmd, whoamiCmd)
}

// promptCredentials asks for whichever of email and password is missing
func promptCredentials(email, password *string) error {
	var fields []huh.Field
	if *email == "" {
		fields = append(fields, huh.NewInput().Title("Email").Value(email))
	}
	if *password == "" {
		fields = append(fields, huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(password))
	}
	if len(fields) == 0 {
		return nil
	}
	return huh.NewForm(huh.NewGroup(fields...)).WithTheme(styles.FormTheme()).Run()
}

func runLogin(ctx context.Context, w io.Writer, _ []string) int {
	email, password := strings.TrimSpace(authEmail), authPassword
	if err := promptCredentials(&email, &password); err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return exitError
	}
	return withApp(ctx, w, func(a *app) int {
		resp, err := a.api.Login(ctx, &models.LoginRequest{Email: email, Password: password})
		if err != nil {
			return printError(w, err)
		}
		return finishAuth(ctx, w, a, resp)
	})
}

func runSignup(ctx context.Context, w io.Writer, _ []string) int {
	req := &models.SignupRequest{
		Email:    strings.TrimSpace(authEmail),
		Password: authPassword,
		Name:     strings.TrimSpace(authName),
		Phone:    strings.TrimSpace(authPhone),
	}
	if req.Email == "" || req.Password == "" || req.Name == "" {
		fmt.Fprintln(w, "Error: --email, --password and --name are required")
		return exitError
	}
	return withApp(ctx, w, func(a *app) int {
		resp, err := a.api.Signup(ctx, req)
		if err != nil {
			return printError(w, err)
		}
		return finishAuth(ctx, w, a, resp)
	})
}

// finishAuth stores the session and clears data cached for a previous user
func finishAuth(ctx context.Context, w io.Writer, a *app, resp *models.AuthResponse) int {
	if err := a.sess.Login(ctx, resp.Token, resp.User); err != nil {
		if errors.Is(err, session.ErrInvalidSession) {
			fmt.Fprintln(w, "Error: the backend did not return a usable session")
			return exitError
		}
		return printError(w, err)
	}
	if err := a.feed.ForgetUser(ctx, a.prefs); err != nil {
		a.logger.Warn("Failed to forget previous user's data after login", "error", err)
	}

	user := a.sess.User()
	onboarded := a.sess.IsOnboarded(ctx, user)
	if IsJSONOutput() {
		printJSON(w, map[string]any{"user": user, "onboarded": onboarded})
		return exitOK
	}
	fmt.Fprintf(w, "Logged in as %s\n", user.DisplayName())
	if !onboarded {
		fmt.Fprintln(w, "Next: run `review-insight setup` to connect your store.")
	}
	return exitOK
}

func runLogout(ctx context.Context, w io.Writer, _ []string) int {
	return withApp(ctx, w, func(a *app) int {
		if err := a.sess.Logout(ctx); err != nil {
			return printError(w, err)
		}
		if err := a.feed.ForgetUser(ctx, a.prefs); err != nil {
			return printError(w, err)
		}
		fmt.Fprintln(w, "Logged out.")
		return exitOK
	})
}

func runWhoami(ctx context.Context, w io.Writer, _ []string) int {
	return withApp(ctx, w, func(a *app) int {
		if !a.requireLogin(ctx, w) {
			return exitError
		}
		user := a.sess.User()
		if whoamiFresh {
			fresh, err := a.sess.Refresh(ctx)
			if err != nil {
				if a.sess.Snapshot().State() != session.StateLoggedIn {
					fmt.Fprintln(w, "Session expired. Run `review-insight login` again.")
					return exitError
				}
				return printError(w, err)
			}
			user = fresh
		}
		onboarded := a.sess.IsOnboarded(ctx, user)
		if IsJSONOutput() {
			printJSON(w, map[string]any{"user": user, "onboarded": onboarded})
			return exitOK
		}
		fmt.Fprintln(w, formatUserHuman(user, onboarded))
		return exitOK
	})
}

// formatUserHuman formats the account summary
func formatUserHuman(u *models.User, onboarded bool) string {
	sub := u.SubscriptionStatus
	if sub == "" {
		sub = models.SubscriptionNone
	}
	setup := "done"
	if !onboarded {
		setup = "not finished"
	}
	return fmt.Sprintf(`User:          %s <%s>
Credits:       %d
Subscription:  %s
Store setup:   %s`,
		u.DisplayName(), u.Email, u.Credits, sub, setup)
}
