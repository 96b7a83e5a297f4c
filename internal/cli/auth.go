package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// addAuthCommands adds account and session commands.
func addAuthCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newSignupCmd(app))
	rootCmd.AddCommand(newLoginCmd(app))
	rootCmd.AddCommand(newLogoutCmd(app))
	rootCmd.AddCommand(newWhoamiCmd(app))
}

func newSignupCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create a new trading account",
		Long: `Create a new account on the server. The wallet starts with the
configured initial balance.`,
		Example: `  niftypaper signup
  niftypaper signup --username trader1 --email trader1@example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			username, _ := cmd.Flags().GetString("username")
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")

			reader := bufio.NewReader(cmd.InOrStdin())
			if username == "" {
				username = prompt(output, reader, "Username: ")
			}
			if email == "" {
				email = prompt(output, reader, "Email: ")
			}
			if password == "" {
				password = prompt(output, reader, "Password: ")
			}

			result, err := app.RESTClient().Signup(ctx, username, email, password)
			if err != nil {
				output.Error("Signup failed: %v", err)
				return err
			}

			if err := saveAuthSession(app, result.Token, result.User.Username, result.User.Email, result.User.IsAdmin); err != nil {
				output.Warning("Failed to save session: %v", err)
			}

			if output.IsJSON() {
				return output.JSON(result.User)
			}
			output.Success("Account created for %s", result.User.Username)
			output.Info("Wallet funded with %s", FormatIndianCurrency(app.Config.Trading.InitialBalance))
			return nil
		},
	}

	cmd.Flags().String("username", "", "account username")
	cmd.Flags().String("email", "", "account email")
	cmd.Flags().String("password", "", "account password")
	return cmd
}

func newLoginCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login [identifier]",
		Short: "Log in with email or username",
		Example: `  niftypaper login trader1
  niftypaper login trader1@example.com --password secret`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			reader := bufio.NewReader(cmd.InOrStdin())

			identifier := ""
			if len(args) > 0 {
				identifier = args[0]
			}
			if identifier == "" {
				identifier = prompt(output, reader, "Email or username: ")
			}

			password, _ := cmd.Flags().GetString("password")
			if password == "" {
				password = prompt(output, reader, "Password: ")
			}

			result, err := app.RESTClient().Login(ctx, identifier, password)
			if err != nil {
				output.Error("Login failed: %v", err)
				return err
			}

			if err := saveAuthSession(app, result.Token, result.User.Username, result.User.Email, result.User.IsAdmin); err != nil {
				output.Warning("Failed to save session: %v", err)
			}

			if output.IsJSON() {
				return output.JSON(result.User)
			}
			output.Success("Logged in as %s", result.User.Username)
			return nil
		},
	}

	cmd.Flags().String("password", "", "account password")
	return cmd
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the saved session",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := ClearSession(app.ConfigDir); err != nil {
				return err
			}
			app.Session = nil
			if output.IsJSON() {
				return output.JSON(map[string]bool{"logged_out": true})
			}
			output.Success("Logged out")
			return nil
		},
	}
}

func newWhoamiCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			if app.Session == nil {
				output.Warning("Not logged in. Run 'niftypaper login' first.")
				return fmt.Errorf("not logged in")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			user, err := app.RESTClient().Me(ctx)
			if err != nil {
				output.Error("Session check failed: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(user)
			}
			output.Bold(user.Username)
			output.Printf("  Email:  %s\n", user.Email)
			if user.IsAdmin {
				output.Printf("  Role:   admin\n")
			}
			output.Printf("  Joined: %s\n", FormatDate(user.CreatedAt))
			return nil
		},
	}
}

func saveAuthSession(app *App, token, username, email string, isAdmin bool) error {
	session := &Session{
		Token:    token,
		Username: username,
		Email:    email,
		IsAdmin:  isAdmin,
	}
	if err := SaveSession(app.ConfigDir, session); err != nil {
		return err
	}
	app.Session = session
	return nil
}

func prompt(output *Output, reader *bufio.Reader, label string) string {
	output.Print("%s", label)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}
