// Package cli provides the command-line interface for the paper trading
// application.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"nifty-paper/internal/client"
	"nifty-paper/internal/config"
	"nifty-paper/internal/logging"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2026-08-30"
)

// App holds the application dependencies shared by commands.
type App struct {
	Config    *config.Config
	ConfigDir string
	Logger    zerolog.Logger
	Client    *client.REST
	Session   *Session
}

// RESTClient returns the API client, attaching the saved session token when
// present.
func (a *App) RESTClient() *client.REST {
	if a.Client == nil {
		a.Client = client.NewREST(a.Config.Client)
	}
	if a.Session != nil && a.Client.Token() == "" {
		a.Client.SetToken(a.Session.Token)
	}
	return a.Client
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "niftypaper",
		Short: "Paper trading dashboard for NIFTY and BANKNIFTY index options",
		Long: `niftypaper is a paper trading platform for Indian index options.

It runs a simulated market feed with a REST and WebSocket API, and this CLI
talks to that API: watchlists, candles, the options chain, paper orders
against a simulated wallet, positions and tournament leaderboards.

Start the server with 'niftypaper serve', then sign up and trade:

  niftypaper signup
  niftypaper order place --symbol NIFTY25SEP24500CE --side BUY --qty 1
  niftypaper portfolio`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}

			configDir, _ := cmd.Flags().GetString("config")
			app.ConfigDir = configDir

			session, err := LoadSession(configDir)
			if err != nil {
				app.Logger.Warn().Err(err).Msg("Failed to load session")
			}
			app.Session = session
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/niftypaper)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newServeCmd(app))
	addAuthCommands(rootCmd, app)
	addMarketCommands(rootCmd, app)
	addPaperCommands(rootCmd, app)
	addTournamentCommands(rootCmd, app)
	addTeamCommands(rootCmd, app)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("niftypaper v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("Server")
	output.Printf("  Addr:             %s\n", cfg.Server.Addr)
	output.Printf("  Shutdown Timeout: %s\n", cfg.Server.ShutdownTimeout)
	output.Println()

	output.Bold("Client")
	output.Printf("  Base URL: %s\n", cfg.Client.BaseURL)
	output.Printf("  WS URL:   %s\n", cfg.Client.WSURL)
	output.Println()

	output.Bold("Trading")
	output.Printf("  Initial Balance: %s\n", FormatIndianCurrency(cfg.Trading.InitialBalance))
	output.Printf("  Max Position:    %s\n", FormatIndianCurrency(cfg.Trading.MaxPositionSize))
	output.Printf("  Max Orders/Day:  %d\n", cfg.Trading.MaxOrdersPerDay)
	output.Printf("  Min Order Value: %s\n", FormatIndianCurrency(cfg.Trading.MinOrderValue))
	output.Printf("  Default Product: %s\n", cfg.Trading.DefaultProduct)
	output.Printf("  Enforce Hours:   %v\n", cfg.Trading.EnforceHours)
	output.Println()

	output.Bold("Feed")
	output.Printf("  Tick Interval:  %s - %s\n", cfg.Feed.TickIntervalMin, cfg.Feed.TickIntervalMax)
	output.Printf("  Max Move:       %.2f%%\n", cfg.Feed.MaxMovePercent)
	output.Printf("  History Days:   %d\n", cfg.Feed.HistoryDays)
	output.Println()

	output.Bold("Database")
	output.Printf("  Path: %s\n", cfg.Database.Path)

	return nil
}
