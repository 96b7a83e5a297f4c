package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"nifty-paper/internal/auth"
	"nifty-paper/internal/engine"
	"nifty-paper/internal/feed"
	"nifty-paper/internal/server"
	"nifty-paper/internal/store"
	"nifty-paper/internal/stream"
	"nifty-paper/internal/tournament"
)

func newServeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server with the simulated market feed",
		Long: `Run the full stack: simulated price feed, candle aggregation, paper
trading engine, tournament scheduler and the REST/WebSocket API.`,
		Example: `  niftypaper serve
  niftypaper serve --addr :9000
  niftypaper serve --backfill 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			cfg := app.Config
			logger := app.Logger

			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.Server.Addr = addr
			}
			if days, _ := cmd.Flags().GetInt("backfill"); cmd.Flags().Changed("backfill") {
				cfg.Feed.HistoryDays = days
			}

			dataStore, err := store.NewSQLiteStore(cfg.Database.Path)
			if err != nil {
				return err
			}
			defer dataStore.Close()
			logger.Info().Str("path", cfg.Database.Path).Msg("SQLite store ready")

			catalog := feed.NewCatalog()
			if cfg.Feed.InstrumentsCSV != "" {
				if err := catalog.LoadCSV(cfg.Feed.InstrumentsCSV); err != nil {
					logger.Warn().Err(err).Str("path", cfg.Feed.InstrumentsCSV).
						Msg("Failed to load instrument CSV, using builtin catalog")
					catalog.LoadBuiltin()
				}
			} else {
				catalog.LoadBuiltin()
			}
			logger.Info().Int("instruments", catalog.Len()).Msg("Instrument catalog loaded")

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			hub := stream.NewHub()
			if err := hub.Start(ctx); err != nil {
				return err
			}
			defer hub.Stop()

			builder := feed.NewCandleBuilder(dataStore, logger)
			hub.RegisterConsumer(builder)
			defer builder.Flush()

			if cfg.Feed.HistoryDays > 0 {
				output.Info("Backfilling %d days of candles...", cfg.Feed.HistoryDays)
				if err := feed.Backfill(ctx, dataStore, catalog, cfg.Feed.HistoryDays, logger); err != nil {
					logger.Warn().Err(err).Msg("Candle backfill failed")
				}
			}

			sim := feed.NewSimulator(feed.SimulatorConfig{
				TickIntervalMin: cfg.Feed.TickIntervalMin,
				TickIntervalMax: cfg.Feed.TickIntervalMax,
				MaxMovePercent:  cfg.Feed.MaxMovePercent,
			}, catalog, hub, logger)
			sim.Start(ctx)
			defer sim.Stop()

			eng := engine.New(dataStore, catalog, sim, cfg.Trading, logger)
			go eng.Run(ctx, 0)

			authService := auth.NewService(dataStore, cfg.Server.JWTSecret, cfg.Server.TokenTTL, cfg.Trading.InitialBalance, logger)

			tournaments := tournament.NewService(dataStore, eng, logger)
			if err := tournaments.StartScheduler(); err != nil {
				return err
			}
			defer tournaments.Stop()

			srv := server.New(cfg.Server, server.Deps{
				Auth:        authService,
				Engine:      eng,
				Tournaments: tournaments,
				Store:       dataStore,
				Catalog:     catalog,
				Simulator:   sim,
				StreamHub:   hub,
			}, logger)

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()

			output.Success("Server listening on %s", cfg.Server.Addr)
			output.Dim("Press Ctrl+C to stop")

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logger.Info().Str("signal", sig.String()).Msg("Shutting down")
			}

			timeout := cfg.Server.ShutdownTimeout
			if timeout <= 0 {
				timeout = 10 * time.Second
			}
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
			defer shutdownCancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().String("addr", "", "listen address (overrides config)")
	cmd.Flags().Int("backfill", 0, "days of candle history to backfill")
	return cmd
}
