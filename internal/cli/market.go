package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"nifty-paper/internal/client"
	"nifty-paper/internal/models"
)

// addMarketCommands adds market data commands.
func addMarketCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newQuoteCmd(app))
	rootCmd.AddCommand(newChainCmd(app))
	rootCmd.AddCommand(newCandlesCmd(app))
	rootCmd.AddCommand(newWatchCmd(app))
}

func newQuoteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "quote [SYMBOL...]",
		Short: "Show live quotes",
		Long:  `Show quotes for the given symbols. With no arguments the index symbols are shown.`,
		Example: `  niftypaper quote
  niftypaper quote NIFTY BANKNIFTY`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			symbols := make([]string, 0, len(args))
			for _, arg := range args {
				symbols = append(symbols, strings.ToUpper(strings.TrimSpace(arg)))
			}

			quotes, err := app.RESTClient().Quotes(ctx, symbols)
			if err != nil {
				output.Error("Failed to fetch quotes: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(quotes)
			}
			renderQuoteTable(output, quotes)
			return nil
		},
	}
}

func renderQuoteTable(output *Output, quotes []models.Quote) {
	table := NewTable(output, "Symbol", "LTP", "Change", "Open", "High", "Low", "Volume")
	for _, q := range quotes {
		table.AddRow(
			output.BoldText(q.Symbol),
			FormatPrice(q.LTP),
			output.ColoredString(output.PnLColor(q.Change), FormatChange(q.Change, q.ChangePercent)),
			FormatPrice(q.Open),
			FormatPrice(q.High),
			FormatPrice(q.Low),
			FormatVolume(q.Volume),
		)
	}
	table.Render()
}

func newChainCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "chain SYMBOL",
		Short: "Show the option chain for an index",
		Example: `  niftypaper chain NIFTY
  niftypaper chain BANKNIFTY --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			underlying := strings.ToUpper(strings.TrimSpace(args[0]))
			chain, err := app.RESTClient().OptionChain(ctx, underlying)
			if err != nil {
				output.Error("Failed to fetch option chain: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(chain)
			}

			output.Bold("%s  Spot: %s  Expiry: %s", chain.Symbol, FormatPrice(chain.SpotPrice), FormatDate(chain.Expiry))
			output.Println()

			atm := make(map[float64]bool, len(chain.ATM))
			for _, strike := range chain.ATM {
				atm[strike] = true
			}

			table := NewTable(output, "CE LTP", "CE Chg%", "CE OI", "Strike", "PE OI", "PE Chg%", "PE LTP")
			for _, row := range chain.Strikes {
				strikeLabel := fmt.Sprintf("%.0f", row.Strike)
				if atm[row.Strike] {
					strikeLabel = output.Yellow(strikeLabel + " *")
				}
				table.AddRow(
					optionLTP(row.Call),
					optionChange(output, row.Call),
					optionOI(row.Call),
					strikeLabel,
					optionOI(row.Put),
					optionChange(output, row.Put),
					optionLTP(row.Put),
				)
			}
			table.Render()
			output.Dim("* ATM strike")
			return nil
		},
	}
}

func optionLTP(data *models.OptionData) string {
	if data == nil {
		return "-"
	}
	return FormatPrice(data.LTP)
}

func optionChange(output *Output, data *models.OptionData) string {
	if data == nil {
		return "-"
	}
	return output.FormatPercent(data.ChangePercent)
}

func optionOI(data *models.OptionData) string {
	if data == nil {
		return "-"
	}
	return FormatOI(data.OI)
}

func newCandlesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "candles SYMBOL",
		Short: "Show recent OHLC candles",
		Example: `  niftypaper candles NIFTY
  niftypaper candles BANKNIFTY --timeframe 15m --limit 20`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			symbol := strings.ToUpper(strings.TrimSpace(args[0]))
			timeframe, _ := cmd.Flags().GetString("timeframe")
			limit, _ := cmd.Flags().GetInt("limit")

			candles, err := app.RESTClient().Candles(ctx, symbol, timeframe, limit)
			if err != nil {
				output.Error("Failed to fetch candles: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(candles)
			}

			output.Bold("%s  %s candles", symbol, timeframe)
			table := NewTable(output, "Time", "Open", "High", "Low", "Close", "Volume")
			for _, c := range candles {
				table.AddRow(
					FormatDateTime(c.Timestamp),
					FormatPrice(c.Open),
					FormatPrice(c.High),
					FormatPrice(c.Low),
					FormatPrice(c.Close),
					FormatVolume(c.Volume),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().String("timeframe", "5m", "candle timeframe (1m, 5m, 15m, 1h, 1d)")
	cmd.Flags().Int("limit", 20, "number of candles")
	return cmd
}

func newWatchCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show the watchlist",
		Long: `Show the saved watchlist with current quotes. With --live the table
refreshes as price updates stream in over the websocket.`,
		Example: `  niftypaper watch
  niftypaper watch --live`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			if app.Session == nil {
				output.Warning("Not logged in. Run 'niftypaper login' first.")
				return fmt.Errorf("not logged in")
			}

			live, _ := cmd.Flags().GetBool("live")
			if live && !output.IsJSON() {
				return watchLive(app, output)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			entries, err := app.RESTClient().Watchlist(ctx)
			if err != nil {
				output.Error("Failed to fetch watchlist: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(entries)
			}

			if len(entries) == 0 {
				output.Info("Watchlist is empty. Add symbols with 'niftypaper watch add SYMBOL'.")
				return nil
			}

			quotes := make([]models.Quote, 0, len(entries))
			for _, entry := range entries {
				if entry.Quote != nil {
					quotes = append(quotes, *entry.Quote)
				} else {
					quotes = append(quotes, models.Quote{Symbol: entry.Symbol})
				}
			}
			renderQuoteTable(output, quotes)
			return nil
		},
	}

	cmd.AddCommand(newWatchAddCmd(app))
	cmd.AddCommand(newWatchRemoveCmd(app))
	cmd.Flags().Bool("live", false, "stream live updates")
	return cmd
}

func watchLive(app *App, output *Output) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ws := client.NewWS(app.Config.Client.WSURL, app.Session.Token, app.Logger)
	defer ws.Close()

	store := client.NewWatchlistStore(app.RESTClient(), ws, app.Logger)
	updates := make(chan models.Quote, 64)
	store.OnUpdate(func(q models.Quote) {
		select {
		case updates <- q:
		default:
		}
	})

	ws.Start(ctx)
	if err := store.Start(ctx); err != nil {
		output.Error("Failed to load watchlist: %v", err)
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	redraw := time.NewTicker(time.Second)
	defer redraw.Stop()

	output.Info("Watching %s (Ctrl+C to stop)", strings.Join(store.Symbols(), ", "))
	dirty := true
	for {
		select {
		case <-sigCh:
			return nil
		case <-updates:
			dirty = true
		case <-redraw.C:
			if !dirty {
				continue
			}
			dirty = false
			quotes := store.Quotes()
			sort.Slice(quotes, func(i, j int) bool { return quotes[i].Symbol < quotes[j].Symbol })
			output.Println()
			output.Dim(FormatTime(time.Now()))
			renderQuoteTable(output, quotes)
		}
	}
}

func newWatchAddCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "add SYMBOL",
		Short: "Add a symbol to the watchlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			symbol := strings.ToUpper(strings.TrimSpace(args[0]))
			if err := app.RESTClient().AddToWatchlist(ctx, symbol); err != nil {
				output.Error("Failed to add %s: %v", symbol, err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"added": symbol})
			}
			output.Success("Added %s to watchlist", symbol)
			return nil
		},
	}
}

func newWatchRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "remove SYMBOL",
		Aliases: []string{"rm"},
		Short:   "Remove a symbol from the watchlist",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			symbol := strings.ToUpper(strings.TrimSpace(args[0]))
			if err := app.RESTClient().RemoveFromWatchlist(ctx, symbol); err != nil {
				output.Error("Failed to remove %s: %v", symbol, err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"removed": symbol})
			}
			output.Success("Removed %s from watchlist", symbol)
			return nil
		},
	}
}
