package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"nifty-paper/internal/engine"
	"nifty-paper/internal/models"
)

// addPaperCommands adds paper trading commands.
func addPaperCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newOrderCmd(app))
	rootCmd.AddCommand(newPositionsCmd(app))
	rootCmd.AddCommand(newPortfolioCmd(app))
	rootCmd.AddCommand(newWalletCmd(app))
}

func newOrderCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Place and manage paper orders",
	}
	cmd.AddCommand(newOrderPlaceCmd(app))
	cmd.AddCommand(newOrderListCmd(app))
	cmd.AddCommand(newOrderCancelCmd(app))
	return cmd
}

func newOrderPlaceCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "place",
		Short: "Place a paper order",
		Long: `Place a simulated order. Quantity is in lots for derivatives and
shares for equities. Market orders fill at the simulated LTP; limit
orders rest until the price crosses the limit.`,
		Example: `  niftypaper order place --symbol NIFTY25SEP24900CE --side BUY --qty 1
  niftypaper order place --symbol BANKNIFTY25SEP52000PE --side SELL --qty 2 --type LIMIT --price 340.50`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			symbol, _ := cmd.Flags().GetString("symbol")
			side, _ := cmd.Flags().GetString("side")
			orderType, _ := cmd.Flags().GetString("type")
			product, _ := cmd.Flags().GetString("product")
			qty, _ := cmd.Flags().GetInt("qty")
			price, _ := cmd.Flags().GetFloat64("price")

			req := engine.OrderRequest{
				Symbol:   strings.ToUpper(strings.TrimSpace(symbol)),
				Side:     models.OrderSide(strings.ToUpper(side)),
				Type:     models.OrderType(strings.ToUpper(orderType)),
				Product:  models.ProductType(strings.ToUpper(product)),
				Quantity: qty,
				Price:    price,
			}

			order, err := app.RESTClient().PlaceOrder(ctx, req)
			if err != nil {
				if order != nil && order.Reason != "" {
					output.Error("Order rejected: %s", order.Reason)
				} else {
					output.Error("Order failed: %v", err)
				}
				return err
			}

			if output.IsJSON() {
				return output.JSON(order)
			}

			output.Success("Order %s %s", order.Status, shortID(order.ID))
			output.Printf("  %s %s x%d", order.Side, order.Symbol, order.Quantity)
			if order.Status == models.OrderStatusComplete {
				output.Printf(" @ %s", FormatPrice(order.AveragePrice))
				output.Printf("  (charges %s)", FormatIndianCurrency(order.Charges))
			}
			output.Println()
			return nil
		},
	}

	cmd.Flags().String("symbol", "", "trading symbol (required)")
	cmd.Flags().String("side", "BUY", "BUY or SELL")
	cmd.Flags().String("type", "MARKET", "MARKET or LIMIT")
	cmd.Flags().String("product", "MIS", "MIS, CNC or NRML")
	cmd.Flags().Int("qty", 1, "quantity in lots (derivatives) or shares")
	cmd.Flags().Float64("price", 0, "limit price")
	cmd.MarkFlagRequired("symbol")
	return cmd
}

func newOrderListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List paper orders",
		Example: `  niftypaper order list
  niftypaper order list --status OPEN`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			status, _ := cmd.Flags().GetString("status")
			limit, _ := cmd.Flags().GetInt("limit")

			orders, err := app.RESTClient().Orders(ctx, strings.ToUpper(status), limit)
			if err != nil {
				output.Error("Failed to fetch orders: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(orders)
			}

			if len(orders) == 0 {
				output.Info("No orders found")
				return nil
			}

			table := NewTable(output, "ID", "Time", "Symbol", "Side", "Type", "Qty", "Price", "Status")
			for _, o := range orders {
				price := FormatPrice(o.AveragePrice)
				if o.Status == models.OrderStatusOpen {
					price = FormatPrice(o.Price)
				}
				table.AddRow(
					shortID(o.ID),
					FormatTime(o.PlacedAt),
					o.Symbol,
					sideColored(output, o.Side),
					string(o.Type),
					FormatQuantity(int64(o.Quantity)),
					price,
					statusColored(output, o.Status),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().String("status", "", "filter by status (OPEN, COMPLETE, CANCELLED, REJECTED)")
	cmd.Flags().Int("limit", 50, "maximum orders to show")
	return cmd
}

func newOrderCancelCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ORDER_ID",
		Short: "Cancel an open order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			orderID, err := uuid.Parse(args[0])
			if err != nil {
				output.Error("Invalid order id: %s", args[0])
				return err
			}

			order, err := app.RESTClient().CancelOrder(ctx, orderID)
			if err != nil {
				output.Error("Cancel failed: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(order)
			}
			output.Success("Cancelled %s %s x%d", order.Symbol, order.Side, order.Quantity)
			return nil
		},
	}
}

func newPositionsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "positions",
		Short: "Show open positions",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			positions, err := app.RESTClient().Positions(ctx)
			if err != nil {
				output.Error("Failed to fetch positions: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(positions)
			}

			if len(positions) == 0 {
				output.Info("No open positions")
				return nil
			}

			table := NewTable(output, "Symbol", "Qty", "Avg", "LTP", "P&L", "P&L %")
			var totalPnL float64
			for _, p := range positions {
				totalPnL += p.PnL
				table.AddRow(
					output.BoldText(p.Symbol),
					FormatQuantity(int64(p.Quantity)),
					FormatPrice(p.AveragePrice),
					FormatPrice(p.LTP),
					output.FormatPnL(p.PnL),
					output.FormatPercent(p.PnLPercent),
				)
			}
			table.Render()
			output.Printf("Total P&L: %s\n", output.FormatPnL(totalPnL))
			return nil
		},
	}
}

func newPortfolioCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "portfolio",
		Short: "Show the portfolio summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			summary, err := app.RESTClient().Portfolio(ctx)
			if err != nil {
				output.Error("Failed to fetch portfolio: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(summary)
			}

			output.Box("Portfolio", []string{
				fmt.Sprintf("Wallet Balance : %s", FormatIndianCurrency(summary.WalletBalance)),
				fmt.Sprintf("Invested       : %s", FormatIndianCurrency(summary.InvestedValue)),
				fmt.Sprintf("Current Value  : %s", FormatIndianCurrency(summary.CurrentValue)),
				fmt.Sprintf("Unrealized P&L : %s", output.FormatPnL(summary.UnrealizedPnL)),
				fmt.Sprintf("Realized P&L   : %s", output.FormatPnL(summary.RealizedPnL)),
				fmt.Sprintf("Total Value    : %s (%s)", FormatIndianCurrency(summary.TotalValue), output.FormatPercent(summary.PnLPercent)),
				fmt.Sprintf("Open Positions : %d", summary.OpenPositions),
				fmt.Sprintf("Orders Today   : %d", summary.OrdersToday),
				fmt.Sprintf("Total Charges  : %s", FormatIndianCurrency(summary.TotalCharges)),
			})
			return nil
		},
	}
}

func newWalletCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Show the paper wallet",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			wallet, err := app.RESTClient().Wallet(ctx)
			if err != nil {
				output.Error("Failed to fetch wallet: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(wallet)
			}

			output.Box("Wallet", []string{
				fmt.Sprintf("Balance     : %s", FormatIndianCurrency(wallet.Balance)),
				fmt.Sprintf("Deposits    : %s", FormatIndianCurrency(wallet.TotalDeposits)),
				fmt.Sprintf("Withdrawals : %s", FormatIndianCurrency(wallet.TotalWithdrawals)),
			})
			return nil
		},
	}

	cmd.AddCommand(newWalletDepositCmd(app))
	cmd.AddCommand(newWalletWithdrawCmd(app))
	cmd.AddCommand(newWalletHistoryCmd(app))
	return cmd
}

func newWalletDepositCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "deposit AMOUNT",
		Short: "Add paper funds to the wallet",
		Args:  cobra.ExactArgs(1),
		RunE:  walletMoveRunE(app, "deposit"),
	}
}

func newWalletWithdrawCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw AMOUNT",
		Short: "Remove paper funds from the wallet",
		Args:  cobra.ExactArgs(1),
		RunE:  walletMoveRunE(app, "withdraw"),
	}
}

func walletMoveRunE(app *App, direction string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		output := NewOutput(cmd)
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		var amount float64
		if _, err := fmt.Sscanf(args[0], "%f", &amount); err != nil || amount <= 0 {
			output.Error("Invalid amount: %s", args[0])
			return fmt.Errorf("invalid amount %q", args[0])
		}

		move := app.RESTClient().Deposit
		if direction == "withdraw" {
			move = app.RESTClient().Withdraw
		}

		wallet, err := move(ctx, amount)
		if err != nil {
			output.Error("Failed to %s: %v", direction, err)
			return err
		}

		if output.IsJSON() {
			return output.JSON(wallet)
		}
		output.Success("New balance: %s", FormatIndianCurrency(wallet.Balance))
		return nil
	}
}

func newWalletHistoryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent wallet transactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			limit, _ := cmd.Flags().GetInt("limit")
			txns, err := app.RESTClient().WalletTransactions(ctx, limit)
			if err != nil {
				output.Error("Failed to fetch transactions: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(txns)
			}

			if len(txns) == 0 {
				output.Info("No transactions")
				return nil
			}

			table := NewTable(output, "Time", "Type", "Amount", "Balance", "Reference")
			for _, txn := range txns {
				table.AddRow(
					FormatDateTime(txn.CreatedAt),
					string(txn.Type),
					output.FormatPnL(txn.Amount),
					FormatIndianCurrency(txn.Balance),
					txn.Reference,
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "maximum transactions to show")
	return cmd
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}

func sideColored(output *Output, side models.OrderSide) string {
	if side == models.OrderSideBuy {
		return output.Green(string(side))
	}
	return output.Red(string(side))
}

func statusColored(output *Output, status models.OrderStatus) string {
	switch status {
	case models.OrderStatusComplete:
		return output.Green(string(status))
	case models.OrderStatusRejected:
		return output.Red(string(status))
	case models.OrderStatusCancelled:
		return output.DimText(string(status))
	default:
		return output.Yellow(string(status))
	}
}
