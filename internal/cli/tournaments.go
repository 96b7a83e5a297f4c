package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"nifty-paper/internal/models"
	"nifty-paper/internal/tournament"
)

// addTournamentCommands adds tournament commands.
func addTournamentCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:     "tournament",
		Aliases: []string{"tournaments"},
		Short:   "Browse and join trading tournaments",
	}
	cmd.AddCommand(newTournamentListCmd(app))
	cmd.AddCommand(newTournamentMineCmd(app))
	cmd.AddCommand(newTournamentJoinCmd(app))
	cmd.AddCommand(newTournamentLeaderboardCmd(app))
	cmd.AddCommand(newTournamentCreateCmd(app))
	rootCmd.AddCommand(cmd)
}

func newTournamentListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tournaments",
		Example: `  niftypaper tournament list
  niftypaper tournament list --status ACTIVE`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			status, _ := cmd.Flags().GetString("status")
			tournaments, err := app.RESTClient().Tournaments(ctx, status)
			if err != nil {
				output.Error("Failed to fetch tournaments: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(tournaments)
			}

			if len(tournaments) == 0 {
				output.Info("No tournaments found")
				return nil
			}

			table := NewTable(output, "ID", "Name", "Status", "Entry", "Prize Pool", "Entrants", "Starts", "Ends")
			for _, t := range tournaments {
				table.AddRow(
					shortID(t.ID),
					output.BoldText(t.Name),
					tournamentStatusColored(output, t.Status),
					FormatIndianCurrency(t.EntryFee),
					FormatCompact(t.PrizePool),
					fmt.Sprintf("%d/%d", t.Participants, t.MaxEntrants),
					FormatDateTime(t.StartAt),
					FormatDateTime(t.EndAt),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().String("status", "", "filter by status (UPCOMING, ACTIVE, ENDED)")
	return cmd
}

func newTournamentMineCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "mine",
		Short: "List tournaments you have joined",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			tournaments, err := app.RESTClient().MyTournaments(ctx)
			if err != nil {
				output.Error("Failed to fetch tournaments: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(tournaments)
			}

			if len(tournaments) == 0 {
				output.Info("You have not joined any tournaments")
				return nil
			}

			table := NewTable(output, "ID", "Name", "Status", "Ends")
			for _, t := range tournaments {
				table.AddRow(
					shortID(t.ID),
					output.BoldText(t.Name),
					tournamentStatusColored(output, t.Status),
					FormatDateTime(t.EndAt),
				)
			}
			table.Render()
			return nil
		},
	}
}

func newTournamentJoinCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "join TOURNAMENT_ID",
		Short: "Join a tournament",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			id, err := uuid.Parse(args[0])
			if err != nil {
				output.Error("Invalid tournament id: %s", args[0])
				return err
			}

			participant, err := app.RESTClient().JoinTournament(ctx, id)
			if err != nil {
				output.Error("Failed to join: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(participant)
			}
			output.Success("Joined as %s with start balance %s", participant.Username, FormatIndianCurrency(participant.StartBalance))
			return nil
		},
	}
}

func newTournamentLeaderboardCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "leaderboard TOURNAMENT_ID",
		Aliases: []string{"lb"},
		Short:   "Show the tournament leaderboard",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			id, err := uuid.Parse(args[0])
			if err != nil {
				output.Error("Invalid tournament id: %s", args[0])
				return err
			}

			limit, _ := cmd.Flags().GetInt("limit")
			standings, err := app.RESTClient().Leaderboard(ctx, id, limit)
			if err != nil {
				output.Error("Failed to fetch leaderboard: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(standings)
			}

			if len(standings) == 0 {
				output.Info("No participants yet")
				return nil
			}

			table := NewTable(output, "Rank", "Trader", "P&L", "P&L %")
			for _, p := range standings {
				rank := fmt.Sprintf("%d", p.Rank)
				if p.Rank == 1 {
					rank = output.Yellow(rank)
				}
				table.AddRow(
					rank,
					p.Username,
					output.FormatPnL(p.CurrentPnL),
					output.FormatPercent(p.PnLPercent),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "number of entries to show")
	return cmd
}

func newTournamentCreateCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a tournament (admin only)",
		Example: `  niftypaper tournament create --name "Weekly NIFTY Sprint" \
    --entry-fee 500 --prize-pool 50000 --max-entrants 100 \
    --start 2026-09-01T09:15:00+05:30 --end 2026-09-05T15:30:00+05:30`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			name, _ := cmd.Flags().GetString("name")
			description, _ := cmd.Flags().GetString("description")
			entryFee, _ := cmd.Flags().GetFloat64("entry-fee")
			prizePool, _ := cmd.Flags().GetFloat64("prize-pool")
			maxEntrants, _ := cmd.Flags().GetInt("max-entrants")
			startStr, _ := cmd.Flags().GetString("start")
			endStr, _ := cmd.Flags().GetString("end")

			startAt, err := time.Parse(time.RFC3339, startStr)
			if err != nil {
				output.Error("Invalid --start time, expected RFC3339: %v", err)
				return err
			}
			endAt, err := time.Parse(time.RFC3339, endStr)
			if err != nil {
				output.Error("Invalid --end time, expected RFC3339: %v", err)
				return err
			}

			created, err := app.RESTClient().CreateTournament(ctx, tournament.CreateRequest{
				Name:        name,
				Description: description,
				EntryFee:    entryFee,
				PrizePool:   prizePool,
				MaxEntrants: maxEntrants,
				StartAt:     startAt,
				EndAt:       endAt,
			})
			if err != nil {
				output.Error("Failed to create tournament: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(created)
			}
			output.Success("Created tournament %s (%s)", created.Name, shortID(created.ID))
			return nil
		},
	}

	cmd.Flags().String("name", "", "tournament name (required)")
	cmd.Flags().String("description", "", "tournament description")
	cmd.Flags().Float64("entry-fee", 0, "entry fee deducted from the wallet on join")
	cmd.Flags().Float64("prize-pool", 0, "advertised prize pool")
	cmd.Flags().Int("max-entrants", 100, "maximum participants")
	cmd.Flags().String("start", "", "start time, RFC3339 (required)")
	cmd.Flags().String("end", "", "end time, RFC3339 (required)")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("end")
	return cmd
}

func tournamentStatusColored(output *Output, status models.TournamentStatus) string {
	switch status {
	case models.TournamentActive:
		return output.Green(string(status))
	case models.TournamentEnded:
		return output.DimText(string(status))
	default:
		return output.Cyan(string(status))
	}
}
