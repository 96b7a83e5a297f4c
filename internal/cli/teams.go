package cli

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// addTeamCommands adds team commands.
func addTeamCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:     "team",
		Aliases: []string{"teams"},
		Short:   "Manage trading teams",
	}
	cmd.AddCommand(newTeamListCmd(app))
	cmd.AddCommand(newTeamCreateCmd(app))
	cmd.AddCommand(newTeamJoinCmd(app))
	cmd.AddCommand(newTeamMembersCmd(app))
	rootCmd.AddCommand(cmd)
}

func newTeamListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List teams",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			teams, err := app.RESTClient().Teams(ctx)
			if err != nil {
				output.Error("Failed to fetch teams: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(teams)
			}

			if len(teams) == 0 {
				output.Info("No teams found")
				return nil
			}

			table := NewTable(output, "ID", "Name", "Members", "Created")
			for _, team := range teams {
				table.AddRow(
					shortID(team.ID),
					output.BoldText(team.Name),
					FormatQuantity(int64(team.Members)),
					FormatDateTime(team.CreatedAt),
				)
			}
			table.Render()
			return nil
		},
	}
}

func newTeamCreateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "create NAME",
		Short: "Create a team",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			team, err := app.RESTClient().CreateTeam(ctx, args[0])
			if err != nil {
				output.Error("Failed to create team: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(team)
			}
			output.Success("Created team %s (%s)", team.Name, shortID(team.ID))
			return nil
		},
	}
}

func newTeamJoinCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "join TEAM_ID",
		Short: "Join a team",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			id, err := uuid.Parse(args[0])
			if err != nil {
				output.Error("Invalid team id: %s", args[0])
				return err
			}

			member, err := app.RESTClient().JoinTeam(ctx, id)
			if err != nil {
				output.Error("Failed to join team: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(member)
			}
			output.Success("Joined team %s", shortID(member.TeamID))
			return nil
		},
	}
}

func newTeamMembersCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "members TEAM_ID",
		Short: "Show a team's roster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			id, err := uuid.Parse(args[0])
			if err != nil {
				output.Error("Invalid team id: %s", args[0])
				return err
			}

			members, err := app.RESTClient().TeamMembers(ctx, id)
			if err != nil {
				output.Error("Failed to fetch members: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(members)
			}

			if len(members) == 0 {
				output.Info("Team has no members")
				return nil
			}

			table := NewTable(output, "User", "Joined")
			for _, m := range members {
				table.AddRow(shortID(m.UserID), FormatDateTime(m.JoinedAt))
			}
			table.Render()
			return nil
		},
	}
}
