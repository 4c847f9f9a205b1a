package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/beatloom/internal/story"
)

var gameCmd = &cobra.Command{
	Use:   "game",
	Short: "Create and inspect games",
}

var (
	gameID         string
	gameFrequency  string
	gameMaxPlayers int
	gameStatus     string
)

var gameCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a game and schedule its first cycle",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		g := story.Game{
			ID:         gameID,
			Frequency:  story.Frequency(gameFrequency),
			MaxPlayers: gameMaxPlayers,
		}
		if len(args) > 0 {
			g.Name = args[0]
		}
		g, c, err := a.sched.CreateGame(ctx, g)
		if err != nil {
			return err
		}
		fmt.Printf("Created game %s (%s, %s, up to %d players)\n", g.ID, g.Name, g.Frequency, g.MaxPlayers)
		fmt.Printf("Cycle %d runs %s; input closes %s\n",
			c.Sequence, humanize.Time(c.ScheduledStart), humanize.Time(c.InputDeadline))
		return nil
	},
}

var gameListCmd = &cobra.Command{
	Use:   "list",
	Short: "List games",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		games, err := a.db.ListGames(ctx, story.GameStatus(gameStatus))
		if err != nil {
			return err
		}
		for _, g := range games {
			last := "never"
			if g.LastCycleAt != nil {
				last = humanize.Time(*g.LastCycleAt)
			}
			fmt.Printf("%-36s  %-8s  %-7s  last beat %s  %s\n", g.ID, g.Status, g.Frequency, last, g.Name)
		}
		return nil
	},
}

func init() {
	gameCreateCmd.Flags().StringVar(&gameID, "id", "", "game id (default: random uuid)")
	gameCreateCmd.Flags().StringVar(&gameFrequency, "frequency", string(story.Daily), "cycle cadence: hourly, daily, weekly")
	gameCreateCmd.Flags().IntVar(&gameMaxPlayers, "max-players", story.DefaultMaxPlayers, "roster cap")
	gameListCmd.Flags().StringVar(&gameStatus, "status", "", "filter by status: active, archived")

	gameCmd.AddCommand(gameCreateCmd, gameListCmd)
	rootCmd.AddCommand(gameCmd)
}
