package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/beatloom/internal/story"
)

var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Run and recover narrative cycles",
}

var cycleTriggerCmd = &cobra.Command{
	Use:   "trigger <game>",
	Short: "Process the game's scheduled cycle now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		c, err := a.sched.Trigger(ctx, args[0])
		if err != nil {
			return err
		}
		printCycle(c)
		return nil
	},
}

var cycleRetryCmd = &cobra.Command{
	Use:   "retry <game> <cycle-id>",
	Short: "Re-run a cycle left in processing by a failed tick",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid cycle id %q", args[1])
		}
		ctx := cmd.Context()
		a, err := openApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		c, err := a.sched.Retry(ctx, args[0], id)
		if err != nil {
			return err
		}
		printCycle(c)
		return nil
	},
}

var cycleListCmd = &cobra.Command{
	Use:   "list <game>",
	Short: "Show recent cycles, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		cycles, err := a.db.ListCycles(ctx, args[0], 20)
		if err != nil {
			return err
		}
		for _, c := range cycles {
			line := fmt.Sprintf("#%-4d id=%-5d %-10s scheduled %s", c.Sequence, c.ID, c.Status, humanize.Time(c.ScheduledStart))
			if c.LastError != "" {
				line += "  error: " + c.LastError
			}
			fmt.Println(line)
		}
		return nil
	},
}

func printCycle(c story.Cycle) {
	fmt.Printf("Cycle %d (%s): %d of %d actions woven\n", c.Sequence, c.Status, c.ActionsProcessed, c.ActionsCollected)
	if c.NarrativeText != "" {
		fmt.Println()
		fmt.Println(c.NarrativeText)
	}
}

func init() {
	cycleCmd.AddCommand(cycleTriggerCmd, cycleRetryCmd, cycleListCmd)
	rootCmd.AddCommand(cycleCmd)
}
