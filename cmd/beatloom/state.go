package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect simulation state",
}

var stateShowCmd = &cobra.Command{
	Use:   "show <game>",
	Short: "Print a game's world, motivation and culture state as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		id := args[0]
		sum, err := a.sched.Summary(ctx, id)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"summary":    sum,
			"world":      a.worlds.GetState(ctx, id),
			"motivation": a.motives.GetState(ctx, id),
			"culture":    a.cultures.GetState(ctx, id),
		})
	},
}

func init() {
	stateCmd.AddCommand(stateShowCmd)
	rootCmd.AddCommand(stateCmd)
}
