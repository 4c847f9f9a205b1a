package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/talgya/beatloom/internal/story"
)

var actionCmd = &cobra.Command{
	Use:   "action",
	Short: "Submit participant actions",
}

var (
	actionActor     string
	actionName      string
	actionKind      string
	actionTarget    string
	actionSentiment string
	actionPriority  int
)

var actionSubmitCmd = &cobra.Command{
	Use:   "submit <game> <content>",
	Short: "Queue an action for the game's next cycle",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		act, err := a.ledger.Submit(ctx, story.Action{
			GameID:    args[0],
			ActorID:   actionActor,
			ActorName: actionName,
			Kind:      actionKind,
			Content:   args[1],
			Target:    actionTarget,
			Sentiment: story.Sentiment(actionSentiment),
			Priority:  actionPriority,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Queued action %d for %s (priority %d)\n", act.ID, act.DisplayName(), act.Priority)
		return nil
	},
}

func init() {
	f := actionSubmitCmd.Flags()
	f.StringVar(&actionActor, "actor", "", "actor id (required)")
	f.StringVar(&actionName, "name", "", "actor display name")
	f.StringVar(&actionKind, "kind", story.KindAction, "action kind, e.g. dialogue, economic, cultural")
	f.StringVar(&actionTarget, "target", "", "what the action is aimed at")
	f.StringVar(&actionSentiment, "sentiment", "", "positive, neutral or negative")
	f.IntVar(&actionPriority, "priority", story.DefaultPriority, "higher runs first")
	actionSubmitCmd.MarkFlagRequired("actor")

	actionCmd.AddCommand(actionSubmitCmd)
	rootCmd.AddCommand(actionCmd)
}
