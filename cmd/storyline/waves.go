package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/storylinehq/storyline/internal/planning"
	"github.com/storylinehq/storyline/internal/repl"
)

var wavesCmd = &cobra.Command{
	Use:   "waves <story-id>",
	Short: "Show a story's saved tasks grouped by platform and delivery wave",
	Long: `Re-run wave assignment over a story's saved tasks and print them
grouped by platform in wave order.

Wave assignment is deterministic, so re-running it over the same tasks
always produces the same grouping.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		sess, err := openSession(ctx)
		if err != nil {
			fatal("%v", err)
		}
		defer sess.Close()

		p, err := planning.New(sess.Store, nil, nil, nil)
		if err != nil {
			fatal("%v", err)
		}
		groups, err := p.SavedWaves(ctx, args[0])
		if err != nil {
			fatal("%v", err)
		}
		if len(groups) == 0 {
			fmt.Println("No tasks under this story, run 'storyline plan' first")
			return
		}
		repl.PrintWaveGroups(groups)
	},
}

func init() {
	rootCmd.AddCommand(wavesCmd)
}
