package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/storylinehq/storyline/internal/repl"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start the interactive storyline shell",
	Long: `Start an interactive shell for browsing the tracker.

Type 'help' in the shell for available commands.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		sess, err := openSession(ctx)
		if err != nil {
			fatal("%v", err)
		}
		defer sess.Close()

		r, err := repl.New(sess)
		if err != nil {
			fatal("failed to create shell: %v", err)
		}
		if err := r.Run(ctx); err != nil {
			fatal("%v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(replCmd)
}
