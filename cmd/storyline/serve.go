package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/storylinehq/storyline/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the tracker over MCP on stdio",
	Long: `Serve the tracker to MCP clients over stdio.

Exposes epic/feature/story/task/milestone management plus the AI-backed
generate_stories and plan_tasks tools. Point an MCP client at:

  storyline serve --db .storyline/storyline.db`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		sess, err := openSession(context.Background())
		if err != nil {
			fatal("%v", err)
		}
		defer sess.Close()

		if err := mcp.Serve(mcp.NewServer(sess)); err != nil {
			fatal("%v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
