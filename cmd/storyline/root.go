package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/storylinehq/storyline/internal/planning"
	"github.com/storylinehq/storyline/internal/session"
)

var dbPath string

var rootCmd = &cobra.Command{
	Use:   "storyline",
	Short: "AI-assisted planning for epics, user stories, and delivery waves",
	Long: `Storyline is a project tracker that drafts user stories with AI,
reconciles them against what already exists, and breaks accepted stories
into per-platform implementation tasks grouped into delivery waves.

Start with 'storyline init' in your project directory, then create an
epic and a feature and run 'storyline generate' to draft stories.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (default: .storyline/storyline.db)")
}

// openSession opens the tracker session for one command invocation.
// Callers must Close it.
func openSession(ctx context.Context) (*session.Session, error) {
	sess, err := session.New(ctx, session.Options{DBPath: dbPath})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// newPlanner wires the AI-backed planner for a session
func newPlanner(sess *session.Session) (*planning.Planner, error) {
	client, err := sess.AI()
	if err != nil {
		return nil, err
	}
	consolidator, err := sess.Consolidator()
	if err != nil {
		return nil, err
	}
	return planning.New(sess.Store, client, client, consolidator)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
