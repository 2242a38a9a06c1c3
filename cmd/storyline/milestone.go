package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/storylinehq/storyline/internal/types"
)

var milestoneDue string

var milestoneCmd = &cobra.Command{
	Use:   "milestone",
	Short: "Manage milestones",
}

var milestoneCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a milestone",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		sess, err := openSession(ctx)
		if err != nil {
			fatal("%v", err)
		}
		defer sess.Close()

		milestone := &types.Milestone{Title: args[0]}
		if milestoneDue != "" {
			due, err := time.Parse("2006-01-02", milestoneDue)
			if err != nil {
				fatal("invalid due date %q (expected YYYY-MM-DD)", milestoneDue)
			}
			milestone.DueDate = &due
		}
		if err := sess.Store.CreateMilestone(ctx, milestone); err != nil {
			fatal("%v", err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Created milestone %s\n", green("✓"), milestone.ID)
	},
}

var milestoneListCmd = &cobra.Command{
	Use:   "list",
	Short: "List milestones",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		sess, err := openSession(ctx)
		if err != nil {
			fatal("%v", err)
		}
		defer sess.Close()

		milestones, err := sess.Store.ListMilestones(ctx)
		if err != nil {
			fatal("%v", err)
		}
		if len(milestones) == 0 {
			fmt.Println("No milestones yet")
			return
		}
		for _, m := range milestones {
			due := "no due date"
			if m.DueDate != nil {
				due = m.DueDate.Format("2006-01-02")
			}
			fmt.Printf("%s  [%s]  %s (%s)\n", m.ID, m.Status, m.Title, due)
		}
	},
}

var milestoneStoriesCmd = &cobra.Command{
	Use:   "stories <milestone-id>",
	Short: "List the stories assigned to a milestone",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		sess, err := openSession(ctx)
		if err != nil {
			fatal("%v", err)
		}
		defer sess.Close()

		stories, err := sess.Store.ListMilestoneStories(ctx, args[0])
		if err != nil {
			fatal("%v", err)
		}
		if len(stories) == 0 {
			fmt.Println("No stories assigned to this milestone")
			return
		}
		for _, s := range stories {
			fmt.Printf("%s  [%s/%s]  %s\n", s.ID, s.Priority, s.Status, s.Narrative)
		}
	},
}

func init() {
	milestoneCreateCmd.Flags().StringVar(&milestoneDue, "due", "", "Due date (YYYY-MM-DD)")
	milestoneCmd.AddCommand(milestoneCreateCmd)
	milestoneCmd.AddCommand(milestoneListCmd)
	milestoneCmd.AddCommand(milestoneStoriesCmd)
	rootCmd.AddCommand(milestoneCmd)
}
