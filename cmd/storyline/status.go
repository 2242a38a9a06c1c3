package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show tracker counts and unread notifications",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		sess, err := openSession(ctx)
		if err != nil {
			fatal("%v", err)
		}
		defer sess.Close()

		stats, err := sess.Store.GetStatistics(ctx)
		if err != nil {
			fatal("%v", err)
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan("=== Storyline Status ==="))
		fmt.Printf("  Epics:      %d\n", stats.Epics)
		fmt.Printf("  Features:   %d\n", stats.Features)
		fmt.Printf("  Stories:    %d\n", stats.Stories)
		fmt.Printf("  Tasks:      %d\n", stats.Tasks)
		fmt.Printf("  Milestones: %d\n", stats.Milestones)
		fmt.Println()

		if stats.UnreadNotifications == 0 {
			fmt.Printf("  %s\n\n", gray("No unread notifications"))
			return
		}

		notes, err := sess.Store.ListNotifications(ctx, true, 10)
		if err != nil {
			fatal("%v", err)
		}
		fmt.Printf("%s\n", yellow("Unread notifications:"))
		for _, n := range notes {
			fmt.Printf("  %s %s  %s\n", yellow("!"), n.CreatedAt.Format("2006-01-02 15:04"), n.Message)
		}
		if stats.UnreadNotifications > len(notes) {
			fmt.Printf("  %s\n", gray(fmt.Sprintf("... and %d more", stats.UnreadNotifications-len(notes))))
		}
		fmt.Println()

		// Displayed notifications do not resurface on the next view.
		for _, n := range notes {
			if err := sess.Store.MarkNotificationRead(ctx, n.ID); err != nil {
				fatal("%v", err)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
