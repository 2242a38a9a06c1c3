package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/storylinehq/storyline/internal/types"
)

var taskStoryID string

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage implementation tasks",
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks, optionally filtered by story",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		sess, err := openSession(ctx)
		if err != nil {
			fatal("%v", err)
		}
		defer sess.Close()

		tasks, err := sess.Store.ListTasks(ctx, taskStoryID)
		if err != nil {
			fatal("%v", err)
		}
		if len(tasks) == 0 {
			fmt.Println("No tasks found")
			return
		}
		for _, t := range tasks {
			line := fmt.Sprintf("%s  [%s/%s/%s]  %s", t.ID, t.Platform, t.Priority, t.Status, t.Name)
			if len(t.Dependencies) > 0 {
				line += fmt.Sprintf(" (after: %s)", strings.Join(t.Dependencies, ", "))
			}
			fmt.Println(line)
		}
	},
}

var taskStatusCmd = &cobra.Command{
	Use:   "status <id> <status>",
	Short: "Update a task's status (planned|in_progress|blocked|done)",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		sess, err := openSession(ctx)
		if err != nil {
			fatal("%v", err)
		}
		defer sess.Close()

		status, err := types.ParseStatus(args[1])
		if err != nil {
			fatal("%v", err)
		}
		if err := sess.Store.UpdateTaskStatus(ctx, args[0], status); err != nil {
			fatal("%v", err)
		}
		fmt.Printf("Task %s is now %s\n", args[0], status)
	},
}

func init() {
	taskListCmd.Flags().StringVarP(&taskStoryID, "story", "s", "", "Filter by story ID")
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskStatusCmd)
	rootCmd.AddCommand(taskCmd)
}
