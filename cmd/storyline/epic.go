package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/storylinehq/storyline/internal/types"
)

var epicDescription string

var epicCmd = &cobra.Command{
	Use:   "epic",
	Short: "Manage epics",
}

var epicCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a new epic",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		sess, err := openSession(ctx)
		if err != nil {
			fatal("%v", err)
		}
		defer sess.Close()

		epic := &types.Epic{Title: args[0], Description: epicDescription}
		if err := sess.Store.CreateEpic(ctx, epic); err != nil {
			fatal("%v", err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Created epic %s\n", green("✓"), epic.ID)
	},
}

var epicListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all epics",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		sess, err := openSession(ctx)
		if err != nil {
			fatal("%v", err)
		}
		defer sess.Close()

		epics, err := sess.Store.ListEpics(ctx)
		if err != nil {
			fatal("%v", err)
		}
		if len(epics) == 0 {
			fmt.Println("No epics yet, create one with 'storyline epic create'")
			return
		}
		for _, e := range epics {
			fmt.Printf("%s  [%s]  %s\n", e.ID, e.Status, e.Title)
		}
	},
}

var epicShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show an epic and its features",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		sess, err := openSession(ctx)
		if err != nil {
			fatal("%v", err)
		}
		defer sess.Close()

		epic, err := sess.Store.GetEpic(ctx, args[0])
		if err != nil {
			fatal("%v", err)
		}
		if epic == nil {
			fatal("epic not found: %s", args[0])
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("\n%s  [%s]\n", cyan(epic.Title), epic.Status)
		fmt.Printf("%s\n", gray(epic.ID))
		if epic.Description != "" {
			fmt.Printf("\n%s\n", epic.Description)
		}

		features, err := sess.Store.ListFeatures(ctx, epic.ID)
		if err != nil {
			fatal("%v", err)
		}
		if len(features) > 0 {
			fmt.Printf("\nFeatures:\n")
			for _, f := range features {
				fmt.Printf("  %s  [%s]  %s\n", f.ID, f.Status, f.Title)
			}
		}
		fmt.Println()
	},
}

var epicStatusCmd = &cobra.Command{
	Use:   "status <id> <status>",
	Short: "Update an epic's status (planned|in_progress|blocked|done)",
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
		if err := sess.Store.UpdateEpicStatus(ctx, args[0], status); err != nil {
			fatal("%v", err)
		}
		fmt.Printf("Epic %s is now %s\n", args[0], status)
	},
}

func init() {
	epicCreateCmd.Flags().StringVarP(&epicDescription, "description", "d", "", "Epic description")
	epicCmd.AddCommand(epicCreateCmd)
	epicCmd.AddCommand(epicListCmd)
	epicCmd.AddCommand(epicShowCmd)
	epicCmd.AddCommand(epicStatusCmd)
	rootCmd.AddCommand(epicCmd)
}
