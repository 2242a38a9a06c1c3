package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/storylinehq/storyline/internal/types"
)

var (
	featureEpicID      string
	featureDescription string
)

var featureCmd = &cobra.Command{
	Use:   "feature",
	Short: "Manage features",
}

var featureCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a feature under an epic",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		sess, err := openSession(ctx)
		if err != nil {
			fatal("%v", err)
		}
		defer sess.Close()

		epic, err := sess.Store.GetEpic(ctx, featureEpicID)
		if err != nil {
			fatal("%v", err)
		}
		if epic == nil {
			fatal("epic not found: %s", featureEpicID)
		}

		feature := &types.Feature{
			EpicID:      featureEpicID,
			Title:       args[0],
			Description: featureDescription,
		}
		if err := sess.Store.CreateFeature(ctx, feature); err != nil {
			fatal("%v", err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Created feature %s under epic %q\n", green("✓"), feature.ID, epic.Title)
	},
}

var featureListCmd = &cobra.Command{
	Use:   "list",
	Short: "List features, optionally filtered by epic",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		sess, err := openSession(ctx)
		if err != nil {
			fatal("%v", err)
		}
		defer sess.Close()

		features, err := sess.Store.ListFeatures(ctx, featureEpicID)
		if err != nil {
			fatal("%v", err)
		}
		if len(features) == 0 {
			fmt.Println("No features found")
			return
		}
		for _, f := range features {
			fmt.Printf("%s  [%s]  %s\n", f.ID, f.Status, f.Title)
		}
	},
}

var featureShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a feature and its stories",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		sess, err := openSession(ctx)
		if err != nil {
			fatal("%v", err)
		}
		defer sess.Close()

		feature, err := sess.Store.GetFeature(ctx, args[0])
		if err != nil {
			fatal("%v", err)
		}
		if feature == nil {
			fatal("feature not found: %s", args[0])
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("\n%s  [%s]\n", cyan(feature.Title), feature.Status)
		fmt.Printf("%s  (epic %s)\n", gray(feature.ID), feature.EpicID)
		if feature.Description != "" {
			fmt.Printf("\n%s\n", feature.Description)
		}

		stories, err := sess.Store.ListStories(ctx, feature.ID)
		if err != nil {
			fatal("%v", err)
		}
		if len(stories) > 0 {
			fmt.Printf("\nStories:\n")
			for _, s := range stories {
				fmt.Printf("  %s  [%s/%s]  %s\n", s.ID, s.Priority, s.Status, s.Narrative)
			}
		}
		fmt.Println()
	},
}

var featureStatusCmd = &cobra.Command{
	Use:   "status <id> <status>",
	Short: "Update a feature's status (planned|in_progress|blocked|done)",
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
		if err := sess.Store.UpdateFeatureStatus(ctx, args[0], status); err != nil {
			fatal("%v", err)
		}
		fmt.Printf("Feature %s is now %s\n", args[0], status)
	},
}

func init() {
	featureCreateCmd.Flags().StringVarP(&featureEpicID, "epic", "e", "", "Parent epic ID (required)")
	featureCreateCmd.MarkFlagRequired("epic")
	featureCreateCmd.Flags().StringVarP(&featureDescription, "description", "d", "", "Feature description")
	featureListCmd.Flags().StringVarP(&featureEpicID, "epic", "e", "", "Filter by epic ID")
	featureCmd.AddCommand(featureCreateCmd)
	featureCmd.AddCommand(featureListCmd)
	featureCmd.AddCommand(featureShowCmd)
	featureCmd.AddCommand(featureStatusCmd)
	rootCmd.AddCommand(featureCmd)
}
