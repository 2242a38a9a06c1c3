package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/storylinehq/storyline/internal/types"
)

var (
	storyFeatureID string
	storyPersona   string
	storyPriority  string
	storyCriteria  []string
	storyMilestone string
)

var storyCmd = &cobra.Command{
	Use:   "story",
	Short: "Manage user stories",
}

var storyCreateCmd = &cobra.Command{
	Use:   "create <narrative>",
	Short: "Create a user story under a feature",
	Long: `Create a user story under a feature.

The narrative must read as a user story: "As a <persona>, I want <capability>
so that <benefit>".

Example:
  storyline story create -f <feature-id> \
    "As a guest, I want to check out without an account so that I can buy quickly"`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		sess, err := openSession(ctx)
		if err != nil {
			fatal("%v", err)
		}
		defer sess.Close()

		priority := types.PriorityP1
		if storyPriority != "" {
			priority, err = types.ParsePriority(storyPriority)
			if err != nil {
				fatal("%v", err)
			}
		}

		story := &types.UserStory{
			FeatureID:          storyFeatureID,
			Narrative:          args[0],
			Persona:            types.Persona(storyPersona),
			Priority:           priority,
			AcceptanceCriteria: storyCriteria,
		}
		if err := sess.Store.CreateStory(ctx, story); err != nil {
			fatal("%v", err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Created story %s\n", green("✓"), story.ID)
	},
}

var storyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stories, optionally filtered by feature",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		sess, err := openSession(ctx)
		if err != nil {
			fatal("%v", err)
		}
		defer sess.Close()

		stories, err := sess.Store.ListStories(ctx, storyFeatureID)
		if err != nil {
			fatal("%v", err)
		}
		if len(stories) == 0 {
			fmt.Println("No stories found")
			return
		}
		for _, s := range stories {
			fmt.Printf("%s  [%s/%s]  %s\n", s.ID, s.Priority, s.Status, s.Narrative)
		}
	},
}

var storyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a story with its acceptance criteria and tasks",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		sess, err := openSession(ctx)
		if err != nil {
			fatal("%v", err)
		}
		defer sess.Close()

		story, err := sess.Store.GetStory(ctx, args[0])
		if err != nil {
			fatal("%v", err)
		}
		if story == nil {
			fatal("story not found: %s", args[0])
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("\n%s\n", cyan(story.Narrative))
		fmt.Printf("%s  [%s/%s]  (feature %s)\n", gray(story.ID), story.Priority, story.Status, story.FeatureID)
		if story.Persona != "" {
			fmt.Printf("Persona: %s\n", story.Persona)
		}
		if len(story.AcceptanceCriteria) > 0 {
			fmt.Printf("\nAcceptance criteria:\n")
			for _, c := range story.AcceptanceCriteria {
				fmt.Printf("  - %s\n", c)
			}
		}
		if story.Rationale != "" {
			fmt.Printf("\n%s\n", gray(story.Rationale))
		}

		tasks, err := sess.Store.ListTasks(ctx, story.ID)
		if err != nil {
			fatal("%v", err)
		}
		if len(tasks) > 0 {
			fmt.Printf("\nTasks:\n")
			for _, t := range tasks {
				fmt.Printf("  %s  [%s/%s/%s]  %s\n", t.ID, t.Platform, t.Priority, t.Status, t.Name)
			}
		}
		fmt.Println()
	},
}

var storyStatusCmd = &cobra.Command{
	Use:   "status <id> <status>",
	Short: "Update a story's status (planned|in_progress|blocked|done)",
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
		if err := sess.Store.UpdateStoryStatus(ctx, args[0], status); err != nil {
			fatal("%v", err)
		}
		fmt.Printf("Story %s is now %s\n", args[0], status)
	},
}

var storyAssignCmd = &cobra.Command{
	Use:   "assign <story-id>",
	Short: "Assign a story to a milestone",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		sess, err := openSession(ctx)
		if err != nil {
			fatal("%v", err)
		}
		defer sess.Close()

		if err := sess.Store.AssignStoryToMilestone(ctx, args[0], storyMilestone); err != nil {
			fatal("%v", err)
		}
		fmt.Printf("Story %s assigned to milestone %s\n", args[0], storyMilestone)
	},
}

func init() {
	storyCreateCmd.Flags().StringVarP(&storyFeatureID, "feature", "f", "", "Parent feature ID (required)")
	storyCreateCmd.MarkFlagRequired("feature")
	storyCreateCmd.Flags().StringVar(&storyPersona, "persona", "", "Persona (guest|member|admin)")
	storyCreateCmd.Flags().StringVarP(&storyPriority, "priority", "p", "", "Priority (P0|P1|P2), default P1")
	storyCreateCmd.Flags().StringArrayVar(&storyCriteria, "criterion", nil, "Acceptance criterion (repeatable)")
	storyListCmd.Flags().StringVarP(&storyFeatureID, "feature", "f", "", "Filter by feature ID")
	storyAssignCmd.Flags().StringVarP(&storyMilestone, "milestone", "m", "", "Milestone ID (required)")
	storyAssignCmd.MarkFlagRequired("milestone")
	storyCmd.AddCommand(storyCreateCmd)
	storyCmd.AddCommand(storyListCmd)
	storyCmd.AddCommand(storyShowCmd)
	storyCmd.AddCommand(storyStatusCmd)
	storyCmd.AddCommand(storyAssignCmd)
	rootCmd.AddCommand(storyCmd)
}
