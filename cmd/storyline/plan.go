package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/storylinehq/storyline/internal/repl"
	"github.com/storylinehq/storyline/internal/session"
	"github.com/storylinehq/storyline/internal/types"
)

var (
	planStoryID   string
	planPlatforms string
	planContext   string
	planYes       bool
	planDryRun    bool
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Generate per-platform implementation tasks for a story",
	Long: `Generate implementation task specs for a story with AI and group them
into delivery waves per platform.

Wave 1 holds tasks with no dependencies inside the batch, wave 2 tasks
with one or two, wave 3 the rest. Dependencies on work outside the
batch are treated as already satisfied.

Example:
  storyline plan -s <story-id>
  storyline plan -s <story-id> --platforms web,backend
  storyline plan -s <story-id> --context "REST API already exists"`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		sess, err := openSession(ctx)
		if err != nil {
			fatal("%v", err)
		}
		defer sess.Close()

		platforms, err := resolvePlatforms(sess, planPlatforms)
		if err != nil {
			fatal("%v", err)
		}

		p, err := newPlanner(sess)
		if err != nil {
			fatal("%v", err)
		}

		result, err := p.PlanTasks(ctx, planStoryID, platforms, planContext)
		if err != nil {
			fatal("%v", err)
		}

		fmt.Printf("\nStory: %s\n", result.Story.Narrative)
		repl.PrintWaveGroups(result.Groups)

		if result.Plan.IntegrationStrategy != "" {
			fmt.Printf("Integration: %s\n", result.Plan.IntegrationStrategy)
		}
		for _, a := range result.Plan.Assumptions {
			fmt.Printf("Assumes: %s\n", a.Description)
		}
		fmt.Printf("Confidence: %.0f%%\n", result.Plan.OverallConfidence*100)

		if planDryRun {
			fmt.Println("Dry run, nothing saved")
			return
		}

		count := len(result.Plan.Tasks)
		if !planYes && !confirm(fmt.Sprintf("Save %d task%s?", count, plural(count, "", "s"))) {
			fmt.Println("Aborted, nothing saved")
			return
		}

		saved, err := p.SaveTasks(ctx, planStoryID, result.Plan.Tasks)
		if err != nil {
			fatal("%v", err)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("\n%s Saved %d task%s\n", green("✓"), saved, plural(saved, "", "s"))
	},
}

// resolvePlatforms turns a comma-separated flag into platforms, falling
// back to the configured defaults.
func resolvePlatforms(sess *session.Session, arg string) ([]types.Platform, error) {
	names := sess.Config.Planning.Platforms
	if arg != "" {
		names = strings.Split(arg, ",")
	}
	platforms := make([]types.Platform, 0, len(names))
	for _, name := range names {
		p, err := types.ParsePlatform(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		platforms = append(platforms, p)
	}
	return platforms, nil
}

func init() {
	planCmd.Flags().StringVarP(&planStoryID, "story", "s", "", "Story ID (required)")
	planCmd.MarkFlagRequired("story")
	planCmd.Flags().StringVar(&planPlatforms, "platforms", "", "Comma-separated platforms (web,ios,android,backend)")
	planCmd.Flags().StringVar(&planContext, "context", "", "Extra context for the planner")
	planCmd.Flags().BoolVarP(&planYes, "yes", "y", false, "Save without confirmation")
	planCmd.Flags().BoolVar(&planDryRun, "dry-run", false, "Show the plan without saving")
	rootCmd.AddCommand(planCmd)
}
