package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/storylinehq/storyline/internal/types"
)

var (
	classifyEpicID   string
	classifyPersona  string
	classifyCriteria []string
	classifySave     bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify <narrative>",
	Short: "Find where a story narrative belongs within an epic",
	Long: `Ask the model which of an epic's features a story narrative belongs
to. The recommendation is one of:

  existing  the story fits one of the epic's features
  new       the story needs a feature the epic does not have yet
  none      the story does not belong in this epic at all

With --save, an 'existing' recommendation creates the story under the
matched feature, and a 'new' recommendation creates the suggested
feature first.

Example:
  storyline classify -e <epic-id> \
    "As a member, I want to export my data so that I can switch providers"`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		sess, err := openSession(ctx)
		if err != nil {
			fatal("%v", err)
		}
		defer sess.Close()

		epic, err := sess.Store.GetEpic(ctx, classifyEpicID)
		if err != nil {
			fatal("%v", err)
		}
		if epic == nil {
			fatal("epic not found: %s", classifyEpicID)
		}

		listed, err := sess.Store.ListFeatures(ctx, classifyEpicID)
		if err != nil {
			fatal("%v", err)
		}
		features := make([]types.Feature, 0, len(listed))
		for _, f := range listed {
			features = append(features, *f)
		}

		client, err := sess.AI()
		if err != nil {
			fatal("%v", err)
		}

		narrative := args[0]
		persona := types.Persona(classifyPersona)
		match, err := client.MatchStoryToFeature(ctx, epic, features, narrative, persona, classifyCriteria)
		if err != nil {
			fatal("%v", err)
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		switch match.Recommendation {
		case "existing":
			fmt.Printf("Belongs to feature %s (%d%% confident)\n", cyan(match.SuggestedFeatureID), match.Confidence)
		case "new":
			fmt.Printf("Needs a new feature: %s (%d%% confident)\n", cyan(match.NewFeatureSuggestion.Title), match.Confidence)
		case "none":
			fmt.Printf("Does not belong in epic %q (%d%% confident)\n", epic.Title, match.Confidence)
		}
		if match.Reasoning != "" {
			fmt.Printf("%s\n", gray(match.Reasoning))
		}

		if !classifySave || match.Recommendation == "none" {
			return
		}

		featureID := match.SuggestedFeatureID
		if match.Recommendation == "new" {
			feature := &types.Feature{
				EpicID:      classifyEpicID,
				Title:       match.NewFeatureSuggestion.Title,
				Description: match.NewFeatureSuggestion.Description,
			}
			if err := sess.Store.CreateFeature(ctx, feature); err != nil {
				fatal("%v", err)
			}
			featureID = feature.ID
			fmt.Printf("Created feature %s\n", featureID)
		}

		story := &types.UserStory{
			FeatureID:          featureID,
			Narrative:          narrative,
			Persona:            persona,
			Priority:           types.PriorityP1,
			AcceptanceCriteria: classifyCriteria,
		}
		if err := sess.Store.CreateStory(ctx, story); err != nil {
			fatal("%v", err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Created story %s under feature %s\n", green("✓"), story.ID, featureID)
	},
}

func init() {
	classifyCmd.Flags().StringVarP(&classifyEpicID, "epic", "e", "", "Epic ID (required)")
	classifyCmd.MarkFlagRequired("epic")
	classifyCmd.Flags().StringVar(&classifyPersona, "persona", "", "Persona (guest|member|admin)")
	classifyCmd.Flags().StringArrayVar(&classifyCriteria, "criterion", nil, "Acceptance criterion (repeatable)")
	classifyCmd.Flags().BoolVar(&classifySave, "save", false, "Persist the recommendation")
	rootCmd.AddCommand(classifyCmd)
}
