package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/storylinehq/storyline/internal/consolidation"
)

var (
	generateFeatureID string
	generateYes       bool
	generateDryRun    bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Draft user stories for a feature with AI",
	Long: `Draft user stories for a feature with AI and reconcile them against
the feature's existing stories.

Each drafted candidate is classified as a new story, a merge into an
existing story, or a duplicate to skip. Duplicates are never saved.
When classification is unavailable the pass falls back to treating
every candidate as new, and says so.

Example:
  storyline generate -f <feature-id>
  storyline generate -f <feature-id> --yes      # skip the confirmation prompt
  storyline generate -f <feature-id> --dry-run  # show decisions, save nothing`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		sess, err := openSession(ctx)
		if err != nil {
			fatal("%v", err)
		}
		defer sess.Close()

		p, err := newPlanner(sess)
		if err != nil {
			fatal("%v", err)
		}

		gen, err := p.GenerateStories(ctx, generateFeatureID)
		if err != nil {
			fatal("%v", err)
		}

		printDecisions(gen.Consolidation)

		if generateDryRun {
			fmt.Println("Dry run, nothing saved")
			return
		}

		selection := gen.Consolidation.DefaultSelection
		if len(selection) == 0 {
			fmt.Println("Nothing to save, every candidate was a duplicate")
			return
		}

		if !generateYes && !confirm(fmt.Sprintf("Save %d stor%s?", len(selection), plural(len(selection), "y", "ies"))) {
			fmt.Println("Aborted, nothing saved")
			return
		}

		created, merged, err := p.ApplySelection(ctx, gen, selection, true)
		if err != nil {
			fatal("%v", err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("\n%s Saved %d new stor%s", green("✓"), created, plural(created, "y", "ies"))
		if merged > 0 {
			fmt.Printf(", applied %d merge%s", merged, plural(merged, "", "s"))
		}
		fmt.Println()
	},
}

func printDecisions(res *consolidation.Result) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Println()
	for i, d := range res.Decisions {
		switch d.Action {
		case consolidation.ActionCreateNew:
			fmt.Printf("%2d. %s %s\n", i+1, green("new:"), d.Narrative)
		case consolidation.ActionMergeWithExisting:
			fmt.Printf("%2d. %s %s\n", i+1, yellow("merge:"), d.Narrative)
			fmt.Printf("      into %s: %s\n", d.MergedWith, d.MergedNarrative)
		case consolidation.ActionSkip:
			fmt.Printf("%2d. %s %s\n", i+1, gray("skip:"), d.Narrative)
			fmt.Printf("      %s\n", gray("duplicate of "+d.DuplicateOf))
		}
		if d.Reason != "" {
			fmt.Printf("      %s\n", gray(d.Reason))
		}
	}

	s := res.Summary
	fmt.Printf("\n%d drafted: %d new, %d merge suggestion%s, %d duplicate%s\n",
		s.TotalGenerated, s.NewStories,
		s.MergesSuggested, plural(s.MergesSuggested, "", "s"),
		s.DuplicatesFound, plural(s.DuplicatesFound, "", "s"))

	if res.UsedFallback {
		fmt.Printf("%s Classification was unavailable (%s), all candidates treated as new\n",
			yellow("!"), res.FallbackReason)
	}
}

func confirm(prompt string) bool {
	fmt.Printf("%s [Y/n] ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "" || line == "y" || line == "yes"
}

func plural(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}

func init() {
	generateCmd.Flags().StringVarP(&generateFeatureID, "feature", "f", "", "Feature ID (required)")
	generateCmd.MarkFlagRequired("feature")
	generateCmd.Flags().BoolVarP(&generateYes, "yes", "y", false, "Save without confirmation")
	generateCmd.Flags().BoolVar(&generateDryRun, "dry-run", false, "Show decisions without saving")
	rootCmd.AddCommand(generateCmd)
}
