package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/storylinehq/storyline/internal/types"
)

// Draft size bounds enforced on the generator's output
const (
	MinDraftStories = 3
	MaxDraftStories = 7
)

// StoryDraft is the outcome of one story-drafting call
type StoryDraft struct {
	Stories        []types.CandidateStory `json:"stories"`
	FeatureContext string                 `json:"feature_context"`
}

// DraftStories asks the model for candidate user stories for a feature.
//
// The response is validated before it is returned: between MinDraftStories
// and MaxDraftStories candidates, each with a narrative containing "as a"
// and "i want" (case-insensitive). Candidates without a priority default
// to P1. A response that fails validation is an error — drafting has no
// fail-soft path; the caller surfaces the failure to the user.
func (c *Client) DraftStories(ctx context.Context, epic *types.Epic, feature *types.Feature, existing []types.ExistingStory) (*StoryDraft, error) {
	if feature == nil {
		return nil, fmt.Errorf("feature is required")
	}

	prompt := buildDraftPrompt(epic, feature, existing)

	responseText, err := c.CallAI(ctx, prompt, "story_draft", c.model, 4096)
	if err != nil {
		return nil, fmt.Errorf("story drafting failed: %w", err)
	}

	parsed := Parse[StoryDraft](responseText, "story draft response")
	if !parsed.Success {
		return nil, fmt.Errorf("failed to parse story draft: %s", parsed.Error)
	}

	draft := parsed.Data
	normalizeDraft(&draft)
	if err := ValidateDraft(&draft); err != nil {
		return nil, fmt.Errorf("story draft failed validation: %w", err)
	}
	return &draft, nil
}

// normalizeDraft fills defaults the model is allowed to omit
func normalizeDraft(draft *StoryDraft) {
	for i := range draft.Stories {
		if draft.Stories[i].Priority == "" {
			draft.Stories[i].Priority = types.PriorityP1
		}
	}
}

// ValidateDraft checks a draft against the generator contract
func ValidateDraft(draft *StoryDraft) error {
	if draft == nil {
		return fmt.Errorf("draft is nil")
	}
	if len(draft.Stories) < MinDraftStories || len(draft.Stories) > MaxDraftStories {
		return fmt.Errorf("expected %d-%d stories, got %d", MinDraftStories, MaxDraftStories, len(draft.Stories))
	}
	for i := range draft.Stories {
		if err := draft.Stories[i].Validate(); err != nil {
			return fmt.Errorf("story %d: %w", i, err)
		}
		if !draft.Stories[i].Priority.IsValid() {
			return fmt.Errorf("story %d: invalid priority %q", i, draft.Stories[i].Priority)
		}
	}
	return nil
}

func buildDraftPrompt(epic *types.Epic, feature *types.Feature, existing []types.ExistingStory) string {
	var b strings.Builder

	b.WriteString("You are drafting user stories for a product feature.\n\n")
	if epic != nil {
		fmt.Fprintf(&b, "Epic: %s\n%s\n\n", epic.Title, epic.Description)
	}
	fmt.Fprintf(&b, "Feature: %s\n%s\n\n", feature.Title, feature.Description)

	if len(existing) > 0 {
		b.WriteString("The feature already has these stories; do not restate them:\n")
		for _, s := range existing {
			fmt.Fprintf(&b, "- %s\n", s.Narrative)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, `Draft between %d and %d user stories covering the gaps in this feature.

Requirements for every story:
- The narrative follows "As a <persona>, I want <capability> so that <benefit>"
- persona is one of: guest, member, admin
- priority is one of: P0, P1, P2
- acceptance_criteria lists 2-4 concrete, testable criteria
- rationale explains in one sentence why the story matters

Respond with ONLY raw JSON (no markdown fences, no extra text) matching:
{
  "stories": [
    {
      "narrative": "As a member, I want ... so that ...",
      "persona": "member",
      "priority": "P1",
      "acceptance_criteria": ["...", "..."],
      "rationale": "..."
    }
  ],
  "feature_context": "one-paragraph summary of how you interpreted the feature"
}`, MinDraftStories, MaxDraftStories)

	return b.String()
}
