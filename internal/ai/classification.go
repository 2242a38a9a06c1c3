package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/storylinehq/storyline/internal/types"
)

// CandidateClassification is the model's judgment of one candidate story
// against a feature's existing stories. This is the consolidation
// collaborator's wire shape; the consolidation package revalidates it
// before trusting it.
type CandidateClassification struct {
	Action          string  `json:"action"` // create_new | merge_with_existing | skip
	ExistingID      string  `json:"existing_id,omitempty"`
	MergedNarrative string  `json:"merged_narrative,omitempty"`
	Confidence      float64 `json:"confidence"` // 0.0-1.0
	Reasoning       string  `json:"reasoning,omitempty"`
}

// ClassifyCandidateStory compares one candidate against the existing
// stories of a feature.
//
// This is a single-attempt call: consolidation degrades to its fail-soft
// default on any error rather than waiting out a retry loop. The cheaper
// classification model is used since a consolidation pass makes one call
// per candidate.
func (c *Client) ClassifyCandidateStory(ctx context.Context, candidate types.CandidateStory, existing []types.ExistingStory) (*CandidateClassification, error) {
	if len(existing) == 0 {
		return nil, fmt.Errorf("no existing stories to compare against")
	}

	prompt := buildClassifyPrompt(candidate, existing)

	responseText, err := c.callOnce(ctx, prompt, "candidate_classification", c.classifyModel, 1000)
	if err != nil {
		return nil, fmt.Errorf("candidate classification failed: %w", err)
	}

	parsed := Parse[CandidateClassification](responseText, "candidate classification response")
	if !parsed.Success {
		return nil, fmt.Errorf("failed to parse classification: %s", parsed.Error)
	}

	cl := parsed.Data
	if cl.Confidence < 0.0 || cl.Confidence > 1.0 {
		return nil, fmt.Errorf("invalid confidence score: %.2f (must be 0.0-1.0)", cl.Confidence)
	}
	return &cl, nil
}

func buildClassifyPrompt(candidate types.CandidateStory, existing []types.ExistingStory) string {
	var b strings.Builder

	b.WriteString("Decide whether a newly drafted user story duplicates, extends, or adds to a feature's existing stories.\n\n")
	fmt.Fprintf(&b, "Candidate story:\n%s\n", candidate.Narrative)
	if len(candidate.AcceptanceCriteria) > 0 {
		b.WriteString("Acceptance criteria:\n")
		for _, ac := range candidate.AcceptanceCriteria {
			fmt.Fprintf(&b, "- %s\n", ac)
		}
	}
	b.WriteString("\nExisting stories:\n")
	for _, s := range existing {
		fmt.Fprintf(&b, "- [%s] %s\n", s.ID, s.Narrative)
	}

	b.WriteString(`
Classify the candidate as exactly one of:
- "create_new": it covers a need no existing story covers
- "skip": it is semantically a duplicate of one existing story
- "merge_with_existing": it overlaps one existing story enough that a single
  combined story would be better; synthesize that combined narrative

Respond with ONLY raw JSON (no markdown fences, no extra text) matching:
{
  "action": "create_new | merge_with_existing | skip",
  "existing_id": "id of the matched existing story (required for skip and merge)",
  "merged_narrative": "combined narrative (merge only)",
  "confidence": 0.0,
  "reasoning": "one sentence"
}`)

	return b.String()
}

// FeatureMatch is the model's recommendation for where a standalone story
// narrative belongs within an epic
type FeatureMatch struct {
	Recommendation       string             `json:"recommendation"` // existing | new | none
	Confidence           int                `json:"confidence"`     // 0-100
	Reasoning            string             `json:"reasoning,omitempty"`
	SuggestedFeatureID   string             `json:"suggested_feature_id,omitempty"`
	NewFeatureSuggestion *FeatureSuggestion `json:"new_feature_suggestion,omitempty"`
}

// FeatureSuggestion describes a feature the epic does not have yet
type FeatureSuggestion struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// ValidateFeatureMatch checks the response contract: "existing" must name
// a feature id from the offered set, "new" must carry a suggestion, and
// confidence is a 0-100 score.
func ValidateFeatureMatch(match *FeatureMatch, features []types.Feature) error {
	if match == nil {
		return fmt.Errorf("match is nil")
	}
	if match.Confidence < 0 || match.Confidence > 100 {
		return fmt.Errorf("invalid confidence: %d (must be 0-100)", match.Confidence)
	}
	switch match.Recommendation {
	case "existing":
		if match.SuggestedFeatureID == "" {
			return fmt.Errorf("recommendation 'existing' requires suggested_feature_id")
		}
		for _, f := range features {
			if f.ID == match.SuggestedFeatureID {
				return nil
			}
		}
		return fmt.Errorf("suggested_feature_id %q is not a feature of this epic", match.SuggestedFeatureID)
	case "new":
		if match.NewFeatureSuggestion == nil || strings.TrimSpace(match.NewFeatureSuggestion.Title) == "" {
			return fmt.Errorf("recommendation 'new' requires new_feature_suggestion")
		}
		return nil
	case "none":
		return nil
	default:
		return fmt.Errorf("invalid recommendation: %q", match.Recommendation)
	}
}

// MatchStoryToFeature recommends which of an epic's features a story
// narrative belongs to, or proposes a new feature.
func (c *Client) MatchStoryToFeature(ctx context.Context, epic *types.Epic, features []types.Feature, narrative string, persona types.Persona, criteria []string) (*FeatureMatch, error) {
	if epic == nil {
		return nil, fmt.Errorf("epic is required")
	}
	if strings.TrimSpace(narrative) == "" {
		return nil, fmt.Errorf("narrative is required")
	}

	prompt := buildMatchPrompt(epic, features, narrative, persona, criteria)

	responseText, err := c.CallAI(ctx, prompt, "feature_match", c.classifyModel, 1000)
	if err != nil {
		return nil, fmt.Errorf("feature match failed: %w", err)
	}

	parsed := Parse[FeatureMatch](responseText, "feature match response")
	if !parsed.Success {
		return nil, fmt.Errorf("failed to parse feature match: %s", parsed.Error)
	}

	match := parsed.Data
	if err := ValidateFeatureMatch(&match, features); err != nil {
		return nil, fmt.Errorf("feature match failed validation: %w", err)
	}
	return &match, nil
}

func buildMatchPrompt(epic *types.Epic, features []types.Feature, narrative string, persona types.Persona, criteria []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Epic: %s\n%s\n\nFeatures in this epic:\n", epic.Title, epic.Description)
	if len(features) == 0 {
		b.WriteString("(none yet)\n")
	}
	for _, f := range features {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", f.ID, f.Title, f.Description)
	}

	fmt.Fprintf(&b, "\nStory to place:\n%s\n", narrative)
	if persona != "" {
		fmt.Fprintf(&b, "Persona: %s\n", persona)
	}
	for _, ac := range criteria {
		fmt.Fprintf(&b, "- %s\n", ac)
	}

	b.WriteString(`
Recommend where this story belongs:
- "existing" with suggested_feature_id if one listed feature clearly fits
- "new" with new_feature_suggestion if the epic needs a feature it lacks
- "none" if the story does not belong in this epic at all

Respond with ONLY raw JSON (no markdown fences, no extra text) matching:
{
  "recommendation": "existing | new | none",
  "confidence": 0,
  "reasoning": "one sentence",
  "suggested_feature_id": "feature id (existing only)",
  "new_feature_suggestion": {"title": "...", "description": "..."}
}
confidence is an integer 0-100.`)

	return b.String()
}
