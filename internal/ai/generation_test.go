package ai

import (
	"strings"
	"testing"

	"github.com/storylinehq/storyline/internal/types"
)

func draftOf(narratives ...string) *StoryDraft {
	draft := &StoryDraft{FeatureContext: "test context"}
	for _, n := range narratives {
		draft.Stories = append(draft.Stories, types.CandidateStory{
			Narrative: n,
			Priority:  types.PriorityP1,
		})
	}
	return draft
}

func TestValidateDraft(t *testing.T) {
	valid := []string{
		"As a guest, I want to sign up so that I can save my work.",
		"As a member, I want to invite teammates so that we can collaborate.",
		"As an admin, I want to remove members so that access stays current.",
	}

	tests := []struct {
		name        string
		draft       *StoryDraft
		expectError string
	}{
		{
			name:  "three stories is valid",
			draft: draftOf(valid...),
		},
		{
			name:  "seven stories is valid",
			draft: draftOf(append(append([]string{}, valid...), valid[0], valid[1], valid[2], valid[0])...),
		},
		{
			name:        "two stories is too few",
			draft:       draftOf(valid[0], valid[1]),
			expectError: "expected 3-7 stories",
		},
		{
			name: "eight stories is too many",
			draft: draftOf(append(append([]string{}, valid...),
				valid[0], valid[1], valid[2], valid[0], valid[1])...),
			expectError: "expected 3-7 stories",
		},
		{
			name:        "narrative missing 'i want'",
			draft:       draftOf(valid[0], valid[1], "As a member, the export should be fast."),
			expectError: "i want",
		},
		{
			name:        "narrative missing 'as a'",
			draft:       draftOf(valid[0], valid[1], "I want exports so that reporting works."),
			expectError: "as a",
		},
		{
			name:        "nil draft",
			draft:       nil,
			expectError: "nil",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDraft(tt.draft)
			if tt.expectError == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.expectError) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.expectError)
			}
		})
	}
}

func TestValidateDraftNarrativeCaseInsensitive(t *testing.T) {
	draft := draftOf(
		"AS A guest, I WANT to sign up so that I can save my work.",
		"as a member, i want to invite teammates so that we can collaborate.",
		"As An admin, I Want to audit access so that compliance holds.",
	)
	if err := ValidateDraft(draft); err != nil {
		t.Errorf("case variations should validate: %v", err)
	}
}

func TestNormalizeDraftDefaultsPriority(t *testing.T) {
	draft := draftOf(
		"As a guest, I want to sign up so that I can save my work.",
		"As a member, I want to invite teammates so that we can collaborate.",
		"As an admin, I want to remove members so that access stays current.",
	)
	draft.Stories[1].Priority = ""

	normalizeDraft(draft)

	if draft.Stories[1].Priority != types.PriorityP1 {
		t.Errorf("priority = %s, want default %s", draft.Stories[1].Priority, types.PriorityP1)
	}
	if err := ValidateDraft(draft); err != nil {
		t.Errorf("normalized draft failed validation: %v", err)
	}
}

func TestValidateFeatureMatch(t *testing.T) {
	features := []types.Feature{
		{ID: "feat-1", EpicID: "epic-1", Title: "Onboarding", Status: types.StatusPlanned},
		{ID: "feat-2", EpicID: "epic-1", Title: "Billing", Status: types.StatusPlanned},
	}

	tests := []struct {
		name        string
		match       *FeatureMatch
		expectError bool
	}{
		{
			name:  "existing with known feature",
			match: &FeatureMatch{Recommendation: "existing", Confidence: 80, SuggestedFeatureID: "feat-2"},
		},
		{
			name:  "new with suggestion",
			match: &FeatureMatch{Recommendation: "new", Confidence: 65, NewFeatureSuggestion: &FeatureSuggestion{Title: "Exports"}},
		},
		{
			name:  "none",
			match: &FeatureMatch{Recommendation: "none", Confidence: 40},
		},
		{
			name:        "existing without feature id",
			match:       &FeatureMatch{Recommendation: "existing", Confidence: 80},
			expectError: true,
		},
		{
			name:        "existing with unknown feature id",
			match:       &FeatureMatch{Recommendation: "existing", Confidence: 80, SuggestedFeatureID: "feat-99"},
			expectError: true,
		},
		{
			name:        "new without suggestion",
			match:       &FeatureMatch{Recommendation: "new", Confidence: 65},
			expectError: true,
		},
		{
			name:        "confidence above 100",
			match:       &FeatureMatch{Recommendation: "none", Confidence: 120},
			expectError: true,
		},
		{
			name:        "unknown recommendation",
			match:       &FeatureMatch{Recommendation: "maybe", Confidence: 50},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFeatureMatch(tt.match, features)
			if tt.expectError && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateTaskPlan(t *testing.T) {
	mkTask := func(name string, platform types.Platform) types.GeneratedTask {
		return types.GeneratedTask{Name: name, Platform: platform, Priority: types.PriorityP1}
	}
	requested := []types.Platform{types.PlatformWeb, types.PlatformBackend}

	tests := []struct {
		name        string
		plan        *TaskPlan
		expectError bool
	}{
		{
			name: "valid plan",
			plan: &TaskPlan{
				Tasks:             []types.GeneratedTask{mkTask("API", types.PlatformBackend), mkTask("UI", types.PlatformWeb)},
				OverallConfidence: 0.8,
			},
		},
		{
			name:        "empty plan",
			plan:        &TaskPlan{OverallConfidence: 0.8},
			expectError: true,
		},
		{
			name: "unrequested platform",
			plan: &TaskPlan{
				Tasks:             []types.GeneratedTask{mkTask("App", types.PlatformIOS)},
				OverallConfidence: 0.8,
			},
			expectError: true,
		},
		{
			name: "confidence out of range",
			plan: &TaskPlan{
				Tasks:             []types.GeneratedTask{mkTask("API", types.PlatformBackend)},
				OverallConfidence: 1.4,
			},
			expectError: true,
		},
		{
			name: "task without name",
			plan: &TaskPlan{
				Tasks:             []types.GeneratedTask{mkTask("", types.PlatformWeb)},
				OverallConfidence: 0.5,
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTaskPlan(tt.plan, requested)
			if tt.expectError && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
