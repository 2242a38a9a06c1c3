package consolidation

import (
	"context"
	"fmt"

	"github.com/storylinehq/storyline/internal/types"
)

// Action is the per-candidate consolidation outcome
type Action string

const (
	ActionCreateNew         Action = "create_new"
	ActionMergeWithExisting Action = "merge_with_existing"
	ActionSkip              Action = "skip"
)

// IsValid checks if the action value is valid
func (a Action) IsValid() bool {
	switch a {
	case ActionCreateNew, ActionMergeWithExisting, ActionSkip:
		return true
	}
	return false
}

// Classification is the collaborator's judgment for one candidate.
// ExistingID must be set for skip and merge actions; MergedNarrative is
// only meaningful for merges.
type Classification struct {
	Action          Action  `json:"action"`
	ExistingID      string  `json:"existing_id,omitempty"`
	MergedNarrative string  `json:"merged_narrative,omitempty"`
	Confidence      float64 `json:"confidence"` // 0.0-1.0
	Reasoning       string  `json:"reasoning,omitempty"`
}

// Classifier is the external semantic-comparison collaborator. Implemented
// by the AI layer in production and by stubs in tests.
type Classifier interface {
	// ClassifyCandidate judges one candidate against the existing stories
	// of the same feature. A returned error or malformed classification
	// triggers the consolidator's fail-soft path.
	ClassifyCandidate(ctx context.Context, candidate types.CandidateStory, existing []types.ExistingStory) (*Classification, error)
}

// Decision records the consolidation outcome for one candidate
type Decision struct {
	Narrative       string `json:"narrative"`
	Action          Action `json:"action"`
	DuplicateOf     string `json:"duplicate_of,omitempty"` // Existing story id, skip only
	MergedWith      string `json:"merged_with,omitempty"`  // Existing story id, merge only
	MergedNarrative string `json:"merged_narrative,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

// Validate checks the decision's internal consistency
func (d *Decision) Validate() error {
	if !d.Action.IsValid() {
		return fmt.Errorf("invalid action: %s", d.Action)
	}
	switch d.Action {
	case ActionSkip:
		if d.DuplicateOf == "" {
			return fmt.Errorf("duplicate_of must be set for skip decisions")
		}
	case ActionMergeWithExisting:
		if d.MergedWith == "" {
			return fmt.Errorf("merged_with must be set for merge decisions")
		}
	case ActionCreateNew:
		if d.DuplicateOf != "" || d.MergedWith != "" {
			return fmt.Errorf("create_new decisions must not reference an existing story")
		}
	}
	return nil
}

// MergeSuggestion pairs a candidate with the existing story it should
// fold into, plus the classifier's synthesized combined narrative.
type MergeSuggestion struct {
	Candidate       types.CandidateStory `json:"candidate"`
	ExistingID      string               `json:"existing_id"`
	MergedNarrative string               `json:"merged_narrative,omitempty"`
	Reason          string               `json:"reason,omitempty"`
}

// SkipRecord pairs a candidate with the existing story it duplicates
type SkipRecord struct {
	Candidate   types.CandidateStory `json:"candidate"`
	DuplicateOf string               `json:"duplicate_of"`
	Reason      string               `json:"reason,omitempty"`
}

// Summary aggregates one pass. The three per-action counts always sum to
// TotalGenerated.
type Summary struct {
	TotalGenerated  int `json:"total_generated"`
	NewStories      int `json:"new_stories"`
	MergesSuggested int `json:"merges_suggested"`
	DuplicatesFound int `json:"duplicates_found"`
}

// Result is the UI-facing outcome of one consolidation pass
type Result struct {
	// Decisions holds exactly one entry per input candidate, in input order
	Decisions []Decision `json:"decisions"`

	StoriesToCreate []types.CandidateStory `json:"stories_to_create"`
	StoriesToMerge  []MergeSuggestion      `json:"stories_to_merge"`
	StoriesToSkip   []SkipRecord           `json:"stories_to_skip"`

	Summary Summary `json:"summary"`

	// DefaultSelection holds the candidate indices the UI pre-checks for
	// saving: every index whose decision is not skip.
	DefaultSelection []int `json:"default_selection"`

	// UsedFallback is true when the classifier failed and every candidate
	// was defaulted to create_new. Callers should surface this to the user
	// rather than presenting the pass as a real comparison.
	UsedFallback   bool   `json:"used_fallback"`
	FallbackReason string `json:"fallback_reason,omitempty"`
}

// Validate checks the result's invariants against the candidate count
func (r *Result) Validate(candidateCount int) error {
	if len(r.Decisions) != candidateCount {
		return fmt.Errorf("decisions length (%d) does not match candidate count (%d)",
			len(r.Decisions), candidateCount)
	}
	sum := r.Summary.NewStories + r.Summary.MergesSuggested + r.Summary.DuplicatesFound
	if sum != r.Summary.TotalGenerated {
		return fmt.Errorf("summary counts sum to %d, want total_generated %d", sum, r.Summary.TotalGenerated)
	}
	if r.Summary.TotalGenerated != candidateCount {
		return fmt.Errorf("summary.total_generated (%d) does not match candidate count (%d)",
			r.Summary.TotalGenerated, candidateCount)
	}
	if len(r.StoriesToCreate) != r.Summary.NewStories {
		return fmt.Errorf("stories_to_create length (%d) does not match summary.new_stories (%d)",
			len(r.StoriesToCreate), r.Summary.NewStories)
	}
	if len(r.StoriesToMerge) != r.Summary.MergesSuggested {
		return fmt.Errorf("stories_to_merge length (%d) does not match summary.merges_suggested (%d)",
			len(r.StoriesToMerge), r.Summary.MergesSuggested)
	}
	if len(r.StoriesToSkip) != r.Summary.DuplicatesFound {
		return fmt.Errorf("stories_to_skip length (%d) does not match summary.duplicates_found (%d)",
			len(r.StoriesToSkip), r.Summary.DuplicatesFound)
	}
	for i, d := range r.Decisions {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("decision %d: %w", i, err)
		}
	}
	selected := make(map[int]bool, len(r.DefaultSelection))
	for _, idx := range r.DefaultSelection {
		if idx < 0 || idx >= candidateCount {
			return fmt.Errorf("default_selection contains invalid index %d (total: %d)", idx, candidateCount)
		}
		selected[idx] = true
	}
	for i, d := range r.Decisions {
		wantSelected := d.Action != ActionSkip
		if selected[i] != wantSelected {
			return fmt.Errorf("default_selection mismatch at index %d: selected=%t, action=%s",
				i, selected[i], d.Action)
		}
	}
	return nil
}
