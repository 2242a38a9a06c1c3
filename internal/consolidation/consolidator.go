package consolidation

import (
	"context"
	"fmt"
	"log"

	"github.com/storylinehq/storyline/internal/types"
)

// Consolidator runs the consolidation pass over one batch of candidates
type Consolidator struct {
	classifier Classifier
	config     Config
}

// New creates a consolidator.
//
// Returns an error if the classifier is nil or the config fails validation.
func New(classifier Classifier, config Config) (*Consolidator, error) {
	if classifier == nil {
		return nil, fmt.Errorf("classifier cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Consolidator{
		classifier: classifier,
		config:     config,
	}, nil
}

// Consolidate partitions candidates into create/merge/skip against the
// existing stories of one feature.
//
// With no existing stories every candidate is create_new and the classifier
// is never called. Otherwise each candidate gets a single classification
// attempt; a hard classifier failure or a malformed classification switches
// the whole pass to the fail-soft fallback (all create_new, UsedFallback
// set) unless Config.FailSoft is disabled.
func (c *Consolidator) Consolidate(ctx context.Context, candidates []types.CandidateStory, existing []types.ExistingStory) (*Result, error) {
	for i := range candidates {
		if err := candidates[i].Validate(); err != nil {
			return nil, fmt.Errorf("invalid candidate at index %d: %w", i, err)
		}
	}

	// No comparison targets: explicit short-circuit, not a fallback.
	if len(existing) == 0 {
		result := c.allCreateNew(candidates, "no existing stories for this feature")
		result.UsedFallback = false
		result.FallbackReason = ""
		return result, nil
	}

	existingIDs := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		existingIDs[e.ID] = struct{}{}
	}

	decisions := make([]Decision, 0, len(candidates))
	for i, candidate := range candidates {
		// Narratives too short for semantic comparison default to create_new
		// without spending a classifier call.
		if len(candidate.Narrative) < c.config.MinNarrativeLength {
			decisions = append(decisions, Decision{
				Narrative: candidate.Narrative,
				Action:    ActionCreateNew,
				Reason:    fmt.Sprintf("narrative too short for semantic comparison (len=%d)", len(candidate.Narrative)),
			})
			continue
		}

		// One attempt per candidate; no retries at this layer.
		classification, err := c.classifier.ClassifyCandidate(ctx, candidate, existing)
		if err != nil {
			return c.failSoft(candidates, fmt.Errorf("classifier call failed for candidate %d: %w", i, err))
		}
		decision, err := c.decisionFrom(candidate, classification, existingIDs)
		if err != nil {
			return c.failSoft(candidates, fmt.Errorf("malformed classification for candidate %d: %w", i, err))
		}
		decisions = append(decisions, *decision)
	}

	result := c.assemble(candidates, decisions)
	if err := result.Validate(len(candidates)); err != nil {
		// Assembly is deterministic; a failure here is a bug, not bad input.
		return nil, fmt.Errorf("internal error: result failed validation: %w", err)
	}
	return result, nil
}

// decisionFrom validates one classification and converts it to a decision
func (c *Consolidator) decisionFrom(candidate types.CandidateStory, cl *Classification, existingIDs map[string]struct{}) (*Decision, error) {
	if cl == nil {
		return nil, fmt.Errorf("classification is nil")
	}
	if !cl.Action.IsValid() {
		return nil, fmt.Errorf("invalid action: %q", cl.Action)
	}
	if cl.Confidence < 0.0 || cl.Confidence > 1.0 {
		return nil, fmt.Errorf("invalid confidence score: %.2f (must be 0.0-1.0)", cl.Confidence)
	}

	action := cl.Action
	reason := cl.Reasoning

	// Low-confidence merge/skip judgments demote to create_new: losing a
	// duplicate is cheaper than losing a story the user meant to keep.
	if action != ActionCreateNew && cl.Confidence < c.config.ConfidenceThreshold {
		log.Printf("[CONSOLIDATE] Demoting %s to create_new (confidence %.2f < %.2f)",
			action, cl.Confidence, c.config.ConfidenceThreshold)
		return &Decision{
			Narrative: candidate.Narrative,
			Action:    ActionCreateNew,
			Reason:    fmt.Sprintf("low-confidence %s (%.2f) demoted to create_new", action, cl.Confidence),
		}, nil
	}

	switch action {
	case ActionCreateNew:
		return &Decision{
			Narrative: candidate.Narrative,
			Action:    ActionCreateNew,
			Reason:    reason,
		}, nil
	case ActionSkip:
		if cl.ExistingID == "" {
			return nil, fmt.Errorf("skip classification missing existing story id")
		}
		if _, ok := existingIDs[cl.ExistingID]; !ok {
			return nil, fmt.Errorf("skip classification references unknown story id %q", cl.ExistingID)
		}
		return &Decision{
			Narrative:   candidate.Narrative,
			Action:      ActionSkip,
			DuplicateOf: cl.ExistingID,
			Reason:      reason,
		}, nil
	case ActionMergeWithExisting:
		if cl.ExistingID == "" {
			return nil, fmt.Errorf("merge classification missing existing story id")
		}
		if _, ok := existingIDs[cl.ExistingID]; !ok {
			return nil, fmt.Errorf("merge classification references unknown story id %q", cl.ExistingID)
		}
		return &Decision{
			Narrative:       candidate.Narrative,
			Action:          ActionMergeWithExisting,
			MergedWith:      cl.ExistingID,
			MergedNarrative: cl.MergedNarrative,
			Reason:          reason,
		}, nil
	}
	return nil, fmt.Errorf("unhandled action: %q", action)
}

// failSoft degrades the whole pass to create_new-for-everything, or
// surfaces the error when fail-soft is disabled.
func (c *Consolidator) failSoft(candidates []types.CandidateStory, cause error) (*Result, error) {
	if !c.config.FailSoft {
		return nil, cause
	}
	log.Printf("[CONSOLIDATE] Comparison failed, falling back to create_new for all %d candidates: %v",
		len(candidates), cause)
	result := c.allCreateNew(candidates, "semantic comparison unavailable")
	result.UsedFallback = true
	result.FallbackReason = cause.Error()
	return result, nil
}

// allCreateNew builds a pass where every candidate is created as new
func (c *Consolidator) allCreateNew(candidates []types.CandidateStory, reason string) *Result {
	decisions := make([]Decision, 0, len(candidates))
	for _, candidate := range candidates {
		decisions = append(decisions, Decision{
			Narrative: candidate.Narrative,
			Action:    ActionCreateNew,
			Reason:    reason,
		})
	}
	return c.assemble(candidates, decisions)
}

// assemble builds the result buckets, summary, and default selection from
// a complete decision list. Decisions must be in candidate order.
func (c *Consolidator) assemble(candidates []types.CandidateStory, decisions []Decision) *Result {
	result := &Result{
		Decisions:        decisions,
		StoriesToCreate:  []types.CandidateStory{},
		StoriesToMerge:   []MergeSuggestion{},
		StoriesToSkip:    []SkipRecord{},
		DefaultSelection: []int{},
	}
	result.Summary.TotalGenerated = len(candidates)

	for i, d := range decisions {
		switch d.Action {
		case ActionCreateNew:
			result.Summary.NewStories++
			result.StoriesToCreate = append(result.StoriesToCreate, candidates[i])
			result.DefaultSelection = append(result.DefaultSelection, i)
		case ActionMergeWithExisting:
			result.Summary.MergesSuggested++
			result.StoriesToMerge = append(result.StoriesToMerge, MergeSuggestion{
				Candidate:       candidates[i],
				ExistingID:      d.MergedWith,
				MergedNarrative: d.MergedNarrative,
				Reason:          d.Reason,
			})
			result.DefaultSelection = append(result.DefaultSelection, i)
		case ActionSkip:
			result.Summary.DuplicatesFound++
			result.StoriesToSkip = append(result.StoriesToSkip, SkipRecord{
				Candidate:   candidates[i],
				DuplicateOf: d.DuplicateOf,
				Reason:      d.Reason,
			})
		}
	}

	return result
}
