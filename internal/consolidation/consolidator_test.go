package consolidation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/storylinehq/storyline/internal/types"
)

// stubClassifier returns canned classifications keyed by candidate narrative
type stubClassifier struct {
	byNarrative map[string]*Classification
	err         error
	calls       int
}

func (s *stubClassifier) ClassifyCandidate(ctx context.Context, candidate types.CandidateStory, existing []types.ExistingStory) (*Classification, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if cl, ok := s.byNarrative[candidate.Narrative]; ok {
		return cl, nil
	}
	return &Classification{Action: ActionCreateNew, Confidence: 0.9}, nil
}

func candidate(narrative string) types.CandidateStory {
	return types.CandidateStory{
		Narrative: narrative,
		Priority:  types.PriorityP1,
	}
}

var testExisting = []types.ExistingStory{
	{ID: "story-1", Narrative: "As a member, I want to reset my password so I can regain access.", FeatureID: "feat-1"},
	{ID: "story-2", Narrative: "As a guest, I want to browse without an account so I can evaluate the product.", FeatureID: "feat-1"},
}

func TestConsolidateEmptyExistingShortCircuits(t *testing.T) {
	stub := &stubClassifier{}
	cons, err := New(stub, DefaultConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	candidates := []types.CandidateStory{
		candidate("As a guest, I want to sign up so I can save my work."),
		candidate("As a member, I want to invite teammates so we can collaborate."),
	}

	result, err := cons.Consolidate(context.Background(), candidates, nil)
	if err != nil {
		t.Fatalf("Consolidate failed: %v", err)
	}
	if stub.calls != 0 {
		t.Errorf("classifier called %d times, want 0 (short-circuit)", stub.calls)
	}
	if result.UsedFallback {
		t.Error("short-circuit must not be marked as fallback")
	}
	for i, d := range result.Decisions {
		if d.Action != ActionCreateNew {
			t.Errorf("decision %d: action = %s, want %s", i, d.Action, ActionCreateNew)
		}
	}
	if len(result.DefaultSelection) != len(candidates) {
		t.Errorf("default_selection length = %d, want %d (all candidates)", len(result.DefaultSelection), len(candidates))
	}
	if err := result.Validate(len(candidates)); err != nil {
		t.Errorf("result failed validation: %v", err)
	}
}

func TestConsolidatePartitionsAndCounts(t *testing.T) {
	stub := &stubClassifier{
		byNarrative: map[string]*Classification{
			"As a member, I want to reset my password quickly.": {
				Action: ActionSkip, ExistingID: "story-1", Confidence: 0.95,
				Reasoning: "restates the existing reset story",
			},
			"As a guest, I want to browse the catalog and bookmark items.": {
				Action: ActionMergeWithExisting, ExistingID: "story-2", Confidence: 0.85,
				MergedNarrative: "As a guest, I want to browse and bookmark without an account.",
			},
		},
	}
	cons, err := New(stub, DefaultConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	candidates := []types.CandidateStory{
		candidate("As a member, I want to reset my password quickly."),
		candidate("As a guest, I want to browse the catalog and bookmark items."),
		candidate("As an admin, I want to export audit logs so I can review access."),
	}

	result, err := cons.Consolidate(context.Background(), candidates, testExisting)
	if err != nil {
		t.Fatalf("Consolidate failed: %v", err)
	}

	if err := result.Validate(len(candidates)); err != nil {
		t.Fatalf("result failed validation: %v", err)
	}
	if result.UsedFallback {
		t.Error("successful pass must not be marked as fallback")
	}
	want := Summary{TotalGenerated: 3, NewStories: 1, MergesSuggested: 1, DuplicatesFound: 1}
	if result.Summary != want {
		t.Errorf("summary = %+v, want %+v", result.Summary, want)
	}
	if len(result.DefaultSelection) != 2 {
		t.Fatalf("default_selection = %v, want two entries (skip excluded)", result.DefaultSelection)
	}
	for _, idx := range result.DefaultSelection {
		if result.Decisions[idx].Action == ActionSkip {
			t.Errorf("default_selection contains skipped index %d", idx)
		}
	}
	if result.StoriesToSkip[0].DuplicateOf != "story-1" {
		t.Errorf("skip duplicate_of = %s, want story-1", result.StoriesToSkip[0].DuplicateOf)
	}
	if result.StoriesToMerge[0].ExistingID != "story-2" {
		t.Errorf("merge existing_id = %s, want story-2", result.StoriesToMerge[0].ExistingID)
	}
	if !strings.Contains(result.StoriesToMerge[0].MergedNarrative, "bookmark") {
		t.Errorf("merged narrative not propagated: %q", result.StoriesToMerge[0].MergedNarrative)
	}
}

func TestConsolidateFailSoftOnClassifierError(t *testing.T) {
	stub := &stubClassifier{err: errors.New("service unavailable")}
	cons, err := New(stub, DefaultConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	candidates := []types.CandidateStory{
		candidate("As a guest, I want to sign up so I can save my work."),
		candidate("As a member, I want to delete my account so my data is removed."),
	}

	result, err := cons.Consolidate(context.Background(), candidates, testExisting)
	if err != nil {
		t.Fatalf("fail-soft pass returned error: %v", err)
	}

	if !result.UsedFallback {
		t.Fatal("UsedFallback = false, want true")
	}
	if result.FallbackReason == "" {
		t.Error("FallbackReason is empty")
	}
	for i, d := range result.Decisions {
		if d.Action != ActionCreateNew {
			t.Errorf("decision %d: action = %s, want %s", i, d.Action, ActionCreateNew)
		}
	}
	if len(result.DefaultSelection) != len(candidates) {
		t.Errorf("default_selection length = %d, want %d (select all)", len(result.DefaultSelection), len(candidates))
	}
	if stub.calls != 1 {
		t.Errorf("classifier called %d times, want 1 (no retries)", stub.calls)
	}
	if err := result.Validate(len(candidates)); err != nil {
		t.Errorf("fallback result failed validation: %v", err)
	}
}

func TestConsolidateMalformedClassifications(t *testing.T) {
	tests := []struct {
		name           string
		classification *Classification
	}{
		{
			name:           "unknown action",
			classification: &Classification{Action: "merge_maybe", Confidence: 0.9},
		},
		{
			name:           "skip without reference",
			classification: &Classification{Action: ActionSkip, Confidence: 0.9},
		},
		{
			name:           "merge referencing unknown story",
			classification: &Classification{Action: ActionMergeWithExisting, ExistingID: "story-999", Confidence: 0.9},
		},
		{
			name:           "confidence out of range",
			classification: &Classification{Action: ActionSkip, ExistingID: "story-1", Confidence: 1.7},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			narrative := "As a member, I want something that trips the classifier."
			stub := &stubClassifier{byNarrative: map[string]*Classification{narrative: tt.classification}}
			cons, err := New(stub, DefaultConfig())
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}

			candidates := []types.CandidateStory{candidate(narrative)}
			result, err := cons.Consolidate(context.Background(), candidates, testExisting)
			if err != nil {
				t.Fatalf("fail-soft pass returned error: %v", err)
			}
			if !result.UsedFallback {
				t.Error("UsedFallback = false, want true for malformed classification")
			}
			if result.Decisions[0].Action != ActionCreateNew {
				t.Errorf("action = %s, want %s", result.Decisions[0].Action, ActionCreateNew)
			}
		})
	}
}

func TestConsolidateHardErrorWhenFailSoftDisabled(t *testing.T) {
	stub := &stubClassifier{err: errors.New("service unavailable")}
	cfg := DefaultConfig()
	cfg.FailSoft = false
	cons, err := New(stub, cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = cons.Consolidate(context.Background(),
		[]types.CandidateStory{candidate("As a guest, I want to sign up so I can save my work.")},
		testExisting)
	if err == nil {
		t.Fatal("expected error with FailSoft disabled, got nil")
	}
}

func TestConsolidateLowConfidenceDemotesToCreateNew(t *testing.T) {
	narrative := "As a member, I want to reset my password on mobile."
	stub := &stubClassifier{
		byNarrative: map[string]*Classification{
			narrative: {Action: ActionSkip, ExistingID: "story-1", Confidence: 0.4},
		},
	}
	cons, err := New(stub, DefaultConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	result, err := cons.Consolidate(context.Background(),
		[]types.CandidateStory{candidate(narrative)}, testExisting)
	if err != nil {
		t.Fatalf("Consolidate failed: %v", err)
	}
	if result.UsedFallback {
		t.Error("demotion is not a fallback")
	}
	if result.Decisions[0].Action != ActionCreateNew {
		t.Errorf("action = %s, want %s (below threshold)", result.Decisions[0].Action, ActionCreateNew)
	}
}

func TestConsolidateShortNarrativeSkipsClassifier(t *testing.T) {
	stub := &stubClassifier{}
	cfg := DefaultConfig()
	cfg.MinNarrativeLength = 200
	cons, err := New(stub, cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	result, err := cons.Consolidate(context.Background(),
		[]types.CandidateStory{candidate("As a guest, I want in.")}, testExisting)
	if err != nil {
		t.Fatalf("Consolidate failed: %v", err)
	}
	if stub.calls != 0 {
		t.Errorf("classifier called %d times, want 0 for short narrative", stub.calls)
	}
	if result.Decisions[0].Action != ActionCreateNew {
		t.Errorf("action = %s, want %s", result.Decisions[0].Action, ActionCreateNew)
	}
}

func TestConsolidateSingleCandidateExample(t *testing.T) {
	// candidates = [sign-up story], existing = [] → one create_new decision,
	// summary 1/1/0/0.
	cons, err := New(&stubClassifier{}, DefaultConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	result, err := cons.Consolidate(context.Background(),
		[]types.CandidateStory{candidate("As a guest, I want to sign up so I can save my work.")}, nil)
	if err != nil {
		t.Fatalf("Consolidate failed: %v", err)
	}

	if len(result.Decisions) != 1 || result.Decisions[0].Action != ActionCreateNew {
		t.Errorf("decisions = %+v, want single create_new", result.Decisions)
	}
	want := Summary{TotalGenerated: 1, NewStories: 1, MergesSuggested: 0, DuplicatesFound: 0}
	if result.Summary != want {
		t.Errorf("summary = %+v, want %+v", result.Summary, want)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{"default is valid", func(c *Config) {}, false},
		{"threshold too high", func(c *Config) { c.ConfidenceThreshold = 1.5 }, true},
		{"threshold negative", func(c *Config) { c.ConfidenceThreshold = -0.1 }, true},
		{"negative narrative length", func(c *Config) { c.MinNarrativeLength = -1 }, true},
		{"huge narrative length", func(c *Config) { c.MinNarrativeLength = 10000 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.expectError && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("STORYLINE_CONSOLIDATION_THRESHOLD", "0.9")
	t.Setenv("STORYLINE_CONSOLIDATION_MIN_NARRATIVE", "30")
	t.Setenv("STORYLINE_CONSOLIDATION_FAIL_SOFT", "false")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv failed: %v", err)
	}
	if cfg.ConfidenceThreshold != 0.9 {
		t.Errorf("ConfidenceThreshold = %v, want 0.9", cfg.ConfidenceThreshold)
	}
	if cfg.MinNarrativeLength != 30 {
		t.Errorf("MinNarrativeLength = %v, want 30", cfg.MinNarrativeLength)
	}
	if cfg.FailSoft {
		t.Error("FailSoft = true, want false")
	}
}

func TestConfigFromEnvInvalidValue(t *testing.T) {
	t.Setenv("STORYLINE_CONSOLIDATION_THRESHOLD", "not-a-number")
	if _, err := ConfigFromEnv(); err == nil {
		t.Error("expected error for invalid threshold, got nil")
	}
}

func TestResultValidateCatchesInconsistencies(t *testing.T) {
	mkResult := func() *Result {
		return &Result{
			Decisions: []Decision{
				{Narrative: "n1", Action: ActionCreateNew},
				{Narrative: "n2", Action: ActionSkip, DuplicateOf: "story-1"},
			},
			StoriesToCreate:  []types.CandidateStory{{Narrative: "n1"}},
			StoriesToMerge:   []MergeSuggestion{},
			StoriesToSkip:    []SkipRecord{{Candidate: types.CandidateStory{Narrative: "n2"}, DuplicateOf: "story-1"}},
			Summary:          Summary{TotalGenerated: 2, NewStories: 1, DuplicatesFound: 1},
			DefaultSelection: []int{0},
		}
	}

	if err := mkResult().Validate(2); err != nil {
		t.Fatalf("consistent result failed validation: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Result)
	}{
		{"count mismatch", func(r *Result) { r.Summary.NewStories = 2 }},
		{"decision count mismatch", func(r *Result) { r.Decisions = r.Decisions[:1] }},
		{"skipped index selected", func(r *Result) { r.DefaultSelection = []int{0, 1} }},
		{"selection index out of range", func(r *Result) { r.DefaultSelection = []int{0, 5} }},
		{"skip decision missing reference", func(r *Result) { r.Decisions[1].DuplicateOf = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := mkResult()
			tt.mutate(r)
			if err := r.Validate(2); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestDecisionsCoverCandidatesForAnyBatchSize(t *testing.T) {
	cons, err := New(&stubClassifier{}, DefaultConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	for _, n := range []int{0, 1, 5, 13} {
		candidates := make([]types.CandidateStory, 0, n)
		for i := 0; i < n; i++ {
			candidates = append(candidates,
				candidate(fmt.Sprintf("As a member, I want capability %d so I can test coverage.", i)))
		}
		result, err := cons.Consolidate(context.Background(), candidates, testExisting)
		if err != nil {
			t.Fatalf("Consolidate failed for n=%d: %v", n, err)
		}
		if err := result.Validate(n); err != nil {
			t.Errorf("n=%d: %v", n, err)
		}
	}
}
