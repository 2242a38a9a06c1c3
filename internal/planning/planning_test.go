package planning

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/storylinehq/storyline/internal/ai"
	"github.com/storylinehq/storyline/internal/consolidation"
	"github.com/storylinehq/storyline/internal/storage"
	"github.com/storylinehq/storyline/internal/types"
)

type stubDrafter struct {
	draft *ai.StoryDraft
	err   error
}

func (s *stubDrafter) DraftStories(ctx context.Context, epic *types.Epic, feature *types.Feature, existing []types.ExistingStory) (*ai.StoryDraft, error) {
	return s.draft, s.err
}

type stubTaskPlanner struct {
	plan *ai.TaskPlan
	err  error
}

func (s *stubTaskPlanner) GenerateTasks(ctx context.Context, story *types.UserStory, platforms []types.Platform, additionalContext string) (*ai.TaskPlan, error) {
	return s.plan, s.err
}

type stubClassifier struct {
	byNarrative map[string]*consolidation.Classification
}

func (s *stubClassifier) ClassifyCandidate(ctx context.Context, candidate types.CandidateStory, existing []types.ExistingStory) (*consolidation.Classification, error) {
	if cl, ok := s.byNarrative[candidate.Narrative]; ok {
		return cl, nil
	}
	return nil, fmt.Errorf("unexpected candidate: %s", candidate.Narrative)
}

func newTestStore(t *testing.T) storage.Storage {
	t.Helper()
	store, err := storage.NewStorage(context.Background(),
		&storage.Config{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("NewStorage() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func seedFeature(t *testing.T, store storage.Storage) *types.Feature {
	t.Helper()
	ctx := context.Background()
	epic := &types.Epic{Title: "Accounts"}
	if err := store.CreateEpic(ctx, epic); err != nil {
		t.Fatal(err)
	}
	feature := &types.Feature{EpicID: epic.ID, Title: "Sign-in"}
	if err := store.CreateFeature(ctx, feature); err != nil {
		t.Fatal(err)
	}
	return feature
}

func newConsolidator(t *testing.T, classifier consolidation.Classifier) *consolidation.Consolidator {
	t.Helper()
	c, err := consolidation.New(classifier, consolidation.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func candidate(narrative string) types.CandidateStory {
	return types.CandidateStory{Narrative: narrative, Priority: types.PriorityP1}
}

func TestGenerateStoriesEmptyFeatureCreatesAll(t *testing.T) {
	store := newTestStore(t)
	feature := seedFeature(t, store)
	ctx := context.Background()

	drafter := &stubDrafter{draft: &ai.StoryDraft{Stories: []types.CandidateStory{
		candidate("As a guest, I want to sign in with email so that I keep my history"),
		candidate("As a member, I want to reset my password so that I can recover access"),
		candidate("As a member, I want to stay signed in so that I skip repeated logins"),
	}}}
	// No existing stories, so the classifier must never be consulted.
	classifier := &stubClassifier{}

	p, err := New(store, drafter, nil, newConsolidator(t, classifier))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	gen, err := p.GenerateStories(ctx, feature.ID)
	if err != nil {
		t.Fatalf("GenerateStories() error = %v", err)
	}
	if gen.Consolidation.UsedFallback {
		t.Error("empty-feature pass should not be marked as fallback")
	}
	if got := len(gen.Consolidation.StoriesToCreate); got != 3 {
		t.Fatalf("StoriesToCreate = %d, want 3", got)
	}

	created, merged, err := p.ApplySelection(ctx, gen, gen.Consolidation.DefaultSelection, true)
	if err != nil {
		t.Fatalf("ApplySelection() error = %v", err)
	}
	if created != 3 || merged != 0 {
		t.Errorf("ApplySelection() = (%d, %d), want (3, 0)", created, merged)
	}

	stories, _ := store.ListStories(ctx, feature.ID)
	if len(stories) != 3 {
		t.Errorf("persisted stories = %d, want 3", len(stories))
	}
}

func TestGenerateStoriesAppliesMergeAndSkip(t *testing.T) {
	store := newTestStore(t)
	feature := seedFeature(t, store)
	ctx := context.Background()

	existing := &types.UserStory{
		FeatureID: feature.ID,
		Narrative: "As a member, I want to reset my password so that I can recover access",
		Priority:  types.PriorityP1,
	}
	if err := store.CreateStory(ctx, existing); err != nil {
		t.Fatal(err)
	}

	fresh := "As a guest, I want to sign in with email so that I keep my history"
	dup := "As a member, I want password reset so that I can get back in"
	mergeable := "As a member, I want to reset my password via SMS so that email is optional"
	merged := "As a member, I want to reset my password via email or SMS so that I can recover access"

	drafter := &stubDrafter{draft: &ai.StoryDraft{Stories: []types.CandidateStory{
		candidate(fresh), candidate(dup), candidate(mergeable),
	}}}
	classifier := &stubClassifier{byNarrative: map[string]*consolidation.Classification{
		fresh: {Action: consolidation.ActionCreateNew, Confidence: 0.9},
		dup:   {Action: consolidation.ActionSkip, ExistingID: existing.ID, Confidence: 0.95},
		mergeable: {
			Action:          consolidation.ActionMergeWithExisting,
			ExistingID:      existing.ID,
			MergedNarrative: merged,
			Confidence:      0.9,
		},
	}}

	p, err := New(store, drafter, nil, newConsolidator(t, classifier))
	if err != nil {
		t.Fatal(err)
	}

	gen, err := p.GenerateStories(ctx, feature.ID)
	if err != nil {
		t.Fatalf("GenerateStories() error = %v", err)
	}
	s := gen.Consolidation.Summary
	if s.NewStories != 1 || s.MergesSuggested != 1 || s.DuplicatesFound != 1 {
		t.Fatalf("summary = %+v", s)
	}

	created, mergedCount, err := p.ApplySelection(ctx, gen, gen.Consolidation.DefaultSelection, true)
	if err != nil {
		t.Fatalf("ApplySelection() error = %v", err)
	}
	if created != 1 || mergedCount != 1 {
		t.Errorf("ApplySelection() = (%d, %d), want (1, 1)", created, mergedCount)
	}

	got, _ := store.GetStory(ctx, existing.ID)
	if got.Narrative != merged {
		t.Errorf("merge not applied, narrative = %q", got.Narrative)
	}

	// One fresh creation plus the original story.
	stories, _ := store.ListStories(ctx, feature.ID)
	if len(stories) != 2 {
		t.Errorf("persisted stories = %d, want 2", len(stories))
	}
}

func TestApplySelectionFallbackLeavesNotification(t *testing.T) {
	store := newTestStore(t)
	feature := seedFeature(t, store)
	ctx := context.Background()

	if err := store.CreateStory(ctx, &types.UserStory{
		FeatureID: feature.ID,
		Narrative: "As a member, I want to sign out so that shared devices are safe",
	}); err != nil {
		t.Fatal(err)
	}

	drafter := &stubDrafter{draft: &ai.StoryDraft{Stories: []types.CandidateStory{
		candidate("As a guest, I want to sign in with email so that I keep my history"),
	}}}
	// Classifier knows no narratives, so every call errors and the pass
	// falls back to create-all.
	classifier := &stubClassifier{}

	p, err := New(store, drafter, nil, newConsolidator(t, classifier))
	if err != nil {
		t.Fatal(err)
	}

	gen, err := p.GenerateStories(ctx, feature.ID)
	if err != nil {
		t.Fatalf("GenerateStories() error = %v", err)
	}
	if !gen.Consolidation.UsedFallback {
		t.Fatal("pass should be marked as fallback")
	}

	if _, _, err := p.ApplySelection(ctx, gen, gen.Consolidation.DefaultSelection, true); err != nil {
		t.Fatalf("ApplySelection() error = %v", err)
	}

	notes, err := store.ListNotifications(ctx, true, 0)
	if err != nil {
		t.Fatal(err)
	}
	kinds := make(map[string]int, len(notes))
	for _, n := range notes {
		kinds[n.Kind]++
	}
	if kinds["consolidation_fallback"] != 1 {
		t.Errorf("notifications = %+v, want one consolidation_fallback", notes)
	}
	if kinds["stories_created"] != 1 {
		t.Errorf("notifications = %+v, want one stories_created", notes)
	}
}

func TestPlanTasksAssignsWaves(t *testing.T) {
	store := newTestStore(t)
	feature := seedFeature(t, store)
	ctx := context.Background()

	story := &types.UserStory{
		FeatureID: feature.ID,
		Narrative: "As a member, I want social sign-in so that onboarding is faster",
	}
	if err := store.CreateStory(ctx, story); err != nil {
		t.Fatal(err)
	}

	planner := &stubTaskPlanner{plan: &ai.TaskPlan{
		Tasks: []types.GeneratedTask{
			{Name: "OAuth endpoints", Platform: types.PlatformBackend, Priority: types.PriorityP0},
			{Name: "Sign-in screen", Platform: types.PlatformWeb, Priority: types.PriorityP1,
				Dependencies: []string{"OAuth endpoints"}},
		},
		OverallConfidence: 0.8,
	}}

	p, err := New(store, nil, planner, nil)
	if err != nil {
		t.Fatal(err)
	}

	result, err := p.PlanTasks(ctx, story.ID, []types.Platform{types.PlatformBackend, types.PlatformWeb}, "")
	if err != nil {
		t.Fatalf("PlanTasks() error = %v", err)
	}
	if len(result.Groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(result.Groups))
	}

	saved, err := p.SaveTasks(ctx, story.ID, result.Plan.Tasks)
	if err != nil {
		t.Fatalf("SaveTasks() error = %v", err)
	}
	if saved != 2 {
		t.Errorf("saved = %d, want 2", saved)
	}

	groups, err := p.SavedWaves(ctx, story.ID)
	if err != nil {
		t.Fatalf("SavedWaves() error = %v", err)
	}
	if len(groups) != 2 {
		t.Errorf("saved waves groups = %d, want 2", len(groups))
	}
}

func TestPlanTasksMissingStory(t *testing.T) {
	store := newTestStore(t)
	p, err := New(store, nil, &stubTaskPlanner{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.PlanTasks(context.Background(), "ghost", nil, ""); err == nil {
		t.Error("PlanTasks() with missing story should fail")
	}
}
