package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/storylinehq/storyline/internal/types"
)

func newTestStore(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func seedFeature(t *testing.T, store *SQLiteStorage) *types.Feature {
	t.Helper()
	ctx := context.Background()
	epic := &types.Epic{Title: "Payments"}
	if err := store.CreateEpic(ctx, epic); err != nil {
		t.Fatalf("CreateEpic() error = %v", err)
	}
	feature := &types.Feature{EpicID: epic.ID, Title: "Checkout"}
	if err := store.CreateFeature(ctx, feature); err != nil {
		t.Fatalf("CreateFeature() error = %v", err)
	}
	return feature
}

func testStory(featureID, narrative string) *types.UserStory {
	return &types.UserStory{
		FeatureID: featureID,
		Narrative: narrative,
		Priority:  types.PriorityP1,
	}
}

func TestEpicLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	epic := &types.Epic{Title: "Onboarding", Description: "First-run experience"}
	if err := store.CreateEpic(ctx, epic); err != nil {
		t.Fatalf("CreateEpic() error = %v", err)
	}
	if epic.ID == "" {
		t.Fatal("CreateEpic() did not assign an ID")
	}

	got, err := store.GetEpic(ctx, epic.ID)
	if err != nil {
		t.Fatalf("GetEpic() error = %v", err)
	}
	if got == nil || got.Title != "Onboarding" {
		t.Errorf("GetEpic() = %+v, want title Onboarding", got)
	}
	if got.Status != types.StatusPlanned {
		t.Errorf("new epic status = %s, want planned", got.Status)
	}

	if err := store.UpdateEpicStatus(ctx, epic.ID, types.StatusInProgress); err != nil {
		t.Fatalf("UpdateEpicStatus() error = %v", err)
	}
	got, _ = store.GetEpic(ctx, epic.ID)
	if got.Status != types.StatusInProgress {
		t.Errorf("status after update = %s, want in_progress", got.Status)
	}

	missing, err := store.GetEpic(ctx, "no-such-id")
	if err != nil || missing != nil {
		t.Errorf("GetEpic(missing) = (%v, %v), want (nil, nil)", missing, err)
	}
}

func TestUpdateStatusMissingRow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.UpdateEpicStatus(ctx, "ghost", types.StatusDone)
	if err == nil {
		t.Fatal("UpdateEpicStatus(missing) should fail")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %v, want not found", err)
	}
}

func TestCreateStoriesTransactional(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	feature := seedFeature(t, store)

	// Second story is invalid: the whole batch must roll back.
	batch := []*types.UserStory{
		testStory(feature.ID, "As a member, I want to save my card so that checkout is faster"),
		testStory(feature.ID, "not a story narrative"),
	}
	if err := store.CreateStories(ctx, batch); err == nil {
		t.Fatal("CreateStories() with invalid story should fail")
	}

	stories, err := store.ListStories(ctx, feature.ID)
	if err != nil {
		t.Fatalf("ListStories() error = %v", err)
	}
	if len(stories) != 0 {
		t.Errorf("partial batch persisted: %d stories, want 0", len(stories))
	}

	// A valid batch lands whole.
	batch = []*types.UserStory{
		testStory(feature.ID, "As a member, I want to save my card so that checkout is faster"),
		testStory(feature.ID, "As a guest, I want to check out without an account so that I can buy quickly"),
		testStory(feature.ID, "As an admin, I want to refund orders so that support tickets close faster"),
	}
	if err := store.CreateStories(ctx, batch); err != nil {
		t.Fatalf("CreateStories() error = %v", err)
	}
	stories, _ = store.ListStories(ctx, feature.ID)
	if len(stories) != 3 {
		t.Errorf("ListStories() = %d stories, want 3", len(stories))
	}
}

func TestStoryRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	feature := seedFeature(t, store)

	story := testStory(feature.ID, "As a member, I want order history so that I can reorder")
	story.Persona = types.PersonaMember
	story.AcceptanceCriteria = []string{"orders listed newest first", "reorder button on each row"}
	story.Rationale = "top support request"
	if err := store.CreateStory(ctx, story); err != nil {
		t.Fatalf("CreateStory() error = %v", err)
	}

	got, err := store.GetStory(ctx, story.ID)
	if err != nil {
		t.Fatalf("GetStory() error = %v", err)
	}
	if len(got.AcceptanceCriteria) != 2 {
		t.Errorf("acceptance criteria = %v, want 2 entries", got.AcceptanceCriteria)
	}
	if got.Persona != types.PersonaMember {
		t.Errorf("persona = %s, want member", got.Persona)
	}
	if got.Rationale != "top support request" {
		t.Errorf("rationale = %q", got.Rationale)
	}
}

func TestExistingStoriesProjection(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	feature := seedFeature(t, store)

	story := testStory(feature.ID, "As a guest, I want guest checkout so that signup is optional")
	if err := store.CreateStory(ctx, story); err != nil {
		t.Fatalf("CreateStory() error = %v", err)
	}

	existing, err := store.ExistingStories(ctx, feature.ID)
	if err != nil {
		t.Fatalf("ExistingStories() error = %v", err)
	}
	if len(existing) != 1 {
		t.Fatalf("ExistingStories() = %d, want 1", len(existing))
	}
	if existing[0].ID != story.ID || existing[0].FeatureID != feature.ID {
		t.Errorf("projection = %+v", existing[0])
	}
}

func TestUpdateStoryNarrative(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	feature := seedFeature(t, store)

	story := testStory(feature.ID, "As a member, I want receipts so that I can expense orders")
	if err := store.CreateStory(ctx, story); err != nil {
		t.Fatalf("CreateStory() error = %v", err)
	}

	merged := "As a member, I want receipts and invoices so that I can expense orders"
	if err := store.UpdateStoryNarrative(ctx, story.ID, merged); err != nil {
		t.Fatalf("UpdateStoryNarrative() error = %v", err)
	}
	got, _ := store.GetStory(ctx, story.ID)
	if got.Narrative != merged {
		t.Errorf("narrative = %q, want %q", got.Narrative, merged)
	}

	if err := store.UpdateStoryNarrative(ctx, story.ID, ""); err == nil {
		t.Error("empty narrative should be rejected")
	}
}

func TestCreateTasksTransactional(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	feature := seedFeature(t, store)
	story := testStory(feature.ID, "As a member, I want search so that I can find products")
	if err := store.CreateStory(ctx, story); err != nil {
		t.Fatalf("CreateStory() error = %v", err)
	}

	batch := []*types.Task{
		{StoryID: story.ID, Name: "Search API endpoint", Platform: types.PlatformBackend},
		{StoryID: story.ID, Name: "Bad platform", Platform: "desktop"},
	}
	if err := store.CreateTasks(ctx, batch); err == nil {
		t.Fatal("CreateTasks() with invalid platform should fail")
	}
	tasks, _ := store.ListTasks(ctx, story.ID)
	if len(tasks) != 0 {
		t.Errorf("partial batch persisted: %d tasks, want 0", len(tasks))
	}

	batch = []*types.Task{
		{
			StoryID:             story.ID,
			Name:                "Search API endpoint",
			Platform:            types.PlatformBackend,
			Priority:            types.PriorityP0,
			Estimate:            "3d",
			Objective:           "Expose full-text product search",
			ImplementationSteps: []string{"add FTS index", "wire handler"},
			DefinitionOfDone:    []string{"p95 under 200ms"},
		},
		{
			StoryID:      story.ID,
			Name:         "Search results page",
			Platform:     types.PlatformWeb,
			Dependencies: []string{"Search API endpoint"},
		},
	}
	if err := store.CreateTasks(ctx, batch); err != nil {
		t.Fatalf("CreateTasks() error = %v", err)
	}

	tasks, err := store.ListTasks(ctx, story.ID)
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("ListTasks() = %d tasks, want 2", len(tasks))
	}
	if tasks[0].Priority != types.PriorityP0 {
		t.Errorf("priority = %s, want P0", tasks[0].Priority)
	}
	if len(tasks[1].Dependencies) != 1 || tasks[1].Dependencies[0] != "Search API endpoint" {
		t.Errorf("dependencies = %v", tasks[1].Dependencies)
	}
}

func TestMilestoneAssignment(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	feature := seedFeature(t, store)
	story := testStory(feature.ID, "As a member, I want wishlists so that I can save items")
	if err := store.CreateStory(ctx, story); err != nil {
		t.Fatalf("CreateStory() error = %v", err)
	}

	milestone := &types.Milestone{Title: "Beta launch"}
	if err := store.CreateMilestone(ctx, milestone); err != nil {
		t.Fatalf("CreateMilestone() error = %v", err)
	}

	if err := store.AssignStoryToMilestone(ctx, story.ID, milestone.ID); err != nil {
		t.Fatalf("AssignStoryToMilestone() error = %v", err)
	}
	// Assigning again is a no-op.
	if err := store.AssignStoryToMilestone(ctx, story.ID, milestone.ID); err != nil {
		t.Fatalf("repeat assignment error = %v", err)
	}

	stories, err := store.ListMilestoneStories(ctx, milestone.ID)
	if err != nil {
		t.Fatalf("ListMilestoneStories() error = %v", err)
	}
	if len(stories) != 1 || stories[0].ID != story.ID {
		t.Errorf("ListMilestoneStories() = %d stories", len(stories))
	}

	if err := store.AssignStoryToMilestone(ctx, "ghost", milestone.ID); err == nil {
		t.Error("assigning a missing story should fail")
	}
}

func TestNotifications(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, msg := range []string{"first", "second", "third"} {
		n := &types.Notification{Kind: "fallback", Message: msg}
		if err := store.AddNotification(ctx, n); err != nil {
			t.Fatalf("AddNotification() error = %v", err)
		}
	}

	all, err := store.ListNotifications(ctx, true, 0)
	if err != nil {
		t.Fatalf("ListNotifications() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("unread = %d, want 3", len(all))
	}

	limited, _ := store.ListNotifications(ctx, true, 2)
	if len(limited) != 2 {
		t.Errorf("limited = %d, want 2", len(limited))
	}

	if err := store.MarkNotificationRead(ctx, all[0].ID); err != nil {
		t.Fatalf("MarkNotificationRead() error = %v", err)
	}
	unread, _ := store.ListNotifications(ctx, true, 0)
	if len(unread) != 2 {
		t.Errorf("unread after mark = %d, want 2", len(unread))
	}
}

func TestGetStatistics(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	feature := seedFeature(t, store)
	story := testStory(feature.ID, "As a member, I want dark mode so that night use is comfortable")
	if err := store.CreateStory(ctx, story); err != nil {
		t.Fatalf("CreateStory() error = %v", err)
	}

	stats, err := store.GetStatistics(ctx)
	if err != nil {
		t.Fatalf("GetStatistics() error = %v", err)
	}
	if stats.Epics != 1 || stats.Features != 1 || stats.Stories != 1 {
		t.Errorf("stats = %+v", stats)
	}
}
