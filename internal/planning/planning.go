// Package planning runs the AI-backed flows end to end: story drafting
// through consolidation to persistence, and task generation through wave
// assignment. Commands and MCP tools both drive these flows.
package planning

import (
	"context"
	"fmt"
	"log"

	"github.com/storylinehq/storyline/internal/ai"
	"github.com/storylinehq/storyline/internal/consolidation"
	"github.com/storylinehq/storyline/internal/storage"
	"github.com/storylinehq/storyline/internal/types"
	"github.com/storylinehq/storyline/internal/waves"
)

// StoryDrafter drafts candidate stories for a feature. *ai.Client
// satisfies this.
type StoryDrafter interface {
	DraftStories(ctx context.Context, epic *types.Epic, feature *types.Feature, existing []types.ExistingStory) (*ai.StoryDraft, error)
}

// TaskPlanner generates per-platform task specs for a story. *ai.Client
// satisfies this.
type TaskPlanner interface {
	GenerateTasks(ctx context.Context, story *types.UserStory, platforms []types.Platform, additionalContext string) (*ai.TaskPlan, error)
}

// Planner coordinates the generation flows against storage
type Planner struct {
	store        storage.Storage
	drafter      StoryDrafter
	taskPlanner  TaskPlanner
	consolidator *consolidation.Consolidator
}

// New creates a planner
func New(store storage.Storage, drafter StoryDrafter, taskPlanner TaskPlanner, consolidator *consolidation.Consolidator) (*Planner, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	return &Planner{
		store:        store,
		drafter:      drafter,
		taskPlanner:  taskPlanner,
		consolidator: consolidator,
	}, nil
}

// GenerateResult is one drafting-plus-consolidation pass, held in memory
// until the user accepts or discards it.
type GenerateResult struct {
	Feature       *types.Feature
	Candidates    []types.CandidateStory
	Consolidation *consolidation.Result
}

// GenerateStories drafts candidates for a feature and consolidates them
// against the feature's persisted stories. Nothing is written; the caller
// reviews the result and applies a selection.
func (p *Planner) GenerateStories(ctx context.Context, featureID string) (*GenerateResult, error) {
	if p.drafter == nil || p.consolidator == nil {
		return nil, fmt.Errorf("AI drafting is not configured")
	}

	feature, err := p.store.GetFeature(ctx, featureID)
	if err != nil {
		return nil, err
	}
	if feature == nil {
		return nil, fmt.Errorf("feature not found: %s", featureID)
	}
	epic, err := p.store.GetEpic(ctx, feature.EpicID)
	if err != nil {
		return nil, err
	}

	existing, err := p.store.ExistingStories(ctx, featureID)
	if err != nil {
		return nil, err
	}

	log.Printf("[PLANNING] Drafting stories for feature %s (%d existing)", featureID, len(existing))
	draft, err := p.drafter.DraftStories(ctx, epic, feature, existing)
	if err != nil {
		return nil, fmt.Errorf("story drafting failed: %w", err)
	}

	result, err := p.consolidator.Consolidate(ctx, draft.Stories, existing)
	if err != nil {
		return nil, fmt.Errorf("consolidation failed: %w", err)
	}

	return &GenerateResult{
		Feature:       feature,
		Candidates:    draft.Stories,
		Consolidation: result,
	}, nil
}

// ApplySelection persists the accepted subset of a generation pass.
// Selection indices refer to candidates, matching the pass's
// DefaultSelection. Creations land in one transaction; selected merge
// decisions rewrite the existing story's narrative when acceptMerges is
// set, and fall back to creating the candidate as-is otherwise. A
// fallback pass leaves a notification so the user sees on their next
// status view that classification was skipped.
func (p *Planner) ApplySelection(ctx context.Context, gen *GenerateResult, selected []int, acceptMerges bool) (int, int, error) {
	res := gen.Consolidation

	var stories []*types.UserStory
	var merges []consolidation.Decision
	for _, idx := range selected {
		if idx < 0 || idx >= len(gen.Candidates) {
			return 0, 0, fmt.Errorf("selection index %d out of range (0-%d)", idx, len(gen.Candidates)-1)
		}
		d := res.Decisions[idx]
		switch {
		case d.Action == consolidation.ActionSkip:
			// Skipped duplicates are never saved, selected or not.
		case d.Action == consolidation.ActionMergeWithExisting && acceptMerges && d.MergedNarrative != "":
			merges = append(merges, d)
		default:
			c := gen.Candidates[idx]
			stories = append(stories, &types.UserStory{
				FeatureID:          gen.Feature.ID,
				Narrative:          c.Narrative,
				Persona:            c.Persona,
				Priority:           c.Priority,
				AcceptanceCriteria: c.AcceptanceCriteria,
				Rationale:          c.Rationale,
				Status:             types.StatusPlanned,
			})
		}
	}

	if err := p.store.CreateStories(ctx, stories); err != nil {
		return 0, 0, fmt.Errorf("failed to save stories: %w", err)
	}

	merged := 0
	for _, d := range merges {
		if err := p.store.UpdateStoryNarrative(ctx, d.MergedWith, d.MergedNarrative); err != nil {
			return len(stories), merged, fmt.Errorf("failed to apply merge into %s: %w", d.MergedWith, err)
		}
		merged++
	}

	if len(stories) > 0 {
		p.notify(ctx, &types.Notification{
			Kind:     "stories_created",
			Message:  fmt.Sprintf("%d new stories saved under feature %q", len(stories), gen.Feature.Title),
			EntityID: gen.Feature.ID,
		})
	}

	if res.UsedFallback {
		p.notify(ctx, &types.Notification{
			Kind:     "consolidation_fallback",
			Message:  fmt.Sprintf("Story consolidation fell back to create-all for feature %q: %s", gen.Feature.Title, res.FallbackReason),
			EntityID: gen.Feature.ID,
		})
	}

	return len(stories), merged, nil
}

// notify records a notification without failing the flow that raised it
func (p *Planner) notify(ctx context.Context, n *types.Notification) {
	if err := p.store.AddNotification(ctx, n); err != nil {
		log.Printf("[PLANNING] Warning: failed to record %s notification: %v", n.Kind, err)
	}
}

// TaskPlanResult is one task-generation pass with wave assignment applied
type TaskPlanResult struct {
	Story  *types.UserStory
	Plan   *ai.TaskPlan
	Groups []waves.PlatformGroup
}

// PlanTasks generates task specs for a story and classifies them into
// waves. Nothing is written until SaveTasks.
func (p *Planner) PlanTasks(ctx context.Context, storyID string, platforms []types.Platform, additionalContext string) (*TaskPlanResult, error) {
	if p.taskPlanner == nil {
		return nil, fmt.Errorf("AI task planning is not configured")
	}

	story, err := p.store.GetStory(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if story == nil {
		return nil, fmt.Errorf("story not found: %s", storyID)
	}

	log.Printf("[PLANNING] Generating tasks for story %s across %d platforms", storyID, len(platforms))
	plan, err := p.taskPlanner.GenerateTasks(ctx, story, platforms, additionalContext)
	if err != nil {
		return nil, fmt.Errorf("task generation failed: %w", err)
	}

	return &TaskPlanResult{
		Story:  story,
		Plan:   plan,
		Groups: waves.AssignAndGroup(plan.Tasks),
	}, nil
}

// SaveTasks persists an accepted task plan in one transaction
func (p *Planner) SaveTasks(ctx context.Context, storyID string, tasks []types.GeneratedTask) (int, error) {
	rows := make([]*types.Task, 0, len(tasks))
	for i := range tasks {
		rows = append(rows, tasks[i].ToTask(storyID))
	}
	if err := p.store.CreateTasks(ctx, rows); err != nil {
		return 0, fmt.Errorf("failed to save tasks: %w", err)
	}
	if len(rows) > 0 {
		p.notify(ctx, &types.Notification{
			Kind:     "tasks_created",
			Message:  fmt.Sprintf("%d tasks saved under story %s", len(rows), storyID),
			EntityID: storyID,
		})
	}
	return len(rows), nil
}

// SavedWaves re-runs wave assignment over a story's persisted tasks
func (p *Planner) SavedWaves(ctx context.Context, storyID string) ([]waves.PlatformGroup, error) {
	tasks, err := p.store.ListTasks(ctx, storyID)
	if err != nil {
		return nil, err
	}
	batch := make([]types.GeneratedTask, 0, len(tasks))
	for _, t := range tasks {
		batch = append(batch, t.ToGenerated())
	}
	return waves.AssignAndGroup(batch), nil
}
