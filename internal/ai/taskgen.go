package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/storylinehq/storyline/internal/types"
)

// TaskPlan is the outcome of one task-spec generation call
type TaskPlan struct {
	Tasks               []types.GeneratedTask `json:"tasks"`
	IntegrationStrategy string                `json:"integration_strategy,omitempty"`
	Assumptions         []types.Assumption    `json:"assumptions,omitempty"`
	OverallConfidence   float64               `json:"overall_confidence"` // 0.0-1.0
}

// GenerateTasks asks the model for per-platform implementation task specs
// for one user story.
//
// Validation before return: at least one task, every task on one of the
// requested platforms, every task well-formed. Dependencies name other
// tasks in the same batch; the wave classifier downstream tolerates names
// that do not resolve, so they are not rejected here.
func (c *Client) GenerateTasks(ctx context.Context, story *types.UserStory, platforms []types.Platform, additionalContext string) (*TaskPlan, error) {
	if story == nil {
		return nil, fmt.Errorf("story is required")
	}
	if len(platforms) == 0 {
		return nil, fmt.Errorf("at least one platform is required")
	}
	for _, p := range platforms {
		if !p.IsValid() {
			return nil, fmt.Errorf("invalid platform: %s", p)
		}
	}

	prompt := buildTaskPrompt(story, platforms, additionalContext)

	responseText, err := c.CallAI(ctx, prompt, "task_generation", c.model, 8192)
	if err != nil {
		return nil, fmt.Errorf("task generation failed: %w", err)
	}

	parsed := Parse[TaskPlan](responseText, "task plan response")
	if !parsed.Success {
		return nil, fmt.Errorf("failed to parse task plan: %s", parsed.Error)
	}

	plan := parsed.Data
	normalizePlan(&plan, story)
	if err := ValidateTaskPlan(&plan, platforms); err != nil {
		return nil, fmt.Errorf("task plan failed validation: %w", err)
	}
	return &plan, nil
}

// normalizePlan fills defaults the model is allowed to omit
func normalizePlan(plan *TaskPlan, story *types.UserStory) {
	for i := range plan.Tasks {
		if plan.Tasks[i].Priority == "" {
			plan.Tasks[i].Priority = story.Priority
		}
	}
}

// ValidateTaskPlan checks a plan against the generator contract
func ValidateTaskPlan(plan *TaskPlan, platforms []types.Platform) error {
	if plan == nil {
		return fmt.Errorf("plan is nil")
	}
	if len(plan.Tasks) == 0 {
		return fmt.Errorf("plan contains no tasks")
	}
	if plan.OverallConfidence < 0.0 || plan.OverallConfidence > 1.0 {
		return fmt.Errorf("invalid overall_confidence: %.2f (must be 0.0-1.0)", plan.OverallConfidence)
	}

	requested := make(map[types.Platform]struct{}, len(platforms))
	for _, p := range platforms {
		requested[p] = struct{}{}
	}
	for i := range plan.Tasks {
		if err := plan.Tasks[i].Validate(); err != nil {
			return fmt.Errorf("task %d: %w", i, err)
		}
		if _, ok := requested[plan.Tasks[i].Platform]; !ok {
			return fmt.Errorf("task %d (%s): platform %s was not requested",
				i, plan.Tasks[i].Name, plan.Tasks[i].Platform)
		}
	}
	return nil
}

func buildTaskPrompt(story *types.UserStory, platforms []types.Platform, additionalContext string) string {
	var b strings.Builder

	names := make([]string, len(platforms))
	for i, p := range platforms {
		names[i] = string(p)
	}

	fmt.Fprintf(&b, "Break a user story into implementation tasks for these platforms: %s.\n\n", strings.Join(names, ", "))
	fmt.Fprintf(&b, "Story: %s\n", story.Narrative)
	if len(story.AcceptanceCriteria) > 0 {
		b.WriteString("Acceptance criteria:\n")
		for _, ac := range story.AcceptanceCriteria {
			fmt.Fprintf(&b, "- %s\n", ac)
		}
	}
	if additionalContext != "" {
		fmt.Fprintf(&b, "\nAdditional context:\n%s\n", additionalContext)
	}

	b.WriteString(`
Requirements for every task:
- name is short and unique within this plan
- platform is one of the requested platforms
- priority is one of: P0, P1, P2
- dependencies lists the names of other tasks in THIS plan that must land
  first (empty if none); use exact task names
- estimate is a rough size (e.g. "0.5d", "2d")
- implementation_steps and definition_of_done are concrete lists

Respond with ONLY raw JSON (no markdown fences, no extra text) matching:
{
  "tasks": [
    {
      "name": "...",
      "platform": "web",
      "priority": "P1",
      "estimate": "1d",
      "objective": "...",
      "implementation_steps": ["..."],
      "definition_of_done": ["..."],
      "dependencies": []
    }
  ],
  "integration_strategy": "how the per-platform pieces come together",
  "assumptions": [{"description": "...", "impact": "..."}],
  "overall_confidence": 0.0
}
overall_confidence is 0.0-1.0.`)

	return b.String()
}
