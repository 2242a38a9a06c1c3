package types

import (
	"fmt"
	"strings"
)

// CandidateStory is a freshly AI-drafted user story that has not been
// persisted. It is immutable once received and lives only for the
// duration of one consolidation pass; the user's accept action is what
// turns a subset of candidates into UserStory rows.
type CandidateStory struct {
	Narrative          string   `json:"narrative"`
	Persona            Persona  `json:"persona,omitempty"`
	Priority           Priority `json:"priority"`
	AcceptanceCriteria []string `json:"acceptance_criteria,omitempty"`
	Rationale          string   `json:"rationale,omitempty"`
}

// Validate checks if the candidate has the required narrative shape
func (c *CandidateStory) Validate() error {
	if strings.TrimSpace(c.Narrative) == "" {
		return fmt.Errorf("narrative is required")
	}
	lower := strings.ToLower(c.Narrative)
	if !strings.Contains(lower, "as a") {
		return fmt.Errorf("narrative must contain 'as a' (got %q)", truncate(c.Narrative, 80))
	}
	if !strings.Contains(lower, "i want") {
		return fmt.Errorf("narrative must contain 'i want' (got %q)", truncate(c.Narrative, 80))
	}
	return nil
}

// ExistingStory is the read-only projection of a persisted story used
// as comparison input during consolidation.
type ExistingStory struct {
	ID        string `json:"id"`
	Narrative string `json:"narrative"`
	FeatureID string `json:"feature_id"`
}

// GeneratedTask is a freshly AI-drafted implementation task. Dependencies
// name other tasks in the same batch by exact task name; names that do not
// match any task in the batch are treated as already satisfied.
type GeneratedTask struct {
	Name                string   `json:"name"`
	Platform            Platform `json:"platform"`
	Priority            Priority `json:"priority"`
	Estimate            string   `json:"estimate,omitempty"`
	Objective           string   `json:"objective,omitempty"`
	ImplementationSteps []string `json:"implementation_steps,omitempty"`
	DefinitionOfDone    []string `json:"definition_of_done,omitempty"`
	Dependencies        []string `json:"dependencies,omitempty"`
}

// Validate checks if the generated task has valid field values
func (g *GeneratedTask) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if !g.Platform.IsValid() {
		return fmt.Errorf("invalid platform: %s", g.Platform)
	}
	if !g.Priority.IsValid() {
		return fmt.Errorf("invalid priority: %s", g.Priority)
	}
	return nil
}

// ToTask converts an accepted generated task into a persistable Task
func (g *GeneratedTask) ToTask(storyID string) *Task {
	return &Task{
		StoryID:             storyID,
		Name:                g.Name,
		Platform:            g.Platform,
		Priority:            g.Priority,
		Estimate:            g.Estimate,
		Objective:           g.Objective,
		ImplementationSteps: g.ImplementationSteps,
		DefinitionOfDone:    g.DefinitionOfDone,
		Dependencies:        g.Dependencies,
		Status:              StatusPlanned,
	}
}

// ToGenerated projects a persisted task back into batch form so saved
// plans can be re-run through wave assignment.
func (t *Task) ToGenerated() GeneratedTask {
	return GeneratedTask{
		Name:                t.Name,
		Platform:            t.Platform,
		Priority:            t.Priority,
		Estimate:            t.Estimate,
		Objective:           t.Objective,
		ImplementationSteps: t.ImplementationSteps,
		DefinitionOfDone:    t.DefinitionOfDone,
		Dependencies:        t.Dependencies,
	}
}

// Assumption is a caveat the task generator attaches to its output
type Assumption struct {
	Description string `json:"description"`
	Impact      string `json:"impact,omitempty"`
}
