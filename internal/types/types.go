package types

import (
	"fmt"
	"strings"
	"time"
)

// Epic is a top-level container for related features.
type Epic struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate checks if the epic has valid field values
func (e *Epic) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if len(e.Title) > 200 {
		return fmt.Errorf("title must be 200 characters or less (got %d)", len(e.Title))
	}
	if !e.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", e.Status)
	}
	return nil
}

// Feature is a deliverable chunk of work inside an epic. User stories
// attach to features, never directly to epics.
type Feature struct {
	ID          string    `json:"id"`
	EpicID      string    `json:"epic_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate checks if the feature has valid field values
func (f *Feature) Validate() error {
	if strings.TrimSpace(f.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if len(f.Title) > 200 {
		return fmt.Errorf("title must be 200 characters or less (got %d)", len(f.Title))
	}
	if f.EpicID == "" {
		return fmt.Errorf("epic_id is required")
	}
	if !f.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", f.Status)
	}
	return nil
}

// UserStory is a persisted user story attached to a feature.
type UserStory struct {
	ID                 string    `json:"id"`
	FeatureID          string    `json:"feature_id"`
	Narrative          string    `json:"narrative"`
	Persona            Persona   `json:"persona,omitempty"`
	Priority           Priority  `json:"priority"`
	AcceptanceCriteria []string  `json:"acceptance_criteria,omitempty"`
	Rationale          string    `json:"rationale,omitempty"`
	Status             Status    `json:"status"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Validate checks if the story has valid field values
//
// Narrative shape policy: every story narrative must read as a user story
// ("As a <persona>, I want ..."). The substring checks are case-insensitive
// so AI-drafted and hand-written narratives are held to the same bar.
func (s *UserStory) Validate() error {
	if strings.TrimSpace(s.Narrative) == "" {
		return fmt.Errorf("narrative is required")
	}
	lower := strings.ToLower(s.Narrative)
	if !strings.Contains(lower, "as a") {
		return fmt.Errorf("narrative must contain 'as a' (got %q)", truncate(s.Narrative, 80))
	}
	if !strings.Contains(lower, "i want") {
		return fmt.Errorf("narrative must contain 'i want' (got %q)", truncate(s.Narrative, 80))
	}
	if s.FeatureID == "" {
		return fmt.Errorf("feature_id is required")
	}
	if !s.Priority.IsValid() {
		return fmt.Errorf("invalid priority: %s", s.Priority)
	}
	if !s.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", s.Status)
	}
	return nil
}

// Task is a persisted per-platform implementation task derived from a story.
type Task struct {
	ID                  string    `json:"id"`
	StoryID             string    `json:"story_id"`
	Name                string    `json:"name"`
	Platform            Platform  `json:"platform"`
	Priority            Priority  `json:"priority"`
	Estimate            string    `json:"estimate,omitempty"`
	Objective           string    `json:"objective,omitempty"`
	ImplementationSteps []string  `json:"implementation_steps,omitempty"`
	DefinitionOfDone    []string  `json:"definition_of_done,omitempty"`
	Dependencies        []string  `json:"dependencies,omitempty"`
	Status              Status    `json:"status"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Validate checks if the task has valid field values
func (t *Task) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if len(t.Name) > 200 {
		return fmt.Errorf("name must be 200 characters or less (got %d)", len(t.Name))
	}
	if t.StoryID == "" {
		return fmt.Errorf("story_id is required")
	}
	if !t.Platform.IsValid() {
		return fmt.Errorf("invalid platform: %s", t.Platform)
	}
	if !t.Priority.IsValid() {
		return fmt.Errorf("invalid priority: %s", t.Priority)
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", t.Status)
	}
	return nil
}

// Milestone groups stories toward a dated delivery target.
type Milestone struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	DueDate   *time.Time `json:"due_date,omitempty"`
	Status    Status     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Validate checks if the milestone has valid field values
func (m *Milestone) Validate() error {
	if strings.TrimSpace(m.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if !m.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", m.Status)
	}
	return nil
}

// Notification is a row surfaced to the user on their next status view.
// Written when stories or tasks are created and when an AI operation
// degrades to a fallback. There is no ambient notification store; rows
// are read and marked through the session's storage handle.
type Notification struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	EntityID  string    `json:"entity_id,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// Status represents the current state of a tracked entity
type Status string

const (
	StatusPlanned    Status = "planned"
	StatusInProgress Status = "in_progress"
	StatusBlocked    Status = "blocked"
	StatusDone       Status = "done"
)

// IsValid checks if the status value is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusPlanned, StatusInProgress, StatusBlocked, StatusDone:
		return true
	}
	return false
}

// ParseStatus converts a user-supplied string to a Status
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("invalid status: %q (expected planned, in_progress, blocked, or done)", s)
	}
	return st, nil
}

// Priority is the P0-P2 urgency scale used across stories and tasks
type Priority string

const (
	PriorityP0 Priority = "P0" // Must have
	PriorityP1 Priority = "P1" // Should have
	PriorityP2 Priority = "P2" // Nice to have
)

// IsValid checks if the priority value is valid
func (p Priority) IsValid() bool {
	switch p {
	case PriorityP0, PriorityP1, PriorityP2:
		return true
	}
	return false
}

// ParsePriority converts a user-supplied string to a Priority
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToUpper(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", fmt.Errorf("invalid priority: %q (expected P0, P1, or P2)", s)
	}
	return p, nil
}

// Platform identifies which implementation surface a task targets
type Platform string

const (
	PlatformWeb     Platform = "web"
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformBackend Platform = "backend"
)

// IsValid checks if the platform value is valid
func (p Platform) IsValid() bool {
	switch p {
	case PlatformWeb, PlatformIOS, PlatformAndroid, PlatformBackend:
		return true
	}
	return false
}

// AllPlatforms returns every platform in fixed display order.
// Grouped views iterate this slice so output ordering never depends
// on map iteration or input order.
func AllPlatforms() []Platform {
	return []Platform{PlatformWeb, PlatformIOS, PlatformAndroid, PlatformBackend}
}

// ParsePlatform converts a user-supplied string to a Platform
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", fmt.Errorf("invalid platform: %q (expected web, ios, android, or backend)", s)
	}
	return p, nil
}

// Persona is the actor a user story speaks for
type Persona string

const (
	PersonaGuest  Persona = "guest"
	PersonaMember Persona = "member"
	PersonaAdmin  Persona = "admin"
)

// Statistics holds aggregate counts for status displays
type Statistics struct {
	Epics               int `json:"epics"`
	Features            int `json:"features"`
	Stories             int `json:"stories"`
	Tasks               int `json:"tasks"`
	Milestones          int `json:"milestones"`
	UnreadNotifications int `json:"unread_notifications"`
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
