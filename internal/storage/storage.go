// Package storage defines the persistence interface for the tracker and
// constructs the SQLite backend.
package storage

import (
	"context"

	"github.com/storylinehq/storyline/internal/storage/sqlite"
	"github.com/storylinehq/storyline/internal/types"
)

// Storage defines the interface for tracker storage backends
type Storage interface {
	// Epics
	CreateEpic(ctx context.Context, epic *types.Epic) error
	GetEpic(ctx context.Context, id string) (*types.Epic, error)
	ListEpics(ctx context.Context) ([]*types.Epic, error)
	UpdateEpicStatus(ctx context.Context, id string, status types.Status) error

	// Features
	CreateFeature(ctx context.Context, feature *types.Feature) error
	GetFeature(ctx context.Context, id string) (*types.Feature, error)
	ListFeatures(ctx context.Context, epicID string) ([]*types.Feature, error)
	UpdateFeatureStatus(ctx context.Context, id string, status types.Status) error

	// Stories
	CreateStory(ctx context.Context, story *types.UserStory) error
	// CreateStories persists a batch in one transaction: either every
	// story lands or none do. Batch saves from the generation flow go
	// through here so a mid-batch failure cannot leave partial rows.
	CreateStories(ctx context.Context, stories []*types.UserStory) error
	GetStory(ctx context.Context, id string) (*types.UserStory, error)
	ListStories(ctx context.Context, featureID string) ([]*types.UserStory, error)
	ExistingStories(ctx context.Context, featureID string) ([]types.ExistingStory, error)
	UpdateStoryStatus(ctx context.Context, id string, status types.Status) error
	UpdateStoryNarrative(ctx context.Context, id string, narrative string) error

	// Tasks
	CreateTask(ctx context.Context, task *types.Task) error
	// CreateTasks persists a batch in one transaction, like CreateStories.
	CreateTasks(ctx context.Context, tasks []*types.Task) error
	ListTasks(ctx context.Context, storyID string) ([]*types.Task, error)
	UpdateTaskStatus(ctx context.Context, id string, status types.Status) error

	// Milestones
	CreateMilestone(ctx context.Context, milestone *types.Milestone) error
	ListMilestones(ctx context.Context) ([]*types.Milestone, error)
	AssignStoryToMilestone(ctx context.Context, storyID, milestoneID string) error
	ListMilestoneStories(ctx context.Context, milestoneID string) ([]*types.UserStory, error)

	// Notifications
	AddNotification(ctx context.Context, n *types.Notification) error
	ListNotifications(ctx context.Context, unreadOnly bool, limit int) ([]*types.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error

	// Statistics
	GetStatistics(ctx context.Context) (*types.Statistics, error)

	// Lifecycle
	Close() error
}

// Config holds database configuration
type Config struct {
	// Path is the SQLite database file path.
	// Default: ".storyline/storyline.db"
	// Special value ":memory:" creates an in-memory database (tests).
	Path string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Path: ".storyline/storyline.db",
	}
}

// NewStorage creates a new SQLite storage backend
func NewStorage(ctx context.Context, cfg *Config) (Storage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Path == "" {
		cfg.Path = DefaultConfig().Path
	}
	return sqlite.New(cfg.Path)
}
