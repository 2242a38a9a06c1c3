package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/storylinehq/storyline/internal/types"
)

// CreateMilestone inserts a milestone
func (s *SQLiteStorage) CreateMilestone(ctx context.Context, milestone *types.Milestone) error {
	if milestone.Status == "" {
		milestone.Status = types.StatusPlanned
	}
	if err := milestone.Validate(); err != nil {
		return fmt.Errorf("invalid milestone: %w", err)
	}
	milestone.ID = newID(milestone.ID)
	now := time.Now().UTC()
	milestone.CreatedAt = now
	milestone.UpdatedAt = now

	var due sql.NullTime
	if milestone.DueDate != nil {
		due = sql.NullTime{Time: milestone.DueDate.UTC(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO milestones (id, title, due_date, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		milestone.ID, milestone.Title, due, milestone.Status,
		milestone.CreatedAt, milestone.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert milestone: %w", err)
	}
	return nil
}

// ListMilestones returns every milestone ordered by due date, undated last
func (s *SQLiteStorage) ListMilestones(ctx context.Context) ([]*types.Milestone, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, due_date, status, created_at, updated_at
		FROM milestones
		ORDER BY due_date IS NULL, due_date ASC, created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list milestones: %w", err)
	}
	defer rows.Close()

	var milestones []*types.Milestone
	for rows.Next() {
		var m types.Milestone
		var due sql.NullTime
		if err := rows.Scan(&m.ID, &m.Title, &due, &m.Status, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan milestone: %w", err)
		}
		if due.Valid {
			t := due.Time
			m.DueDate = &t
		}
		milestones = append(milestones, &m)
	}
	return milestones, rows.Err()
}

// AssignStoryToMilestone links a story to a milestone. Assigning the same
// pair twice is a no-op rather than an error.
func (s *SQLiteStorage) AssignStoryToMilestone(ctx context.Context, storyID, milestoneID string) error {
	story, err := s.GetStory(ctx, storyID)
	if err != nil {
		return err
	}
	if story == nil {
		return fmt.Errorf("story not found: %s", storyID)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO milestone_stories (milestone_id, story_id, assigned_at)
		VALUES (?, ?, ?)`,
		milestoneID, storyID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to assign story to milestone: %w", err)
	}
	return nil
}

// ListMilestoneStories returns the stories assigned to a milestone
func (s *SQLiteStorage) ListMilestoneStories(ctx context.Context, milestoneID string) ([]*types.UserStory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT st.id, st.feature_id, st.narrative, st.persona, st.priority,
			st.acceptance_criteria, st.rationale, st.status, st.created_at, st.updated_at
		FROM stories st
		JOIN milestone_stories ms ON ms.story_id = st.id
		WHERE ms.milestone_id = ?
		ORDER BY ms.assigned_at ASC`, milestoneID)
	if err != nil {
		return nil, fmt.Errorf("failed to list milestone stories: %w", err)
	}
	defer rows.Close()

	var stories []*types.UserStory
	for rows.Next() {
		story, err := scanStory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan story: %w", err)
		}
		stories = append(stories, story)
	}
	return stories, rows.Err()
}

// AddNotification records a message for the user's next status view
func (s *SQLiteStorage) AddNotification(ctx context.Context, n *types.Notification) error {
	if n.Message == "" {
		return fmt.Errorf("message is required")
	}
	n.ID = newID(n.ID)
	n.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, kind, message, entity_id, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		n.ID, n.Kind, n.Message, n.EntityID, n.Read, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// ListNotifications returns notifications newest first, unread only when
// unreadOnly is set. A limit of 0 means no limit.
func (s *SQLiteStorage) ListNotifications(ctx context.Context, unreadOnly bool, limit int) ([]*types.Notification, error) {
	query := `SELECT id, kind, message, entity_id, read, created_at FROM notifications`
	args := []any{}
	if unreadOnly {
		query += ` WHERE read = 0`
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*types.Notification
	for rows.Next() {
		var n types.Notification
		if err := rows.Scan(&n.ID, &n.Kind, &n.Message, &n.EntityID, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, &n)
	}
	return notifications, rows.Err()
}

// MarkNotificationRead marks one notification as read
func (s *SQLiteStorage) MarkNotificationRead(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return requireRow(res, "notification", id)
}
