package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/storylinehq/storyline/internal/types"
)

// CreateTask inserts one task
func (s *SQLiteStorage) CreateTask(ctx context.Context, task *types.Task) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertTask(ctx, tx, task); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateTasks persists a generated task batch in a single transaction
// so a plan is saved whole or not at all.
func (s *SQLiteStorage) CreateTasks(ctx context.Context, tasks []*types.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, task := range tasks {
		if err := insertTask(ctx, tx, task); err != nil {
			return fmt.Errorf("task %d of %d: %w", i+1, len(tasks), err)
		}
	}
	return tx.Commit()
}

func insertTask(ctx context.Context, tx *sql.Tx, task *types.Task) error {
	if task.Status == "" {
		task.Status = types.StatusPlanned
	}
	if task.Priority == "" {
		task.Priority = types.PriorityP1
	}
	if err := task.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}
	task.ID = newID(task.ID)
	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now

	steps, err := marshalStrings(task.ImplementationSteps)
	if err != nil {
		return err
	}
	done, err := marshalStrings(task.DefinitionOfDone)
	if err != nil {
		return err
	}
	deps, err := marshalStrings(task.Dependencies)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (id, story_id, name, platform, priority, estimate, objective,
			implementation_steps, definition_of_done, dependencies, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.StoryID, task.Name, task.Platform, task.Priority, task.Estimate,
		task.Objective, steps, done, deps, task.Status, task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// ListTasks returns a story's tasks, or all tasks when storyID is empty
func (s *SQLiteStorage) ListTasks(ctx context.Context, storyID string) ([]*types.Task, error) {
	query := `
		SELECT id, story_id, name, platform, priority, estimate, objective,
			implementation_steps, definition_of_done, dependencies, status, created_at, updated_at
		FROM tasks`
	args := []any{}
	if storyID != "" {
		query += ` WHERE story_id = ?`
		args = append(args, storyID)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*types.Task
	for rows.Next() {
		var task types.Task
		var steps, done, deps string
		if err := rows.Scan(&task.ID, &task.StoryID, &task.Name, &task.Platform,
			&task.Priority, &task.Estimate, &task.Objective, &steps, &done, &deps,
			&task.Status, &task.CreatedAt, &task.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		if task.ImplementationSteps, err = unmarshalStrings(steps); err != nil {
			return nil, err
		}
		if task.DefinitionOfDone, err = unmarshalStrings(done); err != nil {
			return nil, err
		}
		if task.Dependencies, err = unmarshalStrings(deps); err != nil {
			return nil, err
		}
		tasks = append(tasks, &task)
	}
	return tasks, rows.Err()
}

// UpdateTaskStatus transitions a task's status
func (s *SQLiteStorage) UpdateTaskStatus(ctx context.Context, id string, status types.Status) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid status: %s", status)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}
	return requireRow(res, "task", id)
}
