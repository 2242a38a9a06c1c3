package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/storylinehq/storyline/internal/types"
)

// CreateStory inserts one story
func (s *SQLiteStorage) CreateStory(ctx context.Context, story *types.UserStory) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertStory(ctx, tx, story); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateStories persists a batch of stories in a single transaction.
// Either every story lands or none do; a failure partway through rolls
// the whole batch back instead of leaving partial rows.
func (s *SQLiteStorage) CreateStories(ctx context.Context, stories []*types.UserStory) error {
	if len(stories) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, story := range stories {
		if err := insertStory(ctx, tx, story); err != nil {
			return fmt.Errorf("story %d of %d: %w", i+1, len(stories), err)
		}
	}
	return tx.Commit()
}

// insertStory validates and inserts one story within a transaction
func insertStory(ctx context.Context, tx *sql.Tx, story *types.UserStory) error {
	if story.Status == "" {
		story.Status = types.StatusPlanned
	}
	if story.Priority == "" {
		story.Priority = types.PriorityP1
	}
	if err := story.Validate(); err != nil {
		return fmt.Errorf("invalid story: %w", err)
	}
	story.ID = newID(story.ID)
	now := time.Now().UTC()
	story.CreatedAt = now
	story.UpdatedAt = now

	criteria, err := marshalStrings(story.AcceptanceCriteria)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO stories (id, feature_id, narrative, persona, priority, acceptance_criteria,
			rationale, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		story.ID, story.FeatureID, story.Narrative, story.Persona, story.Priority,
		criteria, story.Rationale, story.Status, story.CreatedAt, story.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert story: %w", err)
	}
	return nil
}

// GetStory fetches one story by id. Returns (nil, nil) when not found.
func (s *SQLiteStorage) GetStory(ctx context.Context, id string) (*types.UserStory, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, feature_id, narrative, persona, priority, acceptance_criteria,
			rationale, status, created_at, updated_at
		FROM stories WHERE id = ?`, id)

	story, err := scanStory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get story: %w", err)
	}
	return story, nil
}

// ListStories returns a feature's stories, or all stories when featureID is empty
func (s *SQLiteStorage) ListStories(ctx context.Context, featureID string) ([]*types.UserStory, error) {
	query := `
		SELECT id, feature_id, narrative, persona, priority, acceptance_criteria,
			rationale, status, created_at, updated_at
		FROM stories`
	args := []any{}
	if featureID != "" {
		query += ` WHERE feature_id = ?`
		args = append(args, featureID)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
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

// ExistingStories returns the consolidation projection of a feature's stories
func (s *SQLiteStorage) ExistingStories(ctx context.Context, featureID string) ([]types.ExistingStory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, narrative, feature_id FROM stories
		WHERE feature_id = ? ORDER BY created_at ASC`, featureID)
	if err != nil {
		return nil, fmt.Errorf("failed to list existing stories: %w", err)
	}
	defer rows.Close()

	var existing []types.ExistingStory
	for rows.Next() {
		var e types.ExistingStory
		if err := rows.Scan(&e.ID, &e.Narrative, &e.FeatureID); err != nil {
			return nil, fmt.Errorf("failed to scan existing story: %w", err)
		}
		existing = append(existing, e)
	}
	return existing, rows.Err()
}

// UpdateStoryStatus transitions a story's status
func (s *SQLiteStorage) UpdateStoryStatus(ctx context.Context, id string, status types.Status) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid status: %s", status)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE stories SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update story status: %w", err)
	}
	return requireRow(res, "story", id)
}

// UpdateStoryNarrative rewrites a story's narrative. Used when the user
// accepts a merge suggestion: the existing story takes the synthesized
// combined narrative instead of a new row being created.
func (s *SQLiteStorage) UpdateStoryNarrative(ctx context.Context, id string, narrative string) error {
	if narrative == "" {
		return fmt.Errorf("narrative is required")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE stories SET narrative = ?, updated_at = ? WHERE id = ?`,
		narrative, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update story narrative: %w", err)
	}
	return requireRow(res, "story", id)
}

// rowScanner covers *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanStory(row rowScanner) (*types.UserStory, error) {
	var story types.UserStory
	var criteria string
	if err := row.Scan(&story.ID, &story.FeatureID, &story.Narrative, &story.Persona,
		&story.Priority, &criteria, &story.Rationale, &story.Status,
		&story.CreatedAt, &story.UpdatedAt); err != nil {
		return nil, err
	}
	parsed, err := unmarshalStrings(criteria)
	if err != nil {
		return nil, err
	}
	story.AcceptanceCriteria = parsed
	return &story, nil
}
