// Package sqlite implements tracker storage on a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/storylinehq/storyline/internal/types"
	_ "modernc.org/sqlite"
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// New creates a new SQLite storage backend at the given path.
// The special path ":memory:" creates an in-memory database.
func New(path string) (*SQLiteStorage, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection sidesteps table-lock errors under concurrent
	// writers; the tracker's write volume does not need more.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// newID fills an entity id when the caller left it empty
func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

// marshalStrings encodes a string slice for a TEXT column
func marshalStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("failed to encode string list: %w", err)
	}
	return string(data), nil
}

// unmarshalStrings decodes a TEXT column into a string slice
func unmarshalStrings(data string) ([]string, error) {
	if data == "" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil, fmt.Errorf("failed to decode string list: %w", err)
	}
	if len(values) == 0 {
		return nil, nil
	}
	return values, nil
}

// CreateEpic inserts a new epic. An empty ID is generated.
func (s *SQLiteStorage) CreateEpic(ctx context.Context, epic *types.Epic) error {
	if epic.Status == "" {
		epic.Status = types.StatusPlanned
	}
	if err := epic.Validate(); err != nil {
		return fmt.Errorf("invalid epic: %w", err)
	}
	epic.ID = newID(epic.ID)
	now := time.Now().UTC()
	epic.CreatedAt = now
	epic.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO epics (id, title, description, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		epic.ID, epic.Title, epic.Description, epic.Status, epic.CreatedAt, epic.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create epic: %w", err)
	}
	return nil
}

// GetEpic fetches one epic by id. Returns (nil, nil) when not found.
func (s *SQLiteStorage) GetEpic(ctx context.Context, id string) (*types.Epic, error) {
	var epic types.Epic
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, status, created_at, updated_at
		FROM epics WHERE id = ?`, id).
		Scan(&epic.ID, &epic.Title, &epic.Description, &epic.Status, &epic.CreatedAt, &epic.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get epic: %w", err)
	}
	return &epic, nil
}

// ListEpics returns all epics, newest first
func (s *SQLiteStorage) ListEpics(ctx context.Context) ([]*types.Epic, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, status, created_at, updated_at
		FROM epics ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list epics: %w", err)
	}
	defer rows.Close()

	var epics []*types.Epic
	for rows.Next() {
		var epic types.Epic
		if err := rows.Scan(&epic.ID, &epic.Title, &epic.Description, &epic.Status, &epic.CreatedAt, &epic.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan epic: %w", err)
		}
		epics = append(epics, &epic)
	}
	return epics, rows.Err()
}

// UpdateEpicStatus transitions an epic's status
func (s *SQLiteStorage) UpdateEpicStatus(ctx context.Context, id string, status types.Status) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid status: %s", status)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE epics SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update epic status: %w", err)
	}
	return requireRow(res, "epic", id)
}

// CreateFeature inserts a new feature under an existing epic
func (s *SQLiteStorage) CreateFeature(ctx context.Context, feature *types.Feature) error {
	if feature.Status == "" {
		feature.Status = types.StatusPlanned
	}
	if err := feature.Validate(); err != nil {
		return fmt.Errorf("invalid feature: %w", err)
	}
	feature.ID = newID(feature.ID)
	now := time.Now().UTC()
	feature.CreatedAt = now
	feature.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO features (id, epic_id, title, description, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		feature.ID, feature.EpicID, feature.Title, feature.Description, feature.Status,
		feature.CreatedAt, feature.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create feature: %w", err)
	}
	return nil
}

// GetFeature fetches one feature by id. Returns (nil, nil) when not found.
func (s *SQLiteStorage) GetFeature(ctx context.Context, id string) (*types.Feature, error) {
	var feature types.Feature
	err := s.db.QueryRowContext(ctx, `
		SELECT id, epic_id, title, description, status, created_at, updated_at
		FROM features WHERE id = ?`, id).
		Scan(&feature.ID, &feature.EpicID, &feature.Title, &feature.Description,
			&feature.Status, &feature.CreatedAt, &feature.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feature: %w", err)
	}
	return &feature, nil
}

// ListFeatures returns an epic's features, or all features when epicID is empty
func (s *SQLiteStorage) ListFeatures(ctx context.Context, epicID string) ([]*types.Feature, error) {
	query := `
		SELECT id, epic_id, title, description, status, created_at, updated_at
		FROM features`
	args := []any{}
	if epicID != "" {
		query += ` WHERE epic_id = ?`
		args = append(args, epicID)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list features: %w", err)
	}
	defer rows.Close()

	var features []*types.Feature
	for rows.Next() {
		var feature types.Feature
		if err := rows.Scan(&feature.ID, &feature.EpicID, &feature.Title, &feature.Description,
			&feature.Status, &feature.CreatedAt, &feature.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feature: %w", err)
		}
		features = append(features, &feature)
	}
	return features, rows.Err()
}

// UpdateFeatureStatus transitions a feature's status
func (s *SQLiteStorage) UpdateFeatureStatus(ctx context.Context, id string, status types.Status) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid status: %s", status)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE features SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update feature status: %w", err)
	}
	return requireRow(res, "feature", id)
}

// GetStatistics returns aggregate counts for status displays
func (s *SQLiteStorage) GetStatistics(ctx context.Context) (*types.Statistics, error) {
	stats := &types.Statistics{}
	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM epics`, &stats.Epics},
		{`SELECT COUNT(*) FROM features`, &stats.Features},
		{`SELECT COUNT(*) FROM stories`, &stats.Stories},
		{`SELECT COUNT(*) FROM tasks`, &stats.Tasks},
		{`SELECT COUNT(*) FROM milestones`, &stats.Milestones},
		{`SELECT COUNT(*) FROM notifications WHERE read = 0`, &stats.UnreadNotifications},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to gather statistics: %w", err)
		}
	}
	return stats, nil
}

// requireRow converts a zero-row update into a not-found error
func requireRow(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
