// Package session ties the tracker's subsystems together behind one
// explicit handle. Commands open a Session, work through it, and close
// it; nothing reaches for package-level state.
package session

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/storylinehq/storyline/internal/ai"
	"github.com/storylinehq/storyline/internal/config"
	"github.com/storylinehq/storyline/internal/consolidation"
	"github.com/storylinehq/storyline/internal/storage"
)

// Session bundles configuration, storage, and the AI client for one
// invocation. The AI client is built lazily so storage-only commands
// never need an API key.
type Session struct {
	Config *config.Config
	Store  storage.Storage

	aiClient *ai.Client
}

// Options controls session construction
type Options struct {
	// ProjectRoot is where .storyline/ lives. Default: current directory.
	ProjectRoot string

	// DBPath overrides the configured database path when non-empty.
	DBPath string
}

// New opens a session: loads config, applies overrides, opens storage
func New(ctx context.Context, opts Options) (*Session, error) {
	root := opts.ProjectRoot
	if root == "" {
		root = "."
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	dbPath := cfg.Database.Path
	if opts.DBPath != "" {
		dbPath = opts.DBPath
	} else if dbPath != ":memory:" && !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(root, dbPath)
	}

	store, err := storage.NewStorage(ctx, &storage.Config{Path: dbPath})
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	return &Session{
		Config: cfg,
		Store:  store,
	}, nil
}

// AI returns the session's AI client, constructing it on first use
func (s *Session) AI() (*ai.Client, error) {
	if s.aiClient != nil {
		return s.aiClient, nil
	}

	retry := ai.DefaultRetryConfig()
	if s.Config.AI.MaxAttempts > 0 {
		retry.MaxRetries = s.Config.AI.MaxAttempts - 1
	}
	if s.Config.AI.MaxConcurrentCalls > 0 {
		retry.MaxConcurrentCalls = s.Config.AI.MaxConcurrentCalls
	}
	if s.Config.AI.RequestsPerMinute > 0 {
		retry.RequestsPerMinute = s.Config.AI.RequestsPerMinute
	}

	client, err := ai.NewClient(&ai.Config{
		Model:         s.Config.AI.Model,
		ClassifyModel: s.Config.AI.ClassifyModel,
		Retry:         retry,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AI client: %w", err)
	}

	s.aiClient = client
	return s.aiClient, nil
}

// Consolidator builds a consolidator backed by the session's AI client
func (s *Session) Consolidator() (*consolidation.Consolidator, error) {
	client, err := s.AI()
	if err != nil {
		return nil, err
	}
	classifier, err := consolidation.NewAIClassifier(client)
	if err != nil {
		return nil, err
	}

	cfg := consolidation.Config{
		ConfidenceThreshold: s.Config.Consolidation.ConfidenceThreshold,
		MinNarrativeLength:  s.Config.Consolidation.MinNarrativeLength,
		FailSoft:            s.Config.Consolidation.FailSoft,
	}
	return consolidation.New(classifier, cfg)
}

// Close releases the session's resources
func (s *Session) Close() error {
	if s.Store == nil {
		return nil
	}
	if err := s.Store.Close(); err != nil {
		log.Printf("[SESSION] Warning: failed to close storage: %v", err)
		return err
	}
	return nil
}
