package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/storylinehq/storyline/internal/types"
)

func TestNewOpensStorageWithoutAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	root := t.TempDir()

	sess, err := New(context.Background(), Options{ProjectRoot: root})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer sess.Close()

	// Storage-only commands work with no key configured.
	epic := &types.Epic{Title: "Search"}
	if err := sess.Store.CreateEpic(context.Background(), epic); err != nil {
		t.Errorf("CreateEpic() error = %v", err)
	}

	// The AI client is only built on demand, and demands a key.
	if _, err := sess.AI(); err == nil {
		t.Error("AI() without a key should fail")
	}
}

func TestNewAppliesDBPathOverride(t *testing.T) {
	root := t.TempDir()
	override := filepath.Join(root, "elsewhere", "tracker.db")

	sess, err := New(context.Background(), Options{ProjectRoot: root, DBPath: override})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer sess.Close()

	if _, err := os.Stat(override); err != nil {
		t.Errorf("override path not used: %v", err)
	}
}

func TestAIClientIsReused(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	root := t.TempDir()

	sess, err := New(context.Background(), Options{ProjectRoot: root})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer sess.Close()

	first, err := sess.AI()
	if err != nil {
		t.Fatalf("AI() error = %v", err)
	}
	second, err := sess.AI()
	if err != nil {
		t.Fatalf("AI() second call error = %v", err)
	}
	if first != second {
		t.Error("AI() should return the same client on repeat calls")
	}
}
