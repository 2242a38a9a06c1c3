// Package mcp exposes the tracker to MCP clients over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/storylinehq/storyline/internal/planning"
	"github.com/storylinehq/storyline/internal/session"
	"github.com/storylinehq/storyline/internal/storage"
	"github.com/storylinehq/storyline/internal/types"
)

// NewServer creates an MCP server over one tracker session.
func NewServer(sess *session.Session) *server.MCPServer {
	s := server.NewMCPServer("Storyline", "0.1.0")
	store := sess.Store

	// Epic and feature management
	s.AddTool(mcp.NewTool("create_epic",
		mcp.WithDescription("Create a new epic."),
		mcp.WithString("title", mcp.Description("Epic title (max 200 chars)"), mcp.Required()),
		mcp.WithString("description", mcp.Description("Epic description")),
	), createEpicHandler(store))

	s.AddTool(mcp.NewTool("list_epics",
		mcp.WithDescription("List all epics."),
	), listEpicsHandler(store))

	s.AddTool(mcp.NewTool("create_feature",
		mcp.WithDescription("Create a feature under an epic."),
		mcp.WithString("epic_id", mcp.Description("Parent epic ID"), mcp.Required()),
		mcp.WithString("title", mcp.Description("Feature title (max 200 chars)"), mcp.Required()),
		mcp.WithString("description", mcp.Description("Feature description")),
	), createFeatureHandler(store))

	s.AddTool(mcp.NewTool("list_features",
		mcp.WithDescription("List features, optionally for one epic."),
		mcp.WithString("epic_id", mcp.Description("Filter by epic ID")),
	), listFeaturesHandler(store))

	// Story management
	s.AddTool(mcp.NewTool("create_story",
		mcp.WithDescription("Create a user story under a feature. The narrative must read 'As a <persona>, I want ...'."),
		mcp.WithString("feature_id", mcp.Description("Parent feature ID"), mcp.Required()),
		mcp.WithString("narrative", mcp.Description("Story narrative"), mcp.Required()),
		mcp.WithString("persona", mcp.Description("Persona (guest|member|admin)")),
		mcp.WithString("priority", mcp.Description("Priority (P0|P1|P2), default P1")),
	), createStoryHandler(store))

	s.AddTool(mcp.NewTool("list_stories",
		mcp.WithDescription("List stories, optionally for one feature."),
		mcp.WithString("feature_id", mcp.Description("Filter by feature ID")),
	), listStoriesHandler(store))

	s.AddTool(mcp.NewTool("update_story_status",
		mcp.WithDescription("Update a story's status."),
		mcp.WithString("id", mcp.Description("Story ID"), mcp.Required()),
		mcp.WithString("status", mcp.Description("New status (planned|in_progress|blocked|done)"), mcp.Required()),
	), updateStoryStatusHandler(store))

	// Task management
	s.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List tasks, optionally for one story."),
		mcp.WithString("story_id", mcp.Description("Filter by story ID")),
	), listTasksHandler(store))

	s.AddTool(mcp.NewTool("update_task_status",
		mcp.WithDescription("Update a task's status."),
		mcp.WithString("id", mcp.Description("Task ID"), mcp.Required()),
		mcp.WithString("status", mcp.Description("New status (planned|in_progress|blocked|done)"), mcp.Required()),
	), updateTaskStatusHandler(store))

	// Milestone management
	s.AddTool(mcp.NewTool("create_milestone",
		mcp.WithDescription("Create a milestone."),
		mcp.WithString("title", mcp.Description("Milestone title"), mcp.Required()),
	), createMilestoneHandler(store))

	s.AddTool(mcp.NewTool("assign_story_to_milestone",
		mcp.WithDescription("Assign a story to a milestone."),
		mcp.WithString("story_id", mcp.Description("Story ID"), mcp.Required()),
		mcp.WithString("milestone_id", mcp.Description("Milestone ID"), mcp.Required()),
	), assignStoryHandler(store))

	// AI-backed flows
	s.AddTool(mcp.NewTool("generate_stories",
		mcp.WithDescription("Draft user stories for a feature, reconcile them against existing stories, and save the non-duplicate set."),
		mcp.WithString("feature_id", mcp.Description("Feature ID"), mcp.Required()),
	), generateStoriesHandler(sess))

	s.AddTool(mcp.NewTool("plan_tasks",
		mcp.WithDescription("Generate per-platform implementation tasks for a story, assign delivery waves, and save the plan."),
		mcp.WithString("story_id", mcp.Description("Story ID"), mcp.Required()),
		mcp.WithString("platforms", mcp.Description("Comma-separated platforms (web,ios,android,backend); defaults from config")),
		mcp.WithString("context", mcp.Description("Extra context for the planner")),
	), planTasksHandler(sess))

	s.AddTool(mcp.NewTool("get_waves",
		mcp.WithDescription("Re-run wave assignment over a story's saved tasks, grouped by platform."),
		mcp.WithString("story_id", mcp.Description("Story ID"), mcp.Required()),
	), getWavesHandler(sess))

	s.AddTool(mcp.NewTool("get_statistics",
		mcp.WithDescription("Get tracker-wide entity counts."),
	), getStatisticsHandler(store))

	return s
}

// Serve starts the MCP server on stdio.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func createEpicHandler(store storage.Storage) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		epic := &types.Epic{
			Title:       mcp.ParseString(request, "title", ""),
			Description: mcp.ParseString(request, "description", ""),
		}
		if err := store.CreateEpic(ctx, epic); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Epic '%s' created with ID %s", epic.Title, epic.ID)), nil
	}
}

func listEpicsHandler(store storage.Storage) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		epics, err := store.ListEpics(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{"epics": epics})
	}
}

func createFeatureHandler(store storage.Storage) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		epicID := mcp.ParseString(request, "epic_id", "")
		epic, err := store.GetEpic(ctx, epicID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if epic == nil {
			return mcp.NewToolResultError(fmt.Sprintf("Epic with ID '%s' not found", epicID)), nil
		}

		feature := &types.Feature{
			EpicID:      epicID,
			Title:       mcp.ParseString(request, "title", ""),
			Description: mcp.ParseString(request, "description", ""),
		}
		if err := store.CreateFeature(ctx, feature); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Feature '%s' created with ID %s", feature.Title, feature.ID)), nil
	}
}

func listFeaturesHandler(store storage.Storage) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		features, err := store.ListFeatures(ctx, mcp.ParseString(request, "epic_id", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{"features": features})
	}
}

func createStoryHandler(store storage.Storage) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		story := &types.UserStory{
			FeatureID: mcp.ParseString(request, "feature_id", ""),
			Narrative: mcp.ParseString(request, "narrative", ""),
			Persona:   types.Persona(mcp.ParseString(request, "persona", "")),
			Priority:  types.Priority(mcp.ParseString(request, "priority", string(types.PriorityP1))),
		}
		if err := store.CreateStory(ctx, story); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Story created with ID %s", story.ID)), nil
	}
}

func listStoriesHandler(store storage.Storage) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		stories, err := store.ListStories(ctx, mcp.ParseString(request, "feature_id", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{"stories": stories})
	}
}

func updateStoryStatusHandler(store storage.Storage) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := mcp.ParseString(request, "id", "")
		status := types.Status(mcp.ParseString(request, "status", ""))
		if err := store.UpdateStoryStatus(ctx, id, status); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("Story status updated successfully"), nil
	}
}

func listTasksHandler(store storage.Storage) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tasks, err := store.ListTasks(ctx, mcp.ParseString(request, "story_id", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{"tasks": tasks})
	}
}

func updateTaskStatusHandler(store storage.Storage) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := mcp.ParseString(request, "id", "")
		status := types.Status(mcp.ParseString(request, "status", ""))
		if err := store.UpdateTaskStatus(ctx, id, status); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("Task status updated successfully"), nil
	}
}

func createMilestoneHandler(store storage.Storage) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		milestone := &types.Milestone{Title: mcp.ParseString(request, "title", "")}
		if err := store.CreateMilestone(ctx, milestone); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Milestone '%s' created with ID %s", milestone.Title, milestone.ID)), nil
	}
}

func assignStoryHandler(store storage.Storage) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		storyID := mcp.ParseString(request, "story_id", "")
		milestoneID := mcp.ParseString(request, "milestone_id", "")
		if err := store.AssignStoryToMilestone(ctx, storyID, milestoneID); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("Story assigned to milestone"), nil
	}
}

func generateStoriesHandler(sess *session.Session) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		featureID := mcp.ParseString(request, "feature_id", "")

		p, err := newPlanner(sess)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		gen, err := p.GenerateStories(ctx, featureID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		// MCP clients get the whole non-duplicate set; interactive
		// cherry-picking stays in the CLI.
		created, merged, err := p.ApplySelection(ctx, gen, gen.Consolidation.DefaultSelection, true)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return jsonResult(map[string]any{
			"created":       created,
			"merged":        merged,
			"skipped":       gen.Consolidation.Summary.DuplicatesFound,
			"used_fallback": gen.Consolidation.UsedFallback,
			"decisions":     gen.Consolidation.Decisions,
		})
	}
}

func planTasksHandler(sess *session.Session) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		storyID := mcp.ParseString(request, "story_id", "")
		platformsArg := mcp.ParseString(request, "platforms", "")
		additionalContext := mcp.ParseString(request, "context", "")

		platforms, err := resolvePlatforms(sess, platformsArg)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		p, err := newPlanner(sess)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		result, err := p.PlanTasks(ctx, storyID, platforms, additionalContext)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if _, err := p.SaveTasks(ctx, storyID, result.Plan.Tasks); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return jsonResult(map[string]any{
			"tasks":              result.Plan.Tasks,
			"waves":              result.Groups,
			"assumptions":        result.Plan.Assumptions,
			"overall_confidence": result.Plan.OverallConfidence,
		})
	}
}

func getWavesHandler(sess *session.Session) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		storyID := mcp.ParseString(request, "story_id", "")

		p, err := planning.New(sess.Store, nil, nil, nil)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		groups, err := p.SavedWaves(ctx, storyID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{"waves": groups})
	}
}

func getStatisticsHandler(store storage.Storage) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		stats, err := store.GetStatistics(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(stats)
	}
}

func newPlanner(sess *session.Session) (*planning.Planner, error) {
	client, err := sess.AI()
	if err != nil {
		return nil, err
	}
	consolidator, err := sess.Consolidator()
	if err != nil {
		return nil, err
	}
	return planning.New(sess.Store, client, client, consolidator)
}

func resolvePlatforms(sess *session.Session, arg string) ([]types.Platform, error) {
	names := sess.Config.Planning.Platforms
	if arg != "" {
		names = strings.Split(arg, ",")
	}
	platforms := make([]types.Platform, 0, len(names))
	for _, name := range names {
		p, err := types.ParsePlatform(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		platforms = append(platforms, p)
	}
	return platforms, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
