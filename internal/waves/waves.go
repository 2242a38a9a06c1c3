// Package waves assigns execution-readiness tiers to freshly generated
// implementation tasks.
//
// Wave assignment is a shallow, single-pass heuristic: a task's wave is a
// function of how many of its named dependencies appear in the same batch,
// and nothing else. There is no transitive closure — a task whose only
// dependency is itself in a later wave still classifies as ready. Dependency
// names that match no task in the batch (e.g. already-completed work) are
// treated as satisfied, not as unresolved. Both behaviors are deliberate
// policy and pinned by tests; changing either should be a visible diff.
package waves

import (
	"github.com/storylinehq/storyline/internal/types"
)

// Wave is the readiness tier of a task within one batch
type Wave string

const (
	WaveReady   Wave = "ready"   // No unresolved in-batch dependencies
	WaveBlocked Wave = "blocked" // 1-2 unresolved in-batch dependencies
	WaveLater   Wave = "later"   // 3+ unresolved in-batch dependencies
)

// Number returns the 1-based tier number for a wave
func (w Wave) Number() int {
	switch w {
	case WaveReady:
		return 1
	case WaveBlocked:
		return 2
	case WaveLater:
		return 3
	default:
		return 0
	}
}

// AllWaves returns every wave in fixed display order
func AllWaves() []Wave {
	return []Wave{WaveReady, WaveBlocked, WaveLater}
}

// ClassifiedTask annotates a generated task with its wave assignment.
// The annotation is derived, never persisted: callers recompute it from
// the current batch on every view.
type ClassifiedTask struct {
	types.GeneratedTask
	Wave       Wave `json:"wave"`
	WaveNumber int  `json:"wave_number"`
	Unresolved int  `json:"unresolved"` // In-batch dependency names counted toward the wave
}

// PlatformGroup is one platform's tasks bucketed by wave, in fixed order
type PlatformGroup struct {
	Platform types.Platform            `json:"platform"`
	Waves    map[Wave][]ClassifiedTask `json:"waves"`
}

// Assign computes a wave for every task in the batch.
//
// The input is never mutated and the result is deterministic: the output
// slice preserves input order, and calling Assign twice on the same batch
// yields identical assignments. A task that lists its own name as a
// dependency counts it toward its own unresolved total; cycles are not
// detected.
func Assign(tasks []types.GeneratedTask) []ClassifiedTask {
	names := make(map[string]struct{}, len(tasks))
	for _, t := range tasks {
		names[t.Name] = struct{}{}
	}

	classified := make([]ClassifiedTask, 0, len(tasks))
	for _, t := range tasks {
		unresolved := 0
		for _, dep := range t.Dependencies {
			// Only names present in this batch count. An unknown name is
			// indistinguishable from an already-completed task, so it is
			// treated as satisfied rather than failing referential integrity.
			if _, ok := names[dep]; ok {
				unresolved++
			}
		}

		wave := classify(unresolved)
		classified = append(classified, ClassifiedTask{
			GeneratedTask: t,
			Wave:          wave,
			WaveNumber:    wave.Number(),
			Unresolved:    unresolved,
		})
	}

	return classified
}

// classify maps an unresolved-dependency count to a wave
func classify(unresolved int) Wave {
	switch {
	case unresolved == 0:
		return WaveReady
	case unresolved <= 2:
		return WaveBlocked
	default:
		return WaveLater
	}
}

// Group reshapes classified tasks for display: first by platform in fixed
// order, then by wave in fixed order. Platforms with no tasks are omitted.
// Pure reshaping — no side effects, input order preserved within buckets.
func Group(tasks []ClassifiedTask) []PlatformGroup {
	byPlatform := make(map[types.Platform][]ClassifiedTask)
	for _, t := range tasks {
		byPlatform[t.Platform] = append(byPlatform[t.Platform], t)
	}

	groups := make([]PlatformGroup, 0, len(byPlatform))
	for _, platform := range types.AllPlatforms() {
		platformTasks, ok := byPlatform[platform]
		if !ok {
			continue
		}

		buckets := make(map[Wave][]ClassifiedTask, len(AllWaves()))
		for _, t := range platformTasks {
			buckets[t.Wave] = append(buckets[t.Wave], t)
		}

		groups = append(groups, PlatformGroup{
			Platform: platform,
			Waves:    buckets,
		})
	}

	return groups
}

// AssignAndGroup runs Assign then Group in one call, the shape most
// callers (CLI wave view, MCP tool) want.
func AssignAndGroup(tasks []types.GeneratedTask) []PlatformGroup {
	return Group(Assign(tasks))
}
