// Package consolidation decides what to do with freshly AI-drafted user
// stories before anything is saved.
//
// # Overview
//
// Story generation produces several candidate stories per feature. Some of
// them inevitably restate stories the feature already has. The consolidation
// pass compares each candidate against the feature's existing stories using
// AI-powered semantic classification and partitions the batch into three
// buckets: create as new, merge into an existing story, or skip as a
// duplicate. Each candidate receives exactly one decision.
//
// # Architecture
//
// The Consolidator owns only the bookkeeping:
//
//  1. Short-circuit: with no existing stories, every candidate is create_new
//     and no classifier calls are made.
//  2. Per-candidate classification via the Classifier collaborator (one
//     attempt, no retries at this layer).
//  3. Validation of each classification: the action must be one of the three
//     known values, and skip/merge must reference an existing story id that
//     is actually present in the input.
//  4. Assembly of the result: bucketed stories, a summary whose counts sum
//     to the number of candidates, and the default selection set (every
//     candidate index except those marked skip) the UI pre-checks.
//
// # Fail-Soft
//
// Consolidation is an enrichment step, never a gate. If the classifier call
// fails or returns malformed data, the pass degrades to treating every
// candidate as create_new with the full selection set, and the result is
// marked UsedFallback so callers can warn the user the comparison was
// skipped rather than silently guessing. Set Config.FailSoft to false to
// surface a hard error instead (mainly useful in tests).
//
// # Usage
//
//	classifier := consolidation.NewAIClassifier(client)
//	cons, err := consolidation.New(classifier, consolidation.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	result, err := cons.Consolidate(ctx, candidates, existing)
//	if err != nil {
//	    return err
//	}
//	if result.UsedFallback {
//	    log.Printf("[CONSOLIDATE] comparison skipped: %s", result.FallbackReason)
//	}
//	for _, i := range result.DefaultSelection {
//	    // pre-check candidates[i] for the user to accept
//	}
package consolidation
