package consolidation

import (
	"context"
	"fmt"

	"github.com/storylinehq/storyline/internal/ai"
	"github.com/storylinehq/storyline/internal/types"
)

// AIClassifier implements Classifier on top of the AI client
type AIClassifier struct {
	client *ai.Client
}

// Compile-time check that AIClassifier implements Classifier
var _ Classifier = (*AIClassifier)(nil)

// NewAIClassifier creates an AI-backed classifier
func NewAIClassifier(client *ai.Client) (*AIClassifier, error) {
	if client == nil {
		return nil, fmt.Errorf("ai client cannot be nil")
	}
	return &AIClassifier{client: client}, nil
}

// ClassifyCandidate delegates to the AI client and converts its wire
// shape into the consolidator's Classification. Conversion is purely
// structural; the consolidator performs all semantic validation
// (action values, existing-id references, confidence bounds).
func (a *AIClassifier) ClassifyCandidate(ctx context.Context, candidate types.CandidateStory, existing []types.ExistingStory) (*Classification, error) {
	resp, err := a.client.ClassifyCandidateStory(ctx, candidate, existing)
	if err != nil {
		return nil, err
	}
	return &Classification{
		Action:          Action(resp.Action),
		ExistingID:      resp.ExistingID,
		MergedNarrative: resp.MergedNarrative,
		Confidence:      resp.Confidence,
		Reasoning:       resp.Reasoning,
	}, nil
}
