// Package ai implements the LLM collaborators behind story drafting,
// candidate classification, and task-spec generation.
package ai

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Model constants. Storyline uses a tiered selection: the default model
// for drafting and task generation, a cheaper model for the per-candidate
// classification calls that dominate a consolidation pass.
const (
	// ModelDefault is the model for drafting and planning
	ModelDefault = "claude-sonnet-4-5-20250929"

	// ModelClassify is the cost-efficient model for classification calls
	ModelClassify = "claude-3-5-haiku-20241022"
)

// GetDefaultModel returns the drafting model, honoring STORYLINE_MODEL
func GetDefaultModel() string {
	if model := os.Getenv("STORYLINE_MODEL"); model != "" {
		return model
	}
	return ModelDefault
}

// GetClassifyModel returns the classification model, honoring STORYLINE_MODEL_CLASSIFY
func GetClassifyModel() string {
	if model := os.Getenv("STORYLINE_MODEL_CLASSIFY"); model != "" {
		return model
	}
	return ModelClassify
}

// Client wraps the Anthropic API for storyline's AI operations.
//
// Responsibilities are split across files:
//   - client.go: construction and the generic CallAI / callOnce entry points
//   - retry.go: backoff, circuit breaker, concurrency and rate limits
//   - json_parser.go: resilient JSON extraction from model output
//   - generation.go: story drafting
//   - classification.go: candidate classification and feature matching
//   - taskgen.go: per-platform task-spec generation
type Client struct {
	client         *anthropic.Client
	model          string
	classifyModel  string
	retry          RetryConfig
	circuitBreaker *CircuitBreaker
	concurrencySem *semaphore.Weighted // Caps concurrent API calls
	limiter        *rate.Limiter       // Smooths request bursts
}

// Config holds client configuration
type Config struct {
	APIKey        string      // Anthropic API key (falls back to ANTHROPIC_API_KEY)
	Model         string      // Drafting model (default: ModelDefault)
	ClassifyModel string      // Classification model (default: ModelClassify)
	Retry         RetryConfig // Retry configuration (defaults if zero)
}

// NewClient creates an AI client
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
	}

	model := cfg.Model
	if model == "" {
		model = GetDefaultModel()
	}
	classifyModel := cfg.ClassifyModel
	if classifyModel == "" {
		classifyModel = GetClassifyModel()
	}

	retry := cfg.Retry
	if retry.MaxRetries == 0 {
		retry = DefaultRetryConfig()
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	var circuitBreaker *CircuitBreaker
	if retry.CircuitBreakerEnabled {
		circuitBreaker = NewCircuitBreaker(retry.FailureThreshold, retry.SuccessThreshold, retry.OpenTimeout)
	}

	var concurrencySem *semaphore.Weighted
	if retry.MaxConcurrentCalls > 0 {
		concurrencySem = semaphore.NewWeighted(int64(retry.MaxConcurrentCalls))
	}

	var limiter *rate.Limiter
	if retry.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(retry.RequestsPerMinute)/60.0), retry.RequestsPerMinute)
	}

	return &Client{
		client:         &client,
		model:          model,
		classifyModel:  classifyModel,
		retry:          retry,
		circuitBreaker: circuitBreaker,
		concurrencySem: concurrencySem,
		limiter:        limiter,
	}, nil
}

// Model returns the drafting model name
func (c *Client) Model() string { return c.model }

// CallAI makes a text completion call with full retry handling.
// An empty model selects the client's drafting model; maxTokens of 0
// selects 4096.
func (c *Client) CallAI(ctx context.Context, prompt, operation, model string, maxTokens int) (string, error) {
	var responseText string
	err := c.retryWithBackoff(ctx, operation, func(attemptCtx context.Context) error {
		text, apiErr := c.message(attemptCtx, prompt, model, maxTokens)
		if apiErr != nil {
			return apiErr
		}
		responseText = text
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call failed: %w", err)
	}
	return responseText, nil
}

// callOnce makes a single-attempt call: concurrency, rate, and circuit
// limits still apply but there is no retry loop. The consolidation
// classifier uses this so a failing comparison degrades immediately
// instead of stalling the save flow behind backoff sleeps.
func (c *Client) callOnce(ctx context.Context, prompt, operation, model string, maxTokens int) (string, error) {
	if c.concurrencySem != nil {
		if err := c.concurrencySem.Acquire(ctx, 1); err != nil {
			return "", fmt.Errorf("failed to acquire concurrency slot for %s: %w", operation, err)
		}
		defer c.concurrencySem.Release(1)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter wait for %s: %w", operation, err)
		}
	}
	if c.circuitBreaker != nil {
		if err := c.circuitBreaker.Allow(); err != nil {
			return "", fmt.Errorf("%s blocked: %w", operation, err)
		}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.retry.Timeout)
	defer cancel()

	text, err := c.message(attemptCtx, prompt, model, maxTokens)
	if c.circuitBreaker != nil {
		if err != nil && isRetriableError(err) {
			c.circuitBreaker.RecordFailure()
		} else if err == nil {
			c.circuitBreaker.RecordSuccess()
		}
	}
	if err != nil {
		return "", fmt.Errorf("anthropic API call failed: %w", err)
	}
	return text, nil
}

// message performs one raw API request and concatenates the text blocks
func (c *Client) message(ctx context.Context, prompt, model string, maxTokens int) (string, error) {
	if model == "" {
		model = c.model
	}
	if maxTokens == 0 {
		maxTokens = 4096
	}

	start := time.Now()
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", err
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	fmt.Printf("AI call: model=%s input=%d tokens, output=%d tokens, duration=%v\n",
		model, resp.Usage.InputTokens, resp.Usage.OutputTokens, time.Since(start))
	return text, nil
}
