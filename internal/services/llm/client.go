package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/claimscope/internal/interfaces"
)

// Client implements interfaces.LLMClient on top of a Provider. Calls are
// paced by a token bucket, bounded by a per-call timeout and retried with
// backoff. Replies that decode to a non-empty JSON object carry ParsedJSON.
type Client struct {
	provider Provider
	limiter  *rate.Limiter
	timeout  time.Duration
	retry    *RetryConfig
	logger   arbor.ILogger
}

// Compile-time assertion
var _ interfaces.LLMClient = (*Client)(nil)

// NewClient wraps provider. A zero rateLimit disables pacing and a nil retry
// config uses NewDefaultRetryConfig.
func NewClient(provider Provider, settings ProviderSettings, retry *RetryConfig, logger arbor.ILogger) *Client {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if settings.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Every(settings.RateLimit), 1)
	}
	if retry == nil {
		retry = NewDefaultRetryConfig()
	}
	return &Client{
		provider: provider,
		limiter:  limiter,
		timeout:  settings.Timeout,
		retry:    retry,
		logger:   logger,
	}
}

// Model returns the configured model name
func (c *Client) Model() string {
	return c.provider.Model()
}

// Call sends one system + user exchange.
// LatencyMs covers the successful attempt only, not pacing or backoff.
func (c *Client) Call(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (*interfaces.LLMResponse, error) {
	req := &CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  temperature,
	}

	var lastErr error
	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.retry.BackoffFor(attempt-1, lastErr)
			c.logger.Warn().
				Str("provider", string(c.provider.Name())).
				Int("attempt", attempt+1).
				Dur("backoff", backoff).
				Err(lastErr).
				Msg("Retrying LLM call after backoff")

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		completion, latency, err := c.complete(ctx, req)
		if err == nil {
			return &interfaces.LLMResponse{
				Content:      completion.Text,
				ParsedJSON:   ParseJSONObject(completion.Text),
				Model:        completion.Model,
				TokensInput:  completion.TokensInput,
				TokensOutput: completion.TokensOutput,
				LatencyMs:    latency.Milliseconds(),
			}, nil
		}

		lastErr = err
		if ctx.Err() != nil || !IsRetryable(err) {
			break
		}
	}

	return nil, fmt.Errorf("%s call failed after %d attempts: %w", c.provider.Name(), c.retry.MaxRetries+1, lastErr)
}

func (c *Client) complete(ctx context.Context, req *CompletionRequest) (*Completion, time.Duration, error) {
	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	completion, err := c.provider.Complete(callCtx, req)
	latency := time.Since(start)
	if err != nil {
		return nil, latency, err
	}
	if completion.Model == "" {
		completion.Model = c.provider.Model()
	}
	return completion, latency, nil
}

// unavailableClient stands in when no provider could be configured, so that
// commands which never call a model still start. Every call fails.
type unavailableClient struct {
	cause error
}

// NewUnavailableClient returns a client whose calls fail with cause
func NewUnavailableClient(cause error) interfaces.LLMClient {
	return &unavailableClient{cause: cause}
}

func (c *unavailableClient) Model() string { return "" }

func (c *unavailableClient) Call(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (*interfaces.LLMResponse, error) {
	return nil, fmt.Errorf("LLM client unavailable: %w", c.cause)
}
