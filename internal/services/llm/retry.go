package llm

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// RetryConfig defines retry behavior for provider calls
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt
	MaxRetries int

	// BaseBackoff is the linear step for ordinary API errors: (attempt+1) * BaseBackoff
	BaseBackoff time.Duration

	// InitialBackoff is the first wait after a rate limit error, matching the
	// provider quota window
	InitialBackoff time.Duration

	// MaxBackoff caps every wait
	MaxBackoff time.Duration

	// BackoffMultiplier is applied to rate limit backoff on each retry
	BackoffMultiplier float64
}

const (
	DefaultMaxRetries        = 3
	DefaultBaseBackoff       = 2 * time.Second
	DefaultInitialBackoff    = 45 * time.Second
	DefaultMaxBackoff        = 90 * time.Second
	DefaultBackoffMultiplier = 1.5
)

// NewDefaultRetryConfig returns a RetryConfig with production defaults
func NewDefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        DefaultMaxRetries,
		BaseBackoff:       DefaultBaseBackoff,
		InitialBackoff:    DefaultInitialBackoff,
		MaxBackoff:        DefaultMaxBackoff,
		BackoffMultiplier: DefaultBackoffMultiplier,
	}
}

// IsRateLimitError matches 429 status codes and quota exhaustion errors
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "RESOURCE_EXHAUSTED") ||
		strings.Contains(errStr, "rate_limit_error") ||
		strings.Contains(errStr, "quota")
}

// IsRetryable reports whether another attempt may succeed. A per-call
// timeout is retryable; cancellation is not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, context.Canceled)
}

// retryDelayRegex matches "Please retry in Xs" or "retryDelay:Xs" patterns
var retryDelayRegex = regexp.MustCompile(`(?i)(?:Please retry in |retryDelay[:\s]+)(\d+(?:\.\d+)?)\s*s`)

// ExtractRetryDelay parses the API-suggested retry delay from an error.
// Returns 0 if no delay is found in the error message.
//
// Example error message:
// "Error 429, Message: ... Please retry in 45.387061394s., Status: RESOURCE_EXHAUSTED"
func ExtractRetryDelay(err error) time.Duration {
	if err == nil {
		return 0
	}

	matches := retryDelayRegex.FindStringSubmatch(err.Error())
	if len(matches) < 2 {
		return 0
	}

	seconds, parseErr := strconv.ParseFloat(matches[1], 64)
	if parseErr != nil {
		return 0
	}

	return time.Duration(seconds * float64(time.Second))
}

// CalculateBackoff computes the rate limit backoff for a given attempt.
// If apiDelay > 0 it is used as the base plus a small buffer, otherwise
// InitialBackoff. The result is capped at MaxBackoff.
func (c *RetryConfig) CalculateBackoff(attempt int, apiDelay time.Duration) time.Duration {
	base := c.InitialBackoff
	if apiDelay > 0 {
		base = apiDelay + 5*time.Second
	}

	multiplier := 1.0
	for i := 0; i < attempt; i++ {
		multiplier *= c.BackoffMultiplier
	}

	backoff := time.Duration(float64(base) * multiplier)
	if backoff > c.MaxBackoff {
		backoff = c.MaxBackoff
	}
	return backoff
}

// BackoffFor returns the wait before retrying after err on attempt
func (c *RetryConfig) BackoffFor(attempt int, err error) time.Duration {
	if IsRateLimitError(err) {
		return c.CalculateBackoff(attempt, ExtractRetryDelay(err))
	}
	backoff := time.Duration(attempt+1) * c.BaseBackoff
	if c.MaxBackoff > 0 && backoff > c.MaxBackoff {
		backoff = c.MaxBackoff
	}
	return backoff
}
