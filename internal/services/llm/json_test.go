package llm

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseJSONObject(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantKey string
	}{
		{name: "plain object", content: `{"a": 1}`, wantKey: "a"},
		{name: "json fence", content: "```json\n{\"b\": 2}\n```", wantKey: "b"},
		{name: "bare fence", content: "```\n{\"c\": 3}\n```", wantKey: "c"},
		{name: "surrounding whitespace", content: "  \n{\"d\": 4}\n  ", wantKey: "d"},
		{name: "empty object", content: "{}"},
		{name: "array", content: "[1, 2]"},
		{name: "scalar", content: "42"},
		{name: "prose", content: "not json at all"},
		{name: "empty", content: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseJSONObject(tt.content)
			if tt.wantKey == "" {
				assert.Nil(t, got)
				return
			}
			assert.Contains(t, got, tt.wantKey)
		})
	}
}

func TestIsRateLimitError(t *testing.T) {
	assert.True(t, IsRateLimitError(errors.New("Error 429, Status: RESOURCE_EXHAUSTED")))
	assert.True(t, IsRateLimitError(errors.New("claude API error: rate_limit_error")))
	assert.True(t, IsRateLimitError(errors.New("quota exceeded")))
	assert.False(t, IsRateLimitError(errors.New("invalid request")))
	assert.False(t, IsRateLimitError(nil))
}

func TestExtractRetryDelay(t *testing.T) {
	err := errors.New("Error 429, Message: Please retry in 45.5s., Status: RESOURCE_EXHAUSTED")
	assert.Equal(t, 45500*time.Millisecond, ExtractRetryDelay(err))
	assert.Equal(t, 12*time.Second, ExtractRetryDelay(errors.New("retryDelay: 12s")))
	assert.Zero(t, ExtractRetryDelay(errors.New("no delay here")))
}

func TestRetryConfig_Backoff(t *testing.T) {
	cfg := NewDefaultRetryConfig()

	assert.Equal(t, 45*time.Second, cfg.CalculateBackoff(0, 0))
	assert.Equal(t, 67500*time.Millisecond, cfg.CalculateBackoff(1, 0))
	assert.Equal(t, 90*time.Second, cfg.CalculateBackoff(3, 0), "capped at MaxBackoff")
	assert.Equal(t, 15*time.Second, cfg.CalculateBackoff(0, 10*time.Second), "api delay plus buffer")

	assert.Equal(t, 2*time.Second, cfg.BackoffFor(0, errors.New("boom")))
	assert.Equal(t, 6*time.Second, cfg.BackoffFor(2, errors.New("boom")))
	assert.Equal(t, 45*time.Second, cfg.BackoffFor(0, errors.New("429")))
}
