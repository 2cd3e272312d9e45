package interfaces

import (
	"context"
)

// LLMResponse is the result of one completion call
type LLMResponse struct {
	// Content is the raw text returned by the model
	Content string

	// ParsedJSON holds the reply decoded as a JSON object, or nil when the
	// reply is not a non-empty object (fences are stripped before parsing)
	ParsedJSON map[string]any

	Model        string
	TokensInput  int
	TokensOutput int
	LatencyMs    int64
}

// LLMClient issues single-turn completions for pipeline stages.
// Implementations pace and retry provider calls; an error returned from Call
// means the provider could not produce a reply at all.
type LLMClient interface {
	// Call sends a system and user prompt pair and waits for the reply.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - systemPrompt: Rendered system instructions (may be empty)
	//   - userPrompt: Rendered stage prompt
	//   - temperature: Sampling temperature, 0.0 for deterministic stages
	//
	// Returns:
	//   - *LLMResponse: Reply content, parsed JSON, model id, token usage, latency
	//   - error: Provider or transport failure after retries
	Call(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (*LLMResponse, error)

	// Model returns the model id used for calls
	Model() string
}

// PromptRenderer turns a stage id and its variables into prompts
type PromptRenderer interface {
	// Render substitutes {{key}} placeholders. An unknown stage or a missing
	// template is an error; unresolved placeholders are only logged.
	Render(stageID string, variables map[string]any) (systemPrompt string, userPrompt string, err error)
}

// PromptInfo describes one available prompt template
type PromptInfo struct {
	StageID     string `json:"stage_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Pipeline    string `json:"pipeline"`
}
