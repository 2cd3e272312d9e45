// -----------------------------------------------------------------------
// LLM Providers - Claude and Gemini behind one completion call
// -----------------------------------------------------------------------

package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/ternarybob/claimscope/internal/common"
	"github.com/ternarybob/claimscope/internal/interfaces"
)

// CompletionRequest is a single system + user prompt exchange
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	MaxTokens    int
}

// Completion is the raw provider reply with token usage
type Completion struct {
	Text         string
	Model        string
	TokensInput  int
	TokensOutput int
}

// Provider performs one completion without retries or pacing
type Provider interface {
	Name() common.LLMProvider
	Model() string
	Complete(ctx context.Context, req *CompletionRequest) (*Completion, error)
}

// ProviderSettings are the per-provider knobs shared by both backends
type ProviderSettings struct {
	Model     string
	MaxTokens int
	Timeout   time.Duration
	RateLimit time.Duration
}

// SettingsFor parses the config section of the selected provider.
// Invalid durations fall back to 5m timeout and no pacing.
func SettingsFor(config *common.Config, provider common.LLMProvider) ProviderSettings {
	var model, timeout, rateLimit string
	var maxTokens int
	switch provider {
	case common.LLMProviderGemini:
		model, timeout, rateLimit, maxTokens = config.Gemini.Model, config.Gemini.Timeout, config.Gemini.RateLimit, config.Gemini.MaxTokens
	default:
		model, timeout, rateLimit, maxTokens = config.Claude.Model, config.Claude.Timeout, config.Claude.RateLimit, config.Claude.MaxTokens
	}

	settings := ProviderSettings{Model: model, MaxTokens: maxTokens, Timeout: 5 * time.Minute}
	if d, err := time.ParseDuration(timeout); err == nil && d > 0 {
		settings.Timeout = d
	}
	if d, err := time.ParseDuration(rateLimit); err == nil && d > 0 {
		settings.RateLimit = d
	}
	if settings.MaxTokens <= 0 {
		settings.MaxTokens = 8192
	}
	return settings
}

// NewProvider creates the provider named by [llm].default_provider.
// API keys resolve through env, then KV storage, then config.
func NewProvider(ctx context.Context, config *common.Config, kvStorage interfaces.KeyValueStorage, logger arbor.ILogger) (Provider, error) {
	name := config.LLM.DefaultProvider
	if name == "" {
		name = common.LLMProviderClaude
	}
	settings := SettingsFor(config, name)

	switch name {
	case common.LLMProviderClaude:
		apiKey, err := common.ResolveAPIKey(ctx, kvStorage, "anthropic_api_key", config.Claude.APIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve Claude API key: %w", err)
		}
		client := anthropic.NewClient(option.WithAPIKey(apiKey))
		logger.Debug().Str("model", settings.Model).Msg("Claude client initialized")
		return &claudeProvider{client: &client, model: settings.Model, maxTokens: settings.MaxTokens}, nil

	case common.LLMProviderGemini:
		apiKey, err := common.ResolveAPIKey(ctx, kvStorage, "gemini_api_key", config.Gemini.APIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve Gemini API key: %w", err)
		}
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		logger.Debug().Str("model", settings.Model).Msg("Gemini client initialized")
		return &geminiProvider{client: client, model: settings.Model, maxTokens: settings.MaxTokens}, nil

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", name)
	}
}

// ----- Claude -----

type claudeProvider struct {
	client    *anthropic.Client
	model     string
	maxTokens int
}

func (p *claudeProvider) Name() common.LLMProvider { return common.LLMProviderClaude }
func (p *claudeProvider) Model() string            { return p.model }

func (p *claudeProvider) Complete(ctx context.Context, req *CompletionRequest) (*Completion, error) {
	maxTokens := p.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.UserPrompt)),
		},
		Temperature: anthropic.Float(req.Temperature),
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("claude API error: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	model := string(resp.Model)
	if model == "" {
		model = p.model
	}

	return &Completion{
		Text:         text.String(),
		Model:        model,
		TokensInput:  int(resp.Usage.InputTokens),
		TokensOutput: int(resp.Usage.OutputTokens),
	}, nil
}

// ----- Gemini -----

type geminiProvider struct {
	client    *genai.Client
	model     string
	maxTokens int
}

func (p *geminiProvider) Name() common.LLMProvider { return common.LLMProviderGemini }
func (p *geminiProvider) Model() string            { return p.model }

func (p *geminiProvider) Complete(ctx context.Context, req *CompletionRequest) (*Completion, error) {
	maxTokens := p.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(req.Temperature)),
		MaxOutputTokens: int32(maxTokens),
	}
	if req.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(req.UserPrompt), config)
	if err != nil {
		return nil, fmt.Errorf("gemini API error: %w", err)
	}

	completion := &Completion{
		Text:  resp.Text(),
		Model: p.model,
	}
	if resp.ModelVersion != "" {
		completion.Model = resp.ModelVersion
	}
	if resp.UsageMetadata != nil {
		completion.TokensInput = int(resp.UsageMetadata.PromptTokenCount)
		completion.TokensOutput = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return completion, nil
}
