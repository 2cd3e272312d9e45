// -----------------------------------------------------------------------
// Stage Executor - renders a stage prompt, calls the LLM, shapes the output
// -----------------------------------------------------------------------

package executor

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/claimscope/internal/interfaces"
	"github.com/ternarybob/claimscope/internal/models"
)

// StageExecutor implements interfaces.StageExecutor
type StageExecutor struct {
	renderer    interfaces.PromptRenderer
	llm         interfaces.LLMClient
	temperature float64
	logger      arbor.ILogger
}

var _ interfaces.StageExecutor = (*StageExecutor)(nil)

// NewStageExecutor creates a stage executor calling llm at the given temperature
func NewStageExecutor(renderer interfaces.PromptRenderer, llm interfaces.LLMClient, temperature float64, logger arbor.ILogger) *StageExecutor {
	return &StageExecutor{
		renderer:    renderer,
		llm:         llm,
		temperature: temperature,
		logger:      logger,
	}
}

// Execute runs stageID once against the context.
// A reply that is not a JSON object still succeeds, with the raw text and
// a parse error marker as output. Only render and LLM call errors fail.
func (e *StageExecutor) Execute(ctx context.Context, stageID string, analysisCtx *models.AnalysisContext) models.StageOutcome {
	variables := BuildVariables(stageID, analysisCtx)

	systemPrompt, userPrompt, err := e.renderer.Render(stageID, variables)
	if err != nil {
		return models.StageFailed(stageID, models.StageErrorRender, err)
	}

	resp, err := e.llm.Call(ctx, systemPrompt, userPrompt, e.temperature)
	if err != nil {
		return models.StageFailed(stageID, models.StageErrorLLM, err)
	}

	output := resp.ParsedJSON
	if output == nil {
		e.logger.Warn().
			Str("stage", stageID).
			Int("content_length", len(resp.Content)).
			Msg("Stage reply is not a JSON object, keeping raw text")
		output = map[string]any{
			"raw":    resp.Content,
			"errors": []any{models.ParseFailedMarker},
		}
	}

	model := resp.Model
	if model == "" {
		model = e.llm.Model()
	}

	return models.StageSucceeded(&models.StageOutput{
		Input:        variables,
		Output:       output,
		Model:        model,
		TokensInput:  resp.TokensInput,
		TokensOutput: resp.TokensOutput,
		LatencyMs:    resp.LatencyMs,
	})
}
