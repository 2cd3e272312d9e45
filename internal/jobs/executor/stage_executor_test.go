package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/claimscope/internal/interfaces"
	"github.com/ternarybob/claimscope/internal/models"
	"github.com/ternarybob/claimscope/internal/pipeline"
)

// MockRenderer is a mock implementation of interfaces.PromptRenderer for testing
type MockRenderer struct {
	mock.Mock
}

func (m *MockRenderer) Render(stageID string, variables map[string]any) (string, string, error) {
	args := m.Called(stageID, variables)
	return args.String(0), args.String(1), args.Error(2)
}

// MockLLMClient is a mock implementation of interfaces.LLMClient for testing
type MockLLMClient struct {
	mock.Mock
}

func (m *MockLLMClient) Call(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (*interfaces.LLMResponse, error) {
	args := m.Called(ctx, systemPrompt, userPrompt, temperature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.LLMResponse), args.Error(1)
}

func (m *MockLLMClient) Model() string {
	return "mock-model"
}

func TestStageExecutor_Success(t *testing.T) {
	renderer := new(MockRenderer)
	llm := new(MockLLMClient)

	renderer.On("Render", pipeline.StageCaseSummary, mock.Anything).Return("sys", "user", nil)
	llm.On("Call", mock.Anything, "sys", "user", 0.0).Return(&interfaces.LLMResponse{
		Content:      `{"summary": "ok"}`,
		ParsedJSON:   map[string]any{"summary": "ok"},
		TokensInput:  10,
		TokensOutput: 5,
		LatencyMs:    42,
	}, nil)

	analysisCtx := models.NewAnalysisContext()
	analysisCtx.Set(models.ContextKeyToday, "2026-10-15")

	outcome := NewStageExecutor(renderer, llm, 0.0, arbor.NewLogger()).
		Execute(context.Background(), pipeline.StageCaseSummary, analysisCtx)

	require.True(t, outcome.IsSuccess())
	assert.Equal(t, "ok", outcome.Output.Output["summary"])
	assert.Equal(t, "mock-model", outcome.Output.Model, "empty reply model falls back to the client model")
	assert.Equal(t, 10, outcome.Output.TokensInput)
	assert.Equal(t, int64(42), outcome.Output.LatencyMs)
	assert.Equal(t, "2026-10-15", outcome.Output.Input["today"])
	assert.False(t, outcome.Output.Flagged())

	renderer.AssertExpectations(t)
	llm.AssertExpectations(t)
}

func TestStageExecutor_ParseFailureIsFlaggedSuccess(t *testing.T) {
	renderer := new(MockRenderer)
	llm := new(MockLLMClient)

	renderer.On("Render", mock.Anything, mock.Anything).Return("", "user", nil)
	llm.On("Call", mock.Anything, "", "user", 0.0).Return(&interfaces.LLMResponse{
		Content: "not json",
		Model:   "claude-x",
	}, nil)

	outcome := NewStageExecutor(renderer, llm, 0.0, arbor.NewLogger()).
		Execute(context.Background(), pipeline.StageFetchPlanner, models.NewAnalysisContext())

	require.True(t, outcome.IsSuccess())
	assert.Equal(t, "not json", outcome.Output.Output["raw"])
	assert.Equal(t, []any{models.ParseFailedMarker}, outcome.Output.Output["errors"])
	assert.Equal(t, "claude-x", outcome.Output.Model)
	assert.True(t, outcome.Output.Flagged())
}

func TestStageExecutor_RenderFailure(t *testing.T) {
	renderer := new(MockRenderer)
	llm := new(MockLLMClient)

	renderer.On("Render", mock.Anything, mock.Anything).Return("", "", errors.New("prompt file not found"))

	outcome := NewStageExecutor(renderer, llm, 0.0, arbor.NewLogger()).
		Execute(context.Background(), pipeline.StageFetchPlanner, models.NewAnalysisContext())

	require.False(t, outcome.IsSuccess())
	assert.Equal(t, models.StageErrorRender, outcome.Err.Kind)
	assert.Equal(t, pipeline.StageFetchPlanner, outcome.Err.Stage)
	llm.AssertNotCalled(t, "Call", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestStageExecutor_LLMFailure(t *testing.T) {
	renderer := new(MockRenderer)
	llm := new(MockLLMClient)
	boom := errors.New("upstream unavailable")

	renderer.On("Render", mock.Anything, mock.Anything).Return("sys", "user", nil)
	llm.On("Call", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, boom)

	outcome := NewStageExecutor(renderer, llm, 0.0, arbor.NewLogger()).
		Execute(context.Background(), pipeline.StageCandidateRanker, models.NewAnalysisContext())

	require.False(t, outcome.IsSuccess())
	assert.Equal(t, models.StageErrorLLM, outcome.Err.Kind)
	assert.ErrorIs(t, outcome.Err, boom)
}
