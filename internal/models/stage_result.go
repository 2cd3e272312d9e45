package models

import (
	"time"

	"github.com/google/uuid"
)

// ParseFailedMarker is the error recorded when an LLM reply is not a JSON object
const ParseFailedMarker = "JSON parse failed"

// StageResult is the append-only record of one (qualified) stage execution.
// Re-running a job appends new rows; Sequence orders rows within a job.
type StageResult struct {
	ID           string         `json:"id"`
	JobID        string         `json:"job_id"`
	Stage        string         `json:"stage"` // qualified key, e.g. "13_element_assessment:claim_2"
	Sequence     int            `json:"sequence"`
	Input        map[string]any `json:"input"`
	Output       map[string]any `json:"output"`
	Model        string         `json:"model"`
	TokensInput  int            `json:"tokens_input"`
	TokensOutput int            `json:"tokens_output"`
	LatencyMs    int64          `json:"latency_ms"`
	CreatedAt    time.Time      `json:"created_at"`
}

// StageOutput is the success payload of a stage execution
type StageOutput struct {
	Input        map[string]any
	Output       map[string]any
	Model        string
	TokensInput  int
	TokensOutput int
	LatencyMs    int64
}

// Flagged reports whether the output carries a non-empty "errors" list, which
// happens on parse failure or when the model itself reports problems.
func (o *StageOutput) Flagged() bool {
	return len(AsList(o.Output["errors"])) > 0
}

// NewStageResult converts a stage output into the row persisted for qualifiedKey
func NewStageResult(jobID, qualifiedKey string, out *StageOutput) *StageResult {
	return &StageResult{
		ID:           uuid.New().String(),
		JobID:        jobID,
		Stage:        qualifiedKey,
		Input:        out.Input,
		Output:       out.Output,
		Model:        out.Model,
		TokensInput:  out.TokensInput,
		TokensOutput: out.TokensOutput,
		LatencyMs:    out.LatencyMs,
		CreatedAt:    time.Now().UTC(),
	}
}

// StageOutcome is the tagged result of executing a stage: exactly one of
// Output and Err is set. Callers branch on IsSuccess instead of recovering
// from panics or inspecting error strings.
type StageOutcome struct {
	Output *StageOutput
	Err    *StageError
}

// StageSucceeded wraps a successful stage output
func StageSucceeded(out *StageOutput) StageOutcome {
	return StageOutcome{Output: out}
}

// StageFailed wraps a hard stage failure
func StageFailed(stage string, kind StageErrorKind, err error) StageOutcome {
	return StageOutcome{Err: &StageError{Stage: stage, Kind: kind, Err: err}}
}

func (o StageOutcome) IsSuccess() bool {
	return o.Err == nil && o.Output != nil
}
