package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/claimscope/internal/pipeline"
)

func TestParseJobStatus(t *testing.T) {
	tests := []struct {
		in   string
		want JobStatus
	}{
		{in: "pending", want: JobStatusPending},
		{in: " Researching ", want: JobStatusResearching},
		{in: "analyzing", want: JobStatusAnalyzing},
		{in: "running", want: JobStatusAnalyzing},
		{in: "COMPLETED", want: JobStatusCompleted},
		{in: "failed", want: JobStatusFailed},
	}
	for _, tt := range tests {
		got, err := ParseJobStatus(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseJobStatus("paused")
	assert.Error(t, err)
}

func TestJobStatus_UnmarshalCanonicalizes(t *testing.T) {
	var job AnalysisJob
	require.NoError(t, json.Unmarshal([]byte(`{"id":"j1","status":"running"}`), &job))
	assert.Equal(t, JobStatusAnalyzing, job.Status)
	assert.True(t, job.Status.IsActive())

	assert.Error(t, json.Unmarshal([]byte(`{"status":"bogus"}`), &job))
}

func TestAnalysisJob_Lifecycle(t *testing.T) {
	job := NewAnalysisJob("JP1", pipeline.VariantA)
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, DefaultJobPriority, job.Priority)
	assert.Equal(t, DefaultJobMaxRetries, job.MaxRetries)
	require.NotNil(t, job.QueuedAt)
	assert.True(t, job.IsRunnable())

	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	job.MarkActive(start)
	assert.Equal(t, JobStatusAnalyzing, job.Status)
	assert.Equal(t, &start, job.ActiveSince())
	assert.True(t, job.IsRunnable(), "claimed by dispatch, no stage started")

	job.SetCurrentStage(pipeline.StageFetchPlanner, start.Add(time.Second))
	assert.False(t, job.IsRunnable())

	failedAt := start.Add(time.Minute)
	job.MarkFailed(NewStageFailedError(pipeline.StageFetchPlanner, errors.New("boom")), failedAt)
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Nil(t, job.CurrentStage)
	assert.Equal(t, &failedAt, job.CompletedAt)
	assert.Equal(t, "stage_failed: Stage 01_fetch_planner failed: boom", job.ErrorString())
	assert.True(t, job.CanRetry())
	assert.Equal(t, 3, job.RetryBudget())

	retryAt := start.Add(time.Hour)
	job.MarkRetry(retryAt)
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, 1, job.RetryCount)
	assert.Nil(t, job.Error)
	assert.Nil(t, job.StartedAt)
	assert.Nil(t, job.CompletedAt)
	assert.Equal(t, &retryAt, job.ActiveSince(), "falls back to queued_at")

	job.MarkActive(retryAt)
	job.MarkCompleted(retryAt.Add(time.Minute))
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.True(t, job.Status.IsTerminal())
	assert.False(t, job.IsRunnable())
	assert.False(t, job.CanRetry())
	assert.Empty(t, job.ErrorString())
}

func TestAnalysisJob_RetryBudgetExhausted(t *testing.T) {
	job := NewAnalysisJob("JP1", pipeline.VariantB)
	job.MaxRetries = 1
	job.RetryCount = 1
	job.MarkFailed(NewTimeoutError(2000, 1800), time.Now().UTC())

	assert.False(t, job.CanRetry())
	assert.Zero(t, job.RetryBudget())
	assert.Equal(t, "timeout: timeout after 2000s (limit 1800s)", job.ErrorString())
}

func TestAnalysisJob_IsDue(t *testing.T) {
	now := time.Now().UTC()
	job := NewAnalysisJob("JP1", pipeline.VariantC)
	assert.True(t, job.IsDue(now))

	future := now.Add(time.Minute)
	job.ScheduledFor = &future
	assert.False(t, job.IsDue(now))
	assert.True(t, job.IsDue(future))
}

func TestValidationError(t *testing.T) {
	err := fmt.Errorf("create: %w", NewValidationError("priority", "must be at most 10"))
	assert.ErrorIs(t, err, ErrValidation)
	assert.EqualError(t, err, "create: priority: must be at most 10")

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "priority", validationErr.Field)

	assert.Equal(t, "request body is required", NewValidationError("", "request body is required").Error())
}
