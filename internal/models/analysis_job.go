// -----------------------------------------------------------------------
// Analysis Job - a patent investigation run through one pipeline variant
// -----------------------------------------------------------------------

package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ternarybob/claimscope/internal/pipeline"
)

const (
	DefaultJobPriority   = 5
	MinJobPriority       = 0
	MaxJobPriority       = 10
	DefaultJobMaxRetries = 3
)

// AnalysisJob is the system-of-record for one analysis run.
//
// State machine:
//
//	pending -> researching|analyzing -> completed|failed
//	failed  -> pending (retry sweep, bounded by MaxRetries)
//
// CurrentStage is only set while the job is active and a stage is in flight.
type AnalysisJob struct {
	ID       string           `json:"id"`
	PatentID string           `json:"patent_id"`
	Pipeline pipeline.Variant `json:"pipeline"`
	Status   JobStatus        `json:"status"`

	CurrentStage *string `json:"current_stage"`

	// Admission
	Priority     int        `json:"priority"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
	RetryCount   int        `json:"retry_count"`
	MaxRetries   int        `json:"max_retries"`

	// Targeting
	TargetProduct string `json:"target_product,omitempty"`
	CompanyID     string `json:"company_id,omitempty"`
	ProductID     string `json:"product_id,omitempty"`
	ClaimNos      []int  `json:"claim_nos,omitempty"`

	Context *AnalysisContext `json:"context"`
	Error   *JobError        `json:"error"`

	CreatedAt   time.Time  `json:"created_at"`
	QueuedAt    *time.Time `json:"queued_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewAnalysisJob creates a pending job with default admission settings
func NewAnalysisJob(patentID string, variant pipeline.Variant) *AnalysisJob {
	now := time.Now().UTC()
	return &AnalysisJob{
		ID:         uuid.New().String(),
		PatentID:   patentID,
		Pipeline:   variant,
		Status:     JobStatusPending,
		Priority:   DefaultJobPriority,
		MaxRetries: DefaultJobMaxRetries,
		Context:    NewAnalysisContext(),
		CreatedAt:  now,
		QueuedAt:   &now,
		UpdatedAt:  now,
	}
}

// IsDue reports whether a pending job may be dispatched at now
func (j *AnalysisJob) IsDue(now time.Time) bool {
	return j.ScheduledFor == nil || !j.ScheduledFor.After(now)
}

// CanRetry reports whether a failed job still has retry budget
func (j *AnalysisJob) CanRetry() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// RetryBudget returns the number of retries left
func (j *AnalysisJob) RetryBudget() int {
	if left := j.MaxRetries - j.RetryCount; left > 0 {
		return left
	}
	return 0
}

// IsRunnable mirrors the run guard: pending or failed jobs may always run, an
// analyzing job only when dispatch has claimed it and no stage has started.
func (j *AnalysisJob) IsRunnable() bool {
	switch j.Status {
	case JobStatusPending, JobStatusFailed:
		return true
	case JobStatusAnalyzing:
		return j.CurrentStage == nil
	default:
		return false
	}
}

// ActiveSince returns started_at, falling back to queued_at
func (j *AnalysisJob) ActiveSince() *time.Time {
	if j.StartedAt != nil {
		return j.StartedAt
	}
	return j.QueuedAt
}

// MarkActive moves the job into analyzing and resets the run bookkeeping
func (j *AnalysisJob) MarkActive(now time.Time) {
	j.Status = JobStatusAnalyzing
	j.Error = nil
	j.CurrentStage = nil
	j.CompletedAt = nil
	if j.QueuedAt == nil {
		j.QueuedAt = &now
	}
	j.StartedAt = &now
	j.UpdatedAt = now
}

// SetCurrentStage records the stage in flight
func (j *AnalysisJob) SetCurrentStage(stage string, now time.Time) {
	j.CurrentStage = &stage
	j.UpdatedAt = now
}

// MarkCompleted finalizes a successful run
func (j *AnalysisJob) MarkCompleted(now time.Time) {
	j.Status = JobStatusCompleted
	j.CurrentStage = nil
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// MarkFailed finalizes a failed run; a terminal job never keeps a stage in flight
func (j *AnalysisJob) MarkFailed(jobErr *JobError, now time.Time) {
	j.Status = JobStatusFailed
	j.Error = jobErr
	j.CurrentStage = nil
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// MarkRetry requeues a failed job, consuming one unit of retry budget
func (j *AnalysisJob) MarkRetry(now time.Time) {
	j.Status = JobStatusPending
	j.RetryCount++
	j.Error = nil
	j.CurrentStage = nil
	j.CompletedAt = nil
	j.StartedAt = nil
	j.QueuedAt = &now
	j.UpdatedAt = now
}

// ErrorString returns the rendered job error or ""
func (j *AnalysisJob) ErrorString() string {
	if j.Error == nil {
		return ""
	}
	return j.Error.String()
}
