// -----------------------------------------------------------------------
// Error taxonomy for analysis jobs
// -----------------------------------------------------------------------

package models

import (
	"errors"
	"fmt"
)

var (
	// ErrJobNotFound is returned when a job id does not resolve
	ErrJobNotFound = errors.New("job not found")

	// ErrValidation marks caller input problems; no job state is mutated
	ErrValidation = errors.New("validation failed")
)

// ValidationError describes a rejected request field
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError builds a ValidationError for a single field
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// JobNotRunnableError is returned by run requests against a job that is
// already in flight or finished.
type JobNotRunnableError struct {
	JobID  string
	Status JobStatus
}

func (e *JobNotRunnableError) Error() string {
	return fmt.Sprintf("job %s cannot be run in status %s", e.JobID, e.Status)
}

// StageErrorKind classifies a hard stage failure
type StageErrorKind string

const (
	StageErrorRender  StageErrorKind = "render"
	StageErrorLLM     StageErrorKind = "llm"
	StageErrorPersist StageErrorKind = "persist"
)

// StageError is the failure branch of a StageOutcome
type StageError struct {
	Stage string
	Kind  StageErrorKind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s %s error: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// JobErrorKind classifies the reason a job ended failed
type JobErrorKind string

const (
	JobErrorStageFailed    JobErrorKind = "stage_failed"
	JobErrorTimeout        JobErrorKind = "timeout"
	JobErrorDispatchFailed JobErrorKind = "dispatch_failed"
	JobErrorInternal       JobErrorKind = "internal"
)

// JobError is the structured error stored on a failed job
type JobError struct {
	Kind   JobErrorKind `json:"kind"`
	Detail string       `json:"detail"`
}

func (e JobError) String() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// NewStageFailedError records a stage hard failure under its qualified key
func NewStageFailedError(qualifiedKey string, cause error) *JobError {
	return &JobError{
		Kind:   JobErrorStageFailed,
		Detail: fmt.Sprintf("Stage %s failed: %v", qualifiedKey, cause),
	}
}

// NewTimeoutError records a job force-failed by the timeout sweep
func NewTimeoutError(elapsedSeconds, thresholdSeconds int) *JobError {
	return &JobError{
		Kind:   JobErrorTimeout,
		Detail: fmt.Sprintf("timeout after %ds (limit %ds)", elapsedSeconds, thresholdSeconds),
	}
}
