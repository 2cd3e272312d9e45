// -----------------------------------------------------------------------
// Job Executor Interfaces - stage execution and job runs
// -----------------------------------------------------------------------

package interfaces

import (
	"context"

	"github.com/ternarybob/claimscope/internal/models"
)

// StageExecutor runs one stage against a job context.
// Execute never panics on provider problems; hard failures come back as the
// error branch of the outcome. The context is read, never written.
type StageExecutor interface {
	Execute(ctx context.Context, stageID string, analysisCtx *models.AnalysisContext) models.StageOutcome
}

// JobRunner drives a job through its pipeline until it is terminal
type JobRunner interface {
	// RunJob blocks until the job is completed or failed and returns the
	// final job. A returned error means the run could not start or the job
	// could not be persisted; stage failures end in a failed job instead.
	RunJob(ctx context.Context, jobID string) (*models.AnalysisJob, error)
}
