// -----------------------------------------------------------------------
// Pipeline Orchestrator - drives one analysis job through its stage list
// -----------------------------------------------------------------------

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/claimscope/internal/common"
	"github.com/ternarybob/claimscope/internal/interfaces"
	"github.com/ternarybob/claimscope/internal/models"
	"github.com/ternarybob/claimscope/internal/pipeline"
)

// PipelineOrchestrator implements interfaces.JobRunner.
//
// Stages run strictly in order and per-claim stages run claim by claim; every
// stage transition and every stage result is persisted before the next step.
// The first hard stage failure fails the job and nothing after it runs.
// A run always starts at the first stage of the job's pipeline.
type PipelineOrchestrator struct {
	definition     *pipeline.Definition
	jobs           interfaces.AnalysisJobStorage
	results        interfaces.StageResultStorage
	elements       interfaces.ClaimElementStorage
	executor       interfaces.StageExecutor
	contextBuilder interfaces.ContextBuilder
	eventService   interfaces.EventService
	logger         arbor.ILogger
	now            func() time.Time
}

var _ interfaces.JobRunner = (*PipelineOrchestrator)(nil)

// NewPipelineOrchestrator creates an orchestrator. contextBuilder and
// eventService may be nil.
func NewPipelineOrchestrator(
	definition *pipeline.Definition,
	storage interfaces.StorageManager,
	executor interfaces.StageExecutor,
	contextBuilder interfaces.ContextBuilder,
	eventService interfaces.EventService,
	logger arbor.ILogger,
) *PipelineOrchestrator {
	return &PipelineOrchestrator{
		definition:     definition,
		jobs:           storage.JobStorage(),
		results:        storage.ResultStorage(),
		elements:       storage.ClaimElementStorage(),
		executor:       executor,
		contextBuilder: contextBuilder,
		eventService:   eventService,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// RunJob runs the job synchronously until it is completed or failed.
// Stage failures end in a failed job and a nil error.
func (o *PipelineOrchestrator) RunJob(ctx context.Context, jobID string) (*models.AnalysisJob, error) {
	job, err := o.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.IsRunnable() {
		return job, &models.JobNotRunnableError{JobID: job.ID, Status: job.Status}
	}

	logger := o.logger.WithCorrelationId(job.ID)

	stages, err := o.definition.Stages(job.Pipeline)
	if err != nil {
		return o.finishFailed(ctx, logger, job, &models.JobError{Kind: models.JobErrorInternal, Detail: err.Error()})
	}

	// Scheduler dispatch has already moved the job to analyzing
	if job.Status != models.JobStatusAnalyzing || job.StartedAt == nil {
		job.MarkActive(o.now())
	}
	if job.Context == nil || job.Context.Len() == 0 {
		job.Context = o.seedContext(ctx, job)
	}
	job.Context.Set(models.ContextKeyToday, o.now().Format("2006-01-02"))

	if err := o.jobs.SaveJob(ctx, job); err != nil {
		return job, fmt.Errorf("failed to save job %s: %w", job.ID, err)
	}

	claims := ResolveClaims(job.Context.Claims(), job.ClaimNos)

	logger.Info().
		Str("job_id", job.ID).
		Str("patent_id", job.PatentID).
		Str("pipeline", string(job.Pipeline)).
		Int("stages", len(stages)).
		Int("claims", len(claims)).
		Msg("Analysis job started")
	o.publish(ctx, interfaces.EventJobStarted, map[string]interface{}{
		"job_id":   job.ID,
		"pipeline": string(job.Pipeline),
		"stages":   len(stages),
		"claims":   len(claims),
	})

	var jobErr *models.JobError
	runErr := common.RecoverToError(logger, "run_job:"+job.ID, func() error {
		jobErr = o.runStages(ctx, logger, job, stages, claims)
		return nil
	})
	if runErr != nil {
		jobErr = &models.JobError{Kind: models.JobErrorInternal, Detail: runErr.Error()}
	}
	if jobErr != nil {
		return o.finishFailed(ctx, logger, job, jobErr)
	}

	job.MarkCompleted(o.now())
	if err := o.jobs.SaveJob(ctx, job); err != nil {
		return job, fmt.Errorf("failed to save completed job %s: %w", job.ID, err)
	}

	logger.Info().
		Str("job_id", job.ID).
		Dur("duration", job.CompletedAt.Sub(*job.StartedAt)).
		Msg("Analysis job completed")
	o.publish(ctx, interfaces.EventJobCompleted, map[string]interface{}{
		"job_id": job.ID,
	})

	return job, nil
}

// runStages returns the job error of the first failing stage, or nil
func (o *PipelineOrchestrator) runStages(ctx context.Context, logger arbor.ILogger, job *models.AnalysisJob, stages []string, claims []models.Claim) *models.JobError {
	for _, stage := range stages {
		job.SetCurrentStage(stage, o.now())
		if err := o.jobs.SaveJob(ctx, job); err != nil {
			return models.NewStageFailedError(stage, err)
		}

		switch o.definition.Kind(stage) {
		case pipeline.StagePerClaim:
			for _, claim := range claims {
				qualifiedKey := pipeline.QualifiedKey(stage, claim.ClaimNo)
				job.Context.SetCurrentClaim(claim)
				if stageErr := o.runStage(ctx, logger, job, stage, qualifiedKey); stageErr != nil {
					job.Context.ClearCurrentClaim()
					return models.NewStageFailedError(qualifiedKey, stageErr.Err)
				}
			}
			job.Context.ClearCurrentClaim()

		case pipeline.StageAggregate:
			decisions, openItems := CollectClaimResults(job.Context, claims)
			job.Context.Set(models.ContextKeyClaimDecisions, decisions)
			job.Context.Set(models.ContextKeyOpenItems, openItems)
			logger.Debug().
				Str("stage", stage).
				Int("claim_decisions", len(decisions)).
				Int("open_items", len(openItems)).
				Msg("Collected per-claim results")
			if stageErr := o.runStage(ctx, logger, job, stage, stage); stageErr != nil {
				return models.NewStageFailedError(stage, stageErr.Err)
			}

		default:
			if stageErr := o.runStage(ctx, logger, job, stage, stage); stageErr != nil {
				return models.NewStageFailedError(stage, stageErr.Err)
			}
		}
	}
	return nil
}

// runStage executes one (qualified) stage and checkpoints its result
func (o *PipelineOrchestrator) runStage(ctx context.Context, logger arbor.ILogger, job *models.AnalysisJob, stage, qualifiedKey string) *models.StageError {
	logger.Info().
		Str("stage", qualifiedKey).
		Str("kind", o.definition.Kind(stage).String()).
		Msg("Stage started")
	o.publish(ctx, interfaces.EventStageStarted, map[string]interface{}{
		"job_id": job.ID,
		"stage":  qualifiedKey,
	})

	outcome := o.executor.Execute(ctx, stage, job.Context)
	if !outcome.IsSuccess() {
		stageErr := outcome.Err
		if stageErr == nil {
			stageErr = &models.StageError{Stage: stage, Kind: models.StageErrorLLM, Err: errors.New("stage returned no output")}
		}
		o.stageFailed(ctx, logger, job, qualifiedKey, stageErr)
		return stageErr
	}
	out := outcome.Output

	if err := o.results.AppendResult(ctx, models.NewStageResult(job.ID, qualifiedKey, out)); err != nil {
		stageErr := &models.StageError{Stage: stage, Kind: models.StageErrorPersist, Err: err}
		o.stageFailed(ctx, logger, job, qualifiedKey, stageErr)
		return stageErr
	}

	job.Context.Set(qualifiedKey, out.Output)
	if stage == pipeline.StageClaimElementExtractor {
		o.persistClaimElements(ctx, logger, job.Context, out.Output)
	}

	job.UpdatedAt = o.now()
	if err := o.jobs.SaveJob(ctx, job); err != nil {
		stageErr := &models.StageError{Stage: stage, Kind: models.StageErrorPersist, Err: err}
		o.stageFailed(ctx, logger, job, qualifiedKey, stageErr)
		return stageErr
	}

	if out.Flagged() {
		logger.Warn().
			Str("stage", qualifiedKey).
			Str("errors", fmt.Sprint(out.Output["errors"])).
			Msg("Stage output flagged with errors")
	}
	logger.Info().
		Str("stage", qualifiedKey).
		Str("model", out.Model).
		Int("tokens_input", out.TokensInput).
		Int("tokens_output", out.TokensOutput).
		Int64("latency_ms", out.LatencyMs).
		Msg("Stage completed")
	o.publish(ctx, interfaces.EventStageCompleted, map[string]interface{}{
		"job_id":     job.ID,
		"stage":      qualifiedKey,
		"model":      out.Model,
		"latency_ms": out.LatencyMs,
		"flagged":    out.Flagged(),
	})

	return nil
}

func (o *PipelineOrchestrator) stageFailed(ctx context.Context, logger arbor.ILogger, job *models.AnalysisJob, qualifiedKey string, stageErr *models.StageError) {
	logger.Error().
		Err(stageErr.Err).
		Str("stage", qualifiedKey).
		Str("kind", string(stageErr.Kind)).
		Msg("Stage failed")
	o.publish(ctx, interfaces.EventStageFailed, map[string]interface{}{
		"job_id": job.ID,
		"stage":  qualifiedKey,
		"kind":   string(stageErr.Kind),
		"error":  stageErr.Err.Error(),
	})
}

// finishFailed persists a failed job. The error return is reserved for
// persistence problems.
func (o *PipelineOrchestrator) finishFailed(ctx context.Context, logger arbor.ILogger, job *models.AnalysisJob, jobErr *models.JobError) (*models.AnalysisJob, error) {
	if job.Context != nil {
		job.Context.ClearCurrentClaim()
	}
	job.MarkFailed(jobErr, o.now())
	if err := o.jobs.SaveJob(ctx, job); err != nil {
		return job, fmt.Errorf("failed to save failed job %s: %w", job.ID, err)
	}

	logger.Error().
		Str("job_id", job.ID).
		Str("error", jobErr.String()).
		Msg("Analysis job failed")
	o.publish(ctx, interfaces.EventJobFailed, map[string]interface{}{
		"job_id": job.ID,
		"error":  jobErr.String(),
	})

	return job, nil
}

func (o *PipelineOrchestrator) seedContext(ctx context.Context, job *models.AnalysisJob) *models.AnalysisContext {
	if o.contextBuilder == nil {
		return models.NewAnalysisContext()
	}
	return o.contextBuilder.Build(ctx, job)
}

// publish never affects job state; publishing errors are only logged
func (o *PipelineOrchestrator) publish(ctx context.Context, eventType interfaces.EventType, payload map[string]interface{}) {
	if o.eventService == nil {
		return
	}
	if err := o.eventService.Publish(ctx, interfaces.Event{Type: eventType, Payload: payload}); err != nil {
		o.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("Failed to publish event")
	}
}
