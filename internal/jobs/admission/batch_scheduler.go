// -----------------------------------------------------------------------
// Batch Scheduler - admission sweep: timeouts, slot-bounded dispatch, retries
// -----------------------------------------------------------------------

package admission

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/claimscope/internal/common"
	"github.com/ternarybob/claimscope/internal/interfaces"
	"github.com/ternarybob/claimscope/internal/models"
)

// BatchScheduler implements interfaces.BatchSweeper.
//
// A sweep runs in the caller's goroutine and dispatches jobs one at a time.
// Overlapping sweeps are not serialized, so two concurrent sweeps can each
// see the same free slots.
type BatchScheduler struct {
	jobs         interfaces.AnalysisJobStorage
	runner       interfaces.JobRunner
	eventService interfaces.EventService
	logger       arbor.ILogger
}

var _ interfaces.BatchSweeper = (*BatchScheduler)(nil)

// NewBatchScheduler creates a scheduler dispatching to runner. eventService may be nil.
func NewBatchScheduler(jobs interfaces.AnalysisJobStorage, runner interfaces.JobRunner, eventService interfaces.EventService, logger arbor.ILogger) *BatchScheduler {
	return &BatchScheduler{
		jobs:         jobs,
		runner:       runner,
		eventService: eventService,
		logger:       logger,
	}
}

// RunBatchSweep performs one admission sweep:
//  1. fail active jobs running longer than the timeout
//  2. compute free slots; stop when none are left
//  3. dispatch due pending jobs by priority, synchronously
//  4. requeue up to RetryCap failed jobs with retry budget left
//
// Per-job problems are recorded in the report and never stop the sweep.
// The error return is reserved for storage failures that prevent a step.
func (s *BatchScheduler) RunBatchSweep(ctx context.Context, opts models.SweepOptions) (*models.SweepReport, error) {
	opts = opts.Normalize()
	logger := s.logger.WithCorrelationId(common.NewCorrelationID("sweep"))
	report := &models.SweepReport{Errors: []models.SweepJobError{}}

	if err := s.failTimedOut(ctx, logger, opts, report); err != nil {
		return report, err
	}

	activeCount, err := s.jobs.CountJobsByStatus(ctx, models.ActiveStatuses()...)
	if err != nil {
		return report, fmt.Errorf("failed to count active jobs: %w", err)
	}
	slots := opts.MaxConcurrentJobs - activeCount

	logger.Info().
		Int("active", activeCount).
		Int("max_concurrent_jobs", opts.MaxConcurrentJobs).
		Int("slots", slots).
		Msg("Batch sweep admission")

	if slots <= 0 {
		report.Message = models.SweepNoSlotsMessage
		s.finish(ctx, logger, report)
		return report, nil
	}

	if err := s.dispatch(ctx, logger, opts, slots, report); err != nil {
		return report, err
	}

	if err := s.scheduleRetries(ctx, logger, opts, report); err != nil {
		return report, err
	}

	s.finish(ctx, logger, report)
	return report, nil
}

// failTimedOut force-fails active jobs whose elapsed time exceeds the timeout,
// whether or not a stage is in flight.
func (s *BatchScheduler) failTimedOut(ctx context.Context, logger arbor.ILogger, opts models.SweepOptions, report *models.SweepReport) error {
	active, err := s.jobs.ListJobs(ctx, models.ActiveStatuses(), 0)
	if err != nil {
		return fmt.Errorf("failed to list active jobs: %w", err)
	}

	for _, job := range active {
		report.CheckedRunning++

		since := job.ActiveSince()
		if since == nil {
			continue
		}
		ranFor := opts.Now.Sub(*since)
		if ranFor <= opts.Timeout() {
			continue
		}
		elapsed := int(ranFor.Seconds())

		job.MarkFailed(models.NewTimeoutError(elapsed, opts.TimeoutSeconds), opts.Now)
		if err := s.jobs.SaveJob(ctx, job); err != nil {
			logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to save timed out job")
			report.AddError(job.ID, fmt.Sprintf("timeout update failed: %v", err))
			continue
		}

		report.TimedOut++
		report.AddError(job.ID, string(models.JobErrorTimeout))

		logger.Warn().
			Str("job_id", job.ID).
			Int("elapsed_seconds", elapsed).
			Int("timeout_seconds", opts.TimeoutSeconds).
			Msg("Job timed out")
		s.publish(ctx, interfaces.EventJobTimedOut, map[string]interface{}{
			"job_id":          job.ID,
			"elapsed_seconds": elapsed,
		})
	}
	return nil
}

func (s *BatchScheduler) dispatch(ctx context.Context, logger arbor.ILogger, opts models.SweepOptions, slots int, report *models.SweepReport) error {
	pending, err := s.jobs.ListDispatchable(ctx, opts.Now, slots)
	if err != nil {
		return fmt.Errorf("failed to list pending jobs: %w", err)
	}

	for _, job := range pending {
		job.MarkActive(opts.Now)
		if err := s.jobs.SaveJob(ctx, job); err != nil {
			logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to claim job for dispatch")
			report.AddError(job.ID, err.Error())
			continue
		}

		logger.Info().
			Str("job_id", job.ID).
			Int("priority", job.Priority).
			Msg("Dispatching job")

		var finished *models.AnalysisJob
		runErr := common.RecoverToError(logger, "dispatch:"+job.ID, func() error {
			var err error
			finished, err = s.runner.RunJob(ctx, job.ID)
			return err
		})
		if runErr != nil {
			logger.Error().Err(runErr).Str("job_id", job.ID).Msg("Job dispatch failed")
			report.AddError(job.ID, runErr.Error())
			s.markDispatchFailed(ctx, logger, job.ID, runErr, opts)
			continue
		}

		report.Started++
		if finished != nil && finished.Status == models.JobStatusCompleted {
			report.Completed++
		}
	}
	return nil
}

// markDispatchFailed records an escaped run error on the job
func (s *BatchScheduler) markDispatchFailed(ctx context.Context, logger arbor.ILogger, jobID string, runErr error, opts models.SweepOptions) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to reload job after dispatch failure")
		return
	}
	if job.Status.IsTerminal() {
		return
	}
	job.MarkFailed(&models.JobError{Kind: models.JobErrorDispatchFailed, Detail: runErr.Error()}, opts.Now)
	if err := s.jobs.SaveJob(ctx, job); err != nil {
		logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to save dispatch failure")
	}
}

func (s *BatchScheduler) scheduleRetries(ctx context.Context, logger arbor.ILogger, opts models.SweepOptions, report *models.SweepReport) error {
	retryable, err := s.jobs.ListRetryable(ctx, opts.RetryCap)
	if err != nil {
		return fmt.Errorf("failed to list retryable jobs: %w", err)
	}

	for _, job := range retryable {
		job.MarkRetry(opts.Now)
		if err := s.jobs.SaveJob(ctx, job); err != nil {
			logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to requeue job")
			report.AddError(job.ID, fmt.Sprintf("retry setup failed: %v", err))
			continue
		}

		report.Retried++
		logger.Info().
			Str("job_id", job.ID).
			Int("retry_count", job.RetryCount).
			Int("max_retries", job.MaxRetries).
			Msg("Retry scheduled")
		s.publish(ctx, interfaces.EventJobRetryScheduled, map[string]interface{}{
			"job_id":      job.ID,
			"retry_count": job.RetryCount,
		})
	}
	return nil
}

func (s *BatchScheduler) finish(ctx context.Context, logger arbor.ILogger, report *models.SweepReport) {
	logger.Info().
		Int("checked_running", report.CheckedRunning).
		Int("timed_out", report.TimedOut).
		Int("started", report.Started).
		Int("completed", report.Completed).
		Int("retried", report.Retried).
		Int("errors", len(report.Errors)).
		Msg("Batch sweep completed")
	s.publish(ctx, interfaces.EventSweepCompleted, report)
}

func (s *BatchScheduler) publish(ctx context.Context, eventType interfaces.EventType, payload interface{}) {
	if s.eventService == nil {
		return
	}
	if err := s.eventService.Publish(ctx, interfaces.Event{Type: eventType, Payload: payload}); err != nil {
		s.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("Failed to publish event")
	}
}
