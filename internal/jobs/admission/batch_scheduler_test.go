package admission

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/claimscope/internal/common"
	"github.com/ternarybob/claimscope/internal/interfaces"
	"github.com/ternarybob/claimscope/internal/models"
	"github.com/ternarybob/claimscope/internal/pipeline"
	"github.com/ternarybob/claimscope/internal/storage/badger"
)

// fakeRunner completes every job it is handed unless told otherwise
type fakeRunner struct {
	jobs    interfaces.AnalysisJobStorage
	panicOn map[string]bool
	failOn  map[string]bool
	ran     []string
}

func (r *fakeRunner) RunJob(ctx context.Context, jobID string) (*models.AnalysisJob, error) {
	r.ran = append(r.ran, jobID)
	if r.panicOn[jobID] {
		panic("orchestrator crashed")
	}

	job, err := r.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if r.failOn[jobID] {
		job.MarkFailed(models.NewStageFailedError(pipeline.StageFetchPlanner, assert.AnError), now)
	} else {
		job.MarkCompleted(now)
	}
	return job, r.jobs.SaveJob(ctx, job)
}

type fixture struct {
	jobs      interfaces.AnalysisJobStorage
	runner    *fakeRunner
	scheduler *BatchScheduler
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	storage, err := badger.NewManager(arbor.NewLogger(), &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close() })

	runner := &fakeRunner{jobs: storage.JobStorage(), panicOn: map[string]bool{}, failOn: map[string]bool{}}
	return &fixture{
		jobs:      storage.JobStorage(),
		runner:    runner,
		scheduler: NewBatchScheduler(storage.JobStorage(), runner, nil, arbor.NewLogger()),
		now:       time.Now().UTC(),
	}
}

// addJob stores a job created age ago, letting mutate adjust it first
func (f *fixture) addJob(t *testing.T, age time.Duration, mutate func(j *models.AnalysisJob)) *models.AnalysisJob {
	t.Helper()
	job := models.NewAnalysisJob("JP2020123456A", pipeline.VariantA)
	job.CreatedAt = f.now.Add(-age)
	queued := job.CreatedAt
	job.QueuedAt = &queued
	if mutate != nil {
		mutate(job)
	}
	require.NoError(t, f.jobs.SaveJob(context.Background(), job))
	return job
}

func (f *fixture) get(t *testing.T, id string) *models.AnalysisJob {
	t.Helper()
	job, err := f.jobs.GetJob(context.Background(), id)
	require.NoError(t, err)
	return job
}

func active(startedAgo time.Duration, now time.Time) func(*models.AnalysisJob) {
	return func(j *models.AnalysisJob) {
		j.MarkActive(now.Add(-startedAgo))
		j.SetCurrentStage(pipeline.StageStatusNormalizer, now)
	}
}

func TestRunBatchSweep_TimesOutStuckJobs(t *testing.T) {
	f := newFixture(t)
	stuck := f.addJob(t, time.Hour, active(2400*time.Second, f.now))
	fresh := f.addJob(t, time.Hour, active(60*time.Second, f.now))
	queuedOnly := f.addJob(t, 2000*time.Second, func(j *models.AnalysisJob) { j.Status = models.JobStatusResearching })

	report, err := f.scheduler.RunBatchSweep(context.Background(), models.SweepOptions{Now: f.now, MaxConcurrentJobs: 3, TimeoutSeconds: 1800})
	require.NoError(t, err)

	assert.Equal(t, 3, report.CheckedRunning)
	assert.Equal(t, 2, report.TimedOut)
	assert.Contains(t, report.Errors, models.SweepJobError{JobID: stuck.ID, Error: "timeout"})
	assert.Contains(t, report.Errors, models.SweepJobError{JobID: queuedOnly.ID, Error: "timeout"})

	got := f.get(t, stuck.ID)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Contains(t, got.ErrorString(), "timeout")
	assert.Nil(t, got.CurrentStage)
	require.NotNil(t, got.CompletedAt)
	assert.WithinDuration(t, f.now, *got.CompletedAt, time.Second)

	assert.Equal(t, models.JobStatusAnalyzing, f.get(t, fresh.ID).Status)
}

func TestRunBatchSweep_DispatchesWithinSlots(t *testing.T) {
	f := newFixture(t)
	f.addJob(t, time.Hour, active(time.Minute, f.now))

	low := f.addJob(t, 4*time.Hour, func(j *models.AnalysisJob) { j.Priority = 1 })
	highNewer := f.addJob(t, time.Hour, func(j *models.AnalysisJob) { j.Priority = 9 })
	highOlder := f.addJob(t, 2*time.Hour, func(j *models.AnalysisJob) { j.Priority = 9 })
	mid := f.addJob(t, 3*time.Hour, func(j *models.AnalysisJob) { j.Priority = 5 })
	future := f.now.Add(time.Hour)
	f.addJob(t, 5*time.Hour, func(j *models.AnalysisJob) { j.Priority = 10; j.ScheduledFor = &future })

	report, err := f.scheduler.RunBatchSweep(context.Background(), models.SweepOptions{Now: f.now, MaxConcurrentJobs: 3, TimeoutSeconds: 1800})
	require.NoError(t, err)

	assert.Equal(t, []string{highOlder.ID, highNewer.ID}, f.runner.ran, "2 free slots, priority desc then oldest")
	assert.Equal(t, 2, report.Started)
	assert.Equal(t, 2, report.Completed)
	assert.Empty(t, report.Errors)

	assert.Equal(t, models.JobStatusPending, f.get(t, mid.ID).Status)
	assert.Equal(t, models.JobStatusPending, f.get(t, low.ID).Status)
}

func TestRunBatchSweep_NoSlots(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		f.addJob(t, time.Hour, active(time.Minute, f.now))
	}
	f.addJob(t, time.Hour, nil)
	failed := f.addJob(t, time.Hour, func(j *models.AnalysisJob) {
		j.MarkFailed(&models.JobError{Kind: models.JobErrorInternal}, f.now)
	})

	report, err := f.scheduler.RunBatchSweep(context.Background(), models.SweepOptions{Now: f.now, MaxConcurrentJobs: 3, TimeoutSeconds: 1800, RetryCap: 2})
	require.NoError(t, err)

	assert.Equal(t, models.SweepNoSlotsMessage, report.Message)
	assert.Equal(t, 3, report.CheckedRunning)
	assert.Zero(t, report.Started)
	assert.Zero(t, report.Retried)
	assert.Empty(t, f.runner.ran)
	assert.Equal(t, models.JobStatusFailed, f.get(t, failed.ID).Status)
}

func TestRunBatchSweep_RetrySelection(t *testing.T) {
	f := newFixture(t)
	fail := func(retries int) func(*models.AnalysisJob) {
		return func(j *models.AnalysisJob) {
			j.RetryCount = retries
			j.MarkFailed(&models.JobError{Kind: models.JobErrorStageFailed, Detail: "Stage x failed"}, f.now)
		}
	}
	oldest := f.addJob(t, 4*time.Hour, fail(0))
	exhausted := f.addJob(t, 3*time.Hour, fail(3))
	second := f.addJob(t, 2*time.Hour, fail(2))
	third := f.addJob(t, time.Hour, fail(1))

	report, err := f.scheduler.RunBatchSweep(context.Background(), models.SweepOptions{Now: f.now, MaxConcurrentJobs: 3, TimeoutSeconds: 1800, RetryCap: 2})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Retried)
	assert.Empty(t, f.runner.ran, "requeued jobs are not dispatched in the same sweep")

	got := f.get(t, oldest.ID)
	assert.Equal(t, models.JobStatusPending, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	assert.Nil(t, got.Error)

	got = f.get(t, second.ID)
	assert.Equal(t, models.JobStatusPending, got.Status)
	assert.Equal(t, 3, got.RetryCount)

	assert.Equal(t, models.JobStatusFailed, f.get(t, exhausted.ID).Status)
	assert.Equal(t, models.JobStatusFailed, f.get(t, third.ID).Status, "over the retry cap")
}

func TestRunBatchSweep_DispatchPanicIsIsolated(t *testing.T) {
	f := newFixture(t)
	crashing := f.addJob(t, 2*time.Hour, nil)
	healthy := f.addJob(t, time.Hour, nil)
	f.runner.panicOn[crashing.ID] = true

	report, err := f.scheduler.RunBatchSweep(context.Background(), models.SweepOptions{Now: f.now, MaxConcurrentJobs: 3, TimeoutSeconds: 1800, RetryCap: 0})
	require.NoError(t, err)

	assert.Equal(t, []string{crashing.ID, healthy.ID}, f.runner.ran)
	assert.Equal(t, 1, report.Started)
	assert.Equal(t, 1, report.Completed)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, crashing.ID, report.Errors[0].JobID)
	assert.Contains(t, report.Errors[0].Error, "orchestrator crashed")

	got := f.get(t, crashing.ID)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Equal(t, models.JobErrorDispatchFailed, got.Error.Kind)
	assert.Nil(t, got.CurrentStage)

	assert.Equal(t, models.JobStatusCompleted, f.get(t, healthy.ID).Status)
}

func TestRunBatchSweep_StageFailureIsNotASweepError(t *testing.T) {
	f := newFixture(t)
	job := f.addJob(t, time.Hour, nil)
	f.runner.failOn[job.ID] = true

	report, err := f.scheduler.RunBatchSweep(context.Background(), models.SweepOptions{Now: f.now, MaxConcurrentJobs: 3, TimeoutSeconds: 1800, RetryCap: 0})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Started)
	assert.Zero(t, report.Completed)
	assert.Empty(t, report.Errors)
}

func TestRunBatchSweep_TimeoutBoundary(t *testing.T) {
	f := newFixture(t)
	over := f.addJob(t, time.Hour, active(1800*time.Second+900*time.Millisecond, f.now))
	exact := f.addJob(t, time.Hour, active(1800*time.Second, f.now))

	report, err := f.scheduler.RunBatchSweep(context.Background(), models.SweepOptions{Now: f.now, MaxConcurrentJobs: 3, TimeoutSeconds: 1800})
	require.NoError(t, err)

	assert.Equal(t, 1, report.TimedOut)
	got := f.get(t, over.ID)
	assert.Equal(t, models.JobStatusFailed, got.Status, "a fraction of a second past the limit times out")
	assert.Equal(t, models.JobErrorTimeout, got.Error.Kind)
	assert.Equal(t, models.JobStatusAnalyzing, f.get(t, exact.ID).Status, "exactly at the limit is still within it")
}

func TestRunBatchSweep_ZeroConcurrencyAdmitsNothing(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		f.addJob(t, time.Duration(i+1)*time.Hour, nil)
	}
	failed := f.addJob(t, time.Hour, func(j *models.AnalysisJob) {
		j.MarkFailed(&models.JobError{Kind: models.JobErrorStageFailed}, f.now)
	})

	report, err := f.scheduler.RunBatchSweep(context.Background(), models.SweepOptions{Now: f.now, MaxConcurrentJobs: 0, TimeoutSeconds: 1800, RetryCap: 2})
	require.NoError(t, err)

	assert.Equal(t, models.SweepNoSlotsMessage, report.Message)
	assert.Zero(t, report.Started)
	assert.Zero(t, report.Retried)
	assert.Empty(t, f.runner.ran)
	assert.Equal(t, models.JobStatusFailed, f.get(t, failed.ID).Status)
}

func TestRunBatchSweep_NegativeLimitsClampToZero(t *testing.T) {
	f := newFixture(t)
	f.addJob(t, time.Hour, nil)

	report, err := f.scheduler.RunBatchSweep(context.Background(), models.SweepOptions{Now: f.now, MaxConcurrentJobs: -1, TimeoutSeconds: 1800, RetryCap: -1})
	require.NoError(t, err)

	assert.Equal(t, models.SweepNoSlotsMessage, report.Message)
	assert.Empty(t, f.runner.ran)
}
