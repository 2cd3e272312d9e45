package badger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/claimscope/internal/interfaces"
	"github.com/ternarybob/claimscope/internal/models"
)

// JobStorage implements AnalysisJobStorage for Badger
type JobStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewJobStorage creates a new JobStorage instance
func NewJobStorage(db *BadgerDB, logger arbor.ILogger) interfaces.AnalysisJobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

func (s *JobStorage) SaveJob(ctx context.Context, job *models.AnalysisJob) error {
	if job == nil {
		return fmt.Errorf("job is required")
	}
	if job.ID == "" {
		return fmt.Errorf("job ID is required")
	}
	if job.Context == nil {
		job.Context = models.NewAnalysisContext()
	}

	if err := s.db.Store().Upsert(job.ID, job); err != nil {
		return fmt.Errorf("failed to save job %s: %w", job.ID, err)
	}
	return nil
}

func (s *JobStorage) GetJob(ctx context.Context, jobID string) (*models.AnalysisJob, error) {
	var job models.AnalysisJob
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrJobNotFound, jobID)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	if job.Context == nil {
		job.Context = models.NewAnalysisContext()
	}
	return &job, nil
}

func (s *JobStorage) ListJobs(ctx context.Context, statuses []models.JobStatus, limit int) ([]*models.AnalysisJob, error) {
	jobs, err := s.findByStatus(statuses...)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return truncate(jobs, limit), nil
}

func (s *JobStorage) CountJobsByStatus(ctx context.Context, statuses ...models.JobStatus) (int, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	count, err := s.db.Store().Count(&models.AnalysisJob{}, badgerhold.Where("Status").In(statusArgs(statuses)...))
	if err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return int(count), nil
}

// ListDispatchable returns pending jobs that are due, highest priority first and
// oldest first within a priority.
func (s *JobStorage) ListDispatchable(ctx context.Context, now time.Time, limit int) ([]*models.AnalysisJob, error) {
	if limit <= 0 {
		return []*models.AnalysisJob{}, nil
	}

	pending, err := s.findByStatus(models.JobStatusPending)
	if err != nil {
		return nil, err
	}

	due := make([]*models.AnalysisJob, 0, len(pending))
	for _, job := range pending {
		if job.IsDue(now) {
			due = append(due, job)
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		if due[i].Priority != due[j].Priority {
			return due[i].Priority > due[j].Priority
		}
		return due[i].CreatedAt.Before(due[j].CreatedAt)
	})
	return truncate(due, limit), nil
}

// ListRetryable returns failed jobs whose retry_count is below max_retries,
// oldest first.
func (s *JobStorage) ListRetryable(ctx context.Context, limit int) ([]*models.AnalysisJob, error) {
	if limit <= 0 {
		return []*models.AnalysisJob{}, nil
	}

	failed, err := s.findByStatus(models.JobStatusFailed)
	if err != nil {
		return nil, err
	}

	retryable := make([]*models.AnalysisJob, 0, len(failed))
	for _, job := range failed {
		if job.CanRetry() {
			retryable = append(retryable, job)
		}
	}

	sort.SliceStable(retryable, func(i, j int) bool {
		return retryable[i].CreatedAt.Before(retryable[j].CreatedAt)
	})
	return truncate(retryable, limit), nil
}

func (s *JobStorage) findByStatus(statuses ...models.JobStatus) ([]*models.AnalysisJob, error) {
	var query *badgerhold.Query
	if len(statuses) > 0 {
		query = badgerhold.Where("Status").In(statusArgs(statuses)...)
	}

	var jobs []models.AnalysisJob
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	result := make([]*models.AnalysisJob, len(jobs))
	for i := range jobs {
		if jobs[i].Context == nil {
			jobs[i].Context = models.NewAnalysisContext()
		}
		result[i] = &jobs[i]
	}
	return result, nil
}

func statusArgs(statuses []models.JobStatus) []interface{} {
	args := make([]interface{}, len(statuses))
	for i, st := range statuses {
		args[i] = st
	}
	return args
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
