// -----------------------------------------------------------------------
// Analysis Service - job creation, lookup, runs and admission sweeps
// -----------------------------------------------------------------------

package analysis

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/claimscope/internal/common"
	"github.com/ternarybob/claimscope/internal/interfaces"
	"github.com/ternarybob/claimscope/internal/models"
	"github.com/ternarybob/claimscope/internal/pipeline"
)

// CreateJobRequest is the input of CreateJob
type CreateJobRequest struct {
	PatentID      string     `json:"patent_id" validate:"required"`
	Pipeline      string     `json:"pipeline" validate:"required"`
	TargetProduct string     `json:"target_product,omitempty"`
	CompanyID     string     `json:"company_id,omitempty"`
	ProductID     string     `json:"product_id,omitempty"`
	ClaimNos      []int      `json:"claim_nos,omitempty" validate:"omitempty,dive,gt=0"`
	Priority      *int       `json:"priority,omitempty" validate:"omitempty,min=0,max=10"`
	MaxRetries    *int       `json:"max_retries,omitempty" validate:"omitempty,min=0"`
	ScheduledFor  *time.Time `json:"scheduled_for,omitempty"`
}

// Service exposes the analysis job operations to the CLI, HTTP and MCP surfaces
type Service struct {
	jobs           interfaces.AnalysisJobStorage
	results        interfaces.StageResultStorage
	contextBuilder interfaces.ContextBuilder
	runner         interfaces.JobRunner
	sweeper        interfaces.BatchSweeper
	eventService   interfaces.EventService
	config         common.SchedulerConfig
	validate       *validator.Validate
	logger         arbor.ILogger
}

// NewService creates the analysis service. contextBuilder and eventService may be nil.
func NewService(
	storage interfaces.StorageManager,
	contextBuilder interfaces.ContextBuilder,
	runner interfaces.JobRunner,
	sweeper interfaces.BatchSweeper,
	eventService interfaces.EventService,
	config common.SchedulerConfig,
	logger arbor.ILogger,
) *Service {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &Service{
		jobs:           storage.JobStorage(),
		results:        storage.ResultStorage(),
		contextBuilder: contextBuilder,
		runner:         runner,
		sweeper:        sweeper,
		eventService:   eventService,
		config:         config,
		validate:       validate,
		logger:         logger,
	}
}

// CreateJob validates the request, seeds the job context and stores a
// pending job. Invalid requests persist nothing.
func (s *Service) CreateJob(ctx context.Context, req *CreateJobRequest) (*models.AnalysisJob, error) {
	if req == nil {
		return nil, models.NewValidationError("", "request body is required")
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, toValidationError(err)
	}

	variant, err := pipeline.ParseVariant(req.Pipeline)
	if err != nil {
		return nil, models.NewValidationError("pipeline", err.Error())
	}

	patentID := models.NormalizePatentID(req.PatentID)
	if patentID == "" {
		return nil, models.NewValidationError("patent_id", "must contain a patent number")
	}

	job := models.NewAnalysisJob(patentID, variant)
	job.TargetProduct = strings.TrimSpace(req.TargetProduct)
	job.CompanyID = req.CompanyID
	job.ProductID = req.ProductID
	job.ClaimNos = append([]int(nil), req.ClaimNos...)
	job.ScheduledFor = req.ScheduledFor

	if s.config.DefaultPriority >= models.MinJobPriority && s.config.DefaultPriority <= models.MaxJobPriority {
		job.Priority = s.config.DefaultPriority
	}
	if req.Priority != nil {
		job.Priority = *req.Priority
	}
	if s.config.DefaultMaxRetries >= 0 {
		job.MaxRetries = s.config.DefaultMaxRetries
	}
	if req.MaxRetries != nil {
		job.MaxRetries = *req.MaxRetries
	}

	if s.contextBuilder != nil {
		job.Context = s.contextBuilder.Build(ctx, job)
	}

	if err := s.jobs.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("patent_id", job.PatentID).
		Str("pipeline", string(job.Pipeline)).
		Int("priority", job.Priority).
		Int("claims", len(job.Context.Claims())).
		Msg("Analysis job created")

	if s.eventService != nil {
		if err := s.eventService.Publish(ctx, interfaces.Event{
			Type: interfaces.EventJobCreated,
			Payload: map[string]interface{}{
				"job_id":    job.ID,
				"patent_id": job.PatentID,
				"pipeline":  string(job.Pipeline),
			},
		}); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to publish job_created event")
		}
	}

	return job, nil
}

// GetJob returns models.ErrJobNotFound for unknown ids
func (s *Service) GetJob(ctx context.Context, jobID string) (*models.AnalysisJob, error) {
	return s.jobs.GetJob(ctx, jobID)
}

// GetJobResults returns a job's stage results in creation order
func (s *Service) GetJobResults(ctx context.Context, jobID string) ([]*models.StageResult, error) {
	if _, err := s.jobs.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	return s.results.ListResults(ctx, jobID)
}

// ListJobs lists jobs newest first. Status strings are canonicalized, so the
// legacy "running" filter lists analyzing jobs.
func (s *Service) ListJobs(ctx context.Context, statuses []string, limit int) ([]*models.AnalysisJob, error) {
	parsed := make([]models.JobStatus, 0, len(statuses))
	for _, raw := range statuses {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		status, err := models.ParseJobStatus(raw)
		if err != nil {
			return nil, models.NewValidationError("status", err.Error())
		}
		parsed = append(parsed, status)
	}
	return s.jobs.ListJobs(ctx, parsed, limit)
}

// RunJob runs a job synchronously until it is terminal
func (s *Service) RunJob(ctx context.Context, jobID string) (*models.AnalysisJob, error) {
	return s.runner.RunJob(ctx, jobID)
}

// SweepOptions returns the configured sweep limits at now
func (s *Service) SweepOptions(now time.Time) models.SweepOptions {
	return models.SweepOptions{
		Now:               now,
		MaxConcurrentJobs: s.config.MaxConcurrentJobs,
		TimeoutSeconds:    s.config.TimeoutSeconds,
		RetryCap:          s.config.RetryCap,
	}
}

// RunBatchSweep performs one admission sweep with explicit limits
func (s *Service) RunBatchSweep(ctx context.Context, opts models.SweepOptions) (*models.SweepReport, error) {
	return s.sweeper.RunBatchSweep(ctx, opts)
}

// toValidationError reports the first failing field by its JSON name
func toValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return models.NewValidationError("", err.Error())
	}

	fe := fieldErrs[0]
	field := fe.Field()
	if idx := strings.Index(field, "["); idx > 0 {
		field = field[:idx]
	}

	var reason string
	switch fe.Tag() {
	case "required":
		reason = "is required"
	case "gt":
		reason = fmt.Sprintf("must be greater than %s", fe.Param())
	case "min":
		reason = fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		reason = fmt.Sprintf("must be at most %s", fe.Param())
	default:
		reason = fmt.Sprintf("failed %s validation", fe.Tag())
	}
	return models.NewValidationError(field, reason)
}
