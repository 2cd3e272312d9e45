package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/claimscope/internal/models"
	"github.com/ternarybob/claimscope/internal/services/analysis"
)

// MockJobService is a mock implementation of JobService for testing
type MockJobService struct {
	mock.Mock
}

func (m *MockJobService) CreateJob(ctx context.Context, req *analysis.CreateJobRequest) (*models.AnalysisJob, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AnalysisJob), args.Error(1)
}

func (m *MockJobService) GetJob(ctx context.Context, jobID string) (*models.AnalysisJob, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AnalysisJob), args.Error(1)
}

func (m *MockJobService) GetJobResults(ctx context.Context, jobID string) ([]*models.StageResult, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.StageResult), args.Error(1)
}

func (m *MockJobService) ListJobs(ctx context.Context, statuses []string, limit int) ([]*models.AnalysisJob, error) {
	args := m.Called(ctx, statuses, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AnalysisJob), args.Error(1)
}

func (m *MockJobService) RunJob(ctx context.Context, jobID string) (*models.AnalysisJob, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AnalysisJob), args.Error(1)
}

// MockSweeper is a mock implementation of Sweeper for testing
type MockSweeper struct {
	mock.Mock
}

func (m *MockSweeper) SweepOptions(now time.Time) models.SweepOptions {
	return models.SweepOptions{Now: now, MaxConcurrentJobs: 3}
}

func (m *MockSweeper) RunBatchSweep(ctx context.Context, opts models.SweepOptions) (*models.SweepReport, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SweepReport), args.Error(1)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestCreateJobHandler(t *testing.T) {
	svc := new(MockJobService)
	h := NewJobHandler(svc, arbor.NewLogger())

	svc.On("CreateJob", mock.Anything, mock.MatchedBy(func(req *analysis.CreateJobRequest) bool {
		return req.PatentID == "JP1" && req.Pipeline == "C" && len(req.ClaimNos) == 1
	})).Return(&models.AnalysisJob{ID: "job-1", Status: models.JobStatusPending}, nil).Once()
	svc.On("CreateJob", mock.Anything, mock.Anything).Return(nil, models.NewValidationError("pipeline", "unknown pipeline variant")).Once()

	rec := httptest.NewRecorder()
	h.CreateJobHandler(rec, httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(`{"patent_id":"JP1","pipeline":"C","claim_nos":[2]}`)))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "job-1", decodeBody(t, rec)["id"])

	rec = httptest.NewRecorder()
	h.CreateJobHandler(rec, httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(`{"patent_id":"JP1","pipeline":"X"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "pipeline")

	rec = httptest.NewRecorder()
	h.CreateJobHandler(rec, httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(`{not json`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.CreateJobHandler(rec, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	svc.AssertExpectations(t)
}

func TestJobHandler_ErrorMapping(t *testing.T) {
	svc := new(MockJobService)
	h := NewJobHandler(svc, arbor.NewLogger())

	svc.On("GetJob", mock.Anything, "missing").Return(nil, models.ErrJobNotFound)
	svc.On("RunJob", mock.Anything, "busy").Return(nil, &models.JobNotRunnableError{JobID: "busy", Status: models.JobStatusCompleted})
	svc.On("RunJob", mock.Anything, "done").Return(&models.AnalysisJob{ID: "done", Status: models.JobStatusCompleted}, nil)
	svc.On("GetJobResults", mock.Anything, "job-1").Return([]*models.StageResult{{JobID: "job-1", Stage: "08_search_seed_generator"}}, nil)

	rec := httptest.NewRecorder()
	h.GetJobHandler(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.RunJobHandler(rec, httptest.NewRequest(http.MethodPost, "/api/jobs/busy/run", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	h.RunJobHandler(rec, httptest.NewRequest(http.MethodPost, "/api/jobs/done/run", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "completed", decodeBody(t, rec)["status"])

	rec = httptest.NewRecorder()
	h.GetJobResultsHandler(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/job-1/results", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "job-1", body["job_id"])
	assert.Equal(t, float64(1), body["count"])

	svc.AssertExpectations(t)
}

func TestListJobsHandler(t *testing.T) {
	svc := new(MockJobService)
	h := NewJobHandler(svc, arbor.NewLogger())

	svc.On("ListJobs", mock.Anything, []string{"running", "pending"}, 5).Return([]*models.AnalysisJob{{ID: "a"}}, nil)
	svc.On("ListJobs", mock.Anything, []string{"bogus"}, 0).Return(nil, models.NewValidationError("status", "unknown job status"))

	rec := httptest.NewRecorder()
	h.ListJobsHandler(rec, httptest.NewRequest(http.MethodGet, "/api/jobs?status=running,pending&limit=5", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeBody(t, rec)["count"])

	rec = httptest.NewRecorder()
	h.ListJobsHandler(rec, httptest.NewRequest(http.MethodGet, "/api/jobs?status=bogus", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ListJobsHandler(rec, httptest.NewRequest(http.MethodGet, "/api/jobs?limit=-1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBatchAnalyzeHandler(t *testing.T) {
	t.Setenv("CLAIMSCOPE_CRON_SECRET", "")
	t.Setenv("CRON_SECRET", "")

	sweeper := new(MockSweeper)
	sweeper.On("RunBatchSweep", mock.Anything, mock.Anything).Return(&models.SweepReport{
		CheckedRunning: 3,
		Errors:         []models.SweepJobError{},
		Message:        models.SweepNoSlotsMessage,
	}, nil)

	t.Run("no secret configured", func(t *testing.T) {
		h := NewCronHandler(sweeper, nil, "", arbor.NewLogger())
		rec := httptest.NewRecorder()
		h.BatchAnalyzeHandler(rec, httptest.NewRequest(http.MethodPost, "/api/cron/batch-analyze", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	h := NewCronHandler(sweeper, nil, "s3cret", arbor.NewLogger())

	t.Run("wrong token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/cron/batch-analyze", nil)
		req.Header.Set("Authorization", "Bearer nope")
		rec := httptest.NewRecorder()
		h.BatchAnalyzeHandler(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.BatchAnalyzeHandler(rec, httptest.NewRequest(http.MethodGet, "/api/cron/check-and-do", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("authorized", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/cron/check-and-do", nil)
		req.Header.Set("Authorization", "Bearer s3cret")
		rec := httptest.NewRecorder()
		h.BatchAnalyzeHandler(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		assert.Equal(t, float64(3), body["checked_running"])
		assert.Equal(t, models.SweepNoSlotsMessage, body["message"])
	})

	t.Run("env secret wins", func(t *testing.T) {
		t.Setenv("CLAIMSCOPE_CRON_SECRET", "from-env")
		req := httptest.NewRequest(http.MethodPost, "/api/cron/batch-analyze", nil)
		req.Header.Set("Authorization", "Bearer s3cret")
		rec := httptest.NewRecorder()
		h.BatchAnalyzeHandler(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.BatchAnalyzeHandler(rec, httptest.NewRequest(http.MethodDelete, "/api/cron/batch-analyze", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}
