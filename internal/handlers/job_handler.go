package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/claimscope/internal/models"
	"github.com/ternarybob/claimscope/internal/services/analysis"
)

// JobService is the subset of the analysis service the job endpoints use
type JobService interface {
	CreateJob(ctx context.Context, req *analysis.CreateJobRequest) (*models.AnalysisJob, error)
	GetJob(ctx context.Context, jobID string) (*models.AnalysisJob, error)
	GetJobResults(ctx context.Context, jobID string) ([]*models.StageResult, error)
	ListJobs(ctx context.Context, statuses []string, limit int) ([]*models.AnalysisJob, error)
	RunJob(ctx context.Context, jobID string) (*models.AnalysisJob, error)
}

// JobHandler serves /api/jobs
type JobHandler struct {
	service JobService
	logger  arbor.ILogger
}

func NewJobHandler(service JobService, logger arbor.ILogger) *JobHandler {
	return &JobHandler{service: service, logger: logger}
}

// CreateJobHandler creates a pending job. POST /api/jobs
func (h *JobHandler) CreateJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req analysis.CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	job, err := h.service.CreateJob(r.Context(), &req)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, job)
}

// ListJobsHandler lists jobs newest first. GET /api/jobs?status=a,b&limit=n
func (h *JobHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	var statuses []string
	for _, v := range r.URL.Query()["status"] {
		statuses = append(statuses, strings.Split(v, ",")...)
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			WriteError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	jobs, err := h.service.ListJobs(r.Context(), statuses, limit)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// GetJobHandler returns one job. GET /api/jobs/{id}
func (h *JobHandler) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	job, err := h.service.GetJob(r.Context(), jobIDFromPath(r.URL.Path, ""))
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// GetJobResultsHandler returns a job's stage results. GET /api/jobs/{id}/results
func (h *JobHandler) GetJobResultsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	jobID := jobIDFromPath(r.URL.Path, "/results")
	results, err := h.service.GetJobResults(r.Context(), jobID)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"job_id":  jobID,
		"results": results,
		"count":   len(results),
	})
}

// RunJobHandler runs a job to a terminal state before responding.
// POST /api/jobs/{id}/run
func (h *JobHandler) RunJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	clearWriteDeadline(w)
	job, err := h.service.RunJob(r.Context(), jobIDFromPath(r.URL.Path, "/run"))
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// jobIDFromPath extracts {id} from /api/jobs/{id}<suffix>
func jobIDFromPath(path, suffix string) string {
	id := strings.TrimPrefix(path, "/api/jobs/")
	id = strings.TrimSuffix(id, suffix)
	return strings.Trim(id, "/")
}
