package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/claimscope/internal/models"
	"github.com/ternarybob/claimscope/internal/services/analysis"
)

// jobService is the subset of analysis.Service the tools call
type jobService interface {
	CreateJob(ctx context.Context, req *analysis.CreateJobRequest) (*models.AnalysisJob, error)
	GetJob(ctx context.Context, jobID string) (*models.AnalysisJob, error)
	GetJobResults(ctx context.Context, jobID string) ([]*models.StageResult, error)
	ListJobs(ctx context.Context, statuses []string, limit int) ([]*models.AnalysisJob, error)
	RunJob(ctx context.Context, jobID string) (*models.AnalysisJob, error)
	SweepOptions(now time.Time) models.SweepOptions
	RunBatchSweep(ctx context.Context, opts models.SweepOptions) (*models.SweepReport, error)
}

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(format string, args ...any) *mcp.CallToolResult {
	result := textResult(fmt.Sprintf(format, args...))
	result.IsError = true
	return result
}

// optionalInt distinguishes an absent argument from an explicit zero
func optionalInt(request mcp.CallToolRequest, key string) *int {
	if _, ok := request.GetArguments()[key]; !ok {
		return nil
	}
	v := request.GetInt(key, 0)
	return &v
}

// handleCreateJob implements the create_job tool
func handleCreateJob(svc jobService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		patentID, err := request.RequireString("patent_id")
		if err != nil || strings.TrimSpace(patentID) == "" {
			return errorResult("Error: patent_id parameter is required"), nil
		}
		variant, err := request.RequireString("pipeline")
		if err != nil || strings.TrimSpace(variant) == "" {
			return errorResult("Error: pipeline parameter is required"), nil
		}

		job, err := svc.CreateJob(ctx, &analysis.CreateJobRequest{
			PatentID:      patentID,
			Pipeline:      variant,
			TargetProduct: request.GetString("target_product", ""),
			CompanyID:     request.GetString("company_id", ""),
			ProductID:     request.GetString("product_id", ""),
			ClaimNos:      request.GetIntSlice("claim_nos", nil),
			Priority:      optionalInt(request, "priority"),
			MaxRetries:    optionalInt(request, "max_retries"),
		})
		if err != nil {
			logger.Warn().Err(err).Str("patent_id", patentID).Msg("create_job failed")
			return errorResult("Create job error: %v", err), nil
		}

		return textResult(formatJob(job, false)), nil
	}
}

// handleGetJob implements the get_job tool
func handleGetJob(svc jobService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jobID, err := request.RequireString("job_id")
		if err != nil || jobID == "" {
			return errorResult("Error: job_id parameter is required"), nil
		}

		job, err := svc.GetJob(ctx, jobID)
		if err != nil {
			logger.Debug().Err(err).Str("job_id", jobID).Msg("get_job failed")
			return errorResult("Job not found: %v", err), nil
		}

		return textResult(formatJob(job, request.GetBool("include_context", false))), nil
	}
}

// handleGetJobResults implements the get_job_results tool
func handleGetJobResults(svc jobService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jobID, err := request.RequireString("job_id")
		if err != nil || jobID == "" {
			return errorResult("Error: job_id parameter is required"), nil
		}

		results, err := svc.GetJobResults(ctx, jobID)
		if err != nil {
			logger.Debug().Err(err).Str("job_id", jobID).Msg("get_job_results failed")
			return errorResult("Results error: %v", err), nil
		}

		if prefix := request.GetString("stage", ""); prefix != "" {
			filtered := results[:0:0]
			for _, r := range results {
				if strings.HasPrefix(r.Stage, prefix) {
					filtered = append(filtered, r)
				}
			}
			results = filtered
		}

		return textResult(formatResults(jobID, results)), nil
	}
}

// handleRunJob implements the run_job tool
func handleRunJob(svc jobService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jobID, err := request.RequireString("job_id")
		if err != nil || jobID == "" {
			return errorResult("Error: job_id parameter is required"), nil
		}

		job, err := svc.RunJob(ctx, jobID)
		if err != nil {
			logger.Error().Err(err).Str("job_id", jobID).Msg("run_job failed")
			return errorResult("Run error: %v", err), nil
		}

		return textResult(formatJob(job, false)), nil
	}
}

// handleListJobs implements the list_jobs tool
func handleListJobs(svc jobService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := request.GetInt("limit", defaultListLimit)
		if limit <= 0 {
			limit = defaultListLimit
		}
		if limit > maxListLimit {
			limit = maxListLimit
		}

		jobs, err := svc.ListJobs(ctx, request.GetStringSlice("status", nil), limit)
		if err != nil {
			logger.Warn().Err(err).Msg("list_jobs failed")
			return errorResult("List error: %v", err), nil
		}

		return textResult(formatJobList(jobs)), nil
	}
}

// handleRunBatchSweep implements the run_batch_sweep tool
func handleRunBatchSweep(svc jobService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		opts := svc.SweepOptions(time.Now().UTC())
		if v := optionalInt(request, "max_concurrent_jobs"); v != nil {
			opts.MaxConcurrentJobs = *v
		}
		if v := optionalInt(request, "timeout_seconds"); v != nil {
			opts.TimeoutSeconds = *v
		}
		if v := optionalInt(request, "retry_cap"); v != nil {
			opts.RetryCap = *v
		}

		report, err := svc.RunBatchSweep(ctx, opts)
		if err != nil {
			logger.Error().Err(err).Msg("run_batch_sweep failed")
			return errorResult("Sweep error: %v", err), nil
		}

		return textResult(formatSweepReport(report)), nil
	}
}
