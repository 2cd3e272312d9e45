package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/claimscope/internal/models"
)

// formatJob formats a job as markdown
func formatJob(job *models.AnalysisJob, includeContext bool) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Job %s\n\n", job.ID))
	sb.WriteString(fmt.Sprintf("**Patent:** %s\n", job.PatentID))
	sb.WriteString(fmt.Sprintf("**Pipeline:** %s\n", job.Pipeline))
	sb.WriteString(fmt.Sprintf("**Status:** %s\n", job.Status))
	if job.CurrentStage != nil {
		sb.WriteString(fmt.Sprintf("**Current Stage:** %s\n", *job.CurrentStage))
	}
	sb.WriteString(fmt.Sprintf("**Priority:** %d\n", job.Priority))
	sb.WriteString(fmt.Sprintf("**Retries:** %d/%d\n", job.RetryCount, job.MaxRetries))
	if job.TargetProduct != "" {
		sb.WriteString(fmt.Sprintf("**Target Product:** %s\n", job.TargetProduct))
	}
	if len(job.ClaimNos) > 0 {
		sb.WriteString(fmt.Sprintf("**Claims:** %v\n", job.ClaimNos))
	}
	if job.ScheduledFor != nil {
		sb.WriteString(fmt.Sprintf("**Scheduled For:** %s\n", job.ScheduledFor.Format(time.RFC3339)))
	}
	sb.WriteString(fmt.Sprintf("**Created:** %s\n", job.CreatedAt.Format(time.RFC3339)))
	if job.StartedAt != nil {
		sb.WriteString(fmt.Sprintf("**Started:** %s\n", job.StartedAt.Format(time.RFC3339)))
	}
	if job.CompletedAt != nil {
		sb.WriteString(fmt.Sprintf("**Completed:** %s\n", job.CompletedAt.Format(time.RFC3339)))
	}
	if job.Error != nil {
		sb.WriteString(fmt.Sprintf("\n**Error:** %s\n", job.ErrorString()))
	}

	if job.Context != nil {
		sb.WriteString(fmt.Sprintf("\n**Context Keys (%d):** %s\n", job.Context.Len(), strings.Join(job.Context.Keys(), ", ")))
		if includeContext {
			contextJSON, err := json.MarshalIndent(job.Context, "", "  ")
			if err == nil {
				sb.WriteString("\n```json\n")
				sb.Write(contextJSON)
				sb.WriteString("\n```\n")
			}
		}
	}

	return sb.String()
}

// formatJobList formats jobs as a markdown table
func formatJobList(jobs []*models.AnalysisJob) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Analysis Jobs (%d)\n\n", len(jobs)))

	if len(jobs) == 0 {
		sb.WriteString("No jobs found.\n")
		return sb.String()
	}

	sb.WriteString("| ID | Patent | Pipeline | Status | Stage | Priority | Created |\n")
	sb.WriteString("|----|--------|----------|--------|-------|----------|---------|\n")
	for _, job := range jobs {
		stage := "-"
		if job.CurrentStage != nil {
			stage = *job.CurrentStage
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %d | %s |\n",
			job.ID, job.PatentID, job.Pipeline, job.Status, stage, job.Priority, job.CreatedAt.Format(time.RFC3339)))
	}

	return sb.String()
}

// formatResults formats stage results as markdown with JSON outputs
func formatResults(jobID string, results []*models.StageResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Stage Results for %s (%d results)\n\n", jobID, len(results)))

	if len(results) == 0 {
		sb.WriteString("No results recorded.\n")
		return sb.String()
	}

	for _, r := range results {
		sb.WriteString(fmt.Sprintf("### %d. %s\n", r.Sequence, r.Stage))
		sb.WriteString(fmt.Sprintf("**Model:** %s | **Tokens:** %d in / %d out | **Latency:** %dms\n",
			r.Model, r.TokensInput, r.TokensOutput, r.LatencyMs))

		outputJSON, err := json.MarshalIndent(r.Output, "", "  ")
		if err != nil {
			sb.WriteString(fmt.Sprintf("Output not serializable: %v\n", err))
		} else {
			sb.WriteString("```json\n")
			sb.Write(outputJSON)
			sb.WriteString("\n```\n")
		}
		sb.WriteString("\n---\n\n")
	}

	return sb.String()
}

// formatSweepReport formats an admission sweep report as markdown
func formatSweepReport(report *models.SweepReport) string {
	var sb strings.Builder
	sb.WriteString("## Batch Sweep\n\n")
	if report.Message != "" {
		sb.WriteString(fmt.Sprintf("**%s**\n\n", report.Message))
	}
	sb.WriteString(fmt.Sprintf("- Checked running: %d\n", report.CheckedRunning))
	sb.WriteString(fmt.Sprintf("- Timed out: %d\n", report.TimedOut))
	sb.WriteString(fmt.Sprintf("- Started: %d\n", report.Started))
	sb.WriteString(fmt.Sprintf("- Completed: %d\n", report.Completed))
	sb.WriteString(fmt.Sprintf("- Retried: %d\n", report.Retried))

	if len(report.Errors) > 0 {
		sb.WriteString(fmt.Sprintf("\n### Errors (%d)\n", len(report.Errors)))
		for _, e := range report.Errors {
			sb.WriteString(fmt.Sprintf("- `%s`: %s\n", e.JobID, e.Error))
		}
	}

	return sb.String()
}
