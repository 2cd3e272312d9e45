package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ternarybob/claimscope/internal/app"
	"github.com/ternarybob/claimscope/internal/services/analysis"
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Create, inspect and run analysis jobs",
}

var jobCreateCmd = &cobra.Command{
	Use:   "create <patent_id>",
	Short: "Create a pending analysis job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobCreate,
}

var jobGetCmd = &cobra.Command{
	Use:   "get <job_id>",
	Short: "Print a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobGet,
}

var jobResultsCmd = &cobra.Command{
	Use:   "results <job_id>",
	Short: "Print a job's stage results",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobResults,
}

var jobRunCmd = &cobra.Command{
	Use:   "run <job_id>",
	Short: "Run a job synchronously from its first stage",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobRun,
}

var jobListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runJobList,
}

var (
	jobPipeline     string
	jobTarget       string
	jobCompanyID    string
	jobProductID    string
	jobClaimNos     []int
	jobPriority     int
	jobMaxRetries   int
	jobScheduledFor string
	jobRunAfterSave bool
	jobListStatuses []string
	jobListLimit    int
)

func init() {
	jobCreateCmd.Flags().StringVar(&jobPipeline, "pipeline", "full", "Pipeline variant: A, B, C or full")
	jobCreateCmd.Flags().StringVar(&jobTarget, "target", "", "Free-text target product")
	jobCreateCmd.Flags().StringVar(&jobCompanyID, "company", "", "Stored company id")
	jobCreateCmd.Flags().StringVar(&jobProductID, "product", "", "Stored product id")
	jobCreateCmd.Flags().IntSliceVar(&jobClaimNos, "claims", nil, "Claim numbers to analyze (default all)")
	jobCreateCmd.Flags().IntVar(&jobPriority, "priority", -1, "Priority 0-10 (default from config)")
	jobCreateCmd.Flags().IntVar(&jobMaxRetries, "max-retries", -1, "Retry budget (default from config)")
	jobCreateCmd.Flags().StringVar(&jobScheduledFor, "scheduled-for", "", "Earliest dispatch time (RFC3339)")
	jobCreateCmd.Flags().BoolVar(&jobRunAfterSave, "run", false, "Run the job immediately after creating it")

	jobListCmd.Flags().StringSliceVar(&jobListStatuses, "status", nil, "Filter by status (repeatable)")
	jobListCmd.Flags().IntVar(&jobListLimit, "limit", 20, "Maximum jobs to list (0 = all)")

	jobCmd.AddCommand(jobCreateCmd, jobGetCmd, jobResultsCmd, jobRunCmd, jobListCmd)
}

func runJobCreate(cmd *cobra.Command, args []string) error {
	req := &analysis.CreateJobRequest{
		PatentID:      args[0],
		Pipeline:      jobPipeline,
		TargetProduct: jobTarget,
		CompanyID:     jobCompanyID,
		ProductID:     jobProductID,
		ClaimNos:      jobClaimNos,
	}
	if cmd.Flags().Changed("priority") {
		req.Priority = &jobPriority
	}
	if cmd.Flags().Changed("max-retries") {
		req.MaxRetries = &jobMaxRetries
	}
	if jobScheduledFor != "" {
		at, err := time.Parse(time.RFC3339, jobScheduledFor)
		if err != nil {
			return fmt.Errorf("invalid --scheduled-for: %w", err)
		}
		at = at.UTC()
		req.ScheduledFor = &at
	}

	return withApp(func(application *app.App) error {
		job, err := application.AnalysisService.CreateJob(cmd.Context(), req)
		if err != nil {
			return err
		}
		if jobRunAfterSave {
			if job, err = application.AnalysisService.RunJob(cmd.Context(), job.ID); err != nil {
				return err
			}
		}
		return printJSON(cmd, job)
	})
}

func runJobGet(cmd *cobra.Command, args []string) error {
	return withApp(func(application *app.App) error {
		job, err := application.AnalysisService.GetJob(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, job)
	})
}

func runJobResults(cmd *cobra.Command, args []string) error {
	return withApp(func(application *app.App) error {
		results, err := application.AnalysisService.GetJobResults(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, results)
	})
}

func runJobRun(cmd *cobra.Command, args []string) error {
	return withApp(func(application *app.App) error {
		job, err := application.AnalysisService.RunJob(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, job)
	})
}

func runJobList(cmd *cobra.Command, args []string) error {
	return withApp(func(application *app.App) error {
		jobs, err := application.AnalysisService.ListJobs(cmd.Context(), jobListStatuses, jobListLimit)
		if err != nil {
			return err
		}
		for _, job := range jobs {
			stage := "-"
			if job.CurrentStage != nil {
				stage = *job.CurrentStage
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %-12s %-5s %-16s p%-2d %s\n",
				job.ID, job.Status, job.Pipeline, job.PatentID, job.Priority, stage)
		}
		return nil
	})
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
