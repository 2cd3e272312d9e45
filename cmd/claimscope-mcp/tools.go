package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createCreateJobTool returns the create_job tool definition
func createCreateJobTool() mcp.Tool {
	return mcp.NewTool("create_job",
		mcp.WithDescription("Create a pending infringement analysis job for a patent"),
		mcp.WithString("patent_id",
			mcp.Required(),
			mcp.Description("Patent number, e.g. JP2020-123456A (normalized before storage)"),
		),
		mcp.WithString("pipeline",
			mcp.Required(),
			mcp.Description("Pipeline variant: A (research), B (search), C (analysis) or full"),
		),
		mcp.WithString("target_product",
			mcp.Description("Product under investigation"),
		),
		mcp.WithString("company_id",
			mcp.Description("Master-data company id"),
		),
		mcp.WithString("product_id",
			mcp.Description("Master-data product id"),
		),
		mcp.WithArray("claim_nos",
			mcp.WithNumberItems(),
			mcp.Description("Restrict per-claim stages to these claim numbers"),
		),
		mcp.WithNumber("priority",
			mcp.Description("Admission priority 0-10, higher first (default from config)"),
		),
		mcp.WithNumber("max_retries",
			mcp.Description("Retry budget for the admission sweep (default from config)"),
		),
	)
}

// createGetJobTool returns the get_job tool definition
func createGetJobTool() mcp.Tool {
	return mcp.NewTool("get_job",
		mcp.WithDescription("Get the status, progress and error of an analysis job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("Job ID (uuid)"),
		),
		mcp.WithBoolean("include_context",
			mcp.Description("Include the accumulated stage context as JSON (default: false)"),
		),
	)
}

// createGetJobResultsTool returns the get_job_results tool definition
func createGetJobResultsTool() mcp.Tool {
	return mcp.NewTool("get_job_results",
		mcp.WithDescription("List the recorded stage results of a job in execution order"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("Job ID (uuid)"),
		),
		mcp.WithString("stage",
			mcp.Description("Only results whose stage key starts with this prefix, e.g. 13_element_assessment"),
		),
	)
}

// createRunJobTool returns the run_job tool definition
func createRunJobTool() mcp.Tool {
	return mcp.NewTool("run_job",
		mcp.WithDescription("Run a job synchronously from its first stage until it completes or fails"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("Job ID (uuid)"),
		),
	)
}

// createListJobsTool returns the list_jobs tool definition
func createListJobsTool() mcp.Tool {
	return mcp.NewTool("list_jobs",
		mcp.WithDescription("List analysis jobs, newest first"),
		mcp.WithArray("status",
			mcp.WithStringItems(),
			mcp.Description("Filter: pending, researching, analyzing, completed, failed"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 20, max: 200)"),
		),
	)
}

// createRunBatchSweepTool returns the run_batch_sweep tool definition
func createRunBatchSweepTool() mcp.Tool {
	return mcp.NewTool("run_batch_sweep",
		mcp.WithDescription("Run one admission sweep: time out stuck jobs, dispatch pending jobs, requeue failures"),
		mcp.WithNumber("max_concurrent_jobs",
			mcp.Description("Concurrency budget (default from config)"),
		),
		mcp.WithNumber("timeout_seconds",
			mcp.Description("Active job timeout (default from config)"),
		),
		mcp.WithNumber("retry_cap",
			mcp.Description("Max jobs requeued per sweep (default from config)"),
		),
	)
}
