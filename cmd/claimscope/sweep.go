package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/ternarybob/claimscope/internal/app"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one admission sweep",
	Long:  `Fails timed out jobs, dispatches due pending jobs into free slots and requeues failed jobs with retry budget left. Prints the sweep report.`,
	Args:  cobra.NoArgs,
	RunE:  runSweep,
}

var (
	sweepMaxConcurrent int
	sweepTimeout       int
	sweepRetryCap      int
)

func init() {
	sweepCmd.Flags().IntVar(&sweepMaxConcurrent, "max-concurrent", 0, "Global admission slots (default from config)")
	sweepCmd.Flags().IntVar(&sweepTimeout, "timeout", 0, "Active job timeout in seconds (default from config)")
	sweepCmd.Flags().IntVar(&sweepRetryCap, "retry-cap", 0, "Failed jobs requeued per sweep (default from config)")
}

func runSweep(cmd *cobra.Command, args []string) error {
	return withApp(func(application *app.App) error {
		opts := application.AnalysisService.SweepOptions(time.Now().UTC())
		flags := cmd.Flags()
		if flags.Changed("max-concurrent") {
			opts.MaxConcurrentJobs = sweepMaxConcurrent
		}
		if flags.Changed("timeout") {
			opts.TimeoutSeconds = sweepTimeout
		}
		if flags.Changed("retry-cap") {
			opts.RetryCap = sweepRetryCap
		}

		report, err := application.AnalysisService.RunBatchSweep(cmd.Context(), opts)
		if err != nil {
			return err
		}
		return printJSON(cmd, report)
	})
}
