package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/claimscope/internal/models"
)

// SweepStatus is the state of the in-process cron trigger
type SweepStatus struct {
	Enabled    bool                `json:"enabled"`
	Schedule   string              `json:"schedule"`
	LastRun    *time.Time          `json:"last_run,omitempty"`
	NextRun    *time.Time          `json:"next_run,omitempty"`
	IsRunning  bool                `json:"is_running"`
	LastReport *models.SweepReport `json:"last_report,omitempty"`
	LastError  string              `json:"last_error,omitempty"`
}

// BatchSweeper is the admission entry point invoked by external triggers
type BatchSweeper interface {
	RunBatchSweep(ctx context.Context, opts models.SweepOptions) (*models.SweepReport, error)
}

// SchedulerService runs batch sweeps on a cron schedule
type SchedulerService interface {
	// Start registers the sweep on cronExpr and starts the cron runner
	Start(cronExpr string) error

	// Stop waits for a running sweep to finish and stops the runner
	Stop() error

	// TriggerNow runs one sweep synchronously, outside the schedule
	TriggerNow(ctx context.Context) (*models.SweepReport, error)

	IsRunning() bool

	Status() SweepStatus
}
