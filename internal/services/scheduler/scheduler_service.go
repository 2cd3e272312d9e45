package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/claimscope/internal/common"
	"github.com/ternarybob/claimscope/internal/interfaces"
	"github.com/ternarybob/claimscope/internal/models"
)

// DefaultSchedule runs the admission sweep every six hours
const DefaultSchedule = "0 */6 * * *"

// Sweeper runs one admission sweep with the configured limits
type Sweeper interface {
	SweepOptions(now time.Time) models.SweepOptions
	RunBatchSweep(ctx context.Context, opts models.SweepOptions) (*models.SweepReport, error)
}

// Service implements SchedulerService: a cron trigger for admission sweeps.
// Runs started by the scheduler never overlap; a tick that fires while a
// sweep is in progress is skipped.
type Service struct {
	sweeper Sweeper
	cron    *cron.Cron
	logger  arbor.ILogger
	now     func() time.Time

	sweepMu sync.Mutex // Held for the duration of a sweep

	mu         sync.Mutex // Protects the fields below
	running    bool
	sweeping   bool
	schedule   string
	entryID    cron.EntryID
	lastRun    *time.Time
	lastReport *models.SweepReport
	lastError  string
}

var _ interfaces.SchedulerService = (*Service)(nil)

// NewService creates a stopped scheduler
func NewService(sweeper Sweeper, logger arbor.ILogger) *Service {
	return &Service{
		sweeper: sweeper,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Start registers the sweep under cronExpr and starts the cron loop
func (s *Service) Start(cronExpr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	if cronExpr == "" {
		cronExpr = DefaultSchedule
	}
	if err := common.ValidateSchedule(cronExpr); err != nil {
		return err
	}

	cl := cronLogger{logger: s.logger}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	entryID, err := c.AddFunc(cronExpr, s.runScheduledSweep)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	c.Start()
	s.cron = c
	s.entryID = entryID
	s.schedule = cronExpr
	s.running = true

	s.logger.Info().Str("schedule", cronExpr).Msg("Scheduler started")
	return nil
}

// Stop halts the cron loop and waits for an in-flight sweep to finish
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	c := s.cron
	s.running = false
	s.mu.Unlock()

	<-c.Stop().Done()
	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// TriggerNow runs a sweep immediately, waiting for any scheduled sweep first
func (s *Service) TriggerNow(ctx context.Context) (*models.SweepReport, error) {
	return s.sweep(ctx, "manual")
}

// IsRunning reports whether the cron loop is active
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Status returns a snapshot of the scheduler state
func (s *Service) Status() interfaces.SweepStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := interfaces.SweepStatus{
		Enabled:    s.running,
		Schedule:   s.schedule,
		LastRun:    s.lastRun,
		IsRunning:  s.sweeping,
		LastReport: s.lastReport,
		LastError:  s.lastError,
	}
	if s.running {
		if next := s.cron.Entry(s.entryID).Next; !next.IsZero() {
			status.NextRun = &next
		}
	}
	return status
}

func (s *Service) runScheduledSweep() {
	if _, err := s.sweep(context.Background(), "cron"); err != nil {
		s.logger.Error().Err(err).Msg("Scheduled sweep failed")
	}
}

func (s *Service) sweep(ctx context.Context, trigger string) (*models.SweepReport, error) {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	started := s.now()
	s.mu.Lock()
	s.sweeping = true
	s.mu.Unlock()

	report, err := s.sweeper.RunBatchSweep(ctx, s.sweeper.SweepOptions(started))

	s.mu.Lock()
	s.sweeping = false
	s.lastRun = &started
	s.lastReport = report
	s.lastError = ""
	if err != nil {
		s.lastError = err.Error()
	}
	s.mu.Unlock()

	s.logger.Debug().
		Str("trigger", trigger).
		Dur("duration", s.now().Sub(started)).
		Msg("Sweep finished")
	return report, err
}

// cronLogger adapts arbor to cron.Logger
type cronLogger struct {
	logger arbor.ILogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Str("cron", fmt.Sprint(keysAndValues...)).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Str("cron", fmt.Sprint(keysAndValues...)).Msg(msg)
}
