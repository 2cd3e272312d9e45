package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/claimscope/internal/models"
)

// MockSweeper is a mock implementation of Sweeper for testing
type MockSweeper struct {
	mock.Mock
}

func (m *MockSweeper) SweepOptions(now time.Time) models.SweepOptions {
	return models.SweepOptions{Now: now, MaxConcurrentJobs: 3, TimeoutSeconds: 1800, RetryCap: 2}
}

func (m *MockSweeper) RunBatchSweep(ctx context.Context, opts models.SweepOptions) (*models.SweepReport, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SweepReport), args.Error(1)
}

func TestTriggerNow_RecordsStatus(t *testing.T) {
	sweeper := new(MockSweeper)
	svc := NewService(sweeper, arbor.NewLogger())
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	sweeper.On("RunBatchSweep", mock.Anything, mock.MatchedBy(func(opts models.SweepOptions) bool {
		return opts.Now.Equal(fixed) && opts.MaxConcurrentJobs == 3
	})).Return(&models.SweepReport{Started: 2}, nil).Once()

	report, err := svc.TriggerNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Started)

	status := svc.Status()
	assert.False(t, status.Enabled)
	assert.False(t, status.IsRunning)
	require.NotNil(t, status.LastRun)
	assert.Equal(t, fixed, *status.LastRun)
	assert.Equal(t, report, status.LastReport)
	assert.Empty(t, status.LastError)
	assert.Nil(t, status.NextRun)

	sweeper.On("RunBatchSweep", mock.Anything, mock.Anything).Return(nil, errors.New("store offline")).Once()
	_, err = svc.TriggerNow(context.Background())
	require.Error(t, err)
	assert.Equal(t, "store offline", svc.Status().LastError)

	sweeper.AssertExpectations(t)
}

func TestStartStop(t *testing.T) {
	svc := NewService(new(MockSweeper), arbor.NewLogger())

	assert.Error(t, svc.Start("* * * * *"), "every minute is rejected")
	assert.False(t, svc.IsRunning())

	require.NoError(t, svc.Start(""))
	assert.True(t, svc.IsRunning())
	assert.Error(t, svc.Start(DefaultSchedule), "already running")

	status := svc.Status()
	assert.True(t, status.Enabled)
	assert.Equal(t, DefaultSchedule, status.Schedule)
	require.NotNil(t, status.NextRun)
	assert.True(t, status.NextRun.After(time.Now()))

	require.NoError(t, svc.Stop())
	assert.False(t, svc.IsRunning())
	require.NoError(t, svc.Stop(), "stopping twice is a no-op")
}
