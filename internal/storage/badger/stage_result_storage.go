package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/claimscope/internal/interfaces"
	"github.com/ternarybob/claimscope/internal/models"
)

// StageResultStorage implements the append-only result store for Badger
type StageResultStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewStageResultStorage creates a new StageResultStorage instance
func NewStageResultStorage(db *BadgerDB, logger arbor.ILogger) interfaces.StageResultStorage {
	return &StageResultStorage{
		db:     db,
		logger: logger,
	}
}

// AppendResult inserts a new row. Rows are never updated; the per-job sequence
// is the number of rows already stored for the job plus one.
func (s *StageResultStorage) AppendResult(ctx context.Context, result *models.StageResult) error {
	if result == nil {
		return fmt.Errorf("result is required")
	}
	if result.JobID == "" {
		return fmt.Errorf("result job ID is required")
	}
	if result.ID == "" {
		result.ID = uuid.New().String()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}

	count, err := s.CountResults(ctx, result.JobID)
	if err != nil {
		return err
	}
	result.Sequence = count + 1

	if err := s.db.Store().Insert(result.ID, result); err != nil {
		return fmt.Errorf("failed to insert result %s for job %s: %w", result.Stage, result.JobID, err)
	}
	return nil
}

func (s *StageResultStorage) ListResults(ctx context.Context, jobID string) ([]*models.StageResult, error) {
	var rows []models.StageResult
	if err := s.db.Store().Find(&rows, badgerhold.Where("JobID").Eq(jobID)); err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Sequence != rows[j].Sequence {
			return rows[i].Sequence < rows[j].Sequence
		}
		return rows[i].CreatedAt.Before(rows[j].CreatedAt)
	})

	results := make([]*models.StageResult, len(rows))
	for i := range rows {
		results[i] = &rows[i]
	}
	return results, nil
}

func (s *StageResultStorage) CountResults(ctx context.Context, jobID string) (int, error) {
	count, err := s.db.Store().Count(&models.StageResult{}, badgerhold.Where("JobID").Eq(jobID))
	if err != nil {
		return 0, fmt.Errorf("failed to count results: %w", err)
	}
	return int(count), nil
}
