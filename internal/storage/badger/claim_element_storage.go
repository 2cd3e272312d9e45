package badger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/claimscope/internal/interfaces"
	"github.com/ternarybob/claimscope/internal/models"
)

// ClaimElementStorage stores elements under "<claim_id>#<element_no>"
type ClaimElementStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

func NewClaimElementStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ClaimElementStorage {
	return &ClaimElementStorage{
		db:     db,
		logger: logger,
	}
}

func elementKey(claimID string, elementNo int) string {
	return fmt.Sprintf("%s#%d", claimID, elementNo)
}

// UpsertElement creates the element or refreshes an existing one. Existing
// quote and normalized text are only overwritten by non-empty values.
func (s *ClaimElementStorage) UpsertElement(ctx context.Context, element *models.ClaimElement) (bool, error) {
	if element.ClaimID == "" {
		return false, fmt.Errorf("claim ID is required")
	}
	key := elementKey(element.ClaimID, element.ElementNo)
	now := time.Now().UTC()

	var existing models.ClaimElement
	err := s.db.Store().Get(key, &existing)
	switch {
	case err == nil:
		if element.QuoteText != "" {
			existing.QuoteText = element.QuoteText
		}
		if element.NormalizedText != "" {
			existing.NormalizedText = element.NormalizedText
		}
		existing.Metadata = element.Metadata
		existing.UpdatedAt = now
		if err := s.db.Store().Update(key, &existing); err != nil {
			return false, fmt.Errorf("failed to update claim element %s: %w", key, err)
		}
		*element = existing
		return false, nil

	case errors.Is(err, badgerhold.ErrNotFound):
		if element.ID == "" {
			element.ID = uuid.New().String()
		}
		if element.ApprovalStatus == "" {
			element.ApprovalStatus = models.ElementApprovalDraft
		}
		element.CreatedAt = now
		element.UpdatedAt = now
		if err := s.db.Store().Insert(key, element); err != nil {
			return false, fmt.Errorf("failed to insert claim element %s: %w", key, err)
		}
		return true, nil

	default:
		return false, fmt.Errorf("failed to read claim element %s: %w", key, err)
	}
}

func (s *ClaimElementStorage) ListElements(ctx context.Context, claimID string) ([]*models.ClaimElement, error) {
	var rows []models.ClaimElement
	if err := s.db.Store().Find(&rows, badgerhold.Where("ClaimID").Eq(claimID)); err != nil {
		return nil, fmt.Errorf("failed to list claim elements: %w", err)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ElementNo < rows[j].ElementNo })

	elements := make([]*models.ClaimElement, len(rows))
	for i := range rows {
		elements[i] = &rows[i]
	}
	return elements, nil
}
