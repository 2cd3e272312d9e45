package interfaces

import (
	"context"

	"github.com/ternarybob/claimscope/internal/models"
)

// ContextBuilder hydrates a job's working context from master data.
// Lookup failures degrade to a minimal context and are never returned.
type ContextBuilder interface {
	Build(ctx context.Context, job *models.AnalysisJob) *models.AnalysisContext
}
