package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/claimscope/internal/models"
)

// AnalysisJobStorage persists analysis jobs including their context
type AnalysisJobStorage interface {
	// SaveJob inserts or fully replaces a job (context included)
	SaveJob(ctx context.Context, job *models.AnalysisJob) error

	// GetJob returns models.ErrJobNotFound for unknown ids
	GetJob(ctx context.Context, jobID string) (*models.AnalysisJob, error)

	// ListJobs returns jobs newest first; an empty status list returns every job
	ListJobs(ctx context.Context, statuses []models.JobStatus, limit int) ([]*models.AnalysisJob, error)

	CountJobsByStatus(ctx context.Context, statuses ...models.JobStatus) (int, error)

	// ListDispatchable returns due pending jobs by priority desc, created asc
	ListDispatchable(ctx context.Context, now time.Time, limit int) ([]*models.AnalysisJob, error)

	// ListRetryable returns failed jobs with retry budget left, oldest first
	ListRetryable(ctx context.Context, limit int) ([]*models.AnalysisJob, error)
}

// StageResultStorage is the append-only store of stage executions
type StageResultStorage interface {
	// AppendResult inserts a new row and assigns its per-job sequence number
	AppendResult(ctx context.Context, result *models.StageResult) error

	// ListResults returns a job's rows in creation order
	ListResults(ctx context.Context, jobID string) ([]*models.StageResult, error)

	CountResults(ctx context.Context, jobID string) (int, error)
}

// ClaimElementStorage persists claim elements keyed by (claim_id, element_no)
type ClaimElementStorage interface {
	UpsertElement(ctx context.Context, element *models.ClaimElement) (created bool, err error)
	ListElements(ctx context.Context, claimID string) ([]*models.ClaimElement, error)
}

// MasterDataStorage holds the patents, companies and products the context builder reads
type MasterDataStorage interface {
	SavePatent(ctx context.Context, patent *models.Patent) error
	GetPatent(ctx context.Context, patentID string) (*models.Patent, error)
	SaveClaim(ctx context.Context, claim *models.PatentClaim) error
	ListClaims(ctx context.Context, patentID string) ([]*models.PatentClaim, error)

	SaveCompany(ctx context.Context, company *models.Company) error
	GetCompany(ctx context.Context, companyID string) (*models.Company, error)
	SaveProduct(ctx context.Context, product *models.Product) error
	GetProduct(ctx context.Context, productID string) (*models.Product, error)
	SaveProductVersion(ctx context.Context, version *models.ProductVersion) error
	LatestProductVersion(ctx context.Context, productID string) (*models.ProductVersion, error)
}

// StorageManager groups every store backed by one database
type StorageManager interface {
	JobStorage() AnalysisJobStorage
	ResultStorage() StageResultStorage
	ClaimElementStorage() ClaimElementStorage
	MasterDataStorage() MasterDataStorage
	KeyValueStorage() KeyValueStorage
	Close() error
}
