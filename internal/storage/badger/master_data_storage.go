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

// ErrMasterDataNotFound is returned by master data lookups for unknown ids
var ErrMasterDataNotFound = errors.New("master data not found")

// MasterDataStorage implements MasterDataStorage for Badger
type MasterDataStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

func NewMasterDataStorage(db *BadgerDB, logger arbor.ILogger) interfaces.MasterDataStorage {
	return &MasterDataStorage{
		db:     db,
		logger: logger,
	}
}

// ---- patents ----

func (s *MasterDataStorage) SavePatent(ctx context.Context, patent *models.Patent) error {
	patent.PatentID = models.NormalizePatentID(patent.PatentID)
	if patent.PatentID == "" {
		return fmt.Errorf("patent ID is required")
	}
	now := time.Now().UTC()
	if patent.CreatedAt.IsZero() {
		patent.CreatedAt = now
	}
	patent.UpdatedAt = now

	if err := s.db.Store().Upsert(patent.PatentID, patent); err != nil {
		return fmt.Errorf("failed to save patent %s: %w", patent.PatentID, err)
	}
	return nil
}

func (s *MasterDataStorage) GetPatent(ctx context.Context, patentID string) (*models.Patent, error) {
	var patent models.Patent
	if err := s.get(models.NormalizePatentID(patentID), &patent); err != nil {
		return nil, err
	}
	return &patent, nil
}

func (s *MasterDataStorage) SaveClaim(ctx context.Context, claim *models.PatentClaim) error {
	claim.PatentID = models.NormalizePatentID(claim.PatentID)
	if claim.PatentID == "" || claim.ClaimNo <= 0 {
		return fmt.Errorf("patent ID and a positive claim number are required")
	}
	if claim.ID == "" {
		claim.ID = uuid.New().String()
	}
	if claim.CreatedAt.IsZero() {
		claim.CreatedAt = time.Now().UTC()
	}

	if err := s.db.Store().Upsert(claim.ID, claim); err != nil {
		return fmt.Errorf("failed to save claim %d of %s: %w", claim.ClaimNo, claim.PatentID, err)
	}
	return nil
}

// ListClaims returns a patent's claims ordered by claim number
func (s *MasterDataStorage) ListClaims(ctx context.Context, patentID string) ([]*models.PatentClaim, error) {
	var rows []models.PatentClaim
	query := badgerhold.Where("PatentID").Eq(models.NormalizePatentID(patentID))
	if err := s.db.Store().Find(&rows, query); err != nil {
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ClaimNo < rows[j].ClaimNo })

	claims := make([]*models.PatentClaim, len(rows))
	for i := range rows {
		claims[i] = &rows[i]
	}
	return claims, nil
}

// ---- companies and products ----

func (s *MasterDataStorage) SaveCompany(ctx context.Context, company *models.Company) error {
	if company.ID == "" {
		company.ID = uuid.New().String()
	}
	if company.CreatedAt.IsZero() {
		company.CreatedAt = time.Now().UTC()
	}
	if err := s.db.Store().Upsert(company.ID, company); err != nil {
		return fmt.Errorf("failed to save company: %w", err)
	}
	return nil
}

func (s *MasterDataStorage) GetCompany(ctx context.Context, companyID string) (*models.Company, error) {
	var company models.Company
	if err := s.get(companyID, &company); err != nil {
		return nil, err
	}
	return &company, nil
}

func (s *MasterDataStorage) SaveProduct(ctx context.Context, product *models.Product) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	if err := s.db.Store().Upsert(product.ID, product); err != nil {
		return fmt.Errorf("failed to save product: %w", err)
	}
	return nil
}

func (s *MasterDataStorage) GetProduct(ctx context.Context, productID string) (*models.Product, error) {
	var product models.Product
	if err := s.get(productID, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *MasterDataStorage) SaveProductVersion(ctx context.Context, version *models.ProductVersion) error {
	if version.ProductID == "" {
		return fmt.Errorf("product ID is required")
	}
	if version.ID == "" {
		version.ID = uuid.New().String()
	}
	if version.CreatedAt.IsZero() {
		version.CreatedAt = time.Now().UTC()
	}
	if err := s.db.Store().Upsert(version.ID, version); err != nil {
		return fmt.Errorf("failed to save product version: %w", err)
	}
	return nil
}

// LatestProductVersion returns the most recently created version of a product
func (s *MasterDataStorage) LatestProductVersion(ctx context.Context, productID string) (*models.ProductVersion, error) {
	var rows []models.ProductVersion
	if err := s.db.Store().Find(&rows, badgerhold.Where("ProductID").Eq(productID)); err != nil {
		return nil, fmt.Errorf("failed to list product versions: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: product version for %s", ErrMasterDataNotFound, productID)
	}

	latest := rows[0]
	for _, v := range rows[1:] {
		if v.CreatedAt.After(latest.CreatedAt) {
			latest = v
		}
	}
	return &latest, nil
}

func (s *MasterDataStorage) get(key string, result interface{}) error {
	if key == "" {
		return fmt.Errorf("%w: empty id", ErrMasterDataNotFound)
	}
	if err := s.db.Store().Get(key, result); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrMasterDataNotFound, key)
		}
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	return nil
}
