// -----------------------------------------------------------------------
// Context Builder - seeds a job context from stored master data
// -----------------------------------------------------------------------

package contextbuilder

import (
	"context"
	"encoding/json"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/claimscope/internal/interfaces"
	"github.com/ternarybob/claimscope/internal/models"
)

// StoreBuilder implements interfaces.ContextBuilder over MasterDataStorage.
// Lookup failures are logged and degrade to a minimal context.
type StoreBuilder struct {
	masterData interfaces.MasterDataStorage
	logger     arbor.ILogger
}

var _ interfaces.ContextBuilder = (*StoreBuilder)(nil)

func NewStoreBuilder(masterData interfaces.MasterDataStorage, logger arbor.ILogger) *StoreBuilder {
	return &StoreBuilder{
		masterData: masterData,
		logger:     logger,
	}
}

// Build seeds patent_info, claims, applicants, classifications, the company
// and product profiles, product_facts and target_product.
func (b *StoreBuilder) Build(ctx context.Context, job *models.AnalysisJob) *models.AnalysisContext {
	result := models.NewAnalysisContext()
	patentID := models.NormalizePatentID(job.PatentID)

	patent, err := b.masterData.GetPatent(ctx, patentID)
	if err != nil {
		b.logger.Warn().Err(err).Str("patent_id", patentID).Msg("Patent not found, using minimal context")
		result.Set(models.ContextKeyPatentInfo, map[string]any{"patent_id": patentID})
		result.Set(models.ContextKeyClaims, []any{})
	} else {
		result.Set(models.ContextKeyPatentInfo, patentInfo(patent))
		result.Set(models.ContextKeyClaims, b.claims(ctx, patent.PatentID))
		result.Set(models.ContextKeyApplicants, toJSONValue(patent.Applicants, []any{}))
		result.Set(models.ContextKeyClassifications, toJSONValue(patent.Classifications, []any{}))
	}

	var company *models.Company
	if job.CompanyID != "" {
		if company, err = b.masterData.GetCompany(ctx, job.CompanyID); err != nil {
			b.logger.Warn().Err(err).Str("company_id", job.CompanyID).Msg("Company lookup failed")
			company = nil
		} else {
			result.Set(models.ContextKeyCompanyProfile, toJSONValue(company, map[string]any{}))
		}
	}

	var product *models.Product
	if job.ProductID != "" {
		if product, err = b.masterData.GetProduct(ctx, job.ProductID); err != nil {
			b.logger.Warn().Err(err).Str("product_id", job.ProductID).Msg("Product lookup failed")
			product = nil
		} else {
			result.Set(models.ContextKeyProductProfile, toJSONValue(product, map[string]any{}))
			if version, err := b.masterData.LatestProductVersion(ctx, product.ID); err == nil {
				result.Set(models.ContextKeyProductFacts, toJSONValue(version.Facts, []any{}))
			} else {
				b.logger.Debug().Err(err).Str("product_id", product.ID).Msg("No product version")
			}
		}
	}

	result.Set(models.ContextKeyTargetProduct, targetProduct(job.TargetProduct, company, product))
	return result
}

func (b *StoreBuilder) claims(ctx context.Context, patentID string) []any {
	rows, err := b.masterData.ListClaims(ctx, patentID)
	if err != nil {
		b.logger.Warn().Err(err).Str("patent_id", patentID).Msg("Claims lookup failed")
		return []any{}
	}
	claims := make([]any, 0, len(rows))
	for _, row := range rows {
		claims = append(claims, models.Claim{
			ClaimNo:   row.ClaimNo,
			ClaimText: row.ClaimText,
			ClaimID:   row.ID,
		}.AsMap())
	}
	return claims
}

func patentInfo(p *models.Patent) map[string]any {
	return map[string]any{
		"patent_id":          p.PatentID,
		"country":            p.Country,
		"doc_number":         p.DocNumber,
		"kind":               p.Kind,
		"title":              p.Title,
		"abstract":           p.Abstract,
		"assignee":           p.Assignee,
		"publication_date":   p.PublicationDate,
		"filing_date":        p.FilingDate,
		"application_number": p.ApplicationNumber,
		"status":             p.Status,
	}
}

// targetProduct is structured when a profile exists, else the free-text target
func targetProduct(freeText string, company *models.Company, product *models.Product) any {
	if company == nil && product == nil {
		return freeText
	}
	target := map[string]any{"name": freeText}
	if product != nil {
		if freeText == "" {
			target["name"] = product.Name
		}
		target["product"] = toJSONValue(product, map[string]any{})
	}
	if company != nil {
		target["company"] = toJSONValue(company, map[string]any{})
	}
	return target
}

// toJSONValue converts a tagged struct or slice into the decoded JSON shape the
// context holds after a persistence round trip.
func toJSONValue(v any, fallback any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return fallback
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil || out == nil {
		return fallback
	}
	return out
}
