package executor

import (
	"strconv"
	"time"

	"github.com/ternarybob/claimscope/internal/models"
	"github.com/ternarybob/claimscope/internal/pipeline"
)

// Context keys read by the fetch and discovery stages. Upstream collectors
// write these; a missing key maps to an empty value.
const (
	contextKeyPollState         = "poll_state"
	contextKeyQuotaRemaining    = "quota_remaining"
	contextKeyRawResponseMeta   = "raw_response_meta"
	contextKeyRawPayload        = "raw_payload"
	contextKeyFetchResults      = "fetch_results"
	contextKeyCandidates        = "candidates"
	contextKeyEvidenceDocuments = "evidence_documents"

	defaultQuotaRemaining = 100
	todayLayout           = "2006-01-02"
)

// BuildVariables derives the prompt variables of a stage from the context.
// Every stage gets "today". Per-claim stages read earlier outputs under the
// current claim's qualified key.
func BuildVariables(stageID string, c *models.AnalysisContext) map[string]any {
	vars := map[string]any{
		models.ContextKeyToday: c.Value(models.ContextKeyToday, time.Now().UTC().Format(todayLayout)),
	}

	suffix := pipeline.ClaimSuffix(c.CurrentClaimNo())
	elementsOf := func(stage string) []any {
		return listOrEmpty(c.StageOutput(stage + suffix)["elements"])
	}

	switch stageID {
	case pipeline.StageFetchPlanner:
		vars["patent_case"] = c.Map(models.ContextKeyPatentInfo)
		vars["poll_state"] = c.Value(contextKeyPollState, map[string]any{})
		vars["quota_remaining"] = c.Value(contextKeyQuotaRemaining, defaultQuotaRemaining)

	case pipeline.StageStatusNormalizer,
		pipeline.StageGrantInfoNormalizer,
		pipeline.StageCitationsNormalizer,
		pipeline.StageDocumentsMetaNormalizer,
		pipeline.StageNumberRefNormalizer:
		vars["raw_response_meta"] = c.Value(contextKeyRawResponseMeta, map[string]any{})
		vars["raw_payload"] = c.Value(contextKeyRawPayload, map[string]any{})

	case pipeline.StagePollStateUpdater:
		vars["current_poll_state"] = c.Value(contextKeyPollState, map[string]any{})
		vars["fetch_results"] = c.List(contextKeyFetchResults)

	case pipeline.StageSearchSeedGenerator:
		vars["patent_summary"] = c.Map(models.ContextKeyPatentInfo)
		vars["claim_texts"] = c.List(models.ContextKeyClaims)
		vars["classifications"] = c.List(models.ContextKeyClassifications)

	case pipeline.StageCandidateRanker:
		vars["target_patent"] = c.Map(models.ContextKeyPatentInfo)
		vars["candidates"] = c.List(contextKeyCandidates)

	case pipeline.StageClaimElementExtractor:
		vars["claim"] = SelectClaim(c).AsMap()

	case pipeline.StageEvidenceQueryBuilder:
		vars["claim_elements"] = elementsOf(pipeline.StageClaimElementExtractor)
		vars["target_product"] = c.Value(models.ContextKeyTargetProduct, "")

	case pipeline.StageProductFactExtractor:
		vars["evidence_documents"] = c.List(contextKeyEvidenceDocuments)
		vars["target_elements"] = elementsOf(pipeline.StageClaimElementExtractor)

	case pipeline.StageElementAssessment:
		vars["claim_elements"] = elementsOf(pipeline.StageClaimElementExtractor)
		vars["product_facts"] = listOrEmpty(c.StageOutput(pipeline.StageProductFactExtractor + suffix)["product_facts"])

	case pipeline.StageClaimDecisionAggregator:
		vars["claim_id"] = DecisionClaimID(c)
		vars["element_assessments"] = listOrEmpty(c.StageOutput(pipeline.StageElementAssessment + suffix)["assessments"])

	case pipeline.StageCaseSummary:
		vars["case_context"] = c.Map(models.ContextKeyPatentInfo)
		vars["claim_decisions"] = c.List(models.ContextKeyClaimDecisions)

	case pipeline.StageInvestigationTasks:
		vars["open_items"] = c.List(models.ContextKeyOpenItems)
	}

	return vars
}

// SelectClaim returns the fan-out claim, else the first seeded claim, else
// the placeholder claim.
func SelectClaim(c *models.AnalysisContext) models.Claim {
	if claim, ok := c.CurrentClaim(); ok {
		return claim
	}
	if claims := c.Claims(); len(claims) > 0 {
		return claims[0]
	}
	return models.PlaceholderClaim()
}

// DecisionClaimID is "<patent_id>_claim<N>" for the current claim (default 1)
func DecisionClaimID(c *models.AnalysisContext) string {
	claimNo := c.CurrentClaimNo()
	if claimNo <= 0 {
		claimNo = 1
	}
	return c.PatentID() + "_claim" + strconv.Itoa(claimNo)
}

func listOrEmpty(v any) []any {
	if l := models.AsList(v); l != nil {
		return l
	}
	return []any{}
}
