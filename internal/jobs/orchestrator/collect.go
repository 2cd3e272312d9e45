package orchestrator

import (
	"fmt"

	"github.com/ternarybob/claimscope/internal/models"
	"github.com/ternarybob/claimscope/internal/pipeline"
)

// CollectClaimResults gathers the per-claim outputs aggregate stages consume.
//
// decisions holds one copy of each claim's decision output tagged with
// "claim_no", for claims that reached the decision stage. openItems flattens
// the missing information of each element assessment ("[Claim N, Element E] ...")
// and the open items of each decision ("[Claim N] ...").
func CollectClaimResults(c *models.AnalysisContext, claims []models.Claim) (decisions []any, openItems []any) {
	decisions = []any{}
	openItems = []any{}

	for _, claim := range claims {
		assessmentKey := pipeline.QualifiedKey(pipeline.StageElementAssessment, claim.ClaimNo)
		for _, raw := range models.AsList(c.StageOutput(assessmentKey)["assessments"]) {
			assessment := models.AsMap(raw)
			if assessment == nil {
				continue
			}
			elementNo := elementLabel(assessment["element_no"])
			for _, item := range stringItems(assessment["missing_information"]) {
				openItems = append(openItems, fmt.Sprintf("[Claim %d, Element %s] %s", claim.ClaimNo, elementNo, item))
			}
		}

		decisionKey := pipeline.QualifiedKey(pipeline.StageClaimDecisionAggregator, claim.ClaimNo)
		raw, ok := c.Get(decisionKey)
		if !ok {
			continue
		}
		decision := models.AsMap(raw)
		if decision == nil {
			continue
		}

		tagged := make(map[string]any, len(decision)+1)
		for k, v := range decision {
			tagged[k] = v
		}
		tagged["claim_no"] = claim.ClaimNo
		decisions = append(decisions, tagged)

		for _, item := range stringItems(decision["open_items"]) {
			openItems = append(openItems, fmt.Sprintf("[Claim %d] %s", claim.ClaimNo, item))
		}
	}

	return decisions, openItems
}

// stringItems accepts a list of strings or a single string
func stringItems(v any) []string {
	if s, ok := v.(string); ok {
		if s == "" {
			return nil
		}
		return []string{s}
	}
	var items []string
	for _, item := range models.AsList(v) {
		switch typed := item.(type) {
		case string:
			if typed != "" {
				items = append(items, typed)
			}
		case nil:
		default:
			items = append(items, fmt.Sprint(typed))
		}
	}
	return items
}

func elementLabel(v any) string {
	if n, ok := models.AsInt(v); ok {
		return fmt.Sprint(n)
	}
	if v == nil {
		return "?"
	}
	return fmt.Sprint(v)
}
