package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/claimscope/internal/models"
)

func claimNos(claims []models.Claim) []int {
	nos := make([]int, len(claims))
	for i, c := range claims {
		nos[i] = c.ClaimNo
	}
	return nos
}

func TestResolveClaims(t *testing.T) {
	all := []models.Claim{{ClaimNo: 1}, {ClaimNo: 2}, {ClaimNo: 3}}

	tests := []struct {
		name     string
		claims   []models.Claim
		filter   []int
		expected []int
	}{
		{name: "no filter", claims: all, expected: []int{1, 2, 3}},
		{name: "subset", claims: all, filter: []int{2}, expected: []int{2}},
		{name: "keeps claim order", claims: all, filter: []int{3, 1}, expected: []int{1, 3}},
		{name: "no match falls back", claims: all, filter: []int{99}, expected: []int{1, 2, 3}},
		{name: "no claims", claims: nil, filter: []int{2}, expected: []int{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, claimNos(ResolveClaims(tt.claims, tt.filter)))
		})
	}

	placeholder := ResolveClaims(nil, nil)
	assert.Equal(t, []models.Claim{{ClaimNo: 1, ClaimText: ""}}, placeholder)
}

func TestCollectClaimResults(t *testing.T) {
	c := models.NewAnalysisContext()
	c.Set("13_element_assessment:claim_1", map[string]any{
		"assessments": []any{
			map[string]any{"element_no": float64(1), "missing_information": []any{"pricing", ""}},
			map[string]any{"element_no": float64(2), "missing_information": "wiring diagram"},
			map[string]any{"element_no": float64(3)},
		},
	})
	c.Set("14_claim_decision_aggregator:claim_1", map[string]any{"decision": "likely", "open_items": []any{"sale date"}})
	c.Set("13_element_assessment:claim_2", map[string]any{
		"assessments": []any{map[string]any{"element_no": float64(1), "missing_information": []any{"datasheet"}}},
	})

	decisions, openItems := CollectClaimResults(c, []models.Claim{{ClaimNo: 1}, {ClaimNo: 2}})

	assert.Len(t, decisions, 1, "claim 2 never reached the decision stage")
	decision := decisions[0].(map[string]any)
	assert.Equal(t, 1, decision["claim_no"])
	assert.Equal(t, "likely", decision["decision"])
	assert.NotContains(t, c.StageOutput("14_claim_decision_aggregator:claim_1"), "claim_no", "stored output is not mutated")

	assert.Equal(t, []any{
		"[Claim 1, Element 1] pricing",
		"[Claim 1, Element 2] wiring diagram",
		"[Claim 1] sale date",
		"[Claim 2, Element 1] datasheet",
	}, openItems)

	decisions, openItems = CollectClaimResults(models.NewAnalysisContext(), []models.Claim{{ClaimNo: 1}})
	assert.Equal(t, []any{}, decisions)
	assert.Equal(t, []any{}, openItems)
}
