package models

import "time"

// Claim is one patent claim as seen by the pipeline
type Claim struct {
	ClaimNo   int    `json:"claim_no"`
	ClaimText string `json:"claim_text"`
	ClaimID   string `json:"claim_id"`
}

// PlaceholderClaim is used when a job has no claims at all
func PlaceholderClaim() Claim {
	return Claim{ClaimNo: 1, ClaimText: "", ClaimID: ""}
}

// AsMap renders the claim the way it is stored in the analysis context
func (c Claim) AsMap() map[string]any {
	return map[string]any{
		"claim_no":   c.ClaimNo,
		"claim_text": c.ClaimText,
		"claim_id":   c.ClaimID,
	}
}

// ClaimFromValue decodes a claim from a Claim value or a JSON-decoded object
func ClaimFromValue(v any) (Claim, bool) {
	switch typed := v.(type) {
	case Claim:
		return typed, true
	case *Claim:
		if typed == nil {
			return Claim{}, false
		}
		return *typed, true
	case map[string]any:
		no, ok := AsInt(typed["claim_no"])
		if !ok {
			return Claim{}, false
		}
		return Claim{
			ClaimNo:   no,
			ClaimText: AsString(typed["claim_text"]),
			ClaimID:   AsString(typed["claim_id"]),
		}, true
	default:
		return Claim{}, false
	}
}

// ClaimElement is a persisted constituent element extracted from a claim.
// Elements are unique per (ClaimID, ElementNo).
type ClaimElement struct {
	ID             string         `json:"id"`
	ClaimID        string         `json:"claim_id"`
	ElementNo      int            `json:"element_no"`
	QuoteText      string         `json:"quote_text"`
	NormalizedText string         `json:"normalized_text,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	ApprovalStatus string         `json:"approval_status"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// ElementApprovalDraft is the approval status of a freshly extracted element
const ElementApprovalDraft = "draft"
