package orchestrator

import "github.com/ternarybob/claimscope/internal/models"

// ResolveClaims picks the claims a run fans out over.
//
//   - no claims at all: a single placeholder claim (number 1, empty text)
//   - claimNos set: the matching claims in list order
//   - claimNos matching nothing: the full list, a run never has zero claims
func ResolveClaims(claims []models.Claim, claimNos []int) []models.Claim {
	if len(claims) == 0 {
		return []models.Claim{models.PlaceholderClaim()}
	}
	if len(claimNos) == 0 {
		return claims
	}

	wanted := make(map[int]struct{}, len(claimNos))
	for _, n := range claimNos {
		wanted[n] = struct{}{}
	}

	filtered := make([]models.Claim, 0, len(claimNos))
	for _, claim := range claims {
		if _, ok := wanted[claim.ClaimNo]; ok {
			filtered = append(filtered, claim)
		}
	}
	if len(filtered) == 0 {
		return claims
	}
	return filtered
}
