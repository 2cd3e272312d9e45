package orchestrator

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/claimscope/internal/jobs/executor"
	"github.com/ternarybob/claimscope/internal/models"
)

// Element fields lifted into ClaimElement columns; the rest goes to Metadata
var elementColumns = map[string]struct{}{
	"element_no":      {},
	"quote_text":      {},
	"text":            {},
	"normalized_text": {},
}

// persistClaimElements upserts the elements of a claim element extraction.
// Problems are logged and never fail the stage.
func (o *PipelineOrchestrator) persistClaimElements(ctx context.Context, logger arbor.ILogger, analysisCtx *models.AnalysisContext, output map[string]any) {
	if o.elements == nil {
		return
	}

	elements := models.AsList(output["elements"])
	if len(elements) == 0 {
		return
	}

	claimID := models.AsString(output["claim_id"])
	if claimID == "" {
		claimID = executor.SelectClaim(analysisCtx).ClaimID
	}
	if claimID == "" {
		logger.Debug().Int("elements", len(elements)).Msg("No claim id for extracted elements, not persisting")
		return
	}

	created, updated := 0, 0
	for _, raw := range elements {
		fields := models.AsMap(raw)
		if fields == nil {
			continue
		}
		elementNo, ok := models.AsInt(fields["element_no"])
		if !ok {
			continue
		}

		quote := models.AsString(fields["quote_text"])
		if quote == "" {
			quote = models.AsString(fields["text"])
		}

		metadata := map[string]any{}
		for k, v := range fields {
			if _, column := elementColumns[k]; !column {
				metadata[k] = v
			}
		}

		isNew, err := o.elements.UpsertElement(ctx, &models.ClaimElement{
			ClaimID:        claimID,
			ElementNo:      elementNo,
			QuoteText:      quote,
			NormalizedText: models.AsString(fields["normalized_text"]),
			Metadata:       metadata,
			ApprovalStatus: models.ElementApprovalDraft,
		})
		if err != nil {
			logger.Warn().Err(err).Str("claim_id", claimID).Int("element_no", elementNo).Msg("Failed to persist claim element")
			continue
		}
		if isNew {
			created++
		} else {
			updated++
		}
	}

	logger.Debug().
		Str("claim_id", claimID).
		Int("created", created).
		Int("updated", updated).
		Msg("Claim elements persisted")
}
