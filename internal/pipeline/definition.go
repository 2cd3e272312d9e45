// -----------------------------------------------------------------------
// Pipeline Definition - immutable stage table per pipeline variant
// -----------------------------------------------------------------------

package pipeline

import (
	"fmt"
	"strings"
)

// Variant identifies which stage list a job runs.
type Variant string

const (
	VariantA    Variant = "A"
	VariantB    Variant = "B"
	VariantC    Variant = "C"
	VariantFull Variant = "full"
)

// StageKind classifies how the orchestrator drives a stage.
type StageKind int

const (
	// StageSingular runs once per job with no claim context
	StageSingular StageKind = iota
	// StagePerClaim fans out once per resolved claim
	StagePerClaim
	// StageAggregate consumes the collected per-claim outputs
	StageAggregate
)

func (k StageKind) String() string {
	switch k {
	case StagePerClaim:
		return "per_claim"
	case StageAggregate:
		return "aggregate"
	default:
		return "singular"
	}
}

// Stage identifiers
const (
	StageFetchPlanner            = "01_fetch_planner"
	StageStatusNormalizer        = "02_status_normalizer"
	StageGrantInfoNormalizer     = "03_grant_info_normalizer"
	StageCitationsNormalizer     = "04_citations_normalizer"
	StageDocumentsMetaNormalizer = "05_documents_metadata_normalizer"
	StageNumberRefNormalizer     = "06_number_reference_normalizer"
	StagePollStateUpdater        = "07_poll_state_updater"
	StageSearchSeedGenerator     = "08_search_seed_generator"
	StageCandidateRanker         = "09_candidate_ranker"
	StageClaimElementExtractor   = "10_claim_element_extractor"
	StageEvidenceQueryBuilder    = "11_evidence_query_builder"
	StageProductFactExtractor    = "12_product_fact_extractor"
	StageElementAssessment       = "13_element_assessment"
	StageClaimDecisionAggregator = "14_claim_decision_aggregator"
	StageCaseSummary             = "15_case_summary"
	StageInvestigationTasks      = "16_investigation_tasks_generator"
)

// Definition is the immutable pipeline table. Build it once with NewDefinition
// or Default and pass it to the components that need it.
type Definition struct {
	stages    map[Variant][]string
	perClaim  map[string]struct{}
	aggregate map[string]struct{}
}

// NewDefinition builds a definition from base variant stage lists. The "full"
// variant is always derived as the concatenation of A, B and C in that order.
// A stage may belong to at most one of the per-claim and aggregate sets.
func NewDefinition(a, b, c []string, perClaim, aggregate []string) (*Definition, error) {
	d := &Definition{
		stages:    make(map[Variant][]string, 4),
		perClaim:  make(map[string]struct{}, len(perClaim)),
		aggregate: make(map[string]struct{}, len(aggregate)),
	}

	d.stages[VariantA] = append([]string(nil), a...)
	d.stages[VariantB] = append([]string(nil), b...)
	d.stages[VariantC] = append([]string(nil), c...)

	full := make([]string, 0, len(a)+len(b)+len(c))
	full = append(full, a...)
	full = append(full, b...)
	full = append(full, c...)
	d.stages[VariantFull] = full

	for _, s := range perClaim {
		d.perClaim[s] = struct{}{}
	}
	for _, s := range aggregate {
		if _, dup := d.perClaim[s]; dup {
			return nil, fmt.Errorf("stage %s cannot be both per-claim and aggregate", s)
		}
		d.aggregate[s] = struct{}{}
	}

	return d, nil
}

var defaultDefinition = mustDefault()

func mustDefault() *Definition {
	d, err := NewDefinition(
		[]string{
			StageFetchPlanner,
			StageStatusNormalizer,
			StageGrantInfoNormalizer,
			StageCitationsNormalizer,
			StageDocumentsMetaNormalizer,
			StageNumberRefNormalizer,
			StagePollStateUpdater,
		},
		[]string{
			StageSearchSeedGenerator,
			StageCandidateRanker,
		},
		[]string{
			StageClaimElementExtractor,
			StageEvidenceQueryBuilder,
			StageProductFactExtractor,
			StageElementAssessment,
			StageClaimDecisionAggregator,
			StageCaseSummary,
			StageInvestigationTasks,
		},
		[]string{
			StageClaimElementExtractor,
			StageEvidenceQueryBuilder,
			StageProductFactExtractor,
			StageElementAssessment,
			StageClaimDecisionAggregator,
		},
		[]string{
			StageCaseSummary,
			StageInvestigationTasks,
		},
	)
	if err != nil {
		panic(err)
	}
	return d
}

// Default returns the process-wide patent investigation pipeline table.
func Default() *Definition {
	return defaultDefinition
}

// ParseVariant validates a pipeline tag.
func ParseVariant(s string) (Variant, error) {
	switch v := Variant(strings.TrimSpace(s)); v {
	case VariantA, VariantB, VariantC, VariantFull:
		return v, nil
	default:
		return "", fmt.Errorf("invalid pipeline: %q (expected A, B, C or full)", s)
	}
}

// Variants lists the accepted pipeline tags.
func Variants() []Variant {
	return []Variant{VariantA, VariantB, VariantC, VariantFull}
}

// Stages returns a copy of the ordered stage list for a variant.
func (d *Definition) Stages(v Variant) ([]string, error) {
	stages, ok := d.stages[v]
	if !ok {
		return nil, fmt.Errorf("invalid pipeline: %q", v)
	}
	return append([]string(nil), stages...), nil
}

// Kind reports whether a stage is singular, per-claim or aggregate.
func (d *Definition) Kind(stage string) StageKind {
	if _, ok := d.perClaim[stage]; ok {
		return StagePerClaim
	}
	if _, ok := d.aggregate[stage]; ok {
		return StageAggregate
	}
	return StageSingular
}

func (d *Definition) IsPerClaim(stage string) bool {
	return d.Kind(stage) == StagePerClaim
}

func (d *Definition) IsAggregate(stage string) bool {
	return d.Kind(stage) == StageAggregate
}

// QualifiedKey returns the result/context key of a stage run. Per-claim runs are
// suffixed with ":claim_<N>"; claimNo <= 0 yields the bare stage id.
func QualifiedKey(stage string, claimNo int) string {
	if claimNo <= 0 {
		return stage
	}
	return fmt.Sprintf("%s:claim_%d", stage, claimNo)
}

// ClaimSuffix returns ":claim_<N>" or "" when no claim is selected.
func ClaimSuffix(claimNo int) string {
	if claimNo <= 0 {
		return ""
	}
	return fmt.Sprintf(":claim_%d", claimNo)
}
