package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_VariantStages(t *testing.T) {
	d := Default()

	a, err := d.Stages(VariantA)
	require.NoError(t, err)
	assert.Len(t, a, 7)
	assert.Equal(t, StageFetchPlanner, a[0])
	assert.Equal(t, StagePollStateUpdater, a[6])

	b, err := d.Stages(VariantB)
	require.NoError(t, err)
	assert.Equal(t, []string{StageSearchSeedGenerator, StageCandidateRanker}, b)

	c, err := d.Stages(VariantC)
	require.NoError(t, err)
	assert.Len(t, c, 7)
	assert.Equal(t, StageClaimElementExtractor, c[0])
	assert.Equal(t, StageInvestigationTasks, c[6])

	full, err := d.Stages(VariantFull)
	require.NoError(t, err)
	require.Len(t, full, 16)
	assert.Equal(t, append(append(a, b...), c...), full)

	_, err = d.Stages(Variant("D"))
	assert.Error(t, err)
}

func TestDefinition_StagesReturnsCopy(t *testing.T) {
	d := Default()
	stages, err := d.Stages(VariantB)
	require.NoError(t, err)
	stages[0] = "mutated"

	again, err := d.Stages(VariantB)
	require.NoError(t, err)
	assert.Equal(t, StageSearchSeedGenerator, again[0])
}

func TestDefinition_Kind(t *testing.T) {
	d := Default()

	for _, stage := range []string{StageClaimElementExtractor, StageEvidenceQueryBuilder, StageProductFactExtractor, StageElementAssessment, StageClaimDecisionAggregator} {
		assert.Equal(t, StagePerClaim, d.Kind(stage), stage)
		assert.True(t, d.IsPerClaim(stage))
	}
	for _, stage := range []string{StageCaseSummary, StageInvestigationTasks} {
		assert.Equal(t, StageAggregate, d.Kind(stage), stage)
		assert.True(t, d.IsAggregate(stage))
	}
	assert.Equal(t, StageSingular, d.Kind(StageFetchPlanner))
	assert.Equal(t, StageSingular, d.Kind("unknown_stage"))
	assert.Equal(t, "per_claim", StagePerClaim.String())
}

func TestNewDefinition_RejectsOverlap(t *testing.T) {
	_, err := NewDefinition([]string{"x"}, nil, []string{"y"}, []string{"y"}, []string{"y"})
	assert.Error(t, err)

	d, err := NewDefinition([]string{"x"}, []string{"y"}, nil, nil, nil)
	require.NoError(t, err)
	full, err := d.Stages(VariantFull)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, full)
}

func TestParseVariant(t *testing.T) {
	for _, v := range Variants() {
		got, err := ParseVariant(" " + string(v) + " ")
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}

	for _, raw := range []string{"", "a", "FULL", "D"} {
		_, err := ParseVariant(raw)
		assert.Error(t, err, raw)
	}
}

func TestQualifiedKey(t *testing.T) {
	assert.Equal(t, "13_element_assessment:claim_2", QualifiedKey(StageElementAssessment, 2))
	assert.Equal(t, StageCaseSummary, QualifiedKey(StageCaseSummary, 0))
	assert.Equal(t, ":claim_7", ClaimSuffix(7))
	assert.Equal(t, "", ClaimSuffix(-1))
}
