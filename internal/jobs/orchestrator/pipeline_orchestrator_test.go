package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/claimscope/internal/common"
	"github.com/ternarybob/claimscope/internal/interfaces"
	"github.com/ternarybob/claimscope/internal/models"
	"github.com/ternarybob/claimscope/internal/pipeline"
	"github.com/ternarybob/claimscope/internal/storage/badger"
)

// fakeExecutor answers every stage from a table keyed by qualified key
type fakeExecutor struct {
	outputs map[string]map[string]any
	failOn  map[string]error
	panicOn string
	calls   []string
}

func (f *fakeExecutor) Execute(ctx context.Context, stageID string, analysisCtx *models.AnalysisContext) models.StageOutcome {
	key := pipeline.QualifiedKey(stageID, analysisCtx.CurrentClaimNo())
	f.calls = append(f.calls, key)

	if key == f.panicOn {
		panic("executor exploded")
	}
	if err, ok := f.failOn[key]; ok {
		return models.StageFailed(stageID, models.StageErrorLLM, err)
	}
	output, ok := f.outputs[key]
	if !ok {
		output = map[string]any{"ok": true}
	}
	return models.StageSucceeded(&models.StageOutput{
		Input:  map[string]any{"stage": key},
		Output: output,
		Model:  "fake-model",
	})
}

type harness struct {
	storage  interfaces.StorageManager
	executor *fakeExecutor
	orch     *PipelineOrchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	storage, err := badger.NewManager(arbor.NewLogger(), &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close() })

	exec := &fakeExecutor{outputs: map[string]map[string]any{}, failOn: map[string]error{}}
	return &harness{
		storage:  storage,
		executor: exec,
		orch:     NewPipelineOrchestrator(pipeline.Default(), storage, exec, nil, nil, arbor.NewLogger()),
	}
}

func (h *harness) createJob(t *testing.T, variant pipeline.Variant, claims []models.Claim, claimNos []int) *models.AnalysisJob {
	t.Helper()
	job := models.NewAnalysisJob("JP2020123456A", variant)
	job.ClaimNos = claimNos
	job.Context.Set(models.ContextKeyPatentInfo, map[string]any{"patent_id": "JP2020123456A"})
	job.Context.Set(models.ContextKeyClaims, claims)
	require.NoError(t, h.storage.JobStorage().SaveJob(context.Background(), job))
	return job
}

func (h *harness) resultStages(t *testing.T, jobID string) []string {
	t.Helper()
	results, err := h.storage.ResultStorage().ListResults(context.Background(), jobID)
	require.NoError(t, err)
	stages := make([]string, len(results))
	for i, r := range results {
		stages[i] = r.Stage
	}
	return stages
}

func TestRunJob_PipelineCOneClaimCompletes(t *testing.T) {
	h := newHarness(t)
	job := h.createJob(t, pipeline.VariantC, []models.Claim{{ClaimNo: 1, ClaimText: "a device", ClaimID: "claim-1"}}, nil)

	done, err := h.orch.RunJob(context.Background(), job.ID)
	require.NoError(t, err)

	assert.Equal(t, models.JobStatusCompleted, done.Status)
	assert.Nil(t, done.CurrentStage)
	assert.NotNil(t, done.CompletedAt)
	assert.NotNil(t, done.StartedAt)
	assert.Nil(t, done.Error)

	assert.Equal(t, []string{
		"10_claim_element_extractor:claim_1",
		"11_evidence_query_builder:claim_1",
		"12_product_fact_extractor:claim_1",
		"13_element_assessment:claim_1",
		"14_claim_decision_aggregator:claim_1",
		"15_case_summary",
		"16_investigation_tasks_generator",
	}, h.resultStages(t, job.ID))

	stored, err := h.storage.JobStorage().GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, stored.Status)
	assert.False(t, stored.Context.Has(models.ContextKeyCurrentClaim), "fan-out pointer is removed")
	assert.True(t, stored.Context.Has("15_case_summary"))
	assert.True(t, stored.Context.Has(models.ContextKeyToday))
}

func TestRunJob_PipelineBSecondStageFails(t *testing.T) {
	h := newHarness(t)
	h.executor.failOn[pipeline.StageCandidateRanker] = errors.New("model overloaded")
	job := h.createJob(t, pipeline.VariantB, nil, nil)

	done, err := h.orch.RunJob(context.Background(), job.ID)
	require.NoError(t, err)

	assert.Equal(t, models.JobStatusFailed, done.Status)
	assert.Nil(t, done.CurrentStage)
	assert.NotNil(t, done.CompletedAt)
	require.NotNil(t, done.Error)
	assert.Equal(t, models.JobErrorStageFailed, done.Error.Kind)
	assert.Contains(t, done.Error.Detail, "Stage 09_candidate_ranker failed")
	assert.Contains(t, done.Error.Detail, "model overloaded")

	assert.Equal(t, []string{"08_search_seed_generator"}, h.resultStages(t, job.ID))
}

func TestRunJob_PerClaimFailureHaltsEverything(t *testing.T) {
	h := newHarness(t)
	h.executor.failOn["11_evidence_query_builder:claim_2"] = errors.New("boom")
	claims := []models.Claim{{ClaimNo: 1}, {ClaimNo: 2}, {ClaimNo: 3}}
	job := h.createJob(t, pipeline.VariantC, claims, nil)

	done, err := h.orch.RunJob(context.Background(), job.ID)
	require.NoError(t, err)

	assert.Equal(t, models.JobStatusFailed, done.Status)
	assert.Contains(t, done.ErrorString(), "11_evidence_query_builder:claim_2")
	assert.Equal(t, []string{
		"10_claim_element_extractor:claim_1",
		"10_claim_element_extractor:claim_2",
		"10_claim_element_extractor:claim_3",
		"11_evidence_query_builder:claim_1",
	}, h.resultStages(t, job.ID))
	assert.Equal(t, "11_evidence_query_builder:claim_2", h.executor.calls[len(h.executor.calls)-1],
		"claim 3 never runs")
}

func TestRunJob_ClaimFilter(t *testing.T) {
	claims := []models.Claim{{ClaimNo: 1}, {ClaimNo: 2}, {ClaimNo: 3}}

	t.Run("matching filter", func(t *testing.T) {
		h := newHarness(t)
		job := h.createJob(t, pipeline.VariantC, claims, []int{2})

		_, err := h.orch.RunJob(context.Background(), job.ID)
		require.NoError(t, err)

		stages := h.resultStages(t, job.ID)
		assert.Len(t, stages, 7)
		assert.Equal(t, "10_claim_element_extractor:claim_2", stages[0])
	})

	t.Run("filter matching nothing falls back to all claims", func(t *testing.T) {
		h := newHarness(t)
		job := h.createJob(t, pipeline.VariantC, claims, []int{99})

		_, err := h.orch.RunJob(context.Background(), job.ID)
		require.NoError(t, err)
		assert.Len(t, h.resultStages(t, job.ID), 5*3+2)
	})

	t.Run("no claims runs a placeholder claim", func(t *testing.T) {
		h := newHarness(t)
		job := h.createJob(t, pipeline.VariantC, nil, nil)

		_, err := h.orch.RunJob(context.Background(), job.ID)
		require.NoError(t, err)

		stages := h.resultStages(t, job.ID)
		assert.Len(t, stages, 7)
		assert.Equal(t, "10_claim_element_extractor:claim_1", stages[0])
	})
}

func TestRunJob_AggregateCollectsClaimResults(t *testing.T) {
	h := newHarness(t)
	h.executor.outputs["13_element_assessment:claim_1"] = map[string]any{
		"assessments": []any{
			map[string]any{"element_no": 1, "missing_information": []any{"product teardown"}},
		},
	}
	h.executor.outputs["14_claim_decision_aggregator:claim_1"] = map[string]any{
		"decision":   "likely",
		"open_items": []any{"confirm sale date"},
	}
	h.executor.outputs["14_claim_decision_aggregator:claim_2"] = map[string]any{"decision": "unlikely"}

	job := h.createJob(t, pipeline.VariantC, []models.Claim{{ClaimNo: 1}, {ClaimNo: 2}}, nil)

	done, err := h.orch.RunJob(context.Background(), job.ID)
	require.NoError(t, err)

	decisions := done.Context.List(models.ContextKeyClaimDecisions)
	require.Len(t, decisions, 2)
	assert.Equal(t, 1, decisions[0].(map[string]any)["claim_no"])
	assert.Equal(t, "likely", decisions[0].(map[string]any)["decision"])
	assert.Equal(t, 2, decisions[1].(map[string]any)["claim_no"])

	assert.Equal(t, []any{
		"[Claim 1, Element 1] product teardown",
		"[Claim 1] confirm sale date",
	}, done.Context.List(models.ContextKeyOpenItems))
}

func TestRunJob_PersistsExtractedClaimElements(t *testing.T) {
	h := newHarness(t)
	h.executor.outputs["10_claim_element_extractor:claim_1"] = map[string]any{
		"elements": []any{
			map[string]any{"element_no": 1, "quote_text": "a housing", "label": "A"},
			map[string]any{"element_no": 2, "quote_text": "a sensor"},
			map[string]any{"quote_text": "no number"},
		},
	}
	job := h.createJob(t, pipeline.VariantC, []models.Claim{{ClaimNo: 1, ClaimID: "claim-1"}}, nil)

	_, err := h.orch.RunJob(context.Background(), job.ID)
	require.NoError(t, err)

	elements, err := h.storage.ClaimElementStorage().ListElements(context.Background(), "claim-1")
	require.NoError(t, err)
	require.Len(t, elements, 2)
	assert.Equal(t, "a housing", elements[0].QuoteText)
	assert.Equal(t, "A", elements[0].Metadata["label"])
	assert.Equal(t, models.ElementApprovalDraft, elements[1].ApprovalStatus)
}

func TestRunJob_PanicFailsJob(t *testing.T) {
	h := newHarness(t)
	h.executor.panicOn = pipeline.StageStatusNormalizer
	job := h.createJob(t, pipeline.VariantA, nil, nil)

	done, err := h.orch.RunJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, done.Status)
	assert.Equal(t, models.JobErrorInternal, done.Error.Kind)
	assert.Contains(t, done.Error.Detail, "executor exploded")
	assert.Nil(t, done.CurrentStage)
}

func TestRunJob_RestartsFromFirstStage(t *testing.T) {
	h := newHarness(t)
	h.executor.failOn[pipeline.StageCandidateRanker] = errors.New("first attempt")
	job := h.createJob(t, pipeline.VariantB, nil, nil)

	_, err := h.orch.RunJob(context.Background(), job.ID)
	require.NoError(t, err)

	delete(h.executor.failOn, pipeline.StageCandidateRanker)
	done, err := h.orch.RunJob(context.Background(), job.ID)
	require.NoError(t, err)

	assert.Equal(t, models.JobStatusCompleted, done.Status)
	assert.Equal(t, []string{
		"08_search_seed_generator",
		"08_search_seed_generator",
		"09_candidate_ranker",
	}, h.resultStages(t, job.ID))
}

func TestRunJob_Guards(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.orch.RunJob(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrJobNotFound)

	completed := h.createJob(t, pipeline.VariantB, nil, nil)
	completed.Status = models.JobStatusCompleted
	require.NoError(t, h.storage.JobStorage().SaveJob(ctx, completed))

	_, err = h.orch.RunJob(ctx, completed.ID)
	var notRunnable *models.JobNotRunnableError
	require.ErrorAs(t, err, &notRunnable)
	assert.Equal(t, models.JobStatusCompleted, notRunnable.Status)

	inFlight := h.createJob(t, pipeline.VariantB, nil, nil)
	inFlight.MarkActive(inFlight.CreatedAt)
	inFlight.SetCurrentStage(pipeline.StageSearchSeedGenerator, inFlight.CreatedAt)
	require.NoError(t, h.storage.JobStorage().SaveJob(ctx, inFlight))

	_, err = h.orch.RunJob(ctx, inFlight.ID)
	assert.ErrorAs(t, err, &notRunnable)
	assert.Empty(t, h.executor.calls)
}
