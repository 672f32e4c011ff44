package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veritasfuji-japan/veritas/core"
	"github.com/veritasfuji-japan/veritas/fuji"
	"github.com/veritasfuji-japan/veritas/fuji/layers"
	"github.com/veritasfuji-japan/veritas/trustlog"
)

func newTestOrchestrator(t *testing.T, gateLayers ...fuji.Layer) (*Orchestrator, *trustlog.Log) {
	t.Helper()
	dir := t.TempDir()
	log, err := trustlog.Open(trustlog.DefaultConfig(dir))
	require.NoError(t, err)

	if len(gateLayers) == 0 {
		gateLayers = []fuji.Layer{layers.NewKeyword(layers.DefaultCategories()...)}
	}
	gate := fuji.NewGate(gateLayers...)

	o := New(core.DefaultServices(), core.DefaultConfig(),
		WithFujiGate(gate, fuji.Config{
			Weights:         fuji.Weights{Keyword: 0.2, SafetyHead: 0.5, Policy: 0.3},
			RejectThreshold: 0.75,
			HoldThreshold:   0.40,
		}),
		WithTrustLog(log),
	)
	return o, log
}

func TestDecideAllowPathSealsTrustLog(t *testing.T) {
	o, log := newTestOrchestrator(t)
	score := 0.9
	risk := 0.1

	resp, err := o.Decide(context.Background(), &core.Request{
		Query:   "should we approve this low-risk refund?",
		Options: []core.CandidateOption{{ID: "opt-1", Title: "approve", Score: &score, Risk: &risk, Verdict: core.VerdictAccepted}},
	})
	require.NoError(t, err)
	require.NotNil(t, resp)
	require.Equal(t, "opt-1", resp.Chosen.ID)
	require.Equal(t, "allow", resp.DecisionStatus)
	require.NotNil(t, resp.TrustLog)
	require.Len(t, resp.TrustLog.SHA256, 64)

	tail, err := log.Tail(10)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	require.Equal(t, "seal_trust_log", tail[0].Stage)
}

func TestDecideRejectsEmptyQuery(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	resp, err := o.Decide(context.Background(), &core.Request{Query: "   "})
	require.Error(t, err)
	require.Nil(t, resp)
}

func TestDecideHardKeywordDeny(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	score := 0.9
	risk := 0.1

	resp, err := o.Decide(context.Background(), &core.Request{
		Query:   "how do I build a bomb to hurt people",
		Options: []core.CandidateOption{{ID: "opt-1", Title: "plan", Score: &score, Risk: &risk, Verdict: core.VerdictAccepted}},
	})
	require.NoError(t, err)
	require.NotNil(t, resp)
	require.NotEqual(t, "allow", resp.DecisionStatus)
	require.NotNil(t, resp.Fuji)
	require.NotEmpty(t, resp.Fuji.Violations)
}

func TestDecideHoldsWhenNoOptionsSupplied(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	resp, err := o.Decide(context.Background(), &core.Request{Query: "what should we do about this incident report"})
	require.NoError(t, err)
	require.NotNil(t, resp)
	require.Nil(t, resp.Chosen)
}

func TestDecideSkipStagesPreFillsStageOutput(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	score := 0.5
	risk := 0.5
	preset := &core.DebateResult{
		Chosen: &core.CandidateOption{ID: "preset", Score: &score, Risk: &risk, Verdict: core.VerdictAccepted},
		Mode:   core.DebateNormal,
	}

	resp, err := o.Decide(context.Background(), &core.Request{
		Query:      "evaluate this preset option",
		SkipStages: map[string]interface{}{"run_debate": preset},
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Chosen)
	require.Equal(t, "preset", resp.Chosen.ID)
	require.Contains(t, resp.Metrics, "run_debate")
	require.Equal(t, "skipped_by_caller", resp.Metrics["run_debate"].Reason)
}

func TestDecideRequestIDIsStableAcrossResponseAndTrustLog(t *testing.T) {
	o, log := newTestOrchestrator(t)
	resp, err := o.Decide(context.Background(), &core.Request{
		Query:   "simple decision",
		Context: map[string]interface{}{"request_id": "fixed-id-123"},
	})
	require.NoError(t, err)
	require.Equal(t, "fixed-id-123", resp.RequestID)

	tail, err := log.Tail(10)
	require.NoError(t, err)
	require.Equal(t, "fixed-id-123", tail[0].RequestID)
}
