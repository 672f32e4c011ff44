package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veritasfuji-japan/veritas/core"
)

func TestRunCritiqueStageFlagsInsufficientEvidence(t *testing.T) {
	state := NewRequestState()
	score := 0.9
	risk := 0.1
	state.Options = []core.CandidateOption{{ID: "a", Score: &score, Risk: &risk}}
	req := &core.Request{Query: "q"}

	result := runCritiqueStage.Run(context.Background(), req, state, core.DefaultConfig(), core.Services{})
	require.Equal(t, ResultUpdate, result.Kind)
	require.True(t, hasIssue(state.Critiques, "insufficient_evidence"))
}

func TestRunCritiqueStageFlagsHighRisk(t *testing.T) {
	state := NewRequestState()
	score := 0.9
	risk := 0.95
	state.Options = []core.CandidateOption{{ID: "a", Score: &score, Risk: &risk}}
	state.Evidence = []core.EvidenceItem{{Source: "x"}, {Source: "y"}}
	req := &core.Request{Query: "q"}

	result := runCritiqueStage.Run(context.Background(), req, state, core.DefaultConfig(), core.Services{})
	require.Equal(t, ResultUpdate, result.Kind)
	require.True(t, hasIssue(state.Critiques, "high_risk"))
}

func TestRunCritiqueStageDedupesByIssue(t *testing.T) {
	state := NewRequestState()
	scoreA, riskA := 0.1, 0.1
	scoreB, riskB := 0.05, 0.2
	state.Options = []core.CandidateOption{
		{ID: "a", Score: &scoreA, Risk: &riskA},
		{ID: "b", Score: &scoreB, Risk: &riskB},
	}
	state.Evidence = []core.EvidenceItem{{Source: "x"}, {Source: "y"}}
	req := &core.Request{Query: "q"}

	result := runCritiqueStage.Run(context.Background(), req, state, core.DefaultConfig(), core.Services{})
	require.Equal(t, ResultUpdate, result.Kind)

	count := 0
	for _, c := range state.Critiques {
		if c.Issue == "low_value" {
			count++
		}
	}
	require.Equal(t, 1, count)
}

func TestRunCritiqueStageFlagsExcessiveTimeline(t *testing.T) {
	state := NewRequestState()
	score, risk := 0.9, 0.1
	state.Options = []core.CandidateOption{{ID: "a", Score: &score, Risk: &risk}}
	state.Evidence = []core.EvidenceItem{{Source: "x"}, {Source: "y"}}
	req := &core.Request{Query: "q", Context: map[string]interface{}{"timeline_days": float64(120)}}

	result := runCritiqueStage.Run(context.Background(), req, state, core.DefaultConfig(), core.Services{})
	require.Equal(t, ResultUpdate, result.Kind)
	require.True(t, hasIssue(state.Critiques, "excessive_timeline"))
}

func hasIssue(critiques []core.Critique, issue string) bool {
	for _, c := range critiques {
		if c.Issue == issue {
			return true
		}
	}
	return false
}
