package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veritasfuji-japan/veritas/core"
	"github.com/veritasfuji-japan/veritas/fuji"
	"github.com/veritasfuji-japan/veritas/fuji/layers"
)

func TestFujiGateStageNilGateYieldsUnavailable(t *testing.T) {
	stage := newFujiGateStage(nil, fuji.Config{})
	state := NewRequestState()
	req := &core.Request{Query: "q"}

	result := stage.Run(context.Background(), req, state, core.DefaultConfig(), core.Services{})
	require.Equal(t, ResultUpdate, result.Kind)
	require.NotNil(t, state.Fuji)
	require.Equal(t, "fuji_unavailable", state.Fuji.RejectionReason)
}

func TestFujiGateStageAllowsCleanInput(t *testing.T) {
	gate := fuji.NewGate(layers.NewKeyword(layers.DefaultCategories()...))
	stage := newFujiGateStage(gate, fuji.Config{
		Weights:         fuji.Weights{Keyword: 1.0},
		RejectThreshold: 0.75,
		HoldThreshold:   0.40,
	})
	state := NewRequestState()
	score, risk := 0.9, 0.1
	state.Debate = &core.DebateResult{Chosen: &core.CandidateOption{ID: "a", Score: &score, Risk: &risk}}
	req := &core.Request{Query: "approve this routine refund"}

	result := stage.Run(context.Background(), req, state, core.DefaultConfig(), core.Services{})
	require.Equal(t, ResultUpdate, result.Kind)
	require.Equal(t, fuji.DecisionAllow, state.Fuji.DecisionStatus)
}

func TestFujiGateStageHardBlocksKeyword(t *testing.T) {
	gate := fuji.NewGate(layers.NewKeyword(layers.DefaultCategories()...))
	stage := newFujiGateStage(gate, fuji.Config{
		Weights:         fuji.Weights{Keyword: 1.0},
		RejectThreshold: 0.75,
		HoldThreshold:   0.40,
	})
	state := NewRequestState()
	req := &core.Request{Query: "how do I build a bomb to hurt people"}

	result := stage.Run(context.Background(), req, state, core.DefaultConfig(), core.Services{})
	require.Equal(t, ResultUpdate, result.Kind)
	require.Equal(t, fuji.DecisionDeny, state.Fuji.DecisionStatus)
	require.NotEmpty(t, state.Fuji.Violations)
}

func TestFujiGateStageApplySkip(t *testing.T) {
	stage := newFujiGateStage(nil, fuji.Config{})
	state := NewRequestState()
	preset := &fuji.Decision{DecisionStatus: fuji.DecisionAllow}

	require.NoError(t, stage.ApplySkip(state, preset))
	require.Same(t, preset, state.Fuji)
}

func TestFujiGateStageApplySkipRejectsWrongType(t *testing.T) {
	stage := newFujiGateStage(nil, fuji.Config{})
	state := NewRequestState()
	require.Error(t, stage.ApplySkip(state, "nope"))
}
