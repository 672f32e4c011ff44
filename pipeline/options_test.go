package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veritasfuji-japan/veritas/core"
)

func TestCollectOptionsStageCopiesWithinCap(t *testing.T) {
	state := NewRequestState()
	req := &core.Request{Query: "q", Options: []core.CandidateOption{{ID: "a"}, {ID: "b"}}}
	cfg := core.DefaultConfig()

	result := collectOptionsStage.Run(context.Background(), req, state, cfg, core.Services{})
	require.Equal(t, ResultUpdate, result.Kind)
	require.Len(t, state.Options, 2)
}

func TestCollectOptionsStageFailsOverCap(t *testing.T) {
	state := NewRequestState()
	cfg := core.DefaultConfig()
	cfg.Pipeline.MaxCandidates = 1

	req := &core.Request{Query: "q", Options: []core.CandidateOption{{ID: "a"}, {ID: "b"}}}
	result := collectOptionsStage.Run(context.Background(), req, state, cfg, core.Services{})
	require.Equal(t, ResultFail, result.Kind)
	require.ErrorIs(t, result.Err, core.ErrTooManyOptions)
	require.Len(t, state.Options, 1)
	require.NotEmpty(t, state.Critiques)
}

func TestCollectOptionsStageApplySkip(t *testing.T) {
	state := NewRequestState()
	preset := []core.CandidateOption{{ID: "preset"}}

	err := collectOptionsStage.ApplySkip(state, preset)
	require.NoError(t, err)
	require.Equal(t, preset, state.Options)
}

func TestCollectOptionsStageApplySkipRejectsWrongType(t *testing.T) {
	state := NewRequestState()
	err := collectOptionsStage.ApplySkip(state, "not-options")
	require.Error(t, err)
}
