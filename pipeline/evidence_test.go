package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veritasfuji-japan/veritas/core"
)

type stubWorld struct {
	key   string
	value interface{}
}

func (w stubWorld) Read(key string) (interface{}, bool) {
	if key != w.key {
		return nil, false
	}
	return w.value, true
}

func TestGatherEvidenceStageNoCollaboratorsYieldsEmpty(t *testing.T) {
	state := NewRequestState()
	req := &core.Request{Query: "what happened"}
	svc := core.Services{
		Memory: core.Unavailable[core.Memory](core.ErrNotInitialized),
		World:  core.Unavailable[core.World](core.ErrNotInitialized),
	}

	result := gatherEvidenceStage.Run(context.Background(), req, state, core.DefaultConfig(), svc)
	require.Equal(t, ResultUpdate, result.Kind)
	require.Empty(t, state.Evidence)
}

func TestGatherEvidenceStageMergesAndRanksByConfidence(t *testing.T) {
	state := NewRequestState()
	req := &core.Request{Query: "what happened"}
	mem := NewInMemoryMemory(
		core.MemoryHit{Source: "mem-low", Text: "low confidence", Confidence: 0.2, Kind: "memory_episodic"},
		core.MemoryHit{Source: "mem-high", Text: "high confidence", Confidence: 0.9, Kind: "memory_semantic"},
	)
	svc := core.Services{
		Memory: core.Available[core.Memory](mem),
		World:  core.Available[core.World](stubWorld{key: "what happened", value: "world fact"}),
	}

	result := gatherEvidenceStage.Run(context.Background(), req, state, core.DefaultConfig(), svc)
	require.Equal(t, ResultUpdate, result.Kind)
	require.Len(t, state.Evidence, 3)
	require.Equal(t, "mem-high", state.Evidence[0].Source)
	require.Equal(t, "world", state.Evidence[1].Source)
}

func TestGatherEvidenceStageRespectsCap(t *testing.T) {
	state := NewRequestState()
	req := &core.Request{Query: "q"}
	mem := NewInMemoryMemory(
		core.MemoryHit{Source: "a", Confidence: 0.5},
		core.MemoryHit{Source: "b", Confidence: 0.6},
		core.MemoryHit{Source: "c", Confidence: 0.7},
	)
	svc := core.Services{
		Memory: core.Available[core.Memory](mem),
		World:  core.Unavailable[core.World](core.ErrNotInitialized),
	}
	cfg := core.DefaultConfig()
	cfg.Pipeline.MaxEvidenceItems = 2

	result := gatherEvidenceStage.Run(context.Background(), req, state, cfg, svc)
	require.Equal(t, ResultUpdate, result.Kind)
	require.Len(t, state.Evidence, 2)
	require.Equal(t, "c", state.Evidence[0].Source)
}

func TestGatherEvidenceStageApplySkip(t *testing.T) {
	state := NewRequestState()
	preset := []core.EvidenceItem{{Source: "preset"}}

	require.NoError(t, gatherEvidenceStage.ApplySkip(state, preset))
	require.Equal(t, preset, state.Evidence)
}
