package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veritasfuji-japan/veritas/core"
)

func TestInMemoryValueStatsRoundTrip(t *testing.T) {
	store := NewInMemoryValueStats()
	ctx := context.Background()

	_, ok, err := store.Load(ctx, "user-1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Save(ctx, "user-1", 0.42))

	ema, ok, err := store.Load(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.InDelta(t, 0.42, ema, 1e-9)
}

func TestFileValueStatsStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewFileValueStatsStore(dir)
	ctx := context.Background()

	_, ok, err := store.Load(ctx, "user@example.com")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Save(ctx, "user@example.com", 0.7))

	ema, ok, err := store.Load(ctx, "user@example.com")
	require.NoError(t, err)
	require.True(t, ok)
	require.InDelta(t, 0.7, ema, 1e-9)

	require.FileExists(t, filepath.Join(dir, "value_stats.user_example_com.json"))
}

func TestEvaluateValuesStageFirstCallHasNoSmoothing(t *testing.T) {
	store := NewInMemoryValueStats()
	stage := newEvaluateValuesStage(store)

	score := 1.0
	risk := 0.0
	state := NewRequestState()
	state.Debate = &core.DebateResult{Chosen: &core.CandidateOption{ID: "a", Score: &score, Risk: &risk}}
	req := &core.Request{Query: "q"}

	result := stage.Run(context.Background(), req, state, core.DefaultConfig(), core.Services{})
	require.Equal(t, ResultUpdate, result.Kind)
	require.NotNil(t, state.Values)
	require.InDelta(t, state.Values.Total, state.Values.EMA, 1e-9)
}

func TestEvaluateValuesStageSmoothsAgainstPriorEMA(t *testing.T) {
	store := NewInMemoryValueStats()
	require.NoError(t, store.Save(context.Background(), "anonymous", 0.2))
	stage := newEvaluateValuesStage(store)

	score := 1.0
	risk := 0.0
	state := NewRequestState()
	state.Debate = &core.DebateResult{Chosen: &core.CandidateOption{ID: "a", Score: &score, Risk: &risk}}
	req := &core.Request{Query: "q"}

	result := stage.Run(context.Background(), req, state, core.DefaultConfig(), core.Services{})
	require.Equal(t, ResultUpdate, result.Kind)
	expected := emaAlpha*state.Values.Total + (1-emaAlpha)*0.2
	require.InDelta(t, expected, state.Values.EMA, 1e-9)
}

func TestComputeValueFactorsPenalizesBlockers(t *testing.T) {
	state := NewRequestState()
	state.Critiques = []core.Critique{
		{Issue: "a", Severity: core.SeverityHigh},
		{Issue: "b", Severity: core.SeverityLow},
	}
	total, factors := computeValueFactors(state)
	require.InDelta(t, 0.75, factors["critique"], 1e-9)
	require.GreaterOrEqual(t, total, 0.0)
	require.LessOrEqual(t, total, 1.0)
}
