package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veritasfuji-japan/veritas/core"
)

func TestFindCycleNoCycle(t *testing.T) {
	steps := []core.PlanStep{
		{ID: "a"},
		{ID: "b", Dependencies: []string{"a"}},
		{ID: "c", Dependencies: []string{"a", "b"}},
	}
	require.Equal(t, "", findCycle(steps))
}

func TestFindCycleDetectsSelfLoop(t *testing.T) {
	steps := []core.PlanStep{
		{ID: "a", Dependencies: []string{"a"}},
	}
	require.Equal(t, "a", findCycle(steps))
}

func TestFindCycleDetectsIndirectCycle(t *testing.T) {
	steps := []core.PlanStep{
		{ID: "a", Dependencies: []string{"c"}},
		{ID: "b", Dependencies: []string{"a"}},
		{ID: "c", Dependencies: []string{"b"}},
	}
	require.NotEqual(t, "", findCycle(steps))
}

func TestFindCycleIgnoresDanglingDependency(t *testing.T) {
	steps := []core.PlanStep{
		{ID: "a", Dependencies: []string{"does-not-exist"}},
	}
	require.Equal(t, "", findCycle(steps))
}

func TestRunPlannerStageNoDraftYieldsEmptyPlan(t *testing.T) {
	state := NewRequestState()
	req := &core.Request{Query: "q"}
	cfg := core.DefaultConfig()

	result := runPlannerStage.Run(context.Background(), req, state, cfg, core.Services{})
	require.Equal(t, ResultUpdate, result.Kind)
	require.NotNil(t, state.Plan)
	require.Empty(t, state.Plan.Steps)
}

func TestRunPlannerStageCycleFails(t *testing.T) {
	state := NewRequestState()
	req := &core.Request{Query: "q", Context: map[string]interface{}{
		"plan_steps": []interface{}{
			map[string]interface{}{"id": "a", "dependencies": []interface{}{"b"}},
			map[string]interface{}{"id": "b", "dependencies": []interface{}{"a"}},
		},
	}}
	cfg := core.DefaultConfig()

	result := runPlannerStage.Run(context.Background(), req, state, cfg, core.Services{})
	require.Equal(t, ResultFail, result.Kind)
	require.ErrorIs(t, result.Err, core.ErrPlanNotADAG)
	require.Empty(t, state.Plan.Steps)
	require.NotEmpty(t, state.Critiques)
}

func TestRunPlannerStageValidDAGIsKept(t *testing.T) {
	state := NewRequestState()
	req := &core.Request{Query: "q", Context: map[string]interface{}{
		"plan_steps": []interface{}{
			map[string]interface{}{"id": "a", "title": "first"},
			map[string]interface{}{"id": "b", "title": "second", "dependencies": []interface{}{"a"}},
		},
	}}
	cfg := core.DefaultConfig()

	result := runPlannerStage.Run(context.Background(), req, state, cfg, core.Services{})
	require.Equal(t, ResultUpdate, result.Kind)
	require.Len(t, state.Plan.Steps, 2)
	require.Equal(t, "b", state.Plan.Steps[1].ID)
	require.Equal(t, []string{"a"}, state.Plan.Steps[1].Dependencies)
}
