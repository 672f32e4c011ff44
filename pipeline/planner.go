package pipeline

import (
	"context"

	"github.com/veritasfuji-japan/veritas/core"
)

// runPlannerStage is the best-effort "run_planner" stage (spec.md §4.2).
// Steps must form a DAG; a cycle is a best_effort failure yielding an
// empty plan and a critique rather than aborting the pipeline. The cycle
// check mirrors orchestration.WorkflowDAG.hasCycleDFS's visited/recStack
// walk over a dependency (rather than dependents) edge set.
var runPlannerStage = Stage{
	Name:     "run_planner",
	Critical: false,
	Run: func(_ context.Context, req *core.Request, state *RequestState, cfg *core.Config, _ core.Services) StageResult {
		plan := planFromContext(req.Context)
		if plan == nil {
			state.Plan = &core.Plan{}
			return Update()
		}

		if cycle := findCycle(plan.Steps); cycle != "" {
			state.Plan = &core.Plan{}
			state.addCritique("", core.Critique{
				Issue:    "plan_not_a_dag",
				Severity: core.SeverityHigh,
				Fix:      "remove the cyclic dependency among plan steps",
				Details:  map[string]interface{}{"stage": "run_planner", "cycle_at": cycle},
			}, cfg.Pipeline.MaxCritiques)
			return Fail(core.NewVeritasError("pipeline.run_planner", "stage", core.ErrPlanNotADAG))
		}

		max := core.MaxPlanSteps
		if len(plan.Steps) > max {
			plan.Steps = plan.Steps[:max]
		}
		state.Plan = plan
		return Update()
	},
	ApplySkip: func(state *RequestState, raw interface{}) error {
		p, err := castPlan(raw)
		if err != nil {
			return err
		}
		state.Plan = p
		return nil
	},
}

// planFromContext reads an optional caller-supplied draft plan from
// context["plan_steps"], since run_planner's internals are
// "latitude-preserving" (spec.md §4.2) and no external planning
// collaborator is part of core.Services.
func planFromContext(ctx map[string]interface{}) *core.Plan {
	raw, ok := ctx["plan_steps"]
	if !ok {
		return nil
	}
	rawSteps, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	plan := &core.Plan{}
	for _, rs := range rawSteps {
		m, ok := rs.(map[string]interface{})
		if !ok {
			continue
		}
		step := core.PlanStep{
			ID:           stringField(m, "id"),
			Title:        stringField(m, "title"),
			Objective:    stringField(m, "objective"),
			Tasks:        stringSliceField(m, "tasks"),
			Metrics:      stringSliceField(m, "metrics"),
			Risks:        stringSliceField(m, "risks"),
			DoneCriteria: stringSliceField(m, "done_criteria"),
			Dependencies: stringSliceField(m, "dependencies"),
		}
		plan.Steps = append(plan.Steps, step)
	}
	return plan
}

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func stringSliceField(m map[string]interface{}, key string) []string {
	raw, ok := m[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// findCycle returns the ID of a step participating in a dependency cycle,
// or "" if steps form a valid DAG.
func findCycle(steps []core.PlanStep) string {
	byID := make(map[string]core.PlanStep, len(steps))
	for _, s := range steps {
		byID[s.ID] = s
	}

	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	var dfs func(id string) bool
	dfs = func(id string) bool {
		visited[id] = true
		recStack[id] = true
		for _, dep := range byID[id].Dependencies {
			if _, exists := byID[dep]; !exists {
				continue
			}
			if !visited[dep] {
				if dfs(dep) {
					return true
				}
			} else if recStack[dep] {
				return true
			}
		}
		recStack[id] = false
		return false
	}

	for _, s := range steps {
		if !visited[s.ID] {
			if dfs(s.ID) {
				return s.ID
			}
		}
	}
	return ""
}

func castPlan(raw interface{}) (*core.Plan, error) {
	switch v := raw.(type) {
	case *core.Plan:
		return v, nil
	case nil:
		return nil, nil
	default:
		return nil, errCastType("run_planner", "*core.Plan", v)
	}
}
