package pipeline

import (
	"context"
	"fmt"

	"github.com/veritasfuji-japan/veritas/core"
)

// collectOptionsStage copies the caller-supplied candidate options into
// state, enforcing the MaxCandidates cap (spec.md §5 "options 16"). Caller
// options beyond the cap are dropped and the overage is recorded as a
// best-effort stage_failure critique rather than aborting the request —
// collect_options is not one of the three critical stages.
var collectOptionsStage = Stage{
	Name:     "collect_options",
	Critical: false,
	Run: func(_ context.Context, req *core.Request, state *RequestState, cfg *core.Config, _ core.Services) StageResult {
		max := cfg.Pipeline.MaxCandidates
		if max <= 0 {
			max = core.MaxCandidateOptions
		}
		if len(req.Options) > max {
			state.Options = append([]core.CandidateOption(nil), req.Options[:max]...)
			state.addCritique("", core.Critique{
				Issue:    "stage_failure",
				Severity: core.SeverityLow,
				Fix:      "reduce the number of submitted options",
				Details: map[string]interface{}{
					"stage": "collect_options",
					"error": fmt.Sprintf("option count %d exceeds cap %d", len(req.Options), max),
				},
			}, cfg.Pipeline.MaxCritiques)
			return Fail(core.NewVeritasError("pipeline.collect_options", "stage", core.ErrTooManyOptions))
		}
		state.Options = append([]core.CandidateOption(nil), req.Options...)
		return Update()
	},
	ApplySkip: func(state *RequestState, raw interface{}) error {
		opts, err := castOptions(raw)
		if err != nil {
			return err
		}
		state.Options = opts
		return nil
	},
}

func castOptions(raw interface{}) ([]core.CandidateOption, error) {
	switch v := raw.(type) {
	case []core.CandidateOption:
		return v, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("pipeline: skip_stages[collect_options] must be []core.CandidateOption, got %T", raw)
	}
}
