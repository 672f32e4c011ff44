package pipeline

import (
	"context"
	"strings"

	"github.com/veritasfuji-japan/veritas/core"
)

// normalizeInputStage is the first, critical stage (spec.md §4.1
// "normalize_input"): it trims surrounding whitespace from the query and
// gives the request a non-nil context map; context-driven overrides are
// read later by the stages that use them (run_critique, run_planner). A
// query that is empty after trimming fails the stage, which aborts the
// whole pipeline to a structured hold — normalize is one of the three
// critical stages.
var normalizeInputStage = Stage{
	Name:     "normalize_input",
	Critical: true,
	Run: func(_ context.Context, req *core.Request, _ *RequestState, _ *core.Config, _ core.Services) StageResult {
		req.Query = strings.TrimSpace(req.Query)
		if req.Query == "" {
			return Fail(core.NewVeritasError("pipeline.normalize_input", "stage", core.ErrMissingQuery))
		}
		if req.Context == nil {
			req.Context = map[string]interface{}{}
		}
		return Update()
	},
}
