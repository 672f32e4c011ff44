package pipeline

import (
	"context"

	"github.com/veritasfuji-japan/veritas/core"
	"github.com/veritasfuji-japan/veritas/fuji"
)

// newFujiGateStage builds the critical "fuji_gate" stage (spec.md §4.3):
// it wraps fuji.Gate.Evaluate, which never itself returns an error, so this
// stage never returns Fail. A nil gate argument (misconfigured
// orchestrator) records fuji.Unavailable(), a hold decision with reason
// "fuji_unavailable"; a failing layer is absorbed by Evaluate's own
// per-layer recovery and never reaches this stage.
func newFujiGateStage(gate *fuji.Gate, cfg fuji.Config) Stage {
	return Stage{
		Name:     "fuji_gate",
		Critical: true,
		Run: func(ctx context.Context, req *core.Request, state *RequestState, _ *core.Config, _ core.Services) StageResult {
			if gate == nil {
				d := fuji.Unavailable()
				state.Fuji = &d
				return Update()
			}

			var candidate *core.CandidateOption
			if state.Debate != nil {
				candidate = state.Debate.Chosen
			}

			in := fuji.Input{
				Query:     req.Query,
				Context:   req.Context,
				Evidence:  state.Evidence,
				Candidate: candidate,
			}
			decision := gate.Evaluate(ctx, in, cfg)
			if candidate != nil && len(decision.Modifications) > 0 {
				patched := fuji.ApplyPatches(*candidate, decision.Modifications)
				state.Debate.Chosen = &patched
			}
			state.Fuji = &decision
			return Update()
		},
		ApplySkip: func(state *RequestState, raw interface{}) error {
			d, err := castFujiDecision(raw)
			if err != nil {
				return err
			}
			state.Fuji = d
			return nil
		},
	}
}

func castFujiDecision(raw interface{}) (*fuji.Decision, error) {
	switch v := raw.(type) {
	case *fuji.Decision:
		return v, nil
	case nil:
		return nil, nil
	default:
		return nil, errCastType("fuji_gate", "*fuji.Decision", v)
	}
}
