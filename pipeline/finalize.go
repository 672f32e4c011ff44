package pipeline

import (
	"context"

	"github.com/veritasfuji-japan/veritas/core"
	"github.com/veritasfuji-japan/veritas/fuji"
)

// finalizeResponseStage is the critical "finalize_response" stage
// (spec.md §4.1): it assembles DecisionResponse from everything the prior
// nine stages accumulated. decision_status tracks fuji.Decision's own
// DecisionStatus unless an earlier critical failure already set
// state.FailureReason (timeout, trust_log_unavailable), in which case the
// response is forced to hold regardless of what FUJI said.
var finalizeResponseStage = Stage{
	Name:     "finalize_response",
	Critical: true,
	Run: func(_ context.Context, req *core.Request, state *RequestState, _ *core.Config, _ core.Services) StageResult {
		resp := &DecisionResponse{
			RequestID: req.RequestID,
			Evidence:  state.Evidence,
			Critique:  state.Critiques,
			Debate:    state.Debate,
			Values:    state.Values,
		}

		if state.Debate != nil {
			resp.Chosen = state.Debate.Chosen
			resp.Alternatives = otherOptions(state.Debate.EnrichedOptions, state.Debate.Chosen)
		}

		if state.Fuji != nil {
			resp.Fuji = fujiViewOf(state.Fuji)
			resp.DecisionStatus = string(state.Fuji.DecisionStatus)
			resp.RejectionReason = state.Fuji.RejectionReason
		} else {
			resp.DecisionStatus = "hold"
			resp.RejectionReason = rejectionFujiUnavailable
		}

		if state.FailureReason != "" {
			resp.DecisionStatus = "hold"
			resp.RejectionReason = state.FailureReason
		}

		if state.TrustLog != nil {
			resp.TrustLog = &TrustLogRef{
				ID:         state.TrustLog.ID,
				SHA256:     state.TrustLog.SHA256,
				SHA256Prev: state.TrustLog.SHA256Prev,
			}
		}

		resp.Metrics = metricsByStage(state.Metrics)
		state.Response = resp
		return Update()
	},
}

func otherOptions(all []core.CandidateOption, chosen *core.CandidateOption) []core.CandidateOption {
	if chosen == nil {
		return all
	}
	out := make([]core.CandidateOption, 0, len(all))
	for _, o := range all {
		if o.ID == chosen.ID {
			continue
		}
		out = append(out, o)
	}
	return out
}

func fujiViewOf(d *fuji.Decision) *fujiView {
	codes := make([]string, 0, len(d.Violations))
	for _, v := range d.Violations {
		codes = append(codes, v.Code)
	}
	return &fujiView{
		InternalStatus:  d.InternalStatus.String(),
		DecisionStatus:  string(d.DecisionStatus),
		RejectionReason: d.RejectionReason,
		Risk:            d.Risk,
		Violations:      codes,
		Hold:            d.Hold,
	}
}

func metricsByStage(metrics []StageMetric) map[string]StageMetric {
	if len(metrics) == 0 {
		return nil
	}
	out := make(map[string]StageMetric, len(metrics))
	for _, m := range metrics {
		out[m.Stage] = m
	}
	return out
}
