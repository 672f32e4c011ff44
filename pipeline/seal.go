package pipeline

import (
	"context"

	"github.com/veritasfuji-japan/veritas/core"
	"github.com/veritasfuji-japan/veritas/trustlog"
)

const (
	rejectionTrustLogUnavailable = "trust_log_unavailable"
	rejectionTimeout             = "timeout"
	rejectionFujiUnavailable     = "fuji_unavailable"
)

// newSealTrustLogStage builds the critical "seal_trust_log" stage (spec.md
// §4.4 "Failure semantics"). An Append failure first falls back to
// AppendDegraded (hash_chain: unavailable); if that also fails, the stage
// fails the request critically with a Fatal-classified error rather than
// returning silently, since §4.1 separately documents "TrustLog seal failed
// durably" as the one Fatal condition surfaced to the caller.
func newSealTrustLogStage(log *trustlog.Log) Stage {
	return Stage{
		Name:     "seal_trust_log",
		Critical: true,
		Run: func(_ context.Context, req *core.Request, state *RequestState, _ *core.Config, _ core.Services) StageResult {
			if log == nil {
				return Fail(core.NewVeritasError("pipeline.seal_trust_log", "stage", core.ErrLogNotFound))
			}

			payload := sealPayload(req, state)

			rec, err := log.Append(req.RequestID, "seal_trust_log", payload)
			if err == nil {
				state.TrustLog = rec
				return Update()
			}

			degraded, derr := log.AppendDegraded(req.RequestID, "seal_trust_log", payload)
			if derr == nil {
				state.TrustLog = degraded
				state.FailureReason = rejectionTrustLogUnavailable
				return Update()
			}

			return Fail(core.NewVeritasError("pipeline.seal_trust_log", "fatal", core.ErrChainBroken))
		},
	}
}

// sealPayload is the canonical record body hashed into the chain: enough
// of the decision to reconstruct what happened without re-running the
// pipeline, per spec.md §4.4's "append audit records" responsibility.
func sealPayload(req *core.Request, state *RequestState) map[string]interface{} {
	payload := map[string]interface{}{
		"query":   req.Query,
		"options": state.Options,
	}
	if state.Debate != nil {
		payload["debate"] = state.Debate
	}
	if state.Fuji != nil {
		payload["fuji"] = state.Fuji
	}
	if state.Plan != nil {
		payload["plan"] = state.Plan
	}
	if state.Values != nil {
		payload["values"] = state.Values
	}
	if len(state.Critiques) > 0 {
		payload["critique"] = state.Critiques
	}
	if len(state.Evidence) > 0 {
		payload["evidence"] = state.Evidence
	}
	return payload
}
