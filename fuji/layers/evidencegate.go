package layers

import (
	"context"
	"fmt"

	"github.com/veritasfuji-japan/veritas/fuji"
)

// EvidenceGate is the layer-4 "Evidence-gate layer" (spec.md §4.3.4):
// proposes human_review when a candidate carries fewer supporting evidence
// items than the configured minimum, the same "count against a floor"
// shape as the teacher's RuleBasedPolicy confidence-threshold check, just
// applied to len(evidence) instead of a confidence score.
type EvidenceGate struct {
	MinEvidence int
}

// NewEvidenceGate builds an EvidenceGate requiring at least min evidence
// items, defaulting to fuji.Config.MinEvidence when min is 0.
func NewEvidenceGate(min int) *EvidenceGate {
	return &EvidenceGate{MinEvidence: min}
}

func (e *EvidenceGate) Name() string { return "evidence_gate" }

func (e *EvidenceGate) Evaluate(_ context.Context, in fuji.Input, cfg fuji.Config) fuji.LayerOutcome {
	min := e.MinEvidence
	if min <= 0 {
		min = cfg.MinEvidence
	}
	if min <= 0 || len(in.Evidence) >= min {
		return fuji.LayerOutcome{Layer: "evidence_gate", Proposed: fuji.StatusAllow}
	}

	return fuji.LayerOutcome{
		Layer:    "evidence_gate",
		Proposed: fuji.StatusHumanReview,
		Violations: []fuji.ViolationTag{{
			Layer:  "evidence_gate",
			Code:   "insufficient_evidence",
			Detail: fmt.Sprintf("candidate has %d evidence item(s), policy requires %d", len(in.Evidence), min),
		}},
	}
}
