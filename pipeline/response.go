package pipeline

import (
	"github.com/veritasfuji-japan/veritas/core"
	"github.com/veritasfuji-japan/veritas/fuji"
)

// TrustLogRef is the response's trimmed view of the sealed record (spec.md
// §6 "trust_log: { id, sha256, sha256_prev }").
type TrustLogRef struct {
	ID         string `json:"id"`
	SHA256     string `json:"sha256"`
	SHA256Prev string `json:"sha256_prev,omitempty"`
}

// DecisionResponse is Decide's output (spec.md §4.1 "DecisionResponse").
type DecisionResponse struct {
	RequestID      string                  `json:"request_id"`
	DecisionStatus string                  `json:"decision_status"`
	Chosen         *core.CandidateOption   `json:"chosen,omitempty"`
	Alternatives   []core.CandidateOption  `json:"alternatives,omitempty"`
	Evidence       []core.EvidenceItem     `json:"evidence,omitempty"`
	Critique       []core.Critique         `json:"critique,omitempty"`
	Debate         *core.DebateResult      `json:"debate,omitempty"`
	Values         *core.ValueResult       `json:"values,omitempty"`
	Fuji           *fujiView               `json:"fuji,omitempty"`
	TrustLog       *TrustLogRef            `json:"trust_log,omitempty"`
	Metrics        map[string]StageMetric  `json:"metrics,omitempty"`
	RejectionReason string                 `json:"rejection_reason,omitempty"`
}

// fujiView is the response-facing subset of fuji.Decision; it drops
// LayerResults (internal diagnostics, not part of the external contract
// spec.md §6 documents) while keeping everything a caller needs to
// understand the gate's verdict.
type fujiView struct {
	InternalStatus  string           `json:"internal_status"`
	DecisionStatus  string           `json:"decision_status"`
	RejectionReason string           `json:"rejection_reason,omitempty"`
	Risk            float64          `json:"risk"`
	Violations      []string         `json:"violations,omitempty"`
	Hold            *fuji.HoldDetail `json:"hold,omitempty"`
}
