// Package fuji implements the multi-layer safety gate described in
// spec.md §4.3: a declared-order pipeline of Layer evaluations aggregated
// into one FujiDecision, with invariants coercing internal_status into a
// consistent external decision_status/rejection_reason pair. The layered
// evaluation shape is grounded on the teacher's orchestration.RuleBasedPolicy:
// an ordered sequence of rule checks, each producing a verdict-shaped value
// (InterruptDecision there, LayerOutcome here) that the caller aggregates
// into one final decision; its reason/priority/default-action shape survives
// in hold.go's HoldDetail.
package fuji

import "github.com/veritasfuji-japan/veritas/core"

// InternalStatus is FUJI's fine-grained verdict, ordered by strictness:
// allow < warn < human_review < deny.
type InternalStatus int

const (
	StatusAllow InternalStatus = iota
	StatusWarn
	StatusHumanReview
	StatusDeny
)

func (s InternalStatus) String() string {
	switch s {
	case StatusAllow:
		return "allow"
	case StatusWarn:
		return "warn"
	case StatusHumanReview:
		return "human_review"
	case StatusDeny:
		return "deny"
	default:
		return "unknown"
	}
}

// Stricter returns the more severe of a and b.
func Stricter(a, b InternalStatus) InternalStatus {
	if b > a {
		return b
	}
	return a
}

// DecisionStatus is the coarse external verdict exposed to clients.
type DecisionStatus string

const (
	DecisionAllow DecisionStatus = "allow"
	DecisionHold  DecisionStatus = "hold"
	DecisionDeny  DecisionStatus = "deny"
)

// decisionStatusFor implements spec.md §4.3's mapping:
// allow→allow, warn→allow, human_review→hold, deny→deny.
func decisionStatusFor(s InternalStatus) DecisionStatus {
	switch s {
	case StatusDeny:
		return DecisionDeny
	case StatusHumanReview:
		return DecisionHold
	default:
		return DecisionAllow
	}
}

// ViolationTag names a specific safety concern a layer raised.
type ViolationTag struct {
	Layer     string `json:"layer"`
	Code      string `json:"code"`
	Detail    string `json:"detail,omitempty"`
	HardBlock bool   `json:"hard_block,omitempty"`
}

// PatchOp is the closed set of supported idempotent patch operations.
type PatchOp string

const (
	PatchRedact  PatchOp = "redact"
	PatchReplace PatchOp = "replace"
)

// Patch is one modification FUJI's PII layer (or another layer) proposes.
// Patches MUST be idempotent: Apply(Apply(d, p), p) == Apply(d, p)
// (spec.md §4.3 invariant), enforced by patch.go's structural design
// rather than by a runtime check on every call.
type Patch struct {
	Op    PatchOp `json:"op"`
	Path  string  `json:"path"`
	Value string  `json:"value,omitempty"`
}

// LayerOutcome is one layer's contribution to the aggregate FujiDecision.
// Plays the role the teacher's InterruptDecision plays per-rule-check.
type LayerOutcome struct {
	Layer            string         `json:"layer"`
	Risk             float64        `json:"risk"`
	Proposed         InternalStatus `json:"-"`
	Violations       []ViolationTag `json:"violations,omitempty"`
	Modifications    []Patch        `json:"modifications,omitempty"`
	SafeInstructions []string       `json:"safe_instructions,omitempty"`
	Err              error          `json:"-"`
}

// Decision is FUJI's full verdict (spec.md §3 "FujiDecision").
type Decision struct {
	InternalStatus   InternalStatus          `json:"internal_status"`
	DecisionStatus   DecisionStatus          `json:"decision_status"`
	RejectionReason  string                  `json:"rejection_reason,omitempty"`
	Risk             float64                 `json:"risk"`
	Violations       []ViolationTag          `json:"violations,omitempty"`
	Modifications    []Patch                 `json:"modifications,omitempty"`
	SafeInstructions []string                `json:"safe_instructions,omitempty"`
	LayerResults     map[string]LayerOutcome `json:"layer_results,omitempty"`
	Hold             *HoldDetail             `json:"hold,omitempty"`
}

// Input bundles everything a layer needs to evaluate one candidate
// decision. Deliberately narrow — each layer reads only the fields it
// needs, matching the teacher's per-check RoutingStep/RoutingPlan
// parameters rather than one do-everything context object.
type Input struct {
	Query     string
	Context   map[string]interface{}
	Evidence  []core.EvidenceItem
	Candidate *core.CandidateOption
}

// clamp01 clamps x into [0, 1], used throughout aggregation.
func clamp01(x float64) float64 {
	return Clamp01(x)
}

// Clamp01 clamps x into [0, 1]. Exported for use by fuji/layers.
func Clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
