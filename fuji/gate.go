package fuji

import (
	"context"
	"fmt"

	"github.com/veritasfuji-japan/veritas/core"
)

// Layer evaluates one safety dimension against an Input and contributes a
// LayerOutcome. Layers are evaluated in the Gate's declared order; a
// layer's own failure is absorbed into its documented baseline risk rather
// than aborting the gate (spec.md §4.3 "Failure semantics").
type Layer interface {
	Name() string
	Evaluate(ctx context.Context, in Input, cfg Config) LayerOutcome
}

// Weights are the three aggregation weights from spec.md §4.3's default
// {0.2, 0.5, 0.3} for {keyword, safety_head, policy}.
type Weights struct {
	Keyword    float64
	SafetyHead float64
	Policy     float64
}

// Config configures one Gate.Evaluate call.
type Config struct {
	Weights         Weights
	RejectThreshold float64
	HoldThreshold   float64
	MinEvidence     int
	HardBlockCodes  map[string]bool
	Logger          core.Logger
}

// DefaultHardBlockCodes is the configurable set of violation codes that
// force internal_status to deny regardless of aggregate risk (spec.md
// §4.3 "If any layer raises a 'hard-block' violation ... internal_status
// is forced to deny").
func DefaultHardBlockCodes() map[string]bool {
	return map[string]bool{
		"banned_keyword_self_harm": true,
		"banned_keyword_violence":  true,
		"policy_hard_block":        true,
	}
}

// Gate runs every Layer in declared order and aggregates the result into
// one coerced Decision.
type Gate struct {
	layers []Layer
}

// NewGate builds a Gate from layers in the exact evaluation order spec.md
// §4.3 lists them: keyword/pattern, safety-head, policy, evidence-gate,
// PII.
func NewGate(layers ...Layer) *Gate {
	return &Gate{layers: layers}
}

// Evaluate runs every layer, aggregates risk and status, and coerces the
// cross-field invariants (spec.md §4.3 "Aggregation"/"Coerced invariants").
// The gate itself never returns an error: a layer that fails contributes a
// fallback outcome and Evaluate still yields a valid Decision. The separate
// Unavailable() decision (human_review, decision_status hold, reason
// "fuji_unavailable") is what the fuji_gate stage records when it has no
// gate to run.
func (g *Gate) Evaluate(ctx context.Context, in Input, cfg Config) Decision {
	if cfg.HardBlockCodes == nil {
		cfg.HardBlockCodes = DefaultHardBlockCodes()
	}
	if cfg.Logger == nil {
		cfg.Logger = &core.NoOpLogger{}
	}

	results := make(map[string]LayerOutcome, len(g.layers))
	var violations []ViolationTag
	var modifications []Patch
	var safeInstructions []string
	status := StatusAllow
	hardBlocked := false

	var riskKeyword, riskHead, riskPolicy float64

	for _, layer := range g.layers {
		outcome := g.runLayer(ctx, layer, in, cfg)
		results[layer.Name()] = outcome

		switch layer.Name() {
		case "keyword":
			riskKeyword = outcome.Risk
		case "safety_head":
			riskHead = outcome.Risk
		case "policy":
			riskPolicy = outcome.Risk
		}

		status = Stricter(status, outcome.Proposed)
		violations = append(violations, outcome.Violations...)
		modifications = append(modifications, outcome.Modifications...)
		safeInstructions = append(safeInstructions, outcome.SafeInstructions...)

		for _, v := range outcome.Violations {
			if v.HardBlock || cfg.HardBlockCodes[v.Code] {
				hardBlocked = true
			}
		}
	}

	risk := clamp01(cfg.Weights.Keyword*riskKeyword + cfg.Weights.SafetyHead*riskHead + cfg.Weights.Policy*riskPolicy)

	if hardBlocked {
		status = StatusDeny
	}

	decision := Decision{
		InternalStatus:   status,
		DecisionStatus:   decisionStatusFor(status),
		Risk:             risk,
		Violations:       violations,
		Modifications:    modifications,
		SafeInstructions: safeInstructions,
		LayerResults:     results,
	}

	decision = coerceInvariants(decision)
	decision.Hold = buildHoldDetail(decision)
	return decision
}

// runLayer evaluates a single layer, converting a panic or an explicit
// error into the layer's documented baseline-risk outcome rather than
// letting it escape (spec.md §4.3 "A layer's failure is not fatal for the
// gate as a whole").
func (g *Gate) runLayer(ctx context.Context, layer Layer, in Input, cfg Config) (outcome LayerOutcome) {
	defer func() {
		if r := recover(); r != nil {
			cfg.Logger.Error("fuji: layer panicked", map[string]interface{}{"layer": layer.Name(), "panic": fmt.Sprintf("%v", r)})
			outcome = LayerOutcome{
				Layer:    layer.Name(),
				Risk:     0.30,
				Proposed: StatusHumanReview,
				Violations: []ViolationTag{{
					Layer: layer.Name(), Code: layer.Name() + "_panic", Detail: fmt.Sprintf("%v", r),
				}},
			}
		}
	}()
	return layer.Evaluate(ctx, in, cfg)
}

// coerceInvariants enforces the two cross-field rules spec.md §4.3
// documents, applied as a pure post-aggregation function so it is
// independently unit-testable:
//   - internal_status = deny ⇒ decision_status = deny (reason defaults to
//     "policy_deny_coerce" if empty)
//   - decision_status = deny ⇒ rejection_reason non-empty (defaults to
//     "policy_or_poc_gate_deny")
func coerceInvariants(d Decision) Decision {
	if d.InternalStatus == StatusDeny && d.DecisionStatus != DecisionDeny {
		d.DecisionStatus = DecisionDeny
		if d.RejectionReason == "" {
			d.RejectionReason = "policy_deny_coerce"
		}
	}
	if d.DecisionStatus == DecisionDeny && d.RejectionReason == "" {
		d.RejectionReason = "policy_or_poc_gate_deny"
	}
	return d
}

// Unavailable builds the Decision the pipeline substitutes when the gate
// itself could not produce a valid result (spec.md §4.3 "if the gate
// cannot produce a valid FujiDecision, the pipeline returns hold with
// rejection_reason = 'fuji_unavailable'").
func Unavailable() Decision {
	d := Decision{
		InternalStatus:  StatusHumanReview,
		DecisionStatus:  DecisionHold,
		RejectionReason: "fuji_unavailable",
	}
	d.Hold = buildHoldDetail(d)
	return d
}
