package pipeline

import (
	"context"
	"fmt"

	"github.com/veritasfuji-japan/veritas/core"
)

// CritiqueThresholds are the configurable floors/ceilings spec.md §4.2
// "run_critique" names ("Thresholds MUST be configurable via the context;
// defaults are the values above").
type CritiqueThresholds struct {
	MinEvidence             int
	RiskThreshold           float64
	ComplexityThreshold     float64
	LowValueThreshold       float64
	LowFeasibilityThreshold float64
	TimelineThresholdDays   float64
}

// DefaultCritiqueThresholds returns spec.md §4.2's documented defaults.
func DefaultCritiqueThresholds() CritiqueThresholds {
	return CritiqueThresholds{
		MinEvidence:             2,
		RiskThreshold:           0.7,
		ComplexityThreshold:     5,
		LowValueThreshold:       0.3,
		LowFeasibilityThreshold: 0.3,
		TimelineThresholdDays:   90,
	}
}

// thresholdsFromContext overlays any caller-supplied overrides found under
// context["critique_thresholds"] onto the defaults, per spec.md §4.2.
func thresholdsFromContext(ctx map[string]interface{}) CritiqueThresholds {
	t := DefaultCritiqueThresholds()
	raw, ok := ctx["critique_thresholds"]
	if !ok {
		return t
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return t
	}
	if v, ok := floatFromAny(m["min_evidence"]); ok {
		t.MinEvidence = int(v)
	}
	if v, ok := floatFromAny(m["risk_threshold"]); ok {
		t.RiskThreshold = v
	}
	if v, ok := floatFromAny(m["complexity_threshold"]); ok {
		t.ComplexityThreshold = v
	}
	if v, ok := floatFromAny(m["low_value_threshold"]); ok {
		t.LowValueThreshold = v
	}
	if v, ok := floatFromAny(m["low_feasibility_threshold"]); ok {
		t.LowFeasibilityThreshold = v
	}
	if v, ok := floatFromAny(m["timeline_threshold_days"]); ok {
		t.TimelineThresholdDays = v
	}
	return t
}

func floatFromAny(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// runCritiqueStage is the best-effort "run_critique" stage (spec.md §4.2):
// for every candidate option, emits each required check only when its
// condition holds, keyed by Issue so repeats across options still collapse
// into one flat set per spec.md §3 "unordered set keyed by issue".
// Timeline/feasibility are request-level hints (context["timeline_days"],
// context["feasibility"]) since core.CandidateOption carries no per-option
// timeline/feasibility fields.
var runCritiqueStage = Stage{
	Name:     "run_critique",
	Critical: false,
	Run: func(_ context.Context, req *core.Request, state *RequestState, cfg *core.Config, _ core.Services) StageResult {
		thresholds := thresholdsFromContext(req.Context)
		cap := cfg.Pipeline.MaxCritiques
		if cap <= 0 {
			cap = core.MaxCritiques
		}

		timelineDays, hasTimeline := floatFromAny(req.Context["timeline_days"])
		feasibility, hasFeasibility := floatFromAny(req.Context["feasibility"])

		for _, opt := range state.Options {
			if len(state.Evidence) < thresholds.MinEvidence {
				state.addCritique(opt.ID, core.Critique{
					Issue:    "insufficient_evidence",
					Severity: core.SeverityHigh,
					Fix:      "gather additional supporting evidence before proceeding",
					Details:  map[string]interface{}{"evidence_count": len(state.Evidence), "required": thresholds.MinEvidence},
				}, cap)
			}
			if opt.RiskOrZero() > thresholds.RiskThreshold {
				state.addCritique(opt.ID, core.Critique{
					Issue:    "high_risk",
					Severity: core.SeverityHigh,
					Fix:      "mitigate risk factors or choose a lower-risk option",
					Details:  map[string]interface{}{"option_id": opt.ID, "risk": opt.RiskOrZero()},
				}, cap)
			}
			if opt.ComplexityOrZero() > thresholds.ComplexityThreshold {
				state.addCritique(opt.ID, core.Critique{
					Issue:    "excessive_complexity",
					Severity: core.SeverityMedium,
					Fix:      "break the option into smaller steps",
					Details:  map[string]interface{}{"option_id": opt.ID, "complexity": opt.ComplexityOrZero()},
				}, cap)
			}
			if opt.Score != nil && opt.ScoreOrZero() < thresholds.LowValueThreshold {
				state.addCritique(opt.ID, core.Critique{
					Issue:    "low_value",
					Severity: core.SeverityMedium,
					Fix:      "reconsider whether this option is worth pursuing",
					Details:  map[string]interface{}{"option_id": opt.ID, "score": opt.ScoreOrZero()},
				}, cap)
			}
			if opt.RiskOrZero() > 0.5 && opt.ScoreOrZero() < 0.3 {
				state.addCritique(opt.ID, core.Critique{
					Issue:    "risk_value_imbalance",
					Severity: core.SeverityMedium,
					Fix:      "the risk/value ratio is unfavorable; look for a better-balanced option",
					Details:  map[string]interface{}{"option_id": opt.ID, "risk": opt.RiskOrZero(), "score": opt.ScoreOrZero()},
				}, cap)
			}
		}

		if hasFeasibility && feasibility < thresholds.LowFeasibilityThreshold {
			state.addCritique("", core.Critique{
				Issue:    "low_feasibility",
				Severity: core.SeverityMedium,
				Fix:      "address feasibility blockers before proceeding",
				Details:  map[string]interface{}{"feasibility": feasibility},
			}, cap)
		}
		if hasTimeline && timelineDays > thresholds.TimelineThresholdDays {
			state.addCritique("", core.Critique{
				Issue:    "excessive_timeline",
				Severity: core.SeverityLow,
				Fix:      fmt.Sprintf("the estimated timeline of %.0f days exceeds the %.0f day threshold", timelineDays, thresholds.TimelineThresholdDays),
				Details:  map[string]interface{}{"timeline_days": timelineDays},
			}, cap)
		}

		return Update()
	},
	ApplySkip: func(state *RequestState, raw interface{}) error {
		critiques, err := castCritiques(raw)
		if err != nil {
			return err
		}
		state.Critiques = critiques
		return nil
	},
}

func castCritiques(raw interface{}) ([]core.Critique, error) {
	switch v := raw.(type) {
	case []core.Critique:
		return v, nil
	case nil:
		return nil, nil
	default:
		return nil, errCastType("run_critique", "[]core.Critique", v)
	}
}
