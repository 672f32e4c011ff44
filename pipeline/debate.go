package pipeline

import (
	"context"

	"github.com/veritasfuji-japan/veritas/core"
)

// runDebateStage is the best-effort "run_debate" stage (spec.md §4.2): a
// three-tier selection over the enriched options, guaranteeing a non-null
// chosen option whenever at least one option exists (spec.md §3
// "Invariant: chosen is always non-null whenever at least one option
// existed").
var runDebateStage = Stage{
	Name:     "run_debate",
	Critical: false,
	Run: func(_ context.Context, _ *core.Request, state *RequestState, _ *core.Config, _ core.Services) StageResult {
		state.Debate = selectDebate(state.Options)
		return Update()
	},
	ApplySkip: func(state *RequestState, raw interface{}) error {
		d, err := castDebateResult(raw)
		if err != nil {
			return err
		}
		state.Debate = d
		return nil
	},
}

func selectDebate(options []core.CandidateOption) *core.DebateResult {
	enriched := append([]core.CandidateOption(nil), options...)

	result := &core.DebateResult{EnrichedOptions: enriched}

	if len(enriched) == 0 {
		result.Mode = core.DebateNormal
		return result
	}

	minRisk := enriched[0].RiskOrZero()
	for _, o := range enriched[1:] {
		if o.RiskOrZero() < minRisk {
			minRisk = o.RiskOrZero()
		}
	}

	// Tier 1: normal. Max-score among non-rejected options with score >= 0.4.
	if chosen := maxScore(enriched, 0.4, func(o core.CandidateOption) bool {
		return o.Verdict != core.VerdictRejected
	}); chosen != nil {
		result.Chosen = chosen
		result.Mode = core.DebateNormal
		result.RiskDelta = clampRiskDelta(chosen.RiskOrZero() - minRisk)
		return result
	}

	// Tier 2: degraded. Max-score among all options with score >= 0.2.
	if chosen := maxScore(enriched, 0.2, func(core.CandidateOption) bool { return true }); chosen != nil {
		result.Chosen = chosen
		result.Mode = core.DebateDegraded
		result.Warnings = append(result.Warnings, "no option reached the normal-tier acceptance score; degraded selection in effect")
		result.RiskDelta = clampRiskDelta(chosen.RiskOrZero() - minRisk)
		return result
	}

	// Tier 3: safe_fallback. First option, strong warning.
	chosen := enriched[0]
	result.Chosen = &chosen
	result.Mode = core.DebateSafeFallback
	result.Warnings = append(result.Warnings, "no option met any acceptance threshold; falling back to the first submitted option under review")
	result.RiskDelta = clampRiskDelta(chosen.RiskOrZero() - minRisk)
	return result
}

func maxScore(options []core.CandidateOption, minScore float64, eligible func(core.CandidateOption) bool) *core.CandidateOption {
	var best *core.CandidateOption
	for i := range options {
		o := options[i]
		if !eligible(o) || o.ScoreOrZero() < minScore {
			continue
		}
		if best == nil || o.ScoreOrZero() > best.ScoreOrZero() {
			b := o
			best = &b
		}
	}
	return best
}

func clampRiskDelta(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func castDebateResult(raw interface{}) (*core.DebateResult, error) {
	switch v := raw.(type) {
	case *core.DebateResult:
		return v, nil
	case nil:
		return nil, nil
	default:
		return nil, errCastType("run_debate", "*core.DebateResult", v)
	}
}
