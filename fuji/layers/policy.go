package layers

import (
	"context"
	"strings"

	"github.com/veritasfuji-japan/veritas/fuji"
	"github.com/veritasfuji-japan/veritas/policy"
)

// CategoryScorer estimates how strongly text matches a named category,
// returning a risk in [0, 1]. The default scorer reuses the keyword layer's
// DefaultCategories table; a deployment can supply its own (e.g. backed by
// the safety-head classifier's per-category scores) without changing the
// Policy layer's rule-evaluation shape.
type CategoryScorer func(category, text string) float64

// DefaultCategoryScorer matches the given category's keywords/patterns from
// DefaultCategories against text, returning that category's configured risk
// on a match and 0 otherwise.
func DefaultCategoryScorer(category, text string) float64 {
	lower := strings.ToLower(text)
	for _, cat := range DefaultCategories() {
		if cat.Name != category {
			continue
		}
		if matchCategory(lower, text, cat) {
			return cat.Risk
		}
	}
	return 0
}

// Policy is the layer-3 "Policy layer" (spec.md §4.3.3): applies the
// policy document's declarative category rules in declared order, the
// first exceeding rule determining the proposed action. Grounded on the
// teacher's RuleBasedPolicy ordered rule-check loop
// (fuji/hitl_policy_source.go), generalized from a fixed Go switch to a
// data-driven rule list loaded from package policy.
type Policy struct {
	Store  *policy.Store
	Scorer CategoryScorer
}

// NewPolicy builds a Policy layer backed by store, defaulting to
// DefaultCategoryScorer when scorer is nil.
func NewPolicy(store *policy.Store, scorer CategoryScorer) *Policy {
	if scorer == nil {
		scorer = DefaultCategoryScorer
	}
	return &Policy{Store: store, Scorer: scorer}
}

func (p *Policy) Name() string { return "policy" }

func (p *Policy) Evaluate(_ context.Context, in fuji.Input, _ fuji.Config) fuji.LayerOutcome {
	doc := policy.Default()
	if p.Store != nil {
		doc = p.Store.Current()
	}

	hardBlock := make(map[string]bool, len(doc.HardBlockCategories))
	for _, c := range doc.HardBlockCategories {
		hardBlock[c] = true
	}

	status := fuji.StatusAllow
	maxRisk := 0.0
	var violations []fuji.ViolationTag

	for _, rule := range doc.Categories {
		risk := p.Scorer(rule.Category, in.Query)
		if risk <= rule.MaxRiskAllow {
			continue
		}
		if risk > maxRisk {
			maxRisk = risk
		}

		code := "policy_" + rule.Category + "_exceeded"
		isHard := hardBlock[rule.Category] || rule.ActionOnExceed == policy.ActionDeny
		if isHard {
			code = "policy_hard_block"
		}
		violations = append(violations, fuji.ViolationTag{
			Layer: "policy", Code: code, Detail: "category " + rule.Category + " exceeded max_risk_allow", HardBlock: isHard,
		})

		switch rule.ActionOnExceed {
		case policy.ActionDeny:
			status = fuji.StatusDeny
		case policy.ActionHumanReview:
			status = fuji.Stricter(status, fuji.StatusHumanReview)
		case policy.ActionModify:
			status = fuji.Stricter(status, fuji.StatusWarn)
		}

		// First exceeding rule wins (spec.md §4.3.3): stop scanning further
		// categories once one has determined the proposed action.
		break
	}

	return fuji.LayerOutcome{
		Layer:      "policy",
		Risk:       maxRisk,
		Proposed:   status,
		Violations: violations,
	}
}
