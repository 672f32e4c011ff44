// Package policy models the FUJI policy file (spec.md §6 "Policy file
// (external)"): a declarative document describing categories, per-category
// risk caps and actions, PII sensitivity, and layer weights, loaded at
// startup and hot-reloaded on content change.
package policy

import "fmt"

// Action is the declared response when a category rule's risk cap is
// exceeded (spec.md §4.3.3 "Policy layer").
type Action string

const (
	ActionAllow       Action = "allow"
	ActionModify      Action = "modify"
	ActionHumanReview Action = "human_review"
	ActionDeny        Action = "deny"
)

// CategoryRule is one declarative rule, e.g. "self_harm.max_risk_allow =
// 0.05, action_on_exceed = deny" from spec.md §4.3.3.
type CategoryRule struct {
	Category       string  `yaml:"category"`
	MaxRiskAllow   float64 `yaml:"max_risk_allow"`
	ActionOnExceed Action  `yaml:"action_on_exceed"`
}

// Weights mirrors fuji.Weights without importing package fuji (policy must
// stay a leaf dependency of fuji/layers, not the reverse).
type Weights struct {
	Keyword    float64 `yaml:"keyword"`
	SafetyHead float64 `yaml:"safety_head"`
	Policy     float64 `yaml:"policy"`
}

// Document is the full parsed policy file.
type Document struct {
	Version                string         `yaml:"version"`
	Categories              []CategoryRule `yaml:"categories"`
	MinEvidence             int            `yaml:"min_evidence"`
	PIIConfidenceThreshold  float64        `yaml:"pii_confidence_threshold"`
	Weights                 Weights        `yaml:"weights"`
	RejectThreshold         float64        `yaml:"reject_threshold"`
	HoldThreshold           float64        `yaml:"hold_threshold"`
	HardBlockCategories     []string       `yaml:"hard_block_categories"`
}

// Validate rejects a document that would make the gate behave
// inconsistently, the same way core.Config.Validate guards against
// HoldThreshold >= RejectThreshold.
func (d *Document) Validate() error {
	if d.HoldThreshold >= d.RejectThreshold && d.RejectThreshold != 0 {
		return fmt.Errorf("policy: hold_threshold must be below reject_threshold")
	}
	for _, c := range d.Categories {
		if c.MaxRiskAllow < 0 || c.MaxRiskAllow > 1 {
			return fmt.Errorf("policy: category %q max_risk_allow out of [0,1]", c.Category)
		}
		switch c.ActionOnExceed {
		case ActionAllow, ActionModify, ActionHumanReview, ActionDeny:
		default:
			return fmt.Errorf("policy: category %q has unknown action_on_exceed %q", c.Category, c.ActionOnExceed)
		}
	}
	return nil
}

// Default returns the built-in policy used when no policy file is
// configured, matching the default thresholds/weights in spec.md §4.3.
func Default() *Document {
	return &Document{
		Version:     "default",
		MinEvidence: 2,
		Weights:     Weights{Keyword: 0.2, SafetyHead: 0.5, Policy: 0.3},
		Categories: []CategoryRule{
			{Category: "self_harm", MaxRiskAllow: 0.05, ActionOnExceed: ActionDeny},
			{Category: "violence", MaxRiskAllow: 0.10, ActionOnExceed: ActionDeny},
			{Category: "harassment", MaxRiskAllow: 0.30, ActionOnExceed: ActionHumanReview},
		},
		PIIConfidenceThreshold: 0.85,
		RejectThreshold:        0.75,
		HoldThreshold:          0.40,
		HardBlockCategories:    []string{"self_harm", "violence"},
	}
}
