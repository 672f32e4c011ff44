// Package layers implements the five FUJI safety layers of spec.md §4.3 as
// fuji.Layer values, each grounded on a distinct part of the retrieval
// pack: the keyword layer on simple substring/regex matching (no example
// repo does this more cleverly than the stdlib regexp package), the
// safety-head layer on the teacher's resilience.CircuitBreaker-wrapped
// external-call pattern, and the policy/evidence-gate/PII layers on the
// declarative rule-evaluation shape of RuleBasedPolicy
// (fuji/hitl_policy_source.go).
package layers

import (
	"context"
	"regexp"
	"strings"

	"github.com/veritasfuji-japan/veritas/fuji"
)

// KeywordCategory is one banned-phrase category: a literal keyword list
// plus optional regex patterns (e.g. prompt-injection phrasing that a
// plain substring match would miss).
type KeywordCategory struct {
	Name     string
	Keywords []string
	Patterns []*regexp.Regexp
	Risk     float64 // contribution to risk_keyword if this category matches
	HardBlock bool
}

// DefaultCategories returns the built-in banned-keyword/pattern set.
// Real deployments override this via the policy file (see package policy);
// this is the baseline the keyword layer falls back to when no policy is
// loaded.
func DefaultCategories() []KeywordCategory {
	return []KeywordCategory{
		{
			Name:     "self_harm",
			Keywords: []string{"kill myself", "end my life", "suicide method"},
			Risk:     1.0,
			HardBlock: true,
		},
		{
			Name:     "violence",
			Keywords: []string{"build a bomb", "how to make a weapon to hurt"},
			Risk:     1.0,
			HardBlock: true,
		},
		{
			Name: "prompt_injection",
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)ignore (all (previous |prior )?|previous |prior )instructions`),
				regexp.MustCompile(`(?i)you are now in developer mode`),
			},
			Risk: 0.6,
		},
	}
}

// Keyword is the layer-1 "Keyword/pattern layer" (spec.md §4.3.1).
type Keyword struct {
	Categories []KeywordCategory
}

// NewKeyword builds a Keyword layer from the given categories, falling
// back to DefaultCategories when none are supplied.
func NewKeyword(categories ...KeywordCategory) *Keyword {
	if len(categories) == 0 {
		categories = DefaultCategories()
	}
	return &Keyword{Categories: categories}
}

func (k *Keyword) Name() string { return "keyword" }

func (k *Keyword) Evaluate(_ context.Context, in fuji.Input, _ fuji.Config) fuji.LayerOutcome {
	text := strings.ToLower(in.Query)

	var violations []fuji.ViolationTag
	maxRisk := 0.0
	status := fuji.StatusAllow

	for _, cat := range k.Categories {
		if matched := matchCategory(text, in.Query, cat); matched {
			if cat.Risk > maxRisk {
				maxRisk = cat.Risk
			}
			code := "banned_keyword_" + cat.Name
			violations = append(violations, fuji.ViolationTag{
				Layer: "keyword", Code: code, Detail: "matched category " + cat.Name, HardBlock: cat.HardBlock,
			})
			if cat.HardBlock {
				status = fuji.StatusDeny
			} else {
				status = fuji.Stricter(status, fuji.StatusWarn)
			}
		}
	}

	return fuji.LayerOutcome{
		Layer:      "keyword",
		Risk:       maxRisk,
		Proposed:   status,
		Violations: violations,
	}
}

func matchCategory(lowerText, rawText string, cat KeywordCategory) bool {
	for _, kw := range cat.Keywords {
		if strings.Contains(lowerText, strings.ToLower(kw)) {
			return true
		}
	}
	for _, p := range cat.Patterns {
		if p.MatchString(rawText) {
			return true
		}
	}
	return false
}
