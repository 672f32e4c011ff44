package layers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veritasfuji-japan/veritas/fuji"
	"github.com/veritasfuji-japan/veritas/policy"
)

func TestPolicyDeniesWhenCategoryExceedsHardLimit(t *testing.T) {
	p := NewPolicy(policy.NewStore(policy.Default()), nil)
	out := p.Evaluate(context.Background(), fuji.Input{Query: "I want to end my life"}, fuji.Config{})
	require.Equal(t, fuji.StatusDeny, out.Proposed)
	require.Equal(t, "policy_hard_block", out.Violations[0].Code)
}

func TestPolicyAllowsWhenNoCategoryMatches(t *testing.T) {
	p := NewPolicy(policy.NewStore(policy.Default()), nil)
	out := p.Evaluate(context.Background(), fuji.Input{Query: "what's the weather like"}, fuji.Config{})
	require.Equal(t, fuji.StatusAllow, out.Proposed)
	require.Empty(t, out.Violations)
}

func TestPolicyHumanReviewForHarassmentCategory(t *testing.T) {
	doc := &policy.Document{
		Categories: []policy.CategoryRule{
			{Category: "harassment", MaxRiskAllow: 0.1, ActionOnExceed: policy.ActionHumanReview},
		},
	}
	p := NewPolicy(policy.NewStore(doc), func(category, text string) float64 {
		if category == "harassment" {
			return 0.5
		}
		return 0
	})
	out := p.Evaluate(context.Background(), fuji.Input{Query: "anything"}, fuji.Config{})
	require.Equal(t, fuji.StatusHumanReview, out.Proposed)
	require.False(t, out.Violations[0].HardBlock)
}
