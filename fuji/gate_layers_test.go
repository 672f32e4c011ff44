package fuji_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veritasfuji-japan/veritas/core"
	"github.com/veritasfuji-japan/veritas/fuji"
	"github.com/veritasfuji-japan/veritas/fuji/layers"
	"github.com/veritasfuji-japan/veritas/policy"
)

func fullGate() *fuji.Gate {
	return fuji.NewGate(
		layers.NewKeyword(),
		&layers.SafetyHead{Client: core.Unavailable[core.AIClient](core.ErrNotInitialized)},
		layers.NewPolicy(policy.NewStore(policy.Default()), nil),
		layers.NewEvidenceGate(2),
		layers.NewPII(nil, 0.85),
	)
}

func TestGateAllowsBenignWellEvidencedRequest(t *testing.T) {
	g := fullGate()
	in := fuji.Input{
		Query:    "what's a good lasagna recipe",
		Evidence: []core.EvidenceItem{{Source: "a"}, {Source: "b"}},
	}
	cfg := fuji.Config{Weights: fuji.Weights{Keyword: 0.2, SafetyHead: 0.5, Policy: 0.3}, RejectThreshold: 0.75, HoldThreshold: 0.40, MinEvidence: 2}
	d := g.Evaluate(context.Background(), in, cfg)
	require.Equal(t, fuji.StatusWarn, d.InternalStatus)
	require.Equal(t, fuji.DecisionAllow, d.DecisionStatus)
}

func TestGateDeniesHardBlockedQueryRegardlessOfEvidence(t *testing.T) {
	g := fullGate()
	in := fuji.Input{
		Query:    "I want to end my life",
		Evidence: []core.EvidenceItem{{Source: "a"}, {Source: "b"}},
	}
	cfg := fuji.Config{Weights: fuji.Weights{Keyword: 0.2, SafetyHead: 0.5, Policy: 0.3}, RejectThreshold: 0.75, HoldThreshold: 0.40, MinEvidence: 2}
	d := g.Evaluate(context.Background(), in, cfg)
	require.Equal(t, fuji.StatusDeny, d.InternalStatus)
	require.Equal(t, fuji.DecisionDeny, d.DecisionStatus)
	require.NotEmpty(t, d.RejectionReason)
}

func TestGateHoldsOnInsufficientEvidence(t *testing.T) {
	g := fullGate()
	in := fuji.Input{Query: "benign query", Evidence: nil}
	cfg := fuji.Config{Weights: fuji.Weights{Keyword: 0.2, SafetyHead: 0.5, Policy: 0.3}, RejectThreshold: 0.75, HoldThreshold: 0.40, MinEvidence: 2}
	d := g.Evaluate(context.Background(), in, cfg)
	require.Equal(t, fuji.StatusHumanReview, d.InternalStatus)
	require.Equal(t, fuji.DecisionHold, d.DecisionStatus)
	require.Empty(t, d.RejectionReason)
}

func TestGateRedactsPIIInCandidate(t *testing.T) {
	g := fullGate()
	candidate := &core.CandidateOption{Title: "Plan A", Rationale: "email me at a@b.com"}
	in := fuji.Input{
		Query:     "benign query",
		Evidence:  []core.EvidenceItem{{Source: "a"}, {Source: "b"}},
		Candidate: candidate,
	}
	cfg := fuji.Config{Weights: fuji.Weights{Keyword: 0.2, SafetyHead: 0.5, Policy: 0.3}, RejectThreshold: 0.75, HoldThreshold: 0.40, MinEvidence: 2}
	d := g.Evaluate(context.Background(), in, cfg)
	require.Equal(t, fuji.StatusWarn, d.InternalStatus)
	require.NotEmpty(t, d.Modifications)
	patched := fuji.ApplyPatches(*candidate, d.Modifications)
	require.Equal(t, "[REDACTED]", patched.Rationale)
	require.True(t, fuji.Idempotent(*candidate, d.Modifications))
}
