package layers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veritasfuji-japan/veritas/core"
	"github.com/veritasfuji-japan/veritas/fuji"
)

func TestEvidenceGateAllowsWhenEnoughEvidence(t *testing.T) {
	e := NewEvidenceGate(2)
	in := fuji.Input{Evidence: []core.EvidenceItem{{Source: "a"}, {Source: "b"}}}
	out := e.Evaluate(context.Background(), in, fuji.Config{})
	require.Equal(t, fuji.StatusAllow, out.Proposed)
}

func TestEvidenceGateHoldsWhenBelowMinimum(t *testing.T) {
	e := NewEvidenceGate(2)
	in := fuji.Input{Evidence: []core.EvidenceItem{{Source: "a"}}}
	out := e.Evaluate(context.Background(), in, fuji.Config{})
	require.Equal(t, fuji.StatusHumanReview, out.Proposed)
	require.Equal(t, "insufficient_evidence", out.Violations[0].Code)
}

func TestEvidenceGateFallsBackToConfigMinimum(t *testing.T) {
	e := NewEvidenceGate(0)
	in := fuji.Input{Evidence: nil}
	out := e.Evaluate(context.Background(), in, fuji.Config{MinEvidence: 1})
	require.Equal(t, fuji.StatusHumanReview, out.Proposed)
}
