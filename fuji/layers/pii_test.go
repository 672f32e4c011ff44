package layers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veritasfuji-japan/veritas/core"
	"github.com/veritasfuji-japan/veritas/fuji"
)

func TestPIIFlagsAndRedactsEmailInRationale(t *testing.T) {
	p := NewPII(nil, 0)
	candidate := &core.CandidateOption{Title: "Plan A", Rationale: "contact jane.doe@example.com for details"}
	out := p.Evaluate(context.Background(), fuji.Input{Candidate: candidate}, fuji.Config{})
	require.Equal(t, fuji.StatusWarn, out.Proposed)
	require.Len(t, out.Modifications, 1)
	require.Equal(t, fuji.PatchRedact, out.Modifications[0].Op)
	require.Equal(t, "rationale", out.Modifications[0].Path)
}

func TestPIIIgnoresLowConfidenceMatches(t *testing.T) {
	p := NewPII(nil, 0.99)
	candidate := &core.CandidateOption{Title: "Plan A", Rationale: "call 555-123-4567"}
	out := p.Evaluate(context.Background(), fuji.Input{Candidate: candidate}, fuji.Config{})
	require.Equal(t, fuji.StatusAllow, out.Proposed)
	require.Empty(t, out.Modifications)
}

func TestPIIAllowsCleanText(t *testing.T) {
	p := NewPII(nil, 0)
	out := p.Evaluate(context.Background(), fuji.Input{Query: "what's the capital of France"}, fuji.Config{})
	require.Equal(t, fuji.StatusAllow, out.Proposed)
}
