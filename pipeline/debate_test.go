package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veritasfuji-japan/veritas/core"
)

func scoreOpt(id string, score, risk float64, verdict core.Verdict) core.CandidateOption {
	return core.CandidateOption{ID: id, Score: &score, Risk: &risk, Verdict: verdict}
}

func TestSelectDebateNoOptionsYieldsNilChosen(t *testing.T) {
	result := selectDebate(nil)
	require.Nil(t, result.Chosen)
	require.Equal(t, core.DebateNormal, result.Mode)
}

func TestSelectDebateNormalTier(t *testing.T) {
	options := []core.CandidateOption{
		scoreOpt("a", 0.9, 0.1, core.VerdictAccepted),
		scoreOpt("b", 0.5, 0.2, core.VerdictAccepted),
	}
	result := selectDebate(options)
	require.NotNil(t, result.Chosen)
	require.Equal(t, "a", result.Chosen.ID)
	require.Equal(t, core.DebateNormal, result.Mode)
	require.InDelta(t, 0.0, result.RiskDelta, 1e-9)
}

func TestSelectDebateSkipsRejectedInNormalTier(t *testing.T) {
	options := []core.CandidateOption{
		scoreOpt("a", 0.95, 0.1, core.VerdictRejected),
		scoreOpt("b", 0.45, 0.3, core.VerdictAccepted),
	}
	result := selectDebate(options)
	require.Equal(t, "b", result.Chosen.ID)
	require.Equal(t, core.DebateNormal, result.Mode)
}

func TestSelectDebateDegradedTier(t *testing.T) {
	options := []core.CandidateOption{
		scoreOpt("a", 0.3, 0.4, core.VerdictRejected),
		scoreOpt("b", 0.25, 0.5, core.VerdictNeedsReview),
	}
	result := selectDebate(options)
	require.NotNil(t, result.Chosen)
	require.Equal(t, "a", result.Chosen.ID)
	require.Equal(t, core.DebateDegraded, result.Mode)
	require.NotEmpty(t, result.Warnings)
}

func TestSelectDebateSafeFallbackTier(t *testing.T) {
	options := []core.CandidateOption{
		scoreOpt("a", 0.05, 0.9, core.VerdictRejected),
		scoreOpt("b", 0.1, 0.8, core.VerdictRejected),
	}
	result := selectDebate(options)
	require.NotNil(t, result.Chosen)
	require.Equal(t, "a", result.Chosen.ID)
	require.Equal(t, core.DebateSafeFallback, result.Mode)
	require.NotEmpty(t, result.Warnings)
}

func TestSelectDebateRiskDeltaClamped(t *testing.T) {
	options := []core.CandidateOption{
		scoreOpt("a", 0.9, 1.0, core.VerdictAccepted),
		scoreOpt("b", 0.1, 0.0, core.VerdictAccepted),
	}
	result := selectDebate(options)
	require.Equal(t, "a", result.Chosen.ID)
	require.InDelta(t, 1.0, result.RiskDelta, 1e-9)
}
