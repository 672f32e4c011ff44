package layers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veritasfuji-japan/veritas/core"
	"github.com/veritasfuji-japan/veritas/fuji"
)

type fakeAIClient struct {
	content string
	err     error
}

func (f *fakeAIClient) Generate(_ context.Context, _ string) (core.AIResponse, error) {
	if f.err != nil {
		return core.AIResponse{}, f.err
	}
	return core.AIResponse{Content: f.content}, nil
}

func verdictJSON(t *testing.T, risk float64) string {
	t.Helper()
	b, err := json.Marshal(map[string]interface{}{"risk": risk, "categories": map[string]float64{}})
	require.NoError(t, err)
	return string(b)
}

func TestSafetyHeadUnavailableFallsBackToBaseline(t *testing.T) {
	s := &SafetyHead{Client: core.Unavailable[core.AIClient](errors.New("not configured"))}
	out := s.Evaluate(context.Background(), fuji.Input{Query: "hello"}, fuji.Config{})
	require.Equal(t, safetyHeadBaselineRisk, out.Risk)
	require.Equal(t, fuji.StatusWarn, out.Proposed)
	require.Equal(t, "safety_head_unavailable", out.Violations[0].Code)
}

func TestSafetyHeadErrorFallsBackToBaseline(t *testing.T) {
	s := &SafetyHead{Client: core.Available[core.AIClient](&fakeAIClient{err: errors.New("timeout")})}
	out := s.Evaluate(context.Background(), fuji.Input{Query: "hello"}, fuji.Config{})
	require.Equal(t, safetyHeadBaselineRisk, out.Risk)
	require.Equal(t, fuji.StatusWarn, out.Proposed)
}

func TestSafetyHeadHighRiskDeniesAboveRejectThreshold(t *testing.T) {
	s := &SafetyHead{Client: core.Available[core.AIClient](&fakeAIClient{content: verdictJSON(t, 0.9)})}
	out := s.Evaluate(context.Background(), fuji.Input{Query: "hello"}, fuji.Config{RejectThreshold: 0.75, HoldThreshold: 0.4})
	require.Equal(t, fuji.StatusDeny, out.Proposed)
	require.Equal(t, "safety_head_high_risk", out.Violations[0].Code)
}

func TestSafetyHeadModerateRiskHumanReview(t *testing.T) {
	s := &SafetyHead{Client: core.Available[core.AIClient](&fakeAIClient{content: verdictJSON(t, 0.5)})}
	out := s.Evaluate(context.Background(), fuji.Input{Query: "hello"}, fuji.Config{RejectThreshold: 0.75, HoldThreshold: 0.4})
	require.Equal(t, fuji.StatusHumanReview, out.Proposed)
}

func TestSafetyHeadLowRiskAllows(t *testing.T) {
	s := &SafetyHead{Client: core.Available[core.AIClient](&fakeAIClient{content: verdictJSON(t, 0.05)})}
	out := s.Evaluate(context.Background(), fuji.Input{Query: "hello"}, fuji.Config{RejectThreshold: 0.75, HoldThreshold: 0.4})
	require.Equal(t, fuji.StatusAllow, out.Proposed)
}
