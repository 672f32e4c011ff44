package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veritasfuji-japan/veritas/core"
	"github.com/veritasfuji-japan/veritas/trustlog"
)

func TestSealTrustLogStageNilLogFails(t *testing.T) {
	stage := newSealTrustLogStage(nil)
	state := NewRequestState()
	req := &core.Request{Query: "q", RequestID: "r1"}

	result := stage.Run(context.Background(), req, state, core.DefaultConfig(), core.Services{})
	require.Equal(t, ResultFail, result.Kind)
	require.ErrorIs(t, result.Err, core.ErrLogNotFound)
}

func TestSealTrustLogStageAppendsRecord(t *testing.T) {
	dir := t.TempDir()
	log, err := trustlog.Open(trustlog.DefaultConfig(dir))
	require.NoError(t, err)

	stage := newSealTrustLogStage(log)
	state := NewRequestState()
	score, risk := 0.8, 0.2
	state.Debate = &core.DebateResult{Chosen: &core.CandidateOption{ID: "a", Score: &score, Risk: &risk}}
	req := &core.Request{Query: "q", RequestID: "r2"}

	result := stage.Run(context.Background(), req, state, core.DefaultConfig(), core.Services{})
	require.Equal(t, ResultUpdate, result.Kind)
	require.NotNil(t, state.TrustLog)
	require.Equal(t, "r2", state.TrustLog.RequestID)
	require.Len(t, state.TrustLog.SHA256, 64)

	tail, err := log.Tail(10)
	require.NoError(t, err)
	require.Len(t, tail, 1)
}

func TestSealPayloadIncludesPopulatedFieldsOnly(t *testing.T) {
	state := NewRequestState()
	req := &core.Request{Query: "q"}

	payload := sealPayload(req, state)
	require.Contains(t, payload, "query")
	require.Contains(t, payload, "options")
	require.NotContains(t, payload, "debate")
	require.NotContains(t, payload, "fuji")

	score, risk := 0.5, 0.5
	state.Debate = &core.DebateResult{Chosen: &core.CandidateOption{ID: "a", Score: &score, Risk: &risk}}
	payload = sealPayload(req, state)
	require.Contains(t, payload, "debate")
}
