package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veritasfuji-japan/veritas/core"
)

func TestNormalizeInputStageTrimsQuery(t *testing.T) {
	req := &core.Request{Query: "  do the thing  "}
	result := normalizeInputStage.Run(context.Background(), req, nil, core.DefaultConfig(), core.Services{})
	require.Equal(t, ResultUpdate, result.Kind)
	require.Equal(t, "do the thing", req.Query)
}

func TestNormalizeInputStageFailsOnBlankQuery(t *testing.T) {
	req := &core.Request{Query: "   "}
	result := normalizeInputStage.Run(context.Background(), req, nil, core.DefaultConfig(), core.Services{})
	require.Equal(t, ResultFail, result.Kind)
	require.ErrorIs(t, result.Err, core.ErrMissingQuery)
}

func TestNormalizeInputStageInitializesNilContext(t *testing.T) {
	req := &core.Request{Query: "ok"}
	require.Nil(t, req.Context)
	result := normalizeInputStage.Run(context.Background(), req, nil, core.DefaultConfig(), core.Services{})
	require.Equal(t, ResultUpdate, result.Kind)
	require.NotNil(t, req.Context)
}
