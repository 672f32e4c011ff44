package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientReturnsScriptedResponsesInOrder(t *testing.T) {
	c := NewClient()
	c.SetResponses("first", "second")

	r1, err := c.Generate(context.Background(), "q1")
	require.NoError(t, err)
	require.Equal(t, "first", r1.Content)

	r2, err := c.Generate(context.Background(), "q2")
	require.NoError(t, err)
	require.Equal(t, "second", r2.Content)

	require.Equal(t, 2, c.CallCount)
	require.Equal(t, "q2", c.LastPrompt)
}

func TestClientReturnsConfiguredError(t *testing.T) {
	c := NewClient()
	c.SetError(errors.New("boom"))

	_, err := c.Generate(context.Background(), "q")
	require.EqualError(t, err, "boom")
}

func TestClientExhaustsScriptedResponses(t *testing.T) {
	c := NewClient()
	c.SetResponses("only")

	_, err := c.Generate(context.Background(), "q1")
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), "q2")
	require.Error(t, err)
}

func TestClientResetClearsState(t *testing.T) {
	c := NewClient()
	c.SetResponses("first")
	_, _ = c.Generate(context.Background(), "q1")

	c.Reset()
	require.Equal(t, 0, c.CallCount)

	_, err := c.Generate(context.Background(), "q2")
	require.NoError(t, err)
}
