package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterAllowsUpToBurstThenBlocks(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	l := NewLimiter(3, 1, clock)

	require.True(t, l.Allow("client-a"))
	require.True(t, l.Allow("client-a"))
	require.True(t, l.Allow("client-a"))
	require.False(t, l.Allow("client-a"))
}

func TestLimiterRefillsOverTime(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	l := NewLimiter(1, 1, clock)

	require.True(t, l.Allow("client-a"))
	require.False(t, l.Allow("client-a"))

	clock.now = clock.now.Add(1 * time.Second)
	require.True(t, l.Allow("client-a"))
}

func TestLimiterTracksKeysIndependently(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	l := NewLimiter(1, 1, clock)

	require.True(t, l.Allow("client-a"))
	require.True(t, l.Allow("client-b"))
	require.Equal(t, 2, l.Keys())
}
