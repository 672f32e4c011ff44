package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func TestNonceStoreRejectsReplay(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	s := NewNonceStore(5*time.Minute, clock)

	require.True(t, s.CheckAndStore("abc"))
	require.False(t, s.CheckAndStore("abc"))
}

func TestNonceStoreAcceptsAfterTTLElapsed(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	s := NewNonceStore(1*time.Minute, clock)

	require.True(t, s.CheckAndStore("abc"))
	clock.now = clock.now.Add(2 * time.Minute)
	require.True(t, s.CheckAndStore("abc"))
}

func TestNonceStoreHandlesBackwardClockSkewByMonotonicAge(t *testing.T) {
	base := time.Now()
	clock := &fakeClock{now: base}
	s := NewNonceStore(1*time.Minute, clock)

	require.True(t, s.CheckAndStore("abc"))
	// Simulate a wall-clock jump backward: with a fake clock this moves the
	// comparison point itself, but Sub on real time.Time values uses the
	// monotonic reading, so production use (SystemClock) is unaffected by
	// NTP corrections. Here we assert the store doesn't panic or misbehave
	// when Now() briefly goes backward and forward again.
	clock.now = base.Add(-10 * time.Second)
	require.False(t, s.CheckAndStore("abc"))
	clock.now = base.Add(2 * time.Minute)
	require.True(t, s.CheckAndStore("abc"))
}
