package ratelimit

import (
	"sync"
	"time"

	"github.com/veritasfuji-japan/veritas/core"
)

// bucket is one client key's token bucket: capacity tokens refilled at
// refillPerSec, consumed on Allow.
type bucket struct {
	tokens       float64
	capacity     float64
	refillPerSec float64
	last         time.Time
}

func (b *bucket) allow(now time.Time, cost float64) bool {
	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.refillPerSec
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.last = now
	}
	if b.tokens < cost {
		return false
	}
	b.tokens -= cost
	return true
}

// Limiter is a per-client-key token-bucket rate limiter (spec.md §5 "Rate
// limiter: token buckets per client key, serialized mutations"). Buckets
// are created lazily on first use and never proactively evicted within a
// process lifetime — spec.md scopes multi-process/externalized eviction
// out (§9 Non-goals), matching the "single-process authority" note in
// REDESIGN FLAGS.
type Limiter struct {
	mu           sync.Mutex
	capacity     float64
	refillPerSec float64
	clock        core.Clock
	buckets      map[string]*bucket
}

// NewLimiter builds a Limiter allowing burstCapacity requests immediately
// per client key, refilled at refillPerSec tokens/second thereafter.
func NewLimiter(burstCapacity, refillPerSec float64, clock core.Clock) *Limiter {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &Limiter{
		capacity:     burstCapacity,
		refillPerSec: refillPerSec,
		clock:        clock,
		buckets:      make(map[string]*bucket),
	}
}

// Allow reports whether key may spend one token now, consuming it if so.
func (l *Limiter) Allow(key string) bool {
	return l.AllowN(key, 1)
}

// AllowN reports whether key may spend cost tokens now, consuming them if
// so.
func (l *Limiter) AllowN(key string, cost float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.capacity, capacity: l.capacity, refillPerSec: l.refillPerSec, last: now}
		l.buckets[key] = b
	}
	return b.allow(now, cost)
}

// Keys reports the number of distinct client keys currently tracked.
// Exposed for tests and metrics, not for correctness.
func (l *Limiter) Keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
