// Package ratelimit implements the per-process mutable state spec.md §5
// calls out explicitly: a replay-protection nonce store and a per-client
// token-bucket rate limiter, both globally serialized and driven by a
// core.Clock so clock-skew-backward handling is deterministic in tests.
// Grounded on the teacher's own in-process rate limiting
// (telemetry/ratelimiter.go, carried into this module), generalized from
// "cap emission of one metric" to "reject a replayed nonce"/"cap requests
// per client key".
package ratelimit

import (
	"sync"
	"time"

	"github.com/veritasfuji-japan/veritas/core"
)

// NonceStore rejects a nonce it has already accepted within TTL. Entries
// are aged by monotonic elapsed time (now.Sub(seenAt), which uses the
// monotonic reading time.Now() attaches) rather than by comparing wall
// clock values, so a backward wall-clock jump (NTP correction, VM pause)
// never resurrects an expired nonce nor prematurely expires a fresh one
// (spec.md §5 "on clock skew backward, nonces are aged by monotonic
// elapsed time, not wall clock").
type NonceStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	clock core.Clock
	seen  map[string]time.Time
}

// NewNonceStore builds a NonceStore with the given replay TTL.
func NewNonceStore(ttl time.Duration, clock core.Clock) *NonceStore {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &NonceStore{
		ttl:   ttl,
		clock: clock,
		seen:  make(map[string]time.Time),
	}
}

// CheckAndStore reports whether nonce is fresh (true) and, if so, records
// it. A false return means the nonce was already seen within TTL and must
// be rejected as a replay (spec.md §6 "replayed nonces rejected").
func (s *NonceStore) CheckAndStore(nonce string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	s.evictLocked(now)

	if _, exists := s.seen[nonce]; exists {
		return false
	}
	s.seen[nonce] = now
	return true
}

// evictLocked drops entries whose monotonic age has exceeded the TTL.
// Must be called with s.mu held.
func (s *NonceStore) evictLocked(now time.Time) {
	for n, seenAt := range s.seen {
		if now.Sub(seenAt) >= s.ttl {
			delete(s.seen, n)
		}
	}
}

// Len reports the number of currently tracked (non-expired as of the last
// CheckAndStore call) nonces. Exposed for tests and metrics.
func (s *NonceStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
