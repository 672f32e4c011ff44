package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DistributedNonceStore and RateLimiterBackend let cmd/veritasd swap the
// in-process NonceStore/Limiter for a shared backend when more than one
// worker is deployed, matching spec.md §9's explicit carve-out
// ("if multiple workers are deployed, these must be externalized") without
// making Redis a hard dependency of the core pipeline.
type DistributedNonceStore interface {
	CheckAndStore(ctx context.Context, nonce string) (bool, error)
}

// RedisNonceStore backs replay protection with Redis SETNX+EXPIRE,
// grounded on the teacher's Redis discovery backend
// (`pkg/discovery/redis.go`, retrieval pack) which uses the same client
// for a different keyspace — rehomed here for the nonce keyspace instead
// of service registration.
type RedisNonceStore struct {
	Client    *redis.Client
	KeyPrefix string
	TTL       time.Duration
}

// NewRedisNonceStore builds a RedisNonceStore. keyPrefix namespaces nonce
// keys (e.g. "veritas:nonce:") so the keyspace can be shared safely with
// other Redis consumers.
func NewRedisNonceStore(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisNonceStore {
	return &RedisNonceStore{Client: client, KeyPrefix: keyPrefix, TTL: ttl}
}

// CheckAndStore atomically claims the nonce key if absent; Redis's own TTL
// expiry replaces the monotonic-clock eviction the in-memory NonceStore
// performs locally, since TTL here is enforced server-side across however
// many worker processes share this Redis instance.
func (r *RedisNonceStore) CheckAndStore(ctx context.Context, nonce string) (bool, error) {
	key := r.KeyPrefix + nonce
	ok, err := r.Client.SetNX(ctx, key, 1, r.TTL).Result()
	if err != nil {
		return false, fmt.Errorf("ratelimit: redis nonce check: %w", err)
	}
	return ok, nil
}

// RedisLimiter backs the per-client-key rate limiter with Redis INCR+EXPIRE
// fixed-window counting. It trades the in-process Limiter's smooth
// token-bucket refill for a simpler window count, which is the tradeoff
// the teacher's own Redis-backed pieces make in exchange for working
// across processes without a shared clock.
type RedisLimiter struct {
	Client *redis.Client
	Prefix string
	Limit  int64
	Window time.Duration
}

// NewRedisLimiter builds a RedisLimiter allowing at most limit requests
// per key within each window.
func NewRedisLimiter(client *redis.Client, prefix string, limit int64, window time.Duration) *RedisLimiter {
	return &RedisLimiter{Client: client, Prefix: prefix, Limit: limit, Window: window}
}

// Allow increments the counter for key's current window and reports
// whether the result is within Limit.
func (r *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := r.Prefix + key
	count, err := r.Client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("ratelimit: redis limiter incr: %w", err)
	}
	if count == 1 {
		if err := r.Client.Expire(ctx, redisKey, r.Window).Err(); err != nil {
			return false, fmt.Errorf("ratelimit: redis limiter expire: %w", err)
		}
	}
	return count <= r.Limit, nil
}
