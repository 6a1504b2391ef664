// Package redis provides a Redis-backed rate limit store for multi-node
// deployments. Window keys expire via TTL, so stale state never needs a
// sweeper.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pkkmi/andikar-gate/domain/ratelimit"
	"github.com/pkkmi/andikar-gate/ports"
)

// RateLimitStore implements ports.RateLimitStore on Redis. INCR is
// atomic server-side, which gives the per-user check-and-consume
// guarantee across gateway instances.
type RateLimitStore struct {
	client *redis.Client
	prefix string
}

// NewRateLimitStore creates a Redis rate limit store.
func NewRateLimitStore(client *redis.Client, prefix string) *RateLimitStore {
	if prefix == "" {
		prefix = "andikar:ratelimit"
	}
	return &RateLimitStore{client: client, prefix: prefix}
}

// Take performs an atomic check-and-consume for one call.
// Burst tokens are not supported on this backend; cfg.BurstTokens is
// folded into the plain limit.
func (s *RateLimitStore) Take(ctx context.Context, userID string, cfg ratelimit.Config, now time.Time) (ratelimit.CheckResult, error) {
	windowSecs := int64(cfg.Window.Seconds())
	if windowSecs <= 0 {
		windowSecs = 60
	}
	window := now.Unix() / windowSecs
	key := fmt.Sprintf("%s:%s:%d", s.prefix, userID, window)
	resetAt := time.Unix((window+1)*windowSecs, 0)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return ratelimit.CheckResult{}, fmt.Errorf("ratelimit incr: %w", err)
	}
	if count == 1 {
		// First hit in this window: bound the key's lifetime.
		s.client.Expire(ctx, key, cfg.Window+time.Second)
	}

	limit := int64(cfg.Limit + cfg.BurstTokens)
	if count > limit {
		retryAfter := resetAt.Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return ratelimit.CheckResult{
			Allowed:    false,
			ResetAt:    resetAt,
			RetryAfter: retryAfter,
			Reason:     ratelimit.ReasonLimitExceeded,
		}, nil
	}

	remaining := int(limit - count)
	return ratelimit.CheckResult{
		Allowed:   true,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

var _ ports.RateLimitStore = (*RateLimitStore)(nil)
