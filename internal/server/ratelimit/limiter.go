// Package ratelimit throttles sign-in and renewal attempts with fixed-window
// counters in Redis.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/bookauth/internal/common"
	"github.com/redis/go-redis/v9"
)

// ErrRateLimited is returned once a key has used up its window budget.
var ErrRateLimited = errors.New("rate limited")

const keyPrefix = "bookauth:rl:"

// Limiter allows up to limit hits per key per window.
type Limiter struct {
	redis  redis.UniversalClient
	limit  int
	window time.Duration
}

// New creates a Limiter. A non-positive limit disables limiting.
func New(client redis.UniversalClient, limit int, window time.Duration) *Limiter {
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{redis: client, limit: limit, window: window}
}

// Allow counts a hit for key and reports ErrRateLimited when over budget.
// Redis failures wrap common.ErrUnavailable.
func (l *Limiter) Allow(ctx context.Context, key string) error {
	if l.limit <= 0 {
		return nil
	}
	count, err := l.incrementWithTTL(ctx, keyPrefix+key)
	if err != nil {
		return err
	}
	if count > int64(l.limit) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}

	// the window starts with the first hit
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", common.ErrUnavailable, err)
		}
	}
	return count, nil
}
