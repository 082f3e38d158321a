// Package replay records attempts to redeem refresh tokens that were
// already used, so repeated replays can be spotted and alerted on.
package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/bookauth/internal/common"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "bookauth:replay:"

// Tracker counts replay anomalies per refresh-token record in Redis.
type Tracker struct {
	redis redis.UniversalClient
	ttl   time.Duration
}

// New creates a Tracker whose counters expire after ttl (24h when zero).
func New(client redis.UniversalClient, ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Tracker{redis: client, ttl: ttl}
}

// Track increments the anomaly counter for recordID and returns the new count.
func (t *Tracker) Track(ctx context.Context, recordID string) (int64, error) {
	key := keyPrefix + recordID
	count, err := t.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}
	if count == 1 {
		if err := t.redis.Expire(ctx, key, t.ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", common.ErrUnavailable, err)
		}
	}
	return count, nil
}
