package payments

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Throttle limits how often one order's status is fetched from the gateway.
type Throttle interface {
	Allow(ctx context.Context, orderID string) bool
}

type noThrottle struct{}

func (noThrottle) Allow(context.Context, string) bool { return true }

// RedisThrottle lets one lookup per order through per TTL, across instances.
type RedisThrottle struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisThrottle returns a pass-through throttle when rdb is nil.
func NewRedisThrottle(rdb *redis.Client, ttl time.Duration) Throttle {
	if rdb == nil || ttl <= 0 {
		return noThrottle{}
	}
	return &RedisThrottle{rdb: rdb, ttl: ttl, logger: slog.Default()}
}

func (t *RedisThrottle) Allow(ctx context.Context, orderID string) bool {
	ok, err := t.rdb.SetNX(ctx, "payments:status:"+orderID, 1, t.ttl).Result()
	if err != nil {
		// redis down: fail open
		t.logger.WarnContext(ctx, "status throttle unavailable", "err", err)
		return true
	}
	return ok
}
