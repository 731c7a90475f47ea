package reservation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker keeps reservations in Redis so every replica sees them.
type RedisLocker struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisLocker(rdb *redis.Client, ttl time.Duration, prefix string) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "calbook:slot"
	}
	return &RedisLocker{rdb: rdb, ttl: ttl, prefix: prefix}
}

func (l *RedisLocker) Acquire(ctx context.Context, sellerID string, slotStart time.Time) (func(context.Context) error, error) {
	k := key(l.prefix, sellerID, slotStart)
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, k, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("reserve slot: %w", err)
	}
	if !ok {
		return nil, ErrHeld
	}
	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.rdb, []string{k}, token).Err(); err != nil {
			return fmt.Errorf("release slot: %w", err)
		}
		return nil
	}, nil
}
