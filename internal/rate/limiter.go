package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config sets a fixed window: at most Max hits per key within Window.
type Config struct {
	Prefix string
	Max    int
	Window time.Duration
}

// Limiter counts hits per key in Redis so every process behind a load
// balancer shares one budget.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter]. An empty prefix selects "rl".
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "rl"
	}
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// Allow records one hit for key. When the window budget is spent it returns
// false and the time until the window resets.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	k := l.key(key)
	count, err := l.incrementWithTTL(ctx, k, l.config.Window)
	if err != nil {
		return false, 0, err
	}
	if count <= int64(l.config.Max) {
		return true, 0, nil
	}

	ttl, err := l.redis.PTTL(ctx, k).Result()
	if err != nil {
		return false, 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if ttl <= 0 {
		// Key lost its expiry; restore it so the window can end.
		if err := l.redis.Expire(ctx, k, l.config.Window).Err(); err != nil {
			return false, 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		ttl = l.config.Window
	}
	return false, ttl, nil
}

// Count returns the hits recorded for key in the current window.
func (l *Limiter) Count(ctx context.Context, key string) (int, error) {
	n, err := l.redis.Get(ctx, l.key(key)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n, nil
}

func (l *Limiter) key(key string) string {
	return l.config.Prefix + ":" + key
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
