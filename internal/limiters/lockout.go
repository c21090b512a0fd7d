package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LockoutPolicy decides when repeated login failures lock an account.
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

// LockUntil returns the end of a lock that starts at now.
func (p LockoutPolicy) LockUntil(now time.Time) time.Time {
	return now.Add(p.Duration)
}

// Tripped reports whether failures has reached the threshold.
func (p LockoutPolicy) Tripped(failures int) bool {
	return p.Threshold > 0 && failures >= p.Threshold
}

var (
	// ErrEmailBucketUnavailable indicates the bucket backend is unreachable.
	ErrEmailBucketUnavailable = errors.New("email bucket backend unavailable")
)

// EmailBucket counts failed logins against email addresses that have no
// account. Keys carry a SHA-256 of the address so raw emails never reach
// Redis.
type EmailBucket struct {
	redis redis.UniversalClient
	ttl   time.Duration
}

// NewEmailBucket creates a bucket whose counters expire ttl after the first
// failure in a window.
func NewEmailBucket(redisClient redis.UniversalClient, ttl time.Duration) *EmailBucket {
	if redisClient == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &EmailBucket{redis: redisClient, ttl: ttl}
}

// Key returns the Redis key for a normalized email hash.
func (b *EmailBucket) Key(emailHash string) string {
	return "alf:" + emailHash
}

// RecordFailure increments the counter for emailHash and returns the new count.
func (b *EmailBucket) RecordFailure(ctx context.Context, emailHash string) (int, error) {
	if b == nil || emailHash == "" {
		return 0, nil
	}

	count, err := b.redis.Incr(ctx, b.Key(emailHash)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrEmailBucketUnavailable, err)
	}

	if count == 1 {
		// First failure opens the window.
		if err := b.redis.Expire(ctx, b.Key(emailHash), b.ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrEmailBucketUnavailable, err)
		}
	}

	return int(count), nil
}

// Count returns the current counter for emailHash.
func (b *EmailBucket) Count(ctx context.Context, emailHash string) (int, error) {
	if b == nil || emailHash == "" {
		return 0, nil
	}

	count, err := b.redis.Get(ctx, b.Key(emailHash)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrEmailBucketUnavailable, err)
	}
	return int(count), nil
}
