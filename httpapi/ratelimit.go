package httpapi

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/MrEthical07/authcore"
	redisrate "github.com/MrEthical07/authcore/internal/rate"
)

// Limiter decides whether the client identified by key may proceed. When it
// may not, retryAfter estimates when it can try again.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration)
}

// RateLimit rejects requests over l's budget for the client IP with 429.
func RateLimit(l Limiter, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			ok, retryAfter := l.Allow(r.Context(), ip)
			if !ok {
				logger.WarnContext(r.Context(), "rate limit exceeded",
					slog.String("client_ip", ip),
					slog.String("path", r.URL.Path),
				)
				writeLimited(w, retryAfter)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitConfig sets the per-IP token bucket for credential endpoints.
type RateLimitConfig struct {
	Rate            rate.Limit
	Burst           int
	CleanupInterval time.Duration
}

// DefaultRateLimitConfig allows 10 requests per minute per IP with a burst
// of 10.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Rate:            rate.Limit(10.0 / 60.0),
		Burst:           10,
		CleanupInterval: 5 * time.Minute,
	}
}

type ipLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// IPRateLimiter keeps one token bucket per client IP. Idle entries are
// dropped by a background loop until Stop is called.
type IPRateLimiter struct {
	config RateLimitConfig

	mu       sync.Mutex
	limiters map[string]*ipLimiter

	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewIPRateLimiter(cfg RateLimitConfig) *IPRateLimiter {
	rl := &IPRateLimiter{
		config:   cfg,
		limiters: make(map[string]*ipLimiter),
		stopCh:   make(chan struct{}),
	}
	if cfg.CleanupInterval > 0 {
		go rl.cleanupLoop()
	}
	return rl
}

func (rl *IPRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Allow consumes one token for ip.
func (rl *IPRateLimiter) Allow(_ context.Context, ip string) (bool, time.Duration) {
	if rl.get(ip).Allow() {
		return true, 0
	}
	if rl.config.Rate <= 0 {
		return false, time.Minute
	}
	return false, time.Duration(float64(time.Second) / float64(rl.config.Rate))
}

// Len reports how many IPs are tracked.
func (rl *IPRateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *IPRateLimiter) get(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if l, ok := rl.limiters[ip]; ok {
		l.lastAccess = now
		return l.limiter
	}
	l := &ipLimiter{limiter: rate.NewLimiter(rl.config.Rate, rl.config.Burst), lastAccess: now}
	rl.limiters[ip] = l
	return l.limiter
}

func (rl *IPRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup drops entries idle for more than two cleanup intervals.
func (rl *IPRateLimiter) cleanup(now time.Time) {
	ttl := rl.config.CleanupInterval * 2

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, l := range rl.limiters {
		if now.Sub(l.lastAccess) > ttl {
			delete(rl.limiters, ip)
		}
	}
}

// RedisRateLimiter shares a fixed-window budget across processes through
// Redis. Backend failures let the request through.
type RedisRateLimiter struct {
	limiter *redisrate.Limiter
	logger  *slog.Logger
}

// NewRedisRateLimiter allows max requests per IP per window.
func NewRedisRateLimiter(client redis.UniversalClient, limit int, window time.Duration, logger *slog.Logger) *RedisRateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisRateLimiter{
		limiter: redisrate.New(client, redisrate.Config{Prefix: "rl", Max: limit, Window: window}),
		logger:  logger,
	}
}

func (rl *RedisRateLimiter) Allow(ctx context.Context, ip string) (bool, time.Duration) {
	ok, retryAfter, err := rl.limiter.Allow(ctx, ip)
	if err != nil {
		rl.logger.WarnContext(ctx, "rate limiter unavailable",
			slog.String("op", "httpapi.rate_limit"),
			slog.Any("error", err),
		)
		return true, 0
	}
	return ok, retryAfter
}

func writeLimited(w http.ResponseWriter, retryAfter time.Duration) {
	secs := max(1, int(math.Ceil(retryAfter.Seconds())))
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	writeJSON(w, http.StatusTooManyRequests, errorResponse{
		Error:   "rate_limited",
		Message: "too many requests",
	})
}

// withClientContext copies the client IP and User-Agent onto the request
// context for session records and audit metadata.
func withClientContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := authcore.WithClientIP(r.Context(), clientIP(r))
		ctx = authcore.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
