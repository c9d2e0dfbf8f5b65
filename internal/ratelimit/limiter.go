package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/startup-success-predictor/internal/monitoring"
	"github.com/go-redis/redis_rate/v10"
	"golang.org/x/time/rate"
)

// Config holds rate limiter configuration
type Config struct {
	PerMinute       int           // requests per client IP per minute
	CleanupInterval time.Duration // how often idle in-memory limiters are swept
	IdleTTL         time.Duration // in-memory limiters unused this long are dropped
}

// DefaultConfig returns default rate limiting configuration
func DefaultConfig() Config {
	return Config{
		PerMinute:       60,
		CleanupInterval: 10 * time.Minute,
		IdleTTL:         30 * time.Minute,
	}
}

// Rate is a request budget per period.
type Rate struct {
	Limit  int
	Period time.Duration
}

// PerMinute returns a Rate of n requests per minute.
func PerMinute(n int) Rate {
	return Rate{Limit: n, Period: time.Minute}
}

// Result represents the result of a rate limit check
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

type fallbackEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter limits with Redis when available and falls back to in-memory
// token buckets when Redis is absent or failing.
type RateLimiter struct {
	redisLimiter *redis_rate.Limiter
	redisClient  *RedisClient
	config       Config
	metrics      *monitoring.Metrics

	fallbackMutex sync.Mutex
	fallback      map[string]*fallbackEntry

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewRateLimiter creates a rate limiter. Close stops its cleanup goroutine.
func NewRateLimiter(redisClient *RedisClient, config Config, metrics *monitoring.Metrics) *RateLimiter {
	defaults := DefaultConfig()
	if config.PerMinute <= 0 {
		config.PerMinute = defaults.PerMinute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = defaults.CleanupInterval
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = defaults.IdleTTL
	}

	rl := &RateLimiter{
		redisClient: redisClient,
		config:      config,
		metrics:     metrics,
		fallback:    make(map[string]*fallbackEntry),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}

	if redisClient.IsEnabled() {
		rl.redisLimiter = redis_rate.NewLimiter(redisClient.client)
	}

	go rl.cleanupLoop()
	return rl
}

// AllowIP checks the per-minute budget for ip within scope.
func (rl *RateLimiter) AllowIP(ctx context.Context, scope, ip string) (*Result, error) {
	key := fmt.Sprintf("ratelimit:%s:ip:%s", scope, ip)
	return rl.Allow(ctx, key, PerMinute(rl.config.PerMinute))
}

// Allow consumes one request from key's budget.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit Rate) (*Result, error) {
	if limit.Limit <= 0 || limit.Period <= 0 {
		return nil, fmt.Errorf("invalid rate %d per %s", limit.Limit, limit.Period)
	}

	if rl.redisLimiter != nil {
		result, err := rl.allowRedis(ctx, key, limit)
		if err == nil {
			return result, nil
		}
		slog.Warn("Redis rate limit check failed, using fallback", "key", key, "error", err)
		if rl.metrics != nil {
			rl.metrics.IncrementRateLimitRedisError()
		}
	}

	if rl.metrics != nil {
		rl.metrics.IncrementRateLimitFallback()
	}
	return rl.allowFallback(key, limit, time.Now()), nil
}

func (rl *RateLimiter) allowRedis(ctx context.Context, key string, limit Rate) (*Result, error) {
	res, err := rl.redisLimiter.Allow(ctx, key, redis_rate.Limit{
		Rate:   limit.Limit,
		Burst:  limit.Limit,
		Period: limit.Period,
	})
	if err != nil {
		return nil, err
	}

	result := &Result{
		Allowed:   res.Allowed > 0,
		Limit:     limit.Limit,
		Remaining: res.Remaining,
		ResetAt:   time.Now().Add(res.ResetAfter),
	}
	if !result.Allowed {
		result.RetryAfter = res.RetryAfter
	}
	return result, nil
}

func (rl *RateLimiter) allowFallback(key string, limit Rate, now time.Time) *Result {
	rl.fallbackMutex.Lock()
	defer rl.fallbackMutex.Unlock()

	entry, ok := rl.fallback[key]
	if !ok {
		every := rate.Every(limit.Period / time.Duration(limit.Limit))
		entry = &fallbackEntry{limiter: rate.NewLimiter(every, limit.Limit)}
		rl.fallback[key] = entry
	}
	entry.lastSeen = now

	allowed := entry.limiter.AllowN(now, 1)
	tokens := entry.limiter.TokensAt(now)

	result := &Result{
		Allowed:   allowed,
		Limit:     limit.Limit,
		Remaining: int(math.Max(0, math.Floor(tokens))),
	}

	// Time until the bucket is full again.
	perToken := limit.Period / time.Duration(limit.Limit)
	missing := float64(limit.Limit) - tokens
	result.ResetAt = now.Add(time.Duration(missing * float64(perToken)))

	if !allowed {
		result.RetryAfter = time.Duration((1 - tokens) * float64(perToken))
		if result.RetryAfter <= 0 {
			result.RetryAfter = perToken
		}
	}
	return result
}

func (rl *RateLimiter) cleanupLoop() {
	defer close(rl.done)

	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.sweep(now)
		}
	}
}

// sweep drops in-memory limiters idle for longer than IdleTTL.
func (rl *RateLimiter) sweep(now time.Time) int {
	rl.fallbackMutex.Lock()
	defer rl.fallbackMutex.Unlock()

	removed := 0
	for key, entry := range rl.fallback {
		if now.Sub(entry.lastSeen) > rl.config.IdleTTL {
			delete(rl.fallback, key)
			removed++
		}
	}
	return removed
}

// Close stops the cleanup goroutine.
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
	<-rl.done
}

// GetStats returns rate limiter statistics
func (rl *RateLimiter) GetStats() map[string]interface{} {
	rl.fallbackMutex.Lock()
	fallbackCount := len(rl.fallback)
	rl.fallbackMutex.Unlock()

	return map[string]interface{}{
		"redis_enabled":     rl.redisLimiter != nil,
		"per_minute":        rl.config.PerMinute,
		"fallback_limiters": fallbackCount,
		"redis_pool":        rl.redisClient.PoolStats(),
	}
}
