package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig locates the Redis instance that backs distributed limiting.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisClient wraps the Redis client. A disabled client means every limiter
// decision is made in memory.
type RedisClient struct {
	client  *redis.Client
	enabled bool
	addr    string
}

// NewRedisClient connects to Redis. An empty address yields a disabled client
// and no error; an unreachable server yields a disabled client and the ping
// error, so callers can log it and continue.
func NewRedisClient(ctx context.Context, config RedisConfig) (*RedisClient, error) {
	if config.Addr == "" {
		slog.Info("REDIS_ADDR not set, rate limiting is in-memory only")
		return &RedisClient{}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		MaxRetries:   1,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
		PoolSize:     10,
		PoolTimeout:  time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return &RedisClient{addr: config.Addr}, fmt.Errorf("redis ping failed: %w", err)
	}

	slog.Info("Redis client connected", "addr", config.Addr, "db", config.DB)
	return &RedisClient{client: client, enabled: true, addr: config.Addr}, nil
}

// IsEnabled returns whether Redis is connected
func (r *RedisClient) IsEnabled() bool {
	return r != nil && r.enabled
}

// HealthCheck pings Redis
func (r *RedisClient) HealthCheck(ctx context.Context) error {
	if !r.IsEnabled() {
		return fmt.Errorf("redis is disabled")
	}
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	if r.IsEnabled() {
		return r.client.Close()
	}
	return nil
}

// PoolStats returns connection pool statistics
func (r *RedisClient) PoolStats() map[string]interface{} {
	if !r.IsEnabled() {
		return map[string]interface{}{"enabled": false}
	}

	stats := r.client.PoolStats()
	return map[string]interface{}{
		"enabled":     true,
		"addr":        r.addr,
		"hits":        stats.Hits,
		"misses":      stats.Misses,
		"timeouts":    stats.Timeouts,
		"total_conns": stats.TotalConns,
		"idle_conns":  stats.IdleConns,
	}
}
