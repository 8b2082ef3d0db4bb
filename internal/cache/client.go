// Package cache wraps the Redis and in-process caching concerns of xeno-crm:
// the stats recompute queue, per-customer recompute locks, and the L1 cache
// behind the suggestion endpoints.
package cache

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sumitkumar2005/xeno-crm/internal/config"
	"github.com/sumitkumar2005/xeno-crm/internal/logger"
	"github.com/sumitkumar2005/xeno-crm/internal/observability"
)

// NewRedisClient initializes a new Redis client connection using the provided configuration.
// It handles connection pooling, TLS, and initial connectivity checks with retries.
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}

	opts, err := clientOptions(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	// Retry ping with exponential backoff
	maxRetries := max(cfg.PingMaxRetries, 1)
	backoff := cfg.PingBackoff
	log := logger.FromContext(ctx)

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, max(cfg.DialTimeout, time.Second))
		lastErr = client.Ping(pingCtx).Err()
		cancel()

		if lastErr == nil {
			log.Info("connected to redis", slog.String("addr", opts.Addr), slog.Int("attempt", attempt))
			return client, nil
		}

		log.Warn("redis ping failed", slog.Int("attempt", attempt), slog.Int("max_retries", maxRetries), slog.Any("error", lastErr))
		if attempt < maxRetries {
			select {
			case <-ctx.Done():
				_ = client.Close()
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}

	_ = client.Close()
	return nil, fmt.Errorf("failed to connect to redis after %d retries: %w", maxRetries, lastErr)
}

func clientOptions(cfg *config.RedisConfig) (*redis.Options, error) {
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis URL: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     cfg.Address(),
			Password: cfg.Password,
			DB:       cfg.DB,
		}
		if cfg.TLSEnabled {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
	}

	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.PoolTimeout = cfg.PoolTimeout
	opts.MaxRetries = cfg.MaxRetries
	opts.MinRetryBackoff = cfg.MinRetryBackoff
	opts.MaxRetryBackoff = cfg.MaxRetryBackoff
	return opts, nil
}

// RunPoolMonitor publishes go-redis pool statistics every interval until ctx is done.
func RunPoolMonitor(ctx context.Context, client *redis.Client, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s := client.PoolStats()
		observability.RedisPoolConnections.WithLabelValues("total").Set(float64(s.TotalConns))
		observability.RedisPoolConnections.WithLabelValues("idle").Set(float64(s.IdleConns))
		observability.RedisPoolConnections.WithLabelValues("stale").Set(float64(s.StaleConns))
		observability.RedisPoolHits.Set(float64(s.Hits))
		observability.RedisPoolMisses.Set(float64(s.Misses))
		observability.RedisPoolTimeouts.Set(float64(s.Timeouts))

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
