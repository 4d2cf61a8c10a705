package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AtoyanMikhail/deviceauth/internal/config"
	"github.com/AtoyanMikhail/deviceauth/internal/logger"
	"github.com/redis/go-redis/v9"
)

// Key prefixes
const (
	AvatarURLPrefix = "avatar:url:"
)

const (
	connectTimeout = 5 * time.Second
	opTimeout      = time.Second
)

type redisCache struct {
	client *redis.Client
	logger logger.Logger
}

// NewRedisCache connects to Redis and fails fast when the server does not answer a ping.
func NewRedisCache(cfg config.RedisConfig, l logger.Logger) (Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  connectTimeout,
		ReadTimeout:  opTimeout,
		WriteTimeout: opTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	l.Info("Redis connection established",
		logger.String("addr", cfg.Addr),
		logger.Int("db", cfg.DB))

	return newRedisCache(client, l), nil
}

func newRedisCache(client *redis.Client, l logger.Logger) *redisCache {
	return &redisCache{client: client, logger: l}
}

func (r *redisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.logger.Error("Failed to set cache value",
			logger.String("key", key),
			logger.Error(err))
		return fmt.Errorf("failed to set cache value: %w", err)
	}
	return nil
}

// Get returns ErrCacheMiss for a missing or expired key.
func (r *redisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%w: %s", ErrCacheMiss, key)
	}
	if err != nil {
		r.logger.Error("Failed to get cache value",
			logger.String("key", key),
			logger.Error(err))
		return "", fmt.Errorf("failed to get cache value: %w", err)
	}
	return val, nil
}

// Delete removes the keys; absent keys are ignored.
func (r *redisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	n, err := r.client.Del(ctx, keys...).Result()
	if err != nil {
		r.logger.Error("Failed to delete cache values",
			logger.Int("keys", len(keys)),
			logger.Error(err))
		return fmt.Errorf("failed to delete cache values: %w", err)
	}

	r.logger.Debug("Cache values deleted", logger.Int64("deleted", n))
	return nil
}

func (r *redisCache) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", logger.Error(err))
		return fmt.Errorf("failed to close Redis connection: %w", err)
	}

	r.logger.Info("Redis connection closed")
	return nil
}

func (r *redisCache) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		r.logger.Warn("Redis ping failed", logger.Error(err))
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}
