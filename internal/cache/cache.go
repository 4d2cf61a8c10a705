package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Get when the key does not exist.
var ErrCacheMiss = errors.New("cache miss")

type Cache interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, keys ...string) error
	Close() error
	Ping(ctx context.Context) error
}

// AvatarURLCache keeps presigned avatar URLs so profile reads do not re-sign on every request.
type AvatarURLCache interface {
	Get(ctx context.Context, avatarKey string) (url string, ok bool)
	Put(ctx context.Context, avatarKey, url string)
	Evict(ctx context.Context, avatarKey string)
}
