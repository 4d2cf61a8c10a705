package cache

import (
	"context"
	"errors"
	"time"

	"github.com/AtoyanMikhail/deviceauth/internal/logger"
)

type avatarURLCache struct {
	cache  Cache
	ttl    time.Duration
	logger logger.Logger
}

// NewAvatarURLCache wraps a Cache. ttl must stay below the presign expiry so a cached URL
// is never handed out after it stopped working.
func NewAvatarURLCache(c Cache, ttl time.Duration, l logger.Logger) AvatarURLCache {
	return &avatarURLCache{
		cache:  c,
		ttl:    ttl,
		logger: l,
	}
}

// Get returns the cached URL. Cache failures are logged and reported as a miss.
func (a *avatarURLCache) Get(ctx context.Context, avatarKey string) (string, bool) {
	url, err := a.cache.Get(ctx, AvatarURLPrefix+avatarKey)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			a.logger.Warn("Avatar URL cache read failed",
				logger.String("avatar_key", avatarKey),
				logger.Error(err))
		}
		return "", false
	}
	return url, true
}

// Put stores the URL. Failures are logged and otherwise ignored.
func (a *avatarURLCache) Put(ctx context.Context, avatarKey, url string) {
	if err := a.cache.Set(ctx, AvatarURLPrefix+avatarKey, url, a.ttl); err != nil {
		a.logger.Warn("Avatar URL cache write failed",
			logger.String("avatar_key", avatarKey),
			logger.Error(err))
		return
	}

	a.logger.Debug("Avatar URL cached",
		logger.String("avatar_key", avatarKey),
		logger.Duration("ttl", a.ttl))
}

// Evict drops the cached URL of an avatar that is no longer referenced.
func (a *avatarURLCache) Evict(ctx context.Context, avatarKey string) {
	if err := a.cache.Delete(ctx, AvatarURLPrefix+avatarKey); err != nil {
		a.logger.Warn("Avatar URL cache eviction failed",
			logger.String("avatar_key", avatarKey),
			logger.Error(err))
	}
}
