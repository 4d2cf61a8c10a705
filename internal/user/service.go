// Package user serves the caller's own profile.
package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AtoyanMikhail/deviceauth/internal/apperr"
	"github.com/AtoyanMikhail/deviceauth/internal/cache"
	"github.com/AtoyanMikhail/deviceauth/internal/logger"
	"github.com/AtoyanMikhail/deviceauth/internal/metrics"
	"github.com/AtoyanMikhail/deviceauth/internal/repository"
	"github.com/AtoyanMikhail/deviceauth/internal/repository/models"
	"github.com/AtoyanMikhail/deviceauth/internal/storage"
)

type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	AvatarURL *string   `json:"avatarUrl"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UpdateInput holds the optional profile changes; nil fields are left as they are.
type UpdateInput struct {
	Name   *string
	Email  *string
	Avatar *storage.Object
}

type Service struct {
	store   repository.Queries
	storage storage.Storage
	urls    cache.AvatarURLCache
	metrics *metrics.Metrics
	l       logger.Logger
}

func NewService(
	store repository.Queries,
	st storage.Storage,
	urls cache.AvatarURLCache,
	m *metrics.Metrics,
	l logger.Logger,
) *Service {
	return &Service{store: store, storage: st, urls: urls, metrics: m, l: l}
}

func (s *Service) Me(ctx context.Context, userID string) (Profile, error) {
	u, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Profile{}, apperr.ErrUserNotFound
		}
		return Profile{}, err
	}
	return s.profile(ctx, u)
}

// Update uploads the avatar first; a failed upload leaves the profile untouched.
func (s *Service) Update(ctx context.Context, userID string, in UpdateInput) (Profile, error) {
	current, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Profile{}, apperr.ErrUserNotFound
		}
		return Profile{}, err
	}

	upd := models.UserUpdate{Name: in.Name, Email: in.Email}

	if in.Avatar != nil {
		key, err := s.storage.Upload(ctx, *in.Avatar, storage.AvatarFolder)
		if err != nil {
			return Profile{}, fmt.Errorf("failed to upload avatar: %w", err)
		}
		upd.AvatarKey = &key
	}

	u, err := s.store.UpdateUser(ctx, userID, upd)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return Profile{}, apperr.ErrUserNotFound
		case errors.Is(err, repository.ErrDuplicate):
			return Profile{}, apperr.ErrCredentialsInUse
		}
		return Profile{}, err
	}

	if upd.AvatarKey != nil && current.AvatarKey != nil && *current.AvatarKey != *upd.AvatarKey {
		s.urls.Evict(ctx, *current.AvatarKey)
	}

	s.l.Info("Profile updated", logger.String("user_id", userID), logger.Bool("avatar", upd.AvatarKey != nil))
	return s.profile(ctx, u)
}

func (s *Service) profile(ctx context.Context, u *models.User) (Profile, error) {
	p := Profile{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
	if u.AvatarKey == nil || *u.AvatarKey == "" {
		return p, nil
	}

	url, err := s.avatarURL(ctx, *u.AvatarKey)
	if err != nil {
		return Profile{}, err
	}
	p.AvatarURL = &url
	return p, nil
}

func (s *Service) avatarURL(ctx context.Context, key string) (string, error) {
	if url, ok := s.urls.Get(ctx, key); ok {
		s.metrics.AvatarURLCache.WithLabelValues("hit").Inc()
		return url, nil
	}
	s.metrics.AvatarURLCache.WithLabelValues("miss").Inc()

	url, err := s.storage.PresignURL(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to resolve avatar url: %w", err)
	}
	s.urls.Put(ctx, key, url)
	return url, nil
}
