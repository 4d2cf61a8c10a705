// Package auth owns the session lifecycle: issuing, rotating and revoking token pairs per
// device, and verifying access tokens on protected requests.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AtoyanMikhail/deviceauth/internal/apperr"
	"github.com/AtoyanMikhail/deviceauth/internal/device"
	"github.com/AtoyanMikhail/deviceauth/internal/hasher"
	"github.com/AtoyanMikhail/deviceauth/internal/logger"
	"github.com/AtoyanMikhail/deviceauth/internal/metrics"
	"github.com/AtoyanMikhail/deviceauth/internal/repository"
	"github.com/AtoyanMikhail/deviceauth/internal/repository/models"
	"github.com/AtoyanMikhail/deviceauth/internal/storage"
	"github.com/AtoyanMikhail/deviceauth/internal/token"
)

type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type SignupInput struct {
	Email           string
	Password        string
	ConfirmPassword string
	Name            string
	Avatar          *storage.Object
	Device          device.Info
}

type DeviceView struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Type       device.Type `json:"type"`
	LastUsedAt time.Time   `json:"lastUsedAt"`
}

type Manager struct {
	store   repository.Store
	hasher  hasher.Hasher
	codec   token.Codec
	storage storage.Storage
	metrics *metrics.Metrics
	l       logger.Logger
	now     func() time.Time
}

func NewManager(
	store repository.Store,
	h hasher.Hasher,
	codec token.Codec,
	st storage.Storage,
	m *metrics.Metrics,
	l logger.Logger,
) *Manager {
	return &Manager{
		store:   store,
		hasher:  h,
		codec:   codec,
		storage: st,
		metrics: m,
		l:       l,
		now:     time.Now,
	}
}

func (m *Manager) Signup(ctx context.Context, in SignupInput) (tokens Tokens, err error) {
	defer func() { m.record("signup", err) }()

	if in.Password != in.ConfirmPassword {
		return Tokens{}, apperr.ErrPasswordMismatch
	}

	if _, err := m.store.GetUserByEmail(ctx, in.Email); err == nil {
		return Tokens{}, apperr.ErrCredentialsInUse
	} else if !errors.Is(err, repository.ErrNotFound) {
		return Tokens{}, err
	}

	err = m.store.WithTx(ctx, func(q repository.Queries) error {
		var avatarKey *string
		if in.Avatar != nil {
			key, err := m.storage.Upload(ctx, *in.Avatar, storage.AvatarFolder)
			if err != nil {
				return fmt.Errorf("failed to upload avatar: %w", err)
			}
			avatarKey = &key
		}

		digest, err := m.hasher.Hash(in.Password)
		if err != nil {
			return err
		}

		user := &models.User{
			Email:        in.Email,
			Name:         in.Name,
			PasswordHash: digest,
			AvatarKey:    avatarKey,
		}
		if err := q.CreateUser(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperr.ErrCredentialsInUse
			}
			return err
		}

		dev, err := createDevice(ctx, q, user.ID, in.Device)
		if err != nil {
			return err
		}

		tokens, err = m.mint(ctx, q, user.ID, dev.ID)
		return err
	})
	if err != nil {
		return Tokens{}, err
	}

	m.l.Info("User signed up", logger.String("email", in.Email))
	return tokens, nil
}

// Login fails with the same error for an unknown email and a wrong password.
func (m *Manager) Login(ctx context.Context, email, password string, info device.Info) (tokens Tokens, err error) {
	defer func() { m.record("login", err) }()

	user, err := m.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Tokens{}, apperr.ErrInvalidCredentials
		}
		return Tokens{}, err
	}
	if !m.hasher.Verify(password, user.PasswordHash) {
		return Tokens{}, apperr.ErrInvalidCredentials
	}

	err = m.store.WithTx(ctx, func(q repository.Queries) error {
		dev, err := createDevice(ctx, q, user.ID, info)
		if err != nil {
			return err
		}
		tokens, err = m.mint(ctx, q, user.ID, dev.ID)
		return err
	})
	if err != nil {
		return Tokens{}, err
	}

	m.l.Info("User logged in", logger.String("user_id", user.ID))
	return tokens, nil
}

// Refresh rotates a refresh token. Of two concurrent rotations of the same token, exactly one succeeds.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (tokens Tokens, err error) {
	defer func() { m.record("refresh", err) }()

	rt, err := m.store.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Tokens{}, apperr.ErrInvalidRefreshToken
		}
		return Tokens{}, err
	}
	if !rt.IsValid {
		return Tokens{}, apperr.ErrInvalidRefreshToken
	}

	if _, err := m.codec.Verify(token.Refresh, refreshToken); err != nil {
		if invErr := m.store.InvalidateRefreshToken(ctx, refreshToken); invErr != nil {
			m.l.Error("Failed to invalidate unverifiable refresh token", logger.Error(invErr))
		}
		return Tokens{}, apperr.Wrap(apperr.InvalidRefreshToken, apperr.ErrInvalidRefreshToken.Message, err)
	}

	err = m.store.WithTx(ctx, func(q repository.Queries) error {
		locked, err := q.GetRefreshTokenForUpdate(ctx, refreshToken)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperr.ErrInvalidRefreshToken
			}
			return err
		}
		if !locked.IsValid {
			return apperr.ErrInvalidRefreshToken
		}

		if err := q.InvalidateRefreshToken(ctx, refreshToken); err != nil {
			return err
		}
		if err := q.TouchDevice(ctx, locked.DeviceID, m.now()); err != nil {
			return err
		}

		tokens, err = m.mint(ctx, q, locked.UserID, locked.DeviceID)
		return err
	})
	if err != nil {
		return Tokens{}, err
	}
	return tokens, nil
}

// Logout invalidates a refresh token. Unknown tokens are ignored.
func (m *Manager) Logout(ctx context.Context, refreshToken string) (err error) {
	defer func() { m.record("logout", err) }()
	return m.store.InvalidateRefreshToken(ctx, refreshToken)
}

// Devices lists the user's devices that still hold a valid refresh token, most recently used first.
func (m *Manager) Devices(ctx context.Context, userID string) ([]DeviceView, error) {
	devices, err := m.store.ListActiveDevices(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]DeviceView, 0, len(devices))
	for _, d := range devices {
		views = append(views, DeviceView{
			ID:         d.ID,
			Name:       d.Name,
			Type:       device.Type(d.Type),
			LastUsedAt: d.LastUsedAt,
		})
	}
	return views, nil
}

func (m *Manager) LogoutDevice(ctx context.Context, userID, deviceID string) (err error) {
	defer func() { m.record("logout_device", err) }()

	return m.store.WithTx(ctx, func(q repository.Queries) error {
		rt, err := q.GetValidRefreshTokenByDevice(ctx, userID, deviceID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperr.ErrDeviceNotFound
			}
			return err
		}
		return q.InvalidateRefreshToken(ctx, rt.Token)
	})
}

func (m *Manager) LogoutAllDevices(ctx context.Context, userID string) (err error) {
	defer func() { m.record("logout_all", err) }()

	n, err := m.store.InvalidateUserRefreshTokens(ctx, userID)
	if err != nil {
		return err
	}
	m.l.Info("All devices logged out", logger.String("user_id", userID), logger.Int64("tokens", n))
	return nil
}

// ChangePassword stores the new password and logs out every device except currentDeviceID.
func (m *Manager) ChangePassword(ctx context.Context, userID, password, confirmPassword, currentDeviceID string) (err error) {
	defer func() { m.record("change_password", err) }()

	if _, err := m.store.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.ErrUserNotFound
		}
		return err
	}
	if password != confirmPassword {
		return apperr.ErrPasswordMismatch
	}

	digest, err := m.hasher.Hash(password)
	if err != nil {
		return err
	}

	return m.store.WithTx(ctx, func(q repository.Queries) error {
		if err := q.UpdatePassword(ctx, userID, digest); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperr.ErrUserNotFound
			}
			return err
		}
		_, err := q.InvalidateUserRefreshTokensExcept(ctx, userID, currentDeviceID)
		return err
	})
}

// ForceUserLogout bumps the user's token version, so every outstanding access token is refused.
func (m *Manager) ForceUserLogout(ctx context.Context, userID string) (err error) {
	defer func() { m.record("force_logout", err) }()

	if err := m.store.IncrementTokenVersion(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.ErrUserNotFound
		}
		return err
	}
	m.l.Warn("User sessions revoked", logger.String("user_id", userID))
	return nil
}

// mint issues a token pair for (userID, deviceID) and leaves exactly one valid refresh token for the pair.
func (m *Manager) mint(ctx context.Context, q repository.Queries, userID, deviceID string) (Tokens, error) {
	user, err := q.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Tokens{}, apperr.ErrUserNotFound
		}
		return Tokens{}, err
	}

	if _, err := q.InvalidateDeviceRefreshTokens(ctx, userID, deviceID); err != nil {
		return Tokens{}, err
	}

	payload := token.Payload{UserID: userID, DeviceID: deviceID, TokenVersion: user.TokenVersion}
	access, err := m.codec.Sign(token.Access, payload)
	if err != nil {
		return Tokens{}, err
	}
	refresh, err := m.codec.Sign(token.Refresh, payload)
	if err != nil {
		return Tokens{}, err
	}

	if err := q.CreateRefreshToken(ctx, &models.RefreshToken{
		Token:    refresh,
		UserID:   userID,
		DeviceID: deviceID,
	}); err != nil {
		return Tokens{}, err
	}

	return Tokens{AccessToken: access, RefreshToken: refresh}, nil
}

func createDevice(ctx context.Context, q repository.Queries, userID string, info device.Info) (*models.Device, error) {
	dev := &models.Device{
		UserID: userID,
		Type:   string(info.Type),
		Name:   device.ResolveName(info),
	}
	if err := q.CreateDevice(ctx, dev); err != nil {
		return nil, err
	}
	return dev, nil
}

func (m *Manager) record(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = apperr.KindOf(err).String()
		if apperr.KindOf(err) == apperr.Internal {
			m.l.Error("Auth operation failed", logger.String("operation", op), logger.Error(err))
		}
	}
	m.metrics.AuthOperations.WithLabelValues(op, outcome).Inc()
}
