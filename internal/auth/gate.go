package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/AtoyanMikhail/deviceauth/internal/apperr"
	"github.com/AtoyanMikhail/deviceauth/internal/logger"
	"github.com/AtoyanMikhail/deviceauth/internal/metrics"
	"github.com/AtoyanMikhail/deviceauth/internal/repository"
	"github.com/AtoyanMikhail/deviceauth/internal/token"
)

const bearerPrefix = "Bearer "

// errGateUserNotFound is a 401, unlike the service-level UserNotFound.
var errGateUserNotFound = apperr.New(apperr.Unauthenticated, "User not found.")

// Gate verifies access tokens against the current state of the user and the device.
type Gate struct {
	store   repository.Queries
	codec   token.Codec
	metrics *metrics.Metrics
	l       logger.Logger
}

func NewGate(store repository.Queries, codec token.Codec, m *metrics.Metrics, l logger.Logger) *Gate {
	return &Gate{store: store, codec: codec, metrics: m, l: l}
}

// Authenticate accepts "Bearer <access token>" only while the token's version matches the
// user's and its device still holds a valid refresh token.
func (g *Gate) Authenticate(ctx context.Context, authorization string) (Identity, error) {
	raw, ok := strings.CutPrefix(authorization, bearerPrefix)
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		return Identity{}, g.reject("missing_token", apperr.ErrUnauthenticated, nil)
	}

	payload, err := g.codec.Verify(token.Access, raw)
	if err != nil {
		if errors.Is(err, token.ErrExpiredToken) {
			return Identity{}, g.reject("token_expired", apperr.ErrTokenExpired, err)
		}
		return Identity{}, g.reject("invalid_token", apperr.ErrInvalidToken, err)
	}

	user, err := g.store.GetUserByID(ctx, payload.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Identity{}, g.reject("user_not_found", errGateUserNotFound, nil)
		}
		return Identity{}, err
	}

	if user.TokenVersion != payload.TokenVersion {
		return Identity{}, g.reject("token_revoked", apperr.ErrTokenRevoked, nil)
	}

	if _, err := g.store.GetActiveDevice(ctx, user.ID, payload.DeviceID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Identity{}, g.reject("device_logged_out", apperr.ErrDeviceLoggedOut, nil)
		}
		return Identity{}, err
	}

	return Identity{
		UserID:       user.ID,
		Email:        user.Email,
		Name:         user.Name,
		TokenVersion: user.TokenVersion,
		DeviceID:     payload.DeviceID,
	}, nil
}

func (g *Gate) reject(reason string, rejection *apperr.Error, cause error) error {
	g.metrics.GateRejections.WithLabelValues(reason).Inc()
	g.l.Warn("Request rejected by auth gate",
		logger.String("reason", reason),
		logger.Error(cause))
	return rejection
}
