package models

import (
	"context"
	"time"
)

// Queries is the set of reads and writes on users, devices and refresh tokens.
// The same methods run either directly on the pool or inside a transaction.
type Queries interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdateUser(ctx context.Context, id string, upd UserUpdate) (*User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	IncrementTokenVersion(ctx context.Context, id string) error

	CreateDevice(ctx context.Context, device *Device) error
	TouchDevice(ctx context.Context, id string, at time.Time) error
	// GetActiveDevice returns the device only if it belongs to userID and has a valid refresh token.
	GetActiveDevice(ctx context.Context, userID, deviceID string) (*Device, error)
	ListActiveDevices(ctx context.Context, userID string) ([]*Device, error)

	CreateRefreshToken(ctx context.Context, token *RefreshToken) error
	GetRefreshToken(ctx context.Context, token string) (*RefreshToken, error)
	// GetRefreshTokenForUpdate locks the row until the enclosing transaction ends.
	GetRefreshTokenForUpdate(ctx context.Context, token string) (*RefreshToken, error)
	GetValidRefreshTokenByDevice(ctx context.Context, userID, deviceID string) (*RefreshToken, error)
	// InvalidateRefreshToken is a no-op for unknown tokens.
	InvalidateRefreshToken(ctx context.Context, token string) error
	InvalidateDeviceRefreshTokens(ctx context.Context, userID, deviceID string) (int64, error)
	InvalidateUserRefreshTokens(ctx context.Context, userID string) (int64, error)
	InvalidateUserRefreshTokensExcept(ctx context.Context, userID, keepDeviceID string) (int64, error)
}

// Store is the Session Store: Queries on the pool plus a unit of work.
type Store interface {
	Queries
	// WithTx runs fn in one transaction: committed when fn returns nil, rolled back otherwise.
	WithTx(ctx context.Context, fn func(q Queries) error) error
	RunMigrations(migrationsPath string) error
	Close() error
}
