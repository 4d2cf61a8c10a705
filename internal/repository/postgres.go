package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AtoyanMikhail/deviceauth/internal/config"
	"github.com/AtoyanMikhail/deviceauth/internal/logger"
	"github.com/AtoyanMikhail/deviceauth/internal/repository/models"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file" //used for migrations
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq" //postgres driver
)

const (
	uniqueViolation = "23505"
	// invalidTextRepresentation is raised for ids that are not valid uuids.
	invalidTextRepresentation = "22P02"
)

const (
	userColumns   = `id, email, name, password_hash, avatar_key, token_version, created_at, updated_at`
	deviceColumns = `d.id, d.user_id, d.type, d.name, d.last_used_at, d.created_at`
	tokenColumns  = `id, token, user_id, device_id, is_valid, created_at`
)

type postgresStore struct {
	*queries
	db  *sqlx.DB
	cfg config.DatabaseConfig
}

// queries runs against either the pool or a transaction.
type queries struct {
	ext sqlx.ExtContext
	l   logger.Logger
}

func NewPostgresStore(cfg config.DatabaseConfig, l logger.Logger) (models.Store, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.DBName,
		cfg.SSLMode,
	)
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open db connection: %v", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("could not establish db connection: %v", err)
	}

	return newPostgresStore(db, cfg, l), nil
}

func newPostgresStore(db *sqlx.DB, cfg config.DatabaseConfig, l logger.Logger) *postgresStore {
	return &postgresStore{
		queries: &queries{ext: db, l: l},
		db:      db,
		cfg:     cfg,
	}
}

func (s *postgresStore) Close() error {
	return s.db.Close()
}

func (s *postgresStore) RunMigrations(migrationsPath string) error {
	driver, err := postgres.WithInstance(s.db.DB, &postgres.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://"+migrationsPath,
		"postgres", driver,
	)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}

	return nil
}

func (s *postgresStore) WithTx(ctx context.Context, fn func(q models.Queries) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&queries{ext: tx, l: s.l}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.l.Error("Failed to rollback transaction", logger.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func mapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case uniqueViolation:
			return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Constraint)
		case invalidTextRepresentation:
			return ErrNotFound
		}
	}
	return err
}

func (q *queries) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (email, name, password_hash, avatar_key)
		VALUES (:email, :name, :password_hash, :avatar_key)
		RETURNING id, token_version, created_at, updated_at`

	rows, err := sqlx.NamedQueryContext(ctx, q.ext, query, user)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", mapError(err))
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return fmt.Errorf("failed to create user: %w", mapError(err))
		}
		return fmt.Errorf("failed to create user: no row returned")
	}
	if err := rows.Scan(&user.ID, &user.TokenVersion, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return fmt.Errorf("failed to scan created user: %w", err)
	}

	q.l.Info("User created", logger.String("user_id", user.ID))
	return nil
}

func (q *queries) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user := &models.User{}
	if err := sqlx.GetContext(ctx, q.ext, user, query, id); err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", id, mapError(err))
	}
	return user, nil
}

func (q *queries) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user := &models.User{}
	if err := sqlx.GetContext(ctx, q.ext, user, query, email); err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", mapError(err))
	}
	return user, nil
}

func (q *queries) UpdateUser(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error) {
	query := `
		UPDATE users
		SET name = COALESCE($2, name),
			email = COALESCE($3, email),
			avatar_key = COALESCE($4, avatar_key),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	user := &models.User{}
	if err := sqlx.GetContext(ctx, q.ext, user, query, id, upd.Name, upd.Email, upd.AvatarKey); err != nil {
		return nil, fmt.Errorf("failed to update user %s: %w", id, mapError(err))
	}

	q.l.Info("User updated", logger.String("user_id", id))
	return user, nil
}

func (q *queries) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`
	return q.execOne(ctx, "update password", query, id, passwordHash)
}

func (q *queries) IncrementTokenVersion(ctx context.Context, id string) error {
	query := `UPDATE users SET token_version = token_version + 1, updated_at = NOW() WHERE id = $1`
	return q.execOne(ctx, "increment token version", query, id)
}

func (q *queries) CreateDevice(ctx context.Context, device *models.Device) error {
	query := `
		INSERT INTO devices (user_id, type, name)
		VALUES ($1, $2, $3)
		RETURNING id, last_used_at, created_at`

	err := q.ext.QueryRowxContext(ctx, query, device.UserID, device.Type, device.Name).
		Scan(&device.ID, &device.LastUsedAt, &device.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create device: %w", mapError(err))
	}

	q.l.Info("Device created",
		logger.String("device_id", device.ID),
		logger.String("user_id", device.UserID),
		logger.String("type", device.Type))
	return nil
}

func (q *queries) TouchDevice(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE devices SET last_used_at = $2 WHERE id = $1`
	return q.execOne(ctx, "touch device", query, id, at)
}

func (q *queries) GetActiveDevice(ctx context.Context, userID, deviceID string) (*models.Device, error) {
	query := `
		SELECT ` + deviceColumns + `
		FROM devices d
		WHERE d.user_id = $1 AND d.id = $2
			AND EXISTS (SELECT 1 FROM refresh_tokens rt WHERE rt.device_id = d.id AND rt.is_valid)`

	device := &models.Device{}
	if err := sqlx.GetContext(ctx, q.ext, device, query, userID, deviceID); err != nil {
		return nil, fmt.Errorf("failed to get active device %s: %w", deviceID, mapError(err))
	}
	return device, nil
}

func (q *queries) ListActiveDevices(ctx context.Context, userID string) ([]*models.Device, error) {
	query := `
		SELECT ` + deviceColumns + `
		FROM devices d
		WHERE d.user_id = $1
			AND EXISTS (SELECT 1 FROM refresh_tokens rt WHERE rt.device_id = d.id AND rt.is_valid)
		ORDER BY d.last_used_at DESC`

	var devices []*models.Device
	if err := sqlx.SelectContext(ctx, q.ext, &devices, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list devices for user %s: %w", userID, err)
	}
	return devices, nil
}

func (q *queries) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (token, user_id, device_id)
		VALUES (:token, :user_id, :device_id)
		RETURNING id, is_valid, created_at`

	rows, err := sqlx.NamedQueryContext(ctx, q.ext, query, token)
	if err != nil {
		q.l.Error("Failed to execute insert query", logger.Error(err))
		return fmt.Errorf("failed to create refresh token: %w", mapError(err))
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return fmt.Errorf("failed to create refresh token: %w", mapError(err))
		}
		return fmt.Errorf("failed to create refresh token: no row returned")
	}
	if err := rows.Scan(&token.ID, &token.IsValid, &token.CreatedAt); err != nil {
		return fmt.Errorf("failed to scan refresh token: %w", err)
	}

	q.l.Debug("Refresh token created",
		logger.String("user_id", token.UserID),
		logger.String("device_id", token.DeviceID))
	return nil
}

func (q *queries) GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM refresh_tokens WHERE token = $1`
	return q.getToken(ctx, query, token)
}

func (q *queries) GetRefreshTokenForUpdate(ctx context.Context, token string) (*models.RefreshToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM refresh_tokens WHERE token = $1 FOR UPDATE`
	return q.getToken(ctx, query, token)
}

func (q *queries) GetValidRefreshTokenByDevice(ctx context.Context, userID, deviceID string) (*models.RefreshToken, error) {
	query := `
		SELECT ` + tokenColumns + `
		FROM refresh_tokens
		WHERE user_id = $1 AND device_id = $2 AND is_valid
		ORDER BY created_at DESC
		LIMIT 1`
	return q.getToken(ctx, query, userID, deviceID)
}

func (q *queries) getToken(ctx context.Context, query string, args ...interface{}) (*models.RefreshToken, error) {
	rt := &models.RefreshToken{}
	if err := sqlx.GetContext(ctx, q.ext, rt, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get refresh token: %w", mapError(err))
	}
	return rt, nil
}

func (q *queries) InvalidateRefreshToken(ctx context.Context, token string) error {
	query := `UPDATE refresh_tokens SET is_valid = false WHERE token = $1`

	if _, err := q.ext.ExecContext(ctx, query, token); err != nil {
		q.l.Error("Failed to invalidate refresh token", logger.Error(err))
		return fmt.Errorf("failed to invalidate refresh token: %w", err)
	}
	return nil
}

func (q *queries) InvalidateDeviceRefreshTokens(ctx context.Context, userID, deviceID string) (int64, error) {
	query := `UPDATE refresh_tokens SET is_valid = false WHERE user_id = $1 AND device_id = $2 AND is_valid`
	return q.execCount(ctx, "invalidate device tokens", query, userID, deviceID)
}

func (q *queries) InvalidateUserRefreshTokens(ctx context.Context, userID string) (int64, error) {
	query := `UPDATE refresh_tokens SET is_valid = false WHERE user_id = $1 AND is_valid`
	return q.execCount(ctx, "invalidate user tokens", query, userID)
}

func (q *queries) InvalidateUserRefreshTokensExcept(ctx context.Context, userID, keepDeviceID string) (int64, error) {
	query := `UPDATE refresh_tokens SET is_valid = false WHERE user_id = $1 AND device_id <> $2 AND is_valid`
	return q.execCount(ctx, "invalidate other device tokens", query, userID, keepDeviceID)
}

func (q *queries) execCount(ctx context.Context, op, query string, args ...interface{}) (int64, error) {
	result, err := q.ext.ExecContext(ctx, query, args...)
	if err != nil {
		q.l.Error("Failed to "+op, logger.Error(err))
		return 0, fmt.Errorf("failed to %s: %w", op, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

// execOne fails with ErrNotFound when no row was affected.
func (q *queries) execOne(ctx context.Context, op, query string, args ...interface{}) error {
	n, err := q.execCount(ctx, op, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		q.l.Warn("No rows affected", logger.String("op", op))
		return fmt.Errorf("failed to %s: %w", op, ErrNotFound)
	}
	return nil
}
