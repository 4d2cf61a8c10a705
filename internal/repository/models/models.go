package models

import "time"

type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	Name         string    `db:"name" json:"name"`
	PasswordHash string    `db:"password_hash" json:"-"`
	AvatarKey    *string   `db:"avatar_key" json:"avatar_key,omitempty"`
	TokenVersion int       `db:"token_version" json:"token_version"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Device is one logical client session context, created per signup/login event.
type Device struct {
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	Type       string    `db:"type" json:"type"`
	Name       string    `db:"name" json:"name"`
	LastUsedAt time.Time `db:"last_used_at" json:"last_used_at"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// RefreshToken is a single-use rotation record. It is invalidated, never deleted.
type RefreshToken struct {
	ID        string    `db:"id" json:"id"`
	Token     string    `db:"token" json:"-"`
	UserID    string    `db:"user_id" json:"user_id"`
	DeviceID  string    `db:"device_id" json:"device_id"`
	IsValid   bool      `db:"is_valid" json:"is_valid"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// UserUpdate carries the optional profile fields; nil means unchanged.
type UserUpdate struct {
	Name      *string
	Email     *string
	AvatarKey *string
}
