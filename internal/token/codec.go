// Package token signs and verifies the compact JWTs handed to clients.
//
// There are two independent signing domains: access tokens are short lived and checked
// on every protected request, refresh tokens are long lived and exchanged for a new pair.
// Each domain has its own secret, so a token from one domain never verifies in the other.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Domain int

const (
	Access Domain = iota
	Refresh
)

func (d Domain) String() string {
	switch d {
	case Access:
		return "access"
	case Refresh:
		return "refresh"
	default:
		return "unknown"
	}
}

var (
	ErrExpiredToken   = errors.New("token expired")
	ErrMalformedToken = errors.New("malformed token")
)

// Payload is what both token kinds carry.
type Payload struct {
	UserID       string
	DeviceID     string
	TokenVersion int
}

type DomainConfig struct {
	Secret string
	TTL    time.Duration
}

type Codec interface {
	Sign(domain Domain, payload Payload) (string, error)
	Verify(domain Domain, token string) (Payload, error)
}

type claims struct {
	UserID       string `json:"userId"`
	DeviceID     string `json:"deviceId"`
	TokenVersion int    `json:"tokenVersion"`
	jwt.RegisteredClaims
}

type jwtCodec struct {
	domains map[Domain]DomainConfig
	now     func() time.Time
}

// NewCodec creates an HS256 codec for the access and refresh domains.
func NewCodec(access, refresh DomainConfig) Codec {
	return newCodec(access, refresh, time.Now)
}

func newCodec(access, refresh DomainConfig, now func() time.Time) *jwtCodec {
	return &jwtCodec{
		domains: map[Domain]DomainConfig{
			Access:  access,
			Refresh: refresh,
		},
		now: now,
	}
}

// Sign embeds the payload plus iat, exp and a random jti. The jti keeps two tokens
// signed within the same second for the same payload distinct.
func (c *jwtCodec) Sign(domain Domain, payload Payload) (string, error) {
	cfg, ok := c.domains[domain]
	if !ok {
		return "", fmt.Errorf("unknown token domain %d", domain)
	}

	now := c.now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID:       payload.UserID,
		DeviceID:     payload.DeviceID,
		TokenVersion: payload.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TTL)),
		},
	})

	signed, err := t.SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", domain, err)
	}
	return signed, nil
}

// Verify returns ErrExpiredToken for a correctly signed token past its expiry and
// ErrMalformedToken for anything else that fails verification.
func (c *jwtCodec) Verify(domain Domain, token string) (Payload, error) {
	cfg, ok := c.domains[domain]
	if !ok {
		return Payload{}, fmt.Errorf("unknown token domain %d", domain)
	}

	parsed := &claims{}
	_, err := jwt.ParseWithClaims(token, parsed, func(*jwt.Token) (interface{}, error) {
		return []byte(cfg.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Payload{}, ErrExpiredToken
		}
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	if parsed.UserID == "" || parsed.DeviceID == "" {
		return Payload{}, fmt.Errorf("%w: missing subject claims", ErrMalformedToken)
	}

	return Payload{
		UserID:       parsed.UserID,
		DeviceID:     parsed.DeviceID,
		TokenVersion: parsed.TokenVersion,
	}, nil
}
