package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("login: %w", ErrInvalidCredentials)

	assert.Equal(t, InvalidCredentials, KindOf(wrapped))
	assert.Equal(t, Internal, KindOf(errors.New("db is down")))
	assert.Equal(t, Internal, KindOf(nil))
	assert.True(t, errors.Is(wrapped, ErrInvalidCredentials))
	assert.False(t, errors.Is(wrapped, ErrPasswordMismatch))
}

func TestWrap_KeepsCause(t *testing.T) {
	cause := errors.New("duplicate key")
	err := Wrap(CredentialsInUse, "Credentials already in use", cause)

	assert.True(t, errors.Is(err, cause))
	assert.True(t, errors.Is(err, ErrCredentialsInUse))
	assert.Equal(t, "Credentials already in use: duplicate key", err.Error())
}

func TestKind_Status(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{Validation, http.StatusBadRequest},
		{PasswordMismatch, http.StatusBadRequest},
		{CredentialsInUse, http.StatusConflict},
		{InvalidCredentials, http.StatusUnauthorized},
		{InvalidRefreshToken, http.StatusUnauthorized},
		{TokenRevoked, http.StatusUnauthorized},
		{DeviceLoggedOut, http.StatusUnauthorized},
		{UserNotFound, http.StatusNotFound},
		{DeviceNotFound, http.StatusNotFound},
		{Internal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.Status())
		})
	}
}
