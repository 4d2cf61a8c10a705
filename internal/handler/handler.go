// Package handler exposes the auth and profile services over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/AtoyanMikhail/deviceauth/internal/auth"
	"github.com/AtoyanMikhail/deviceauth/internal/device"
	"github.com/AtoyanMikhail/deviceauth/internal/logger"
	"github.com/AtoyanMikhail/deviceauth/internal/metrics"
	"github.com/AtoyanMikhail/deviceauth/internal/user"
	"github.com/gin-gonic/gin"
)

type AuthService interface {
	Signup(ctx context.Context, in auth.SignupInput) (auth.Tokens, error)
	Login(ctx context.Context, email, password string, info device.Info) (auth.Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (auth.Tokens, error)
	Logout(ctx context.Context, refreshToken string) error
	Devices(ctx context.Context, userID string) ([]auth.DeviceView, error)
	LogoutDevice(ctx context.Context, userID, deviceID string) error
	LogoutAllDevices(ctx context.Context, userID string) error
	ChangePassword(ctx context.Context, userID, password, confirmPassword, currentDeviceID string) error
}

type ProfileService interface {
	Me(ctx context.Context, userID string) (user.Profile, error)
	Update(ctx context.Context, userID string, in user.UpdateInput) (user.Profile, error)
}

type Authenticator interface {
	Authenticate(ctx context.Context, authorization string) (auth.Identity, error)
}

type Handler struct {
	auth           AuthService
	profiles       ProfileService
	gate           Authenticator
	metrics        *metrics.Metrics
	l              logger.Logger
	maxUploadBytes int64
}

func New(
	authService AuthService,
	profiles ProfileService,
	gate Authenticator,
	m *metrics.Metrics,
	l logger.Logger,
	maxUploadBytes int64,
) *Handler {
	return &Handler{
		auth:           authService,
		profiles:       profiles,
		gate:           gate,
		metrics:        m,
		l:              l,
		maxUploadBytes: maxUploadBytes,
	}
}

// Router builds the gin engine with every route and the shared middleware.
func (h *Handler) Router() *gin.Engine {
	registerValidations()

	r := gin.New()
	r.MaxMultipartMemory = h.maxUploadBytes
	r.Use(h.Recovery(), h.RequestLogger(), h.Metrics())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/signup", h.Signup)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/refresh", h.Refresh)

		protected := authGroup.Group("", h.RequireAuth())
		protected.POST("/logout", h.Logout)
		protected.GET("/devices", h.Devices)
		protected.POST("/logout/device", h.LogoutDevice)
		protected.POST("/logout/device/all", h.LogoutAllDevices)
		protected.PATCH("/password", h.ChangePassword)
	}

	users := r.Group("/users", h.RequireAuth())
	{
		users.GET("/me", h.Me)
		users.PATCH("/me", h.UpdateMe)
	}

	return r
}
