package handler

import (
	"errors"
	"net/http"

	"github.com/AtoyanMikhail/deviceauth/internal/auth"
	"github.com/AtoyanMikhail/deviceauth/internal/device"
	"github.com/AtoyanMikhail/deviceauth/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// Signup handles POST /auth/signup (multipart form with an optional avatar).
func (h *Handler) Signup(c *gin.Context) {
	var req models.SignupReq
	if err := c.ShouldBindWith(&req, binding.FormMultipart); err != nil {
		badRequest(c, validationMessage(err))
		return
	}

	avatar, err := h.readAvatar(c)
	if err != nil {
		h.respondUploadError(c, err)
		return
	}

	deviceType, _ := device.ParseType(req.DeviceType)
	tokens, err := h.auth.Signup(c.Request.Context(), auth.SignupInput{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Name:            req.Name,
		Avatar:          avatar,
		Device:          device.Info{Type: deviceType, UserAgent: c.Request.UserAgent(), Model: req.Model},
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.TokensRes{Tokens: tokens})
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req models.LoginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, validationMessage(err))
		return
	}

	deviceType, _ := device.ParseType(req.DeviceType)
	tokens, err := h.auth.Login(c.Request.Context(), req.Email, req.Password,
		device.Info{Type: deviceType, UserAgent: c.Request.UserAgent(), Model: req.Model})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.TokensRes{Tokens: tokens})
}

// Refresh handles POST /auth/refresh.
func (h *Handler) Refresh(c *gin.Context) {
	var req models.RefreshTokenReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, validationMessage(err))
		return
	}

	tokens, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.TokensRes{Tokens: tokens})
}

// Logout handles POST /auth/logout.
func (h *Handler) Logout(c *gin.Context) {
	var req models.RefreshTokenReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, validationMessage(err))
		return
	}

	if err := h.auth.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MessageRes{Message: "Successfully logged out"})
}

// Devices handles GET /auth/devices.
func (h *Handler) Devices(c *gin.Context) {
	devices, err := h.auth.Devices(c.Request.Context(), identity(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.DevicesRes{Devices: devices})
}

// LogoutDevice handles POST /auth/logout/device. The caller's own device is refused.
func (h *Handler) LogoutDevice(c *gin.Context) {
	var req models.LogoutDeviceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, validationMessage(err))
		return
	}

	id := identity(c)
	if req.DeviceID == id.DeviceID {
		badRequest(c, "Cannot log out the current device, use /auth/logout instead")
		return
	}

	if err := h.auth.LogoutDevice(c.Request.Context(), id.UserID, req.DeviceID); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MessageRes{Message: "Device logged out successfully"})
}

// LogoutAllDevices handles POST /auth/logout/device/all.
func (h *Handler) LogoutAllDevices(c *gin.Context) {
	if err := h.auth.LogoutAllDevices(c.Request.Context(), identity(c).UserID); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MessageRes{Message: "All devices logged out successfully"})
}

// ChangePassword handles PATCH /auth/password.
func (h *Handler) ChangePassword(c *gin.Context) {
	var req models.ChangePasswordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, validationMessage(err))
		return
	}

	id := identity(c)
	if err := h.auth.ChangePassword(c.Request.Context(), id.UserID, req.Password, req.ConfirmPassword, id.DeviceID); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MessageRes{Message: "Password changed successfully"})
}

func (h *Handler) respondUploadError(c *gin.Context, err error) {
	var uploadErr *uploadError
	if errors.As(err, &uploadErr) {
		badRequest(c, uploadErr.message)
		return
	}
	h.respondError(c, err)
}
