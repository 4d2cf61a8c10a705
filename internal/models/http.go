package models

import (
	"github.com/AtoyanMikhail/deviceauth/internal/auth"
)

// SignupReq is bound from a multipart form; the avatar file is read separately.
type SignupReq struct {
	Email           string `form:"email" binding:"required,email"`
	Password        string `form:"password" binding:"required,min=8,password"`
	ConfirmPassword string `form:"confirmPassword" binding:"required"`
	Name            string `form:"name" binding:"required,min=2,max=50,personname"`
	DeviceType      string `form:"deviceType" binding:"required,oneof=web ios android other"`
	Model           string `form:"model" binding:"omitempty,max=100"`
}

type LoginReq struct {
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required"`
	DeviceType string `json:"deviceType" binding:"required,oneof=web ios android other"`
	Model      string `json:"model" binding:"omitempty,max=100"`
}

type RefreshTokenReq struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type LogoutDeviceReq struct {
	DeviceID string `json:"deviceId" binding:"required,uuid"`
}

type ChangePasswordReq struct {
	Password        string `json:"password" binding:"required,min=8,password"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

// UpdateProfileReq is bound from a multipart form. Absent fields stay nil.
type UpdateProfileReq struct {
	Name  *string `form:"name" binding:"omitempty,min=2,max=50,personname"`
	Email *string `form:"email" binding:"omitempty,email"`
}

type TokensRes struct {
	Tokens auth.Tokens `json:"tokens"`
}

type DevicesRes struct {
	Devices []auth.DeviceView `json:"devices"`
}

type MessageRes struct {
	Message string `json:"message"`
}

type ErrorRes struct {
	Error string `json:"error"`
}
