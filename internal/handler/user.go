package handler

import (
	"net/http"

	"github.com/AtoyanMikhail/deviceauth/internal/models"
	"github.com/AtoyanMikhail/deviceauth/internal/user"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// Me handles GET /users/me.
func (h *Handler) Me(c *gin.Context) {
	profile, err := h.profiles.Me(c.Request.Context(), identity(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// UpdateMe handles PATCH /users/me (multipart form, every field optional).
func (h *Handler) UpdateMe(c *gin.Context) {
	var req models.UpdateProfileReq
	if err := c.ShouldBindWith(&req, binding.FormMultipart); err != nil {
		badRequest(c, validationMessage(err))
		return
	}

	avatar, err := h.readAvatar(c)
	if err != nil {
		h.respondUploadError(c, err)
		return
	}

	profile, err := h.profiles.Update(c.Request.Context(), identity(c).UserID, user.UpdateInput{
		Name:   req.Name,
		Email:  req.Email,
		Avatar: avatar,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}
