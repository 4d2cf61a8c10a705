package handler

import (
	"errors"
	"net/http"

	"github.com/AtoyanMikhail/deviceauth/internal/apperr"
	"github.com/AtoyanMikhail/deviceauth/internal/logger"
	"github.com/AtoyanMikhail/deviceauth/internal/models"
	"github.com/gin-gonic/gin"
)

const internalErrorMessage = "Internal server error"

// respondError writes the caller-facing message of a classified error. Anything else is
// logged and reported as an internal error.
func (h *Handler) respondError(c *gin.Context, err error) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Kind != apperr.Internal {
		c.AbortWithStatusJSON(appErr.Kind.Status(), models.ErrorRes{Error: appErr.Message})
		return
	}

	h.l.Error("Request failed",
		logger.String("method", c.Request.Method),
		logger.String("path", c.FullPath()),
		logger.String("request_id", c.GetString(requestIDKey)),
		logger.Error(err))
	c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorRes{Error: internalErrorMessage})
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorRes{Error: message})
}
