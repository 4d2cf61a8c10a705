package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	"github.com/AtoyanMikhail/deviceauth/internal/storage"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
)

const avatarField = "avatar"

var (
	allowedAvatarTypes      = []string{"image/jpeg", "image/png", "image/webp"}
	allowedAvatarExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}
)

type uploadError struct{ message string }

func (e *uploadError) Error() string { return e.message }

// readAvatar returns the optional avatar of a multipart request. The content type is sniffed
// from the bytes; the client-declared one is ignored.
func (h *Handler) readAvatar(c *gin.Context) (*storage.Object, error) {
	header, err := c.FormFile(avatarField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, &uploadError{message: err.Error()}
	}

	if header.Size > h.maxUploadBytes {
		return nil, &uploadError{message: fmt.Sprintf("File too large. Maximum size allowed is %dMB", h.maxUploadBytes>>20)}
	}

	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open avatar: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read avatar: %w", err)
	}
	if int64(len(data)) > h.maxUploadBytes {
		return nil, &uploadError{message: fmt.Sprintf("File too large. Maximum size allowed is %dMB", h.maxUploadBytes>>20)}
	}

	mtype := mimetype.Detect(data)
	if !mimetype.EqualsAny(mtype.String(), allowedAvatarTypes...) {
		return nil, &uploadError{message: "Invalid file type. Allowed types: " + strings.Join(allowedAvatarTypes, ", ")}
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !slices.Contains(allowedAvatarExtensions, ext) {
		return nil, &uploadError{message: "Invalid file extension. Allowed extensions: " + strings.Join(allowedAvatarExtensions, ", ")}
	}

	return &storage.Object{
		Data:        data,
		ContentType: mtype.String(),
		Filename:    header.Filename,
	}, nil
}
