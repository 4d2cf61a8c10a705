// Package storage stores avatar bytes in an S3-compatible bucket and hands out time-limited URLs.
package storage

import (
	"context"
	"path"
	"strings"
)

// AvatarFolder is the folder profile pictures are stored under.
const AvatarFolder = "avatars"

// Object is an in-memory file ready for upload.
type Object struct {
	Data        []byte
	ContentType string
	Filename    string
}

type Storage interface {
	// Upload stores the object under folder and returns its key.
	Upload(ctx context.Context, obj Object, folder string) (string, error)
	// PresignURL returns a time-limited retrieval URL for key.
	PresignURL(ctx context.Context, key string) (string, error)
}

var extensionsByContentType = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// extension picks the key extension from the filename, falling back to the content type.
func extension(obj Object) string {
	if ext := strings.TrimPrefix(strings.ToLower(path.Ext(obj.Filename)), "."); ext != "" {
		return ext
	}
	if ext, ok := extensionsByContentType[obj.ContentType]; ok {
		return ext
	}
	return "bin"
}
