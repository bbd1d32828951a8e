// Package imagestore persists claim evidence photos and profile pictures.
//
// Every backend lays objects out as <prefix>/<scope>/<generated name> so a
// claim's images can be listed by scope. Returned paths are backend-relative
// and safe to store in the database.
package imagestore

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "farmshield/pkg/domain-errors"
)

// File is one uploaded image.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Store is implemented by every backend.
type Store interface {
	Store(ctx context.Context, scope string, file File) (string, error)
	List(ctx context.Context, scope string) ([]string, error)
}

var allowedExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".heic": "image/heic",
}

// Validate rejects empty, oversized and non-image uploads.
func Validate(file File, maxBytes int64) error {
	if len(file.Data) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "image is empty")
	}
	if maxBytes > 0 && int64(len(file.Data)) > maxBytes {
		return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("image exceeds %d bytes", maxBytes))
	}
	if _, ok := allowedExtensions[strings.ToLower(path.Ext(file.Name))]; !ok {
		return dErrors.New(dErrors.CodeInvalidInput, "image must be jpg, png, webp or heic")
	}
	return nil
}

// objectKey builds "<prefix>/<scope>/<unix>_<uuid8><ext>".
func objectKey(prefix, scope string, file File, now time.Time) (string, error) {
	scope = strings.Trim(scope, "/")
	if scope == "" || strings.Contains(scope, "..") {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid image scope")
	}
	ext := strings.ToLower(path.Ext(file.Name))
	name := fmt.Sprintf("%d_%s%s", now.Unix(), uuid.NewString()[:8], ext)
	return path.Join(prefix, scope, name), nil
}

func contentType(file File) string {
	if file.ContentType != "" {
		return file.ContentType
	}
	if ct, ok := allowedExtensions[strings.ToLower(path.Ext(file.Name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

func scopePrefix(prefix, scope string) string {
	return path.Join(prefix, strings.Trim(scope, "/")) + "/"
}
