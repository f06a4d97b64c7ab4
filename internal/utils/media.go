package utils

import (
	"errors"
	"fmt"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// MediaPrefix is the URL path under which uploaded files are served.
const MediaPrefix = "/media"

// ErrUnsupportedFileType is returned for uploads that are not images.
var ErrUnsupportedFileType = errors.New("unsupported file type")

var allowedImageExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// SaveUpload stores an uploaded image below root/dir and returns its relative path.
func SaveUpload(c *fiber.Ctx, file *multipart.FileHeader, root, dir string) (string, error) {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedImageExt[ext] {
		return "", fmt.Errorf("%w %q", ErrUnsupportedFileType, ext)
	}

	if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
		return "", err
	}

	rel := path.Join(dir, uuid.NewString()+ext)
	if err := c.SaveFile(file, filepath.Join(root, filepath.FromSlash(rel))); err != nil {
		return "", err
	}
	return rel, nil
}

// MediaURL turns a stored relative path into an absolute URL for the current request host.
func MediaURL(c *fiber.Ctx, rel string) string {
	if rel == "" {
		return ""
	}
	if strings.HasPrefix(rel, "http://") || strings.HasPrefix(rel, "https://") {
		return rel
	}
	return fmt.Sprintf("%s://%s%s/%s", c.Protocol(), c.Hostname(), MediaPrefix, strings.TrimPrefix(rel, "/"))
}
