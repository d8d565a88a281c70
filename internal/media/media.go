// Package media stores uploaded images on local disk and returns their public URL.
package media

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"retailpos/backend/internal/domain"
	"retailpos/backend/internal/xid"
)

const MaxImageSize = 5 << 20

var (
	ErrEmptyFile   = errors.New("file data is empty")
	ErrTooLarge    = fmt.Errorf("file exceeds %d bytes", MaxImageSize)
	ErrNotAnImage  = errors.New("file is not an image")
	allowedExts    = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}
	contentTypeExt = map[string]string{"image/jpeg": ".jpg", "image/png": ".png", "image/gif": ".gif", "image/webp": ".webp"}
)

type Store interface {
	Save(ctx context.Context, folder string, upload domain.ImageUpload) (string, error)
}

// DiskStore writes files under root and serves them below urlPrefix.
type DiskStore struct {
	root      string
	urlPrefix string
}

func NewDiskStore(root, urlPrefix string) *DiskStore {
	return &DiskStore{root: root, urlPrefix: "/" + strings.Trim(urlPrefix, "/")}
}

func (s *DiskStore) Save(ctx context.Context, folder string, upload domain.ImageUpload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(upload.Data) == 0 {
		return "", ErrEmptyFile
	}
	if len(upload.Data) > MaxImageSize {
		return "", ErrTooLarge
	}

	detected := http.DetectContentType(upload.Data)
	if !strings.HasPrefix(detected, "image/") {
		return "", ErrNotAnImage
	}

	folder = sanitizeSegment(folder)
	name := xid.New() + extension(upload.Filename, detected)

	dir := filepath.Join(s.root, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), upload.Data, 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return path.Join(s.urlPrefix, folder, name), nil
}

func extension(filename, contentType string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if allowedExts[ext] {
		return ext
	}
	if ext, ok := contentTypeExt[contentType]; ok {
		return ext
	}
	return ".img"
}

func sanitizeSegment(segment string) string {
	segment = strings.ToLower(strings.TrimSpace(segment))
	var b strings.Builder
	for _, r := range segment {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "misc"
	}
	return b.String()
}
