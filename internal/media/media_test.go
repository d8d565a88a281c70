package media

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"retailpos/backend/internal/domain"
)

// smallest valid PNG header is enough for content sniffing.
var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func TestDiskStoreSavesImage(t *testing.T) {
	root := t.TempDir()
	s := NewDiskStore(root, "uploads")

	url, err := s.Save(context.Background(), "products", domain.ImageUpload{Filename: "../../etc/phone.PNG", Data: pngBytes})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "/uploads/products/"))
	require.True(t, strings.HasSuffix(url, ".png"))

	data, err := os.ReadFile(filepath.Join(root, "products", filepath.Base(url)))
	require.NoError(t, err)
	require.Equal(t, pngBytes, data)
}

func TestDiskStoreRejectsNonImages(t *testing.T) {
	s := NewDiskStore(t.TempDir(), "/uploads/")

	_, err := s.Save(context.Background(), "avatars", domain.ImageUpload{Filename: "a.png", Data: []byte("hello world")})
	require.ErrorIs(t, err, ErrNotAnImage)

	_, err = s.Save(context.Background(), "avatars", domain.ImageUpload{Filename: "a.png"})
	require.ErrorIs(t, err, ErrEmptyFile)
}

func TestSanitizeSegment(t *testing.T) {
	require.Equal(t, "products", sanitizeSegment("../Products"))
	require.Equal(t, "misc", sanitizeSegment("../.."))
}
