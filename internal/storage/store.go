// Package storage persists kept images, and optionally the assembled
// records, outside the search index. The returned location becomes the
// image_path of the indexed image.
package storage

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// ImageStore saves one image of a document and returns where it was put.
type ImageStore interface {
	PutImage(ctx context.Context, documentID, imageID, ext string, data []byte) (string, error)
}

// LocalStore writes images under a root directory:
// <root>/<document_id>/<image_id>.<ext>.
type LocalStore struct {
	root string
}

var _ ImageStore = (*LocalStore)(nil)

// NewLocal creates a LocalStore rooted at dir, creating it if needed.
func NewLocal(dir string) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	return &LocalStore{root: dir}, nil
}

// PutImage writes the image file and returns its path.
func (s *LocalStore) PutImage(ctx context.Context, documentID, imageID, ext string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := filepath.Join(s.root, filepath.Base(documentID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create document directory: %w", err)
	}

	p := filepath.Join(dir, imageFileName(imageID, ext))
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	return p, nil
}

func imageFileName(imageID, ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		ext = "bin"
	}
	return imageID + "." + ext
}

func contentType(ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ct := mime.TypeByExtension("." + ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
