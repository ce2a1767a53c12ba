// Package extract reads text, document-info metadata and embedded images from
// PDF and DOCX files.
//
// Extraction degrades instead of failing: an encrypted document, a damaged
// page or an unreadable image becomes a Fault on the result and the remaining
// content is still returned. Only an unsupported type or an unopenable file is
// reported as an error.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mfenderov/docindex/pkg/models"
)

// Config holds extractor configuration.
type Config struct {
	// MaxFileSize is the largest file accepted, in bytes (default: 100 MB).
	MaxFileSize int64
	Logger      *slog.Logger
}

func (c *Config) defaults() {
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 100 * 1024 * 1024
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Extractor dispatches extraction by file type. It holds no per-document
// state and is safe for concurrent use.
type Extractor struct {
	cfg    Config
	logger *slog.Logger
}

// New creates an Extractor.
func New(config Config) *Extractor {
	config.defaults()
	return &Extractor{cfg: config, logger: config.Logger}
}

// DetectFileType maps a file name to a supported type by its extension.
func DetectFileType(name string) (models.FileType, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return models.FileTypePDF, nil
	case ".docx":
		return models.FileTypeDOCX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
	}
}

// Extract reads the file at path as the given type.
func (e *Extractor) Extract(ctx context.Context, path string, fileType models.FileType) (*Extraction, error) {
	if fileType != models.FileTypePDF && fileType != models.FileTypeDOCX {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, fileType)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrUnreadable, path)
	}
	if info.Size() > e.cfg.MaxFileSize {
		return nil, fmt.Errorf("%w: file too large: %d bytes (max %d)", ErrUnreadable, info.Size(), e.cfg.MaxFileSize)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.logger.Debug("extracting document", "path", path, "file_type", fileType)

	var result *Extraction
	switch fileType {
	case models.FileTypePDF:
		result = extractPDF(ctx, path)
	case models.FileTypeDOCX:
		result = extractDocx(ctx, path)
	}
	result.FileType = fileType

	for _, f := range result.Faults {
		e.logger.Warn("extraction fault", "path", path, "kind", f.Kind, "scope", f.Scope, "error", f.Err)
	}
	e.logger.Debug("extraction complete",
		"path", path,
		"chars", len(result.Text),
		"images", len(result.Images),
		"faults", len(result.Faults))

	return result, nil
}
