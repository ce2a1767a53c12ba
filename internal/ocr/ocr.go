package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mfenderov/docindex/internal/textnorm"
)

// Config holds OCR configuration shared by Filter and Recognizer.
type Config struct {
	Languages string // default: "rus+eng"
	OEM       int    // default: 3
	PSM       int    // default: 3
	TempDir   string // default: os.TempDir()
	Logger    *slog.Logger
}

func (c *Config) defaults() {
	if c.Languages == "" {
		c.Languages = "rus+eng"
	}
	if c.OEM == 0 {
		c.OEM = 3
	}
	if c.PSM == 0 {
		c.PSM = 3
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

func (c Config) options(preserveSpaces bool) Options {
	return Options{
		Languages:               c.Languages,
		OEM:                     c.OEM,
		PSM:                     c.PSM,
		PreserveInterwordSpaces: preserveSpaces,
	}
}

// Filter decides whether an embedded image is worth keeping.
// It is safe for concurrent use when its Engine is.
type Filter struct {
	engine Engine
	cfg    Config
	logger *slog.Logger
}

// NewFilter creates a Filter running its quick OCR pass through engine.
func NewFilter(engine Engine, config Config) *Filter {
	config.defaults()
	return &Filter{engine: engine, cfg: config, logger: config.Logger}
}

// Retain reports whether the image contains any recognizable text.
// Decoding, preprocessing or OCR failures discard the image.
func (f *Filter) Retain(ctx context.Context, image []byte) bool {
	text, err := recognize(ctx, f.engine, f.cfg, image, false)
	if err != nil {
		f.logger.Warn("discarding image", "error", err)
		return false
	}
	return strings.TrimSpace(text) != ""
}

// Recognizer extracts cleaned text from kept images.
type Recognizer struct {
	engine Engine
	cfg    Config
	logger *slog.Logger
}

// NewRecognizer creates a Recognizer backed by engine.
func NewRecognizer(engine Engine, config Config) *Recognizer {
	config.defaults()
	return &Recognizer{engine: engine, cfg: config, logger: config.Logger}
}

// Text returns the cleaned OCR text of the image, or "" when recognition fails.
func (r *Recognizer) Text(ctx context.Context, image []byte) string {
	text, err := recognize(ctx, r.engine, r.cfg, image, true)
	if err != nil {
		r.logger.Warn("ocr failed", "error", err)
		return ""
	}
	return textnorm.CleanOCR(text)
}

// recognize preprocesses the image into a temp file that is removed before
// returning, then runs one OCR pass over it.
func recognize(ctx context.Context, engine Engine, cfg Config, image []byte, preserveSpaces bool) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("empty image")
	}

	processed, err := Preprocess(image)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(cfg.TempDir, "ocr-*.png")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(processed); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}

	return engine.Recognize(ctx, tmp.Name(), cfg.options(preserveSpaces))
}
