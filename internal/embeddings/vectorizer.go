package embeddings

import (
	"context"
	"log/slog"
	"strings"
)

// Vectorizer wraps the configured embedders and enforces vector dimensions.
// Its methods never fail; a nil result means "no embedding".
type Vectorizer struct {
	text     TextEmbedder
	image    ImageEmbedder
	textDim  int
	imageDim int
	logger   *slog.Logger
}

// VectorizerConfig holds Vectorizer configuration.
type VectorizerConfig struct {
	TextDimension  int // required length of text vectors; 0 accepts any length
	ImageDimension int // required length of image vectors; 0 accepts any length
	Logger         *slog.Logger
}

// NewVectorizer creates a Vectorizer. Either embedder may be nil, in which
// case the corresponding method always returns nil.
func NewVectorizer(text TextEmbedder, image ImageEmbedder, config VectorizerConfig) *Vectorizer {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Vectorizer{
		text:     text,
		image:    image,
		textDim:  config.TextDimension,
		imageDim: config.ImageDimension,
		logger:   config.Logger,
	}
}

// TextDimension returns the configured text vector length.
func (v *Vectorizer) TextDimension() int { return v.textDim }

// ImageDimension returns the configured image vector length.
func (v *Vectorizer) ImageDimension() int { return v.imageDim }

// VectorizeText embeds text. Empty input, a missing backend, a backend error
// or a vector of the wrong length all yield nil.
func (v *Vectorizer) VectorizeText(ctx context.Context, text string) []float32 {
	if v == nil || v.text == nil || strings.TrimSpace(text) == "" {
		return nil
	}

	vec, err := v.text.Embed(ctx, text)
	if err != nil {
		v.logger.Warn("text vectorization failed", "error", err)
		return nil
	}
	return v.checked("text", vec, v.textDim)
}

// VectorizeImage embeds an encoded image with the same failure rules as
// VectorizeText.
func (v *Vectorizer) VectorizeImage(ctx context.Context, image []byte) []float32 {
	if v == nil || v.image == nil || len(image) == 0 {
		return nil
	}

	vec, err := v.image.Embed(ctx, image)
	if err != nil {
		v.logger.Warn("image vectorization failed", "error", err)
		return nil
	}
	return v.checked("image", vec, v.imageDim)
}

func (v *Vectorizer) checked(kind string, vec []float32, dim int) []float32 {
	if len(vec) == 0 {
		return nil
	}
	if dim > 0 && len(vec) != dim {
		v.logger.Warn("discarding embedding with unexpected dimension",
			"kind", kind, "got", len(vec), "want", dim)
		return nil
	}
	return vec
}
