// Package embeddings turns text and images into dense vectors.
//
// Backends implement TextEmbedder or ImageEmbedder and may fail. The
// Vectorizer wraps them and never does: any failure becomes a nil vector,
// which callers store as "no embedding".
package embeddings

import "context"

// TextEmbedder produces a vector for a piece of text.
type TextEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ImageEmbedder produces a vector for an encoded image.
type ImageEmbedder interface {
	Embed(ctx context.Context, image []byte) ([]float32, error)
}
