// Package assembler builds the indexed document record from the outputs of
// extraction, OCR, tagging and vectorization.
package assembler

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mfenderov/docindex/pkg/models"
)

// IDGenerator produces unique document identifiers.
type IDGenerator func() string

// UUIDv7 returns an IDGenerator producing time-sortable RFC 9562 UUIDs.
func UUIDv7() IDGenerator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// ImageInput is a kept image after OCR and vectorization.
type ImageInput struct {
	OCRText   string
	Embedding []float32
	Page      int // 1-based page for PDF sources
	Index     int // 1-based position among all images of the source
	Path      string
}

// Input gathers everything the record is built from.
type Input struct {
	DocumentID    string // minted by the assembler when empty
	SourcePath    string
	FileType      models.FileType
	Text          string // normalized text content
	TextEmbedding []float32
	Author        string
	CreatedDate   *time.Time
	Tags          []string
	Images        []ImageInput // kept images, in extraction order
}

// Assembler is stateless apart from its ID generator.
type Assembler struct {
	newID IDGenerator
}

// New creates an Assembler. A nil generator defaults to UUIDv7.
func New(gen IDGenerator) *Assembler {
	if gen == nil {
		gen = UUIDv7()
	}
	return &Assembler{newID: gen}
}

// NewID mints a fresh document identifier.
func (a *Assembler) NewID() string {
	return a.newID()
}

// Assemble builds the document record.
func (a *Assembler) Assemble(in Input) models.Document {
	id := in.DocumentID
	if id == "" {
		id = a.newID()
	}

	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}

	doc := models.Document{
		DocumentID:    id,
		Title:         Title(in.SourcePath),
		TextContent:   in.Text,
		TextEmbedding: in.TextEmbedding,
		Metadata: models.Metadata{
			Author:   models.StringPtr(strings.TrimSpace(in.Author)),
			Tags:     tags,
			FileType: in.FileType,
		},
		Images: make([]models.Image, 0, len(in.Images)),
	}
	if in.CreatedDate != nil {
		doc.Metadata.CreatedDate = models.NewDate(*in.CreatedDate)
	}

	embeddings := make([][]float32, 0, len(in.Images))
	for i, img := range in.Images {
		doc.Images = append(doc.Images, models.Image{
			ImageID:        ImageID(i + 1),
			OCRText:        img.OCRText,
			ImageEmbedding: img.Embedding,
			Position:       Position(in.FileType, img, i+1),
			ImagePath:      img.Path,
		})
		if len(img.Embedding) > 0 {
			embeddings = append(embeddings, img.Embedding)
		}
	}
	doc.ImageEmbedding = MeanVector(embeddings)

	return doc
}

// Title is the file base name without its extension.
func Title(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ImageID returns the identifier of the n-th kept image.
func ImageID(n int) string {
	return fmt.Sprintf("img_%d", n)
}

// Position locates an image in its source: "page N" for PDF, "image N" for
// DOCX where N is the image's place among all images of the file.
func Position(fileType models.FileType, img ImageInput, ordinal int) string {
	if fileType == models.FileTypePDF && img.Page > 0 {
		return fmt.Sprintf("page %d", img.Page)
	}
	n := img.Index
	if n <= 0 {
		n = ordinal
	}
	return fmt.Sprintf("image %d", n)
}

// MeanVector returns the element-wise mean of vectors sharing the length of
// the first one. Vectors of any other length are ignored. It returns nil for
// no input and for a zero mean, which has no cosine direction.
func MeanVector(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}

	dim := len(vectors[0])
	sum := make([]float64, dim)
	n := 0
	for _, v := range vectors {
		if len(v) != dim {
			continue
		}
		for i, x := range v {
			sum[i] += float64(x)
		}
		n++
	}

	mean := make([]float32, dim)
	nonZero := false
	for i := range sum {
		mean[i] = float32(sum[i] / float64(n))
		if mean[i] != 0 {
			nonZero = true
		}
	}
	if !nonZero {
		return nil
	}
	return mean
}
