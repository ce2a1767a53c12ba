// Package pipeline runs the per-document ingestion chain: extraction, image
// filtering and OCR, normalization, tagging, vectorization and assembly.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/mfenderov/docindex/internal/assembler"
	"github.com/mfenderov/docindex/internal/extract"
	"github.com/mfenderov/docindex/internal/storage"
	"github.com/mfenderov/docindex/internal/tags"
	"github.com/mfenderov/docindex/internal/textnorm"
	"github.com/mfenderov/docindex/pkg/models"
)

// Extractor reads a source file.
type Extractor interface {
	Extract(ctx context.Context, path string, fileType models.FileType) (*extract.Extraction, error)
}

// ImageFilter decides whether an image carries text.
type ImageFilter interface {
	Retain(ctx context.Context, image []byte) bool
}

// Recognizer returns the cleaned OCR text of an image.
type Recognizer interface {
	Text(ctx context.Context, image []byte) string
}

// Vectorizer embeds text and images. Nil means "no embedding".
type Vectorizer interface {
	VectorizeText(ctx context.Context, text string) []float32
	VectorizeImage(ctx context.Context, image []byte) []float32
}

// Tagger returns the top keywords of a text.
type Tagger interface {
	Extract(text string, topN int) []string
}

// Config holds pipeline configuration.
type Config struct {
	TopTags int // number of tags per document (default: tags.DefaultTopN)
	Logger  *slog.Logger
}

// Deps are the collaborators of a Pipeline. Store and Vectorizer are
// optional: without a store image_path stays empty, without a vectorizer
// no embeddings are produced.
type Deps struct {
	Extractor  Extractor
	Filter     ImageFilter
	Recognizer Recognizer
	Vectorizer Vectorizer
	Tagger     Tagger
	Assembler  *assembler.Assembler
	Store      storage.ImageStore
}

// Report describes how one document went through the pipeline.
type Report struct {
	Path        string
	DocumentID  string
	ImagesFound int
	ImagesKept  int
	Faults      []extract.Fault
	Duration    time.Duration
}

// Input identifies the source of one document.
type Input struct {
	Path string
	// Name is the original file name, used for the title and the format.
	// Defaults to the base name of Path.
	Name string
	// DocumentID is used instead of a freshly minted id when set.
	DocumentID string
}

// Pipeline processes one document at a time and keeps no state between
// calls, so a single Pipeline can serve concurrent workers.
type Pipeline struct {
	deps   Deps
	cfg    Config
	logger *slog.Logger
}

// New creates a Pipeline.
func New(deps Deps, config Config) (*Pipeline, error) {
	if deps.Extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	if deps.Filter == nil || deps.Recognizer == nil {
		return nil, fmt.Errorf("image filter and recognizer are required")
	}
	if deps.Tagger == nil {
		return nil, fmt.Errorf("tagger is required")
	}
	if deps.Assembler == nil {
		deps.Assembler = assembler.New(nil)
	}
	if config.TopTags <= 0 {
		config.TopTags = tags.DefaultTopN
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Pipeline{deps: deps, cfg: config, logger: config.Logger}, nil
}

// Process turns a source file into an indexable document. Only an
// unsupported or unreadable input is an error; everything else degrades
// into Report.Faults or missing embeddings.
func (p *Pipeline) Process(ctx context.Context, in Input) (*models.Document, *Report, error) {
	start := time.Now()
	name := in.Name
	if name == "" {
		name = filepath.Base(in.Path)
	}
	report := &Report{Path: name}

	fileType, err := extract.DetectFileType(name)
	if err != nil {
		return nil, nil, err
	}

	extraction, err := p.deps.Extractor.Extract(ctx, in.Path, fileType)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to extract %s: %w", name, err)
	}
	report.Faults = append(report.Faults, extraction.Faults...)
	report.ImagesFound = len(extraction.Images)

	documentID := in.DocumentID
	if documentID == "" {
		documentID = p.deps.Assembler.NewID()
	}
	report.DocumentID = documentID

	images, ocrTexts := p.processImages(ctx, documentID, extraction.Images, report)
	report.ImagesKept = len(images)

	parts := append([]string{extraction.Text}, ocrTexts...)
	text := textnorm.Normalize(strings.Join(parts, " "))
	keywords := p.deps.Tagger.Extract(text, p.cfg.TopTags)

	var textVec []float32
	if p.deps.Vectorizer != nil && text != "" {
		textVec = p.deps.Vectorizer.VectorizeText(ctx, text)
	}

	doc := p.deps.Assembler.Assemble(assembler.Input{
		DocumentID:    documentID,
		SourcePath:    name,
		FileType:      fileType,
		Text:          text,
		TextEmbedding: textVec,
		Author:        extraction.Metadata.Author,
		CreatedDate:   extraction.Metadata.CreatedDate,
		Tags:          keywords,
		Images:        images,
	})

	report.Duration = time.Since(start)
	p.logger.Info("document processed",
		"path", name,
		"document_id", doc.DocumentID,
		"chars", len(doc.TextContent),
		"images_found", report.ImagesFound,
		"images_kept", report.ImagesKept,
		"tags", len(doc.Metadata.Tags),
		"text_embedding", len(doc.TextEmbedding) > 0,
		"faults", len(report.Faults),
		"duration", report.Duration)

	return &doc, report, nil
}

// processImages keeps the images that pass the filter and still carry text
// once recognized, in extraction order, and returns them with their OCR texts.
func (p *Pipeline) processImages(ctx context.Context, documentID string, raw []extract.RawImage, report *Report) ([]assembler.ImageInput, []string) {
	var kept []assembler.ImageInput
	var texts []string

	for _, img := range raw {
		if ctx.Err() != nil {
			break
		}
		if !p.deps.Filter.Retain(ctx, img.Data) {
			p.logger.Debug("image discarded", "document_id", documentID, "index", img.Index, "page", img.Page)
			continue
		}

		ocrText := p.deps.Recognizer.Text(ctx, img.Data)
		if ocrText == "" {
			p.logger.Debug("image discarded after recognition", "document_id", documentID, "index", img.Index, "page", img.Page)
			continue
		}

		input := assembler.ImageInput{
			OCRText: ocrText,
			Page:    img.Page,
			Index:   img.Index,
		}
		if p.deps.Vectorizer != nil {
			input.Embedding = p.deps.Vectorizer.VectorizeImage(ctx, img.Data)
		}

		if p.deps.Store != nil {
			imageID := assembler.ImageID(len(kept) + 1)
			path, err := p.deps.Store.PutImage(ctx, documentID, imageID, img.Ext, img.Data)
			if err != nil {
				p.logger.Warn("failed to store image", "document_id", documentID, "image_id", imageID, "error", err)
				report.Faults = append(report.Faults, extract.Fault{
					Kind:  extract.FaultImage,
					Scope: imageID,
					Err:   err,
				})
			}
			input.Path = path
		}

		kept = append(kept, input)
		texts = append(texts, input.OCRText)
	}

	return kept, texts
}
