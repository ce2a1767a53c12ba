// Package search runs retrieval requests: it vectorizes the query, builds the
// request body and executes it through the search gateway.
package search

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/mfenderov/docindex/internal/elasticsearch"
	"github.com/mfenderov/docindex/internal/query"
	"github.com/mfenderov/docindex/pkg/models"
)

// Vectorizer embeds query text and images. Nil means "no vector".
type Vectorizer interface {
	VectorizeText(ctx context.Context, text string) []float32
	VectorizeImage(ctx context.Context, image []byte) []float32
}

// Config holds search service configuration.
type Config struct {
	Index       string
	DefaultSize int // used when a request has no size (default: 10)
	// ScanPageSize is the page size of TextVectors (default: 100).
	ScanPageSize int
	Logger       *slog.Logger
}

// Service executes retrieval requests. Every call queries the gateway;
// nothing is cached.
type Service struct {
	gateway    elasticsearch.Gateway
	builder    *query.Builder
	vectorizer Vectorizer
	cfg        Config
	logger     *slog.Logger
}

// New creates a search Service. A nil vectorizer restricts retrieval to
// keyword queries.
func New(gateway elasticsearch.Gateway, builder *query.Builder, vectorizer Vectorizer, config Config) *Service {
	if config.DefaultSize <= 0 {
		config.DefaultSize = 10
	}
	if config.ScanPageSize <= 0 {
		config.ScanPageSize = 100
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Service{
		gateway:    gateway,
		builder:    builder,
		vectorizer: vectorizer,
		cfg:        config,
		logger:     config.Logger,
	}
}

// Request is a retrieval request. Page is 1-based; a zero Size uses the
// configured default.
type Request struct {
	Text  string
	Image []byte
	Page  int
	Size  int
	// KeywordOnly skips query vectorization.
	KeywordOnly bool
}

// Results is one page of ranked documents.
type Results struct {
	Total int
	Page  int
	Size  int
	Hits  []elasticsearch.Hit
}

// Search runs a retrieval request. Query text and image are vectorized
// concurrently; a failed vectorization drops that term from the score.
func (s *Service) Search(ctx context.Context, req Request) (*Results, error) {
	if req.Size == 0 {
		req.Size = s.cfg.DefaultSize
	}

	var textVec, imageVec []float32
	if s.vectorizer != nil && !req.KeywordOnly {
		g, gctx := errgroup.WithContext(ctx)
		if req.Text != "" {
			g.Go(func() error {
				textVec = s.vectorizer.VectorizeText(gctx, req.Text)
				return nil
			})
		}
		if len(req.Image) > 0 {
			g.Go(func() error {
				imageVec = s.vectorizer.VectorizeImage(gctx, req.Image)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	body, err := s.builder.Build(query.Request{
		Text:        req.Text,
		TextVector:  textVec,
		ImageVector: imageVec,
		Page:        req.Page,
		Size:        req.Size,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("searching",
		"index", s.cfg.Index,
		"text", req.Text,
		"text_vector", len(textVec) > 0,
		"image_vector", len(imageVec) > 0,
		"page", req.Page,
		"size", req.Size)

	res, err := s.gateway.Search(ctx, s.cfg.Index, body)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	return &Results{
		Total: res.Total,
		Page:  req.Page,
		Size:  req.Size,
		Hits:  res.Hits,
	}, nil
}

// Get returns a document by id, or nil when it does not exist.
func (s *Service) Get(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.gateway.Get(ctx, s.cfg.Index, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// DocumentVector is a stored text embedding with its document id.
type DocumentVector struct {
	DocumentID string
	Vector     []float32
}

// TextVectors pages through the whole index and returns every stored text
// embedding. Documents without one are skipped.
func (s *Service) TextVectors(ctx context.Context) ([]DocumentVector, error) {
	var vectors []DocumentVector
	for from := 0; ; from += s.cfg.ScanPageSize {
		res, err := s.gateway.Search(ctx, s.cfg.Index, query.VectorScan(from, s.cfg.ScanPageSize))
		if err != nil {
			return nil, fmt.Errorf("failed to scan vectors at offset %d: %w", from, err)
		}
		for _, hit := range res.Hits {
			if len(hit.Document.TextEmbedding) == 0 {
				continue
			}
			vectors = append(vectors, DocumentVector{
				DocumentID: hit.Document.DocumentID,
				Vector:     hit.Document.TextEmbedding,
			})
		}
		if len(res.Hits) < s.cfg.ScanPageSize {
			return vectors, nil
		}
	}
}
