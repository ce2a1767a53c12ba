package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mfenderov/docindex/internal/assembler"
	"github.com/mfenderov/docindex/internal/config"
	"github.com/mfenderov/docindex/internal/elasticsearch"
	"github.com/mfenderov/docindex/internal/embeddings"
	"github.com/mfenderov/docindex/internal/extract"
	"github.com/mfenderov/docindex/internal/ingestion"
	"github.com/mfenderov/docindex/internal/ocr"
	"github.com/mfenderov/docindex/internal/pipeline"
	"github.com/mfenderov/docindex/internal/query"
	"github.com/mfenderov/docindex/internal/search"
	"github.com/mfenderov/docindex/internal/storage"
	"github.com/mfenderov/docindex/internal/tags"
)

// textDimension resolves the configured text vector size, falling back to
// the known size of the model.
func textDimension(cfg config.Config) int {
	if cfg.Embeddings.Dimension > 0 {
		return cfg.Embeddings.Dimension
	}
	return embeddings.Dimensions(cfg.Embeddings.Model)
}

func newESClient(cfg config.Config) (*elasticsearch.Client, error) {
	esClient, err := elasticsearch.New(elasticsearch.Config{
		Addresses: cfg.Elasticsearch.Addresses,
		Index:     cfg.Elasticsearch.Index,
		Username:  cfg.Elasticsearch.Username,
		Password:  cfg.Elasticsearch.Password,
		TextDims:  textDimension(cfg),
		ImageDims: cfg.ImageEmbeddings.Dimension,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ES client: %w", err)
	}
	return esClient, nil
}

func newRegistry(cfg config.Config) (*embeddings.Registry, error) {
	registry, err := embeddings.NewRegistry(embeddings.RegistryConfig{
		Backend: cfg.Embeddings.Backend,
		DMR: embeddings.DMRConfig{
			SocketPath: cfg.Embeddings.SocketPath,
			Model:      cfg.Embeddings.Model,
		},
		OpenAI: embeddings.OpenAIConfig{
			BaseURL: cfg.Embeddings.BaseURL,
			Model:   cfg.Embeddings.Model,
			Token:   cfg.Embeddings.Token,
		},
		Image: embeddings.ImageConfig{
			URL:     cfg.ImageEmbeddings.URL,
			Model:   cfg.ImageEmbeddings.Model,
			Timeout: cfg.ImageEmbeddings.Timeout,
		},
		TextDimension:  textDimension(cfg),
		ImageDimension: cfg.ImageEmbeddings.Dimension,
	})
	if err != nil {
		return nil, err
	}
	if registry.Text != nil {
		slog.Info("text embeddings enabled", "backend", cfg.Embeddings.Backend, "model", cfg.Embeddings.Model)
	}
	if registry.Image != nil {
		slog.Info("image embeddings enabled", "url", cfg.ImageEmbeddings.URL, "model", cfg.ImageEmbeddings.Model)
	}
	return registry, nil
}

// newStorage returns the kept-image store and, when record archiving is on,
// the record archiver. Both are nil when storage is disabled.
func newStorage(ctx context.Context, cfg config.Config) (storage.ImageStore, ingestion.Archiver, error) {
	switch cfg.Storage.Backend {
	case config.StorageLocal:
		store, err := storage.NewLocal(cfg.Storage.LocalDir)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	case config.StorageMinIO:
		client, err := newS3Client(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Storage.ArchiveRecords {
			return client, client, nil
		}
		return client, nil, nil
	default:
		return nil, nil, nil
	}
}

func newS3Client(ctx context.Context, cfg config.Config) (*storage.Client, error) {
	client, err := storage.New(storage.Config{
		Endpoint:        cfg.Storage.Endpoint,
		Bucket:          cfg.Storage.Bucket,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		UseSSL:          cfg.Storage.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	if err := client.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

func newPipeline(ctx context.Context, cfg config.Config, registry *embeddings.Registry) (*pipeline.Pipeline, ingestion.Archiver, error) {
	store, archive, err := newStorage(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	ocrConfig := ocr.Config{
		Languages: cfg.OCR.Languages,
		OEM:       cfg.OCR.OEM,
		PSM:       cfg.OCR.PSM,
		TempDir:   cfg.OCR.TempDir,
	}
	engine := ocr.NewTesseract(cfg.OCR.Binary, nil)

	deps := pipeline.Deps{
		Extractor:  extract.New(extract.Config{MaxFileSize: cfg.Ingestion.MaxFileSize}),
		Filter:     ocr.NewFilter(engine, ocrConfig),
		Recognizer: ocr.NewRecognizer(engine, ocrConfig),
		Vectorizer: registry.Vectorizer,
		Tagger:     tags.New(tags.Config{Stopwords: cfg.Tags.Stopwords}),
		Assembler:  assembler.New(nil),
		Store:      store,
	}

	p, err := pipeline.New(deps, pipeline.Config{TopTags: cfg.Tags.TopN})
	if err != nil {
		return nil, nil, err
	}
	return p, archive, nil
}

func newSearchService(cfg config.Config, esClient *elasticsearch.Client, registry *embeddings.Registry) *search.Service {
	builder := query.New(query.Config{
		Fields:              cfg.Query.Fields,
		RequireKeywordMatch: cfg.Query.RequireKeywordMatch,
	})

	var vectorizer search.Vectorizer
	if registry != nil {
		vectorizer = registry.Vectorizer
	}
	return search.New(esClient, builder, vectorizer, search.Config{
		Index:       cfg.Elasticsearch.Index,
		DefaultSize: cfg.Query.DefaultSize,
	})
}

// newEngine builds the whole ingestion side and makes sure the index exists.
func newEngine(ctx context.Context, cfg config.Config, esClient *elasticsearch.Client, registry *embeddings.Registry) (*ingestion.Engine, error) {
	if err := esClient.EnsureIndex(ctx, cfg.Elasticsearch.Index); err != nil {
		return nil, err
	}

	p, archive, err := newPipeline(ctx, cfg, registry)
	if err != nil {
		return nil, err
	}

	return ingestion.New(p, esClient, archive, ingestion.Config{
		Index:        cfg.Elasticsearch.Index,
		Workers:      cfg.Ingestion.Workers,
		UploadDir:    cfg.Ingestion.UploadDir,
		SkipExisting: cfg.Ingestion.SkipExisting,
	})
}
