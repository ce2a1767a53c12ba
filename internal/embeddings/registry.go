package embeddings

import (
	"fmt"
	"log/slog"
)

// Text backends selectable in RegistryConfig.Backend.
const (
	BackendDMR    = "dmr"
	BackendOpenAI = "openai"
	BackendNone   = "none"
)

// RegistryConfig selects and configures the embedding backends.
type RegistryConfig struct {
	Backend        string // dmr, openai or none
	DMR            DMRConfig
	OpenAI         OpenAIConfig
	Image          ImageConfig // disabled when URL is empty
	TextDimension  int
	ImageDimension int
	Logger         *slog.Logger
}

// Registry owns the embedding backends for the lifetime of the process.
// It is built once at startup and shared by ingestion and retrieval.
type Registry struct {
	Text       TextEmbedder
	Image      ImageEmbedder
	Vectorizer *Vectorizer
}

// NewRegistry constructs the configured backends.
func NewRegistry(config RegistryConfig) (*Registry, error) {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	r := &Registry{}

	switch config.Backend {
	case BackendDMR:
		c, err := NewDMR(config.DMR)
		if err != nil {
			return nil, fmt.Errorf("failed to create DMR embeddings client: %w", err)
		}
		r.Text = c
	case BackendOpenAI:
		c, err := NewOpenAI(config.OpenAI)
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI embeddings client: %w", err)
		}
		r.Text = c
	case BackendNone, "":
		config.Logger.Warn("text embeddings disabled, documents will be indexed without text vectors")
	default:
		return nil, fmt.Errorf("unknown embeddings backend %q", config.Backend)
	}

	if config.Image.URL != "" {
		c, err := NewImage(config.Image)
		if err != nil {
			return nil, fmt.Errorf("failed to create image embeddings client: %w", err)
		}
		r.Image = c
	}

	r.Vectorizer = NewVectorizer(r.Text, r.Image, VectorizerConfig{
		TextDimension:  config.TextDimension,
		ImageDimension: config.ImageDimension,
		Logger:         config.Logger,
	})
	return r, nil
}
