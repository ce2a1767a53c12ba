package embeddings

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAIConfig holds configuration for an OpenAI-compatible embeddings server
// (Ollama, LM Studio, text-embeddings-inference, vLLM, OpenAI itself).
type OpenAIConfig struct {
	BaseURL string
	Model   string
	Token   string // default: "none" for local servers without auth
}

// OpenAIClient is a TextEmbedder over the langchaingo OpenAI client.
type OpenAIClient struct {
	embedder embeddings.Embedder
}

// NewOpenAI creates an OpenAI-compatible embeddings client.
func NewOpenAI(config OpenAIConfig) (*OpenAIClient, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if config.Token == "" {
		config.Token = "none"
	}

	client, err := openai.New(
		openai.WithBaseURL(config.BaseURL),
		openai.WithToken(config.Token),
		openai.WithEmbeddingModel(config.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	return &OpenAIClient{embedder: embedder}, nil
}

// Embed generates an embedding vector for the given text.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.embedder.EmbedDocuments(ctx, []string{truncateRunes(text, MaxInputChars)})
	if err != nil {
		return nil, fmt.Errorf("failed to embed text: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return vectors[0], nil
}
