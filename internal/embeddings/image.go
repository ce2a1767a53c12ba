package embeddings

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ImageConfig holds configuration for an HTTP image embedding service, such
// as a CLIP model behind a small inference server.
type ImageConfig struct {
	URL     string
	Model   string
	Timeout time.Duration // default: 30s
}

// ImageClient is an ImageEmbedder that posts base64-encoded images as JSON.
type ImageClient struct {
	httpClient *http.Client
	url        string
	model      string
}

// NewImage creates an image embeddings client.
func NewImage(config ImageConfig) (*ImageClient, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("url is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &ImageClient{
		httpClient: &http.Client{Timeout: config.Timeout},
		url:        config.URL,
		model:      config.Model,
	}, nil
}

type imageEmbeddingRequest struct {
	Model string `json:"model,omitempty"`
	Image string `json:"image"`
}

// imageEmbeddingResponse accepts both a bare {"embedding": [...]} body and
// the OpenAI-style {"data": [{"embedding": [...]}]} envelope.
type imageEmbeddingResponse struct {
	Embedding []float32 `json:"embedding"`
	embeddingResponse
}

// Embed generates an embedding vector for the encoded image.
func (c *ImageClient) Embed(ctx context.Context, image []byte) ([]float32, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("empty image")
	}

	body, err := json.Marshal(imageEmbeddingRequest{
		Model: c.model,
		Image: base64.StdEncoding.EncodeToString(image),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var embResp imageEmbeddingResponse
	if err := json.Unmarshal(respBody, &embResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if embResp.Error != nil {
		return nil, fmt.Errorf("API error: %s", embResp.Error.Message)
	}

	switch {
	case len(embResp.Embedding) > 0:
		return embResp.Embedding, nil
	case len(embResp.Data) > 0:
		return embResp.Data[0].Embedding, nil
	default:
		return nil, fmt.Errorf("no embedding returned")
	}
}
