package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
)

// DefaultDMREndpoint is the OpenAI-compatible embeddings route of Docker Model
// Runner when reached through the Docker socket.
const DefaultDMREndpoint = "http://localhost/exp/vDD4.40/engines/llama.cpp/v1/embeddings"

// DMRConfig holds Docker Model Runner client configuration.
type DMRConfig struct {
	SocketPath string // Unix socket path for Docker Model Runner
	Model      string // Model name (e.g., "ai/all-minilm")
	Endpoint   string // default: DefaultDMREndpoint
}

// DMRClient is a TextEmbedder backed by the Docker Model Runner embeddings API.
type DMRClient struct {
	httpClient *http.Client
	model      string
	endpoint   string
}

// NewDMR creates a Docker Model Runner embeddings client.
func NewDMR(config DMRConfig) (*DMRClient, error) {
	if config.SocketPath == "" {
		return nil, fmt.Errorf("socket path is required")
	}
	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if config.Endpoint == "" {
		config.Endpoint = DefaultDMREndpoint
	}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", config.SocketPath)
		},
	}

	return &DMRClient{
		httpClient: &http.Client{Transport: transport},
		model:      config.Model,
		endpoint:   config.Endpoint,
	}, nil
}

// embeddingRequest is the request payload for the embeddings API.
type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// embeddingResponse is the response from the embeddings API.
type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// MaxInputChars limits input to stay within the model context window.
// Small sentence-embedding models accept ~512 tokens; longer input is
// truncated by the server anyway, so only the head is sent.
const MaxInputChars = 8000

// Embed generates an embedding vector for the given text.
// Text exceeding MaxInputChars runes is truncated from the end.
func (c *DMRClient) Embed(ctx context.Context, text string) ([]float32, error) {
	originalLen := len(text)
	text = truncateRunes(text, MaxInputChars)
	slog.Debug("generating embedding", "original_len", originalLen, "truncated_len", len(text))

	req := embeddingRequest{Model: c.model, Input: text}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewReader(body))
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

	var embResp embeddingResponse
	if err := json.Unmarshal(respBody, &embResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if embResp.Error != nil {
		return nil, fmt.Errorf("API error: %s", embResp.Error.Message)
	}

	if len(embResp.Data) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}

	return embResp.Data[0].Embedding, nil
}

func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

// Dimensions returns the embedding dimension of common models, or 0 when the
// model is unknown and the dimension must be configured explicitly.
func Dimensions(model string) int {
	switch model {
	case "ai/all-minilm", "sentence-transformers/all-MiniLM-L6-v2",
		"sentence-transformers/paraphrase-multilingual-MiniLM-L12-v2":
		return 384
	case "ai/embeddinggemma", "ai/nomic-embed-text-v1.5":
		return 768
	case "ai/mxbai-embed-large", "ai/snowflake-arctic-embed":
		return 1024
	case "text-embedding-3-small":
		return 1536
	default:
		return 0
	}
}
