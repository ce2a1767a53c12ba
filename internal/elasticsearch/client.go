package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/mfenderov/docindex/pkg/models"
)

// Gateway is the search backend capability the pipeline and retrieval depend on.
type Gateway interface {
	// Get returns the document, or nil when it does not exist.
	Get(ctx context.Context, index, id string) (*models.Document, error)
	// Search runs a request body and returns the ranked hits. A missing index
	// yields an empty result.
	Search(ctx context.Context, index string, body map[string]interface{}) (*SearchResult, error)
	// Index creates or replaces a document. An empty id lets Elasticsearch assign one.
	Index(ctx context.Context, index string, doc models.Document, id string) (*IndexResult, error)
}

// Hit is one ranked search result.
type Hit struct {
	ID       string
	Score    float64
	Document models.Document
}

// SearchResult holds the hits of one search page.
type SearchResult struct {
	Total int
	Hits  []Hit
}

// IndexResult acknowledges an index operation.
type IndexResult struct {
	ID     string `json:"_id"`
	Result string `json:"result"` // "created" or "updated"
}

// Config holds Elasticsearch client configuration.
type Config struct {
	Addresses []string
	Index     string
	Username  string
	Password  string
	// Dense vector dimensions used by EnsureIndex.
	TextDims  int
	ImageDims int
	// Transport overrides the HTTP transport (tests).
	Transport http.RoundTripper
}

// Client implements Gateway over the official Elasticsearch client.
type Client struct {
	es        *elasticsearch.Client
	index     string
	textDims  int
	imageDims int
}

var _ Gateway = (*Client)(nil)

// New creates a new Elasticsearch client.
func New(config Config) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: config.Addresses,
		Username:  config.Username,
		Password:  config.Password,
		Transport: config.Transport,
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create ES client: %w", err)
	}

	return &Client{
		es:        es,
		index:     config.Index,
		textDims:  config.TextDims,
		imageDims: config.ImageDims,
	}, nil
}

// DefaultIndex returns the configured index name.
func (c *Client) DefaultIndex() string {
	return c.index
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) bool {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return false
	}
	defer res.Body.Close()
	return !res.IsError()
}

// EnsureIndex creates the index with the document mapping if it does not exist.
func (c *Client) EnsureIndex(ctx context.Context, index string) error {
	res, err := c.es.Indices.Exists([]string{index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return transportError("index exists", err)
	}
	res.Body.Close()

	if res.StatusCode == http.StatusOK {
		return nil
	}

	body, err := json.Marshal(IndexMapping(c.textDims, c.imageDims))
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	res, err = c.es.Indices.Create(
		index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return transportError("create index", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError("create index", res)
	}
	return nil
}

// DeleteIndex removes the index. A missing index is not an error.
func (c *Client) DeleteIndex(ctx context.Context, index string) error {
	res, err := c.es.Indices.Delete([]string{index}, c.es.Indices.Delete.WithContext(ctx))
	if err != nil {
		return transportError("delete index", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("delete index", res)
	}
	return nil
}

// Refresh forces an index refresh so recent writes become searchable.
func (c *Client) Refresh(ctx context.Context, index string) error {
	res, err := c.es.Indices.Refresh(
		c.es.Indices.Refresh.WithContext(ctx),
		c.es.Indices.Refresh.WithIndex(index),
	)
	if err != nil {
		return transportError("refresh", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError("refresh", res)
	}
	return nil
}

// Exists reports whether a document with the given id is stored.
func (c *Client) Exists(ctx context.Context, index, id string) (bool, error) {
	res, err := c.es.Exists(index, id, c.es.Exists.WithContext(ctx))
	if err != nil {
		return false, transportError("exists", err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusOK:
		return true, nil
	case res.StatusCode == http.StatusNotFound:
		return false, nil
	default:
		return false, responseError("exists", res)
	}
}

// Index creates or replaces a document.
func (c *Client) Index(ctx context.Context, index string, doc models.Document, id string) (*IndexResult, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}

	opts := []func(*esapi.IndexRequest){c.es.Index.WithContext(ctx)}
	if id != "" {
		opts = append(opts, c.es.Index.WithDocumentID(id))
	}

	res, err := c.es.Index(index, bytes.NewReader(data), opts...)
	if err != nil {
		return nil, transportError("index", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, responseError("index", res)
	}

	var ir IndexResult
	if err := json.NewDecoder(res.Body).Decode(&ir); err != nil {
		return nil, decodeError("index", err)
	}
	return &ir, nil
}

// getResponse represents ES get response structure.
type getResponse struct {
	Found  bool            `json:"found"`
	Source models.Document `json:"_source"`
}

// Get retrieves a document by ID.
func (c *Client) Get(ctx context.Context, index, id string) (*models.Document, error) {
	res, err := c.es.Get(
		index,
		id,
		c.es.Get.WithContext(ctx),
	)
	if err != nil {
		return nil, transportError("get", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}

	if res.IsError() {
		return nil, responseError("get", res)
	}

	var gr getResponse
	if err := json.NewDecoder(res.Body).Decode(&gr); err != nil {
		return nil, decodeError("get", err)
	}

	if !gr.Found {
		return nil, nil
	}

	return &gr.Source, nil
}

// searchResponse represents ES search response structure.
type searchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string          `json:"_id"`
			Score  *float64        `json:"_score"`
			Source models.Document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search runs the request body against index.
func (c *Client) Search(ctx context.Context, index string, body map[string]interface{}) (*SearchResult, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(index),
		c.es.Search.WithBody(bytes.NewReader(data)),
	)
	if err != nil {
		return nil, transportError("search", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return &SearchResult{Hits: []Hit{}}, nil
	}

	if res.IsError() {
		return nil, responseError("search", res)
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, decodeError("search", err)
	}

	result := &SearchResult{
		Total: sr.Hits.Total.Value,
		Hits:  make([]Hit, len(sr.Hits.Hits)),
	}
	for i, hit := range sr.Hits.Hits {
		result.Hits[i] = Hit{ID: hit.ID, Document: hit.Source}
		if hit.Score != nil {
			result.Hits[i].Score = *hit.Score
		}
	}
	return result, nil
}

func responseError(op string, res *esapi.Response) *GatewayError {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return statusError(op, res.StatusCode, string(body))
}
