package mcp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mfenderov/docindex/internal/ingestion"
	"github.com/mfenderov/docindex/internal/search"
	"github.com/mfenderov/docindex/pkg/models"
)

// Config holds MCP server configuration.
type Config struct {
	Name    string
	Version string
}

// Searcher runs retrieval requests.
type Searcher interface {
	Search(ctx context.Context, req search.Request) (*search.Results, error)
	Get(ctx context.Context, id string) (*models.Document, error)
}

// Ingester indexes an uploaded document.
type Ingester interface {
	IngestReader(ctx context.Context, name string, r io.Reader) (*ingestion.DocumentResult, error)
}

// Server exposes search and ingestion as MCP tools.
type Server struct {
	mcpServer *server.MCPServer
	searcher  Searcher
	ingester  Ingester
}

// SearchHit is a ranked document as returned to MCP clients. Vectors are
// left out.
type SearchHit struct {
	Score    float64         `json:"score"`
	Document models.Document `json:"document"`
}

// SearchResponse is one page of search results.
type SearchResponse struct {
	Total int         `json:"total"`
	Page  int         `json:"page"`
	Size  int         `json:"size"`
	Hits  []SearchHit `json:"hits"`
}

// NewServer creates a new MCP server with search tools. The ingest tool is
// registered only when ingester is not nil.
func NewServer(searcher Searcher, ingester Ingester, config Config) (*Server, error) {
	if searcher == nil {
		return nil, fmt.Errorf("searcher is required")
	}

	mcpServer := server.NewMCPServer(
		config.Name,
		config.Version,
		server.WithToolCapabilities(true),
	)

	s := &Server{
		mcpServer: mcpServer,
		searcher:  searcher,
		ingester:  ingester,
	}

	// Register search_documents tool
	searchTool := mcp.NewTool("search_documents",
		mcp.WithDescription("Search indexed PDF and DOCX documents by text, by image, or both. Results are ranked by keyword relevance, or by text and image vector similarity when embeddings are available."),
		mcp.WithString("query",
			mcp.Description("Search query text, e.g. \"отчет о продажах\""),
		),
		mcp.WithString("image_base64",
			mcp.Description("Base64-encoded query image"),
		),
		mcp.WithNumber("page",
			mcp.Description("1-based page number (default: 1)"),
		),
		mcp.WithNumber("size",
			mcp.Description("Results per page (default: 10)"),
		),
		mcp.WithBoolean("keyword_only",
			mcp.Description("Skip vector similarity and rank by keywords only"),
		),
	)
	mcpServer.AddTool(searchTool, s.searchHandler)

	// Register get_document tool
	getDocTool := mcp.NewTool("get_document",
		mcp.WithDescription("Get an indexed document by its document_id"),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Document ID to retrieve"),
		),
	)
	mcpServer.AddTool(getDocTool, s.getDocumentHandler)

	if ingester != nil {
		ingestTool := mcp.NewTool("ingest_document",
			mcp.WithDescription("Index a PDF or DOCX document"),
			mcp.WithString("filename",
				mcp.Required(),
				mcp.Description("Original file name including the .pdf or .docx extension"),
			),
			mcp.WithString("content_base64",
				mcp.Required(),
				mcp.Description("Base64-encoded file content"),
			),
		)
		mcpServer.AddTool(ingestTool, s.ingestHandler)
	}

	return s, nil
}

// searchHandler handles the search_documents tool call.
func (s *Server) searchHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sreq := search.Request{
		Text:        req.GetString("query", ""),
		Page:        req.GetInt("page", 1),
		Size:        req.GetInt("size", 10),
		KeywordOnly: req.GetBool("keyword_only", false),
	}

	if encoded := req.GetString("image_base64", ""); encoded != "" {
		image, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid image_base64: %v", err)), nil
		}
		sreq.Image = image
	}

	resp, err := s.handleSearch(ctx, sreq)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	result, err := json.Marshal(resp)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}

	return mcp.NewToolResultText(string(result)), nil
}

// getDocumentHandler handles the get_document tool call.
func (s *Server) getDocumentHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	doc, err := s.searcher.Get(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get document failed: %v", err)), nil
	}

	if doc == nil {
		return mcp.NewToolResultError(fmt.Sprintf("document not found: %s", id)), nil
	}

	result, err := json.Marshal(withoutVectors(*doc))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal document: %v", err)), nil
	}

	return mcp.NewToolResultText(string(result)), nil
}

// ingestHandler handles the ingest_document tool call.
func (s *Server) ingestHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filename, err := req.RequireString("filename")
	if err != nil {
		return mcp.NewToolResultError("filename parameter is required"), nil
	}
	encoded, err := req.RequireString("content_base64")
	if err != nil {
		return mcp.NewToolResultError("content_base64 parameter is required"), nil
	}
	content, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid content_base64: %v", err)), nil
	}

	res, err := s.ingester.IngestReader(ctx, filename, bytes.NewReader(content))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ingest failed: %v", err)), nil
	}

	out := map[string]interface{}{
		"document_id": res.DocumentID,
		"outcome":     res.Outcome,
	}
	if res.Report != nil {
		out["images_found"] = res.Report.ImagesFound
		out["images_kept"] = res.Report.ImagesKept
		faults := make([]string, 0, len(res.Report.Faults))
		for _, f := range res.Report.Faults {
			faults = append(faults, f.Error())
		}
		out["faults"] = faults
	}

	result, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(result)), nil
}

// handleSearch runs the search and strips vectors from the hits.
func (s *Server) handleSearch(ctx context.Context, req search.Request) (*SearchResponse, error) {
	res, err := s.searcher.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	resp := &SearchResponse{
		Total: res.Total,
		Page:  res.Page,
		Size:  res.Size,
		Hits:  make([]SearchHit, 0, len(res.Hits)),
	}
	for _, hit := range res.Hits {
		resp.Hits = append(resp.Hits, SearchHit{Score: hit.Score, Document: withoutVectors(hit.Document)})
	}
	return resp, nil
}

func withoutVectors(doc models.Document) models.Document {
	doc.TextEmbedding = nil
	doc.ImageEmbedding = nil
	images := make([]models.Image, len(doc.Images))
	for i, img := range doc.Images {
		img.ImageEmbedding = nil
		images[i] = img
	}
	doc.Images = images
	return doc
}

// ServeStdio starts the MCP server using stdio transport.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
