package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mfenderov/docindex/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the MCP server for document retrieval.

The server communicates via stdio and provides these tools:
  - search_documents: Search indexed documents by text and/or image
  - get_document: Get a specific document by ID
  - ingest_document: Index an uploaded document (when mcp.allow_ingest is set)

Example:
  docindex serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := GetConfig()

	esClient, err := newESClient(cfg)
	if err != nil {
		return err
	}
	registry, err := newRegistry(cfg)
	if err != nil {
		return err
	}

	var ingester mcp.Ingester
	if cfg.MCP.AllowIngest {
		engine, err := newEngine(ctx, cfg, esClient, registry)
		if err != nil {
			return err
		}
		defer engine.Release()
		ingester = engine
	}

	server, err := mcp.NewServer(newSearchService(cfg, esClient, registry), ingester, mcp.Config{
		Name:    cfg.MCP.Name,
		Version: cfg.MCP.Version,
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	fmt.Fprintln(cmd.ErrOrStderr(), "Starting MCP server...")

	return server.ServeStdio()
}
