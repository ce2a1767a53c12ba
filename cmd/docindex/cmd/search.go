package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mfenderov/docindex/internal/search"
)

var (
	searchImage       string
	searchPage        int
	searchSize        int
	searchFormat      string
	searchKeywordOnly bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed documents",
	Long: `Search the indexed documents by text, by image, or both.

With embeddings configured, text and image are vectorized and documents are
ranked by cosine similarity; otherwise the query text is matched by keywords.

Examples:
  # Basic search
  docindex search "отчет о продажах"

  # Search by image
  docindex search --image scan.png

  # Second page, five per page
  docindex search "invoice" --page 2 --size 5

  # JSON output for scripting
  docindex search "contract" --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringVar(&searchImage, "image", "", "Query image file")
	searchCmd.Flags().IntVar(&searchPage, "page", 1, "Result page (1-based)")
	searchCmd.Flags().IntVar(&searchSize, "size", 0, "Results per page (default: query.default_size)")
	searchCmd.Flags().StringVar(&searchFormat, "format", "text", "Output format: text or json")
	searchCmd.Flags().BoolVar(&searchKeywordOnly, "keyword-only", false, "Rank by keywords only")
}

func runSearch(cmd *cobra.Command, args []string) error {
	// Setup context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()

	req := search.Request{
		Page:        searchPage,
		Size:        searchSize,
		KeywordOnly: searchKeywordOnly,
	}
	if len(args) == 1 {
		req.Text = args[0]
	}
	if searchImage != "" {
		image, err := os.ReadFile(searchImage)
		if err != nil {
			return fmt.Errorf("failed to read query image: %w", err)
		}
		req.Image = image
	}

	esClient, err := newESClient(cfg)
	if err != nil {
		return err
	}
	registry, err := newRegistry(cfg)
	if err != nil {
		return err
	}

	// Perform search
	res, err := newSearchService(cfg, esClient, registry).Search(ctx, req)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(res.Hits) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	// Output results
	if searchFormat == "json" {
		output, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Found %d results (page %d):\n\n", res.Total, res.Page)
	for i, hit := range res.Hits {
		doc := hit.Document
		fmt.Printf("─── Result %d ───\n", (res.Page-1)*res.Size+i+1)
		fmt.Printf("Title:   %s\n", doc.Title)
		fmt.Printf("ID:      %s\n", doc.DocumentID)
		fmt.Printf("Score:   %.4f\n", hit.Score)
		fmt.Printf("Type:    %s\n", doc.Metadata.FileType)
		if doc.Metadata.Author != nil {
			fmt.Printf("Author:  %s\n", *doc.Metadata.Author)
		}
		if doc.Metadata.CreatedDate != nil {
			fmt.Printf("Created: %s\n", doc.Metadata.CreatedDate)
		}
		if len(doc.Metadata.Tags) > 0 {
			fmt.Printf("Tags:    %s\n", strings.Join(doc.Metadata.Tags, ", "))
		}
		if len(doc.Images) > 0 {
			fmt.Printf("Images:  %d\n", len(doc.Images))
		}

		// Truncate content for display
		content := []rune(doc.TextContent)
		if len(content) > 500 {
			content = append(content[:500], []rune("...")...)
		}
		fmt.Printf("Content:\n%s\n\n", string(content))
	}

	return nil
}
