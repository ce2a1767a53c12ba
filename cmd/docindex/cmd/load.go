package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mfenderov/docindex/internal/ingestion"
)

var loadSkipExisting bool

var loadCmd = &cobra.Command{
	Use:   "load <records.json>",
	Short: "Index assembled records from a JSON file",
	Long: `Index a JSON array of assembled records, such as the output of
"docindex ingest --out". Records already present in the index are skipped
unless --skip-existing=false.

Example:
  docindex load records.json`,
	Args: cobra.ExactArgs(1),
	RunE: runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)

	loadCmd.Flags().BoolVar(&loadSkipExisting, "skip-existing", true, "Skip records whose document_id is already indexed")
}

func runLoad(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	cfg.Ingestion.SkipExisting = loadSkipExisting

	docs, err := ingestion.LoadFile(args[0])
	if err != nil {
		return err
	}

	esClient, err := newESClient(cfg)
	if err != nil {
		return err
	}
	if err := esClient.EnsureIndex(ctx, cfg.Elasticsearch.Index); err != nil {
		return err
	}

	// Records are already assembled: no pipeline, no archive.
	engine, err := ingestion.New(nil, esClient, nil, ingestion.Config{
		Index:        cfg.Elasticsearch.Index,
		Workers:      cfg.Ingestion.Workers,
		SkipExisting: cfg.Ingestion.SkipExisting,
	})
	if err != nil {
		return err
	}
	defer engine.Release()

	fmt.Printf("Loading %d records from %s\n", len(docs), args[0])

	result, err := engine.Load(ctx, docs)
	if err != nil {
		return fmt.Errorf("load failed: %w", err)
	}

	printSummary(result.Event())
	if result.Failed > 0 {
		return fmt.Errorf("%d of %d records failed", result.Failed, len(docs))
	}
	return nil
}
