package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mfenderov/docindex/internal/config"
	"github.com/mfenderov/docindex/internal/embeddings"
	"github.com/mfenderov/docindex/internal/events"
	"github.com/mfenderov/docindex/internal/pipeline"
	"github.com/mfenderov/docindex/pkg/models"
)

var (
	ingestWorkers      int
	ingestSkipExisting bool
	ingestName         string
	ingestOut          string
	ingestDryRun       bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Extract and index PDF and DOCX documents",
	Long: `Extract text, metadata and text-bearing images from PDF and DOCX files,
vectorize them and index one record per file.

Use "-" to read a single document from stdin; --name then supplies the
original file name.

Examples:
  # Index a few files
  docindex ingest reports/q1.pdf reports/q2.docx

  # Index from stdin
  cat scan.pdf | docindex ingest - --name scan.pdf

  # Preview the assembled records without indexing
  docindex ingest --dry-run --out records.json reports/*.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().IntVar(&ingestWorkers, "workers", 0, "Documents processed concurrently (default: config or number of CPUs)")
	ingestCmd.Flags().BoolVar(&ingestSkipExisting, "skip-existing", false, "Skip documents whose id is already indexed")
	ingestCmd.Flags().StringVar(&ingestName, "name", "", "Original file name when reading from stdin")
	ingestCmd.Flags().StringVar(&ingestOut, "out", "", "Also write the assembled records to this JSON file")
	ingestCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "Process documents without indexing them")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	if ingestWorkers > 0 {
		cfg.Ingestion.Workers = ingestWorkers
	}
	if ingestSkipExisting {
		cfg.Ingestion.SkipExisting = true
	}
	slog.Debug("ingest command starting", "files", len(args), "dry_run", ingestDryRun)

	registry, err := newRegistry(cfg)
	if err != nil {
		return err
	}

	if ingestDryRun {
		return runDryRun(ctx, cfg, registry, args)
	}

	esClient, err := newESClient(cfg)
	if err != nil {
		return err
	}

	engine, err := newEngine(ctx, cfg, esClient, registry)
	if err != nil {
		return err
	}
	defer engine.Release()

	if len(args) == 1 && args[0] == "-" {
		if ingestName == "" {
			return fmt.Errorf("--name is required when reading from stdin")
		}
		res, err := engine.IngestReader(ctx, ingestName, os.Stdin)
		if err != nil {
			return fmt.Errorf("ingestion failed: %w", err)
		}
		if res.Document == nil {
			fmt.Printf("%s skipped (already indexed)\n", ingestName)
			return nil
		}
		fmt.Printf("Indexed %s as %s\n", ingestName, res.DocumentID)
		return writeRecords(ingestOut, []models.Document{*res.Document})
	}

	fmt.Printf("Ingesting %d files\n", len(args))

	result, err := engine.IngestFiles(ctx, args)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	var docs []models.Document
	for _, d := range result.Documents {
		switch d.Outcome {
		case events.OutcomeIndexed:
			fmt.Printf("  %s -> %s\n", d.Source, d.DocumentID)
			docs = append(docs, *d.Document)
			if d.Report != nil {
				for _, f := range d.Report.Faults {
					fmt.Printf("    warning: %s\n", f.Error())
				}
			}
		case events.OutcomeSkipped:
			fmt.Printf("  %s skipped (already indexed)\n", d.Source)
		default:
			fmt.Printf("  %s failed: %v\n", d.Source, d.Err)
		}
	}

	printSummary(result.Event())

	if err := writeRecords(ingestOut, docs); err != nil {
		return err
	}
	if result.Failed > 0 {
		return fmt.Errorf("%d of %d documents failed", result.Failed, len(result.Documents))
	}
	return nil
}

// runDryRun processes the files one by one and writes the records instead
// of indexing them.
func runDryRun(ctx context.Context, cfg config.Config, registry *embeddings.Registry, paths []string) error {
	p, _, err := newPipeline(ctx, cfg, registry)
	if err != nil {
		return err
	}

	var docs []models.Document
	for _, path := range paths {
		doc, report, err := p.Process(ctx, pipeline.Input{Path: path})
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			continue
		}
		for _, f := range report.Faults {
			fmt.Fprintf(os.Stderr, "%s: warning: %s\n", path, f.Error())
		}
		docs = append(docs, *doc)
	}

	if ingestOut == "" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(docs)
	}
	return writeRecords(ingestOut, docs)
}

func printSummary(ev events.IngestionCompleteEvent) {
	fmt.Printf("\nIngestion complete:\n")
	fmt.Printf("  Docs indexed: %d\n", ev.Indexed)
	if ev.Skipped > 0 {
		fmt.Printf("  Skipped: %d\n", ev.Skipped)
	}
	fmt.Printf("  Duration: %v\n", ev.Duration)

	if len(ev.Errors) > 0 {
		fmt.Printf("  Errors: %d\n", len(ev.Errors))
		for _, e := range ev.Errors {
			fmt.Printf("    - %s\n", e)
		}
	}
}

// writeRecords writes docs as a JSON array that "docindex load" accepts.
func writeRecords(path string, docs []models.Document) error {
	if path == "" {
		return nil
	}
	if docs == nil {
		docs = []models.Document{}
	}
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write records: %w", err)
	}
	fmt.Printf("Wrote %d records to %s\n", len(docs), path)
	return nil
}
