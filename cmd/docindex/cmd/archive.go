package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mfenderov/docindex/internal/config"
	"github.com/mfenderov/docindex/internal/storage"
)

var archiveImagesOut string

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Browse records and images kept in object storage",
	Long: `Read back what ingestion wrote to the MinIO/S3 bucket: archived records
(storage.archive_records) and kept images. Requires storage.backend=minio.

Examples:
  docindex archive list
  docindex archive get 0190f3a2-7c4e-7d1b-9a35-6f0c2a1b3d4e
  docindex archive images 0190f3a2-7c4e-7d1b-9a35-6f0c2a1b3d4e --out ./images`,
}

var archiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived document ids",
	Args:  cobra.NoArgs,
	RunE: withArchive(func(ctx context.Context, client *storage.Client, _ []string) error {
		ids, err := client.ListRecords(ctx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	}),
}

var archiveGetCmd = &cobra.Command{
	Use:   "get <document_id>",
	Short: "Print an archived record as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: withArchive(func(ctx context.Context, client *storage.Client, args []string) error {
		doc, err := client.GetRecord(ctx, args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}),
}

var archiveImagesCmd = &cobra.Command{
	Use:   "images <document_id>",
	Short: "Download the kept images of a document",
	Args:  cobra.ExactArgs(1),
	RunE: withArchive(func(ctx context.Context, client *storage.Client, args []string) error {
		paths, err := client.DownloadImages(ctx, args[0], archiveImagesOut)
		for _, p := range paths {
			fmt.Println(p)
		}
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			fmt.Fprintf(os.Stderr, "no images stored for %s\n", args[0])
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(archiveCmd)
	archiveCmd.AddCommand(archiveListCmd, archiveGetCmd, archiveImagesCmd)

	archiveImagesCmd.Flags().StringVar(&archiveImagesOut, "out", ".", "Directory to write the images to")
}

// withArchive connects to the configured bucket before running fn.
func withArchive(fn func(ctx context.Context, client *storage.Client, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg := GetConfig()
		if cfg.Storage.Backend != config.StorageMinIO {
			return fmt.Errorf("archive commands need storage.backend=%s, got %q", config.StorageMinIO, cfg.Storage.Backend)
		}

		client, err := newS3Client(ctx, cfg)
		if err != nil {
			return err
		}
		return fn(ctx, client, args)
	}
}
