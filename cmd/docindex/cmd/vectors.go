package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var vectorsCmd = &cobra.Command{
	Use:   "vectors",
	Short: "Dump stored text embeddings",
	Long: `Page through the whole index and print every stored text embedding as a
JSON array of {"document_id", "vector"} objects. Documents without a text
embedding are left out.

Example:
  docindex vectors > vectors.json`,
	Args: cobra.NoArgs,
	RunE: runVectors,
}

func init() {
	rootCmd.AddCommand(vectorsCmd)
}

type vectorOutput struct {
	DocumentID string    `json:"document_id"`
	Vector     []float32 `json:"vector"`
}

func runVectors(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	esClient, err := newESClient(cfg)
	if err != nil {
		return err
	}

	vectors, err := newSearchService(cfg, esClient, nil).TextVectors(ctx)
	if err != nil {
		return fmt.Errorf("failed to read vectors: %w", err)
	}

	out := make([]vectorOutput, 0, len(vectors))
	for _, v := range vectors {
		out = append(out, vectorOutput{DocumentID: v.DocumentID, Vector: v.Vector})
	}

	enc := json.NewEncoder(os.Stdout)
	return enc.Encode(out)
}
