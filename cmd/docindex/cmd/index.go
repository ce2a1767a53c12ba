package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the search index",
}

var indexCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the index with the document mapping",
	Long: `Create the configured index if it does not exist. Vector dimensions come
from embeddings.dimension and image_embeddings.dimension.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		cfg := GetConfig()
		esClient, err := newESClient(cfg)
		if err != nil {
			return err
		}
		if !esClient.Ping(ctx) {
			return fmt.Errorf("elasticsearch is not reachable at %v", cfg.Elasticsearch.Addresses)
		}
		if err := esClient.EnsureIndex(ctx, cfg.Elasticsearch.Index); err != nil {
			return err
		}
		fmt.Printf("Index %s ready (text dims %d, image dims %d)\n",
			cfg.Elasticsearch.Index, textDimension(cfg), cfg.ImageEmbeddings.Dimension)
		return nil
	},
}

var indexDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete the index and every document in it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		cfg := GetConfig()
		esClient, err := newESClient(cfg)
		if err != nil {
			return err
		}
		if err := esClient.DeleteIndex(ctx, cfg.Elasticsearch.Index); err != nil {
			return err
		}
		fmt.Printf("Index %s deleted\n", cfg.Elasticsearch.Index)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexCreateCmd, indexDeleteCmd)
}
