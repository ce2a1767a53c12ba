package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mfenderov/docindex/internal/config"
)

var (
	cfgFile string
	verbose bool
	cfg     config.Config
)

// GetConfig returns the loaded configuration.
func GetConfig() config.Config {
	return cfg
}

var rootCmd = &cobra.Command{
	Use:   "docindex",
	Short: "docindex: multimodal search over PDF and DOCX documents",
	Long: `docindex extracts text, metadata and embedded images from PDF and DOCX
files, keeps the images that carry text, OCRs them, and indexes each document
in Elasticsearch for keyword and vector (text and image) retrieval.

Commands:
  ingest   Extract and index documents
  load     Index assembled records from a JSON file
  search   Search indexed documents by text and/or image
  index    Create or delete the search index
  vectors  Dump stored text embeddings
  serve    Start the MCP server for document retrieval`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return cfg.Validate()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig, initLogger)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

func initLogger() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

// envBindings maps config keys to their DOCINDEX_* variables.
var envBindings = []string{
	"elasticsearch.index",
	"elasticsearch.username",
	"elasticsearch.password",
	"embeddings.backend",
	"embeddings.socket_path",
	"embeddings.base_url",
	"embeddings.token",
	"embeddings.model",
	"embeddings.dimension",
	"image_embeddings.url",
	"image_embeddings.model",
	"image_embeddings.dimension",
	"ocr.binary",
	"ocr.languages",
	"ingestion.workers",
	"ingestion.upload_dir",
	"ingestion.skip_existing",
	"storage.backend",
	"storage.local_dir",
	"storage.endpoint",
	"storage.bucket",
	"storage.access_key_id",
	"storage.secret_access_key",
	"mcp.allow_ingest",
}

func initConfig() {
	// .env is optional
	_ = godotenv.Load()

	// Start with defaults
	cfg = config.Defaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/docindex")
		viper.AddConfigPath(".")
	}

	// Environment variable overrides
	// DOCINDEX_ELASTICSEARCH_INDEX -> elasticsearch.index
	viper.SetEnvPrefix("DOCINDEX")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Explicitly bind nested env vars
	for _, key := range envBindings {
		viper.BindEnv(key, "DOCINDEX_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
	}

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("config file error", "error", err)
		}
		// No config file - use defaults + env vars
	}

	// Unmarshal into struct (merges config file with defaults)
	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Warn("failed to parse config", "error", err)
	}

	// Handle special case: addresses as comma-separated string from env
	if addrs := os.Getenv("DOCINDEX_ELASTICSEARCH_ADDRESSES"); addrs != "" {
		cfg.Elasticsearch.Addresses = strings.Split(addrs, ",")
	}
}
