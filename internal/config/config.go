package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Elasticsearch   Elasticsearch   `mapstructure:"elasticsearch"`
	Embeddings      Embeddings      `mapstructure:"embeddings"`
	ImageEmbeddings ImageEmbeddings `mapstructure:"image_embeddings"`
	OCR             OCR             `mapstructure:"ocr"`
	Tags            Tags            `mapstructure:"tags"`
	Ingestion       Ingestion       `mapstructure:"ingestion"`
	Storage         Storage         `mapstructure:"storage"`
	Query           Query           `mapstructure:"query"`
	MCP             MCP             `mapstructure:"mcp"`
}

// Elasticsearch holds ES connection configuration.
type Elasticsearch struct {
	Addresses []string `mapstructure:"addresses"`
	Index     string   `mapstructure:"index"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

// Embeddings holds text embedding configuration.
type Embeddings struct {
	Backend    string `mapstructure:"backend"`     // dmr, openai or none
	SocketPath string `mapstructure:"socket_path"` // dmr: Docker socket
	BaseURL    string `mapstructure:"base_url"`    // openai: API base URL
	Token      string `mapstructure:"token"`       // openai: API key
	Model      string `mapstructure:"model"`
	// Dimension of the text vectors. 0 looks it up from the model name.
	Dimension int `mapstructure:"dimension"`
}

// ImageEmbeddings holds image embedding configuration. An empty URL
// disables image vectors.
type ImageEmbeddings struct {
	URL       string        `mapstructure:"url"`
	Model     string        `mapstructure:"model"`
	Dimension int           `mapstructure:"dimension"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// OCR holds tesseract configuration.
type OCR struct {
	Binary    string `mapstructure:"binary"`
	Languages string `mapstructure:"languages"`
	OEM       int    `mapstructure:"oem"`
	PSM       int    `mapstructure:"psm"`
	TempDir   string `mapstructure:"temp_dir"`
}

// Tags holds keyword tag configuration.
type Tags struct {
	TopN int `mapstructure:"top_n"`
	// Stopwords per ISO 639-1 language code. Unset uses the built-in lists.
	Stopwords map[string][]string `mapstructure:"stopwords"`
}

// Ingestion holds ingestion engine configuration.
type Ingestion struct {
	Workers      int    `mapstructure:"workers"` // 0 = number of CPUs
	UploadDir    string `mapstructure:"upload_dir"`
	SkipExisting bool   `mapstructure:"skip_existing"`
	MaxFileSize  int64  `mapstructure:"max_file_size"`
}

// Storage holds kept-image storage configuration.
type Storage struct {
	Backend  string `mapstructure:"backend"` // none, local or minio
	LocalDir string `mapstructure:"local_dir"`
	// ArchiveRecords also writes each indexed record to the bucket (minio only).
	ArchiveRecords  bool   `mapstructure:"archive_records"`
	Endpoint        string `mapstructure:"endpoint"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// Query holds retrieval configuration.
type Query struct {
	Fields              []string `mapstructure:"fields"`
	DefaultSize         int      `mapstructure:"default_size"`
	RequireKeywordMatch bool     `mapstructure:"require_keyword_match"`
}

// MCP holds MCP server configuration.
type MCP struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
	// AllowIngest registers the ingest_document tool.
	AllowIngest bool `mapstructure:"allow_ingest"`
}

// Storage backends.
const (
	StorageNone  = "none"
	StorageLocal = "local"
	StorageMinIO = "minio"
)

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Elasticsearch: Elasticsearch{
			Addresses: []string{"http://localhost:9200"},
			Index:     "documents",
		},
		Embeddings: Embeddings{
			Backend:    "none", // requires DMR or an OpenAI-compatible endpoint
			SocketPath: "",     // User must provide their Docker socket path
			Model:      "ai/all-minilm",
			Dimension:  384,
		},
		ImageEmbeddings: ImageEmbeddings{
			Model:     "clip-vit-b-32",
			Dimension: 512,
			Timeout:   60 * time.Second,
		},
		OCR: OCR{
			Binary:    "tesseract",
			Languages: "rus+eng",
			OEM:       3,
			PSM:       3,
		},
		Tags: Tags{
			TopN: 10,
		},
		Ingestion: Ingestion{
			MaxFileSize: 100 * 1024 * 1024,
		},
		Storage: Storage{
			Backend:         StorageNone,
			LocalDir:        "./data/images",
			Endpoint:        "localhost:9000",
			Bucket:          "docindex",
			AccessKeyID:     "minioadmin",
			SecretAccessKey: "minioadmin",
			UseSSL:          false,
		},
		Query: Query{
			Fields:      []string{"title", "text_content"},
			DefaultSize: 10,
		},
		MCP: MCP{
			Name:    "docindex",
			Version: "1.0.0",
		},
	}
}

// Validate checks values that cannot be defaulted.
func (c Config) Validate() error {
	if len(c.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("elasticsearch.addresses is required")
	}
	if c.Elasticsearch.Index == "" {
		return fmt.Errorf("elasticsearch.index is required")
	}
	switch c.Embeddings.Backend {
	case "dmr", "openai", "none", "":
	default:
		return fmt.Errorf("unknown embeddings.backend %q", c.Embeddings.Backend)
	}
	switch c.Storage.Backend {
	case StorageNone, StorageLocal, StorageMinIO, "":
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	if c.Embeddings.Dimension < 0 || c.ImageEmbeddings.Dimension < 0 {
		return fmt.Errorf("embedding dimensions must not be negative")
	}
	if c.Query.DefaultSize < 0 {
		return fmt.Errorf("query.default_size must not be negative")
	}
	return nil
}
