// Package config loads vectord configuration from defaults, an optional
// YAML file and VECTORD_* environment variables, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fyrsmithlabs/vectord/internal/chunker"
	"github.com/fyrsmithlabs/vectord/internal/events"
	"github.com/fyrsmithlabs/vectord/internal/logging"
	"github.com/fyrsmithlabs/vectord/internal/search"
	"github.com/fyrsmithlabs/vectord/internal/secrets"
	"github.com/fyrsmithlabs/vectord/internal/telemetry"
)

// Config holds the complete vectord configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Storage     StorageConfig     `koanf:"storage"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	Chunking    chunker.Config    `koanf:"chunking"`
	Search      search.Config     `koanf:"search"`
	Ingest      IngestConfig      `koanf:"ingest"`
	Events      events.Config     `koanf:"events"`
	Auth        AuthConfig        `koanf:"auth"`
	Telemetry   telemetry.Config  `koanf:"telemetry"`
	Logging     logging.Config    `koanf:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig locates the on-disk state.
type StorageConfig struct {
	DataDir     string `koanf:"data_dir"`
	SQLitePath  string `koanf:"sqlite_path"`
	JournalPath string `koanf:"journal_path"`
}

// VectorStoreConfig selects the vector backend.
type VectorStoreConfig struct {
	Provider string        `koanf:"provider"`
	Chromem  ChromemConfig `koanf:"chromem"`
	Qdrant   QdrantConfig  `koanf:"qdrant"`
}

// ChromemConfig configures the embedded store.
type ChromemConfig struct {
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`
}

// QdrantConfig configures the Qdrant gRPC client.
type QdrantConfig struct {
	Host       string `koanf:"host"`
	Port       int    `koanf:"port"`
	UseTLS     bool   `koanf:"use_tls"`
	APIKey     Secret `koanf:"api_key"`
	MaxRetries int    `koanf:"max_retries"`
}

// EmbeddingsConfig configures the embedding provider and generator.
type EmbeddingsConfig struct {
	Provider  string  `koanf:"provider"`
	Model     string  `koanf:"model"`
	BaseURL   string  `koanf:"base_url"`
	APIKey    Secret  `koanf:"api_key"`
	Dimension int     `koanf:"dimension"`
	BatchSize int     `koanf:"batch_size"`
	RateLimit float64 `koanf:"rate_limit"`
	Burst     int     `koanf:"burst"`
	CacheDir  string  `koanf:"cache_dir"`
}

// IngestConfig holds ingestion limits and the reconciler schedule.
type IngestConfig struct {
	Secrets            secrets.Config `koanf:",squash"`
	MaxUploadBytes     int64          `koanf:"max_upload_bytes"`
	ReconcileInterval  Duration       `koanf:"reconcile_interval"`
	ReconcileGrace     Duration       `koanf:"reconcile_grace"`
	CompletedRetention Duration       `koanf:"completed_retention"`
}

// AuthConfig controls API token authentication.
type AuthConfig struct {
	// Required rejects unauthenticated API requests.
	Required bool `koanf:"required"`
	// Token is the client token used by vctl and the MCP server.
	Token Secret `koanf:"token"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            9090,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Storage: StorageConfig{
			DataDir: "~/.config/vectord/data",
		},
		VectorStore: VectorStoreConfig{
			Provider: "chromem",
			Chromem:  ChromemConfig{Compress: true},
			Qdrant: QdrantConfig{
				Host:       "localhost",
				Port:       6334,
				MaxRetries: 3,
			},
		},
		Embeddings: EmbeddingsConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			Dimension: 1536,
			BatchSize: 100,
		},
		Chunking: chunker.DefaultConfig(),
		Search: search.Config{
			DefaultTopK:    5,
			ProjectTopK:    10,
			MaxTopK:        20,
			MaxProjectTopK: 50,
		},
		Ingest: IngestConfig{
			MaxUploadBytes:     32 << 20,
			ReconcileInterval:  Duration(5 * time.Minute),
			ReconcileGrace:     Duration(10 * time.Minute),
			CompletedRetention: Duration(24 * time.Hour),
		},
		Events: events.Config{
			SubjectPrefix: events.DefaultSubjectPrefix,
		},
		Auth:      AuthConfig{Required: true},
		Telemetry: *telemetry.NewDefaultConfig(),
		Logging:   *logging.NewDefaultConfig(),
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Storage.DataDir == "" {
		errs = append(errs, errors.New("storage.data_dir is required"))
	}
	switch c.VectorStore.Provider {
	case "chromem", "qdrant", "memory":
	default:
		errs = append(errs, fmt.Errorf("vectorstore.provider must be chromem, qdrant or memory, got %q", c.VectorStore.Provider))
	}
	switch c.Embeddings.Provider {
	case "openai", "tei", "fastembed", "fake":
	default:
		errs = append(errs, fmt.Errorf("embeddings.provider must be openai, tei, fastembed or fake, got %q", c.Embeddings.Provider))
	}
	if c.Embeddings.Dimension <= 0 {
		errs = append(errs, fmt.Errorf("embeddings.dimension must be positive, got %d", c.Embeddings.Dimension))
	}
	if c.Embeddings.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("embeddings.batch_size must be positive, got %d", c.Embeddings.BatchSize))
	}
	if err := c.Chunking.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("chunking: %w", err))
	}
	s := c.Search
	if s.MaxTopK < 1 || s.DefaultTopK < 1 || s.DefaultTopK > s.MaxTopK {
		errs = append(errs, fmt.Errorf("search.default_top_k must be within 1..max_top_k (%d)", s.MaxTopK))
	}
	if s.MaxProjectTopK < 1 || s.ProjectTopK < 1 || s.ProjectTopK > s.MaxProjectTopK {
		errs = append(errs, fmt.Errorf("search.project_top_k must be within 1..max_project_top_k (%d)", s.MaxProjectTopK))
	}
	if c.Ingest.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("ingest.max_upload_bytes must be positive"))
	}
	if c.Ingest.ReconcileGrace.Duration() <= 0 {
		errs = append(errs, errors.New("ingest.reconcile_grace must be positive"))
	}
	if c.Ingest.CompletedRetention.Duration() <= 0 {
		errs = append(errs, errors.New("ingest.completed_retention must be positive"))
	}
	if c.Events.Enabled && c.Events.URL == "" {
		errs = append(errs, errors.New("events.url is required when events are enabled"))
	}
	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}
	return errors.Join(errs...)
}

// Resolve expands "~" and fills storage paths derived from DataDir.
func (c *Config) Resolve() error {
	dataDir, err := expandHome(c.Storage.DataDir)
	if err != nil {
		return err
	}
	c.Storage.DataDir = dataDir
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = filepath.Join(dataDir, "vectord.db")
	}
	if c.Storage.JournalPath == "" {
		c.Storage.JournalPath = filepath.Join(dataDir, "journal.db")
	}
	if c.VectorStore.Chromem.Path == "" {
		c.VectorStore.Chromem.Path = filepath.Join(dataDir, "vectors")
	}
	for _, p := range []*string{&c.Storage.SQLitePath, &c.Storage.JournalPath, &c.VectorStore.Chromem.Path, &c.Embeddings.CacheDir, &c.Ingest.Secrets.AllowlistPath} {
		if *p, err = expandHome(*p); err != nil {
			return err
		}
	}
	return nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
