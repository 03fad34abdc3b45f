// Package config loads harvest settings from a YAML file, a .env file and
// HARVEST_* environment variables, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/poiesic/harvest/ai"
)

// Storage drivers.
const (
	DriverBadger   = "badger"
	DriverPostgres = "postgres"
)

// StorageConfig selects where jobs and databases are recorded.
type StorageConfig struct {
	Driver      string `yaml:"driver"`
	PostgresURL string `yaml:"postgres_url,omitempty"`
}

// AIConfig configures the OpenAI-compatible embedding and chat services.
type AIConfig struct {
	EmbeddingHost  string  `yaml:"embedding_host"`
	ChatHost       string  `yaml:"chat_host"`
	EmbeddingModel string  `yaml:"embedding_model"`
	ChatModel      string  `yaml:"chat_model"`
	APIKeyEnv      string  `yaml:"api_key_env"`
	Temperature    float64 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`
	EmbedBatchSize int     `yaml:"embed_batch_size"`

	// APIKey is read from the APIKeyEnv variable, never from the file.
	APIKey string `yaml:"-"`
}

// IngestionConfig tunes chunking, uploads and the job executor.
type IngestionConfig struct {
	ChunkSize       int           `yaml:"chunk_size"`
	ChunkOverlap    int           `yaml:"chunk_overlap"`
	UploadBatchSize int           `yaml:"upload_batch_size"`
	Workers         int           `yaml:"workers"` // 0 selects NumCPU/2
	JobTimeout      time.Duration `yaml:"job_timeout"`
	StaleAfter      time.Duration `yaml:"stale_after"`
	SweepInterval   time.Duration `yaml:"sweep_interval"`
}

// IndexConfig configures the local search backend.
type IndexConfig struct {
	Prefix     string `yaml:"prefix"`
	MaxIndexes int    `yaml:"max_indexes"`
}

// CrawlerConfig configures page fetching.
type CrawlerConfig struct {
	UserAgent    string        `yaml:"user_agent,omitempty"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
}

// Config is the root configuration.
type Config struct {
	DataDir   string          `yaml:"data_dir"`
	Listen    string          `yaml:"listen"`
	LogLevel  string          `yaml:"log_level"`
	Storage   StorageConfig   `yaml:"storage"`
	AI        AIConfig        `yaml:"ai"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Index     IndexConfig     `yaml:"index"`
	Crawler   CrawlerConfig   `yaml:"crawler"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir:  "./data",
		Listen:   ":8080",
		LogLevel: "info",
		Storage:  StorageConfig{Driver: DriverBadger},
		AI: AIConfig{
			EmbeddingHost:  "http://localhost:11434/v1",
			ChatHost:       "http://localhost:11434/v1",
			EmbeddingModel: "embeddinggemma",
			ChatModel:      "qwen2.5:3b",
			APIKeyEnv:      "OPENAI_API_KEY",
			Temperature:    0.7,
			MaxTokens:      1000,
			EmbedBatchSize: 10,
		},
		Ingestion: IngestionConfig{
			ChunkSize:       1000,
			ChunkOverlap:    200,
			UploadBatchSize: 100,
			JobTimeout:      30 * time.Minute,
			StaleAfter:      45 * time.Minute,
			SweepInterval:   time.Minute,
		},
		Index: IndexConfig{
			Prefix:     "harvest-",
			MaxIndexes: 15,
		},
		Crawler: CrawlerConfig{
			Timeout:      30 * time.Second,
			MaxBodyBytes: 10 << 20,
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. A missing file or empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv exports the variables of a .env file that are not already set.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.DataDir = getenv("HARVEST_DATA_DIR", cfg.DataDir)
	cfg.Listen = getenv("HARVEST_LISTEN", cfg.Listen)
	cfg.LogLevel = getenv("HARVEST_LOG_LEVEL", cfg.LogLevel)

	cfg.Storage.Driver = getenv("HARVEST_STORAGE_DRIVER", cfg.Storage.Driver)
	cfg.Storage.PostgresURL = getenv("HARVEST_POSTGRES_URL", cfg.Storage.PostgresURL)

	cfg.AI.EmbeddingHost = getenv("HARVEST_EMBEDDING_HOST", cfg.AI.EmbeddingHost)
	cfg.AI.ChatHost = getenv("HARVEST_CHAT_HOST", cfg.AI.ChatHost)
	cfg.AI.EmbeddingModel = getenv("HARVEST_EMBEDDING_MODEL", cfg.AI.EmbeddingModel)
	cfg.AI.ChatModel = getenv("HARVEST_CHAT_MODEL", cfg.AI.ChatModel)
	if cfg.AI.APIKeyEnv != "" {
		cfg.AI.APIKey = os.Getenv(cfg.AI.APIKeyEnv)
	}
	cfg.AI.APIKey = getenv("HARVEST_API_KEY", cfg.AI.APIKey)

	cfg.Ingestion.ChunkSize = getenvInt("HARVEST_CHUNK_SIZE", cfg.Ingestion.ChunkSize)
	cfg.Ingestion.ChunkOverlap = getenvInt("HARVEST_CHUNK_OVERLAP", cfg.Ingestion.ChunkOverlap)
	cfg.Ingestion.Workers = getenvInt("HARVEST_WORKERS", cfg.Ingestion.Workers)
	cfg.Ingestion.JobTimeout = getenvDuration("HARVEST_JOB_TIMEOUT", cfg.Ingestion.JobTimeout)

	cfg.Index.Prefix = getenv("HARVEST_INDEX_PREFIX", cfg.Index.Prefix)
	cfg.Index.MaxIndexes = getenvInt("HARVEST_MAX_INDEXES", cfg.Index.MaxIndexes)
}

func getenv(k, fallback string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return fallback
	}
	return v
}

func getenvInt(k string, fallback int) int {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvDuration(k string, fallback time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// Validate checks ranges and required settings.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return errors.New("config: data_dir is required")
	}
	switch c.Storage.Driver {
	case DriverBadger:
	case DriverPostgres:
		if c.Storage.PostgresURL == "" {
			return errors.New("config: storage.postgres_url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	in := c.Ingestion
	if in.ChunkSize < 1 {
		return fmt.Errorf("config: ingestion.chunk_size must be >= 1, got %d", in.ChunkSize)
	}
	if in.ChunkOverlap < 0 || in.ChunkOverlap >= in.ChunkSize {
		return fmt.Errorf("config: ingestion.chunk_overlap must be in [0, %d), got %d", in.ChunkSize, in.ChunkOverlap)
	}
	if in.UploadBatchSize < 1 {
		return fmt.Errorf("config: ingestion.upload_batch_size must be >= 1, got %d", in.UploadBatchSize)
	}
	if in.Workers < 0 {
		return fmt.Errorf("config: ingestion.workers must be >= 0, got %d", in.Workers)
	}
	if in.JobTimeout <= 0 || in.StaleAfter <= 0 || in.SweepInterval <= 0 {
		return errors.New("config: ingestion timeouts must be positive")
	}
	if c.AI.EmbedBatchSize < 1 {
		return fmt.Errorf("config: ai.embed_batch_size must be >= 1, got %d", c.AI.EmbedBatchSize)
	}
	if c.Index.Prefix == "" {
		return errors.New("config: index.prefix is required")
	}
	if c.Index.MaxIndexes < 0 {
		return fmt.Errorf("config: index.max_indexes must be >= 0, got %d", c.Index.MaxIndexes)
	}
	return nil
}

// ProviderConfig converts the AI section into an ai.Config.
func (c *Config) ProviderConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(c.AI.EmbeddingHost),
		ai.WithChatHost(c.AI.ChatHost),
		ai.WithEmbeddingModel(c.AI.EmbeddingModel),
		ai.WithChatModel(c.AI.ChatModel),
		ai.WithAPIKey(c.AI.APIKey),
		ai.WithTemperature(c.AI.Temperature),
		ai.WithMaxTokens(c.AI.MaxTokens),
	)
}

func (c *Config) StorageDir() string  { return filepath.Join(c.DataDir, "db") }
func (c *Config) IndexDir() string    { return filepath.Join(c.DataDir, "index") }
func (c *Config) SnapshotDir() string { return filepath.Join(c.DataDir, "raw") }
func (c *Config) UploadDir() string   { return filepath.Join(c.DataDir, "uploads") }
