package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Ingestion, cfg.Ingestion)
	assert.Equal(t, DriverBadger, cfg.Storage.Driver)
	assert.Equal(t, 15, cfg.Index.MaxIndexes)
	assert.Equal(t, 10, cfg.AI.EmbedBatchSize)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "./data", cfg.DataDir)
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, "harvest.yaml", `
data_dir: /var/lib/harvest
listen: ":9000"
storage:
  driver: postgres
  postgres_url: postgres://harvest@localhost/harvest
ai:
  chat_model: gpt-4o-mini
ingestion:
  chunk_size: 50
  chunk_overlap: 10
  job_timeout: 10m
index:
  max_indexes: 3
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/harvest", cfg.DataDir)
	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, "gpt-4o-mini", cfg.AI.ChatModel)
	assert.Equal(t, "embeddinggemma", cfg.AI.EmbeddingModel, "unset keys keep defaults")
	assert.Equal(t, 50, cfg.Ingestion.ChunkSize)
	assert.Equal(t, 10*time.Minute, cfg.Ingestion.JobTimeout)
	assert.Equal(t, 100, cfg.Ingestion.UploadBatchSize)
	assert.Equal(t, 3, cfg.Index.MaxIndexes)
	assert.Equal(t, filepath.Join("/var/lib/harvest", "raw"), cfg.SnapshotDir())
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeFile(t, "harvest.yaml", "data_dir: /from/file\n")
	t.Setenv("HARVEST_DATA_DIR", "/from/env")
	t.Setenv("HARVEST_CHUNK_SIZE", "64")
	t.Setenv("HARVEST_CHUNK_OVERLAP", "8")
	t.Setenv("HARVEST_MAX_INDEXES", "not-a-number")
	t.Setenv("HARVEST_JOB_TIMEOUT", "90s")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("HARVEST_API_KEY", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.DataDir)
	assert.Equal(t, 64, cfg.Ingestion.ChunkSize)
	assert.Equal(t, 8, cfg.Ingestion.ChunkOverlap)
	assert.Equal(t, 15, cfg.Index.MaxIndexes, "unparsable values fall back")
	assert.Equal(t, 90*time.Second, cfg.Ingestion.JobTimeout)
	assert.Equal(t, "sk-test", cfg.AI.APIKey)

	t.Setenv("HARVEST_API_KEY", "sk-override")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-override", cfg.AI.APIKey)
	assert.Equal(t, "sk-override", cfg.ProviderConfig().APIKey)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad yaml":        "ingestion: [",
		"unknown driver":  "storage:\n  driver: sqlite\n",
		"postgres no url": "storage:\n  driver: postgres\n",
		"overlap too big": "ingestion:\n  chunk_size: 10\n  chunk_overlap: 10\n",
		"negative quota":  "index:\n  max_indexes: -1\n",
		"empty prefix":    "index:\n  prefix: \"\"\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, "harvest.yaml", content))
			assert.Error(t, err)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
	require.NoError(t, LoadDotEnv(""))

	// godotenv never overrides a variable that is already set, even to "".
	t.Setenv("HARVEST_LISTEN", "")
	require.NoError(t, os.Unsetenv("HARVEST_LISTEN"))
	path := writeFile(t, ".env", "HARVEST_LISTEN=:7070\n")
	require.NoError(t, LoadDotEnv(path))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Listen)
}

func TestProviderConfig(t *testing.T) {
	cfg := Default()
	cfg.AI.ChatHost = "http://gpu-box:8000"
	pc := cfg.ProviderConfig()
	require.NoError(t, pc.Validate())
	assert.Equal(t, "http://gpu-box:8000/v1", pc.ChatHost)
	assert.Equal(t, "qwen2.5:3b", pc.ChatModel)
}
