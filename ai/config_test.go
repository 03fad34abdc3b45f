package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	assert.Equal(t, "http://localhost:11434/v1", cfg.ChatHost)
	assert.Equal(t, "embeddinggemma", cfg.EmbeddingModel)
	assert.Equal(t, "qwen2.5:3b", cfg.ChatModel)
	assert.Equal(t, "none", cfg.APIKey)
	assert.Equal(t, 1000, cfg.MaxTokens)
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()

		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://localhost:11434/v1", cfg.ChatHost)
	})

	t.Run("with custom host", func(t *testing.T) {
		cfg := NewConfig(WithHost("http://custom:8080/v1"))

		assert.Equal(t, "http://custom:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://custom:8080/v1", cfg.ChatHost)
	})

	t.Run("with separate hosts", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingHost("http://embed:8080/v1"),
			WithChatHost("http://chat:9090/v1"),
		)

		assert.Equal(t, "http://embed:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://chat:9090/v1", cfg.ChatHost)
	})

	t.Run("with multiple options", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingModel("text-embedding-3-small"),
			WithChatModel("gpt-4o-mini"),
			WithAPIKey("sk-test"),
			WithTemperature(0.2),
			WithMaxTokens(256),
		)

		assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
		assert.Equal(t, "gpt-4o-mini", cfg.ChatModel)
		assert.Equal(t, "sk-test", cfg.APIKey)
		assert.InDelta(t, 0.2, cfg.Temperature, 1e-9)
		assert.Equal(t, 256, cfg.MaxTokens)
	})
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name          string
		embeddingHost string
		chatHost      string
		wantEmbedding string
		wantChat      string
	}{
		{
			name:          "already has /v1",
			embeddingHost: "http://localhost:11434/v1",
			chatHost:      "http://localhost:11434/v1",
			wantEmbedding: "http://localhost:11434/v1",
			wantChat:      "http://localhost:11434/v1",
		},
		{
			name:          "missing /v1",
			embeddingHost: "http://localhost:11434",
			chatHost:      "http://localhost:11434",
			wantEmbedding: "http://localhost:11434/v1",
			wantChat:      "http://localhost:11434/v1",
		},
		{
			name:          "has trailing slash",
			embeddingHost: "http://localhost:11434/",
			chatHost:      "http://localhost:11434/",
			wantEmbedding: "http://localhost:11434/v1",
			wantChat:      "http://localhost:11434/v1",
		},
		{
			name:          "empty hosts",
			embeddingHost: "",
			chatHost:      "",
			wantEmbedding: "",
			wantChat:      "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				EmbeddingHost: tt.embeddingHost,
				ChatHost:      tt.chatHost,
			}

			cfg.Normalize()

			assert.Equal(t, tt.wantEmbedding, cfg.EmbeddingHost)
			assert.Equal(t, tt.wantChat, cfg.ChatHost)
			assert.Equal(t, "none", cfg.APIKey)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			EmbeddingHost:  "http://localhost:11434",
			ChatHost:       "http://localhost:11434",
			EmbeddingModel: "embeddinggemma",
			ChatModel:      "qwen2.5:3b",
			Temperature:    0.7,
			MaxTokens:      100,
		}
	}

	t.Run("valid config", func(t *testing.T) {
		cfg := valid()
		require.NoError(t, cfg.Validate())
		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	})

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing embedding host", func(c *Config) { c.EmbeddingHost = "" }, "EmbeddingHost"},
		{"missing chat host", func(c *Config) { c.ChatHost = "" }, "ChatHost"},
		{"missing embedding model", func(c *Config) { c.EmbeddingModel = "" }, "EmbeddingModel"},
		{"missing chat model", func(c *Config) { c.ChatModel = "" }, "ChatModel"},
		{"temperature too high", func(c *Config) { c.Temperature = 2.5 }, "Temperature"},
		{"no max tokens", func(c *Config) { c.MaxTokens = 0 }, "MaxTokens"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfigValidate_Integration(t *testing.T) {
	require.NoError(t, NewConfig().Validate())
	require.NoError(t, DefaultConfig().Validate())
}
