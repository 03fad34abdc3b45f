package openai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/harvest/ai"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// noSplit is large enough that langchaingo sends each call as one request.
const noSplit = 512

// Embedder implements ai.Embedder over the /embeddings endpoint.
type Embedder struct {
	embedder embeddings.Embedder
	model    string
	logger   *slog.Logger
}

func newEmbedder(config *ai.Config, logger *slog.Logger) (*Embedder, error) {
	client, err := newClient(config.EmbeddingHost, config.APIKey, openai.WithEmbeddingModel(config.EmbeddingModel))
	if err != nil {
		return nil, fmt.Errorf("embedding client: %w", err)
	}
	e, err := embeddings.NewEmbedder(client,
		embeddings.WithStripNewLines(true),
		embeddings.WithBatchSize(noSplit),
	)
	if err != nil {
		return nil, fmt.Errorf("embedding client: %w", err)
	}
	return &Embedder{
		embedder: e,
		model:    config.EmbeddingModel,
		logger:   logger.With("component", "openai-embedder"),
	}, nil
}

// NewEmbedder returns a standalone embedder for config.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return newEmbedder(config, slog.Default())
}

func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vector, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		e.logger.Warn("query embedding failed", "model", e.model, "chars", len(text), "err", err)
		return nil, err
	}
	return vector, nil
}

func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Warn("batch embedding failed", "model", e.model, "texts", len(texts), "err", err)
		return nil, err
	}
	e.logger.Debug("batch embedded", "model", e.model, "texts", len(texts))
	return vectors, nil
}
