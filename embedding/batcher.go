package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/harvest/ai"
)

const (
	// DefaultBatchSize is the provider sub-batch limit.
	DefaultBatchSize = 10
	// DefaultMaxAttempts is the number of tries per sub-batch.
	DefaultMaxAttempts = 3
	// DefaultBaseDelay is the first retry delay; it doubles on each retry.
	DefaultBaseDelay = 200 * time.Millisecond
)

// Batcher wraps an ai.Embedder and splits every request into provider-sized
// sub-batches. Output order matches input order one to one. A sub-batch that
// still fails after its retries aborts the whole call.
//
// Batcher itself satisfies ai.Embedder.
type Batcher struct {
	embedder    ai.Embedder
	batchSize   int
	maxAttempts int
	baseDelay   time.Duration
	normalize   bool
	logger      *slog.Logger

	dimMu     sync.Mutex
	dimension int
}

// Option configures a Batcher.
type Option func(*Batcher) error

// WithBatchSize sets the sub-batch limit.
func WithBatchSize(n int) Option {
	return func(b *Batcher) error {
		if n < 1 {
			return ErrInvalidBatchSize
		}
		b.batchSize = n
		return nil
	}
}

// WithRetry sets the attempts per sub-batch and the first backoff delay.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(b *Batcher) error {
		if maxAttempts < 1 {
			return ErrInvalidMaxAttempts
		}
		b.maxAttempts = maxAttempts
		b.baseDelay = baseDelay
		return nil
	}
}

// WithNormalize controls L2 normalization of returned vectors. Enabled by default.
func WithNormalize(normalize bool) Option {
	return func(b *Batcher) error {
		b.normalize = normalize
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Batcher) error {
		b.logger = logger
		return nil
	}
}

// NewBatcher creates a Batcher around embedder.
func NewBatcher(embedder ai.Embedder, opts ...Option) (*Batcher, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	b := &Batcher{
		embedder:    embedder,
		batchSize:   DefaultBatchSize,
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		normalize:   true,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	b.logger = b.logger.With("component", "embedding-batcher")
	return b, nil
}

// BatchSize returns the sub-batch limit.
func (b *Batcher) BatchSize() int {
	return b.batchSize
}

// Embed returns one vector per text, in input order.
func (b *Batcher) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += b.batchSize {
		end := min(start+b.batchSize, len(texts))
		batch := texts[start:end]

		var vectors [][]float32
		err := b.retry(ctx, "embed-batch", func() error {
			var err error
			vectors, err = b.embedder.EmbedTexts(ctx, batch)
			if err != nil {
				return err
			}
			if len(vectors) != len(batch) {
				return fmt.Errorf("%w: got %d, want %d", ErrCountMismatch, len(vectors), len(batch))
			}
			return nil
		})
		if err != nil {
			b.logger.Warn("sub-batch failed", "start", start, "size", len(batch), "error", err)
			return nil, fmt.Errorf("%w: texts %d-%d: %w", ErrEmbeddingFailed, start, end-1, err)
		}

		for i, v := range vectors {
			if len(v) == 0 {
				return nil, fmt.Errorf("%w: text %d", ErrEmptyVector, start+i)
			}
			if b.normalize {
				v = NormalizeVector(v)
			}
			out = append(out, v)
		}
		b.logger.Debug("sub-batch embedded", "start", start, "size", len(batch))
	}
	return out, nil
}

// EmbedTexts implements ai.Embedder.
func (b *Batcher) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	return b.Embed(ctx, texts)
}

// EmbedText embeds a single text, typically a search query.
func (b *Batcher) EmbedText(ctx context.Context, text string) ([]float32, error) {
	var vector []float32
	err := b.retry(ctx, "embed-query", func() error {
		var err error
		vector, err = b.embedder.EmbedText(ctx, text)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}
	if len(vector) == 0 {
		return nil, ErrEmptyVector
	}
	if b.normalize {
		vector = NormalizeVector(vector)
	}
	return vector, nil
}

// Dimension reports the provider's output size, probing it once on first use.
func (b *Batcher) Dimension(ctx context.Context) (int, error) {
	b.dimMu.Lock()
	defer b.dimMu.Unlock()
	if b.dimension > 0 {
		return b.dimension, nil
	}
	vector, err := b.EmbedText(ctx, "dimension probe")
	if err != nil {
		return 0, err
	}
	b.dimension = len(vector)
	return b.dimension, nil
}
