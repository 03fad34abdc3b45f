package ai

import "context"

// Embedder turns text into vectors. EmbedTexts returns exactly one vector
// per input, in input order. Safe for concurrent use.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// TextGenerator answers a user message. systemPrompt carries the retrieved
// context and history runs oldest first. opts override the configured model
// settings for this call only. Safe for concurrent use.
type TextGenerator interface {
	Generate(ctx context.Context, systemPrompt string, history []Message, userMessage string, opts ...GenerateOption) (*Generation, error)
}

// AIProvider bundles the two model services behind one lifecycle.
type AIProvider interface {
	Embedder() Embedder
	Generator() TextGenerator
	Close() error
}
