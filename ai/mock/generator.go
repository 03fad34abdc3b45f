package mock

import (
	"context"
	"sync"

	"github.com/poiesic/harvest/ai"
)

// GenerateCall records the arguments of one Generate call.
type GenerateCall struct {
	SystemPrompt string
	History      []ai.Message
	UserMessage  string
	Options      ai.GenerateOptions
}

// MockGenerator is a test double for ai.TextGenerator.
type MockGenerator struct {
	// GenerateFunc is called by Generate if set.
	// If nil, the reply echoes the user message.
	GenerateFunc func(ctx context.Context, systemPrompt string, history []ai.Message, userMessage string) (*ai.Generation, error)

	mu    sync.Mutex
	calls []GenerateCall
}

// NewMockGenerator creates a mock generator with default echo behavior.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// Generate records the call and returns a canned reply.
func (m *MockGenerator) Generate(ctx context.Context, systemPrompt string, history []ai.Message, userMessage string, opts ...ai.GenerateOption) (*ai.Generation, error) {
	options := ai.ApplyGenerateOptions(opts)
	m.mu.Lock()
	m.calls = append(m.calls, GenerateCall{
		SystemPrompt: systemPrompt,
		History:      append([]ai.Message(nil), history...),
		UserMessage:  userMessage,
		Options:      options,
	})
	fn := m.GenerateFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, systemPrompt, history, userMessage)
	}
	model := "mock"
	if options.Model != "" {
		model = options.Model
	}
	return &ai.Generation{
		Text:  "mock reply: " + userMessage,
		Model: model,
		Usage: ai.Usage{PromptTokens: len(systemPrompt) / 4, CompletionTokens: 4, TotalTokens: len(systemPrompt)/4 + 4},
	}, nil
}

// Calls returns every recorded call in order.
func (m *MockGenerator) Calls() []GenerateCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]GenerateCall(nil), m.calls...)
}

// CallCount returns the number of Generate calls.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
