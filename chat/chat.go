// Package chat answers questions about a vector database by retrieving
// context and handing it to a text generator.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/harvest/ai"
	"github.com/poiesic/harvest/core"
	"github.com/poiesic/harvest/storage"
)

const (
	// MaxHistory is the number of past turns sent to the generator.
	MaxHistory = 10

	// DefaultTopK is the number of chunks retrieved as context.
	DefaultTopK = 5
)

// DefaultSystemPrompt instructs the model to answer from retrieved content.
const DefaultSystemPrompt = `You are an assistant that answers questions about web pages and documents that have been collected and indexed.

Guidelines:
1. Base every answer on the numbered context below.
2. If the context does not contain the answer, say so plainly.
3. Cite sources by their number, title or URL.
4. When several sources are relevant, combine them.
5. Keep answers accurate and concise.`

var (
	// ErrSearcherRequired is returned when a searcher is not provided.
	ErrSearcherRequired = errors.New("searcher required")

	// ErrGeneratorRequired is returned when a text generator is not provided.
	ErrGeneratorRequired = errors.New("text generator required")

	// ErrEmptyMessage indicates a blank question.
	ErrEmptyMessage = fmt.Errorf("%w: message cannot be empty", core.ErrInvalidRequest)
)

// Searcher retrieves ranked context. *search.Searcher satisfies it.
type Searcher interface {
	Search(ctx context.Context, dbID, owner, query string, mode core.SearchMode, topK int) ([]core.SearchResult, error)
}

// Request is one chat turn.
type Request struct {
	DatabaseID string
	Owner      string
	Message    string
	// History holds earlier turns, oldest first.
	History []ai.Message
	// Mode defaults to hybrid.
	Mode core.SearchMode
	TopK int
	// SystemPrompt replaces the service prompt when set.
	SystemPrompt string
	// Options are passed through to the generator.
	Options []ai.GenerateOption
}

// Source is a retrieved chunk cited by an answer.
type Source struct {
	Title string  `json:"title"`
	URL   string  `json:"url"`
	Score float32 `json:"score"`
}

// Answer is the generator's reply and the context it was given.
type Answer struct {
	Text    string   `json:"text"`
	Model   string   `json:"model,omitempty"`
	Sources []Source `json:"sources"`
	Usage   ai.Usage `json:"usage"`
}

// Service runs the retrieve-then-generate loop. With a session store it
// also keeps conversations, see StartSession.
type Service struct {
	searcher     Searcher
	generator    ai.TextGenerator
	systemPrompt string
	sessions     storage.ChatSessionRepository
	databases    DatabaseLookup
	logger       *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithSystemPrompt replaces DefaultSystemPrompt.
func WithSystemPrompt(prompt string) Option {
	return func(s *Service) {
		if strings.TrimSpace(prompt) != "" {
			s.systemPrompt = prompt
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSessionStore enables stored chat sessions. databases is consulted
// when a session starts.
func WithSessionStore(sessions storage.ChatSessionRepository, databases DatabaseLookup) Option {
	return func(s *Service) {
		s.sessions = sessions
		s.databases = databases
	}
}

// NewService creates a chat service.
func NewService(searcher Searcher, generator ai.TextGenerator, opts ...Option) (*Service, error) {
	if searcher == nil {
		return nil, ErrSearcherRequired
	}
	if generator == nil {
		return nil, ErrGeneratorRequired
	}
	s := &Service{
		searcher:     searcher,
		generator:    generator,
		systemPrompt: DefaultSystemPrompt,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "chat")
	return s, nil
}

// Ask retrieves context for req.Message and returns the generated answer.
func (s *Service) Ask(ctx context.Context, req Request) (*Answer, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	mode := req.Mode
	if mode == "" {
		mode = core.SearchModeHybrid
	}
	topK := req.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	results, err := s.searcher.Search(ctx, req.DatabaseID, req.Owner, message, mode, topK)
	if err != nil {
		return nil, err
	}

	prompt := s.systemPrompt
	if strings.TrimSpace(req.SystemPrompt) != "" {
		prompt = req.SystemPrompt
	}
	history := trimHistory(req.History)
	gen, err := s.generator.Generate(ctx, BuildSystemPrompt(prompt, results), history, message, req.Options...)
	if err != nil {
		s.logger.Error("generation failed", "database", req.DatabaseID, "err", err)
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	sources := make([]Source, len(results))
	for i, r := range results {
		sources[i] = Source{Title: r.Title, URL: r.URL, Score: r.Score}
	}
	s.logger.Info("answered", "database", req.DatabaseID, "sources", len(sources),
		"history", len(history), "total_tokens", gen.Usage.TotalTokens)

	return &Answer{Text: gen.Text, Model: gen.Model, Sources: sources, Usage: gen.Usage}, nil
}

// BuildSystemPrompt appends the numbered context block to base.
func BuildSystemPrompt(base string, results []core.SearchResult) string {
	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\nContext:\n")
	if len(results) == 0 {
		b.WriteString("(no relevant content was found)\n")
		return b.String()
	}
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n---\n\n")
		}
		fmt.Fprintf(&b, "[%d] Source: %s (%s)\nContent: %s\n", i+1, r.Title, r.URL, r.Content)
	}
	return b.String()
}

// trimHistory keeps the last MaxHistory non-empty turns.
func trimHistory(history []ai.Message) []ai.Message {
	kept := make([]ai.Message, 0, len(history))
	for _, m := range history {
		if strings.TrimSpace(m.Content) != "" {
			kept = append(kept, m)
		}
	}
	if len(kept) > MaxHistory {
		kept = kept[len(kept)-MaxHistory:]
	}
	return kept
}
