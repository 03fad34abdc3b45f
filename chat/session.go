package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/poiesic/harvest/ai"
	"github.com/poiesic/harvest/core"
	"github.com/poiesic/harvest/search"
	"github.com/poiesic/harvest/storage"
)

var (
	// ErrSessionsDisabled is returned by session methods when the service
	// was built without WithSessionStore.
	ErrSessionsDisabled = errors.New("chat sessions are not enabled")

	// ErrSessionNotFound indicates a session that is missing or owned by
	// someone else. It matches storage.ErrNotFound.
	ErrSessionNotFound = fmt.Errorf("chat session not found: %w", storage.ErrNotFound)
)

// DatabaseLookup reads vector database records. storage.DatabaseRepository
// satisfies it.
type DatabaseLookup interface {
	Get(ctx context.Context, id string) (*core.VectorDatabase, error)
}

// SessionConfig holds the per-session overrides chosen at start.
type SessionConfig struct {
	Model        string
	SystemPrompt string
	Temperature  *float64
	MaxTokens    int
	// Mode defaults to hybrid and TopK to DefaultTopK.
	Mode core.SearchMode
	TopK int
}

// StartSession opens a conversation on a ready database owned by owner.
func (s *Service) StartSession(ctx context.Context, owner, databaseID string, cfg SessionConfig) (*core.ChatSession, error) {
	if s.sessions == nil || s.databases == nil {
		return nil, ErrSessionsDisabled
	}

	session := &core.ChatSession{
		ID:           core.NewID(),
		Owner:        owner,
		DatabaseID:   databaseID,
		Model:        strings.TrimSpace(cfg.Model),
		SystemPrompt: strings.TrimSpace(cfg.SystemPrompt),
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxTokens,
		Mode:         cfg.Mode,
		TopK:         cfg.TopK,
	}
	if session.Mode == "" {
		session.Mode = core.SearchModeHybrid
	}
	if session.TopK <= 0 {
		session.TopK = DefaultTopK
	}
	if err := core.ValidateChatSession(session); err != nil {
		return nil, err
	}

	db, err := s.databases.Get(ctx, databaseID)
	switch {
	case errors.Is(err, storage.ErrNotFound), err == nil && db.Owner != owner:
		return nil, fmt.Errorf("%w: %s: %w", search.ErrDatabaseNotReady, databaseID, storage.ErrNotFound)
	case err != nil:
		return nil, err
	case db.Status != core.DatabaseStatusReady:
		return nil, fmt.Errorf("%w: %s is %s", search.ErrDatabaseNotReady, databaseID, db.Status)
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	s.logger.Info("chat session started", "session", session.ID, "database", databaseID, "model", session.Model)
	return session, nil
}

// Send answers message within a session. The last MaxHistory stored turns
// are the conversation history; the question and the answer are stored
// together once the answer exists, so a failed generation leaves no trace.
func (s *Service) Send(ctx context.Context, sessionID, owner, message string) (*Answer, error) {
	session, err := s.ownedSession(ctx, sessionID, owner)
	if err != nil {
		return nil, err
	}
	stored, err := s.sessions.Messages(ctx, sessionID, MaxHistory)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	history := make([]ai.Message, len(stored))
	for i, m := range stored {
		history[i] = ai.Message{Role: ai.Role(m.Role), Content: m.Content}
	}

	answer, err := s.Ask(ctx, Request{
		DatabaseID:   session.DatabaseID,
		Owner:        owner,
		Message:      message,
		History:      history,
		Mode:         session.Mode,
		TopK:         session.TopK,
		SystemPrompt: session.SystemPrompt,
		Options:      sessionOptions(session),
	})
	if err != nil {
		return nil, err
	}

	question := &core.ChatMessage{Role: core.ChatRoleUser, Content: strings.TrimSpace(message)}
	reply := &core.ChatMessage{
		Role:    core.ChatRoleAssistant,
		Content: answer.Text,
		Metadata: core.ChatMessageMetadata{
			Model:       answer.Model,
			SourcesUsed: len(answer.Sources),
			TotalTokens: answer.Usage.TotalTokens,
		},
	}
	if err := s.sessions.AppendMessages(ctx, sessionID, question, reply); err != nil {
		return nil, fmt.Errorf("store turns: %w", err)
	}
	return answer, nil
}

// History returns every stored message of a session, oldest first.
func (s *Service) History(ctx context.Context, sessionID, owner string) ([]*core.ChatMessage, error) {
	if _, err := s.ownedSession(ctx, sessionID, owner); err != nil {
		return nil, err
	}
	return s.sessions.Messages(ctx, sessionID, 0)
}

// ListSessions returns owner's sessions, newest first.
func (s *Service) ListSessions(ctx context.Context, owner string) ([]*core.ChatSession, error) {
	if s.sessions == nil {
		return nil, ErrSessionsDisabled
	}
	if strings.TrimSpace(owner) == "" {
		return nil, core.ErrEmptyOwner
	}
	return s.sessions.List(ctx, owner)
}

// DeleteSession removes a session and its messages.
func (s *Service) DeleteSession(ctx context.Context, sessionID, owner string) error {
	if _, err := s.ownedSession(ctx, sessionID, owner); err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return err
	}
	s.logger.Info("chat session deleted", "session", sessionID)
	return nil
}

func (s *Service) ownedSession(ctx context.Context, sessionID, owner string) (*core.ChatSession, error) {
	if s.sessions == nil {
		return nil, ErrSessionsDisabled
	}
	session, err := s.sessions.Get(ctx, sessionID)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && session.Owner != owner) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

func sessionOptions(session *core.ChatSession) []ai.GenerateOption {
	var opts []ai.GenerateOption
	if session.Model != "" {
		opts = append(opts, ai.WithCallModel(session.Model))
	}
	if session.Temperature != nil {
		opts = append(opts, ai.WithCallTemperature(*session.Temperature))
	}
	if session.MaxTokens > 0 {
		opts = append(opts, ai.WithCallMaxTokens(session.MaxTokens))
	}
	return opts
}
