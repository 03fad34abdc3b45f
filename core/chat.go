package core

import "time"

// ChatRole identifies who wrote a chat message.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatSession is a conversation bound to one vector database. Its
// generation and retrieval settings are fixed when the session starts;
// empty Model, SystemPrompt, nil Temperature and zero MaxTokens fall back
// to the service defaults.
type ChatSession struct {
	ID           string
	Owner        string
	DatabaseID   string
	Model        string
	SystemPrompt string
	Temperature  *float64
	MaxTokens    int
	Mode         SearchMode
	TopK         int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ChatMessage is one stored turn of a session. Seq orders the messages of
// a session and is assigned by the repository.
type ChatMessage struct {
	SessionID string
	Seq       uint64
	Role      ChatRole
	Content   string
	Metadata  ChatMessageMetadata
	CreatedAt time.Time
}

// ChatMessageMetadata is recorded on assistant turns.
type ChatMessageMetadata struct {
	Model       string `json:"model,omitempty"`
	SourcesUsed int    `json:"sources_used,omitempty"`
	TotalTokens int    `json:"total_tokens,omitempty"`
}
