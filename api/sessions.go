package api

import (
	"net/http"
	"time"

	"github.com/poiesic/harvest/chat"
	"github.com/poiesic/harvest/core"
)

type startSessionRequest struct {
	DatabaseID   string   `json:"database_id"`
	Model        string   `json:"model"`
	SystemPrompt string   `json:"system_prompt"`
	Temperature  *float64 `json:"temperature"`
	MaxTokens    int      `json:"max_tokens"`
	Mode         string   `json:"mode"`
	TopK         int      `json:"top_k"`
}

type sessionView struct {
	ID           string          `json:"id"`
	DatabaseID   string          `json:"database_id"`
	Model        string          `json:"model,omitempty"`
	SystemPrompt string          `json:"system_prompt,omitempty"`
	Temperature  *float64        `json:"temperature,omitempty"`
	MaxTokens    int             `json:"max_tokens,omitempty"`
	Mode         core.SearchMode `json:"mode"`
	TopK         int             `json:"top_k"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func newSessionView(s *core.ChatSession) sessionView {
	return sessionView{
		ID:           s.ID,
		DatabaseID:   s.DatabaseID,
		Model:        s.Model,
		SystemPrompt: s.SystemPrompt,
		Temperature:  s.Temperature,
		MaxTokens:    s.MaxTokens,
		Mode:         s.Mode,
		TopK:         s.TopK,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

type messageView struct {
	Seq       uint64                   `json:"seq"`
	Role      core.ChatRole            `json:"role"`
	Content   string                   `json:"content"`
	Metadata  core.ChatMessageMetadata `json:"metadata"`
	CreatedAt time.Time                `json:"created_at"`
}

type sendRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	var mode core.SearchMode
	if req.Mode != "" {
		m, err := core.ParseSearchMode(req.Mode)
		if err != nil {
			s.writeErr(w, r, err)
			return
		}
		mode = m
	}
	session, err := s.asker.StartSession(r.Context(), ownerOf(r), req.DatabaseID, chat.SessionConfig{
		Model:        req.Model,
		SystemPrompt: req.SystemPrompt,
		Temperature:  req.Temperature,
		MaxTokens:    req.MaxTokens,
		Mode:         mode,
		TopK:         req.TopK,
	})
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSessionView(session))
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.asker.ListSessions(r.Context(), ownerOf(r))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	views := make([]sessionView, len(sessions))
	for i, session := range sessions {
		views[i] = newSessionView(session)
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": views})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.asker.DeleteSession(r.Context(), r.PathValue("id"), ownerOf(r)); err != nil {
		s.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	messages, err := s.asker.History(r.Context(), r.PathValue("id"), ownerOf(r))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	views := make([]messageView, len(messages))
	for i, m := range messages {
		views[i] = messageView{Seq: m.Seq, Role: m.Role, Content: m.Content, Metadata: m.Metadata, CreatedAt: m.CreatedAt}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": views})
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	answer, err := s.asker.Send(r.Context(), r.PathValue("id"), ownerOf(r), req.Message)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}
