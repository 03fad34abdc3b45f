package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/poiesic/harvest/core"
	"github.com/poiesic/harvest/storage"
)

// sessionStatus fills the status column; sessions have no lifecycle.
const sessionStatus = "active"

// ChatSessionRepository implements storage.ChatSessionRepository. Messages
// are rows of chat_messages and go away with their session by cascade.
type ChatSessionRepository struct {
	table table[core.ChatSession]
}

var _ storage.ChatSessionRepository = (*ChatSessionRepository)(nil)

func newChatSessionRepository(pool *pgxpool.Pool) *ChatSessionRepository {
	return &ChatSessionRepository{table: table[core.ChatSession]{
		pool: pool,
		codec: codec[core.ChatSession]{
			table:     "chat_sessions",
			marshal:   storage.MarshalChatSession,
			unmarshal: storage.UnmarshalChatSession,
			id:        func(s *core.ChatSession) string { return s.ID },
			owner:     func(s *core.ChatSession) string { return s.Owner },
			status:    func(*core.ChatSession) string { return sessionStatus },
			created:   func(s *core.ChatSession) time.Time { return s.CreatedAt },
			stamp: func(s *core.ChatSession, created, updated time.Time) {
				s.CreatedAt, s.UpdatedAt = created, updated
			},
			check: storage.CheckChatSessionUpdate,
		},
	}}
}

func (r *ChatSessionRepository) Create(ctx context.Context, session *core.ChatSession) error {
	return r.table.create(ctx, session)
}

func (r *ChatSessionRepository) Get(ctx context.Context, id string) (*core.ChatSession, error) {
	return r.table.get(ctx, id)
}

func (r *ChatSessionRepository) List(ctx context.Context, owner string) ([]*core.ChatSession, error) {
	return r.table.list(ctx, owner)
}

func (r *ChatSessionRepository) Delete(ctx context.Context, id string) error {
	return r.table.delete(ctx, id)
}

// AppendMessages locks the session row so concurrent appends number their
// messages one after the other.
func (r *ChatSessionRepository) AppendMessages(ctx context.Context, sessionID string, messages ...*core.ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}
	tx, err := r.table.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, "SELECT data FROM chat_sessions WHERE id = $1 FOR UPDATE", sessionID)
	session, err := r.table.readRow(row, sessionID)
	if err != nil {
		return err
	}

	var last int64
	if err := tx.QueryRow(ctx, "SELECT COALESCE(MAX(seq), 0) FROM chat_messages WHERE session_id = $1", sessionID).Scan(&last); err != nil {
		return err
	}
	seq := uint64(last)
	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, msg := range messages {
		seq++
		msg.SessionID = sessionID
		msg.Seq = seq
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = now
		}
		data, err := storage.MarshalChatMessage(msg)
		if err != nil {
			return err
		}
		batch.Queue("INSERT INTO chat_messages (session_id, seq, data) VALUES ($1, $2, $3)", sessionID, int64(seq), data)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}

	session.UpdatedAt = now
	data, err := storage.MarshalChatSession(session)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, "UPDATE chat_sessions SET data = $2 WHERE id = $1", sessionID, data); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *ChatSessionRepository) Messages(ctx context.Context, sessionID string, limit int) ([]*core.ChatMessage, error) {
	if _, err := r.table.get(ctx, sessionID); err != nil {
		return nil, err
	}

	query := `SELECT data FROM chat_messages WHERE session_id = $1 ORDER BY seq`
	args := []any{sessionID}
	if limit > 0 {
		query = `SELECT data FROM (
    SELECT seq, data FROM chat_messages WHERE session_id = $1 ORDER BY seq DESC LIMIT $2
) AS recent ORDER BY seq`
		args = append(args, limit)
	}
	rows, err := r.table.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*core.ChatMessage
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		msg, err := storage.UnmarshalChatMessage(data)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}
