package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/harvest/core"
	"github.com/poiesic/harvest/storage"
)

// ChatSessionRepository implements storage.ChatSessionRepository for BadgerDB.
// Messages live under their session's key prefix and are removed with it.
type ChatSessionRepository struct {
	table table[core.ChatSession]
}

var _ storage.ChatSessionRepository = (*ChatSessionRepository)(nil)

// NewChatSessionRepository creates a new ChatSessionRepository.
func NewChatSessionRepository(backend *Backend) (*ChatSessionRepository, error) {
	if backend == nil {
		return nil, storage.ErrBackendRequired
	}
	return &ChatSessionRepository{table: table[core.ChatSession]{
		backend: backend,
		codec: codec[core.ChatSession]{
			prefix:    chatSessionPrefix,
			marshal:   storage.MarshalChatSession,
			unmarshal: storage.UnmarshalChatSession,
			id:        func(s *core.ChatSession) string { return s.ID },
			owner:     func(s *core.ChatSession) string { return s.Owner },
			created:   func(s *core.ChatSession) time.Time { return s.CreatedAt },
			stamp: func(s *core.ChatSession, created, updated time.Time) {
				s.CreatedAt, s.UpdatedAt = created, updated
			},
			check:   storage.CheckChatSessionUpdate,
			cascade: deleteChatMessages,
		},
	}}, nil
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

// AppendMessages reads and bumps the session's sequence key in the same
// transaction, so concurrent appends conflict and rerun instead of
// overwriting each other.
func (r *ChatSessionRepository) AppendMessages(ctx context.Context, sessionID string, messages ...*core.ChatMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}
	return r.table.backend.Update(func(tx *badger.Txn) error {
		session, err := r.table.read(tx, sessionID)
		if err != nil {
			return err
		}

		seq, err := readSeq(tx, makeChatSeqKey(sessionID))
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		for _, msg := range messages {
			seq++
			msg.SessionID = sessionID
			msg.Seq = seq
			if msg.CreatedAt.IsZero() {
				msg.CreatedAt = now
			}
			value, err := storage.MarshalChatMessage(msg)
			if err != nil {
				return err
			}
			if err := tx.Set(makeChatMessageKey(sessionID, seq), value); err != nil {
				return err
			}
		}
		if err := tx.Set(makeChatSeqKey(sessionID), binary.BigEndian.AppendUint64(nil, seq)); err != nil {
			return err
		}

		session.UpdatedAt = now
		value, err := r.table.codec.marshal(session)
		if err != nil {
			return err
		}
		return tx.Set(makeRecordKey(chatSessionPrefix, sessionID), value)
	})
}

// Messages walks the session prefix backwards from the newest message.
func (r *ChatSessionRepository) Messages(ctx context.Context, sessionID string, limit int) ([]*core.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []*core.ChatMessage
	err := r.table.backend.View(func(tx *badger.Txn) error {
		if _, err := r.table.read(tx, sessionID); err != nil {
			return err
		}

		prefix := makeChatMessagePrefix(sessionID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.Reverse = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Reverse iteration seeks to the largest key not above the seek key.
		seek := append(slices.Clone(prefix), 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff)
		for iter.Seek(seek); iter.Valid(); iter.Next() {
			if limit > 0 && len(out) == limit {
				break
			}
			var msg *core.ChatMessage
			err := iter.Item().Value(func(val []byte) error {
				var err error
				msg, err = storage.UnmarshalChatMessage(val)
				return err
			})
			if err != nil {
				return err
			}
			out = append(out, msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}

func deleteChatMessages(tx *badger.Txn, session *core.ChatSession) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = makeChatMessagePrefix(session.ID)
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)

	var keys [][]byte
	for iter.Rewind(); iter.Valid(); iter.Next() {
		keys = append(keys, iter.Item().KeyCopy(nil))
	}
	iter.Close()

	for _, key := range keys {
		if err := tx.Delete(key); err != nil {
			return err
		}
	}
	return tx.Delete(makeChatSeqKey(session.ID))
}

func readSeq(tx *badger.Txn, key []byte) (uint64, error) {
	item, err := tx.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var seq uint64
	err = item.Value(func(val []byte) error {
		if len(val) == 8 {
			seq = binary.BigEndian.Uint64(val)
		}
		return nil
	})
	return seq, err
}
