// Package postgres implements the storage repositories on PostgreSQL using a
// pgx connection pool. Each record is kept as a JSONB document next to the
// columns that are filtered or ordered on.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/poiesic/harvest/storage"
)

// schemaSQL is idempotent and runs on every Open.
const schemaSQL = `CREATE TABLE IF NOT EXISTS scrape_jobs (
    id TEXT PRIMARY KEY,
    owner TEXT NOT NULL,
    status TEXT NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL,
    data JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS scrape_jobs_owner_created ON scrape_jobs (owner, created_at);

CREATE TABLE IF NOT EXISTS document_jobs (
    id TEXT PRIMARY KEY,
    owner TEXT NOT NULL,
    status TEXT NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL,
    data JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS document_jobs_owner_created ON document_jobs (owner, created_at);

CREATE TABLE IF NOT EXISTS vector_databases (
    id TEXT PRIMARY KEY,
    owner TEXT NOT NULL,
    status TEXT NOT NULL,
    index_name TEXT NOT NULL UNIQUE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL,
    data JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS chat_sessions (
    id TEXT PRIMARY KEY,
    owner TEXT NOT NULL,
    status TEXT NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL,
    data JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS chat_sessions_owner_created ON chat_sessions (owner, created_at);

CREATE TABLE IF NOT EXISTS chat_messages (
    session_id TEXT NOT NULL REFERENCES chat_sessions (id) ON DELETE CASCADE,
    seq BIGINT NOT NULL,
    data JSONB NOT NULL,
    PRIMARY KEY (session_id, seq)
);`

// Store implements storage.Store on a pgx pool.
type Store struct {
	pool      *pgxpool.Pool
	scrape    *ScrapeJobRepository
	documents *DocumentJobRepository
	databases *DatabaseRepository
	chats     *ChatSessionRepository
}

var _ storage.Store = (*Store)(nil)

// Open connects to dsn and applies the schema.
func Open(ctx context.Context, dsn string) (storage.Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run schema: %w", err)
	}
	slog.Default().With("component", "postgres").Info("storage ready", "host", cfg.ConnConfig.Host, "database", cfg.ConnConfig.Database)

	return &Store{
		pool:      pool,
		scrape:    newScrapeJobRepository(pool),
		documents: newDocumentJobRepository(pool),
		databases: newDatabaseRepository(pool),
		chats:     newChatSessionRepository(pool),
	}, nil
}

func (s *Store) ScrapeJobs() storage.ScrapeJobRepository     { return s.scrape }
func (s *Store) DocumentJobs() storage.DocumentJobRepository { return s.documents }
func (s *Store) Databases() storage.DatabaseRepository       { return s.databases }
func (s *Store) ChatSessions() storage.ChatSessionRepository { return s.chats }

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
