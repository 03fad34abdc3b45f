package badger

import (
	"log/slog"

	"github.com/poiesic/harvest/storage"
)

// Store implements storage.Store on a single BadgerDB backend.
type Store struct {
	backend   *Backend
	scrape    *ScrapeJobRepository
	documents *DocumentJobRepository
	databases *DatabaseRepository
	chats     *ChatSessionRepository
}

var _ storage.Store = (*Store)(nil)

// NewStore opens a persistent store in dir.
func NewStore(dir string, logger *slog.Logger) (storage.Store, error) {
	backend, err := OpenBackend(dir, logger)
	if err != nil {
		return nil, err
	}
	return newStore(backend)
}

func newStore(backend *Backend) (*Store, error) {
	scrape, err := NewScrapeJobRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	documents, err := NewDocumentJobRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	databases, err := NewDatabaseRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	chats, err := NewChatSessionRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return &Store{
		backend:   backend,
		scrape:    scrape,
		documents: documents,
		databases: databases,
		chats:     chats,
	}, nil
}

func (s *Store) ScrapeJobs() storage.ScrapeJobRepository     { return s.scrape }
func (s *Store) DocumentJobs() storage.DocumentJobRepository { return s.documents }
func (s *Store) Databases() storage.DatabaseRepository       { return s.databases }
func (s *Store) ChatSessions() storage.ChatSessionRepository { return s.chats }

// Close closes the underlying backend. Closing twice is a no-op.
func (s *Store) Close() error {
	if s.backend.IsClosed() {
		return nil
	}
	return s.backend.Close()
}
