package api

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/poiesic/harvest/chat"
	"github.com/poiesic/harvest/core"
	"github.com/poiesic/harvest/index"
	"github.com/poiesic/harvest/ingestion"
)

// stubIngestion keeps owner-scoped views in memory. err, when set, is
// returned by every mutating call.
type stubIngestion struct {
	mu      sync.Mutex
	next    int
	owners  map[string]string
	jobs    map[string]*ingestion.JobStatusView
	docs    map[string]*ingestion.DocumentStatusView
	dbs     map[string]*ingestion.DatabaseStatusView
	started []string
	crawl   core.CrawlConfig
	upload  string
	dbReq   ingestion.DatabaseRequest
	err     error
}

func newStubIngestion() *stubIngestion {
	return &stubIngestion{
		owners: make(map[string]string),
		jobs:   make(map[string]*ingestion.JobStatusView),
		docs:   make(map[string]*ingestion.DocumentStatusView),
		dbs:    make(map[string]*ingestion.DatabaseStatusView),
	}
}

func (s *stubIngestion) id(owner string) string {
	s.next++
	id := fmt.Sprintf("id-%d", s.next)
	s.owners[id] = owner
	return id
}

func (s *stubIngestion) owns(id, owner string) bool {
	return s.owners[id] == owner
}

func (s *stubIngestion) CreateJob(_ context.Context, owner, url string, cfg core.CrawlConfig) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.crawl = cfg
	id := s.id(owner)
	s.jobs[id] = &ingestion.JobStatusView{ID: id, URL: url, Mode: cfg.Mode(), Status: core.JobStatusPending}
	return id, nil
}

func (s *stubIngestion) StartJob(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	job, ok := s.jobs[jobID]
	if !ok {
		return ingestion.ErrJobNotFound
	}
	if job.Status != core.JobStatusPending {
		return ingestion.ErrJobAlreadyStarted
	}
	job.Status = core.JobStatusRunning
	s.started = append(s.started, jobID)
	return nil
}

func (s *stubIngestion) GetStatus(_ context.Context, jobID, owner string) (*ingestion.JobStatusView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok || !s.owns(jobID, owner) {
		return nil, ingestion.ErrJobNotFound
	}
	return job, nil
}

func (s *stubIngestion) ListJobs(_ context.Context, owner string) ([]*ingestion.JobStatusView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*ingestion.JobStatusView
	for id, job := range s.jobs {
		if s.owns(id, owner) {
			out = append(out, job)
		}
	}
	return out, nil
}

func (s *stubIngestion) DeleteJob(_ context.Context, jobID, owner string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	if _, ok := s.jobs[jobID]; !ok || !s.owns(jobID, owner) {
		return false, nil
	}
	delete(s.jobs, jobID)
	return true, nil
}

func (s *stubIngestion) UploadDocument(_ context.Context, owner, filename string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.upload = string(data)
	id := s.id(owner)
	s.docs[id] = &ingestion.DocumentStatusView{ID: id, Filename: filename, Size: int64(len(data)), Status: core.JobStatusPending}
	return id, nil
}

func (s *stubIngestion) GetDocumentStatus(_ context.Context, jobID, owner string) (*ingestion.DocumentStatusView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[jobID]
	if !ok || !s.owns(jobID, owner) {
		return nil, ingestion.ErrJobNotFound
	}
	return doc, nil
}

func (s *stubIngestion) ListDocumentJobs(_ context.Context, owner string) ([]*ingestion.DocumentStatusView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*ingestion.DocumentStatusView
	for id, doc := range s.docs {
		if s.owns(id, owner) {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (s *stubIngestion) DeleteDocument(_ context.Context, jobID, owner string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[jobID]; !ok || !s.owns(jobID, owner) {
		return false, nil
	}
	delete(s.docs, jobID)
	return true, nil
}

func (s *stubIngestion) CreateVectorDatabase(_ context.Context, req ingestion.DatabaseRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.dbReq = req
	id := s.id(req.Owner)
	s.dbs[id] = &ingestion.DatabaseStatusView{ID: id, Name: req.Name, Status: core.DatabaseStatusBuilding, Sources: req.Sources}
	return id, nil
}

func (s *stubIngestion) GetDatabaseStatus(_ context.Context, dbID, owner string) (*ingestion.DatabaseStatusView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	db, ok := s.dbs[dbID]
	if !ok || !s.owns(dbID, owner) {
		return nil, ingestion.ErrDatabaseNotFound
	}
	return db, nil
}

func (s *stubIngestion) ListDatabases(_ context.Context, owner string) ([]*ingestion.DatabaseStatusView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*ingestion.DatabaseStatusView
	for id, db := range s.dbs {
		if s.owns(id, owner) {
			out = append(out, db)
		}
	}
	return out, nil
}

func (s *stubIngestion) DeleteDatabase(_ context.Context, dbID, owner string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	if _, ok := s.dbs[dbID]; !ok || !s.owns(dbID, owner) {
		return false, nil
	}
	delete(s.dbs, dbID)
	return true, nil
}

func (s *stubIngestion) ReclaimOrphans(context.Context) (index.ReclaimReport, error) {
	return index.ReclaimReport{Scanned: 3, Orphaned: 1, Deleted: 1}, nil
}

type searchCall struct {
	DBID, Owner, Query string
	Mode               core.SearchMode
	TopK               int
}

type stubSearcher struct {
	mu      sync.Mutex
	calls   []searchCall
	results []core.SearchResult
	err     error
}

func (s *stubSearcher) Search(_ context.Context, dbID, owner, query string, mode core.SearchMode, topK int) ([]core.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, searchCall{dbID, owner, query, mode, topK})
	return s.results, s.err
}

type stubAsker struct {
	mu  sync.Mutex
	req chat.Request
	err error

	sessions map[string]*core.ChatSession
	messages map[string][]*core.ChatMessage
	started  chat.SessionConfig
}

func (s *stubAsker) Ask(_ context.Context, req chat.Request) (*chat.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.req = req
	if s.err != nil {
		return nil, s.err
	}
	return &chat.Answer{Text: "answer to " + req.Message, Sources: []chat.Source{{Title: "t", URL: "u", Score: 0.5}}}, nil
}

func (s *stubAsker) StartSession(_ context.Context, owner, databaseID string, cfg chat.SessionConfig) (*core.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if s.sessions == nil {
		s.sessions = make(map[string]*core.ChatSession)
		s.messages = make(map[string][]*core.ChatMessage)
	}
	s.started = cfg
	mode := cfg.Mode
	if mode == "" {
		mode = core.SearchModeHybrid
	}
	session := &core.ChatSession{
		ID:         fmt.Sprintf("s%d", len(s.sessions)+1),
		Owner:      owner,
		DatabaseID: databaseID,
		Model:      cfg.Model,
		Mode:       mode,
		TopK:       chat.DefaultTopK,
	}
	s.sessions[session.ID] = session
	return session, nil
}

func (s *stubAsker) owned(id, owner string) (*core.ChatSession, error) {
	session, ok := s.sessions[id]
	if !ok || session.Owner != owner {
		return nil, fmt.Errorf("%w: %s", chat.ErrSessionNotFound, id)
	}
	return session, nil
}

func (s *stubAsker) Send(_ context.Context, sessionID, owner, message string) (*chat.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.owned(sessionID, owner); err != nil {
		return nil, err
	}
	reply := "answer to " + message
	n := uint64(len(s.messages[sessionID]))
	s.messages[sessionID] = append(s.messages[sessionID],
		&core.ChatMessage{SessionID: sessionID, Seq: n + 1, Role: core.ChatRoleUser, Content: message},
		&core.ChatMessage{SessionID: sessionID, Seq: n + 2, Role: core.ChatRoleAssistant, Content: reply,
			Metadata: core.ChatMessageMetadata{Model: "mock", SourcesUsed: 1}},
	)
	return &chat.Answer{Text: reply, Model: "mock", Sources: []chat.Source{{Title: "t", URL: "u", Score: 0.5}}}, nil
}

func (s *stubAsker) History(_ context.Context, sessionID, owner string) ([]*core.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.owned(sessionID, owner); err != nil {
		return nil, err
	}
	return s.messages[sessionID], nil
}

func (s *stubAsker) ListSessions(_ context.Context, owner string) ([]*core.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*core.ChatSession
	for _, session := range s.sessions {
		if session.Owner == owner {
			out = append(out, session)
		}
	}
	return out, nil
}

func (s *stubAsker) DeleteSession(_ context.Context, sessionID, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.owned(sessionID, owner); err != nil {
		return err
	}
	delete(s.sessions, sessionID)
	delete(s.messages, sessionID)
	return nil
}
