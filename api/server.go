package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/poiesic/harvest/chat"
	"github.com/poiesic/harvest/core"
	"github.com/poiesic/harvest/index"
	"github.com/poiesic/harvest/ingestion"
	"github.com/poiesic/harvest/loader"
)

// OwnerHeader names the caller of an /api request.
const OwnerHeader = "X-Harvest-Owner"

const (
	maxJSONBody       = 1 << 20
	multipartOverhead = 1 << 20
	shutdownTimeout   = 15 * time.Second
)

// Ingestion is the job and database surface. *ingestion.Orchestrator satisfies it.
type Ingestion interface {
	CreateJob(ctx context.Context, owner, url string, cfg core.CrawlConfig) (string, error)
	StartJob(ctx context.Context, jobID string) error
	GetStatus(ctx context.Context, jobID, owner string) (*ingestion.JobStatusView, error)
	ListJobs(ctx context.Context, owner string) ([]*ingestion.JobStatusView, error)
	DeleteJob(ctx context.Context, jobID, owner string) (bool, error)

	UploadDocument(ctx context.Context, owner, filename string, r io.Reader) (string, error)
	GetDocumentStatus(ctx context.Context, jobID, owner string) (*ingestion.DocumentStatusView, error)
	ListDocumentJobs(ctx context.Context, owner string) ([]*ingestion.DocumentStatusView, error)
	DeleteDocument(ctx context.Context, jobID, owner string) (bool, error)

	CreateVectorDatabase(ctx context.Context, req ingestion.DatabaseRequest) (string, error)
	GetDatabaseStatus(ctx context.Context, dbID, owner string) (*ingestion.DatabaseStatusView, error)
	ListDatabases(ctx context.Context, owner string) ([]*ingestion.DatabaseStatusView, error)
	DeleteDatabase(ctx context.Context, dbID, owner string) (bool, error)

	ReclaimOrphans(ctx context.Context) (index.ReclaimReport, error)
}

// Searcher runs retrieval queries. *search.Searcher satisfies it.
type Searcher interface {
	Search(ctx context.Context, dbID, owner, query string, mode core.SearchMode, topK int) ([]core.SearchResult, error)
}

// Asker answers chat turns and keeps chat sessions. *chat.Service satisfies it.
type Asker interface {
	Ask(ctx context.Context, req chat.Request) (*chat.Answer, error)

	StartSession(ctx context.Context, owner, databaseID string, cfg chat.SessionConfig) (*core.ChatSession, error)
	Send(ctx context.Context, sessionID, owner, message string) (*chat.Answer, error)
	History(ctx context.Context, sessionID, owner string) ([]*core.ChatMessage, error)
	ListSessions(ctx context.Context, owner string) ([]*core.ChatSession, error)
	DeleteSession(ctx context.Context, sessionID, owner string) error
}

// Server routes HTTP requests to the ingestion, search and chat services.
type Server struct {
	ingestion Ingestion
	searcher  Searcher
	asker     Asker
	logger    *slog.Logger
	mux       *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

var (
	ErrIngestionRequired = errors.New("ingestion service required")
	ErrSearcherRequired  = errors.New("searcher required")
	ErrAskerRequired     = errors.New("chat service required")
)

// NewServer creates a Server with every route registered.
func NewServer(ing Ingestion, searcher Searcher, asker Asker, opts ...Option) (*Server, error) {
	if ing == nil {
		return nil, ErrIngestionRequired
	}
	if searcher == nil {
		return nil, ErrSearcherRequired
	}
	if asker == nil {
		return nil, ErrAskerRequired
	}
	s := &Server{
		ingestion: ing,
		searcher:  searcher,
		asker:     asker,
		logger:    slog.Default(),
		mux:       http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "api")
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)

	s.mux.HandleFunc("POST /api/jobs", s.owned(s.handleCreateJob))
	s.mux.HandleFunc("GET /api/jobs", s.owned(s.handleListJobs))
	s.mux.HandleFunc("GET /api/jobs/{id}", s.owned(s.handleGetJob))
	s.mux.HandleFunc("DELETE /api/jobs/{id}", s.owned(s.handleDeleteJob))
	s.mux.HandleFunc("POST /api/jobs/{id}/start", s.owned(s.handleStartJob))

	s.mux.HandleFunc("POST /api/documents", s.owned(s.handleUpload))
	s.mux.HandleFunc("GET /api/documents", s.owned(s.handleListDocuments))
	s.mux.HandleFunc("GET /api/documents/{id}", s.owned(s.handleGetDocument))
	s.mux.HandleFunc("DELETE /api/documents/{id}", s.owned(s.handleDeleteDocument))

	s.mux.HandleFunc("POST /api/databases", s.owned(s.handleCreateDatabase))
	s.mux.HandleFunc("GET /api/databases", s.owned(s.handleListDatabases))
	s.mux.HandleFunc("GET /api/databases/{id}", s.owned(s.handleGetDatabase))
	s.mux.HandleFunc("DELETE /api/databases/{id}", s.owned(s.handleDeleteDatabase))
	s.mux.HandleFunc("POST /api/databases/{id}/search", s.owned(s.handleSearch))
	s.mux.HandleFunc("POST /api/databases/{id}/chat", s.owned(s.handleChat))

	s.mux.HandleFunc("POST /api/chat/sessions", s.owned(s.handleStartSession))
	s.mux.HandleFunc("GET /api/chat/sessions", s.owned(s.handleListSessions))
	s.mux.HandleFunc("DELETE /api/chat/sessions/{id}", s.owned(s.handleDeleteSession))
	s.mux.HandleFunc("GET /api/chat/sessions/{id}/messages", s.owned(s.handleHistory))
	s.mux.HandleFunc("POST /api/chat/sessions/{id}/messages", s.owned(s.handleSend))

	s.mux.HandleFunc("POST /api/maintenance/reclaim", s.owned(s.handleReclaim))
}

// Handler returns the routed handler wrapped in request logging.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type ownerKey struct{}

// owned rejects requests without an owner header and passes the owner on
// through the request context.
func (s *Server) owned(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := strings.TrimSpace(r.Header.Get(OwnerHeader))
		if owner == "" {
			s.writeErr(w, r, ErrOwnerRequired)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ownerKey{}, owner)))
	}
}

func ownerOf(r *http.Request) string {
	owner, _ := r.Context().Value(ownerKey{}).(string)
	return owner
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	code, kind := classify(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = "internal error"
	}
	writeJSON(w, code, errorBody{Error: errorDetail{Code: kind, Message: msg}})
}

// decodeJSON reads a bounded JSON body into v. An empty body leaves v unchanged.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: invalid json: %v", core.ErrInvalidRequest, err)
	}
	return nil
}

func multipartLimit() int64 {
	return loader.MaxFileSize + multipartOverhead
}
