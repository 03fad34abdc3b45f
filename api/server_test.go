package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/harvest/ai"
	"github.com/poiesic/harvest/chat"
	"github.com/poiesic/harvest/core"
	"github.com/poiesic/harvest/index"
	"github.com/poiesic/harvest/ingestion"
	"github.com/poiesic/harvest/loader"
	"github.com/poiesic/harvest/search"
	"github.com/poiesic/harvest/storage"
)

const owner = "alice"

type env struct {
	ing      *stubIngestion
	searcher *stubSearcher
	asker    *stubAsker
	handler  http.Handler
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{ing: newStubIngestion(), searcher: &stubSearcher{}, asker: &stubAsker{}}
	srv, err := NewServer(e.ing, e.searcher, e.asker)
	require.NoError(t, err)
	e.handler = srv.Handler()
	return e
}

func (e *env) do(t *testing.T, method, path, who string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if who != "" {
		req.Header.Set(OwnerHeader, who)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	return decode[errorBody](t, rec).Error.Code
}

func TestNewServer(t *testing.T) {
	ing, s, a := newStubIngestion(), &stubSearcher{}, &stubAsker{}

	_, err := NewServer(nil, s, a)
	assert.ErrorIs(t, err, ErrIngestionRequired)
	_, err = NewServer(ing, nil, a)
	assert.ErrorIs(t, err, ErrSearcherRequired)
	_, err = NewServer(ing, s, nil)
	assert.ErrorIs(t, err, ErrAskerRequired)
}

func TestHealthz(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

func TestOwnerHeaderRequired(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/api/jobs", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", errorCode(t, rec))
}

func TestCreateJob_StartsByDefault(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/api/jobs", owner, map[string]any{
		"url": "https://example.com/", "mode": "deep", "max_pages": 7,
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	view := decode[ingestion.JobStatusView](t, rec)
	assert.Equal(t, core.JobStatusRunning, view.Status)
	assert.Equal(t, []string{view.ID}, e.ing.started)
	assert.Equal(t, core.DeepConfig{MaxDepth: core.DefaultDeepMaxDepth, MaxPages: 7}, e.ing.crawl)
}

func TestCreateJob_WithoutStart(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/api/jobs", owner, map[string]any{"url": "https://example.com/", "start": false})
	require.Equal(t, http.StatusCreated, rec.Code)
	view := decode[ingestion.JobStatusView](t, rec)
	assert.Equal(t, core.JobStatusPending, view.Status)
	assert.Equal(t, core.CrawlModeSingle, view.Mode)
	assert.Empty(t, e.ing.started)

	rec = e.do(t, http.MethodPost, "/api/jobs/"+view.ID+"/start", owner, nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/jobs/"+view.ID+"/start", owner, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", errorCode(t, rec))
}

func TestCreateJob_BadRequests(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/jobs", owner, map[string]any{"url": "https://example.com/", "mode": "recursive"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", bytes.NewBufferString("{not json"))
	req.Header.Set(OwnerHeader, owner)
	rec = httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	e.ing.err = fmt.Errorf("%w: relative", core.ErrInvalidURL)
	rec = e.do(t, http.MethodPost, "/api/jobs", owner, map[string]any{"url": "/relative"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJobs_OwnerScoped(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/api/jobs", owner, map[string]any{"url": "https://example.com/"})
	id := decode[ingestion.JobStatusView](t, rec).ID

	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/jobs/"+id, owner, nil).Code)
	rec = e.do(t, http.MethodGet, "/api/jobs/"+id, "mallory", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorCode(t, rec))

	rec = e.do(t, http.MethodPost, "/api/jobs/"+id+"/start", "mallory", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	list := decode[struct {
		Jobs []ingestion.JobStatusView `json:"jobs"`
	}](t, e.do(t, http.MethodGet, "/api/jobs", owner, nil))
	assert.Len(t, list.Jobs, 1)
	list = decode[struct {
		Jobs []ingestion.JobStatusView `json:"jobs"`
	}](t, e.do(t, http.MethodGet, "/api/jobs", "mallory", nil))
	assert.Empty(t, list.Jobs)

	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodDelete, "/api/jobs/"+id, "mallory", nil).Code)
	assert.Equal(t, http.StatusNoContent, e.do(t, http.MethodDelete, "/api/jobs/"+id, owner, nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodDelete, "/api/jobs/"+id, owner, nil).Code)
}

func TestDeleteJob_Running(t *testing.T) {
	e := newEnv(t)
	id := decode[ingestion.JobStatusView](t, e.do(t, http.MethodPost, "/api/jobs", owner, map[string]any{"url": "https://example.com/"})).ID

	e.ing.err = ingestion.ErrJobRunning
	rec := e.do(t, http.MethodDelete, "/api/jobs/"+id, owner, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func upload(t *testing.T, e *env, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.WriteString(fw, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(OwnerHeader, owner)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func TestDocuments(t *testing.T) {
	e := newEnv(t)
	rec := upload(t, e, "notes.md", "# Notes\nhello")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	view := decode[ingestion.DocumentStatusView](t, rec)
	assert.Equal(t, "notes.md", view.Filename)
	assert.Equal(t, "# Notes\nhello", e.ing.upload)

	rec = e.do(t, http.MethodGet, "/api/documents/"+view.ID, owner, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	list := decode[struct {
		Documents []ingestion.DocumentStatusView `json:"documents"`
	}](t, e.do(t, http.MethodGet, "/api/documents", owner, nil))
	assert.Len(t, list.Documents, 1)

	assert.Equal(t, http.StatusNoContent, e.do(t, http.MethodDelete, "/api/documents/"+view.ID, owner, nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/api/documents/"+view.ID, owner, nil).Code)
}

func TestUpload_Errors(t *testing.T) {
	e := newEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/documents", bytes.NewBufferString("plain body"))
	req.Header.Set(OwnerHeader, owner)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	e.ing.err = fmt.Errorf("%w: .exe", loader.ErrUnsupportedType)
	assert.Equal(t, http.StatusBadRequest, upload(t, e, "tool.exe", "MZ").Code)

	e.ing.err = fmt.Errorf("%w: 51MB", loader.ErrFileTooLarge)
	assert.Equal(t, http.StatusRequestEntityTooLarge, upload(t, e, "big.pdf", "x").Code)
}

func TestDatabases(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/api/databases", owner, map[string]any{
		"name":             "kb",
		"scrape_job_id":    "job-1",
		"document_job_ids": []string{"doc-1"},
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	view := decode[ingestion.DatabaseStatusView](t, rec)
	assert.Equal(t, core.DatabaseStatusBuilding, view.Status)
	assert.Equal(t, ingestion.DatabaseRequest{
		Owner:   owner,
		Name:    "kb",
		Sources: core.SourceSet{ScrapeJobID: "job-1", DocumentJobIDs: []string{"doc-1"}},
	}, e.ing.dbReq)

	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/databases/"+view.ID, owner, nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/api/databases/"+view.ID, "mallory", nil).Code)

	list := decode[struct {
		Databases []ingestion.DatabaseStatusView `json:"databases"`
	}](t, e.do(t, http.MethodGet, "/api/databases", owner, nil))
	assert.Len(t, list.Databases, 1)

	assert.Equal(t, http.StatusNoContent, e.do(t, http.MethodDelete, "/api/databases/"+view.ID, owner, nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodDelete, "/api/databases/"+view.ID, owner, nil).Code)
}

func TestCreateDatabase_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"no sources", core.ErrNoSources, http.StatusBadRequest},
		{"source not completed", ingestion.ErrSourceNotCompleted, http.StatusBadRequest},
		{"quota", fmt.Errorf("ensure index: %w", index.ErrQuotaExceeded), http.StatusInsufficientStorage},
		{"shutting down", ingestion.ErrExecutorClosed, http.StatusServiceUnavailable},
		{"backend", errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			e.ing.err = tt.err
			rec := e.do(t, http.MethodPost, "/api/databases", owner, map[string]any{"name": "kb"})
			assert.Equal(t, tt.code, rec.Code)
			if tt.code == http.StatusInternalServerError {
				assert.Equal(t, "internal error", decode[errorBody](t, rec).Error.Message)
			}
		})
	}
}

func TestSearch(t *testing.T) {
	e := newEnv(t)
	e.searcher.results = []core.SearchResult{{ID: "db_0_0", Content: "sourdough", Score: 0.9}}

	rec := e.do(t, http.MethodPost, "/api/databases/db/search", owner, map[string]any{"query": "bread", "mode": "hybrid", "top_k": 3})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[searchResponse](t, rec)
	assert.Equal(t, core.SearchModeHybrid, resp.Mode)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "db_0_0", resp.Results[0].ID)
	assert.Equal(t, []searchCall{{"db", owner, "bread", core.SearchModeHybrid, 3}}, e.searcher.calls)

	rec = e.do(t, http.MethodPost, "/api/databases/db/search", owner, map[string]any{"query": "bread"})
	assert.Equal(t, core.SearchModeSemantic, decode[searchResponse](t, rec).Mode)
}

func TestSearch_Errors(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/databases/db/search", owner, map[string]any{"query": "q", "mode": "fuzzy"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	e.searcher.err = search.ErrEmptyQuery
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/api/databases/db/search", owner, map[string]any{}).Code)

	e.searcher.err = fmt.Errorf("%w: db: %w", search.ErrDatabaseNotReady, storage.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodPost, "/api/databases/db/search", owner, map[string]any{"query": "q"}).Code)

	e.searcher.err = fmt.Errorf("%w: status building", search.ErrDatabaseNotReady)
	assert.Equal(t, http.StatusConflict, e.do(t, http.MethodPost, "/api/databases/db/search", owner, map[string]any{"query": "q"}).Code)
}

func TestChat(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/api/databases/db/chat", owner, map[string]any{
		"message": "what is sourdough?",
		"history": []map[string]string{{"role": "user", "content": "hi"}, {"role": "assistant", "content": "hello"}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var answer struct {
		Text    string `json:"text"`
		Sources []struct {
			Title string `json:"title"`
		} `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &answer))
	assert.Equal(t, "answer to what is sourdough?", answer.Text)
	assert.Len(t, answer.Sources, 1)

	req := e.asker.req
	assert.Equal(t, "db", req.DatabaseID)
	assert.Equal(t, owner, req.Owner)
	assert.Equal(t, core.SearchMode(""), req.Mode, "chat picks its own default mode")
	assert.Equal(t, []ai.Message{{Role: ai.RoleUser, Content: "hi"}, {Role: ai.RoleAssistant, Content: "hello"}}, req.History)

	rec = e.do(t, http.MethodPost, "/api/databases/db/chat", owner, map[string]any{"message": "q", "mode": "keyword"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, core.SearchModeKeyword, e.asker.req.Mode)

	rec = e.do(t, http.MethodPost, "/api/databases/db/chat", owner, map[string]any{"message": "q", "mode": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatSessions(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/api/chat/sessions", owner, map[string]any{
		"database_id": "db", "model": "gpt-4o-mini", "temperature": 0.2, "mode": "semantic",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	session := decode[sessionView](t, rec)
	assert.Equal(t, "db", session.DatabaseID)
	assert.Equal(t, core.SearchModeSemantic, session.Mode)
	require.NotNil(t, e.asker.started.Temperature)
	assert.Equal(t, 0.2, *e.asker.started.Temperature)

	path := "/api/chat/sessions/" + session.ID + "/messages"
	rec = e.do(t, http.MethodPost, path, owner, map[string]any{"message": "how old is the lighthouse?"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "answer to how old is the lighthouse?", decode[struct {
		Text string `json:"text"`
	}](t, rec).Text)

	rec = e.do(t, http.MethodGet, path, owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[struct {
		Messages []messageView `json:"messages"`
	}](t, rec).Messages
	require.Len(t, history, 2)
	assert.Equal(t, core.ChatRoleUser, history[0].Role)
	assert.Equal(t, "mock", history[1].Metadata.Model)

	rec = e.do(t, http.MethodGet, "/api/chat/sessions", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[struct {
		Sessions []sessionView `json:"sessions"`
	}](t, rec).Sessions, 1)

	rec = e.do(t, http.MethodGet, path, "bob", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = e.do(t, http.MethodDelete, "/api/chat/sessions/"+session.ID, "bob", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodDelete, "/api/chat/sessions/"+session.ID, owner, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = e.do(t, http.MethodPost, path, owner, map[string]any{"message": "again"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatSessions_Errors(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/api/chat/sessions", owner, map[string]any{"database_id": "db", "mode": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	e.asker.err = fmt.Errorf("%w: db is building", search.ErrDatabaseNotReady)
	rec = e.do(t, http.MethodPost, "/api/chat/sessions", owner, map[string]any{"database_id": "db"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	e.asker.err = chat.ErrSessionsDisabled
	rec = e.do(t, http.MethodPost, "/api/chat/sessions", owner, map[string]any{"database_id": "db"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unavailable", errorCode(t, rec))
}

func TestReclaim(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/api/maintenance/reclaim", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, index.ReclaimReport{Scanned: 3, Orphaned: 1, Deleted: 1}, decode[index.ReclaimReport](t, rec))
}

func TestMethodNotAllowed(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPut, "/api/jobs", owner, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
