package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/poiesic/harvest/ai"
	"github.com/poiesic/harvest/chat"
	"github.com/poiesic/harvest/core"
	"github.com/poiesic/harvest/ingestion"
	"github.com/poiesic/harvest/loader"
)

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type createJobRequest struct {
	URL      string `json:"url"`
	Mode     string `json:"mode"`
	MaxDepth int    `json:"max_depth"`
	MaxPages int    `json:"max_pages"`
	// Start defaults to true.
	Start *bool `json:"start"`
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	if req.Mode == "" {
		req.Mode = string(core.CrawlModeSingle)
	}
	cfg, err := core.NewCrawlConfig(core.CrawlMode(req.Mode), req.MaxDepth, req.MaxPages)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	ctx, owner := r.Context(), ownerOf(r)
	id, err := s.ingestion.CreateJob(ctx, owner, req.URL, cfg)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	code := http.StatusCreated
	if req.Start == nil || *req.Start {
		if err := s.ingestion.StartJob(ctx, id); err != nil {
			s.writeErr(w, r, err)
			return
		}
		code = http.StatusAccepted
	}
	view, err := s.ingestion.GetStatus(ctx, id, owner)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, code, view)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.ingestion.ListJobs(r.Context(), ownerOf(r))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	view, err := s.ingestion.GetStatus(r.Context(), r.PathValue("id"), ownerOf(r))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleStartJob(w http.ResponseWriter, r *http.Request) {
	ctx, id, owner := r.Context(), r.PathValue("id"), ownerOf(r)
	// StartJob is not owner scoped.
	if _, err := s.ingestion.GetStatus(ctx, id, owner); err != nil {
		s.writeErr(w, r, err)
		return
	}
	if err := s.ingestion.StartJob(ctx, id); err != nil {
		s.writeErr(w, r, err)
		return
	}
	view, err := s.ingestion.GetStatus(ctx, id, owner)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, view)
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	s.deleted(w, r, ingestion.ErrJobNotFound)(s.ingestion.DeleteJob(r.Context(), r.PathValue("id"), ownerOf(r)))
}

// deleted writes the outcome of a Delete* call: 204 on removal, 404 when
// nothing was removed.
func (s *Server) deleted(w http.ResponseWriter, r *http.Request, notFound error) func(bool, error) {
	return func(ok bool, err error) {
		switch {
		case err != nil:
			s.writeErr(w, r, err)
		case !ok:
			s.writeErr(w, r, notFound)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, multipartLimit())
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeErr(w, r, loader.ErrFileTooLarge)
			return
		}
		s.writeErr(w, r, fmt.Errorf("%w: multipart field \"file\": %v", core.ErrInvalidRequest, err))
		return
	}
	defer file.Close()

	ctx, owner := r.Context(), ownerOf(r)
	id, err := s.ingestion.UploadDocument(ctx, owner, header.Filename, file)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	view, err := s.ingestion.GetDocumentStatus(ctx, id, owner)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, view)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.ingestion.ListDocumentJobs(r.Context(), ownerOf(r))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	view, err := s.ingestion.GetDocumentStatus(r.Context(), r.PathValue("id"), ownerOf(r))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	s.deleted(w, r, ingestion.ErrJobNotFound)(s.ingestion.DeleteDocument(r.Context(), r.PathValue("id"), ownerOf(r)))
}

type createDatabaseRequest struct {
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	ScrapeJobID    string   `json:"scrape_job_id"`
	DocumentJobIDs []string `json:"document_job_ids"`
}

func (s *Server) handleCreateDatabase(w http.ResponseWriter, r *http.Request) {
	var req createDatabaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	ctx, owner := r.Context(), ownerOf(r)
	id, err := s.ingestion.CreateVectorDatabase(ctx, ingestion.DatabaseRequest{
		Owner:       owner,
		Name:        req.Name,
		Description: req.Description,
		Sources: core.SourceSet{
			ScrapeJobID:    req.ScrapeJobID,
			DocumentJobIDs: req.DocumentJobIDs,
		},
	})
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	view, err := s.ingestion.GetDatabaseStatus(ctx, id, owner)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, view)
}

func (s *Server) handleListDatabases(w http.ResponseWriter, r *http.Request) {
	dbs, err := s.ingestion.ListDatabases(r.Context(), ownerOf(r))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"databases": dbs})
}

func (s *Server) handleGetDatabase(w http.ResponseWriter, r *http.Request) {
	view, err := s.ingestion.GetDatabaseStatus(r.Context(), r.PathValue("id"), ownerOf(r))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleDeleteDatabase(w http.ResponseWriter, r *http.Request) {
	s.deleted(w, r, ingestion.ErrDatabaseNotFound)(s.ingestion.DeleteDatabase(r.Context(), r.PathValue("id"), ownerOf(r)))
}

type searchRequest struct {
	Query string `json:"query"`
	Mode  string `json:"mode"`
	TopK  int    `json:"top_k"`
}

type searchResponse struct {
	Mode    core.SearchMode     `json:"mode"`
	Results []core.SearchResult `json:"results"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	mode, err := core.ParseSearchMode(req.Mode)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	results, err := s.searcher.Search(r.Context(), r.PathValue("id"), ownerOf(r), req.Query, mode, req.TopK)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if results == nil {
		results = []core.SearchResult{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Mode: mode, Results: results})
}

type chatRequest struct {
	Message string       `json:"message"`
	History []ai.Message `json:"history"`
	Mode    string       `json:"mode"`
	TopK    int          `json:"top_k"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
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
	answer, err := s.asker.Ask(r.Context(), chat.Request{
		DatabaseID: r.PathValue("id"),
		Owner:      ownerOf(r),
		Message:    req.Message,
		History:    req.History,
		Mode:       mode,
		TopK:       req.TopK,
	})
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (s *Server) handleReclaim(w http.ResponseWriter, r *http.Request) {
	report, err := s.ingestion.ReclaimOrphans(r.Context())
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
