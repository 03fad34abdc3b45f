package ingestion

import (
	"time"

	"github.com/poiesic/harvest/core"
)

// JobStatusView is the polled view of a scrape job.
type JobStatusView struct {
	ID          string         `json:"id"`
	URL         string         `json:"url"`
	Mode        core.CrawlMode `json:"mode"`
	Status      core.JobStatus `json:"status"`
	Progress    int            `json:"progress"`
	Message     string         `json:"message,omitempty"`
	Error       string         `json:"error,omitempty"`
	Pages       int            `json:"pages"`
	Summary     map[string]any `json:"summary,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// DocumentStatusView is the polled view of a document job.
type DocumentStatusView struct {
	ID          string         `json:"id"`
	Filename    string         `json:"filename"`
	Size        int64          `json:"size"`
	ContentType string         `json:"content_type"`
	Status      core.JobStatus `json:"status"`
	ChunkCount  int            `json:"chunk_count"`
	Message     string         `json:"message,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// DatabaseStatusView is the polled view of a vector database.
type DatabaseStatusView struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Description   string              `json:"description,omitempty"`
	Status        core.DatabaseStatus `json:"status"`
	Message       string              `json:"message,omitempty"`
	IndexName     string              `json:"index_name"`
	DocumentCount int                 `json:"document_count"`
	ChunkCount    int                 `json:"chunk_count"`
	Sources       core.SourceSet      `json:"sources"`
	Hybrid        bool                `json:"hybrid"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func summaryFields(s core.CrawlSummary) map[string]any {
	switch s := s.(type) {
	case core.SingleSummary:
		return map[string]any{"url": s.URL, "title": s.Title}
	case core.DeepSummary:
		return map[string]any{"root_url": s.RootURL, "pages_scraped": s.PagesScraped, "max_depth_reached": s.MaxDepthReached}
	case core.SitemapSummary:
		return map[string]any{"sitemap_url": s.SitemapURL, "total_urls_found": s.TotalURLsFound, "pages_scraped": s.PagesScraped}
	default:
		return nil
	}
}

func newJobStatusView(j *core.ScrapeJob) *JobStatusView {
	v := &JobStatusView{
		ID:          j.ID,
		URL:         j.URL,
		Mode:        j.Mode(),
		Status:      j.Status,
		Progress:    j.Progress,
		Message:     j.Message,
		Error:       j.Error,
		Summary:     summaryFields(j.Summary),
		CreatedAt:   j.CreatedAt,
		StartedAt:   optionalTime(j.StartedAt),
		UpdatedAt:   j.UpdatedAt,
		CompletedAt: optionalTime(j.CompletedAt),
	}
	if j.Summary != nil {
		v.Pages = j.Summary.Pages()
	}
	return v
}

func newDocumentStatusView(j *core.DocumentJob) *DocumentStatusView {
	return &DocumentStatusView{
		ID:          j.ID,
		Filename:    j.File.Name,
		Size:        j.File.Size,
		ContentType: j.File.ContentType,
		Status:      j.Status,
		ChunkCount:  j.ChunkCount,
		Message:     j.Message,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt,
		CompletedAt: optionalTime(j.CompletedAt),
	}
}

func newDatabaseStatusView(db *core.VectorDatabase) *DatabaseStatusView {
	return &DatabaseStatusView{
		ID:            db.ID,
		Name:          db.Name,
		Description:   db.Description,
		Status:        db.Status,
		Message:       db.Message,
		IndexName:     db.IndexName,
		DocumentCount: db.DocumentCount,
		ChunkCount:    db.ChunkCount,
		Sources:       db.Sources,
		Hybrid:        db.Sources.Hybrid(),
		CreatedAt:     db.CreatedAt,
		UpdatedAt:     db.UpdatedAt,
	}
}
