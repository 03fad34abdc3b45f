package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/poiesic/harvest/core"
)

// crawlConfigRecord is the stored form of a core.CrawlConfig variant.
type crawlConfigRecord struct {
	Mode     core.CrawlMode `json:"mode"`
	MaxDepth int            `json:"max_depth,omitempty"`
	MaxPages int            `json:"max_pages,omitempty"`
}

// crawlSummaryRecord is the stored form of a core.CrawlSummary variant.
type crawlSummaryRecord struct {
	Mode            core.CrawlMode `json:"mode"`
	URL             string         `json:"url,omitempty"`
	Title           string         `json:"title,omitempty"`
	RootURL         string         `json:"root_url,omitempty"`
	SitemapURL      string         `json:"sitemap_url,omitempty"`
	PagesScraped    int            `json:"pages_scraped,omitempty"`
	MaxDepthReached int            `json:"max_depth_reached,omitempty"`
	TotalURLsFound  int            `json:"total_urls_found,omitempty"`
}

type scrapeJobRecord struct {
	ID          string              `json:"id"`
	Owner       string              `json:"owner"`
	URL         string              `json:"url"`
	Config      crawlConfigRecord   `json:"config"`
	Status      core.JobStatus      `json:"status"`
	Progress    int                 `json:"progress"`
	Message     string              `json:"message,omitempty"`
	Summary     *crawlSummaryRecord `json:"summary,omitempty"`
	Error       string              `json:"error,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	StartedAt   time.Time           `json:"started_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	CompletedAt time.Time           `json:"completed_at"`
}

type documentJobRecord struct {
	ID          string         `json:"id"`
	Owner       string         `json:"owner"`
	File        fileRecord     `json:"file"`
	ChunkCount  int            `json:"chunk_count"`
	Status      core.JobStatus `json:"status"`
	Message     string         `json:"message,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	CompletedAt time.Time      `json:"completed_at"`
}

type fileRecord struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
	StoragePath string `json:"storage_path"`
	Digest      string `json:"digest"`
}

type databaseRecord struct {
	ID            string              `json:"id"`
	Owner         string              `json:"owner"`
	Name          string              `json:"name"`
	Description   string              `json:"description,omitempty"`
	Sources       core.SourceSet      `json:"sources"`
	IndexName     string              `json:"index_name"`
	DocumentCount int                 `json:"document_count"`
	ChunkCount    int                 `json:"chunk_count"`
	Status        core.DatabaseStatus `json:"status"`
	Message       string              `json:"message,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

func toConfigRecord(cfg core.CrawlConfig) (crawlConfigRecord, error) {
	switch c := cfg.(type) {
	case core.SingleConfig:
		return crawlConfigRecord{Mode: core.CrawlModeSingle}, nil
	case core.DeepConfig:
		return crawlConfigRecord{Mode: core.CrawlModeDeep, MaxDepth: c.MaxDepth, MaxPages: c.MaxPages}, nil
	case core.SitemapConfig:
		return crawlConfigRecord{Mode: core.CrawlModeSitemap, MaxPages: c.MaxPages}, nil
	default:
		return crawlConfigRecord{}, fmt.Errorf("%w: unknown crawl config %T", ErrSerializationFailed, cfg)
	}
}

func fromConfigRecord(r crawlConfigRecord) (core.CrawlConfig, error) {
	switch r.Mode {
	case core.CrawlModeSingle:
		return core.SingleConfig{}, nil
	case core.CrawlModeDeep:
		return core.DeepConfig{MaxDepth: r.MaxDepth, MaxPages: r.MaxPages}, nil
	case core.CrawlModeSitemap:
		return core.SitemapConfig{MaxPages: r.MaxPages}, nil
	default:
		return nil, fmt.Errorf("%w: unknown crawl mode %q", ErrSerializationFailed, r.Mode)
	}
}

func toSummaryRecord(s core.CrawlSummary) *crawlSummaryRecord {
	switch s := s.(type) {
	case core.SingleSummary:
		return &crawlSummaryRecord{Mode: core.CrawlModeSingle, URL: s.URL, Title: s.Title}
	case core.DeepSummary:
		return &crawlSummaryRecord{Mode: core.CrawlModeDeep, RootURL: s.RootURL, PagesScraped: s.PagesScraped, MaxDepthReached: s.MaxDepthReached}
	case core.SitemapSummary:
		return &crawlSummaryRecord{Mode: core.CrawlModeSitemap, SitemapURL: s.SitemapURL, TotalURLsFound: s.TotalURLsFound, PagesScraped: s.PagesScraped}
	default:
		return nil
	}
}

func fromSummaryRecord(r *crawlSummaryRecord) core.CrawlSummary {
	if r == nil {
		return nil
	}
	switch r.Mode {
	case core.CrawlModeSingle:
		return core.SingleSummary{URL: r.URL, Title: r.Title}
	case core.CrawlModeDeep:
		return core.DeepSummary{RootURL: r.RootURL, PagesScraped: r.PagesScraped, MaxDepthReached: r.MaxDepthReached}
	case core.CrawlModeSitemap:
		return core.SitemapSummary{SitemapURL: r.SitemapURL, TotalURLsFound: r.TotalURLsFound, PagesScraped: r.PagesScraped}
	default:
		return nil
	}
}

// MarshalCrawlConfig serializes a crawl config variant as tagged JSON.
func MarshalCrawlConfig(cfg core.CrawlConfig) ([]byte, error) {
	rec, err := toConfigRecord(cfg)
	if err != nil {
		return nil, err
	}
	return json.Marshal(rec)
}

// UnmarshalCrawlConfig restores a crawl config variant.
func UnmarshalCrawlConfig(data []byte) (core.CrawlConfig, error) {
	var rec crawlConfigRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return fromConfigRecord(rec)
}

// MarshalCrawlSummary serializes a crawl summary variant, or JSON null for nil.
func MarshalCrawlSummary(s core.CrawlSummary) ([]byte, error) {
	return json.Marshal(toSummaryRecord(s))
}

// UnmarshalCrawlSummary restores a crawl summary variant. null yields nil.
func UnmarshalCrawlSummary(data []byte) (core.CrawlSummary, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var rec *crawlSummaryRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return fromSummaryRecord(rec), nil
}

// MarshalScrapeJob serializes a ScrapeJob to bytes.
func MarshalScrapeJob(job *core.ScrapeJob) ([]byte, error) {
	cfg, err := toConfigRecord(job.Config)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(scrapeJobRecord{
		ID:          job.ID,
		Owner:       job.Owner,
		URL:         job.URL,
		Config:      cfg,
		Status:      job.Status,
		Progress:    job.Progress,
		Message:     job.Message,
		Summary:     toSummaryRecord(job.Summary),
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		UpdatedAt:   job.UpdatedAt,
		CompletedAt: job.CompletedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalScrapeJob deserializes a ScrapeJob from bytes.
func UnmarshalScrapeJob(data []byte) (*core.ScrapeJob, error) {
	var rec scrapeJobRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	cfg, err := fromConfigRecord(rec.Config)
	if err != nil {
		return nil, err
	}
	return &core.ScrapeJob{
		ID:          rec.ID,
		Owner:       rec.Owner,
		URL:         rec.URL,
		Config:      cfg,
		Status:      rec.Status,
		Progress:    rec.Progress,
		Message:     rec.Message,
		Summary:     fromSummaryRecord(rec.Summary),
		Error:       rec.Error,
		CreatedAt:   rec.CreatedAt,
		StartedAt:   rec.StartedAt,
		UpdatedAt:   rec.UpdatedAt,
		CompletedAt: rec.CompletedAt,
	}, nil
}

// MarshalDocumentJob serializes a DocumentJob to bytes.
func MarshalDocumentJob(job *core.DocumentJob) ([]byte, error) {
	data, err := json.Marshal(documentJobRecord{
		ID:    job.ID,
		Owner: job.Owner,
		File: fileRecord{
			Name:        job.File.Name,
			Size:        job.File.Size,
			ContentType: job.File.ContentType,
			StoragePath: job.File.StoragePath,
			Digest:      job.File.Digest,
		},
		ChunkCount:  job.ChunkCount,
		Status:      job.Status,
		Message:     job.Message,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
		CompletedAt: job.CompletedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalDocumentJob deserializes a DocumentJob from bytes.
func UnmarshalDocumentJob(data []byte) (*core.DocumentJob, error) {
	var rec documentJobRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &core.DocumentJob{
		ID:    rec.ID,
		Owner: rec.Owner,
		File: core.FileInfo{
			Name:        rec.File.Name,
			Size:        rec.File.Size,
			ContentType: rec.File.ContentType,
			StoragePath: rec.File.StoragePath,
			Digest:      rec.File.Digest,
		},
		ChunkCount:  rec.ChunkCount,
		Status:      rec.Status,
		Message:     rec.Message,
		Error:       rec.Error,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
		CompletedAt: rec.CompletedAt,
	}, nil
}

// MarshalDatabase serializes a VectorDatabase to bytes.
func MarshalDatabase(db *core.VectorDatabase) ([]byte, error) {
	data, err := json.Marshal(databaseRecord{
		ID:            db.ID,
		Owner:         db.Owner,
		Name:          db.Name,
		Description:   db.Description,
		Sources:       db.Sources,
		IndexName:     db.IndexName,
		DocumentCount: db.DocumentCount,
		ChunkCount:    db.ChunkCount,
		Status:        db.Status,
		Message:       db.Message,
		CreatedAt:     db.CreatedAt,
		UpdatedAt:     db.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalDatabase deserializes a VectorDatabase from bytes.
func UnmarshalDatabase(data []byte) (*core.VectorDatabase, error) {
	var rec databaseRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &core.VectorDatabase{
		ID:            rec.ID,
		Owner:         rec.Owner,
		Name:          rec.Name,
		Description:   rec.Description,
		Sources:       rec.Sources,
		IndexName:     rec.IndexName,
		DocumentCount: rec.DocumentCount,
		ChunkCount:    rec.ChunkCount,
		Status:        rec.Status,
		Message:       rec.Message,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}, nil
}

type chatSessionRecord struct {
	ID           string          `json:"id"`
	Owner        string          `json:"owner"`
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

type chatMessageRecord struct {
	SessionID string                   `json:"session_id"`
	Seq       uint64                   `json:"seq"`
	Role      core.ChatRole            `json:"role"`
	Content   string                   `json:"content"`
	Metadata  core.ChatMessageMetadata `json:"metadata"`
	CreatedAt time.Time                `json:"created_at"`
}

// MarshalChatSession serializes a ChatSession to bytes.
func MarshalChatSession(s *core.ChatSession) ([]byte, error) {
	data, err := json.Marshal(chatSessionRecord{
		ID:           s.ID,
		Owner:        s.Owner,
		DatabaseID:   s.DatabaseID,
		Model:        s.Model,
		SystemPrompt: s.SystemPrompt,
		Temperature:  s.Temperature,
		MaxTokens:    s.MaxTokens,
		Mode:         s.Mode,
		TopK:         s.TopK,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalChatSession deserializes a ChatSession from bytes.
func UnmarshalChatSession(data []byte) (*core.ChatSession, error) {
	var rec chatSessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &core.ChatSession{
		ID:           rec.ID,
		Owner:        rec.Owner,
		DatabaseID:   rec.DatabaseID,
		Model:        rec.Model,
		SystemPrompt: rec.SystemPrompt,
		Temperature:  rec.Temperature,
		MaxTokens:    rec.MaxTokens,
		Mode:         rec.Mode,
		TopK:         rec.TopK,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}, nil
}

// MarshalChatMessage serializes a ChatMessage to bytes.
func MarshalChatMessage(m *core.ChatMessage) ([]byte, error) {
	data, err := json.Marshal(chatMessageRecord(*m))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalChatMessage deserializes a ChatMessage from bytes.
func UnmarshalChatMessage(data []byte) (*core.ChatMessage, error) {
	var rec chatMessageRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	msg := core.ChatMessage(rec)
	return &msg, nil
}
