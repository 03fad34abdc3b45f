package core

import (
	"time"
)

// JobStatus is the lifecycle state of a scrape or document job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// DatabaseStatus is the lifecycle state of a vector database.
type DatabaseStatus string

const (
	DatabaseStatusBuilding DatabaseStatus = "building"
	DatabaseStatusReady    DatabaseStatus = "ready"
	DatabaseStatusError    DatabaseStatus = "error"
)

// Source types recorded on every indexed chunk.
const (
	SourceTypeWeb      = "web_scraped"
	SourceTypePDF      = "pdf_document"
	SourceTypeWord     = "word_document"
	SourceTypeMarkdown = "markdown_document"
	SourceTypeText     = "text_document"
)

// ScrapeJob is a crawl request and its progress.
type ScrapeJob struct {
	ID          string
	Owner       string
	URL         string
	Config      CrawlConfig
	Status      JobStatus
	Progress    int    // 0-100, non-decreasing while running
	Message     string // human readable status line
	Summary     CrawlSummary
	Error       string
	CreatedAt   time.Time
	StartedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt time.Time
}

// Mode returns the crawl mode of the job's configuration.
func (j *ScrapeJob) Mode() CrawlMode {
	if j.Config == nil {
		return ""
	}
	return j.Config.Mode()
}

// FileInfo describes an uploaded file as stored on disk.
type FileInfo struct {
	Name        string
	Size        int64
	ContentType string
	StoragePath string
	Digest      string
}

// DocumentJob tracks extraction of one uploaded document.
type DocumentJob struct {
	ID          string
	Owner       string
	File        FileInfo
	ChunkCount  int
	Status      JobStatus
	Message     string
	Error       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt time.Time
}

// RawContentRecord is one fetched page or one extracted document.
// Either URL or Filename is set.
type RawContentRecord struct {
	URL      string   `json:"url,omitempty"`
	Filename string   `json:"filename,omitempty"`
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata,omitempty"`
	Depth    *int     `json:"depth,omitempty"`
}

// Source returns the URL, or the filename for uploaded documents.
func (r *RawContentRecord) Source() string {
	if r.URL != "" {
		return r.URL
	}
	return r.Filename
}

// Chunk is a bounded span of a record, the unit that gets embedded and indexed.
type Chunk struct {
	ID         string
	Index      int
	Text       string
	SourceURL  string
	Title      string
	SourceType string
	Metadata   map[string]string
	Vector     []float32
}

// SourceSet lists the jobs a vector database is built from.
type SourceSet struct {
	ScrapeJobID    string   `json:"scrape_job_id,omitempty"`
	DocumentJobIDs []string `json:"document_job_ids,omitempty"`
}

// Empty reports whether no source is referenced.
func (s SourceSet) Empty() bool {
	return s.ScrapeJobID == "" && len(s.DocumentJobIDs) == 0
}

// Hybrid reports whether the set mixes a crawl with uploaded documents.
func (s SourceSet) Hybrid() bool {
	return s.ScrapeJobID != "" && len(s.DocumentJobIDs) > 0
}

// JobIDs returns every referenced job id, scrape job first.
func (s SourceSet) JobIDs() []string {
	ids := make([]string, 0, len(s.DocumentJobIDs)+1)
	if s.ScrapeJobID != "" {
		ids = append(ids, s.ScrapeJobID)
	}
	return append(ids, s.DocumentJobIDs...)
}

// VectorDatabase pairs a backing search index with ownership and status.
type VectorDatabase struct {
	ID            string
	Owner         string
	Name          string
	Description   string
	Sources       SourceSet
	IndexName     string
	DocumentCount int // source records embedded
	ChunkCount    int // chunks uploaded
	Status        DatabaseStatus
	Message       string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SearchMode selects how the retrieval engine ranks results.
type SearchMode string

const (
	SearchModeKeyword  SearchMode = "keyword"
	SearchModeSemantic SearchMode = "semantic"
	SearchModeHybrid   SearchMode = "hybrid"
)

// NeedsVector reports whether the query must be embedded.
func (m SearchMode) NeedsVector() bool {
	return m == SearchModeSemantic || m == SearchModeHybrid
}

// NeedsText reports whether the query text is matched against content.
func (m SearchMode) NeedsText() bool {
	return m == SearchModeKeyword || m == SearchModeHybrid
}

// SearchResult is one ranked hit returned by the retrieval engine.
type SearchResult struct {
	ID         string            `json:"id"`
	Content    string            `json:"content"`
	Title      string            `json:"title"`
	URL        string            `json:"url"`
	Score      float32           `json:"score"`
	ChunkIndex int               `json:"chunk_index"`
	SourceType string            `json:"source_type"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}
