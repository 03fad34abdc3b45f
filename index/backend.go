package index

import "context"

// Document is one indexed chunk.
type Document struct {
	ID         string            `json:"id"`
	Content    string            `json:"content"`
	Title      string            `json:"title"`
	URL        string            `json:"url"`
	ChunkIndex int               `json:"chunk_index"`
	SourceType string            `json:"source_type"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Vector     []float32         `json:"content_vector"`
}

// Query selects documents by text, by vector, or both. When both are set
// the backend fuses the two rankings.
type Query struct {
	Text   string
	Vector []float32
	TopK   int
	// Filters restricts results to exact matches on filterable fields.
	Filters map[string]string
}

// Hit is one ranked query result.
type Hit struct {
	Document Document
	Score    float32
}

// Quota is the backend's index-count allowance. Max 0 means unlimited.
type Quota struct {
	Used int
	Max  int
}

// Exhausted reports whether no further index can be created.
func (q Quota) Exhausted() bool {
	return q.Max > 0 && q.Used >= q.Max
}

// Backend is a search service holding named indexes.
type Backend interface {
	// CreateIndex returns ErrIndexExists or ErrQuotaExceeded on failure.
	CreateIndex(ctx context.Context, name string, desc Descriptor) error
	// DeleteIndex returns ErrIndexNotFound if name does not exist.
	DeleteIndex(ctx context.Context, name string) error
	ListIndexes(ctx context.Context) ([]string, error)
	Quota(ctx context.Context) (Quota, error)
	// Upsert writes documents by id, replacing existing ones.
	Upsert(ctx context.Context, name string, docs []Document) (int, error)
	Query(ctx context.Context, name string, q Query) ([]Hit, error)
	Count(ctx context.Context, name string) (int, error)
	Close() error
}

// RecordSource reports the index names owned by vector database records.
// storage.DatabaseRepository satisfies it.
type RecordSource interface {
	IndexNames(ctx context.Context) (map[string]bool, error)
}
