package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/poiesic/harvest/core"
	"github.com/poiesic/harvest/index"
	"github.com/poiesic/harvest/storage"
)

const (
	// DefaultTopK is the number of results returned when none is requested.
	DefaultTopK = 5

	// MaxTopK caps the number of results of one query.
	MaxTopK = 50
)

// IndexSearcher queries a named index. *index.Manager satisfies it.
type IndexSearcher interface {
	Search(ctx context.Context, name string, q index.Query) ([]index.Hit, error)
}

// QueryEmbedder embeds a search query. ai.Embedder and
// *embedding.Batcher satisfy it.
type QueryEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Searcher runs owner-scoped queries against ready vector databases.
type Searcher struct {
	databases storage.DatabaseRepository
	indexes   IndexSearcher
	embedder  QueryEmbedder
	logger    *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(
	databases storage.DatabaseRepository,
	indexes IndexSearcher,
	embedder QueryEmbedder,
	opts ...Option,
) (*Searcher, error) {
	if databases == nil {
		return nil, ErrDatabaseRepositoryRequired
	}
	if indexes == nil {
		return nil, ErrIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		databases: databases,
		indexes:   indexes,
		embedder:  embedder,
		logger:    slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "searcher")

	return s, nil
}

// Search returns up to topK results for query from database dbID.
// An empty mode selects semantic search; topK <= 0 selects DefaultTopK and
// larger values are capped at MaxTopK.
func (s *Searcher) Search(ctx context.Context, dbID, owner, query string, mode core.SearchMode, topK int) ([]core.SearchResult, error) {
	return s.SearchWithMonitor(ctx, dbID, owner, query, mode, topK, nil)
}

// SearchWithMonitor is Search with callbacks at each stage.
func (s *Searcher) SearchWithMonitor(ctx context.Context, dbID, owner, query string, mode core.SearchMode, topK int, monitor SearchMonitor) ([]core.SearchResult, error) {
	// Use noop monitor if none provided
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	mode, err := core.ParseSearchMode(string(mode))
	if err != nil {
		return nil, err
	}
	topK = clampTopK(topK)

	db, err := s.readyDatabase(ctx, dbID, owner)
	if err != nil {
		return nil, err
	}
	monitor.Start(query, mode)

	q := index.Query{TopK: topK}
	if mode.NeedsText() {
		q.Text = query
	}
	if mode.NeedsVector() {
		vector, err := s.embedder.EmbedText(ctx, query)
		if err != nil {
			s.logger.Error("error generating embedding for query", "database", dbID, "err", err)
			return nil, err
		}
		q.Vector = vector
		monitor.AfterQueryEmbedding(vector)
	}

	hits, err := s.indexes.Search(ctx, db.IndexName, q)
	if err != nil {
		s.logger.Error("error querying index", "database", dbID, "index", db.IndexName, "err", err)
		return nil, err
	}
	monitor.AfterIndexQuery(hits)

	results := make([]core.SearchResult, len(hits))
	terms := newQueryTerms(query)
	verbatim := make(map[string]bool, len(hits))
	for i, hit := range hits {
		results[i] = toResult(hit)
		if terms.coveredBy(hit.Document.Content) {
			verbatim[hit.Document.ID] = true
			monitor.VerbatimHit(&results[i])
		}
	}

	// Verbatim matches win ties; otherwise keep the backend's order
	slices.SortStableFunc(results, func(a, b core.SearchResult) int {
		if a.Score != b.Score {
			if a.Score > b.Score {
				return -1
			}
			return 1
		}
		switch {
		case verbatim[a.ID] && !verbatim[b.ID]:
			return -1
		case verbatim[b.ID] && !verbatim[a.ID]:
			return 1
		}
		return 0
	})
	if len(results) > topK {
		results = results[:topK]
	}
	monitor.Finish(results)

	s.logger.Debug("search finished", "database", dbID, "mode", mode, "results", len(results))
	return results, nil
}

func (s *Searcher) readyDatabase(ctx context.Context, dbID, owner string) (*core.VectorDatabase, error) {
	db, err := s.databases.Get(ctx, dbID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, notFound(dbID)
	}
	if err != nil {
		return nil, err
	}
	if db.Owner != owner {
		return nil, notFound(dbID)
	}
	if db.Status != core.DatabaseStatusReady {
		return nil, fmt.Errorf("%w: %s is %s", ErrDatabaseNotReady, dbID, db.Status)
	}
	return db, nil
}

func clampTopK(k int) int {
	switch {
	case k <= 0:
		return DefaultTopK
	case k > MaxTopK:
		return MaxTopK
	default:
		return k
	}
}

func toResult(hit index.Hit) core.SearchResult {
	doc := hit.Document
	return core.SearchResult{
		ID:         doc.ID,
		Content:    doc.Content,
		Title:      doc.Title,
		URL:        doc.URL,
		Score:      hit.Score,
		ChunkIndex: doc.ChunkIndex,
		SourceType: doc.SourceType,
		Metadata:   doc.Metadata,
	}
}
