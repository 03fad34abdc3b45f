package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/poiesic/harvest/ai/mock"
	"github.com/poiesic/harvest/core"
	"github.com/poiesic/harvest/crawler"
	"github.com/poiesic/harvest/embedding"
	"github.com/poiesic/harvest/index"
	"github.com/poiesic/harvest/index/local"
	"github.com/poiesic/harvest/loader"
	"github.com/poiesic/harvest/snapshot"
	"github.com/poiesic/harvest/storage"
	"github.com/poiesic/harvest/storage/badger"
)

const (
	owner   = "alice"
	seedURL = "https://example.com/"
)

// fakeCrawler returns canned records or runs an injected crawl.
type fakeCrawler struct {
	mu      sync.Mutex
	calls   int
	records []core.RawContentRecord
	crawl   func(ctx context.Context, seed string, cfg core.CrawlConfig, progress crawler.ProgressFunc) (*crawler.Result, error)
}

func (f *fakeCrawler) Crawl(ctx context.Context, seed string, cfg core.CrawlConfig, progress crawler.ProgressFunc) (*crawler.Result, error) {
	f.mu.Lock()
	f.calls++
	fn := f.crawl
	records := f.records
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, seed, cfg, progress)
	}
	progress(10, "Fetching "+seed)
	progress(90, fmt.Sprintf("Scraped %d pages", len(records)))
	return &crawler.Result{
		Records: records,
		Summary: core.DeepSummary{RootURL: seed, PagesScraped: len(records), MaxDepthReached: 1},
	}, nil
}

func (f *fakeCrawler) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeCrawler) setCrawl(fn func(ctx context.Context, seed string, cfg core.CrawlConfig, progress crawler.ProgressFunc) (*crawler.Result, error)) {
	f.mu.Lock()
	f.crawl = fn
	f.mu.Unlock()
}

// recordingBackend counts upsert batch sizes and can fail uploads.
type recordingBackend struct {
	index.Backend

	mu        sync.Mutex
	batches   []int
	upsertErr error
}

func (r *recordingBackend) Upsert(ctx context.Context, name string, docs []index.Document) (int, error) {
	r.mu.Lock()
	r.batches = append(r.batches, len(docs))
	err := r.upsertErr
	r.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return r.Backend.Upsert(ctx, name, docs)
}

func (r *recordingBackend) Batches() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.batches...)
}

type fixture struct {
	orch      *Orchestrator
	store     storage.Store
	snapshots *snapshot.Store
	files     *loader.FileStore
	crawler   *fakeCrawler
	embedder  *mock.MockEmbedder
	backend   *recordingBackend
	indexes   *index.Manager
	executor  *PoolExecutor
}

type fixtureConfig struct {
	executorOpts []ExecutorOption
	opts         []Option
}

func newFixture(t *testing.T, cfg fixtureConfig) *fixture {
	t.Helper()
	dir := t.TempDir()

	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	snapshots, err := snapshot.NewStore(dir + "/raw")
	require.NoError(t, err)
	files, err := loader.NewFileStore(dir + "/uploads")
	require.NoError(t, err)

	lb, err := local.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = lb.Close() })
	backend := &recordingBackend{Backend: lb}

	indexes, err := index.NewManager(backend, store.Databases())
	require.NoError(t, err)

	emb := mock.NewMockEmbedder()
	batcher, err := embedding.NewBatcher(emb, embedding.WithRetry(1, time.Millisecond))
	require.NoError(t, err)

	executor, err := NewPoolExecutor(append([]ExecutorOption{WithPoolSize(4)}, cfg.executorOpts...)...)
	require.NoError(t, err)

	fc := &fakeCrawler{records: []core.RawContentRecord{
		{URL: seedURL, Title: "Sourdough", Content: "sourdough bread needs a lively starter and a long cold proof"},
		{URL: seedURL + "lighthouse", Title: "Lighthouse", Content: "the lighthouse keeper trims the lamp wick every evening"},
	}}

	orch, err := NewOrchestrator(Dependencies{
		Store:     store,
		Snapshots: snapshots,
		Files:     files,
		Crawler:   fc,
		Embedder:  batcher,
		Indexes:   indexes,
		Executor:  executor,
	}, cfg.opts...)
	require.NoError(t, err)
	// close the executor before the stores it writes to
	t.Cleanup(func() { _ = executor.Close() })

	return &fixture{
		orch:      orch,
		store:     store,
		snapshots: snapshots,
		files:     files,
		crawler:   fc,
		embedder:  emb,
		backend:   backend,
		indexes:   indexes,
		executor:  executor,
	}
}

// completedJob creates and runs a scrape job to completion.
func (f *fixture) completedJob(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	id, err := f.orch.CreateJob(ctx, owner, seedURL, core.DeepConfig{MaxDepth: 1, MaxPages: 10})
	require.NoError(t, err)
	require.NoError(t, f.orch.StartJob(ctx, id))
	f.waitJob(t, id, core.JobStatusCompleted)
	return id
}

func (f *fixture) waitJob(t *testing.T, id string, status core.JobStatus) *core.ScrapeJob {
	t.Helper()
	var job *core.ScrapeJob
	require.Eventually(t, func() bool {
		var err error
		job, err = f.store.ScrapeJobs().Get(context.Background(), id)
		return err == nil && job.Status == status && !f.executor.Running(scrapeKey(id))
	}, 5*time.Second, 5*time.Millisecond, "job %s never reached %s", id, status)
	return job
}

func (f *fixture) waitDocument(t *testing.T, id string, status core.JobStatus) *core.DocumentJob {
	t.Helper()
	var job *core.DocumentJob
	require.Eventually(t, func() bool {
		var err error
		job, err = f.store.DocumentJobs().Get(context.Background(), id)
		return err == nil && job.Status == status && !f.executor.Running(documentKey(id))
	}, 5*time.Second, 5*time.Millisecond, "document %s never reached %s", id, status)
	return job
}

func (f *fixture) waitDatabase(t *testing.T, id string, status core.DatabaseStatus) *core.VectorDatabase {
	t.Helper()
	var db *core.VectorDatabase
	require.Eventually(t, func() bool {
		var err error
		db, err = f.store.Databases().Get(context.Background(), id)
		return err == nil && db.Status == status && !f.executor.Running(databaseKey(id))
	}, 5*time.Second, 5*time.Millisecond, "database %s never reached %s", id, status)
	return db
}

// failEmbeddingsContaining makes the embedder fail any batch with word in it.
func (f *fixture) failEmbeddingsContaining(word string) {
	f.embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		for _, text := range texts {
			if strings.Contains(text, word) {
				return nil, errors.New("provider rejected input")
			}
		}
		out := make([][]float32, len(texts))
		for i := range texts {
			v, err := mock.NewMockEmbedder().EmbedText(ctx, texts[i])
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
}
