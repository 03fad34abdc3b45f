package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/harvest/chunker"
	"github.com/poiesic/harvest/core"
	"github.com/poiesic/harvest/crawler"
	"github.com/poiesic/harvest/index"
	"github.com/poiesic/harvest/loader"
	"github.com/poiesic/harvest/snapshot"
	"github.com/poiesic/harvest/storage"
)

const (
	// DefaultUploadBatchSize is the number of chunks sent per index upload.
	DefaultUploadBatchSize = 100

	// statusWriteTimeout bounds failure writes made after the job context expired.
	statusWriteTimeout = 10 * time.Second
)

// Status messages recorded on scrape jobs.
const (
	msgJobCreated       = "Job created"
	msgScrapeStarting   = "Starting scraping process"
	msgScrapeCompleted  = "Scraping completed successfully"
	msgScrapeFailed     = "Scraping failed: "
	msgDocumentUploaded = "Document uploaded"
	msgDocumentDone     = "Document processed successfully"
	msgDocumentFailed   = "Document processing failed: "
	msgBuildQueued      = "Building vector database"
	msgBuildReady       = "Vector database ready"
	msgBuildFailed      = "Build failed: "
)

// Crawler fetches content for a scrape job. *crawler.Crawler satisfies it.
type Crawler interface {
	Crawl(ctx context.Context, seed string, cfg core.CrawlConfig, progress crawler.ProgressFunc) (*crawler.Result, error)
}

// Embedder turns chunk texts into vectors. *embedding.Batcher satisfies it.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension(ctx context.Context) (int, error)
}

// Dependencies are the collaborators of an Orchestrator. All are required.
type Dependencies struct {
	Store     storage.Store
	Snapshots *snapshot.Store
	Files     *loader.FileStore
	Crawler   Crawler
	Embedder  Embedder
	Indexes   *index.Manager
	Executor  JobExecutor
}

func (d Dependencies) validate() error {
	switch {
	case d.Store == nil:
		return ErrStoreRequired
	case d.Snapshots == nil:
		return ErrSnapshotsRequired
	case d.Files == nil:
		return ErrFilesRequired
	case d.Crawler == nil:
		return ErrCrawlerRequired
	case d.Embedder == nil:
		return ErrEmbedderRequired
	case d.Indexes == nil:
		return ErrIndexManagerRequired
	case d.Executor == nil:
		return ErrExecutorRequired
	}
	return nil
}

// Orchestrator owns the job and database state machines. Request methods
// persist state and submit work; the pipelines run on the executor.
type Orchestrator struct {
	store     storage.Store
	snapshots *snapshot.Store
	files     *loader.FileStore
	crawler   Crawler
	embedder  Embedder
	indexes   *index.Manager
	executor  JobExecutor

	chunkSize       int
	chunkOverlap    int
	uploadBatchSize int
	logger          *slog.Logger
	now             func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithChunking sets the chunk size and overlap in words.
func WithChunking(size, overlap int) Option {
	return func(o *Orchestrator) error {
		if size < 1 {
			return fmt.Errorf("chunk size must be >= 1, got %d", size)
		}
		if overlap < 0 {
			return fmt.Errorf("chunk overlap must be >= 0, got %d", overlap)
		}
		o.chunkSize = size
		o.chunkOverlap = overlap
		return nil
	}
}

// WithUploadBatchSize sets how many chunks go into one index upload.
func WithUploadBatchSize(n int) Option {
	return func(o *Orchestrator) error {
		if n < 1 {
			return fmt.Errorf("upload batch size must be >= 1, got %d", n)
		}
		o.uploadBatchSize = n
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(deps Dependencies, opts ...Option) (*Orchestrator, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	o := &Orchestrator{
		store:           deps.Store,
		snapshots:       deps.Snapshots,
		files:           deps.Files,
		crawler:         deps.Crawler,
		embedder:        deps.Embedder,
		indexes:         deps.Indexes,
		executor:        deps.Executor,
		chunkSize:       chunker.DefaultSize,
		chunkOverlap:    chunker.DefaultOverlap,
		uploadBatchSize: DefaultUploadBatchSize,
		logger:          slog.Default(),
		now:             func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	o.logger = o.logger.With("component", "orchestrator")
	return o, nil
}

func scrapeKey(id string) string   { return "scrape:" + id }
func documentKey(id string) string { return "document:" + id }
func databaseKey(id string) string { return "database:" + id }

// CreateJob validates and persists a pending scrape job.
func (o *Orchestrator) CreateJob(ctx context.Context, owner, url string, cfg core.CrawlConfig) (string, error) {
	job := &core.ScrapeJob{
		ID:      core.NewID(),
		Owner:   strings.TrimSpace(owner),
		URL:     strings.TrimSpace(url),
		Config:  cfg,
		Status:  core.JobStatusPending,
		Message: msgJobCreated,
	}
	if err := core.ValidateScrapeJob(job); err != nil {
		return "", err
	}
	if err := o.store.ScrapeJobs().Create(ctx, job); err != nil {
		return "", err
	}
	o.logger.Info("scrape job created", "job", job.ID, "owner", job.Owner, "mode", job.Mode(), "url", job.URL)
	return job.ID, nil
}

// StartJob claims a pending job and submits its crawl. Only the first call
// for a job succeeds; later or concurrent calls get ErrJobAlreadyStarted.
func (o *Orchestrator) StartJob(ctx context.Context, jobID string) error {
	if o.executor.Running(scrapeKey(jobID)) {
		return fmt.Errorf("%w: %s", ErrJobAlreadyStarted, jobID)
	}
	_, err := o.store.ScrapeJobs().Update(ctx, jobID, func(job *core.ScrapeJob) error {
		if job.Status != core.JobStatusPending {
			return fmt.Errorf("%w: %s is %s", ErrJobAlreadyStarted, jobID, job.Status)
		}
		job.Status = core.JobStatusRunning
		job.Progress = 0
		job.Message = msgScrapeStarting
		job.StartedAt = o.now()
		return nil
	})
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if err != nil {
		return err
	}

	err = o.executor.Submit(Task{
		Key:  scrapeKey(jobID),
		Run:  func(ctx context.Context) error { return o.runScrape(ctx, jobID) },
		Fail: func(err error) { o.failScrape(jobID, err) },
	})
	if err != nil {
		o.failScrape(jobID, err)
		return err
	}
	o.logger.Info("scrape job started", "job", jobID)
	return nil
}

func (o *Orchestrator) runScrape(ctx context.Context, jobID string) error {
	job, err := o.store.ScrapeJobs().Get(ctx, jobID)
	if err != nil {
		return err
	}
	logger := o.logger.With("job", jobID)

	reporter := newProgressReporter(ctx, func(ctx context.Context, percent int, message string) error {
		_, err := o.store.ScrapeJobs().Update(ctx, jobID, func(j *core.ScrapeJob) error {
			j.Progress = percent
			j.Message = message
			return nil
		})
		return err
	}, logger)

	result, err := o.crawler.Crawl(ctx, job.URL, job.Config, reporter.Report)
	if err != nil {
		return err
	}
	if err := o.snapshots.Write(jobID, snapshot.NewEnvelope(result.Records, result.Summary)); err != nil {
		return err
	}

	_, err = o.store.ScrapeJobs().Update(ctx, jobID, func(j *core.ScrapeJob) error {
		j.Status = core.JobStatusCompleted
		j.Progress = 100
		j.Message = msgScrapeCompleted
		j.Summary = result.Summary
		j.CompletedAt = o.now()
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info("scrape job completed", "pages", len(result.Records))
	return nil
}

func (o *Orchestrator) failScrape(jobID string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), statusWriteTimeout)
	defer cancel()

	// A job that finished in the meantime keeps its snapshot.
	_, err := o.store.ScrapeJobs().Update(ctx, jobID, func(j *core.ScrapeJob) error {
		j.Status = core.JobStatusFailed
		j.Error = cause.Error()
		j.Message = msgScrapeFailed + cause.Error()
		j.CompletedAt = o.now()
		return nil
	})
	if err != nil {
		o.logger.Error("failed to record job failure", "job", jobID, "cause", cause, "error", err)
		return
	}
	if err := o.snapshots.Write(jobID, snapshot.Failed(cause.Error())); err != nil {
		o.logger.Warn("failed to write failure snapshot", "job", jobID, "error", err)
	}
}

// GetStatus returns the job if owner owns it.
func (o *Orchestrator) GetStatus(ctx context.Context, jobID, owner string) (*JobStatusView, error) {
	job, err := o.ownedScrapeJob(ctx, jobID, owner)
	if err != nil {
		return nil, err
	}
	return newJobStatusView(job), nil
}

// ListJobs returns owner's scrape jobs, newest first.
func (o *Orchestrator) ListJobs(ctx context.Context, owner string) ([]*JobStatusView, error) {
	if strings.TrimSpace(owner) == "" {
		return nil, core.ErrEmptyOwner
	}
	jobs, err := o.store.ScrapeJobs().List(ctx, owner)
	if err != nil {
		return nil, err
	}
	views := make([]*JobStatusView, len(jobs))
	for i, j := range jobs {
		views[i] = newJobStatusView(j)
	}
	return views, nil
}

// DeleteJob removes a job and its snapshot. It reports false when the job
// does not exist or belongs to someone else.
func (o *Orchestrator) DeleteJob(ctx context.Context, jobID, owner string) (bool, error) {
	job, err := o.ownedScrapeJob(ctx, jobID, owner)
	if errors.Is(err, ErrJobNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if job.Status == core.JobStatusRunning && o.executor.Running(scrapeKey(jobID)) {
		return false, fmt.Errorf("%w: %s", ErrJobRunning, jobID)
	}
	if err := o.store.ScrapeJobs().Delete(ctx, jobID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := o.snapshots.Delete(jobID); err != nil {
		o.logger.Warn("failed to delete snapshot", "job", jobID, "error", err)
	}
	o.logger.Info("scrape job deleted", "job", jobID)
	return true, nil
}

func (o *Orchestrator) ownedScrapeJob(ctx context.Context, jobID, owner string) (*core.ScrapeJob, error) {
	job, err := o.store.ScrapeJobs().Get(ctx, jobID)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && job.Owner != owner) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return job, err
}

// UploadDocument stores an uploaded file, records a pending document job and
// submits its extraction.
func (o *Orchestrator) UploadDocument(ctx context.Context, owner, filename string, r io.Reader) (string, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return "", core.ErrEmptyOwner
	}
	info, err := o.files.Save(owner, filename, r)
	if err != nil {
		return "", err
	}

	job := &core.DocumentJob{
		ID:      core.NewID(),
		Owner:   owner,
		File:    info,
		Status:  core.JobStatusPending,
		Message: msgDocumentUploaded,
	}
	if err := o.store.DocumentJobs().Create(ctx, job); err != nil {
		_ = o.files.Remove(info.StoragePath)
		return "", err
	}

	err = o.executor.Submit(Task{
		Key:  documentKey(job.ID),
		Run:  func(ctx context.Context) error { return o.runDocument(ctx, job.ID) },
		Fail: func(err error) { o.failDocument(job.ID, err) },
	})
	if err != nil {
		o.failDocument(job.ID, err)
		return "", err
	}
	o.logger.Info("document uploaded", "job", job.ID, "owner", owner, "file", info.Name, "size", info.Size)
	return job.ID, nil
}

func (o *Orchestrator) runDocument(ctx context.Context, jobID string) error {
	job, err := o.store.DocumentJobs().Get(ctx, jobID)
	if err != nil {
		return err
	}
	path, err := o.files.Path(job.File.StoragePath)
	if err != nil {
		return err
	}
	record, err := loader.Extract(path, job.File.Name)
	if err != nil {
		return err
	}
	if err := o.snapshots.Write(jobID, snapshot.NewEnvelope([]core.RawContentRecord{*record}, nil)); err != nil {
		return err
	}

	chunks := len(chunker.Chunk(record.Content, o.chunkSize, o.chunkOverlap))
	_, err = o.store.DocumentJobs().Update(ctx, jobID, func(j *core.DocumentJob) error {
		j.Status = core.JobStatusCompleted
		j.ChunkCount = chunks
		j.Message = msgDocumentDone
		j.CompletedAt = o.now()
		return nil
	})
	return err
}

func (o *Orchestrator) failDocument(jobID string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), statusWriteTimeout)
	defer cancel()

	_, err := o.store.DocumentJobs().Update(ctx, jobID, func(j *core.DocumentJob) error {
		j.Status = core.JobStatusFailed
		j.Error = cause.Error()
		j.Message = msgDocumentFailed + cause.Error()
		j.CompletedAt = o.now()
		return nil
	})
	if err != nil {
		o.logger.Error("failed to record document failure", "job", jobID, "cause", cause, "error", err)
	}
}

// GetDocumentStatus returns the document job if owner owns it.
func (o *Orchestrator) GetDocumentStatus(ctx context.Context, jobID, owner string) (*DocumentStatusView, error) {
	job, err := o.ownedDocumentJob(ctx, jobID, owner)
	if err != nil {
		return nil, err
	}
	return newDocumentStatusView(job), nil
}

// ListDocumentJobs returns owner's document jobs, newest first.
func (o *Orchestrator) ListDocumentJobs(ctx context.Context, owner string) ([]*DocumentStatusView, error) {
	if strings.TrimSpace(owner) == "" {
		return nil, core.ErrEmptyOwner
	}
	jobs, err := o.store.DocumentJobs().List(ctx, owner)
	if err != nil {
		return nil, err
	}
	views := make([]*DocumentStatusView, len(jobs))
	for i, j := range jobs {
		views[i] = newDocumentStatusView(j)
	}
	return views, nil
}

// DeleteDocument removes a document job, its stored file and its snapshot.
func (o *Orchestrator) DeleteDocument(ctx context.Context, jobID, owner string) (bool, error) {
	job, err := o.ownedDocumentJob(ctx, jobID, owner)
	if errors.Is(err, ErrJobNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if o.executor.Running(documentKey(jobID)) {
		return false, fmt.Errorf("%w: %s", ErrJobRunning, jobID)
	}
	if err := o.store.DocumentJobs().Delete(ctx, jobID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := o.files.Remove(job.File.StoragePath); err != nil {
		o.logger.Warn("failed to remove uploaded file", "job", jobID, "error", err)
	}
	if err := o.snapshots.Delete(jobID); err != nil {
		o.logger.Warn("failed to delete snapshot", "job", jobID, "error", err)
	}
	return true, nil
}

func (o *Orchestrator) ownedDocumentJob(ctx context.Context, jobID, owner string) (*core.DocumentJob, error) {
	job, err := o.store.DocumentJobs().Get(ctx, jobID)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && job.Owner != owner) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return job, err
}

// ReclaimOrphans deletes backend indexes no database references.
func (o *Orchestrator) ReclaimOrphans(ctx context.Context) (index.ReclaimReport, error) {
	return o.indexes.ReclaimOrphans(ctx)
}
