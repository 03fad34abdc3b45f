package ingestion

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/poiesic/harvest/chunker"
	"github.com/poiesic/harvest/core"
	"github.com/poiesic/harvest/index"
	"github.com/poiesic/harvest/loader"
	"github.com/poiesic/harvest/storage"
)

// DatabaseRequest describes a vector database to build.
type DatabaseRequest struct {
	Owner       string
	Name        string
	Description string
	Sources     core.SourceSet
}

// CreateVectorDatabase validates the request and its sources, creates the
// backing index, persists a building record and submits the build. Every
// source must be owned by the caller, completed and still have its snapshot.
func (o *Orchestrator) CreateVectorDatabase(ctx context.Context, req DatabaseRequest) (string, error) {
	db := &core.VectorDatabase{
		ID:          core.NewID(),
		Owner:       strings.TrimSpace(req.Owner),
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Sources:     req.Sources,
		Status:      core.DatabaseStatusBuilding,
		Message:     msgBuildQueued,
	}
	if err := core.ValidateVectorDatabase(db); err != nil {
		return "", err
	}
	if err := o.checkSources(ctx, db.Owner, db.Sources); err != nil {
		return "", err
	}

	dim, err := o.embedder.Dimension(ctx)
	if err != nil {
		return "", fmt.Errorf("probe embedding dimension: %w", err)
	}
	db.IndexName = o.indexes.IndexName(db.ID)
	if err := o.indexes.EnsureIndex(ctx, db.IndexName, index.NewDescriptor(dim)); err != nil {
		return "", err
	}
	if err := o.store.Databases().Create(ctx, db); err != nil {
		_ = o.indexes.DeleteIndex(ctx, db.IndexName)
		return "", err
	}

	err = o.executor.Submit(Task{
		Key:  databaseKey(db.ID),
		Run:  func(ctx context.Context) error { return o.runBuild(ctx, db.ID) },
		Fail: func(err error) { o.failBuild(db.ID, err) },
	})
	if err != nil {
		o.failBuild(db.ID, err)
		return "", err
	}
	o.logger.Info("vector database build submitted", "database", db.ID, "owner", db.Owner,
		"index", db.IndexName, "sources", len(db.Sources.JobIDs()))
	return db.ID, nil
}

func (o *Orchestrator) checkSources(ctx context.Context, owner string, sources core.SourceSet) error {
	if id := sources.ScrapeJobID; id != "" {
		job, err := o.store.ScrapeJobs().Get(ctx, id)
		if err := sourceState(id, owner, job, err, func(j *core.ScrapeJob) (string, core.JobStatus) { return j.Owner, j.Status }); err != nil {
			return err
		}
		if err := o.checkSnapshot(id); err != nil {
			return err
		}
	}
	for _, id := range sources.DocumentJobIDs {
		job, err := o.store.DocumentJobs().Get(ctx, id)
		if err := sourceState(id, owner, job, err, func(j *core.DocumentJob) (string, core.JobStatus) { return j.Owner, j.Status }); err != nil {
			return err
		}
		if err := o.checkSnapshot(id); err != nil {
			return err
		}
	}
	return nil
}

func sourceState[T any](id, owner string, job T, err error, fields func(T) (string, core.JobStatus)) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrSourceNotFound, id)
	}
	if err != nil {
		return err
	}
	jobOwner, status := fields(job)
	if jobOwner != owner {
		return fmt.Errorf("%w: %s", ErrSourceNotFound, id)
	}
	if status != core.JobStatusCompleted {
		return fmt.Errorf("%w: %s is %s", ErrSourceNotCompleted, id, status)
	}
	return nil
}

func (o *Orchestrator) checkSnapshot(jobID string) error {
	ok, err := o.snapshots.Exists(jobID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrSnapshotMissing, jobID)
	}
	return nil
}

func (o *Orchestrator) runBuild(ctx context.Context, dbID string) error {
	db, err := o.store.Databases().Get(ctx, dbID)
	if err != nil {
		return err
	}
	stats, err := o.indexSources(ctx, db)
	if err != nil {
		return err
	}
	_, err = o.store.Databases().Update(ctx, dbID, func(d *core.VectorDatabase) error {
		d.Status = core.DatabaseStatusReady
		d.DocumentCount = stats.documents
		d.ChunkCount = stats.chunks
		d.Message = msgBuildReady
		return nil
	})
	if err != nil {
		return err
	}
	o.logger.Info("vector database ready", "database", dbID,
		"documents", stats.documents, "chunks", stats.chunks, "skipped", stats.skipped)
	return nil
}

type buildStats struct {
	records   int
	documents int
	chunks    int
	skipped   int
}

// indexSources chunks, embeds and uploads every record of every source of db.
// A record whose embedding fails is skipped; any other error aborts. Chunk ids
// depend only on the record position, so running it again overwrites.
func (o *Orchestrator) indexSources(ctx context.Context, db *core.VectorDatabase) (buildStats, error) {
	var (
		stats  buildStats
		batch  = make([]index.Document, 0, o.uploadBatchSize)
		logger = o.logger.With("database", db.ID, "index", db.IndexName)
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := o.indexes.UploadBatch(ctx, db.IndexName, batch)
		if err != nil {
			return err
		}
		stats.chunks += n
		logger.Debug("batch uploaded", "chunks", n, "total", stats.chunks)
		batch = make([]index.Document, 0, o.uploadBatchSize)
		return nil
	}

	for _, jobID := range db.Sources.JobIDs() {
		records, err := o.snapshots.Load(jobID)
		if err != nil {
			return stats, fmt.Errorf("load snapshot %s: %w", jobID, err)
		}
		for i := range records {
			record := &records[i]
			position := stats.records
			stats.records++

			spans := chunker.Chunk(record.Content, o.chunkSize, o.chunkOverlap)
			if len(spans) == 0 {
				continue
			}
			texts := make([]string, len(spans))
			for j, span := range spans {
				texts[j] = span.Text
			}
			vectors, err := o.embedder.Embed(ctx, texts)
			if err != nil {
				if ctx.Err() != nil {
					return stats, ctx.Err()
				}
				stats.skipped++
				logger.Warn("skipping record after embedding failure", "source", record.Source(), "error", err)
				continue
			}

			for j, span := range spans {
				batch = append(batch, chunkDocument(db.ID, position, record, span, vectors[j]))
				if len(batch) >= o.uploadBatchSize {
					if err := flush(); err != nil {
						return stats, err
					}
				}
			}
			stats.documents++
		}
	}
	if err := flush(); err != nil {
		return stats, err
	}
	if stats.documents == 0 {
		return stats, fmt.Errorf("%w: %d records, %d skipped", ErrNothingIndexed, stats.records, stats.skipped)
	}
	return stats, nil
}

func chunkDocument(dbID string, sourceIndex int, record *core.RawContentRecord, span chunker.Span, vector []float32) index.Document {
	md := make(map[string]string, len(record.Metadata)+1)
	maps.Copy(md, record.Metadata)
	md["content_hash"] = core.ContentDigest([]byte(span.Text))

	return index.Document{
		ID:         core.ChunkID(dbID, sourceIndex, span.Index),
		Content:    span.Text,
		Title:      record.Title,
		URL:        record.Source(),
		ChunkIndex: span.Index,
		SourceType: sourceType(record),
		Metadata:   md,
		Vector:     vector,
	}
}

func sourceType(record *core.RawContentRecord) string {
	if t := record.Metadata["source_type"]; t != "" {
		return t
	}
	if record.URL != "" {
		return core.SourceTypeWeb
	}
	return loader.SourceType(record.Filename)
}

func (o *Orchestrator) failBuild(dbID string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), statusWriteTimeout)
	defer cancel()

	_, err := o.store.Databases().Update(ctx, dbID, func(d *core.VectorDatabase) error {
		d.Status = core.DatabaseStatusError
		d.Message = msgBuildFailed + cause.Error()
		return nil
	})
	if err != nil {
		o.logger.Error("failed to record build failure", "database", dbID, "cause", cause, "error", err)
	}
}

// GetDatabaseStatus returns the database if owner owns it.
func (o *Orchestrator) GetDatabaseStatus(ctx context.Context, dbID, owner string) (*DatabaseStatusView, error) {
	db, err := o.ownedDatabase(ctx, dbID, owner)
	if err != nil {
		return nil, err
	}
	return newDatabaseStatusView(db), nil
}

// ListDatabases returns owner's databases, newest first.
func (o *Orchestrator) ListDatabases(ctx context.Context, owner string) ([]*DatabaseStatusView, error) {
	if strings.TrimSpace(owner) == "" {
		return nil, core.ErrEmptyOwner
	}
	dbs, err := o.store.Databases().List(ctx, owner)
	if err != nil {
		return nil, err
	}
	views := make([]*DatabaseStatusView, len(dbs))
	for i, db := range dbs {
		views[i] = newDatabaseStatusView(db)
	}
	return views, nil
}

// DeleteDatabase deletes the backing index, best effort, then the record.
// It reports false when the database does not exist or belongs to someone else.
func (o *Orchestrator) DeleteDatabase(ctx context.Context, dbID, owner string) (bool, error) {
	db, err := o.ownedDatabase(ctx, dbID, owner)
	if errors.Is(err, ErrDatabaseNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if o.executor.Running(databaseKey(dbID)) {
		return false, fmt.Errorf("%w: %s", ErrJobRunning, dbID)
	}

	if err := o.indexes.DeleteIndex(ctx, db.IndexName); err != nil {
		o.logger.Warn("index delete failed, leaving it for reclaim", "database", dbID, "index", db.IndexName, "error", err)
	}
	if err := o.store.Databases().Delete(ctx, dbID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	o.deleteChatSessions(ctx, db)
	o.logger.Info("vector database deleted", "database", dbID)
	return true, nil
}

// deleteChatSessions removes the owner's chat sessions on a deleted
// database. Failures are logged; a session left behind only fails its
// next turn as not found.
func (o *Orchestrator) deleteChatSessions(ctx context.Context, db *core.VectorDatabase) {
	sessions, err := o.store.ChatSessions().List(ctx, db.Owner)
	if err != nil {
		o.logger.Warn("failed to list chat sessions", "database", db.ID, "error", err)
		return
	}
	for _, s := range sessions {
		if s.DatabaseID != db.ID {
			continue
		}
		if err := o.store.ChatSessions().Delete(ctx, s.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			o.logger.Warn("failed to delete chat session", "database", db.ID, "session", s.ID, "error", err)
		}
	}
}

func (o *Orchestrator) ownedDatabase(ctx context.Context, dbID, owner string) (*core.VectorDatabase, error) {
	db, err := o.store.Databases().Get(ctx, dbID)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && db.Owner != owner) {
		return nil, fmt.Errorf("%w: %s", ErrDatabaseNotFound, dbID)
	}
	return db, err
}
