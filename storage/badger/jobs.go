package badger

import (
	"context"
	"time"

	"github.com/poiesic/harvest/core"
	"github.com/poiesic/harvest/storage"
)

// ScrapeJobRepository implements storage.ScrapeJobRepository for BadgerDB.
type ScrapeJobRepository struct {
	table table[core.ScrapeJob]
}

var _ storage.ScrapeJobRepository = (*ScrapeJobRepository)(nil)

// NewScrapeJobRepository creates a new ScrapeJobRepository.
func NewScrapeJobRepository(backend *Backend) (*ScrapeJobRepository, error) {
	if backend == nil {
		return nil, storage.ErrBackendRequired
	}
	return &ScrapeJobRepository{table: table[core.ScrapeJob]{
		backend: backend,
		codec: codec[core.ScrapeJob]{
			prefix:    scrapeJobPrefix,
			marshal:   storage.MarshalScrapeJob,
			unmarshal: storage.UnmarshalScrapeJob,
			id:        func(j *core.ScrapeJob) string { return j.ID },
			owner:     func(j *core.ScrapeJob) string { return j.Owner },
			created:   func(j *core.ScrapeJob) time.Time { return j.CreatedAt },
			stamp: func(j *core.ScrapeJob, created, updated time.Time) {
				j.CreatedAt, j.UpdatedAt = created, updated
			},
			check: storage.CheckScrapeJobUpdate,
		},
	}}, nil
}

func (r *ScrapeJobRepository) Create(ctx context.Context, job *core.ScrapeJob) error {
	return r.table.create(ctx, job)
}

func (r *ScrapeJobRepository) Get(ctx context.Context, id string) (*core.ScrapeJob, error) {
	return r.table.get(ctx, id)
}

func (r *ScrapeJobRepository) Update(ctx context.Context, id string, fn func(job *core.ScrapeJob) error) (*core.ScrapeJob, error) {
	return r.table.update(ctx, id, fn)
}

func (r *ScrapeJobRepository) List(ctx context.Context, owner string) ([]*core.ScrapeJob, error) {
	return r.table.list(ctx, owner)
}

func (r *ScrapeJobRepository) ListByStatus(ctx context.Context, status core.JobStatus) ([]*core.ScrapeJob, error) {
	return r.table.scan(ctx, func(j *core.ScrapeJob) bool { return j.Status == status })
}

func (r *ScrapeJobRepository) Delete(ctx context.Context, id string) error {
	return r.table.delete(ctx, id)
}

// DocumentJobRepository implements storage.DocumentJobRepository for BadgerDB.
type DocumentJobRepository struct {
	table table[core.DocumentJob]
}

var _ storage.DocumentJobRepository = (*DocumentJobRepository)(nil)

// NewDocumentJobRepository creates a new DocumentJobRepository.
func NewDocumentJobRepository(backend *Backend) (*DocumentJobRepository, error) {
	if backend == nil {
		return nil, storage.ErrBackendRequired
	}
	return &DocumentJobRepository{table: table[core.DocumentJob]{
		backend: backend,
		codec: codec[core.DocumentJob]{
			prefix:    documentJobPrefix,
			marshal:   storage.MarshalDocumentJob,
			unmarshal: storage.UnmarshalDocumentJob,
			id:        func(j *core.DocumentJob) string { return j.ID },
			owner:     func(j *core.DocumentJob) string { return j.Owner },
			created:   func(j *core.DocumentJob) time.Time { return j.CreatedAt },
			stamp: func(j *core.DocumentJob, created, updated time.Time) {
				j.CreatedAt, j.UpdatedAt = created, updated
			},
			check: storage.CheckDocumentJobUpdate,
		},
	}}, nil
}

func (r *DocumentJobRepository) Create(ctx context.Context, job *core.DocumentJob) error {
	return r.table.create(ctx, job)
}

func (r *DocumentJobRepository) Get(ctx context.Context, id string) (*core.DocumentJob, error) {
	return r.table.get(ctx, id)
}

func (r *DocumentJobRepository) Update(ctx context.Context, id string, fn func(job *core.DocumentJob) error) (*core.DocumentJob, error) {
	return r.table.update(ctx, id, fn)
}

func (r *DocumentJobRepository) List(ctx context.Context, owner string) ([]*core.DocumentJob, error) {
	return r.table.list(ctx, owner)
}

func (r *DocumentJobRepository) ListByStatus(ctx context.Context, status core.JobStatus) ([]*core.DocumentJob, error) {
	return r.table.scan(ctx, func(j *core.DocumentJob) bool { return j.Status == status })
}

func (r *DocumentJobRepository) Delete(ctx context.Context, id string) error {
	return r.table.delete(ctx, id)
}
