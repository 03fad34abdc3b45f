package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/poiesic/harvest/core"
	"github.com/poiesic/harvest/storage"
)

// ScrapeJobRepository implements storage.ScrapeJobRepository.
type ScrapeJobRepository struct {
	table table[core.ScrapeJob]
}

var _ storage.ScrapeJobRepository = (*ScrapeJobRepository)(nil)

func newScrapeJobRepository(pool *pgxpool.Pool) *ScrapeJobRepository {
	return &ScrapeJobRepository{table: table[core.ScrapeJob]{
		pool: pool,
		codec: codec[core.ScrapeJob]{
			table:     "scrape_jobs",
			marshal:   storage.MarshalScrapeJob,
			unmarshal: storage.UnmarshalScrapeJob,
			id:        func(j *core.ScrapeJob) string { return j.ID },
			owner:     func(j *core.ScrapeJob) string { return j.Owner },
			status:    func(j *core.ScrapeJob) string { return string(j.Status) },
			created:   func(j *core.ScrapeJob) time.Time { return j.CreatedAt },
			stamp: func(j *core.ScrapeJob, created, updated time.Time) {
				j.CreatedAt, j.UpdatedAt = created, updated
			},
			check: storage.CheckScrapeJobUpdate,
		},
	}}
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
	return r.table.listByStatus(ctx, string(status))
}

func (r *ScrapeJobRepository) Delete(ctx context.Context, id string) error {
	return r.table.delete(ctx, id)
}

// DocumentJobRepository implements storage.DocumentJobRepository.
type DocumentJobRepository struct {
	table table[core.DocumentJob]
}

var _ storage.DocumentJobRepository = (*DocumentJobRepository)(nil)

func newDocumentJobRepository(pool *pgxpool.Pool) *DocumentJobRepository {
	return &DocumentJobRepository{table: table[core.DocumentJob]{
		pool: pool,
		codec: codec[core.DocumentJob]{
			table:     "document_jobs",
			marshal:   storage.MarshalDocumentJob,
			unmarshal: storage.UnmarshalDocumentJob,
			id:        func(j *core.DocumentJob) string { return j.ID },
			owner:     func(j *core.DocumentJob) string { return j.Owner },
			status:    func(j *core.DocumentJob) string { return string(j.Status) },
			created:   func(j *core.DocumentJob) time.Time { return j.CreatedAt },
			stamp: func(j *core.DocumentJob, created, updated time.Time) {
				j.CreatedAt, j.UpdatedAt = created, updated
			},
			check: storage.CheckDocumentJobUpdate,
		},
	}}
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
	return r.table.listByStatus(ctx, string(status))
}

func (r *DocumentJobRepository) Delete(ctx context.Context, id string) error {
	return r.table.delete(ctx, id)
}

// DatabaseRepository implements storage.DatabaseRepository.
type DatabaseRepository struct {
	table table[core.VectorDatabase]
}

var _ storage.DatabaseRepository = (*DatabaseRepository)(nil)

func newDatabaseRepository(pool *pgxpool.Pool) *DatabaseRepository {
	return &DatabaseRepository{table: table[core.VectorDatabase]{
		pool: pool,
		codec: codec[core.VectorDatabase]{
			table:     "vector_databases",
			marshal:   storage.MarshalDatabase,
			unmarshal: storage.UnmarshalDatabase,
			id:        func(d *core.VectorDatabase) string { return d.ID },
			owner:     func(d *core.VectorDatabase) string { return d.Owner },
			status:    func(d *core.VectorDatabase) string { return string(d.Status) },
			created:   func(d *core.VectorDatabase) time.Time { return d.CreatedAt },
			stamp: func(d *core.VectorDatabase, created, updated time.Time) {
				d.CreatedAt, d.UpdatedAt = created, updated
			},
			check:     storage.CheckDatabaseUpdate,
			extraCols: []string{"index_name"},
			extra:     func(d *core.VectorDatabase) []any { return []any{d.IndexName} },
		},
	}}
}

func (r *DatabaseRepository) Create(ctx context.Context, db *core.VectorDatabase) error {
	return r.table.create(ctx, db)
}

func (r *DatabaseRepository) Get(ctx context.Context, id string) (*core.VectorDatabase, error) {
	return r.table.get(ctx, id)
}

func (r *DatabaseRepository) Update(ctx context.Context, id string, fn func(db *core.VectorDatabase) error) (*core.VectorDatabase, error) {
	return r.table.update(ctx, id, fn)
}

func (r *DatabaseRepository) List(ctx context.Context, owner string) ([]*core.VectorDatabase, error) {
	return r.table.list(ctx, owner)
}

func (r *DatabaseRepository) ListByStatus(ctx context.Context, status core.DatabaseStatus) ([]*core.VectorDatabase, error) {
	return r.table.listByStatus(ctx, string(status))
}

func (r *DatabaseRepository) IndexNames(ctx context.Context) (map[string]bool, error) {
	rows, err := r.table.pool.Query(ctx, "SELECT index_name FROM vector_databases")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names[name] = true
	}
	return names, rows.Err()
}

func (r *DatabaseRepository) Delete(ctx context.Context, id string) error {
	return r.table.delete(ctx, id)
}
