package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/harvest/core"
	"github.com/poiesic/harvest/storage"
)

// DatabaseRepository implements storage.DatabaseRepository for BadgerDB.
// Index names are unique across all records.
type DatabaseRepository struct {
	table table[core.VectorDatabase]
}

var _ storage.DatabaseRepository = (*DatabaseRepository)(nil)

// NewDatabaseRepository creates a new DatabaseRepository.
func NewDatabaseRepository(backend *Backend) (*DatabaseRepository, error) {
	if backend == nil {
		return nil, storage.ErrBackendRequired
	}
	return &DatabaseRepository{table: table[core.VectorDatabase]{
		backend: backend,
		codec: codec[core.VectorDatabase]{
			prefix:    databasePrefix,
			marshal:   storage.MarshalDatabase,
			unmarshal: storage.UnmarshalDatabase,
			id:        func(d *core.VectorDatabase) string { return d.ID },
			owner:     func(d *core.VectorDatabase) string { return d.Owner },
			created:   func(d *core.VectorDatabase) time.Time { return d.CreatedAt },
			stamp: func(d *core.VectorDatabase, created, updated time.Time) {
				d.CreatedAt, d.UpdatedAt = created, updated
			},
			check: storage.CheckDatabaseUpdate,
			index: func(d *core.VectorDatabase) []byte { return makeIndexNameKey(d.IndexName) },
		},
	}}, nil
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
	return r.table.scan(ctx, func(d *core.VectorDatabase) bool { return d.Status == status })
}

// IndexNames reads the index name key space directly, without decoding records.
func (r *DatabaseRepository) IndexNames(ctx context.Context) (map[string]bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	names := make(map[string]bool)
	err := r.table.backend.View(func(tx *badger.Txn) error {
		prefix := makeIndexNameKey("")
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			names[string(iter.Item().Key()[len(prefix):])] = true
		}
		return nil
	})
	return names, err
}

func (r *DatabaseRepository) Delete(ctx context.Context, id string) error {
	return r.table.delete(ctx, id)
}
