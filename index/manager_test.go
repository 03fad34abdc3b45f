package index

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend is an in-memory Backend with a fixed index quota.
type fakeBackend struct {
	mu         sync.Mutex
	indexes    map[string]map[string]Document
	max        int
	deleteErr  map[string]error
	upsertErr  error
	deleteHits []string
}

func newFakeBackend(max int) *fakeBackend {
	return &fakeBackend{indexes: make(map[string]map[string]Document), max: max, deleteErr: make(map[string]error)}
}

func (f *fakeBackend) CreateIndex(ctx context.Context, name string, desc Descriptor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.indexes[name]; ok {
		return ErrIndexExists
	}
	if f.max > 0 && len(f.indexes) >= f.max {
		return ErrQuotaExceeded
	}
	f.indexes[name] = make(map[string]Document)
	return nil
}

func (f *fakeBackend) DeleteIndex(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteHits = append(f.deleteHits, name)
	if err := f.deleteErr[name]; err != nil {
		return err
	}
	if _, ok := f.indexes[name]; !ok {
		return ErrIndexNotFound
	}
	delete(f.indexes, name)
	return nil
}

func (f *fakeBackend) ListIndexes(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.indexes))
	for name := range f.indexes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

func (f *fakeBackend) Quota(ctx context.Context) (Quota, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Quota{Used: len(f.indexes), Max: f.max}, nil
}

func (f *fakeBackend) Upsert(ctx context.Context, name string, docs []Document) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return 0, f.upsertErr
	}
	idx, ok := f.indexes[name]
	if !ok {
		return 0, ErrIndexNotFound
	}
	for _, d := range docs {
		idx[d.ID] = d
	}
	return len(docs), nil
}

func (f *fakeBackend) Query(ctx context.Context, name string, q Query) ([]Hit, error) {
	return nil, nil
}

func (f *fakeBackend) Count(ctx context.Context, name string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx, ok := f.indexes[name]
	if !ok {
		return 0, ErrIndexNotFound
	}
	return len(idx), nil
}

func (f *fakeBackend) Close() error { return nil }

func (f *fakeBackend) has(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.indexes[name]
	return ok
}

type fakeRecords map[string]bool

func (r fakeRecords) IndexNames(ctx context.Context) (map[string]bool, error) {
	return r, nil
}

func newTestManager(t *testing.T, backend Backend, records RecordSource) *Manager {
	t.Helper()
	m, err := NewManager(backend, records)
	require.NoError(t, err)
	return m
}

func TestNewManager_RequiresDependencies(t *testing.T) {
	_, err := NewManager(nil, fakeRecords{})
	assert.ErrorIs(t, err, ErrBackendRequired)
	_, err = NewManager(newFakeBackend(0), nil)
	assert.ErrorIs(t, err, ErrRecordsRequired)
	_, err = NewManager(newFakeBackend(0), fakeRecords{}, WithPrefix(""))
	assert.ErrorIs(t, err, ErrInvalidIndexName)
}

func TestManager_IndexName(t *testing.T) {
	m := newTestManager(t, newFakeBackend(0), fakeRecords{})
	name := m.IndexName("0F8FAD5B-D9CB-469F-A165-70867728950E")
	assert.Equal(t, "harvest-0f8fad5b-d9cb-469f-a165-70867728950e", name)
	assert.NoError(t, ValidateName(name))
}

func TestManager_EnsureIndexIdempotent(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend(0)
	m := newTestManager(t, backend, fakeRecords{})

	require.NoError(t, m.EnsureIndex(ctx, "harvest-a", NewDescriptor(8)))
	require.NoError(t, m.EnsureIndex(ctx, "harvest-a", NewDescriptor(8)))
	names, _ := backend.ListIndexes(ctx)
	assert.Equal(t, []string{"harvest-a"}, names)
}

func TestManager_EnsureIndexValidates(t *testing.T) {
	m := newTestManager(t, newFakeBackend(0), fakeRecords{})
	ctx := context.Background()

	assert.ErrorIs(t, m.EnsureIndex(ctx, "Bad_Name", NewDescriptor(8)), ErrInvalidIndexName)
	assert.ErrorIs(t, m.EnsureIndex(ctx, "harvest-a", NewDescriptor(0)), ErrInvalidDescriptor)
}

func TestManager_EnsureIndexReclaimsWhenFull(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend(3)
	for _, name := range []string{"harvest-kept", "harvest-orphan", "other-service"} {
		require.NoError(t, backend.CreateIndex(ctx, name, NewDescriptor(8)))
	}
	m := newTestManager(t, backend, fakeRecords{"harvest-kept": true})

	require.NoError(t, m.EnsureIndex(ctx, "harvest-new", NewDescriptor(8)))
	assert.True(t, backend.has("harvest-new"))
	assert.True(t, backend.has("harvest-kept"))
	assert.True(t, backend.has("other-service"))
	assert.False(t, backend.has("harvest-orphan"))
}

func TestManager_EnsureIndexQuotaExceeded(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend(2)
	require.NoError(t, backend.CreateIndex(ctx, "harvest-a", NewDescriptor(8)))
	require.NoError(t, backend.CreateIndex(ctx, "harvest-b", NewDescriptor(8)))
	m := newTestManager(t, backend, fakeRecords{"harvest-a": true, "harvest-b": true})

	err := m.EnsureIndex(ctx, "harvest-c", NewDescriptor(8))
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.False(t, backend.has("harvest-c"))
}

func TestManager_ReclaimOrphansDeletesExactlyUnreferenced(t *testing.T) {
	ctx := context.Background()
	const n, mRefs = 7, 3

	backend := newFakeBackend(0)
	records := fakeRecords{}
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("harvest-db%d", i)
		require.NoError(t, backend.CreateIndex(ctx, name, NewDescriptor(8)))
		if i < mRefs {
			records[name] = true
		}
	}
	require.NoError(t, backend.CreateIndex(ctx, "foreign-index", NewDescriptor(8)))
	m := newTestManager(t, backend, records)

	report, err := m.ReclaimOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, n+1, report.Scanned)
	assert.Equal(t, n-mRefs, report.Orphaned)
	assert.Equal(t, n-mRefs, report.Deleted)
	assert.Empty(t, report.Failures)

	for name := range records {
		assert.True(t, backend.has(name), name)
	}
	assert.True(t, backend.has("foreign-index"))
	names, _ := backend.ListIndexes(ctx)
	assert.Len(t, names, mRefs+1)
}

func TestManager_ReclaimReportsFailures(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend(0)
	require.NoError(t, backend.CreateIndex(ctx, "harvest-stuck", NewDescriptor(8)))
	require.NoError(t, backend.CreateIndex(ctx, "harvest-gone", NewDescriptor(8)))
	backend.deleteErr["harvest-stuck"] = errors.New("service unavailable")
	m := newTestManager(t, backend, fakeRecords{})

	report, err := m.ReclaimOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Orphaned)
	assert.Equal(t, 1, report.Deleted)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "harvest-stuck", report.Failures[0].Index)
}

func TestManager_ReclaimSparesFreshlyCreatedIndex(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend(0)
	m := newTestManager(t, backend, fakeRecords{})
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	// Created but its database record is not written yet.
	require.NoError(t, m.EnsureIndex(ctx, "harvest-pending", NewDescriptor(8)))
	report, err := m.ReclaimOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Orphaned)
	assert.True(t, backend.has("harvest-pending"))

	now = now.Add(reservationTTL + time.Second)
	report, err = m.ReclaimOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deleted)
}

func TestManager_DeleteIndexBestEffort(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend(0)
	m := newTestManager(t, backend, fakeRecords{})

	assert.NoError(t, m.DeleteIndex(ctx, "harvest-missing"))

	require.NoError(t, backend.CreateIndex(ctx, "harvest-x", NewDescriptor(8)))
	backend.deleteErr["harvest-x"] = errors.New("boom")
	assert.Error(t, m.DeleteIndex(ctx, "harvest-x"))
}

func TestManager_UploadBatch(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend(0)
	m := newTestManager(t, backend, fakeRecords{})
	require.NoError(t, m.EnsureIndex(ctx, "harvest-a", NewDescriptor(2)))

	n, err := m.UploadBatch(ctx, "harvest-a", nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	docs := []Document{{ID: "a_0_0", Content: "x"}, {ID: "a_0_1", Content: "y"}}
	n, err = m.UploadBatch(ctx, "harvest-a", docs)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Same ids again overwrite.
	n, err = m.UploadBatch(ctx, "harvest-a", docs)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	count, err := m.Count(ctx, "harvest-a")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = m.UploadBatch(ctx, "harvest-a", []Document{{Content: "no id"}})
	assert.ErrorIs(t, err, ErrInvalidDocument)

	backend.upsertErr = errors.New("throttled")
	_, err = m.UploadBatch(ctx, "harvest-a", docs)
	assert.ErrorIs(t, err, ErrUploadFailed)
}

func TestManager_SearchRequiresTextOrVector(t *testing.T) {
	m := newTestManager(t, newFakeBackend(0), fakeRecords{})
	_, err := m.Search(context.Background(), "harvest-a", Query{Text: "  "})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestDescriptor(t *testing.T) {
	d := NewDescriptor(384)
	require.NoError(t, d.Validate())
	assert.Equal(t, 384, d.Dimension())
	assert.Equal(t, []string{FieldContent, FieldTitle, FieldMetadata}, d.Searchable())

	f, ok := d.Field(FieldSourceType)
	require.True(t, ok)
	assert.True(t, f.Filterable)

	d.Metric = "dot"
	assert.ErrorIs(t, d.Validate(), ErrInvalidDescriptor)
}

func TestQuotaExhausted(t *testing.T) {
	assert.False(t, Quota{Used: 100, Max: 0}.Exhausted())
	assert.False(t, Quota{Used: 14, Max: 15}.Exhausted())
	assert.True(t, Quota{Used: 15, Max: 15}.Exhausted())
}
