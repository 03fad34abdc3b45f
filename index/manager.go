package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultPrefix marks indexes that belong to this system and may be reclaimed.
	DefaultPrefix = "harvest-"

	// reservationTTL protects a freshly created index from reclaim until its
	// database record has been written.
	reservationTTL = 5 * time.Minute
)

// ReclaimFailure records one index that could not be deleted.
type ReclaimFailure struct {
	Index string `json:"index"`
	Error string `json:"error"`
}

// ReclaimReport summarizes a ReclaimOrphans run.
type ReclaimReport struct {
	Scanned  int              `json:"scanned"`
	Orphaned int              `json:"orphaned"`
	Deleted  int              `json:"deleted"`
	Failures []ReclaimFailure `json:"failures,omitempty"`
}

// Manager owns the lifecycle of backend indexes.
type Manager struct {
	backend Backend
	records RecordSource
	prefix  string
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	reserved map[string]time.Time
}

// Option configures a Manager.
type Option func(*Manager) error

// WithPrefix sets the reserved name prefix.
func WithPrefix(prefix string) Option {
	return func(m *Manager) error {
		if prefix == "" {
			return fmt.Errorf("%w: empty prefix", ErrInvalidIndexName)
		}
		m.prefix = prefix
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) error {
		m.logger = logger
		return nil
	}
}

// NewManager creates a Manager over backend. records lists the index names
// that have an owning database record.
func NewManager(backend Backend, records RecordSource, opts ...Option) (*Manager, error) {
	if backend == nil {
		return nil, ErrBackendRequired
	}
	if records == nil {
		return nil, ErrRecordsRequired
	}
	m := &Manager{
		backend:  backend,
		records:  records,
		prefix:   DefaultPrefix,
		logger:   slog.Default(),
		now:      time.Now,
		reserved: make(map[string]time.Time),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	m.logger = m.logger.With("component", "index-manager")
	return m, nil
}

// IndexName returns the backend index name of a database.
func (m *Manager) IndexName(databaseID string) string {
	return m.prefix + strings.ToLower(databaseID)
}

// Prefix returns the reserved name prefix.
func (m *Manager) Prefix() string {
	return m.prefix
}

// EnsureIndex creates name if it does not exist. When the backend quota is
// exhausted it reclaims orphaned indexes once and tries again.
func (m *Manager) EnsureIndex(ctx context.Context, name string, desc Descriptor) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := desc.Validate(); err != nil {
		return err
	}

	names, err := m.backend.ListIndexes(ctx)
	if err != nil {
		return err
	}
	if slices.Contains(names, name) {
		return nil
	}

	quota, err := m.backend.Quota(ctx)
	if err != nil {
		return err
	}
	if quota.Exhausted() {
		m.logger.Warn("index quota exhausted, reclaiming orphans", "used", quota.Used, "max", quota.Max)
		report, err := m.ReclaimOrphans(ctx)
		if err != nil {
			return err
		}
		if quota, err = m.backend.Quota(ctx); err != nil {
			return err
		}
		if quota.Exhausted() {
			return fmt.Errorf("%w: %d of %d indexes in use, %d reclaimed", ErrQuotaExceeded, quota.Used, quota.Max, report.Deleted)
		}
	}

	m.reserve(name)
	err = m.backend.CreateIndex(ctx, name, desc)
	if errors.Is(err, ErrIndexExists) {
		return nil
	}
	if err != nil {
		m.release(name)
		return err
	}
	m.logger.Info("index created", "index", name, "dimension", desc.Dimension())
	return nil
}

// ReclaimOrphans deletes backend indexes carrying the reserved prefix that no
// database record references.
func (m *Manager) ReclaimOrphans(ctx context.Context) (ReclaimReport, error) {
	var report ReclaimReport

	names, err := m.backend.ListIndexes(ctx)
	if err != nil {
		return report, err
	}
	owned, err := m.records.IndexNames(ctx)
	if err != nil {
		return report, err
	}

	for _, name := range names {
		report.Scanned++
		if !strings.HasPrefix(name, m.prefix) || owned[name] || m.isReserved(name) {
			continue
		}
		report.Orphaned++
		if err := m.backend.DeleteIndex(ctx, name); err != nil && !errors.Is(err, ErrIndexNotFound) {
			m.logger.Warn("failed to delete orphaned index", "index", name, "error", err)
			report.Failures = append(report.Failures, ReclaimFailure{Index: name, Error: err.Error()})
			continue
		}
		report.Deleted++
	}

	m.logger.Info("orphan reclaim finished",
		"scanned", report.Scanned,
		"orphaned", report.Orphaned,
		"deleted", report.Deleted,
		"failures", len(report.Failures))
	return report, nil
}

// DeleteIndex removes name. A missing index is not an error. Other failures
// are logged and returned; callers deleting a database record proceed anyway.
func (m *Manager) DeleteIndex(ctx context.Context, name string) error {
	m.release(name)
	err := m.backend.DeleteIndex(ctx, name)
	if err == nil || errors.Is(err, ErrIndexNotFound) {
		return nil
	}
	m.logger.Warn("failed to delete index", "index", name, "error", err)
	return err
}

// UploadBatch upserts docs into name and returns the number written.
func (m *Manager) UploadBatch(ctx context.Context, name string, docs []Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	for i := range docs {
		if docs[i].ID == "" {
			return 0, fmt.Errorf("%w: document %d has no id", ErrInvalidDocument, i)
		}
	}
	n, err := m.backend.Upsert(ctx, name, docs)
	if err != nil {
		return n, fmt.Errorf("%w: %s: %w", ErrUploadFailed, name, err)
	}
	return n, nil
}

// Search runs q against name.
func (m *Manager) Search(ctx context.Context, name string, q Query) ([]Hit, error) {
	if strings.TrimSpace(q.Text) == "" && len(q.Vector) == 0 {
		return nil, fmt.Errorf("%w: text or vector required", ErrInvalidQuery)
	}
	return m.backend.Query(ctx, name, q)
}

// Count returns the number of documents in name.
func (m *Manager) Count(ctx context.Context, name string) (int, error) {
	return m.backend.Count(ctx, name)
}

// Quota reports the backend's index allowance.
func (m *Manager) Quota(ctx context.Context) (Quota, error) {
	return m.backend.Quota(ctx)
}

func (m *Manager) reserve(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reserved[name] = m.now()
}

func (m *Manager) release(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reserved, name)
}

func (m *Manager) isReserved(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.reserved[name]
	if !ok {
		return false
	}
	if m.now().Sub(at) > reservationTTL {
		delete(m.reserved, name)
		return false
	}
	return true
}
