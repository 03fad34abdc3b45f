// Package local is an embedded search backend on BadgerDB. Keyword queries
// rank with tf-idf, vector queries with cosine similarity, and hybrid queries
// fuse both rankings with reciprocal rank fusion.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/harvest/embedding"
	"github.com/poiesic/harvest/index"
	kv "github.com/poiesic/harvest/storage/badger"
)

const (
	// DefaultMaxIndexes matches the index allowance of a small hosted search tier.
	DefaultMaxIndexes = 15

	// DefaultTopK is used when a query sets no limit.
	DefaultTopK = 10

	rrfK = 60

	writeBatchSize = 100

	metaPrefix = "idxmeta:"
	docPrefix  = "idxdoc:"
)

// Backend implements index.Backend.
type Backend struct {
	kv         *kv.Backend
	maxIndexes int
	logger     *slog.Logger
}

var _ index.Backend = (*Backend)(nil)

// Option configures a Backend.
type Option func(*Backend) error

// WithMaxIndexes sets the index quota. 0 means unlimited.
func WithMaxIndexes(n int) Option {
	return func(b *Backend) error {
		if n < 0 {
			return fmt.Errorf("max indexes must be >= 0, got %d", n)
		}
		b.maxIndexes = n
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) error {
		b.logger = logger
		return nil
	}
}

// Open opens a backend stored in dir. An empty dir keeps everything in memory.
func Open(dir string, opts ...Option) (*Backend, error) {
	b := &Backend{
		maxIndexes: DefaultMaxIndexes,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	b.logger = b.logger.With("component", "local-index")

	store, err := kv.OpenBackend(dir, b.logger)
	if err != nil {
		return nil, err
	}
	b.kv = store
	return b, nil
}

// Close closes the underlying database.
func (b *Backend) Close() error {
	if b.kv.IsClosed() {
		return nil
	}
	return b.kv.Close()
}

func makeMetaKey(name string) []byte {
	return []byte(metaPrefix + name)
}

func makeDocPrefix(name string) []byte {
	return []byte(docPrefix + name + "/")
}

func makeDocKey(name, id string) []byte {
	return append(makeDocPrefix(name), id...)
}

// CreateIndex stores the descriptor. The quota check and the write share one
// transaction.
func (b *Backend) CreateIndex(ctx context.Context, name string, desc index.Descriptor) error {
	if err := index.ValidateName(name); err != nil {
		return err
	}
	if err := desc.Validate(); err != nil {
		return err
	}
	value, err := json.Marshal(desc)
	if err != nil {
		return err
	}
	return b.kv.Update(func(tx *badger.Txn) error {
		if _, err := tx.Get(makeMetaKey(name)); err == nil {
			return fmt.Errorf("%w: %s", index.ErrIndexExists, name)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if b.maxIndexes > 0 {
			used := len(listKeys(tx, []byte(metaPrefix)))
			if used >= b.maxIndexes {
				return fmt.Errorf("%w: %d of %d", index.ErrQuotaExceeded, used, b.maxIndexes)
			}
		}
		return tx.Set(makeMetaKey(name), value)
	})
}

// DeleteIndex removes the descriptor and every document of name.
func (b *Backend) DeleteIndex(ctx context.Context, name string) error {
	err := b.kv.Update(func(tx *badger.Txn) error {
		if _, err := tx.Get(makeMetaKey(name)); errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", index.ErrIndexNotFound, name)
		} else if err != nil {
			return err
		}
		return tx.Delete(makeMetaKey(name))
	})
	if err != nil {
		return err
	}

	var keys [][]byte
	err = b.kv.View(func(tx *badger.Txn) error {
		keys = listKeys(tx, makeDocPrefix(name))
		return nil
	})
	if err != nil {
		return err
	}
	for batch := range slices.Chunk(keys, writeBatchSize*10) {
		err := b.kv.Update(func(tx *badger.Txn) error {
			for _, key := range batch {
				if err := tx.Delete(key); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	b.logger.Debug("index deleted", "index", name, "documents", len(keys))
	return nil
}

// ListIndexes returns index names in lexical order.
func (b *Backend) ListIndexes(ctx context.Context) ([]string, error) {
	var names []string
	err := b.kv.View(func(tx *badger.Txn) error {
		for _, key := range listKeys(tx, []byte(metaPrefix)) {
			names = append(names, strings.TrimPrefix(string(key), metaPrefix))
		}
		return nil
	})
	return names, err
}

// Quota reports the number of indexes against the configured maximum.
func (b *Backend) Quota(ctx context.Context) (index.Quota, error) {
	names, err := b.ListIndexes(ctx)
	if err != nil {
		return index.Quota{}, err
	}
	return index.Quota{Used: len(names), Max: b.maxIndexes}, nil
}

// Upsert writes docs, replacing documents with the same id.
func (b *Backend) Upsert(ctx context.Context, name string, docs []index.Document) (int, error) {
	desc, err := b.descriptor(name)
	if err != nil {
		return 0, err
	}
	dim := desc.Dimension()
	for i := range docs {
		if docs[i].ID == "" {
			return 0, fmt.Errorf("%w: document %d has no id", index.ErrInvalidDocument, i)
		}
		if len(docs[i].Vector) != 0 && len(docs[i].Vector) != dim {
			return 0, fmt.Errorf("%w: document %s has %d dimensions, index has %d",
				index.ErrInvalidDocument, docs[i].ID, len(docs[i].Vector), dim)
		}
	}

	written := 0
	for batch := range slices.Chunk(docs, writeBatchSize) {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		err := b.kv.Update(func(tx *badger.Txn) error {
			for i := range batch {
				value, err := json.Marshal(&batch[i])
				if err != nil {
					return err
				}
				if err := tx.Set(makeDocKey(name, batch[i].ID), value); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return written, err
		}
		written += len(batch)
	}
	return written, nil
}

// Count returns the number of documents in name.
func (b *Backend) Count(ctx context.Context, name string) (int, error) {
	if _, err := b.descriptor(name); err != nil {
		return 0, err
	}
	var n int
	err := b.kv.View(func(tx *badger.Txn) error {
		n = len(listKeys(tx, makeDocPrefix(name)))
		return nil
	})
	return n, err
}

// Query ranks the documents of name. Text alone ranks by tf-idf over the
// searchable fields, a vector alone by cosine similarity, and both by
// reciprocal rank fusion of the two rankings.
func (b *Backend) Query(ctx context.Context, name string, q index.Query) ([]index.Hit, error) {
	desc, err := b.descriptor(name)
	if err != nil {
		return nil, err
	}
	for field := range q.Filters {
		if f, ok := desc.Field(field); !ok || !f.Filterable {
			return nil, fmt.Errorf("%w: field %q is not filterable", index.ErrInvalidQuery, field)
		}
	}
	if len(q.Vector) != 0 && len(q.Vector) != desc.Dimension() {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, index has %d",
			index.ErrInvalidQuery, len(q.Vector), desc.Dimension())
	}
	hasText := strings.TrimSpace(q.Text) != ""
	if !hasText && len(q.Vector) == 0 {
		return nil, fmt.Errorf("%w: text or vector required", index.ErrInvalidQuery)
	}

	docs, err := b.load(ctx, name, q.Filters)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(docs))
	for i := range docs {
		ids[i] = docs[i].ID
	}

	var rankings [][]ranked
	if hasText {
		terms := make([][]string, len(docs))
		for i := range docs {
			terms[i] = tokenize(searchableText(&docs[i], desc))
		}
		rankings = append(rankings, rank(tfidf(tokenize(q.Text), terms), ids))
	}
	if len(q.Vector) != 0 {
		scores := make(map[int]float64, len(docs))
		for i := range docs {
			if len(docs[i].Vector) == 0 {
				continue
			}
			scores[i] = float64(embedding.CosineSimilarity(q.Vector, docs[i].Vector))
		}
		rankings = append(rankings, rank(scores, ids))
	}

	final := rankings[0]
	if len(rankings) > 1 {
		final = rank(fuse(rrfK, rankings...), ids)
	}

	topK := q.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	if len(final) > topK {
		final = final[:topK]
	}
	hits := make([]index.Hit, len(final))
	for i, r := range final {
		hits[i] = index.Hit{Document: docs[r.pos], Score: float32(r.score)}
	}
	return hits, nil
}

func (b *Backend) descriptor(name string) (index.Descriptor, error) {
	var desc index.Descriptor
	err := b.kv.View(func(tx *badger.Txn) error {
		item, err := tx.Get(makeMetaKey(name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", index.ErrIndexNotFound, name)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &desc)
		})
	})
	return desc, err
}

// load reads every document of name that matches filters, in key order.
func (b *Backend) load(ctx context.Context, name string, filters map[string]string) ([]index.Document, error) {
	var docs []index.Document
	err := b.kv.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeDocPrefix(name)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var doc index.Document
			if err := iter.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &doc)
			}); err != nil {
				return err
			}
			if matches(&doc, filters) {
				docs = append(docs, doc)
			}
		}
		return nil
	})
	return docs, err
}

func matches(doc *index.Document, filters map[string]string) bool {
	for field, want := range filters {
		var got string
		switch field {
		case index.FieldID:
			got = doc.ID
		case index.FieldTitle:
			got = doc.Title
		case index.FieldURL:
			got = doc.URL
		case index.FieldChunkIndex:
			got = strconv.Itoa(doc.ChunkIndex)
		case index.FieldSourceType:
			got = doc.SourceType
		}
		if got != want {
			return false
		}
	}
	return true
}

func searchableText(doc *index.Document, desc index.Descriptor) string {
	var sb strings.Builder
	for _, field := range desc.Searchable() {
		switch field {
		case index.FieldContent:
			sb.WriteString(doc.Content)
		case index.FieldTitle:
			sb.WriteString(doc.Title)
		case index.FieldMetadata:
			for _, k := range slices.Sorted(maps.Keys(doc.Metadata)) {
				sb.WriteString(doc.Metadata[k])
				sb.WriteByte(' ')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// listKeys returns copies of every key under prefix.
func listKeys(tx *badger.Txn, prefix []byte) [][]byte {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)
	defer iter.Close()

	var keys [][]byte
	for iter.Rewind(); iter.Valid(); iter.Next() {
		keys = append(keys, iter.Item().KeyCopy(nil))
	}
	return keys
}
