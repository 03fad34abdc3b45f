package badger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/harvest/storage"
)

// codec describes how one record kind is keyed, encoded and guarded.
type codec[T any] struct {
	prefix    string
	marshal   func(*T) ([]byte, error)
	unmarshal func([]byte) (*T, error)
	id        func(*T) string
	owner     func(*T) string
	created   func(*T) time.Time
	stamp     func(rec *T, created, updated time.Time)
	check     func(old, updated *T) error
	// index, when set, returns a secondary unique key for the record.
	index func(*T) []byte
	// cascade, when set, removes dependent keys in the delete transaction.
	cascade func(tx *badger.Txn, rec *T) error
}

// table implements the shared repository mechanics on top of a Backend.
type table[T any] struct {
	backend *Backend
	codec   codec[T]
}

func (t *table[T]) create(ctx context.Context, rec *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := time.Now().UTC()
	created := t.codec.created(rec)
	if created.IsZero() {
		created = now
	}
	t.codec.stamp(rec, created, now)

	value, err := t.codec.marshal(rec)
	if err != nil {
		return err
	}
	id := t.codec.id(rec)

	return t.backend.Update(func(tx *badger.Txn) error {
		key := makeRecordKey(t.codec.prefix, id)
		if exists, err := keyExists(tx, key); err != nil {
			return err
		} else if exists {
			return fmt.Errorf("%w: %s", storage.ErrDuplicateKey, id)
		}
		if t.codec.index != nil {
			idx := t.codec.index(rec)
			if exists, err := keyExists(tx, idx); err != nil {
				return err
			} else if exists {
				return fmt.Errorf("%w: %s", storage.ErrDuplicateKey, idx)
			}
			if err := tx.Set(idx, []byte(id)); err != nil {
				return err
			}
		}
		if err := tx.Set(key, value); err != nil {
			return err
		}
		return tx.Set(makeDateKey(t.codec.prefix, created, id), []byte(id))
	})
}

func (t *table[T]) get(ctx context.Context, id string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rec *T
	err := t.backend.View(func(tx *badger.Txn) error {
		var err error
		rec, err = t.read(tx, id)
		return err
	})
	return rec, err
}

func (t *table[T]) update(ctx context.Context, id string, fn func(*T) error) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var result *T
	err := t.backend.Update(func(tx *badger.Txn) error {
		old, err := t.read(tx, id)
		if err != nil {
			return err
		}
		// fn works on a private copy so a rejected change leaves old intact.
		updated, err := t.read(tx, id)
		if err != nil {
			return err
		}
		if err := fn(updated); err != nil {
			return err
		}
		if err := t.codec.check(old, updated); err != nil {
			return err
		}
		t.codec.stamp(updated, t.codec.created(old), time.Now().UTC())

		value, err := t.codec.marshal(updated)
		if err != nil {
			return err
		}
		if err := tx.Set(makeRecordKey(t.codec.prefix, id), value); err != nil {
			return err
		}
		result = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (t *table[T]) delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.backend.Update(func(tx *badger.Txn) error {
		rec, err := t.read(tx, id)
		if err != nil {
			return err
		}
		if t.codec.index != nil {
			if err := tx.Delete(t.codec.index(rec)); err != nil {
				return err
			}
		}
		if t.codec.cascade != nil {
			if err := t.codec.cascade(tx, rec); err != nil {
				return err
			}
		}
		if err := tx.Delete(makeDateKey(t.codec.prefix, t.codec.created(rec), id)); err != nil {
			return err
		}
		return tx.Delete(makeRecordKey(t.codec.prefix, id))
	})
}

// scan returns every record accepted by keep, oldest first.
func (t *table[T]) scan(ctx context.Context, keep func(*T) bool) ([]*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []*T
	err := t.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialDateKey(t.codec.prefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			id, err := iter.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			rec, err := t.read(tx, string(id))
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if keep(rec) {
				out = append(out, rec)
			}
		}
		return nil
	})
	return out, err
}

// list returns the records of owner, newest first. Empty owner matches all.
func (t *table[T]) list(ctx context.Context, owner string) ([]*T, error) {
	recs, err := t.scan(ctx, func(rec *T) bool {
		return owner == "" || t.codec.owner(rec) == owner
	})
	if err != nil {
		return nil, err
	}
	slices.Reverse(recs)
	return recs, nil
}

func (t *table[T]) read(tx *badger.Txn, id string) (*T, error) {
	item, err := tx.Get(makeRecordKey(t.codec.prefix, id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	var rec *T
	err = item.Value(func(val []byte) error {
		var err error
		rec, err = t.codec.unmarshal(val)
		return err
	})
	return rec, err
}

func keyExists(tx *badger.Txn, key []byte) (bool, error) {
	_, err := tx.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}
