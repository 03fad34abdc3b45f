package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/poiesic/harvest/storage"
)

// uniqueViolation is the SQLSTATE of a unique constraint failure.
const uniqueViolation = "23505"

// codec describes how one record kind maps onto its table.
type codec[T any] struct {
	table     string
	marshal   func(*T) ([]byte, error)
	unmarshal func([]byte) (*T, error)
	id        func(*T) string
	owner     func(*T) string
	status    func(*T) string
	created   func(*T) time.Time
	stamp     func(rec *T, created, updated time.Time)
	check     func(old, updated *T) error
	// extra returns additional column values, in extraCols order.
	extraCols []string
	extra     func(*T) []any
}

type table[T any] struct {
	pool  *pgxpool.Pool
	codec codec[T]
}

func (t *table[T]) create(ctx context.Context, rec *T) error {
	now := time.Now().UTC()
	created := t.codec.created(rec)
	if created.IsZero() {
		created = now
	}
	t.codec.stamp(rec, created, now)

	data, err := t.codec.marshal(rec)
	if err != nil {
		return err
	}

	cols := []string{"id", "owner", "status", "created_at", "data"}
	args := []any{t.codec.id(rec), t.codec.owner(rec), t.codec.status(rec), created, data}
	if t.codec.extra != nil {
		cols = append(cols, t.codec.extraCols...)
		args = append(args, t.codec.extra(rec)...)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.codec.table, joinCols(cols), placeholders(len(cols)))

	if _, err := t.pool.Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", storage.ErrDuplicateKey, pgErr.ConstraintName)
		}
		return err
	}
	return nil
}

func (t *table[T]) get(ctx context.Context, id string) (*T, error) {
	return t.readRow(t.pool.QueryRow(ctx, "SELECT data FROM "+t.codec.table+" WHERE id = $1", id), id)
}

// update locks the row with SELECT ... FOR UPDATE so concurrent updates
// of the same record serialize.
func (t *table[T]) update(ctx context.Context, id string, fn func(*T) error) (*T, error) {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, "SELECT data FROM "+t.codec.table+" WHERE id = $1 FOR UPDATE", id)
	old, err := t.readRow(row, id)
	if err != nil {
		return nil, err
	}
	data, err := t.codec.marshal(old)
	if err != nil {
		return nil, err
	}
	updated, err := t.codec.unmarshal(data)
	if err != nil {
		return nil, err
	}
	if err := fn(updated); err != nil {
		return nil, err
	}
	if err := t.codec.check(old, updated); err != nil {
		return nil, err
	}
	t.codec.stamp(updated, t.codec.created(old), time.Now().UTC())

	if data, err = t.codec.marshal(updated); err != nil {
		return nil, err
	}
	_, err = tx.Exec(ctx, "UPDATE "+t.codec.table+" SET status = $2, data = $3 WHERE id = $1", id, t.codec.status(updated), data)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return updated, nil
}

func (t *table[T]) delete(ctx context.Context, id string) error {
	tag, err := t.pool.Exec(ctx, "DELETE FROM "+t.codec.table+" WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	return nil
}

func (t *table[T]) list(ctx context.Context, owner string) ([]*T, error) {
	if owner == "" {
		return t.query(ctx, "SELECT data FROM "+t.codec.table+" ORDER BY created_at DESC, id DESC")
	}
	return t.query(ctx, "SELECT data FROM "+t.codec.table+" WHERE owner = $1 ORDER BY created_at DESC, id DESC", owner)
}

func (t *table[T]) listByStatus(ctx context.Context, status string) ([]*T, error) {
	return t.query(ctx, "SELECT data FROM "+t.codec.table+" WHERE status = $1 ORDER BY created_at, id", status)
}

func (t *table[T]) query(ctx context.Context, sql string, args ...any) ([]*T, error) {
	rows, err := t.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*T
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		rec, err := t.codec.unmarshal(data)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (t *table[T]) readRow(row pgx.Row, id string) (*T, error) {
	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
		}
		return nil, err
	}
	return t.codec.unmarshal(data)
}

func joinCols(cols []string) string {
	out := cols[0]
	for _, c := range cols[1:] {
		out += ", " + c
	}
	return out
}

func placeholders(n int) string {
	out := "$1"
	for i := 2; i <= n; i++ {
		out += fmt.Sprintf(", $%d", i)
	}
	return out
}
