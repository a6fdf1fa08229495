package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
)

const uniqueViolation = "23505"

// PostgresCollection stores records as JSONB rows of the records table.
type PostgresCollection[T Entity] struct {
	pool *pgxpool.Pool
	name string
}

// NewPostgres constructs a collection backed by the records table.
func NewPostgres[T Entity](pool *pgxpool.Pool, name string) *PostgresCollection[T] {
	return &PostgresCollection[T]{pool: pool, name: name}
}

// Name returns the collection name.
func (c *PostgresCollection[T]) Name() string { return c.name }

// GetAll loads every record of the collection in insertion order.
func (c *PostgresCollection[T]) GetAll(ctx context.Context) ([]T, error) {
	rows, err := c.pool.Query(ctx, `SELECT body FROM records WHERE collection=$1 ORDER BY created_at, id`, c.name)
	if err != nil {
		return nil, shared.Persistence("list", c.name, err)
	}
	defer rows.Close()
	var out []T
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, shared.Persistence("list", c.name, err)
		}
		var item T
		if err := json.Unmarshal(body, &item); err != nil {
			return nil, shared.Persistence("list", c.name, err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Persistence("list", c.name, err)
	}
	return out, nil
}

// Add inserts the record. A duplicate natural key surfaces as ErrConflict.
func (c *PostgresCollection[T]) Add(ctx context.Context, item T) (T, error) {
	body, err := json.Marshal(item)
	if err != nil {
		return item, shared.Persistence("add", c.name, err)
	}
	_, err = c.pool.Exec(ctx, `INSERT INTO records (collection, id, natural_key, body) VALUES ($1, $2, $3, $4)`,
		c.name, item.GetID(), nullableKey(naturalKey(item)), body)
	if err != nil {
		return item, shared.Persistence("add", c.name, translatePgError(err))
	}
	return item, nil
}

// Update replaces the record body.
func (c *PostgresCollection[T]) Update(ctx context.Context, item T) (T, error) {
	body, err := json.Marshal(item)
	if err != nil {
		return item, shared.Persistence("update", c.name, err)
	}
	tag, err := c.pool.Exec(ctx, `UPDATE records SET body=$3, natural_key=$4, updated_at=NOW() WHERE collection=$1 AND id=$2`,
		c.name, item.GetID(), body, nullableKey(naturalKey(item)))
	if err != nil {
		return item, shared.Persistence("update", c.name, translatePgError(err))
	}
	if tag.RowsAffected() == 0 {
		return item, &shared.NotFoundError{Collection: c.name, ID: item.GetID()}
	}
	return item, nil
}

// Delete removes the record.
func (c *PostgresCollection[T]) Delete(ctx context.Context, id string) error {
	tag, err := c.pool.Exec(ctx, `DELETE FROM records WHERE collection=$1 AND id=$2`, c.name, id)
	if err != nil {
		return shared.Persistence("delete", c.name, err)
	}
	if tag.RowsAffected() == 0 {
		return &shared.NotFoundError{Collection: c.name, ID: id}
	}
	return nil
}

// IncrementNumber adds delta to field in a single UPDATE. Concurrent increments
// of one row queue on its row lock and each applies to the latest value.
func (c *PostgresCollection[T]) IncrementNumber(ctx context.Context, id, field string, delta float64) (T, error) {
	var updated T
	var body []byte
	err := c.pool.QueryRow(ctx, incrementSQL, c.name, id, field, delta).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return updated, &shared.NotFoundError{Collection: c.name, ID: id}
	}
	if err != nil {
		return updated, shared.Persistence("increment", c.name, err)
	}
	if err := json.Unmarshal(body, &updated); err != nil {
		return updated, shared.Persistence("increment", c.name, err)
	}
	return updated, nil
}

// UpdateKeeping replaces the record body but keeps the stored value of field.
func (c *PostgresCollection[T]) UpdateKeeping(ctx context.Context, item T, field string) (T, error) {
	var updated T
	body, err := json.Marshal(item)
	if err != nil {
		return updated, shared.Persistence("update", c.name, err)
	}
	err = c.pool.QueryRow(ctx, updateKeepingSQL, c.name, item.GetID(), body, nullableKey(naturalKey(item)), field).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return updated, &shared.NotFoundError{Collection: c.name, ID: item.GetID()}
	}
	if err != nil {
		return updated, shared.Persistence("update", c.name, translatePgError(err))
	}
	if err := json.Unmarshal(body, &updated); err != nil {
		return updated, shared.Persistence("update", c.name, err)
	}
	return updated, nil
}

const incrementSQL = `UPDATE records
SET body = jsonb_set(body, ARRAY[$3::text], to_jsonb(COALESCE((body->>$3::text)::float8, 0) + $4::float8)),
    updated_at = NOW()
WHERE collection = $1 AND id = $2
RETURNING body`

const updateKeepingSQL = `UPDATE records
SET body = jsonb_set($3::jsonb, ARRAY[$5::text], COALESCE(body->$5::text, $3::jsonb->$5::text, 'null'::jsonb)),
    natural_key = $4,
    updated_at = NOW()
WHERE collection = $1 AND id = $2
RETURNING body`

func nullableKey(key string) *string {
	if key == "" {
		return nil
	}
	return &key
}

func translatePgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", shared.ErrConflict, pgErr.Detail)
	}
	return err
}
