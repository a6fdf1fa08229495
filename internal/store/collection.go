// Package store implements the persistence contract shared by every record
// collection: whole-record GetAll, Add, Update and Delete.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
)

// Entity is a record addressed by a client-generated id.
type Entity interface {
	GetID() string
}

// Keyed records carry a natural key (document number, entity code) that must be
// unique within the collection. An empty key is not constrained.
type Keyed interface {
	NaturalKey() string
}

// Collection is the persistence port of one record type.
type Collection[T Entity] interface {
	Name() string
	GetAll(ctx context.Context) ([]T, error)
	Add(ctx context.Context, item T) (T, error)
	Update(ctx context.Context, item T) (T, error)
	Delete(ctx context.Context, id string) error
}

// Incrementer applies an atomic numeric increment to one JSON field of a record.
type Incrementer[T Entity] interface {
	IncrementNumber(ctx context.Context, id, field string, delta float64) (T, error)
}

// FieldKeeper replaces a record but keeps the stored value of one field, so
// concurrent increments of that field are never overwritten.
type FieldKeeper[T Entity] interface {
	UpdateKeeping(ctx context.Context, item T, field string) (T, error)
}

// Reloader refreshes a cached view from the backing store.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Find returns the record with the given id or a NotFoundError.
func Find[T Entity](ctx context.Context, c Collection[T], id string) (T, error) {
	var zero T
	items, err := c.GetAll(ctx)
	if err != nil {
		return zero, err
	}
	for _, item := range items {
		if item.GetID() == id {
			return item, nil
		}
	}
	return zero, &shared.NotFoundError{Collection: c.Name(), ID: id}
}

// Filter returns the items accepted by keep.
func Filter[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

func naturalKey[T Entity](item T) string {
	if k, ok := any(item).(Keyed); ok {
		return k.NaturalKey()
	}
	return ""
}

// incrementField adds delta to a numeric top-level JSON field of body.
func incrementField(body []byte, field string, delta float64) ([]byte, error) {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("store: decode record: %w", err)
	}
	cur := 0.0
	switch v := doc[field].(type) {
	case nil:
	case float64:
		cur = v
	default:
		return nil, fmt.Errorf("store: field %q is not numeric", field)
	}
	doc[field] = cur + delta
	return json.Marshal(doc)
}

// keepField returns body with field copied from stored. A field missing from
// stored is left as it is in body.
func keepField(stored, body []byte, field string) ([]byte, error) {
	var old, doc map[string]json.RawMessage
	if err := json.Unmarshal(stored, &old); err != nil {
		return nil, fmt.Errorf("store: decode record: %w", err)
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("store: decode record: %w", err)
	}
	if v, ok := old[field]; ok {
		doc[field] = v
	}
	return json.Marshal(doc)
}
