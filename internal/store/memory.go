package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
)

// MemoryCollection keeps records in process. Natural keys are unique and
// increments run under the collection mutex.
type MemoryCollection[T Entity] struct {
	mu    sync.Mutex
	name  string
	order []string
	items map[string]T
}

// NewMemory constructs an empty in-memory collection.
func NewMemory[T Entity](name string) *MemoryCollection[T] {
	return &MemoryCollection[T]{name: name, items: map[string]T{}}
}

// Name returns the collection name.
func (m *MemoryCollection[T]) Name() string { return m.name }

// GetAll returns the records in insertion order.
func (m *MemoryCollection[T]) GetAll(_ context.Context) ([]T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]T, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.items[id])
	}
	return out, nil
}

// Add inserts a new record.
func (m *MemoryCollection[T]) Add(_ context.Context, item T) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := item.GetID()
	if id == "" {
		return item, shared.Persistence("add", m.name, fmt.Errorf("empty id"))
	}
	if _, ok := m.items[id]; ok {
		return item, shared.Persistence("add", m.name, fmt.Errorf("%w: id %s", shared.ErrConflict, id))
	}
	if err := m.checkKey(id, naturalKey(item)); err != nil {
		return item, shared.Persistence("add", m.name, err)
	}
	m.items[id] = item
	m.order = append(m.order, id)
	return item, nil
}

// Update replaces an existing record.
func (m *MemoryCollection[T]) Update(_ context.Context, item T) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := item.GetID()
	if _, ok := m.items[id]; !ok {
		return item, &shared.NotFoundError{Collection: m.name, ID: id}
	}
	if err := m.checkKey(id, naturalKey(item)); err != nil {
		return item, shared.Persistence("update", m.name, err)
	}
	m.items[id] = item
	return item, nil
}

// Delete removes a record.
func (m *MemoryCollection[T]) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return &shared.NotFoundError{Collection: m.name, ID: id}
	}
	delete(m.items, id)
	for i, cur := range m.order {
		if cur == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// IncrementNumber adds delta to a numeric field of the stored record.
func (m *MemoryCollection[T]) IncrementNumber(_ context.Context, id, field string, delta float64) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero T
	item, ok := m.items[id]
	if !ok {
		return zero, &shared.NotFoundError{Collection: m.name, ID: id}
	}
	body, err := json.Marshal(item)
	if err != nil {
		return zero, shared.Persistence("increment", m.name, err)
	}
	body, err = incrementField(body, field, delta)
	if err != nil {
		return zero, shared.Persistence("increment", m.name, err)
	}
	var updated T
	if err := json.Unmarshal(body, &updated); err != nil {
		return zero, shared.Persistence("increment", m.name, err)
	}
	m.items[id] = updated
	return updated, nil
}

// UpdateKeeping replaces an existing record, carrying field over from the stored copy.
func (m *MemoryCollection[T]) UpdateKeeping(_ context.Context, item T, field string) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero T
	id := item.GetID()
	current, ok := m.items[id]
	if !ok {
		return zero, &shared.NotFoundError{Collection: m.name, ID: id}
	}
	if err := m.checkKey(id, naturalKey(item)); err != nil {
		return zero, shared.Persistence("update", m.name, err)
	}
	stored, err := json.Marshal(current)
	if err != nil {
		return zero, shared.Persistence("update", m.name, err)
	}
	body, err := json.Marshal(item)
	if err != nil {
		return zero, shared.Persistence("update", m.name, err)
	}
	if body, err = keepField(stored, body, field); err != nil {
		return zero, shared.Persistence("update", m.name, err)
	}
	var updated T
	if err := json.Unmarshal(body, &updated); err != nil {
		return zero, shared.Persistence("update", m.name, err)
	}
	m.items[id] = updated
	return updated, nil
}

func (m *MemoryCollection[T]) checkKey(id, key string) error {
	if key == "" {
		return nil
	}
	for otherID, other := range m.items {
		if otherID != id && naturalKey(other) == key {
			return fmt.Errorf("%w: %s already used", shared.ErrConflict, key)
		}
	}
	return nil
}
