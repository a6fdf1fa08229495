package store

import (
	"context"
	"fmt"
	"sync"
)

// Mirror caches a collection in memory. The cache changes only after the
// backing call succeeds, so a failed write leaves the cached view untouched.
type Mirror[T Entity] struct {
	mu      sync.RWMutex
	backend Collection[T]
	items   []T
	loaded  bool
}

// NewMirror wraps backend with a lazily loaded cache.
func NewMirror[T Entity](backend Collection[T]) *Mirror[T] {
	return &Mirror[T]{backend: backend}
}

// Name returns the backend collection name.
func (m *Mirror[T]) Name() string { return m.backend.Name() }

// GetAll returns a copy of the cached records, loading them on first use.
func (m *Mirror[T]) GetAll(ctx context.Context) ([]T, error) {
	m.mu.RLock()
	if m.loaded {
		out := make([]T, len(m.items))
		copy(out, m.items)
		m.mu.RUnlock()
		return out, nil
	}
	m.mu.RUnlock()
	if err := m.Reload(ctx); err != nil {
		return nil, err
	}
	return m.GetAll(ctx)
}

// Reload replaces the cache with the backend contents.
func (m *Mirror[T]) Reload(ctx context.Context) error {
	items, err := m.backend.GetAll(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.items = items
	m.loaded = true
	m.mu.Unlock()
	return nil
}

// Add persists item then appends it to the cache.
func (m *Mirror[T]) Add(ctx context.Context, item T) (T, error) {
	saved, err := m.backend.Add(ctx, item)
	if err != nil {
		return saved, err
	}
	m.mu.Lock()
	if m.loaded {
		m.items = append(m.items, saved)
	}
	m.mu.Unlock()
	return saved, nil
}

// Update persists item then replaces it in the cache.
func (m *Mirror[T]) Update(ctx context.Context, item T) (T, error) {
	saved, err := m.backend.Update(ctx, item)
	if err != nil {
		return saved, err
	}
	m.replace(saved)
	return saved, nil
}

// Delete removes the record then drops it from the cache.
func (m *Mirror[T]) Delete(ctx context.Context, id string) error {
	if err := m.backend.Delete(ctx, id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, cur := range m.items {
		if cur.GetID() == id {
			m.items = append(m.items[:i:i], m.items[i+1:]...)
			break
		}
	}
	return nil
}

// IncrementNumber delegates to the backend increment and caches the result.
func (m *Mirror[T]) IncrementNumber(ctx context.Context, id, field string, delta float64) (T, error) {
	inc, ok := m.backend.(Incrementer[T])
	if !ok {
		var zero T
		return zero, fmt.Errorf("store: %s does not support increments", m.backend.Name())
	}
	saved, err := inc.IncrementNumber(ctx, id, field, delta)
	if err != nil {
		return saved, err
	}
	m.replace(saved)
	return saved, nil
}

// UpdateKeeping delegates to the backend and caches the merged record.
func (m *Mirror[T]) UpdateKeeping(ctx context.Context, item T, field string) (T, error) {
	keeper, ok := m.backend.(FieldKeeper[T])
	if !ok {
		var zero T
		return zero, fmt.Errorf("store: %s does not support partial updates", m.backend.Name())
	}
	saved, err := keeper.UpdateKeeping(ctx, item, field)
	if err != nil {
		return saved, err
	}
	m.replace(saved)
	return saved, nil
}

func (m *Mirror[T]) replace(saved T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, cur := range m.items {
		if cur.GetID() == saved.GetID() {
			m.items[i] = saved
			return
		}
	}
}
