// Package storetest provides collection wrappers that inject store failures.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
	"github.com/odyssey-erp/odyssey-commerce/internal/store"
)

// Operations that can be failed.
const (
	OpGetAll    = "getAll"
	OpAdd       = "add"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpIncrement = "increment"
)

// ErrInjected is returned by failed calls.
var ErrInjected = errors.New("injected store failure")

// Faulty wraps a collection and fails chosen calls.
type Faulty[T store.Entity] struct {
	inner store.Collection[T]

	mu    sync.Mutex
	calls map[string]int
	fail  map[string]map[int]bool
}

// Wrap returns a Faulty around inner that behaves transparently until told to fail.
func Wrap[T store.Entity](inner store.Collection[T]) *Faulty[T] {
	return &Faulty[T]{inner: inner, calls: map[string]int{}, fail: map[string]map[int]bool{}}
}

// FailOn makes the nth future call (1-based) of op fail.
func (f *Faulty[T]) FailOn(op string, nth int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[op] == nil {
		f.fail[op] = map[int]bool{}
	}
	f.fail[op][f.calls[op]+nth] = true
}

// Calls returns how many times op was invoked.
func (f *Faulty[T]) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *Faulty[T]) check(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	if f.fail[op][f.calls[op]] {
		return shared.Persistence(op, f.inner.Name(), fmt.Errorf("%w: %s call %d", ErrInjected, op, f.calls[op]))
	}
	return nil
}

// Name returns the wrapped collection name.
func (f *Faulty[T]) Name() string { return f.inner.Name() }

// GetAll delegates unless failed.
func (f *Faulty[T]) GetAll(ctx context.Context) ([]T, error) {
	if err := f.check(OpGetAll); err != nil {
		return nil, err
	}
	return f.inner.GetAll(ctx)
}

// Add delegates unless failed.
func (f *Faulty[T]) Add(ctx context.Context, item T) (T, error) {
	if err := f.check(OpAdd); err != nil {
		return item, err
	}
	return f.inner.Add(ctx, item)
}

// Update delegates unless failed.
func (f *Faulty[T]) Update(ctx context.Context, item T) (T, error) {
	if err := f.check(OpUpdate); err != nil {
		return item, err
	}
	return f.inner.Update(ctx, item)
}

// Delete delegates unless failed.
func (f *Faulty[T]) Delete(ctx context.Context, id string) error {
	if err := f.check(OpDelete); err != nil {
		return err
	}
	return f.inner.Delete(ctx, id)
}

// IncrementNumber delegates to the inner Incrementer unless failed.
func (f *Faulty[T]) IncrementNumber(ctx context.Context, id, field string, delta float64) (T, error) {
	var zero T
	if err := f.check(OpIncrement); err != nil {
		return zero, err
	}
	inc, ok := f.inner.(store.Incrementer[T])
	if !ok {
		return zero, fmt.Errorf("storetest: %s does not support increments", f.inner.Name())
	}
	return inc.IncrementNumber(ctx, id, field, delta)
}

// UpdateKeeping delegates to the inner FieldKeeper unless an update is failed.
func (f *Faulty[T]) UpdateKeeping(ctx context.Context, item T, field string) (T, error) {
	var zero T
	if err := f.check(OpUpdate); err != nil {
		return zero, err
	}
	keeper, ok := f.inner.(store.FieldKeeper[T])
	if !ok {
		return zero, fmt.Errorf("storetest: %s does not support partial updates", f.inner.Name())
	}
	return keeper.UpdateKeeping(ctx, item, field)
}
