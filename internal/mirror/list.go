// Package mirror keeps ordered in-memory copies of remote collections.
package mirror

import (
	"context"
	"sync"
)

// List is an ordered, keyed, concurrency-safe list. Order is insertion or
// fetch order; List never sorts.
type List[T any] struct {
	mu    sync.RWMutex
	items []T
	key   func(T) string
}

// NewList builds an empty list keyed by key.
func NewList[T any](key func(T) string) *List[T] {
	return &List[T]{key: key}
}

// Replace swaps the whole content for items.
func (l *List[T]) Replace(items []T) {
	cp := make([]T, len(items))
	copy(cp, items)
	l.mu.Lock()
	l.items = cp
	l.mu.Unlock()
}

func (l *List[T]) Append(item T) {
	l.mu.Lock()
	l.items = append(l.items, item)
	l.mu.Unlock()
}

// Set replaces the entry with item's key in place. It reports false, and
// leaves the list untouched, when no entry has that key.
func (l *List[T]) Set(item T) bool {
	id := l.key(item)
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.items {
		if l.key(l.items[i]) == id {
			l.items[i] = item
			return true
		}
	}
	return false
}

// Remove drops every entry keyed id and reports whether any existed.
func (l *List[T]) Remove(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.items[:0]
	removed := false
	for _, it := range l.items {
		if l.key(it) == id {
			removed = true
			continue
		}
		kept = append(kept, it)
	}
	var zero T
	for i := len(kept); i < len(l.items); i++ {
		l.items[i] = zero
	}
	l.items = kept
	return removed
}

func (l *List[T]) Get(id string) (T, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, it := range l.items {
		if l.key(it) == id {
			return it, true
		}
	}
	var zero T
	return zero, false
}

func (l *List[T]) Contains(id string) bool {
	_, ok := l.Get(id)
	return ok
}

func (l *List[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// Snapshot returns a copy of the current content.
func (l *List[T]) Snapshot() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]T, len(l.items))
	copy(out, l.items)
	return out
}

// Filter returns, in order, the entries keep accepts.
func (l *List[T]) Filter(keep func(T) bool) []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]T, 0, len(l.items))
	for _, it := range l.items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}

// Policy decides how a successful remote write is reflected locally. It runs
// only after the remote write succeeded.
type Policy[T any] interface {
	Created(ctx context.Context, l *List[T], item T) error
	Updated(ctx context.Context, l *List[T], item T) error
	Deleted(ctx context.Context, l *List[T], id string) error
}

// Patch applies the write's own result to the list without re-reading the
// collection.
type Patch[T any] struct{}

func (Patch[T]) Created(_ context.Context, l *List[T], item T) error {
	l.Append(item)
	return nil
}

func (Patch[T]) Updated(_ context.Context, l *List[T], item T) error {
	l.Set(item)
	return nil
}

func (Patch[T]) Deleted(_ context.Context, l *List[T], id string) error {
	l.Remove(id)
	return nil
}

// Refetch re-reads the whole collection after every write.
type Refetch[T any] struct {
	Fetch func(ctx context.Context) ([]T, error)
}

func (r Refetch[T]) Created(ctx context.Context, l *List[T], _ T) error {
	return r.reload(ctx, l)
}

func (r Refetch[T]) Updated(ctx context.Context, l *List[T], _ T) error {
	return r.reload(ctx, l)
}

func (r Refetch[T]) Deleted(ctx context.Context, l *List[T], _ string) error {
	return r.reload(ctx, l)
}

func (r Refetch[T]) reload(ctx context.Context, l *List[T]) error {
	items, err := r.Fetch(ctx)
	if err != nil {
		return err
	}
	l.Replace(items)
	return nil
}
