package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	ierr "github.com/freelanceflow/freelanceflow/internal/errors"
	"github.com/freelanceflow/freelanceflow/internal/types"
)

// DefaultLockTimeout bounds how long a store waits for a row lock before reporting a conflict
const DefaultLockTimeout = 2 * time.Second

// FilterFunc is a generic filter function type
type FilterFunc[T any] func(ctx context.Context, item T) bool

// SortFunc is a generic sort function type
type SortFunc[T any] func(i, j T) bool

// InMemoryStore implements a generic in-memory store. Writes made with a transactional ctx
// are journaled so that MockPostgresClient can undo them.
type InMemoryStore[T any] struct {
	mu     sync.RWMutex
	items  map[string]T
	copyFn func(T) T
}

// NewInMemoryStore creates a new InMemoryStore. copyFn isolates stored values from callers.
func NewInMemoryStore[T any](copyFn func(T) T) *InMemoryStore[T] {
	return &InMemoryStore[T]{
		items:  make(map[string]T),
		copyFn: copyFn,
	}
}

func (s *InMemoryStore[T]) clone(item T) T {
	if s.copyFn == nil {
		return item
	}
	return s.copyFn(item)
}

// Create adds a new item to the store
func (s *InMemoryStore[T]) Create(ctx context.Context, id string, item T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; exists {
		return ierr.NewError("item already exists").
			WithHintf("An item with ID %s already exists", id).
			Mark(ierr.ErrAlreadyExists)
	}

	s.items[id] = s.clone(item)
	recordUndo(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.items, id)
	})
	return nil
}

// Get retrieves an item by ID
func (s *InMemoryStore[T]) Get(_ context.Context, id string) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if item, exists := s.items[id]; exists {
		return s.clone(item), nil
	}

	var zero T
	return zero, ierr.NewError("item not found").
		WithHintf("Item with ID %s was not found", id).
		Mark(ierr.ErrNotFound)
}

// List returns the items matching filterFn, sorted by sortFn
func (s *InMemoryStore[T]) List(ctx context.Context, filterFn FilterFunc[T], sortFn SortFunc[T]) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]T, 0)
	for _, item := range s.items {
		if filterFn == nil || filterFn(ctx, item) {
			result = append(result, s.clone(item))
		}
	}

	if sortFn != nil {
		sort.SliceStable(result, func(i, j int) bool {
			return sortFn(result[i], result[j])
		})
	}
	return result
}

// Count returns the total number of items matching the filter
func (s *InMemoryStore[T]) Count(ctx context.Context, filterFn FilterFunc[T]) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, item := range s.items {
		if filterFn == nil || filterFn(ctx, item) {
			count++
		}
	}
	return count
}

// Update replaces an existing item
func (s *InMemoryStore[T]) Update(ctx context.Context, id string, item T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, exists := s.items[id]
	if !exists {
		return ierr.NewError("item not found").
			WithHintf("Item with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}

	s.items[id] = s.clone(item)
	recordUndo(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.items[id] = previous
	})
	return nil
}

// Delete removes an item from the store
func (s *InMemoryStore[T]) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, exists := s.items[id]
	if !exists {
		return ierr.NewError("item not found").
			WithHintf("Item with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}

	delete(s.items, id)
	recordUndo(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.items[id] = previous
	})
	return nil
}

// Clear removes all items from the store
func (s *InMemoryStore[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]T)
}

// paginate applies the limit and offset of a query filter
func paginate[T any](items []T, filter *types.QueryFilter) []T {
	if filter == nil {
		return items
	}

	start := filter.GetOffset()
	if start >= len(items) {
		return []T{}
	}
	end := start + filter.GetLimit()
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// CheckFreelancerFilter reports whether an item belongs to the freelancer in ctx
func CheckFreelancerFilter(ctx context.Context, itemFreelancerID string) bool {
	return itemFreelancerID == types.GetFreelancerID(ctx)
}

type rowLock struct {
	holder   *mockTx
	released chan struct{}
}

// rowLocks emulates SELECT ... FOR UPDATE: a lock is held by one transaction until it
// ends, is reentrant for that transaction and times out as a concurrency conflict.
type rowLocks struct {
	mu      sync.Mutex
	locks   map[string]*rowLock
	timeout time.Duration
}

func newRowLocks(timeout time.Duration) *rowLocks {
	return &rowLocks{
		locks:   make(map[string]*rowLock),
		timeout: timeout,
	}
}

func (l *rowLocks) acquire(ctx context.Context, key string) error {
	tx := txFromContext(ctx)
	if tx == nil {
		return ierr.NewError("row lock requires a transaction").
			WithHint("Locking reads must run inside a transaction").
			Mark(ierr.ErrInvalidOperation)
	}

	timer := time.NewTimer(l.timeout)
	defer timer.Stop()

	for {
		l.mu.Lock()
		current, held := l.locks[key]
		if !held {
			lock := &rowLock{holder: tx, released: make(chan struct{})}
			l.locks[key] = lock
			l.mu.Unlock()

			tx.mu.Lock()
			tx.onEnd = append(tx.onEnd, func() {
				l.mu.Lock()
				delete(l.locks, key)
				l.mu.Unlock()
				close(lock.released)
			})
			tx.mu.Unlock()
			return nil
		}
		if current.holder == tx {
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()

		select {
		case <-current.released:
		case <-timer.C:
			return ierr.NewError("lock not available").
				WithHint("The record is being modified by another request, please retry").
				WithReportableDetails(map[string]any{
					"lock": key,
				}).
				Mark(ierr.ErrConcurrencyConflict)
		case <-ctx.Done():
			return ierr.WithError(ctx.Err()).
				WithHint("Request was cancelled while waiting for a lock").
				Mark(ierr.ErrDatabase)
		}
	}
}
