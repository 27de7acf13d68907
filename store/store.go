package store

import (
	"context"
	"errors"
	"sync"

	"vasilala/logger"
)

// ErrNotInSnapshot is returned when a mutation targets an entity the
// store has not loaded.
var ErrNotInSnapshot = errors.New("entity not in snapshot")

// FetchPage loads one page of entities. cursor is the id of the last
// entity of the previous page, empty for the first page.
type FetchPage[E any] func(ctx context.Context, cursor string, pageSize int) ([]E, error)

// Snapshot is a point-in-time copy of a store's state, handed to
// subscribers and getters. Items is a copy; mutating it has no effect on
// the store.
type Snapshot[E any] struct {
	Items   []E
	Loading bool
	HasMore bool
	Err     string
}

// Store is a single-domain state container: an in-memory snapshot of one
// slice of remote state plus load/error flags. It is the sole mutator of
// its snapshot; all reads go through copies.
//
// Load and LoadMore are safe to call from concurrent goroutines: a call
// arriving while a load is in flight is a no-op, so duplicate fetches
// are never issued. A load that was superseded by Reset discards its
// result instead of applying stale data.
type Store[E any] struct {
	mu         sync.Mutex
	name       string
	idOf       func(E) string
	clone      func(E) E
	fetch      FetchPage[E]
	pageSize   int
	items      []E
	loading    bool
	hasMore    bool
	errMsg     string
	generation uint64

	listeners    map[int]func(Snapshot[E])
	nextListener int

	// wg tracks in-flight fire-and-forget remote writes so tests and
	// shutdown can wait for them.
	wg sync.WaitGroup
}

// New creates a store. name tags log lines, idOf extracts entity ids,
// fetch loads pages from the gateway.
func New[E any](name string, idOf func(E) string, fetch FetchPage[E], pageSize int) *Store[E] {
	return &Store[E]{
		name:      name,
		idOf:      idOf,
		fetch:     fetch,
		pageSize:  pageSize,
		listeners: make(map[int]func(Snapshot[E])),
	}
}

// WithClone sets a deep-copy hook used when projecting entities out of
// the store. Entity types with slice or map fields need one, otherwise
// snapshot items alias live store state.
func (s *Store[E]) WithClone(clone func(E) E) *Store[E] {
	s.clone = clone
	return s
}

func (s *Store[E]) cloneItem(item E) E {
	if s.clone == nil {
		return item
	}
	return s.clone(item)
}

// Load fetches the first page, replacing the snapshot. Clears any error
// state on entry. A call while a load is already in flight is a no-op.
// On failure the prior snapshot is left untouched and the error is
// surfaced on the snapshot.
func (s *Store[E]) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return nil
	}
	s.loading = true
	s.errMsg = ""
	s.generation++
	gen := s.generation
	s.mu.Unlock()
	s.notify()

	items, err := s.fetch(ctx, "", s.pageSize)

	s.mu.Lock()
	if s.generation != gen {
		// A Reset superseded this load; discard the result.
		s.mu.Unlock()
		return nil
	}
	s.loading = false
	if err != nil {
		s.errMsg = err.Error()
		s.mu.Unlock()
		s.notify()
		logger.Warn("load failed", logger.String("store", s.name), logger.ErrorField(err))
		return err
	}
	s.items = items
	s.hasMore = len(items) == s.pageSize
	s.mu.Unlock()
	s.notify()
	return nil
}

// LoadMore fetches the next page keyed by the last-seen entity id and
// appends it. No-op when there is nothing more or a load is in flight.
func (s *Store[E]) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	if s.loading || !s.hasMore || len(s.items) == 0 {
		s.mu.Unlock()
		return nil
	}
	s.loading = true
	s.errMsg = ""
	s.generation++
	gen := s.generation
	cursor := s.idOf(s.items[len(s.items)-1])
	s.mu.Unlock()
	s.notify()

	items, err := s.fetch(ctx, cursor, s.pageSize)

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return nil
	}
	s.loading = false
	if err != nil {
		s.errMsg = err.Error()
		s.mu.Unlock()
		s.notify()
		logger.Warn("loadMore failed", logger.String("store", s.name), logger.ErrorField(err))
		return err
	}
	s.items = append(s.items, items...)
	s.hasMore = len(items) == s.pageSize
	s.mu.Unlock()
	s.notify()
	return nil
}

// Reset clears the snapshot and invalidates any in-flight load, e.g. on
// sign-out.
func (s *Store[E]) Reset() {
	s.mu.Lock()
	s.items = nil
	s.loading = false
	s.hasMore = false
	s.errMsg = ""
	s.generation++
	s.mu.Unlock()
	s.notify()
}

// Snapshot returns a copy of the current state.
func (s *Store[E]) Snapshot() Snapshot[E] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store[E]) snapshotLocked() Snapshot[E] {
	items := make([]E, len(s.items))
	for i := range s.items {
		items[i] = s.cloneItem(s.items[i])
	}
	return Snapshot[E]{
		Items:   items,
		Loading: s.loading,
		HasMore: s.hasMore,
		Err:     s.errMsg,
	}
}

// Get returns the entity with the given id, if loaded. Pure projection,
// no I/O.
func (s *Store[E]) Get(id string) (E, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if s.idOf(item) == id {
			return s.cloneItem(item), true
		}
	}
	var zero E
	return zero, false
}

// Filter returns the loaded entities matching the predicate. Pure
// projection, no I/O.
func (s *Store[E]) Filter(pred func(E) bool) []E {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []E
	for _, item := range s.items {
		if pred(item) {
			out = append(out, s.cloneItem(item))
		}
	}
	return out
}

// Len returns the number of loaded entities.
func (s *Store[E]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Update applies fn to the entity with the given id under the store
// lock and notifies subscribers. Returns false when the entity is not
// loaded.
func (s *Store[E]) Update(id string, fn func(*E)) bool {
	s.mu.Lock()
	found := false
	for i := range s.items {
		if s.idOf(s.items[i]) == id {
			fn(&s.items[i])
			found = true
			break
		}
	}
	s.mu.Unlock()
	if found {
		s.notify()
	}
	return found
}

// apply runs fn on the entity with the given id under the store lock. A
// non-nil error from fn aborts: fn must have left the entity unchanged,
// and subscribers are not notified.
func (s *Store[E]) apply(id string, fn func(*E) error) error {
	s.mu.Lock()
	found := false
	var err error
	for i := range s.items {
		if s.idOf(s.items[i]) == id {
			err = fn(&s.items[i])
			found = true
			break
		}
	}
	s.mu.Unlock()
	if !found {
		return ErrNotInSnapshot
	}
	if err != nil {
		return err
	}
	s.notify()
	return nil
}

// Insert prepends an entity to the snapshot (new content shows first).
func (s *Store[E]) Insert(item E) {
	s.mu.Lock()
	s.items = append([]E{item}, s.items...)
	s.mu.Unlock()
	s.notify()
}

// Append adds an entity at the end of the snapshot.
func (s *Store[E]) Append(item E) {
	s.mu.Lock()
	s.items = append(s.items, item)
	s.mu.Unlock()
	s.notify()
}

// Remove drops the entity with the given id from the snapshot.
func (s *Store[E]) Remove(id string) bool {
	s.mu.Lock()
	found := false
	for i := range s.items {
		if s.idOf(s.items[i]) == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			found = true
			break
		}
	}
	s.mu.Unlock()
	if found {
		s.notify()
	}
	return found
}

// RemoveWhere drops all entities matching the predicate and returns how
// many were removed.
func (s *Store[E]) RemoveWhere(pred func(E) bool) int {
	s.mu.Lock()
	kept := s.items[:0]
	removed := 0
	for _, item := range s.items {
		if pred(item) {
			removed++
			continue
		}
		kept = append(kept, item)
	}
	s.items = kept
	s.mu.Unlock()
	if removed > 0 {
		s.notify()
	}
	return removed
}

// Subscribe registers a snapshot listener, invoked after every state
// change. Returns an unsubscribe function.
func (s *Store[E]) Subscribe(fn func(Snapshot[E])) func() {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store[E]) notify() {
	s.mu.Lock()
	snap := s.snapshotLocked()
	fns := make([]func(Snapshot[E]), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// Wait blocks until all in-flight remote writes issued by this store
// have settled. Used by tests and graceful shutdown.
func (s *Store[E]) Wait() {
	s.wg.Wait()
}
