package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vasilala/gateway"
)

// fakeDocs is an in-memory gateway.DocumentStore used across the store
// tests. It keeps insertion order per collection and supports error
// injection per operation name.
type fakeDocs struct {
	mu          sync.Mutex
	collections map[string]map[string]gateway.Document
	order       map[string][]string
	failOps     map[string]error
	calls       map[string]int
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{
		collections: make(map[string]map[string]gateway.Document),
		order:       make(map[string][]string),
		failOps:     make(map[string]error),
		calls:       make(map[string]int),
	}
}

func (f *fakeDocs) failOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOps[op] = err
}

func (f *fakeDocs) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeDocs) seed(collection string, doc gateway.Document) string {
	id, _ := doc["id"].(string)
	if id == "" {
		id = uuid.New().String()
		doc["id"] = id
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.collections[collection] == nil {
		f.collections[collection] = make(map[string]gateway.Document)
	}
	if _, exists := f.collections[collection][id]; !exists {
		f.order[collection] = append(f.order[collection], id)
	}
	f.collections[collection][id] = doc
	return id
}

func (f *fakeDocs) enter(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.failOps[op]
}

func (f *fakeDocs) Create(ctx context.Context, collection string, doc gateway.Document) (string, error) {
	if err := f.enter("create"); err != nil {
		return "", err
	}
	copied := make(gateway.Document, len(doc))
	for k, v := range doc {
		copied[k] = v
	}
	return f.seed(collection, copied), nil
}

func (f *fakeDocs) Get(ctx context.Context, collection, id string) (gateway.Document, error) {
	if err := f.enter("get"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.collections[collection][id]
	if !ok {
		return nil, gateway.ErrNotFound
	}
	return doc, nil
}

func (f *fakeDocs) Update(ctx context.Context, collection, id string, patch gateway.Document) error {
	if err := f.enter("update"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.collections[collection][id]
	if !ok {
		return gateway.ErrNotFound
	}
	for k, v := range patch {
		doc[k] = v
	}
	return nil
}

func (f *fakeDocs) Delete(ctx context.Context, collection, id string) error {
	if err := f.enter("delete"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.collections[collection][id]; !ok {
		return gateway.ErrNotFound
	}
	delete(f.collections[collection], id)
	for i, oid := range f.order[collection] {
		if oid == id {
			f.order[collection] = append(f.order[collection][:i], f.order[collection][i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeDocs) Query(ctx context.Context, q gateway.Query) ([]gateway.Document, error) {
	if err := f.enter("query"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []gateway.Document
	started := q.StartAfter == ""
	for _, id := range f.order[q.Collection] {
		if !started {
			if id == q.StartAfter {
				started = true
			}
			continue
		}
		doc := f.collections[q.Collection][id]
		if matchesFilters(doc, q.Filters) {
			out = append(out, doc)
		}
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func matchesFilters(doc gateway.Document, filters []gateway.Filter) bool {
	for _, flt := range filters {
		if flt.Op != gateway.OpEqual {
			continue
		}
		if fmt.Sprintf("%v", doc[flt.Field]) != fmt.Sprintf("%v", flt.Value) {
			return false
		}
	}
	return true
}

func (f *fakeDocs) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	if err := f.enter("increment"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.collections[collection][id]
	if !ok {
		return gateway.ErrNotFound
	}
	switch n := doc[field].(type) {
	case int64:
		doc[field] = n + delta
	case float64:
		doc[field] = n + float64(delta)
	case nil:
		doc[field] = delta
	default:
		return fmt.Errorf("field %q is not numeric", field)
	}
	return nil
}

func (f *fakeDocs) ArrayUnion(ctx context.Context, collection, id, field string, values ...string) error {
	if err := f.enter("arrayUnion"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.collections[collection][id]
	if !ok {
		return gateway.ErrNotFound
	}
	current, _ := doc[field].([]string)
	for _, v := range values {
		seen := false
		for _, c := range current {
			if c == v {
				seen = true
				break
			}
		}
		if !seen {
			current = append(current, v)
		}
	}
	doc[field] = current
	return nil
}

func (f *fakeDocs) ArrayRemove(ctx context.Context, collection, id, field string, values ...string) error {
	if err := f.enter("arrayRemove"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.collections[collection][id]
	if !ok {
		return gateway.ErrNotFound
	}
	current, _ := doc[field].([]string)
	kept := current[:0]
	for _, c := range current {
		drop := false
		for _, v := range values {
			if c == v {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, c)
		}
	}
	doc[field] = kept
	return nil
}

type testItem struct {
	ID    string
	Value int
}

func itemID(i testItem) string { return i.ID }

func TestStoreLoadReplacesSnapshot(t *testing.T) {
	s := New("test", itemID, func(ctx context.Context, cursor string, pageSize int) ([]testItem, error) {
		return []testItem{{ID: "a"}, {ID: "b"}}, nil
	}, 10)

	require.NoError(t, s.Load(context.Background()))

	snap := s.Snapshot()
	assert.Len(t, snap.Items, 2)
	assert.False(t, snap.Loading)
	assert.False(t, snap.HasMore, "short page means no more data")
	assert.Empty(t, snap.Err)
}

func TestStoreLoadWhileInFlightIsNoOp(t *testing.T) {
	fetchStarted := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	calls := 0

	s := New("test", itemID, func(ctx context.Context, cursor string, pageSize int) ([]testItem, error) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			close(fetchStarted)
			<-release
		}
		return []testItem{{ID: "a"}}, nil
	}, 10)

	done := make(chan error)
	go func() { done <- s.Load(context.Background()) }()
	<-fetchStarted

	// A second load while the first is in flight does not fetch again.
	require.NoError(t, s.Load(context.Background()))

	close(release)
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestStoreLoadErrorPreservesSnapshot(t *testing.T) {
	var failing bool
	s := New("test", itemID, func(ctx context.Context, cursor string, pageSize int) ([]testItem, error) {
		if failing {
			return nil, errors.New("gateway unreachable")
		}
		return []testItem{{ID: "a", Value: 1}}, nil
	}, 10)

	require.NoError(t, s.Load(context.Background()))
	failing = true
	require.Error(t, s.Load(context.Background()))

	snap := s.Snapshot()
	assert.Len(t, snap.Items, 1, "failed reload keeps the previous items")
	assert.Equal(t, "gateway unreachable", snap.Err)
	assert.False(t, snap.Loading)
}

func TestStoreLoadMoreAppendsAndPages(t *testing.T) {
	pages := map[string][]testItem{
		"":  {{ID: "a"}, {ID: "b"}},
		"b": {{ID: "c"}, {ID: "d"}},
		"d": {{ID: "e"}},
	}
	var cursors []string
	s := New("test", itemID, func(ctx context.Context, cursor string, pageSize int) ([]testItem, error) {
		cursors = append(cursors, cursor)
		return pages[cursor], nil
	}, 2)

	require.NoError(t, s.Load(context.Background()))
	assert.True(t, s.Snapshot().HasMore)

	require.NoError(t, s.LoadMore(context.Background()))
	require.NoError(t, s.LoadMore(context.Background()))

	snap := s.Snapshot()
	assert.Equal(t, []string{"", "b", "d"}, cursors, "cursor is the last seen id")
	assert.Len(t, snap.Items, 5)
	assert.False(t, snap.HasMore)

	// Exhausted: further LoadMore calls do not fetch.
	before := len(cursors)
	require.NoError(t, s.LoadMore(context.Background()))
	assert.Equal(t, before, len(cursors))
}

func TestStoreResetDiscardsInFlightLoad(t *testing.T) {
	fetchStarted := make(chan struct{})
	release := make(chan struct{})
	s := New("test", itemID, func(ctx context.Context, cursor string, pageSize int) ([]testItem, error) {
		close(fetchStarted)
		<-release
		return []testItem{{ID: "stale"}}, nil
	}, 10)

	done := make(chan error)
	go func() { done <- s.Load(context.Background()) }()
	<-fetchStarted

	s.Reset()
	close(release)
	require.NoError(t, <-done)

	assert.Zero(t, s.Len(), "result of a superseded load is discarded")
}

func TestOptimisticAppliesThenCompensatesOnFailure(t *testing.T) {
	s := New("test", itemID, func(ctx context.Context, cursor string, pageSize int) ([]testItem, error) {
		return []testItem{{ID: "a", Value: 1}}, nil
	}, 10)
	require.NoError(t, s.Load(context.Background()))

	err := s.Optimistic(context.Background(), "bump", Mutation[testItem]{
		ID:         "a",
		Apply:      func(i *testItem) error { i.Value++; return nil },
		Compensate: func(i *testItem) { i.Value-- },
		Remote:     func(ctx context.Context) error { return errors.New("write rejected") },
	})
	require.NoError(t, err, "optimistic apply succeeds even though the write will fail")

	item, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, 2, item.Value, "local change is visible immediately")

	s.Wait()
	item, _ = s.Get("a")
	assert.Equal(t, 1, item.Value, "failed write is compensated")
}

func TestOptimisticRemoteSuccessKeepsChange(t *testing.T) {
	s := New("test", itemID, func(ctx context.Context, cursor string, pageSize int) ([]testItem, error) {
		return []testItem{{ID: "a", Value: 1}}, nil
	}, 10)
	require.NoError(t, s.Load(context.Background()))

	require.NoError(t, s.Optimistic(context.Background(), "bump", Mutation[testItem]{
		ID:         "a",
		Apply:      func(i *testItem) error { i.Value++; return nil },
		Compensate: func(i *testItem) { i.Value-- },
		Remote:     func(ctx context.Context) error { return nil },
	}))
	s.Wait()

	item, _ := s.Get("a")
	assert.Equal(t, 2, item.Value)
}

func TestOptimisticRejectsIncompleteMutation(t *testing.T) {
	s := New("test", itemID, func(ctx context.Context, cursor string, pageSize int) ([]testItem, error) {
		return nil, nil
	}, 10)

	err := s.Optimistic(context.Background(), "bad", Mutation[testItem]{
		ID:    "a",
		Apply: func(i *testItem) error { return nil },
	})
	assert.ErrorIs(t, err, ErrIncompleteMutation)
}

func TestOptimisticApplyRejectionSkipsRemote(t *testing.T) {
	s := New("test", itemID, func(ctx context.Context, cursor string, pageSize int) ([]testItem, error) {
		return []testItem{{ID: "a", Value: 1}}, nil
	}, 10)
	require.NoError(t, s.Load(context.Background()))

	var mu sync.Mutex
	remoteCalls := 0
	rejected := errors.New("not enough left")
	err := s.Optimistic(context.Background(), "bump", Mutation[testItem]{
		ID:         "a",
		Apply:      func(i *testItem) error { return rejected },
		Compensate: func(i *testItem) { i.Value-- },
		Remote: func(ctx context.Context) error {
			mu.Lock()
			remoteCalls++
			mu.Unlock()
			return nil
		},
	})
	assert.ErrorIs(t, err, rejected)

	s.Wait()
	item, _ := s.Get("a")
	assert.Equal(t, 1, item.Value, "rejected apply changes nothing")
	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, remoteCalls, "rejected apply issues no remote write")
}

func TestOptimisticUnknownEntity(t *testing.T) {
	s := New("test", itemID, func(ctx context.Context, cursor string, pageSize int) ([]testItem, error) {
		return nil, nil
	}, 10)

	err := s.Optimistic(context.Background(), "bump", Mutation[testItem]{
		ID:         "ghost",
		Apply:      func(i *testItem) error { return nil },
		Compensate: func(i *testItem) {},
		Remote:     func(ctx context.Context) error { return nil },
	})
	assert.ErrorIs(t, err, ErrNotInSnapshot)
}

func TestToggleCounterClampsAtZero(t *testing.T) {
	flag := true
	counter := int64(0)

	// Un-liking something whose counter is already zero cannot go
	// negative.
	ToggleCounter(&flag, &counter)
	assert.False(t, flag)
	assert.Equal(t, int64(0), counter)

	ToggleCounter(&flag, &counter)
	assert.True(t, flag)
	assert.Equal(t, int64(1), counter)
}

func TestSubscribeNotifiesAndUnsubscribes(t *testing.T) {
	s := New("test", itemID, func(ctx context.Context, cursor string, pageSize int) ([]testItem, error) {
		return []testItem{{ID: "a"}}, nil
	}, 10)

	var mu sync.Mutex
	notifications := 0
	unsubscribe := s.Subscribe(func(Snapshot[testItem]) {
		mu.Lock()
		notifications++
		mu.Unlock()
	})

	require.NoError(t, s.Load(context.Background()))
	mu.Lock()
	seen := notifications
	mu.Unlock()
	assert.Greater(t, seen, 0)

	unsubscribe()
	s.Insert(testItem{ID: "b"})
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, seen, notifications, "no notifications after unsubscribe")
}

func TestRemoveWhere(t *testing.T) {
	s := New("test", itemID, func(ctx context.Context, cursor string, pageSize int) ([]testItem, error) {
		return []testItem{{ID: "a", Value: 1}, {ID: "b", Value: 2}, {ID: "c", Value: 3}}, nil
	}, 10)
	require.NoError(t, s.Load(context.Background()))

	removed := s.RemoveWhere(func(i testItem) bool { return i.Value >= 2 })
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, s.Len())
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
