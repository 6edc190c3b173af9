// Package memstore is an in-process remote.Store. The document server uses it
// when no database is configured and the sync engine tests use it as the
// shared cloud between simulated devices.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/commissionsync/internal/remote"
)

// Op names a store operation for fault injection and call counting.
type Op string

const (
	OpQuery     Op = "query"
	OpSetFields Op = "set"
	OpDelete    Op = "delete"
	OpSubscribe Op = "subscribe"
	OpPing      Op = "ping"
)

type Option func(*Store)

// WithClock overrides the clock used to resolve remote.ServerTimestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store keeps collections in maps guarded by a single mutex.
type Store struct {
	mu       sync.Mutex
	data     map[string]map[string]map[string]any
	failures map[Op]error
	calls    map[Op]int
	now      func() time.Time
	hub      *remote.Hub
}

var _ remote.Store = (*Store)(nil)

func New(opts ...Option) *Store {
	s := &Store{
		data:     make(map[string]map[string]map[string]any),
		failures: make(map[Op]error),
		calls:    make(map[Op]int),
		now:      time.Now,
		hub:      remote.NewHub(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SetFailure makes every subsequent op fail with err until cleared with nil.
func (s *Store) SetFailure(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// Calls returns how many times op was invoked, failed calls included.
func (s *Store) Calls(op Op) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *Store) enter(ctx context.Context, op Op) error {
	s.calls[op]++
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.failures[op]
}

func (s *Store) Query(ctx context.Context, collection string, filter remote.Filter) ([]remote.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, OpQuery); err != nil {
		return nil, err
	}

	var out []remote.Document
	for id, d := range s.data[collection] {
		if remote.Matches(d, filter) {
			out = append(out, remote.Document{ID: id, Data: copyData(d)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SetFields(ctx context.Context, collection, docID string, fields map[string]any, merge bool) error {
	if docID == "" {
		return remote.ErrInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, OpSetFields); err != nil {
		return err
	}

	coll, ok := s.data[collection]
	if !ok {
		coll = make(map[string]map[string]any)
		s.data[collection] = coll
	}
	before := coll[docID]
	after := remote.Merge(before, fields, merge, s.now())
	coll[docID] = after

	s.hub.Notify(collection, before, after)
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, OpDelete); err != nil {
		return err
	}

	before, ok := s.data[collection][docID]
	if !ok {
		return nil
	}
	delete(s.data[collection], docID)
	s.hub.Notify(collection, before, nil)
	return nil
}

func (s *Store) Subscribe(ctx context.Context, collection string, filter remote.Filter) (remote.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, OpSubscribe); err != nil {
		return nil, err
	}
	return s.hub.Add(collection, filter), nil
}

// Get returns a copy of a single document.
func (s *Store) Get(_ context.Context, collection, docID string) (remote.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.data[collection][docID]
	if !ok {
		return remote.Document{}, remote.ErrNotFound
	}
	return remote.Document{ID: docID, Data: copyData(d)}, nil
}

// IDs lists document ids of a collection in order.
func (s *Store) IDs(collection string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.data[collection]))
	for id := range s.data[collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Subscribers is the number of open subscriptions.
func (s *Store) Subscribers() int {
	return s.hub.Len()
}

// Disconnect ends every open subscription as a dropped connection would.
func (s *Store) Disconnect() {
	s.hub.CloseAll()
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enter(ctx, OpPing)
}

func copyData(d map[string]any) map[string]any {
	out := make(map[string]any, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
