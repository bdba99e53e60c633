package cache

import (
	"context"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Collection names used by the live update pipeline.
const (
	CollectionTasks  = "tasks"
	CollectionGraphs = "graphs"
)

// Invalidator marks a named collection stale.
type Invalidator interface {
	Invalidate(collection string)
}

// InvalidatorFunc adapts a function to Invalidator.
type InvalidatorFunc func(collection string)

// Invalidate calls f(collection).
func (f InvalidatorFunc) Invalidate(collection string) {
	f(collection)
}

type entry struct {
	generation uint64
	value      any
}

type subscriber struct {
	ch chan struct{}
}

// Store is a generation-stamped cache of fetched collections.
type Store struct {
	mu          sync.Mutex
	generations map[string]uint64
	entries     map[string]map[string]entry // collection -> key -> entry
	subscribers map[string]map[*subscriber]struct{}

	group singleflight.Group
}

// New creates an empty store.
func New() *Store {
	return &Store{
		generations: make(map[string]uint64),
		entries:     make(map[string]map[string]entry),
		subscribers: make(map[string]map[*subscriber]struct{}),
	}
}

// Invalidate marks every cached value of collection stale and signals its
// subscribers.
func (s *Store) Invalidate(collection string) {
	s.mu.Lock()
	s.generations[collection]++
	subs := make([]*subscriber, 0, len(s.subscribers[collection]))
	for sub := range s.subscribers[collection] {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.ch <- struct{}{}:
		default:
			// A signal is already pending; the reader will refetch anyway.
		}
	}
}

// Generation returns the current generation of collection.
func (s *Store) Generation(collection string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[collection]
}

// Subscribe returns a channel that receives a signal after each
// invalidation of collection. Signals are coalesced: a slow reader sees at
// least one signal after the latest invalidation, not one per call. The
// returned func unsubscribes.
func (s *Store) Subscribe(collection string) (<-chan struct{}, func()) {
	sub := &subscriber{ch: make(chan struct{}, 1)}

	s.mu.Lock()
	if s.subscribers[collection] == nil {
		s.subscribers[collection] = make(map[*subscriber]struct{})
	}
	s.subscribers[collection][sub] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers[collection], sub)
			s.mu.Unlock()
		})
	}
}

// Peek returns the cached value for key and whether it is still fresh.
func (s *Store) Peek(collection, key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[collection][key]
	if !ok || e.generation != s.generations[collection] {
		return nil, false
	}
	return e.value, true
}

// put stores value unless a value from a newer generation is already there.
func (s *Store) put(collection, key string, generation uint64, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byKey := s.entries[collection]
	if byKey == nil {
		byKey = make(map[string]entry)
		s.entries[collection] = byKey
	}
	if cur, ok := byKey[key]; ok && cur.generation > generation {
		return
	}
	byKey[key] = entry{generation: generation, value: value}
}

// Load returns the fresh cached value for key in collection, calling fetch
// when there is none. Failed fetches are not cached.
func Load[V any](ctx context.Context, s *Store, collection, key string, fetch func(context.Context) (V, error)) (V, error) {
	if v, ok := s.Peek(collection, key); ok {
		if typed, ok := v.(V); ok {
			return typed, nil
		}
	}

	generation := s.Generation(collection)
	flightKey := collection + "\x00" + key + "\x00" + strconv.FormatUint(generation, 10)

	v, err, _ := s.group.Do(flightKey, func() (any, error) {
		val, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		s.put(collection, key, generation, val)
		return val, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}
