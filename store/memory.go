package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// hitWindow is the recent hit history for one key.
type hitWindow struct {
	mu   sync.Mutex
	hits []time.Time
}

// MemoryRateStore implements RateStore with a bounded LRU of per-key
// hit histories. The least recently seen key is evicted once capacity
// is reached, and each history keeps at most maxHits timestamps.
type MemoryRateStore struct {
	mu      sync.Mutex
	windows *lru.Cache[string, *hitWindow]
	maxHits int
	now     func() time.Time

	stopCleanup chan struct{}
	closeOnce   sync.Once
}

// NewMemoryRateStore creates a store tracking at most capacity keys,
// each with a history of at most maxHits timestamps.
func NewMemoryRateStore(capacity, maxHits int) (*MemoryRateStore, error) {
	if maxHits <= 0 {
		return nil, fmt.Errorf("memory: maxHits must be positive, got %d", maxHits)
	}
	windows, err := lru.New[string, *hitWindow](capacity)
	if err != nil {
		return nil, fmt.Errorf("memory: failed to create LRU: %w", err)
	}
	return &MemoryRateStore{
		windows:     windows,
		maxHits:     maxHits,
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}, nil
}

// SetClock overrides the time source. Intended for tests.
func (s *MemoryRateStore) SetClock(now func() time.Time) {
	s.now = now
}

// Record registers a hit for key and returns the count inside window.
func (s *MemoryRateStore) Record(_ context.Context, key string, window time.Duration) (int, error) {
	now := s.now()

	s.mu.Lock()
	w, ok := s.windows.Get(key)
	if !ok {
		w = &hitWindow{}
		s.windows.Add(key, w)
	}
	s.mu.Unlock()

	// Keys are independent, so only the key's own history is locked.
	w.mu.Lock()
	defer w.mu.Unlock()

	w.hits = trim(w.hits, now.Add(-window))
	w.hits = append(w.hits, now)
	if len(w.hits) > s.maxHits {
		w.hits = w.hits[len(w.hits)-s.maxHits:]
	}
	return len(w.hits), nil
}

// Len returns the number of tracked keys.
func (s *MemoryRateStore) Len() int {
	return s.windows.Len()
}

// StartPruning removes stale keys every interval until Close is called.
func (s *MemoryRateStore) StartPruning(interval, window time.Duration) {
	go s.pruneLoop(interval, window)
}

// Prune drops every key whose history is entirely older than window.
func (s *MemoryRateStore) Prune(window time.Duration) {
	cutoff := s.now().Add(-window)
	for _, key := range s.windows.Keys() {
		w, ok := s.windows.Peek(key)
		if !ok {
			continue
		}
		w.mu.Lock()
		w.hits = trim(w.hits, cutoff)
		empty := len(w.hits) == 0
		w.mu.Unlock()
		if empty {
			s.windows.Remove(key)
		}
	}
}

// Close stops the background pruning goroutine.
func (s *MemoryRateStore) Close() error {
	s.closeOnce.Do(func() { close(s.stopCleanup) })
	return nil
}

func (s *MemoryRateStore) pruneLoop(interval, window time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Prune(window)
		case <-s.stopCleanup:
			return
		}
	}
}

// trim drops hits at or before cutoff. hits is kept in arrival order.
func trim(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	return hits[i:]
}

// MemoryEventStore implements EventStore in memory.
// This is useful for testing but not recommended for production.
type MemoryEventStore struct {
	mu     sync.RWMutex
	events []*Event
}

// NewMemoryEventStore creates a new in-memory event store.
func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{}
}

// Save appends an event.
func (s *MemoryEventStore) Save(_ context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *event
	s.events = append(s.events, &cp)
	return nil
}

// Recent returns up to limit events for identity, newest first.
func (s *MemoryEventStore) Recent(_ context.Context, identity string, limit int) ([]*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Event
	for _, e := range s.events {
		if identity == "" || e.Identity == identity {
			out = append(out, e)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close is a no-op for the memory store.
func (s *MemoryEventStore) Close() error {
	return nil
}
