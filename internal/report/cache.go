package report

import (
	"container/list"
	"sync"
)

// CachedStore keeps recently used runs in memory in front of a backing
// Store. Saves write through; loads promote on hit and fall back to
// the backing store on miss, evicting the least recently used run past
// capacity.
type CachedStore struct {
	mu       sync.Mutex
	capacity int
	back     Store

	order *list.List // front = most recently used; element values are *cacheEntry
	items map[string]*list.Element
}

type cacheEntry struct {
	id     string
	result *RunResult
}

// NewCachedStore creates a cache holding up to capacity runs in front
// of back. Capacity must be >= 1.
func NewCachedStore(capacity int, back Store) *CachedStore {
	if capacity < 1 {
		capacity = 1
	}
	return &CachedStore{
		capacity: capacity,
		back:     back,
		order:    list.New(),
		items:    make(map[string]*list.Element, capacity),
	}
}

// Save writes the run to the cache and through to the backing store.
func (s *CachedStore) Save(result *RunResult) error {
	s.mu.Lock()
	s.insert(result.ID, result)
	s.mu.Unlock()

	return s.back.Save(result)
}

// Load returns the cached run if present, promoting it. On a miss it
// loads from the backing store and caches the result.
func (s *CachedStore) Load(runID string) (*RunResult, error) {
	s.mu.Lock()
	if el, ok := s.items[runID]; ok {
		s.order.MoveToFront(el)
		r := el.Value.(*cacheEntry).result
		s.mu.Unlock()
		return r, nil
	}
	s.mu.Unlock()

	result, err := s.back.Load(runID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.insert(runID, result)
	s.mu.Unlock()
	return result, nil
}

// insert adds or refreshes an entry, evicting the least recently used
// one when over capacity. Caller holds the lock. A concurrent load may
// have inserted the id already; refreshing covers that case too.
func (s *CachedStore) insert(id string, result *RunResult) {
	if el, ok := s.items[id]; ok {
		el.Value.(*cacheEntry).result = result
		s.order.MoveToFront(el)
		return
	}
	s.items[id] = s.order.PushFront(&cacheEntry{id: id, result: result})
	if s.order.Len() > s.capacity {
		oldest := s.order.Back()
		s.order.Remove(oldest)
		delete(s.items, oldest.Value.(*cacheEntry).id)
	}
}
