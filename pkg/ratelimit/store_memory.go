package ratelimit

import (
	"container/list"
	"context"
	"hash/fnv"
	"sync"
	"time"
)

// defaultShards is the number of independent lock stripes of an InMemoryRateLimitStore.
const defaultShards = 32

// InMemoryRateLimitStore is a thread-safe in-memory implementation of RateLimitStore.
//
// Keys are spread over lock stripes by hash, so checks on unrelated keys proceed
// in parallel while all operations on one key are serialized. Each stripe bounds
// its share of MaxKeys and evicts its least recently used key when full.
type InMemoryRateLimitStore struct {
	shards  []*shard
	onEvict func(count int)
}

type shard struct {
	mu      sync.Mutex
	windows map[string]*window
	lru     *list.List // front = most recently used
	maxKeys int
}

// window holds the ordered timestamps of a single key.
type window struct {
	timestamps []time.Time
	lastSeen   time.Time
	elem       *list.Element
}

// InMemoryStoreConfig holds configuration for InMemoryRateLimitStore.
type InMemoryStoreConfig struct {
	// MaxKeys is the maximum number of keys to store in memory.
	// Default: 10000
	MaxKeys int

	// Shards is the number of lock stripes. Default: 32
	Shards int

	// OnEvict, if set, is called with the number of keys evicted for capacity.
	OnEvict func(count int)
}

// DefaultInMemoryStoreConfig returns the default configuration.
func DefaultInMemoryStoreConfig() InMemoryStoreConfig {
	return InMemoryStoreConfig{
		MaxKeys: 10000,
		Shards:  defaultShards,
	}
}

// NewInMemoryRateLimitStore creates a new in-memory rate limit store with the given configuration.
func NewInMemoryRateLimitStore(config InMemoryStoreConfig) *InMemoryRateLimitStore {
	if config.MaxKeys <= 0 {
		config.MaxKeys = 10000
	}
	if config.Shards <= 0 {
		config.Shards = defaultShards
	}
	if config.Shards > config.MaxKeys {
		config.Shards = config.MaxKeys
	}

	perShard := config.MaxKeys / config.Shards
	s := &InMemoryRateLimitStore{
		shards:  make([]*shard, config.Shards),
		onEvict: config.OnEvict,
	}
	for i := range s.shards {
		s.shards[i] = &shard{
			windows: make(map[string]*window),
			lru:     list.New(),
			maxKeys: perShard,
		}
	}
	return s
}

func (s *InMemoryRateLimitStore) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// CheckAndAddRequest atomically prunes, checks and records a request for key.
//
// If timestamp is earlier than the latest time already observed for the key
// (the clock went backwards), the latest observed time is used instead so a
// skewed clock cannot reopen a full window.
func (s *InMemoryRateLimitStore) CheckAndAddRequest(ctx context.Context, key string, timestamp time.Time, win time.Duration, limit int) (bool, WindowState, error) {
	if err := ctx.Err(); err != nil {
		return false, WindowState{}, err
	}

	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	w, exists := sh.windows[key]
	if exists && timestamp.Before(w.lastSeen) {
		timestamp = w.lastSeen
	}
	cutoff := timestamp.Add(-win)

	if exists {
		w.lastSeen = timestamp
		w.prune(cutoff)
		sh.lru.MoveToFront(w.elem)
	}

	state := WindowState{Now: timestamp}
	if exists {
		state.Count = len(w.timestamps)
		if state.Count > 0 {
			state.Oldest = w.timestamps[0]
		}
	}

	if state.Count >= limit {
		return false, state, nil
	}

	if !exists {
		if evicted := sh.makeRoom(); evicted > 0 && s.onEvict != nil {
			s.onEvict(evicted)
		}
		w = &window{lastSeen: timestamp}
		w.elem = sh.lru.PushFront(key)
		sh.windows[key] = w
	}

	w.timestamps = append(w.timestamps, timestamp)
	state.Count++
	if state.Oldest.IsZero() {
		state.Oldest = timestamp
	}
	return true, state, nil
}

// GetRequestCount returns the number of requests for the given key newer than cutoff.
func (s *InMemoryRateLimitStore) GetRequestCount(ctx context.Context, key string, cutoff time.Time) (int, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	w, exists := sh.windows[key]
	if !exists {
		return 0, nil
	}
	count := 0
	for _, ts := range w.timestamps {
		if ts.After(cutoff) {
			count++
		}
	}
	return count, nil
}

// Cleanup removes expired timestamps from every key and drops keys left empty.
// Stripes are visited one at a time, so checks on other stripes are not blocked.
func (s *InMemoryRateLimitStore) Cleanup(ctx context.Context, cutoff time.Time) (int, error) {
	removed := 0
	for _, sh := range s.shards {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		sh.mu.Lock()
		for key, w := range sh.windows {
			w.prune(cutoff)
			if len(w.timestamps) == 0 {
				sh.lru.Remove(w.elem)
				delete(sh.windows, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed, nil
}

// KeyCount returns the number of keys currently in storage.
func (s *InMemoryRateLimitStore) KeyCount(ctx context.Context) (int, error) {
	total := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		total += len(sh.windows)
		sh.mu.Unlock()
	}
	return total, nil
}

// makeRoom evicts the least recently used key when the stripe is full.
// Must be called with sh.mu held.
func (sh *shard) makeRoom() int {
	if len(sh.windows) < sh.maxKeys {
		return 0
	}
	oldest := sh.lru.Back()
	if oldest == nil {
		return 0
	}
	key := sh.lru.Remove(oldest).(string)
	delete(sh.windows, key)
	return 1
}

// prune drops timestamps not newer than cutoff. Timestamps are appended in
// non-decreasing order, so the expired ones form a prefix.
func (w *window) prune(cutoff time.Time) {
	i := 0
	for i < len(w.timestamps) && !w.timestamps[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return
	}
	n := copy(w.timestamps, w.timestamps[i:])
	clear(w.timestamps[n:])
	w.timestamps = w.timestamps[:n]
}
