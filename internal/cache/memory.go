package cache

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultMaxEntries bounds the in-memory store before LRU eviction kicks in.
const DefaultMaxEntries = 256

type memoryItem struct {
	entry      Entry
	lastAccess time.Time
}

// Memory is an in-process store with least-recently-used eviction.
type Memory struct {
	mu         sync.RWMutex
	items      map[Key]*memoryItem
	maxEntries int
	now        func() time.Time
	evictions  prometheus.Counter
}

// NewMemory creates an in-memory store. maxEntries <= 0 uses DefaultMaxEntries.
func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Memory{
		items:      make(map[Key]*memoryItem),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Instrument attaches an eviction counter. Call before first use.
func (m *Memory) Instrument(evictions prometheus.Counter) {
	m.evictions = evictions
}

func (m *Memory) Get(key Key) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[key]
	if !ok {
		return Entry{}, ErrMiss
	}
	item.lastAccess = m.now()
	return item.entry, nil
}

func (m *Memory) Put(key Key, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.items[key]; !exists && len(m.items) >= m.maxEntries {
		m.evictOldest()
	}
	m.items[key] = &memoryItem{entry: entry, lastAccess: m.now()}
	return nil
}

func (m *Memory) Delete(key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func (m *Memory) Len() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items), nil
}

// evictOldest removes the least recently accessed item. Caller holds the lock.
func (m *Memory) evictOldest() {
	var oldestKey Key
	var oldest time.Time
	first := true
	for k, item := range m.items {
		if first || item.lastAccess.Before(oldest) {
			oldestKey = k
			oldest = item.lastAccess
			first = false
		}
	}
	if !first {
		delete(m.items, oldestKey)
		if m.evictions != nil {
			m.evictions.Inc()
		}
	}
}
