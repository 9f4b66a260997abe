package cache

import (
	"context"
	"sync"
	"time"

	"github.com/promptshield-ai/promptshield/internal/engine"
)

// DefaultMaxEntries bounds the local cache.
const DefaultMaxEntries = 10000

// Memory is the process-local bounded cache. At capacity the oldest tenth
// of entries by insertion order is evicted; approximate on purpose, not an
// LRU. Expired entries read as absent.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	order   []string // insertion order, oldest first
	max     int
}

type memoryEntry struct {
	verdict   engine.Verdict
	expiresAt time.Time
}

// NewMemory returns a bounded local cache holding at most maxEntries.
func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Memory{
		entries: make(map[string]memoryEntry),
		max:     maxEntries,
	}
}

func (m *Memory) Get(_ context.Context, fingerprint string) (*engine.Verdict, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[fingerprint]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		// The stale order-slice key is skipped at eviction time.
		delete(m.entries, fingerprint)
		return nil, false
	}

	v := e.verdict
	v.FromCache = true
	return &v, true
}

func (m *Memory) Set(_ context.Context, fingerprint string, v *engine.Verdict, ttl time.Duration) {
	if v == nil || ttl <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[fingerprint]; !exists {
		if len(m.entries) >= m.max {
			m.evictOldest()
		}
		m.order = append(m.order, fingerprint)
	}

	stored := *v
	stored.FromCache = false // canonical form; FromCache is set on read
	m.entries[fingerprint] = memoryEntry{
		verdict:   stored,
		expiresAt: time.Now().Add(ttl),
	}
}

// evictOldest removes a tenth of capacity, oldest insertions first. Keys
// already reaped by expiry are skipped without counting.
func (m *Memory) evictOldest() {
	n := m.max / 10
	if n < 1 {
		n = 1
	}
	removed := 0
	for removed < n && len(m.order) > 0 {
		key := m.order[0]
		m.order = m.order[1:]
		if _, ok := m.entries[key]; ok {
			delete(m.entries, key)
			removed++
		}
	}
}

// Len reports the current entry count.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) Close() error { return nil }
